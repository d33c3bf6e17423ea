package models

import (
	"context"
	"time"
)

// Repository is the persistence port. Methods that change several rows are
// only atomic when called on the repository handed to Transaction.
type Repository interface {
	SettingsReader

	// Transaction runs fn against a repository bound to one database transaction.
	// A non-nil error from fn rolls everything back and is returned unchanged.
	Transaction(ctx context.Context, fn func(Repository) error) error
	// AfterCommit defers fn until the enclosing transaction commits; it is
	// dropped on rollback and runs at once outside a transaction.
	AfterCommit(fn func())
	Migrate() error
	Close() error

	// Users
	CreateUser(user *User) error
	GetUser(id int64) (*User, error)
	GetUserByReferralCode(code string) (*User, error)
	ListUsers(status UserStatus, limit int) ([]*User, error)
	// UpdateUserStatus moves a user from one status to another and reports
	// whether the row was still in the expected status.
	UpdateUserStatus(id int64, from, to UserStatus, at int64) (bool, error)
	SetUserLevel(id int64, level int) error
	SetTelegramLinkToken(id int64, token string, expiresAt int64) error
	// LinkTelegramChat consumes an unexpired link token and stores the chat id
	// on its owner; it fails with ErrTelegramLinkInvalid otherwise.
	LinkTelegramChat(token, chatID string, now int64) (int64, error)

	// Wallets
	CreateWallet(wallet *Wallet) error
	GetWallet(userID int64) (*Wallet, error)
	// ApplyWalletDelta changes the wallet in a single guarded statement; it fails
	// with ErrInsufficientBalance if balance or pending balance would go negative.
	ApplyWalletDelta(userID int64, delta WalletDelta) (*Wallet, error)

	// Ledger (append-only)
	AppendLedgerEntry(entry *LedgerEntry) error
	ListLedgerEntries(userID int64, limit int) ([]*LedgerEntry, error)
	ListAllLedgerEntries(userID int64) ([]*LedgerEntry, error)

	// Referrals
	CreateReferral(referral *Referral) error
	GetReferral(id int64) (*Referral, error)
	ListReferralsByReferrer(referrerID int64) ([]*Referral, error)
	ListAccrualCandidates() ([]*AccrualCandidate, error)
	// MarkReferralPaid flips is_paid once; false means it was already paid.
	MarkReferralPaid(id int64, bonus int64, at int64) (bool, error)

	// Withdrawals
	CreateWithdrawal(withdrawal *Withdrawal) error
	GetWithdrawal(id int64) (*Withdrawal, error)
	HasPendingWithdrawal(userID int64) (bool, error)
	ListWithdrawals(userID int64, status WithdrawalStatus, limit int) ([]*Withdrawal, error)
	// FinishWithdrawal stores the terminal state of a pending withdrawal;
	// false means it was no longer pending.
	FinishWithdrawal(withdrawal *Withdrawal) (bool, error)

	// Level requests
	CreateLevelRequest(request *LevelRequest) error
	GetLevelRequest(id int64) (*LevelRequest, error)
	HasPendingLevelRequest(userID int64) (bool, error)
	ListLevelRequests(status RequestStatus, limit int) ([]*LevelRequest, error)
	FinishLevelRequest(request *LevelRequest) (bool, error)

	// Tasks
	CreateTask(task *Task) error
	GetTask(id int64) (*Task, error)
	ListTasks(activeOnly bool) ([]*Task, error)
	CreateSubmission(submission *TaskSubmission) error
	GetSubmission(id int64) (*TaskSubmission, error)
	ListSubmissions(status RequestStatus, limit int) ([]*TaskSubmission, error)
	FinishSubmission(submission *TaskSubmission) (bool, error)
	// CreateOfferCompletion fails with ErrDuplicateOffer for a known (network, external id).
	CreateOfferCompletion(completion *OfferCompletion) error

	// Settings
	SetSetting(key, value string) error
	// EnsureSetting inserts the key only when it is missing.
	EnsureSetting(key, value string) error
	ListSettings() ([]*Setting, error)

	// In-app notifications
	CreateNotification(notification *Notification) error
	ListNotifications(userID int64, limit int) ([]*Notification, error)
	MarkNotificationRead(userID, id int64) error

	// App locks
	AcquireLock(name, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(name, instanceID string) error
}
