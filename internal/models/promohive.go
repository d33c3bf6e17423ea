package models

import "context"

// RegisterRequest is a new account signup.
type RegisterRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// WithdrawalRequest asks for a payout of Amount minor units.
type WithdrawalRequest struct {
	UserID        int64   `json:"-"`
	Amount        int64   `json:"amount"`
	WalletAddress string  `json:"wallet_address"`
	Network       Network `json:"network"`
}

// OfferCallback is an ad-network completion after the key check.
type OfferCallback struct {
	Network    string `json:"network"`
	ExternalID string `json:"external_id"`
	UserID     int64  `json:"user_id"`
	TaskID     *int64 `json:"task_id,omitempty"`
	// Payout is the base reward in minor units before the level bonus.
	Payout int64 `json:"payout"`
}

// PromoHive serves all wallet and reward operations. Every mutation commits
// its wallet change and ledger entry together and notifies after commit.
type PromoHive interface {
	// Start runs the background jobs until ctx is cancelled.
	Start(ctx context.Context)

	// Accounts
	RegisterUser(ctx context.Context, req *RegisterRequest) (*User, error)
	ApproveUser(ctx context.Context, adminID, userID int64) (*Wallet, error)
	RejectUser(ctx context.Context, adminID, userID int64) error
	GetUser(userID int64) (*User, error)
	ListUsers(status UserStatus, limit int) ([]*User, error)
	CreateTelegramLink(ctx context.Context, userID int64) (*TelegramLink, error)

	// Tasks and offers
	CreateTask(ctx context.Context, task *Task) error
	ListTasks(activeOnly bool) ([]*Task, error)
	SubmitTask(ctx context.Context, userID, taskID int64, proof string) (*TaskSubmission, error)
	ListSubmissions(status RequestStatus, limit int) ([]*TaskSubmission, error)
	ApproveSubmission(ctx context.Context, adminID, submissionID int64) (*TaskSubmission, error)
	RejectSubmission(ctx context.Context, adminID, submissionID int64, reason string) (*TaskSubmission, error)
	CreditOffer(ctx context.Context, callback *OfferCallback) (*OfferCompletion, error)

	// Withdrawals
	RequestWithdrawal(ctx context.Context, req *WithdrawalRequest) (*Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, adminID, withdrawalID int64, txHash string) (*Withdrawal, error)
	RejectWithdrawal(ctx context.Context, adminID, withdrawalID int64, reason string) (*Withdrawal, error)
	CancelWithdrawal(ctx context.Context, userID, withdrawalID int64) (*Withdrawal, error)
	ListWithdrawals(userID int64, status WithdrawalStatus, limit int) ([]*Withdrawal, error)

	// Levels
	RequestLevelUpgrade(ctx context.Context, userID int64, level int) (*LevelRequest, error)
	ApproveLevelRequest(ctx context.Context, adminID, requestID int64) (*LevelRequest, error)
	RejectLevelRequest(ctx context.Context, adminID, requestID int64, reason string) (*LevelRequest, error)
	ListLevelRequests(status RequestStatus, limit int) ([]*LevelRequest, error)

	// Wallet views
	GetWallet(userID int64) (*Wallet, error)
	ListLedger(userID int64, limit int) ([]*LedgerEntry, error)
	ListReferrals(userID int64) ([]*Referral, error)
	ListNotifications(userID int64, limit int) ([]*Notification, error)
	MarkNotificationRead(userID, notificationID int64) error

	// Administration
	AdjustBalance(ctx context.Context, adminID, userID, amount int64, reason string) (*Wallet, error)
	Reconcile(userID int64) (Totals, error)
	RunAccrual(ctx context.Context) (AccrualSummary, error)
	ListSettings() ([]*Setting, error)
	UpdateSetting(key, value string) error
}

// APIServer is the HTTP front of the service.
type APIServer interface {
	// Start serves until Shutdown.
	Start()
	Shutdown() error
}
