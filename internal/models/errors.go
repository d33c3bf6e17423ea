package models

import (
	"errors"
	"fmt"
)

// Domain errors returned by ledger operations. Callers match them with errors.Is.
var (
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrBelowMinimum             = errors.New("amount is below the minimum withdrawal")
	ErrWithdrawalAlreadyPending = errors.New("a withdrawal is already pending")
	ErrAlreadyProcessed         = errors.New("already processed")
	ErrInvalidLevelTransition   = errors.New("requested level must be above the current level and at most 3")
	ErrUserNotFound             = errors.New("user not found")
	ErrReferralEdgeNotFound     = errors.New("referral edge not found")

	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrLevelRequestNotFound = errors.New("level request not found")
	ErrLevelRequestPending  = errors.New("a level request is already pending")
	ErrTaskNotFound         = errors.New("task not found")
	ErrSubmissionNotFound   = errors.New("task submission not found")
	ErrDuplicateOffer       = errors.New("offer completion already credited")
	ErrAlreadySubmitted     = errors.New("task already submitted")
	ErrUserNotApproved      = errors.New("user is not approved")
	ErrTxHashRequired       = errors.New("transaction hash is required")
	ErrReasonRequired       = errors.New("a reason is required")
	ErrInvalidAddress       = errors.New("invalid payout address")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidReferralCode  = errors.New("invalid referral code")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidEmail         = errors.New("invalid email address")
	ErrUnknownSetting       = errors.New("unknown setting")
	ErrLedgerMismatch       = errors.New("wallet does not match its ledger")
	ErrAccrualRunning       = errors.New("referral accrual is already running")
	ErrForbidden            = errors.New("forbidden")
	ErrTelegramLinkInvalid  = errors.New("telegram link token is invalid or expired")

	// ErrTransient marks failures of the storage layer that are safe to retry.
	ErrTransient = errors.New("transient storage failure")
)

// TransientError wraps a storage failure so that raw driver errors never
// surface as domain errors.
type TransientError struct {
	Op  string
	Err error
}

func NewTransientError(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrTransient.Error())
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}
