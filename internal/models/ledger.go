package models

type EntryType string

const (
	EntryBonus           EntryType = "bonus"
	EntryTaskReward      EntryType = "task_reward"
	EntryReferralReward  EntryType = "referral_reward"
	EntryWithdrawal      EntryType = "withdrawal"
	EntryLevelUpgrade    EntryType = "level_upgrade"
	EntryAdminAdjustment EntryType = "admin_adjustment"
)

// Reference types link an entry to the record that caused it.
const (
	RefUser            = "user"
	RefTaskSubmission  = "task_submission"
	RefOfferCompletion = "offer_completion"
	RefReferral        = "referral"
	RefWithdrawal      = "withdrawal"
	RefLevelRequest    = "level_request"
	RefAdmin           = "admin"
)

// LedgerEntry is one immutable balance-affecting event. The wallet is a fold
// over its entries: Amount moves balance, PendingAmount moves pending balance,
// WithdrawnAmount moves total withdrawn and Earning marks Amount as earned.
type LedgerEntry struct {
	ID int64 `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	// EntryID is the public, sortable identifier (ULID).
	EntryID string    `json:"id" gorm:"column:entry_id;size:26;uniqueIndex;not null"`
	UserID  int64     `json:"user_id" gorm:"column:user_id;index;not null"`
	Type    EntryType `json:"type" gorm:"column:type;size:32;index;not null"`
	// Amount is positive for credits and negative for debits.
	Amount          int64  `json:"amount" gorm:"column:amount;not null"`
	PendingAmount   int64  `json:"pending_amount" gorm:"column:pending_amount;not null;default:0"`
	WithdrawnAmount int64  `json:"withdrawn_amount" gorm:"column:withdrawn_amount;not null;default:0"`
	Earning         bool   `json:"earning" gorm:"column:earning;not null;default:false"`
	Description     string `json:"description" gorm:"column:description"`
	ReferenceType   string `json:"reference_type,omitempty" gorm:"column:reference_type;size:32;index:idx_transactions_reference"`
	ReferenceID     int64  `json:"reference_id,omitempty" gorm:"column:reference_id;index:idx_transactions_reference"`
	CreatedAt       int64  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName keeps the historical table name of the ledger.
func (LedgerEntry) TableName() string {
	return "transactions"
}

// Delta is the wallet change the entry records.
func (e *LedgerEntry) Delta() WalletDelta {
	d := WalletDelta{
		Balance:   e.Amount,
		Pending:   e.PendingAmount,
		Withdrawn: e.WithdrawnAmount,
	}
	if e.Earning {
		d.Earned = e.Amount
	}
	return d
}
