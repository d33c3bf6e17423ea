package models

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

// withdrawalTransitions is the whole state machine: pending is the only
// non-terminal state.
var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending: {WithdrawalCompleted, WithdrawalRejected},
}

// CanTransition reports whether moving from s to next is allowed.
func (s WithdrawalStatus) CanTransition(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s WithdrawalStatus) IsTerminal() bool {
	return len(withdrawalTransitions[s]) == 0
}

type Network string

const (
	NetworkTRC20 Network = "TRC20"
	NetworkERC20 Network = "ERC20"
	NetworkBEP20 Network = "BEP20"
)

// Withdrawal is a payout request. Amount is reserved from the balance at creation.
type Withdrawal struct {
	ID     int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID int64 `json:"user_id" gorm:"column:user_id;not null;index;uniqueIndex:idx_withdrawals_one_pending,where:status = 'pending'"`
	Amount int64 `json:"amount" gorm:"column:amount;not null"`
	// USDTAmount is floor(Amount * ConversionRate), in USDT minor units.
	USDTAmount     int64            `json:"usdt_amount" gorm:"column:usdt_amount;not null"`
	ConversionRate string           `json:"conversion_rate" gorm:"column:conversion_rate;size:32;not null"`
	WalletAddress  string           `json:"wallet_address" gorm:"column:wallet_address;not null"`
	Network        Network          `json:"network" gorm:"column:network;size:8;not null"`
	Status         WithdrawalStatus `json:"status" gorm:"column:status;size:16;not null;index"`
	// TxHash is set only on completion.
	TxHash string `json:"tx_hash,omitempty" gorm:"column:tx_hash"`
	// RejectionReason is set only on rejection or cancellation.
	RejectionReason string `json:"rejection_reason,omitempty" gorm:"column:rejection_reason"`
	// ProcessedBy is the admin who settled it; zero when the user cancelled.
	ProcessedBy int64 `json:"processed_by,omitempty" gorm:"column:processed_by"`
	CreatedAt   int64 `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	ProcessedAt int64 `json:"processed_at,omitempty" gorm:"column:processed_at"`
}
