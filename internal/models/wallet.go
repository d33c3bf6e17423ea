package models

// Wallet represents a user's balance record. All amounts are minor units (cents).
type Wallet struct {
	// UserID is the owner of the wallet.
	UserID int64 `json:"user_id" gorm:"column:user_id;primaryKey;autoIncrement:false"`
	// Balance is the spendable amount.
	Balance int64 `json:"balance" gorm:"column:balance;not null;default:0"`
	// PendingBalance is reserved for an in-flight withdrawal.
	PendingBalance int64 `json:"pending_balance" gorm:"column:pending_balance;not null;default:0"`
	// TotalEarned only grows, on earning credits.
	TotalEarned int64 `json:"total_earned" gorm:"column:total_earned;not null;default:0"`
	// TotalWithdrawn only grows, on settled withdrawals.
	TotalWithdrawn int64 `json:"total_withdrawn" gorm:"column:total_withdrawn;not null;default:0"`
	// Version is bumped by every mutation.
	Version int64 `json:"version" gorm:"column:version;not null;default:0"`
	// UpdatedAt is the Unix timestamp of the last mutation.
	UpdatedAt int64 `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// WalletDelta is a signed change applied to a wallet in one statement.
type WalletDelta struct {
	Balance   int64
	Pending   int64
	Earned    int64
	Withdrawn int64
}

// IsZero reports whether the delta changes nothing.
func (d WalletDelta) IsZero() bool {
	return d == WalletDelta{}
}

// Totals is the comparable part of a wallet.
type Totals struct {
	Balance        int64 `json:"balance"`
	PendingBalance int64 `json:"pending_balance"`
	TotalEarned    int64 `json:"total_earned"`
	TotalWithdrawn int64 `json:"total_withdrawn"`
}

func (w *Wallet) Totals() Totals {
	return Totals{
		Balance:        w.Balance,
		PendingBalance: w.PendingBalance,
		TotalEarned:    w.TotalEarned,
		TotalWithdrawn: w.TotalWithdrawn,
	}
}
