package models

// MaxReferralDepth is how far up the referrer chain edges are created.
const MaxReferralDepth = 3

// Referral is a directed edge from a referrer to a referred user at a depth (1-3).
type Referral struct {
	ID         int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ReferrerID int64 `json:"referrer_id" gorm:"column:referrer_id;not null;uniqueIndex:idx_referrals_edge,priority:1"`
	ReferredID int64 `json:"referred_id" gorm:"column:referred_id;not null;index;uniqueIndex:idx_referrals_edge,priority:2"`
	Level      int   `json:"level" gorm:"column:level;not null;uniqueIndex:idx_referrals_edge,priority:3"`
	// Bonus is set once by the accrual job.
	Bonus int64 `json:"bonus" gorm:"column:bonus;not null;default:0"`
	// IsPaid only ever goes from false to true.
	IsPaid    bool  `json:"is_paid" gorm:"column:is_paid;not null;default:false;index"`
	PaidAt    int64 `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// AccrualCandidate is an unpaid edge joined with the referred user's lifetime earnings.
type AccrualCandidate struct {
	Referral
	ReferredTotalEarned int64 `gorm:"column:referred_total_earned"`
}

// AccrualSummary reports one run of the referral accrual job.
type AccrualSummary struct {
	Scanned  int   `json:"scanned"`
	Credited int   `json:"credited"`
	Skipped  int   `json:"skipped"`
	Failed   int   `json:"failed"`
	Total    int64 `json:"total"`
}
