package models

// AppLock represents a distributed lock in the database.
// The accrual job holds it so that only one instance credits referrals at a time.
type AppLock struct {
	LockName   string `gorm:"primaryKey;size:255"`
	InstanceID string `gorm:"size:255;not null"`
	AcquiredAt int64  `gorm:"not null;index"`
	ExpiresAt  int64  `gorm:"not null;index"`
}

// TableName specifies the table name for GORM
func (AppLock) TableName() string {
	return "app_locks"
}

// AccrualLockName is the AppLock held during a referral accrual run.
const AccrualLockName = "referral_accrual"
