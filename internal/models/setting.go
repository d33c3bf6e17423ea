package models

// Setting keys read by the rules engine.
const (
	SettingWelcomeBonus       = "WELCOME_BONUS"
	SettingMinWithdrawal      = "MIN_WITHDRAWAL"
	SettingConversionRate     = "USDT_CONVERSION_RATE"
	SettingLevelUpgradePrefix = "LEVEL_UPGRADE_L"
	SettingLevelBonusPrefix   = "LEVEL_MULTIPLIER_L"
	SettingReferralPrefix     = "REFERRAL_BONUS_L"
)

// Setting is a tunable constant stored as text.
type Setting struct {
	Key       string `json:"key" gorm:"column:key;primaryKey;size:64"`
	Value     string `json:"value" gorm:"column:value;not null"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// SettingsReader is the read side of the settings store.
type SettingsReader interface {
	// GetSetting returns the raw value and whether the key exists.
	GetSetting(key string) (string, bool, error)
}
