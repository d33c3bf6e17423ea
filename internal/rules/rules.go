// Package rules computes reward amounts from the settings store.
//
// Every lookup goes to the store, so a changed setting applies to the next
// evaluation. The arithmetic itself lives in the pure helpers ApplyBonus and
// PercentOf; all amounts are minor units.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/money"
)

const (
	DefaultWelcomeBonus   int64 = 500
	DefaultMinWithdrawal  int64 = 1000
	DefaultConversionRate       = "1"
)

var (
	// DefaultLevelBonus is the task-reward bonus percent per level.
	DefaultLevelBonus = map[int]int64{0: 0, 1: 35, 2: 55, 3: 75}
	// DefaultReferralRate is the one-shot accrual percent per referral depth.
	DefaultReferralRate = map[int]int64{1: 10, 2: 20, 3: 30}
	// DefaultLevelUpgradeCost is the price of reaching a level, in minor units.
	DefaultLevelUpgradeCost = map[int]int64{1: 1000, 2: 2500, 3: 5000}
)

// ApplyBonus returns floor(base * (100 + pct) / 100).
func ApplyBonus(base, pct int64) int64 {
	return base * (100 + pct) / 100
}

// PercentOf returns floor(amount * pct / 100).
func PercentOf(amount, pct int64) int64 {
	return amount * pct / 100
}

type Engine struct {
	settings models.SettingsReader
}

func NewEngine(settings models.SettingsReader) *Engine {
	return &Engine{settings: settings}
}

// LevelBonusPercent is the bonus percent for a user level; level 0 has none.
func (e *Engine) LevelBonusPercent(level int) (int64, error) {
	if level < 0 || level > models.MaxLevel {
		return 0, fmt.Errorf("unknown level %d", level)
	}
	if level == 0 {
		return 0, nil
	}
	return e.percent(models.SettingLevelBonusPrefix+strconv.Itoa(level), DefaultLevelBonus[level])
}

// TaskReward is the amount credited for a task with the given base reward.
func (e *Engine) TaskReward(base int64, level int) (int64, error) {
	if base <= 0 {
		return 0, models.ErrInvalidAmount
	}
	pct, err := e.LevelBonusPercent(level)
	if err != nil {
		return 0, err
	}
	return ApplyBonus(base, pct), nil
}

// ReferralRate is the accrual percent for a referral depth.
func (e *Engine) ReferralRate(level int) (int64, error) {
	def, ok := DefaultReferralRate[level]
	if !ok {
		return 0, fmt.Errorf("unknown referral level %d", level)
	}
	return e.percent(models.SettingReferralPrefix+strconv.Itoa(level), def)
}

// ReferralRates reads all referral rates at once.
func (e *Engine) ReferralRates() (map[int]int64, error) {
	rates := make(map[int]int64, models.MaxReferralDepth)
	for level := 1; level <= models.MaxReferralDepth; level++ {
		rate, err := e.ReferralRate(level)
		if err != nil {
			return nil, err
		}
		rates[level] = rate
	}
	return rates, nil
}

// ReferralAccrual is the one-shot bonus paid on a referral edge.
func (e *Engine) ReferralAccrual(referredTotalEarned int64, level int) (int64, error) {
	rate, err := e.ReferralRate(level)
	if err != nil {
		return 0, err
	}
	return PercentOf(referredTotalEarned, rate), nil
}

// LevelUpgradeCost is the price of reaching targetLevel.
func (e *Engine) LevelUpgradeCost(targetLevel int) (int64, error) {
	def, ok := DefaultLevelUpgradeCost[targetLevel]
	if !ok {
		return 0, models.ErrInvalidLevelTransition
	}
	return e.amount(models.SettingLevelUpgradePrefix+strconv.Itoa(targetLevel), def)
}

// LevelUpgradeRequiresBalance reports whether reaching targetLevel costs anything.
func (e *Engine) LevelUpgradeRequiresBalance(targetLevel int) (bool, error) {
	cost, err := e.LevelUpgradeCost(targetLevel)
	if err != nil {
		return false, err
	}
	return cost > 0, nil
}

func (e *Engine) WelcomeBonus() (int64, error) {
	return e.amount(models.SettingWelcomeBonus, DefaultWelcomeBonus)
}

func (e *Engine) MinWithdrawal() (int64, error) {
	return e.amount(models.SettingMinWithdrawal, DefaultMinWithdrawal)
}

// ConversionRate is the configured USD -> USDT rate as a decimal string.
func (e *Engine) ConversionRate() (string, error) {
	value, ok, err := e.settings.GetSetting(models.SettingConversionRate)
	if err != nil {
		return "", err
	}
	if !ok {
		value = DefaultConversionRate
	}
	rate, err := money.ParseRate(value)
	if err != nil {
		return "", fmt.Errorf("setting %s: %w", models.SettingConversionRate, err)
	}
	return rate.String(), nil
}

func (e *Engine) amount(key string, def int64) (int64, error) {
	value, ok, err := e.settings.GetSetting(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	amount, err := money.ParseAmount(value)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("setting %s: must not be negative", key)
	}
	return amount, nil
}

func (e *Engine) percent(key string, def int64) (int64, error) {
	value, ok, err := e.settings.GetSetting(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	pct, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimSpace(value), "%"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s: invalid percent %q", key, value)
	}
	if pct < 0 {
		return 0, fmt.Errorf("setting %s: must not be negative", key)
	}
	return pct, nil
}

type settingKind int

const (
	kindAmount settingKind = iota
	kindPercent
	kindRate
)

// knownSettings maps every key the engine reads to how its value is parsed.
var knownSettings = func() map[string]settingKind {
	keys := map[string]settingKind{
		models.SettingWelcomeBonus:   kindAmount,
		models.SettingMinWithdrawal:  kindAmount,
		models.SettingConversionRate: kindRate,
	}
	for level := 1; level <= models.MaxLevel; level++ {
		n := strconv.Itoa(level)
		keys[models.SettingLevelUpgradePrefix+n] = kindAmount
		keys[models.SettingLevelBonusPrefix+n] = kindPercent
		keys[models.SettingReferralPrefix+n] = kindPercent
	}
	return keys
}()

// ValidateSetting checks that value parses for key, so a bad admin write
// cannot break later evaluations.
func ValidateSetting(key, value string) error {
	kind, ok := knownSettings[key]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownSetting, key)
	}
	check := NewEngine(staticSetting{key: key, value: value})
	var err error
	switch kind {
	case kindAmount:
		_, err = check.amount(key, 0)
	case kindPercent:
		_, err = check.percent(key, 0)
	case kindRate:
		_, err = check.ConversionRate()
	}
	return err
}

type staticSetting struct{ key, value string }

func (s staticSetting) GetSetting(key string) (string, bool, error) {
	return s.value, key == s.key, nil
}
