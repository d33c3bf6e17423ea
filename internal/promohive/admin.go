package promohive

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/promohive/rewards/internal/ledger"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/internal/rules"
)

// AdjustBalance credits (amount > 0) or debits (amount < 0) a wallet by hand.
// Adjustments never count as earnings.
func (p *PromoHive) AdjustBalance(ctx context.Context, adminID, userID, amount int64, reason string) (*models.Wallet, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.ErrReasonRequired
	}
	if amount == 0 {
		return nil, models.ErrInvalidAmount
	}

	posting := ledger.Posting{
		Type:          models.EntryAdminAdjustment,
		Description:   "Admin adjustment: " + reason,
		ReferenceType: models.RefAdmin,
		ReferenceID:   adminID,
	}
	var wallet *models.Wallet
	err := p.repo.Transaction(ctx, func(tx models.Repository) error {
		var (
			res *ledger.Result
			err error
		)
		if amount > 0 {
			res, err = ledger.Credit(tx, userID, amount, false, posting)
		} else {
			res, err = ledger.Debit(tx, userID, -amount, posting)
		}
		if err != nil {
			return err
		}
		wallet = res.Wallet
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Balance adjusted", "user_id", userID, "amount", amount, "admin_id", adminID, "reason", reason)
	p.notify(&models.Event{
		Type:          models.EventBalanceAdjusted,
		UserID:        userID,
		Amount:        amount,
		BalanceAfter:  wallet.Balance,
		ReferenceType: models.RefAdmin,
		ReferenceID:   adminID,
		Detail:        reason,
	})
	return wallet, nil
}

func (p *PromoHive) ListSettings() ([]*models.Setting, error) {
	return p.repo.ListSettings()
}

// UpdateSetting stores a new value after checking that the rules engine can
// parse it.
func (p *PromoHive) UpdateSetting(key, value string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if err := rules.ValidateSetting(key, value); err != nil {
		return err
	}
	if err := p.repo.SetSetting(key, value); err != nil {
		return err
	}
	p.logger.Info("Setting updated", "key", key, "value", value)
	return nil
}

type settingsFile struct {
	Settings map[string]interface{} `yaml:"settings"`
}

// SeedSettings inserts the settings of a YAML file that are not stored yet.
// Existing values are left untouched.
//
//	settings:
//	  WELCOME_BONUS: 500
//	  USDT_CONVERSION_RATE: "0.98"
func (p *PromoHive) SeedSettings(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	var file settingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	keys := make([]string, 0, len(file.Settings))
	for key := range file.Settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(fmt.Sprint(file.Settings[key]))
		name := strings.ToUpper(strings.TrimSpace(key))
		if err := rules.ValidateSetting(name, value); err != nil {
			return fmt.Errorf("settings file: %w", err)
		}
		if err := p.repo.EnsureSetting(name, value); err != nil {
			return err
		}
	}
	p.logger.Info("Settings seeded", "file", path, "count", len(keys))
	return nil
}
