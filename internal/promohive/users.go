package promohive

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promohive/rewards/internal/ledger"
	"github.com/promohive/rewards/internal/models"
)

const (
	referralCodeLength     = 8
	defaultTelegramLinkTTL = 15 * time.Minute
)

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:referralCodeLength])
}

// RegisterUser creates a pending account with an empty wallet. A referral code
// links the user to up to three ancestors, nearest first.
func (p *PromoHive) RegisterUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, models.ErrInvalidEmail
	}
	user := &models.User{
		Email:        email,
		Username:     strings.TrimSpace(req.Username),
		ReferralCode: newReferralCode(),
		Status:       models.UserStatusPending,
		Role:         models.RoleUser,
	}

	err := p.repo.Transaction(ctx, func(tx models.Repository) error {
		var referrer *models.User
		if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
			var err error
			referrer, err = tx.GetUserByReferralCode(code)
			if errors.Is(err, models.ErrUserNotFound) {
				return models.ErrInvalidReferralCode
			}
			if err != nil {
				return err
			}
			user.ReferredBy = &referrer.ID
		}

		if err := tx.CreateUser(user); err != nil {
			return err
		}
		if err := tx.CreateWallet(&models.Wallet{UserID: user.ID}); err != nil {
			return err
		}

		ancestor := referrer
		for level := 1; ancestor != nil && level <= models.MaxReferralDepth; level++ {
			edge := &models.Referral{ReferrerID: ancestor.ID, ReferredID: user.ID, Level: level}
			if err := tx.CreateReferral(edge); err != nil {
				return err
			}
			if ancestor.ReferredBy == nil {
				break
			}
			next, err := tx.GetUser(*ancestor.ReferredBy)
			if err != nil {
				return err
			}
			ancestor = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("User registered", "user_id", user.ID, "referred_by", user.ReferredBy)
	return user, nil
}

// ApproveUser activates a pending account and credits the welcome bonus.
func (p *PromoHive) ApproveUser(ctx context.Context, adminID, userID int64) (*models.Wallet, error) {
	bonus, err := p.rules.WelcomeBonus()
	if err != nil {
		return nil, err
	}

	var wallet *models.Wallet
	err = p.repo.Transaction(ctx, func(tx models.Repository) error {
		if err := p.transitionUser(tx, userID, models.UserStatusApproved); err != nil {
			return err
		}
		if bonus == 0 {
			var err error
			wallet, err = tx.GetWallet(userID)
			return err
		}
		res, err := ledger.Credit(tx, userID, bonus, true, ledger.Posting{
			Type:          models.EntryBonus,
			Description:   "Welcome bonus",
			ReferenceType: models.RefUser,
			ReferenceID:   userID,
		})
		if err != nil {
			return err
		}
		wallet = res.Wallet
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("User approved", "user_id", userID, "admin_id", adminID, "bonus", bonus)
	p.notify(&models.Event{
		Type:          models.EventUserApproved,
		UserID:        userID,
		Amount:        bonus,
		BalanceAfter:  wallet.Balance,
		ReferenceType: models.RefUser,
		ReferenceID:   userID,
	})
	return wallet, nil
}

// RejectUser declines a pending account.
func (p *PromoHive) RejectUser(ctx context.Context, adminID, userID int64) error {
	err := p.repo.Transaction(ctx, func(tx models.Repository) error {
		return p.transitionUser(tx, userID, models.UserStatusRejected)
	})
	if err != nil {
		return err
	}
	p.logger.Info("User rejected", "user_id", userID, "admin_id", adminID)
	return nil
}

func (p *PromoHive) transitionUser(tx models.Repository, userID int64, to models.UserStatus) error {
	ok, err := tx.UpdateUserStatus(userID, models.UserStatusPending, to, p.timestamp())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := tx.GetUser(userID); err != nil {
		return err
	}
	return models.ErrAlreadyProcessed
}

// CreateTelegramLink issues a one-time token the user sends to the bot as
// "/start <token>". A new link replaces any earlier one.
func (p *PromoHive) CreateTelegramLink(ctx context.Context, userID int64) (*models.TelegramLink, error) {
	if _, err := p.repo.GetUser(userID); err != nil {
		return nil, err
	}
	ttl := p.config.TelegramLinkTTL
	if ttl <= 0 {
		ttl = defaultTelegramLinkTTL
	}
	link := &models.TelegramLink{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		ExpiresAt: p.now().Add(ttl).Unix(),
	}
	link.Command = "/start " + link.Token
	if err := p.repo.SetTelegramLinkToken(userID, link.Token, link.ExpiresAt); err != nil {
		return nil, err
	}
	p.logger.Info("Telegram link issued", "user_id", userID, "expires_at", link.ExpiresAt)
	return link, nil
}

func (p *PromoHive) GetUser(userID int64) (*models.User, error) {
	return p.repo.GetUser(userID)
}

func (p *PromoHive) ListUsers(status models.UserStatus, limit int) ([]*models.User, error) {
	return p.repo.ListUsers(status, limit)
}

// approvedUser loads a user that may earn and spend.
func approvedUser(repo models.Repository, userID int64) (*models.User, error) {
	user, err := repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user.Status != models.UserStatusApproved {
		return nil, models.ErrUserNotApproved
	}
	return user, nil
}
