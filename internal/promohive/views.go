package promohive

import (
	"github.com/promohive/rewards/internal/ledger"
	"github.com/promohive/rewards/internal/models"
)

func (p *PromoHive) GetWallet(userID int64) (*models.Wallet, error) {
	return p.repo.GetWallet(userID)
}

// ListLedger returns the user's ledger newest-first.
func (p *PromoHive) ListLedger(userID int64, limit int) ([]*models.LedgerEntry, error) {
	return ledger.ListFor(p.repo, userID, limit)
}

// ListReferrals returns the edges where the user is the referrer.
func (p *PromoHive) ListReferrals(userID int64) ([]*models.Referral, error) {
	return p.repo.ListReferralsByReferrer(userID)
}

func (p *PromoHive) ListNotifications(userID int64, limit int) ([]*models.Notification, error) {
	return p.repo.ListNotifications(userID, limit)
}

func (p *PromoHive) MarkNotificationRead(userID, notificationID int64) error {
	return p.repo.MarkNotificationRead(userID, notificationID)
}
