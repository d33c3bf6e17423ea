package promohive

import (
	"context"
	"errors"
	"time"

	"github.com/promohive/rewards/internal/accrual"
	"github.com/promohive/rewards/internal/config"
	"github.com/promohive/rewards/internal/ledger"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/internal/rules"
	"github.com/promohive/rewards/pkg/logger"
)

// PromoHive is the main struct for the rewards service.
// It owns every wallet mutation: each operation asks the rules engine for an
// amount, writes the wallet change and its ledger entry in one transaction and
// notifies after commit.
type PromoHive struct {
	logger *logger.Logger
	config *config.Config

	repo        models.Repository
	rules       *rules.Engine
	rates       models.RateProvider
	notificator models.NotificationService
	accrual     *accrual.Job

	now func() time.Time
}

// NewPromoHive creates a new PromoHive instance. rates may be nil, in which
// case the USDT_CONVERSION_RATE setting is used directly.
func NewPromoHive(
	repo models.Repository,
	notificator models.NotificationService,
	rates models.RateProvider,
	logger *logger.Logger,
	config *config.Config,
) *PromoHive {
	engine := rules.NewEngine(repo)
	if rates == nil {
		rates = settingsRate{engine}
	}
	return &PromoHive{
		logger:      logger.Named("promohive"),
		config:      config,
		repo:        repo,
		rules:       engine,
		rates:       rates,
		notificator: notificator,
		accrual:     accrual.NewJob(repo, engine, notificator, logger, config.InstanceID, config.AccrualLockTTL),
		now:         time.Now,
	}
}

var _ models.PromoHive = (*PromoHive)(nil)

type settingsRate struct{ engine *rules.Engine }

func (s settingsRate) Rate() (string, error) { return s.engine.ConversionRate() }

// Start runs the referral accrual on ACCRUAL_INTERVAL until ctx is cancelled.
func (p *PromoHive) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.AccrualInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.logger.Debug("Running scheduled referral accrual")
			if _, err := p.RunAccrual(ctx); err != nil && !errors.Is(err, models.ErrAccrualRunning) {
				p.logger.Error("Scheduled referral accrual failed", "error", err)
			}
		case <-ctx.Done():
			p.logger.Info("Accrual scheduler stopped")
			return
		}
	}
}

// RunAccrual runs the referral accrual job once.
func (p *PromoHive) RunAccrual(ctx context.Context) (models.AccrualSummary, error) {
	return p.accrual.Run(ctx)
}

// Reconcile replays a user's ledger against the stored wallet.
func (p *PromoHive) Reconcile(userID int64) (models.Totals, error) {
	totals, err := ledger.Reconcile(p.repo, userID)
	if errors.Is(err, models.ErrLedgerMismatch) {
		p.logger.Error("Ledger does not match wallet", "user_id", userID, "error", err)
	}
	return totals, err
}

func (p *PromoHive) timestamp() int64 {
	return p.now().Unix()
}

// notify hands committed events to the notification layer.
func (p *PromoHive) notify(events ...*models.Event) {
	for _, event := range events {
		if event == nil {
			continue
		}
		if event.Timestamp == 0 {
			event.Timestamp = p.timestamp()
		}
		p.notificator.Notify(event)
	}
}
