// Package accrual credits one-shot referral bonuses.
//
// An unpaid edge qualifies once the referred user has earned anything. Each
// edge is its own transaction: the edge is flipped to paid with a conditional
// update and the referrer is credited in the same commit, so a rerun or a
// concurrent runner can never pay an edge twice.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/promohive/rewards/internal/ledger"
	"github.com/promohive/rewards/internal/metrics"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/internal/rules"
	"github.com/promohive/rewards/pkg/logger"
)

type Summary = models.AccrualSummary

var errAlreadyPaid = errors.New("referral already paid")

type Job struct {
	logger   *logger.Logger
	repo     models.Repository
	rules    *rules.Engine
	notifier models.NotificationService

	instanceID string
	lockTTL    time.Duration

	mu sync.Mutex
}

func NewJob(repo models.Repository, engine *rules.Engine, notifier models.NotificationService, logger *logger.Logger, instanceID string, lockTTL time.Duration) *Job {
	return &Job{
		logger:     logger.Named("accrual"),
		repo:       repo,
		rules:      engine,
		notifier:   notifier,
		instanceID: instanceID,
		lockTTL:    lockTTL,
	}
}

// Run processes every qualifying edge once. It fails with ErrAccrualRunning
// when another run holds the lock, in this process or elsewhere.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	if !j.mu.TryLock() {
		metrics.AccrualRunsTotal.WithLabelValues("locked").Inc()
		return summary, models.ErrAccrualRunning
	}
	defer j.mu.Unlock()

	acquired, err := j.repo.AcquireLock(models.AccrualLockName, j.instanceID, j.lockTTL)
	if err != nil {
		metrics.AccrualRunsTotal.WithLabelValues("error").Inc()
		return summary, err
	}
	if !acquired {
		metrics.AccrualRunsTotal.WithLabelValues("locked").Inc()
		return summary, models.ErrAccrualRunning
	}
	defer func() {
		if err := j.repo.ReleaseLock(models.AccrualLockName, j.instanceID); err != nil {
			j.logger.Error("Failed to release accrual lock", "error", err)
		}
	}()

	rates, err := j.rules.ReferralRates()
	if err != nil {
		metrics.AccrualRunsTotal.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("failed to read referral rates: %w", err)
	}

	candidates, err := j.repo.ListAccrualCandidates()
	if err != nil {
		metrics.AccrualRunsTotal.WithLabelValues("error").Inc()
		return summary, err
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			metrics.AccrualRunsTotal.WithLabelValues("cancelled").Inc()
			return summary, err
		}
		summary.Scanned++

		event, err := j.accrue(ctx, candidate, rates)
		switch {
		case errors.Is(err, errAlreadyPaid):
			summary.Skipped++
			metrics.AccrualEdgesTotal.WithLabelValues("skipped").Inc()
		case err != nil:
			summary.Failed++
			metrics.AccrualEdgesTotal.WithLabelValues("failed").Inc()
			j.logger.Error("Failed to accrue referral bonus",
				"referral_id", candidate.ID,
				"referrer_id", candidate.ReferrerID,
				"error", err)
		case event == nil:
			// paid out at zero: the referred user's earnings were too small
			summary.Skipped++
			metrics.AccrualEdgesTotal.WithLabelValues("zero").Inc()
		default:
			summary.Credited++
			summary.Total += event.Amount
			metrics.AccrualEdgesTotal.WithLabelValues("credited").Inc()
			j.notifier.Notify(event)
		}
	}

	metrics.AccrualRunsTotal.WithLabelValues("ok").Inc()
	j.logger.Info("Referral accrual finished",
		"scanned", summary.Scanned,
		"credited", summary.Credited,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"total", summary.Total)
	return summary, nil
}

// accrue settles one edge. It returns the event to emit, or nil when the bonus
// rounded down to zero.
func (j *Job) accrue(ctx context.Context, candidate *models.AccrualCandidate, rates map[int]int64) (*models.Event, error) {
	rate, ok := rates[candidate.Level]
	if !ok {
		return nil, fmt.Errorf("referral %d has invalid level %d", candidate.ID, candidate.Level)
	}
	bonus := rules.PercentOf(candidate.ReferredTotalEarned, rate)
	now := time.Now().Unix()

	var event *models.Event
	err := j.repo.Transaction(ctx, func(tx models.Repository) error {
		marked, err := tx.MarkReferralPaid(candidate.ID, bonus, now)
		if err != nil {
			return err
		}
		if !marked {
			return errAlreadyPaid
		}
		if bonus == 0 {
			return nil
		}
		res, err := ledger.Credit(tx, candidate.ReferrerID, bonus, true, ledger.Posting{
			Type:          models.EntryReferralReward,
			Description:   fmt.Sprintf("Level %d referral bonus for user %d", candidate.Level, candidate.ReferredID),
			ReferenceType: models.RefReferral,
			ReferenceID:   candidate.ID,
		})
		if err != nil {
			return err
		}
		event = &models.Event{
			Type:          models.EventReferralCredited,
			UserID:        candidate.ReferrerID,
			Amount:        bonus,
			BalanceAfter:  res.Wallet.Balance,
			ReferenceType: models.RefReferral,
			ReferenceID:   candidate.ID,
			Detail:        fmt.Sprintf("level %d", candidate.Level),
			Timestamp:     now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}
