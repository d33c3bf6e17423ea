package promohive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/promohive/rewards/internal/ledger"
	"github.com/promohive/rewards/internal/metrics"
	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/money"
	"github.com/promohive/rewards/pkg/validation"
)

const cancelledByUser = "cancelled by user"

// RequestWithdrawal reserves amount from the balance and opens a pending
// payout. A user has at most one pending withdrawal.
func (p *PromoHive) RequestWithdrawal(ctx context.Context, req *models.WithdrawalRequest) (*models.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	minimum, err := p.rules.MinWithdrawal()
	if err != nil {
		return nil, err
	}
	if req.Amount < minimum {
		return nil, models.ErrBelowMinimum
	}
	network := models.Network(strings.ToUpper(string(req.Network)))
	address, err := validation.ValidateAndNormalizeAddress(string(network), req.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidAddress, err)
	}
	if _, err := approvedUser(p.repo, req.UserID); err != nil {
		return nil, err
	}
	rateText, err := p.rates.Rate()
	if err != nil {
		return nil, err
	}
	rate, err := money.ParseRate(rateText)
	if err != nil {
		return nil, err
	}

	withdrawal := &models.Withdrawal{
		UserID:         req.UserID,
		Amount:         req.Amount,
		USDTAmount:     money.Convert(req.Amount, rate),
		ConversionRate: rate.String(),
		WalletAddress:  address,
		Network:        network,
		Status:         models.WithdrawalPending,
	}
	var wallet *models.Wallet
	err = p.repo.Transaction(ctx, func(tx models.Repository) error {
		pending, err := tx.HasPendingWithdrawal(req.UserID)
		if err != nil {
			return err
		}
		if pending {
			return models.ErrWithdrawalAlreadyPending
		}
		// the row is inserted first so the reservation can reference it; a
		// failed reservation rolls it back
		if err := tx.CreateWithdrawal(withdrawal); err != nil {
			return err
		}
		res, err := ledger.Reserve(tx, req.UserID, req.Amount, ledger.Posting{
			Type:          models.EntryWithdrawal,
			Description:   fmt.Sprintf("Withdrawal to %s (%s)", address, network),
			ReferenceType: models.RefWithdrawal,
			ReferenceID:   withdrawal.ID,
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

	metrics.WithdrawalsTotal.WithLabelValues(string(models.WithdrawalPending)).Inc()
	p.logger.Info("Withdrawal requested", "withdrawal_id", withdrawal.ID, "user_id", req.UserID, "amount", req.Amount, "network", network)
	p.notify(&models.Event{
		Type:          models.EventWithdrawalRequested,
		UserID:        req.UserID,
		Amount:        req.Amount,
		BalanceAfter:  wallet.Balance,
		ReferenceType: models.RefWithdrawal,
		ReferenceID:   withdrawal.ID,
	})
	return withdrawal, nil
}

// ApproveWithdrawal settles a pending withdrawal; the reserved amount moves to
// total withdrawn.
func (p *PromoHive) ApproveWithdrawal(ctx context.Context, adminID, withdrawalID int64, txHash string) (*models.Withdrawal, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, models.ErrTxHashRequired
	}
	return p.finishWithdrawal(ctx, withdrawalID, 0, func(w *models.Withdrawal) {
		w.Status = models.WithdrawalCompleted
		w.TxHash = txHash
		w.ProcessedBy = adminID
	})
}

// RejectWithdrawal refunds a pending withdrawal to the balance.
func (p *PromoHive) RejectWithdrawal(ctx context.Context, adminID, withdrawalID int64, reason string) (*models.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.ErrReasonRequired
	}
	return p.finishWithdrawal(ctx, withdrawalID, 0, func(w *models.Withdrawal) {
		w.Status = models.WithdrawalRejected
		w.RejectionReason = reason
		w.ProcessedBy = adminID
	})
}

// CancelWithdrawal lets a user withdraw their own pending request; the effect
// is the same as a rejection.
func (p *PromoHive) CancelWithdrawal(ctx context.Context, userID, withdrawalID int64) (*models.Withdrawal, error) {
	return p.finishWithdrawal(ctx, withdrawalID, userID, func(w *models.Withdrawal) {
		w.Status = models.WithdrawalRejected
		w.RejectionReason = cancelledByUser
	})
}

// finishWithdrawal moves a pending withdrawal to its terminal state and
// releases the reservation accordingly. ownerID, when set, restricts the
// operation to that user's withdrawals.
func (p *PromoHive) finishWithdrawal(ctx context.Context, withdrawalID, ownerID int64, apply func(*models.Withdrawal)) (*models.Withdrawal, error) {
	var (
		withdrawal *models.Withdrawal
		wallet     *models.Wallet
	)
	err := p.repo.Transaction(ctx, func(tx models.Repository) error {
		var err error
		withdrawal, err = tx.GetWithdrawal(withdrawalID)
		if err != nil {
			return err
		}
		if ownerID != 0 && withdrawal.UserID != ownerID {
			return models.ErrWithdrawalNotFound
		}
		if withdrawal.Status.IsTerminal() {
			return models.ErrAlreadyProcessed
		}

		from := withdrawal.Status
		apply(withdrawal)
		if !from.CanTransition(withdrawal.Status) {
			return models.ErrAlreadyProcessed
		}
		withdrawal.ProcessedAt = p.timestamp()

		ok, err := tx.FinishWithdrawal(withdrawal)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrAlreadyProcessed
		}

		dest, description := ledger.ToWithdrawn, "Withdrawal sent: "+withdrawal.TxHash
		if withdrawal.Status == models.WithdrawalRejected {
			dest, description = ledger.ToBalance, "Withdrawal refunded: "+withdrawal.RejectionReason
		}
		res, err := ledger.Release(tx, withdrawal.UserID, withdrawal.Amount, dest, ledger.Posting{
			Type:          models.EntryWithdrawal,
			Description:   description,
			ReferenceType: models.RefWithdrawal,
			ReferenceID:   withdrawal.ID,
		})
		if err != nil {
			return err
		}
		wallet = res.Wallet
		return nil
	})
	log := p.logger.With("withdrawal_id", withdrawalID)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientBalance) {
			// pending balance below the withdrawal amount means the ledger drifted
			log.Error("Reserved funds missing for withdrawal", "error", err)
		}
		return nil, err
	}

	metrics.WithdrawalsTotal.WithLabelValues(string(withdrawal.Status)).Inc()
	event := &models.Event{
		UserID:        withdrawal.UserID,
		Amount:        withdrawal.Amount,
		BalanceAfter:  wallet.Balance,
		ReferenceType: models.RefWithdrawal,
		ReferenceID:   withdrawal.ID,
	}
	if withdrawal.Status == models.WithdrawalCompleted {
		event.Type, event.Detail = models.EventWithdrawalCompleted, withdrawal.TxHash
	} else {
		event.Type, event.Detail = models.EventWithdrawalRejected, withdrawal.RejectionReason
	}
	log.Info("Withdrawal processed", "status", withdrawal.Status, "processed_by", withdrawal.ProcessedBy)
	p.notify(event)
	return withdrawal, nil
}

func (p *PromoHive) ListWithdrawals(userID int64, status models.WithdrawalStatus, limit int) ([]*models.Withdrawal, error) {
	return p.repo.ListWithdrawals(userID, status, limit)
}
