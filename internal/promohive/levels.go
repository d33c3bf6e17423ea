package promohive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/promohive/rewards/internal/ledger"
	"github.com/promohive/rewards/internal/models"
)

// RequestLevelUpgrade debits the upgrade cost and queues the request for an
// admin. Only upward moves up to models.MaxLevel are accepted.
func (p *PromoHive) RequestLevelUpgrade(ctx context.Context, userID int64, level int) (*models.LevelRequest, error) {
	user, err := approvedUser(p.repo, userID)
	if err != nil {
		return nil, err
	}
	if level <= user.Level || level > models.MaxLevel {
		return nil, models.ErrInvalidLevelTransition
	}
	cost, err := p.rules.LevelUpgradeCost(level)
	if err != nil {
		return nil, err
	}

	request := &models.LevelRequest{
		UserID:         userID,
		CurrentLevel:   user.Level,
		RequestedLevel: level,
		Cost:           cost,
		Status:         models.RequestPending,
	}
	err = p.repo.Transaction(ctx, func(tx models.Repository) error {
		pending, err := tx.HasPendingLevelRequest(userID)
		if err != nil {
			return err
		}
		if pending {
			return models.ErrLevelRequestPending
		}
		if err := tx.CreateLevelRequest(request); err != nil {
			return err
		}
		if cost == 0 {
			return nil
		}
		_, err = ledger.Debit(tx, userID, cost, ledger.Posting{
			Type:          models.EntryLevelUpgrade,
			Description:   fmt.Sprintf("Level %d upgrade", level),
			ReferenceType: models.RefLevelRequest,
			ReferenceID:   request.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Level upgrade requested", "request_id", request.ID, "user_id", userID, "level", level, "cost", cost)
	return request, nil
}

// ApproveLevelRequest raises the user to the requested level.
func (p *PromoHive) ApproveLevelRequest(ctx context.Context, adminID, requestID int64) (*models.LevelRequest, error) {
	var request *models.LevelRequest
	err := p.repo.Transaction(ctx, func(tx models.Repository) error {
		var err error
		request, err = p.finishLevelRequest(tx, requestID, func(r *models.LevelRequest) {
			r.Status = models.RequestApproved
			r.ProcessedBy = adminID
		})
		if err != nil {
			return err
		}
		return tx.SetUserLevel(request.UserID, request.RequestedLevel)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Level upgrade approved", "request_id", request.ID, "user_id", request.UserID, "level", request.RequestedLevel, "admin_id", adminID)
	p.notify(&models.Event{
		Type:          models.EventLevelApproved,
		UserID:        request.UserID,
		ReferenceType: models.RefLevelRequest,
		ReferenceID:   request.ID,
		Detail:        strconv.Itoa(request.RequestedLevel),
	})
	return request, nil
}

// RejectLevelRequest declines the request and refunds its cost. The refund is
// not counted as earnings.
func (p *PromoHive) RejectLevelRequest(ctx context.Context, adminID, requestID int64, reason string) (*models.LevelRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.ErrReasonRequired
	}

	var (
		request *models.LevelRequest
		balance int64
	)
	err := p.repo.Transaction(ctx, func(tx models.Repository) error {
		var err error
		request, err = p.finishLevelRequest(tx, requestID, func(r *models.LevelRequest) {
			r.Status = models.RequestRejected
			r.RejectionReason = reason
			r.ProcessedBy = adminID
		})
		if err != nil {
			return err
		}
		if request.Cost == 0 {
			wallet, err := tx.GetWallet(request.UserID)
			if err != nil {
				return err
			}
			balance = wallet.Balance
			return nil
		}
		res, err := ledger.Credit(tx, request.UserID, request.Cost, false, ledger.Posting{
			Type:          models.EntryLevelUpgrade,
			Description:   fmt.Sprintf("Level %d upgrade refunded", request.RequestedLevel),
			ReferenceType: models.RefLevelRequest,
			ReferenceID:   request.ID,
		})
		if err != nil {
			return err
		}
		balance = res.Wallet.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Level upgrade rejected", "request_id", request.ID, "user_id", request.UserID, "admin_id", adminID)
	p.notify(&models.Event{
		Type:          models.EventLevelRejected,
		UserID:        request.UserID,
		Amount:        request.Cost,
		BalanceAfter:  balance,
		ReferenceType: models.RefLevelRequest,
		ReferenceID:   request.ID,
		Detail:        reason,
	})
	return request, nil
}

func (p *PromoHive) finishLevelRequest(tx models.Repository, requestID int64, apply func(*models.LevelRequest)) (*models.LevelRequest, error) {
	request, err := tx.GetLevelRequest(requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, models.ErrAlreadyProcessed
	}
	apply(request)
	request.ProcessedAt = p.timestamp()

	ok, err := tx.FinishLevelRequest(request)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrAlreadyProcessed
	}
	return request, nil
}

func (p *PromoHive) ListLevelRequests(status models.RequestStatus, limit int) ([]*models.LevelRequest, error) {
	return p.repo.ListLevelRequests(status, limit)
}
