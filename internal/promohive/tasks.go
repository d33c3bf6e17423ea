package promohive

import (
	"context"
	"fmt"
	"strings"

	"github.com/promohive/rewards/internal/ledger"
	"github.com/promohive/rewards/internal/models"
)

// Ad networks whose completions are credited through webhooks.
var offerNetworks = map[string]bool{
	"adgem":    true,
	"adsterra": true,
	"cpalead":  true,
}

// IsOfferNetwork reports whether network is a supported ad network.
func IsOfferNetwork(network string) bool {
	return offerNetworks[network]
}

func (p *PromoHive) CreateTask(ctx context.Context, task *models.Task) error {
	if task.Reward <= 0 {
		return models.ErrInvalidAmount
	}
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title is required")
	}
	if task.Type == "" {
		task.Type = models.TaskManual
	}
	task.Active = true
	return p.repo.CreateTask(task)
}

func (p *PromoHive) ListTasks(activeOnly bool) ([]*models.Task, error) {
	return p.repo.ListTasks(activeOnly)
}

func (p *PromoHive) ListSubmissions(status models.RequestStatus, limit int) ([]*models.TaskSubmission, error) {
	return p.repo.ListSubmissions(status, limit)
}

// SubmitTask records a proof for an active manual task.
func (p *PromoHive) SubmitTask(ctx context.Context, userID, taskID int64, proof string) (*models.TaskSubmission, error) {
	if _, err := approvedUser(p.repo, userID); err != nil {
		return nil, err
	}
	task, err := p.repo.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if !task.Active || task.Type != models.TaskManual {
		return nil, models.ErrTaskNotFound
	}
	submission := &models.TaskSubmission{
		TaskID: taskID,
		UserID: userID,
		Proof:  strings.TrimSpace(proof),
		Status: models.RequestPending,
	}
	if err := p.repo.CreateSubmission(submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// ApproveSubmission credits the task reward with the user's level bonus.
func (p *PromoHive) ApproveSubmission(ctx context.Context, adminID, submissionID int64) (*models.TaskSubmission, error) {
	submission, err := p.repo.GetSubmission(submissionID)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.RequestPending {
		return nil, models.ErrAlreadyProcessed
	}
	task, err := p.repo.GetTask(submission.TaskID)
	if err != nil {
		return nil, err
	}
	user, err := p.repo.GetUser(submission.UserID)
	if err != nil {
		return nil, err
	}
	reward, err := p.rules.TaskReward(task.Reward, user.Level)
	if err != nil {
		return nil, err
	}

	submission.Status = models.RequestApproved
	submission.Reward = reward
	submission.ReviewedBy = adminID
	submission.ReviewedAt = p.timestamp()

	var wallet *models.Wallet
	err = p.repo.Transaction(ctx, func(tx models.Repository) error {
		ok, err := tx.FinishSubmission(submission)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrAlreadyProcessed
		}
		res, err := ledger.Credit(tx, user.ID, reward, true, ledger.Posting{
			Type:          models.EntryTaskReward,
			Description:   fmt.Sprintf("Task reward: %s", task.Title),
			ReferenceType: models.RefTaskSubmission,
			ReferenceID:   submission.ID,
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

	p.logger.Info("Task submission approved", "submission_id", submission.ID, "user_id", user.ID, "reward", reward, "admin_id", adminID)
	p.notify(&models.Event{
		Type:          models.EventTaskApproved,
		UserID:        user.ID,
		Amount:        reward,
		BalanceAfter:  wallet.Balance,
		ReferenceType: models.RefTaskSubmission,
		ReferenceID:   submission.ID,
		Detail:        task.Title,
	})
	return submission, nil
}

// RejectSubmission declines a proof; nothing is credited.
func (p *PromoHive) RejectSubmission(ctx context.Context, adminID, submissionID int64, reason string) (*models.TaskSubmission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.ErrReasonRequired
	}
	submission, err := p.repo.GetSubmission(submissionID)
	if err != nil {
		return nil, err
	}
	submission.Status = models.RequestRejected
	submission.RejectionReason = reason
	submission.ReviewedBy = adminID
	submission.ReviewedAt = p.timestamp()

	ok, err := p.repo.FinishSubmission(submission)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrAlreadyProcessed
	}

	p.notify(&models.Event{
		Type:          models.EventTaskRejected,
		UserID:        submission.UserID,
		ReferenceType: models.RefTaskSubmission,
		ReferenceID:   submission.ID,
		Detail:        reason,
	})
	return submission, nil
}

// CreditOffer pays an ad-network completion through the same path as a task
// approval. A repeated callback fails with ErrDuplicateOffer and pays nothing.
func (p *PromoHive) CreditOffer(ctx context.Context, callback *models.OfferCallback) (*models.OfferCompletion, error) {
	if !IsOfferNetwork(callback.Network) {
		return nil, fmt.Errorf("unknown offer network %q", callback.Network)
	}
	if strings.TrimSpace(callback.ExternalID) == "" {
		return nil, fmt.Errorf("offer external id is required")
	}
	if callback.Payout <= 0 {
		return nil, models.ErrInvalidAmount
	}
	user, err := approvedUser(p.repo, callback.UserID)
	if err != nil {
		return nil, err
	}
	if callback.TaskID != nil {
		if _, err := p.repo.GetTask(*callback.TaskID); err != nil {
			return nil, err
		}
	}
	reward, err := p.rules.TaskReward(callback.Payout, user.Level)
	if err != nil {
		return nil, err
	}

	completion := &models.OfferCompletion{
		Network:    callback.Network,
		ExternalID: strings.TrimSpace(callback.ExternalID),
		UserID:     user.ID,
		TaskID:     callback.TaskID,
		Payout:     callback.Payout,
		Reward:     reward,
	}
	var wallet *models.Wallet
	err = p.repo.Transaction(ctx, func(tx models.Repository) error {
		if err := tx.CreateOfferCompletion(completion); err != nil {
			return err
		}
		res, err := ledger.Credit(tx, user.ID, reward, true, ledger.Posting{
			Type:          models.EntryTaskReward,
			Description:   fmt.Sprintf("Offer completed on %s", completion.Network),
			ReferenceType: models.RefOfferCompletion,
			ReferenceID:   completion.ID,
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

	p.logger.Info("Offer credited", "network", completion.Network, "external_id", completion.ExternalID, "user_id", user.ID, "reward", reward)
	p.notify(&models.Event{
		Type:          models.EventOfferCredited,
		UserID:        user.ID,
		Amount:        reward,
		BalanceAfter:  wallet.Balance,
		ReferenceType: models.RefOfferCompletion,
		ReferenceID:   completion.ID,
		Detail:        completion.Network,
	})
	return completion, nil
}
