package notificator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/promohive/rewards/internal/models"
	"github.com/promohive/rewards/pkg/logger"
	"github.com/promohive/rewards/pkg/money"
)

const publishTimeout = 5 * time.Second

// Sender delivers one rendered notification to a recipient address.
type Sender interface {
	SendNotification(to string, notification *models.Notification) error
}

// Notificator fans a committed event out to the in-app feed, the event bus and
// the user's linked channels. Nothing here reports failure to the caller.
type Notificator struct {
	logger    *logger.Logger
	db        models.Repository
	publisher models.EventPublisher

	TelegramNotificator Sender
	EmailNotificator    Sender

	wg sync.WaitGroup
}

func NewNotificator(logger *logger.Logger, db models.Repository, publisher models.EventPublisher, telNotif, emailNotif Sender) *Notificator {
	return &Notificator{
		logger:              logger.Named("notificator"),
		db:                  db,
		publisher:           publisher,
		TelegramNotificator: telNotif,
		EmailNotificator:    emailNotif,
	}
}

// Notify dispatches the event on its own goroutine.
func (n *Notificator) Notify(event *models.Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.safeCall(func() { n.Dispatch(event) }, "dispatch")
	}()
}

// Wait blocks until every dispatched event has been delivered or dropped.
func (n *Notificator) Wait() {
	n.wg.Wait()
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), where string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", where,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Dispatch delivers the event synchronously.
func (n *Notificator) Dispatch(event *models.Event) {
	notification := &models.Notification{
		UserID:  event.UserID,
		Kind:    event.Type,
		Title:   event.Title(),
		Message: Render(event),
	}
	if err := n.db.CreateNotification(notification); err != nil {
		n.logger.Error("Failed to store notification", "user_id", event.UserID, "type", event.Type, "error", err)
	}

	if n.publisher != nil {
		n.safeCall(func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := n.publisher.Publish(ctx, event); err != nil {
				n.logger.Error("Failed to publish event", "type", event.Type, "user_id", event.UserID, "error", err)
			}
		}, "publishEvent")
	}

	if n.TelegramNotificator == nil && n.EmailNotificator == nil {
		return
	}
	user, err := n.db.GetUser(event.UserID)
	if err != nil {
		n.logger.Error("Failed to load user for notification", "user_id", event.UserID, "error", err)
		return
	}
	if n.TelegramNotificator != nil && user.TelegramChatID != "" {
		chatID := user.TelegramChatID
		n.safeCall(func() {
			if err := n.TelegramNotificator.SendNotification(chatID, notification); err != nil {
				n.logger.Error("Failed to send telegram notification", "user_id", user.ID, "error", err)
			}
		}, "telegramNotification")
	}
	if n.EmailNotificator != nil && user.Email != "" {
		email := user.Email
		n.safeCall(func() {
			if err := n.EmailNotificator.SendNotification(email, notification); err != nil {
				n.logger.Error("Failed to send email notification", "user_id", user.ID, "error", err)
			}
		}, "emailNotification")
	}
}

// Render builds the human readable body for an event.
func Render(event *models.Event) string {
	amount := money.FormatCents(event.Amount)
	balance := money.FormatCents(event.BalanceAfter)
	switch event.Type {
	case models.EventUserApproved:
		if event.Amount > 0 {
			return fmt.Sprintf("Welcome aboard! A bonus of %s has been added to your balance.", amount)
		}
		return "Welcome aboard!"
	case models.EventTaskApproved:
		return fmt.Sprintf("You earned %s. Balance: %s.", amount, balance)
	case models.EventTaskRejected:
		return fmt.Sprintf("Your task submission was rejected: %s", event.Detail)
	case models.EventOfferCredited:
		return fmt.Sprintf("You earned %s from %s. Balance: %s.", amount, event.Detail, balance)
	case models.EventReferralCredited:
		return fmt.Sprintf("Referral bonus of %s credited. Balance: %s.", amount, balance)
	case models.EventWithdrawalRequested:
		return fmt.Sprintf("Your withdrawal of %s is waiting for review.", amount)
	case models.EventWithdrawalCompleted:
		return fmt.Sprintf("Your withdrawal of %s has been sent. Transaction: %s", amount, event.Detail)
	case models.EventWithdrawalRejected:
		return fmt.Sprintf("Your withdrawal of %s was returned to your balance: %s", amount, event.Detail)
	case models.EventLevelApproved:
		return fmt.Sprintf("You are now level %s.", event.Detail)
	case models.EventLevelRejected:
		return fmt.Sprintf("Your level upgrade was declined and %s refunded: %s", amount, event.Detail)
	case models.EventBalanceAdjusted:
		return fmt.Sprintf("Your balance was adjusted by %s: %s. Balance: %s.", amount, event.Detail, balance)
	}
	return fmt.Sprintf("%s (%s)", event.Title(), amount)
}
