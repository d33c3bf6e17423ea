package models

import "fmt"

type EventType string

const (
	EventUserApproved        EventType = "user.approved"
	EventTaskApproved        EventType = "task.approved"
	EventTaskRejected        EventType = "task.rejected"
	EventOfferCredited       EventType = "offer.credited"
	EventReferralCredited    EventType = "referral.credited"
	EventWithdrawalRequested EventType = "withdrawal.requested"
	EventWithdrawalCompleted EventType = "withdrawal.completed"
	EventWithdrawalRejected  EventType = "withdrawal.rejected"
	EventLevelApproved       EventType = "level.approved"
	EventLevelRejected       EventType = "level.rejected"
	EventBalanceAdjusted     EventType = "balance.adjusted"
)

// Event is a domain event emitted after a ledger mutation commits.
type Event struct {
	Type          EventType `json:"event_type"`
	UserID        int64     `json:"user_id"`
	Amount        int64     `json:"amount"`
	BalanceAfter  int64     `json:"balance_after"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceID   int64     `json:"reference_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     int64     `json:"timestamp"`
}

// Title is the short headline used for the in-app feed and email subject.
func (e *Event) Title() string {
	switch e.Type {
	case EventUserApproved:
		return "Your account has been approved"
	case EventTaskApproved:
		return "Task approved"
	case EventTaskRejected:
		return "Task rejected"
	case EventOfferCredited:
		return "Offer reward credited"
	case EventReferralCredited:
		return "Referral bonus credited"
	case EventWithdrawalRequested:
		return "Withdrawal requested"
	case EventWithdrawalCompleted:
		return "Withdrawal completed"
	case EventWithdrawalRejected:
		return "Withdrawal rejected"
	case EventLevelApproved:
		return "Level upgrade approved"
	case EventLevelRejected:
		return "Level upgrade rejected"
	case EventBalanceAdjusted:
		return "Balance adjusted"
	}
	return "Notification"
}

// Notification is an entry of the in-app notification feed.
type Notification struct {
	ID        int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id" gorm:"column:user_id;not null;index"`
	Kind      EventType `json:"kind" gorm:"column:kind;size:32;not null"`
	Title     string    `json:"title" gorm:"column:title;not null"`
	Message   string    `json:"message" gorm:"column:message"`
	Read      bool      `json:"read" gorm:"column:read;not null;default:false"`
	CreatedAt int64     `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) String() string {
	return fmt.Sprintf("%s\n%s", n.Title, n.Message)
}
