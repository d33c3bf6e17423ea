package models

import "context"

// NotificationService renders domain events for users. Implementations must not
// return errors to the caller: delivery failures are logged and dropped.
type NotificationService interface {
	Notify(event *Event)
}

// EventPublisher ships domain events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// RateProvider supplies the USD -> USDT conversion rate as a decimal string.
type RateProvider interface {
	Rate() (string, error)
}
