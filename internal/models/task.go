package models

type TaskType string

const (
	TaskManual TaskType = "manual"
	TaskOffer  TaskType = "offer"
)

// Task is something users complete for a base reward (minor units).
type Task struct {
	ID          int64    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Title       string   `json:"title" gorm:"column:title;not null"`
	Description string   `json:"description" gorm:"column:description"`
	Reward      int64    `json:"reward" gorm:"column:reward;not null"`
	Type        TaskType `json:"type" gorm:"column:type;size:16;not null;default:manual"`
	Active      bool     `json:"active" gorm:"column:active;not null;default:true"`
	CreatedAt   int64    `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TaskSubmission is a user's proof of completing a manual task. A user holds
// at most one pending or approved submission per task; a rejected one may be
// submitted again.
type TaskSubmission struct {
	ID              int64         `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	TaskID          int64         `json:"task_id" gorm:"column:task_id;not null;index;uniqueIndex:idx_submissions_active,priority:1,where:status <> 'rejected'"`
	UserID          int64         `json:"user_id" gorm:"column:user_id;not null;index;uniqueIndex:idx_submissions_active,priority:2,where:status <> 'rejected'"`
	Proof           string        `json:"proof" gorm:"column:proof"`
	Status          RequestStatus `json:"status" gorm:"column:status;size:16;not null;index"`
	Reward          int64         `json:"reward" gorm:"column:reward;not null;default:0"`
	RejectionReason string        `json:"rejection_reason,omitempty" gorm:"column:rejection_reason"`
	ReviewedBy      int64         `json:"reviewed_by,omitempty" gorm:"column:reviewed_by"`
	CreatedAt       int64         `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	ReviewedAt      int64         `json:"reviewed_at,omitempty" gorm:"column:reviewed_at"`
}

// OfferCompletion records an ad-network callback so each external id pays once.
type OfferCompletion struct {
	ID         int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Network    string `json:"network" gorm:"column:network;size:16;not null;uniqueIndex:idx_offer_external,priority:1"`
	ExternalID string `json:"external_id" gorm:"column:external_id;not null;uniqueIndex:idx_offer_external,priority:2"`
	UserID     int64  `json:"user_id" gorm:"column:user_id;not null;index"`
	TaskID     *int64 `json:"task_id,omitempty" gorm:"column:task_id"`
	Payout     int64  `json:"payout" gorm:"column:payout;not null"`
	Reward     int64  `json:"reward" gorm:"column:reward;not null"`
	CreatedAt  int64  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}
