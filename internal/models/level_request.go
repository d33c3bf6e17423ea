package models

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// LevelRequest asks an admin to raise a user's tier. Cost is debited on request
// and refunded on rejection.
type LevelRequest struct {
	ID              int64         `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserID          int64         `json:"user_id" gorm:"column:user_id;not null;index"`
	CurrentLevel    int           `json:"current_level" gorm:"column:current_level;not null"`
	RequestedLevel  int           `json:"requested_level" gorm:"column:requested_level;not null"`
	Cost            int64         `json:"cost" gorm:"column:cost;not null"`
	Status          RequestStatus `json:"status" gorm:"column:status;size:16;not null;index"`
	RejectionReason string        `json:"rejection_reason,omitempty" gorm:"column:rejection_reason"`
	ProcessedBy     int64         `json:"processed_by,omitempty" gorm:"column:processed_by"`
	CreatedAt       int64         `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	ProcessedAt     int64         `json:"processed_at,omitempty" gorm:"column:processed_at"`
}
