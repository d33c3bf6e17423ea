package models

type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
	UserStatusRejected UserStatus = "rejected"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// MaxLevel is the highest user tier.
const MaxLevel = 3

// TelegramLink is handed to a signed-in user to link a Telegram chat.
type TelegramLink struct {
	Token     string `json:"token"`
	Command   string `json:"command"`
	ExpiresAt int64  `json:"expires_at"`
}

// User is a platform member. Only the fields the ledger needs are kept here;
// credentials live with the auth layer.
type User struct {
	// ID is the unique identifier for the user.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Email is used for outbound notifications.
	Email string `json:"email" gorm:"column:email;uniqueIndex;not null"`
	// Username is the display name.
	Username string `json:"username" gorm:"column:username"`
	// ReferralCode is the code other users register with.
	ReferralCode string `json:"referral_code" gorm:"column:referral_code;uniqueIndex;size:16;not null"`
	// ReferredBy is the direct referrer, if any.
	ReferredBy *int64 `json:"referred_by,omitempty" gorm:"column:referred_by;index"`
	// Level is the user tier (0-3) scaling task rewards.
	Level int `json:"level" gorm:"column:level;not null;default:0"`
	// Status is the approval state of the account.
	Status UserStatus `json:"status" gorm:"column:status;size:16;not null;index"`
	// Role decides which admin capabilities the user has.
	Role Role `json:"role" gorm:"column:role;size:16;not null;default:user"`
	// TelegramChatID is set once the user links the bot.
	TelegramChatID string `json:"telegram_chat_id,omitempty" gorm:"column:telegram_chat_id"`
	// TelegramLinkToken is the one-time secret the bot accepts in "/start <token>".
	TelegramLinkToken string `json:"-" gorm:"column:telegram_link_token;size:64;index"`
	// TelegramLinkExpiresAt is the Unix timestamp after which the token is refused.
	TelegramLinkExpiresAt int64 `json:"-" gorm:"column:telegram_link_expires_at"`
	// CreatedAt is the Unix timestamp of registration.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	// ApprovedAt is the Unix timestamp of admin approval.
	ApprovedAt int64 `json:"approved_at,omitempty" gorm:"column:approved_at"`
}
