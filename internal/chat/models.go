package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Session struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID        string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"session_id"`
	IsActive         bool      `gorm:"not null" json:"is_active"`
	Escalated        bool      `gorm:"not null" json:"escalated"`
	EscalationReason *string   `gorm:"type:text" json:"escalation_reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string `gorm:"type:varchar(36);not null;index" json:"session_id"`
	Role      string `gorm:"type:varchar(16);not null" json:"role"`
	Content   string `gorm:"type:text;not null" json:"content"`

	// assistant turns only
	FAQMatched      bool      `gorm:"not null" json:"faq_matched"`
	ConfidenceScore *int      `json:"confidence_score,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
