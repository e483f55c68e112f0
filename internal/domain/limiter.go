package domain

import "time"

// RequestLimiterEntry is one outbound API call logged for external
// rate-limit accounting. Append-only audit trail; either ChatID or
// InlineMessageID identifies the call target depending on the method.
type RequestLimiterEntry struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	ChatID          *int64    `json:"chat_id,omitempty"           gorm:"index"`
	InlineMessageID *string   `json:"inline_message_id,omitempty" gorm:"type:varchar(64)"`
	Method          string    `json:"method"                      gorm:"type:varchar(64);not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName returns the database table name for RequestLimiterEntry.
func (RequestLimiterEntry) TableName() string { return "request_limiter" }
