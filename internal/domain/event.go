// One table per event kind delivered by the feed. Kinds the platform keys
// with a stable id (queries, polls) use that id as primary key and are
// written insert-if-absent; kinds without a stable id (edits, membership
// changes, join requests, chosen inline results) use a local autoincrement
// id and are an append-only event log.

package domain

import (
	"fmt"
	"time"
)

// EditedMessage is a point-in-time snapshot of a message edit. It never
// mutates the messages row it refers to; each edit appends a new row.
// The (ChatID, MessageID) pair references the edited message and may
// legitimately dangle if the original was never seen.
type EditedMessage struct {
	ID        int64      `json:"id"                   gorm:"primaryKey"`
	ChatID    *int64     `json:"chat_id,omitempty"    gorm:"index:idx_edited_messages_target,priority:1"`
	MessageID *int64     `json:"message_id,omitempty" gorm:"index:idx_edited_messages_target,priority:2"`
	UserID    *int64     `json:"user_id,omitempty"    gorm:"index"`
	EditDate  *time.Time `json:"edit_date,omitempty"`
	Text      *string    `json:"text,omitempty"     gorm:"type:text"`
	Entities  *string    `json:"entities,omitempty" gorm:"type:text"`
	Caption   *string    `json:"caption,omitempty"  gorm:"type:text"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for EditedMessage.
func (EditedMessage) TableName() string { return "edited_messages" }

// CallbackQuery is a button press raised from an inline keyboard. The
// (ChatID, MessageID) pair references the message the keyboard was attached
// to; for inline-mode messages only InlineMessageID is set instead.
type CallbackQuery struct {
	ID              string    `json:"id"                          gorm:"primaryKey;type:varchar(64)"`
	UserID          *int64    `json:"user_id,omitempty"           gorm:"index"`
	ChatID          *int64    `json:"chat_id,omitempty"           gorm:"index:idx_callback_queries_message,priority:1"`
	MessageID       *int64    `json:"message_id,omitempty"        gorm:"index:idx_callback_queries_message,priority:2"`
	InlineMessageID *string   `json:"inline_message_id,omitempty" gorm:"type:varchar(64)"`
	ChatInstance    string    `json:"chat_instance"               gorm:"type:varchar(64);not null;default:''"`
	Data            string    `json:"data"                        gorm:"type:varchar(255);not null;default:''"`
	GameShortName   string    `json:"game_short_name"             gorm:"type:varchar(255);not null;default:''"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for CallbackQuery.
func (CallbackQuery) TableName() string { return "callback_queries" }

// Validate rejects a query without its platform id.
func (q *CallbackQuery) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("callback_query: %w", ErrMissingID)
	}
	return nil
}

// InlineQuery is an incoming inline query.
type InlineQuery struct {
	ID        string    `json:"id"                  gorm:"primaryKey;type:varchar(64)"`
	UserID    *int64    `json:"user_id,omitempty"   gorm:"index"`
	Location  *string   `json:"location,omitempty"  gorm:"type:text"`
	Query     string    `json:"query"               gorm:"type:text;not null"`
	Offset    *string   `json:"offset,omitempty"    gorm:"type:varchar(64)"`
	ChatType  *string   `json:"chat_type,omitempty" gorm:"type:varchar(16)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for InlineQuery.
func (InlineQuery) TableName() string { return "inline_queries" }

// Validate rejects a query without its platform id.
func (q *InlineQuery) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("inline_query: %w", ErrMissingID)
	}
	return nil
}

// ChosenInlineResult records which inline result a user picked. The
// platform does not key these, so the table is append-only under a local id.
type ChosenInlineResult struct {
	ID              int64     `json:"id"                          gorm:"primaryKey"`
	ResultID        string    `json:"result_id"                   gorm:"type:varchar(64);not null;default:''"`
	UserID          *int64    `json:"user_id,omitempty"           gorm:"index"`
	Location        *string   `json:"location,omitempty"          gorm:"type:text"`
	InlineMessageID *string   `json:"inline_message_id,omitempty" gorm:"type:varchar(64)"`
	Query           string    `json:"query"                       gorm:"type:text;not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for ChosenInlineResult.
func (ChosenInlineResult) TableName() string { return "chosen_inline_results" }

// ShippingQuery is an incoming shipping query for a flexible-price invoice.
type ShippingQuery struct {
	ID              string    `json:"id"               gorm:"primaryKey;type:varchar(64)"`
	UserID          *int64    `json:"user_id,omitempty" gorm:"index"`
	InvoicePayload  string    `json:"invoice_payload"  gorm:"type:varchar(255);not null;default:''"`
	ShippingAddress string    `json:"shipping_address" gorm:"type:text;not null;default:''"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for ShippingQuery.
func (ShippingQuery) TableName() string { return "shipping_queries" }

// Validate rejects a query without its platform id.
func (q *ShippingQuery) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("shipping_query: %w", ErrMissingID)
	}
	return nil
}

// PreCheckoutQuery is an incoming pre-checkout query with full checkout
// information.
type PreCheckoutQuery struct {
	ID               string    `json:"id"                           gorm:"primaryKey;type:varchar(64)"`
	UserID           *int64    `json:"user_id,omitempty"            gorm:"index"`
	Currency         *string   `json:"currency,omitempty"           gorm:"type:varchar(3)"`
	TotalAmount      *int64    `json:"total_amount,omitempty"`
	InvoicePayload   string    `json:"invoice_payload"              gorm:"type:varchar(255);not null;default:''"`
	ShippingOptionID *string   `json:"shipping_option_id,omitempty" gorm:"type:varchar(64)"`
	OrderInfo        *string   `json:"order_info,omitempty"         gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for PreCheckoutQuery.
func (PreCheckoutQuery) TableName() string { return "pre_checkout_queries" }

// Validate rejects a query without its platform id.
func (q *PreCheckoutQuery) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("pre_checkout_query: %w", ErrMissingID)
	}
	return nil
}

// Poll is the latest known state of a native poll. The feed re-delivers the
// poll as votes arrive; the row is refreshed in place while the poll is
// open and frozen once IsClosed is stored.
type Poll struct {
	ID                    string     `json:"id"       gorm:"primaryKey;type:varchar(64)"`
	Question              string     `json:"question" gorm:"type:text;not null"`
	Options               string     `json:"options"  gorm:"type:text;not null"`
	TotalVoterCount       int        `json:"total_voter_count"       gorm:"not null;default:0"`
	IsClosed              bool       `json:"is_closed"               gorm:"not null;default:false"`
	IsAnonymous           bool       `json:"is_anonymous"            gorm:"not null;default:true"`
	Type                  *string    `json:"type,omitempty"          gorm:"type:varchar(16)"`
	AllowsMultipleAnswers bool       `json:"allows_multiple_answers" gorm:"not null;default:false"`
	CorrectOptionID       *int       `json:"correct_option_id,omitempty"`
	Explanation           *string    `json:"explanation,omitempty"          gorm:"type:varchar(255)"`
	ExplanationEntities   *string    `json:"explanation_entities,omitempty" gorm:"type:text"`
	OpenPeriod            *int       `json:"open_period,omitempty"`
	CloseDate             *time.Time `json:"close_date,omitempty"`
	CreatedAt             time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt             time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the database table name for Poll.
func (Poll) TableName() string { return "polls" }

// Validate rejects a poll without its platform id.
func (p *Poll) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("poll: %w", ErrMissingID)
	}
	return nil
}

// PollAnswer is the current selection of one user in one poll. At most one
// row exists per (poll, user); a changed vote overwrites the previous row
// rather than appending. OptionIDs may be an empty list when the user
// retracted their vote.
type PollAnswer struct {
	PollID    string    `json:"poll_id"    gorm:"primaryKey;type:varchar(64)"`
	UserID    int64     `json:"user_id"    gorm:"primaryKey;autoIncrement:false"`
	OptionIDs string    `json:"option_ids" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the database table name for PollAnswer.
func (PollAnswer) TableName() string { return "poll_answers" }

// Validate rejects an answer missing either key component.
func (a *PollAnswer) Validate() error {
	if a.PollID == "" || a.UserID == 0 {
		return fmt.Errorf("poll_answer: %w", ErrMissingID)
	}
	return nil
}

// ChatMemberUpdate is one before/after snapshot of a member-status change.
// Append-only history, never updated. The old and new member states are
// stored as serialized snapshots.
type ChatMemberUpdate struct {
	ID            int64     `json:"id"      gorm:"primaryKey"`
	ChatID        int64     `json:"chat_id" gorm:"not null;index"`
	UserID        int64     `json:"user_id" gorm:"not null;index"`
	Date          time.Time `json:"date"`
	OldChatMember string    `json:"old_chat_member" gorm:"type:text;not null"`
	NewChatMember string    `json:"new_chat_member" gorm:"type:text;not null"`
	InviteLink    *string   `json:"invite_link,omitempty" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for ChatMemberUpdate.
func (ChatMemberUpdate) TableName() string { return "chat_member_updates" }

// Validate rejects a snapshot missing its chat or actor.
func (u *ChatMemberUpdate) Validate() error {
	if u.ChatID == 0 || u.UserID == 0 {
		return fmt.Errorf("chat_member_update: %w", ErrMissingID)
	}
	return nil
}

// ChatJoinRequest is one request to join a chat. Append-only history.
type ChatJoinRequest struct {
	ID         int64     `json:"id"      gorm:"primaryKey"`
	ChatID     int64     `json:"chat_id" gorm:"not null;index"`
	UserID     int64     `json:"user_id" gorm:"not null;index"`
	UserChatID *int64    `json:"user_chat_id,omitempty"`
	Date       time.Time `json:"date"`
	Bio        *string   `json:"bio,omitempty"         gorm:"type:text"`
	InviteLink *string   `json:"invite_link,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for ChatJoinRequest.
func (ChatJoinRequest) TableName() string { return "chat_join_requests" }

// Validate rejects a request missing its chat or requester.
func (r *ChatJoinRequest) Validate() error {
	if r.ChatID == 0 || r.UserID == 0 {
		return fmt.Errorf("chat_join_request: %w", ErrMissingID)
	}
	return nil
}

// Conversation states.
const (
	ConversationActive    = "active"
	ConversationCancelled = "cancelled"
	ConversationStopped   = "stopped"
)

// Conversation is the per-(user, chat) command state written by the external
// conversation logic. At most one active conversation exists per pair; the
// row is upserted as the conversation advances.
type Conversation struct {
	ID        int64     `json:"id"                gorm:"primaryKey"`
	UserID    *int64    `json:"user_id,omitempty" gorm:"index:idx_conversations_pair,priority:1"`
	ChatID    *int64    `json:"chat_id,omitempty" gorm:"index:idx_conversations_pair,priority:2"`
	Status    string    `json:"status"            gorm:"type:varchar(16);not null;default:'active';index;check:status IN ('active','cancelled','stopped')"`
	Command   *string   `json:"command,omitempty" gorm:"type:varchar(160)"`
	Notes     *string   `json:"notes,omitempty"   gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }
