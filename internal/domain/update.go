// The dispatch record. A kind discriminant plus one reference slot whose
// shape depends on the kind; the exclusivity invariant (exactly one payload
// per update) is enforced at write time.

package domain

import (
	"errors"
	"fmt"
	"time"
)

// UpdateKind discriminates the payload table an Update row points at.
type UpdateKind string

// The fourteen event kinds the feed delivers.
const (
	KindMessage            UpdateKind = "message"
	KindEditedMessage      UpdateKind = "edited_message"
	KindChannelPost        UpdateKind = "channel_post"
	KindEditedChannelPost  UpdateKind = "edited_channel_post"
	KindInlineQuery        UpdateKind = "inline_query"
	KindChosenInlineResult UpdateKind = "chosen_inline_result"
	KindCallbackQuery      UpdateKind = "callback_query"
	KindShippingQuery      UpdateKind = "shipping_query"
	KindPreCheckoutQuery   UpdateKind = "pre_checkout_query"
	KindPoll               UpdateKind = "poll"
	KindPollAnswer         UpdateKind = "poll_answer"
	KindMyChatMember       UpdateKind = "my_chat_member"
	KindChatMember         UpdateKind = "chat_member"
	KindChatJoinRequest    UpdateKind = "chat_join_request"
)

// RefShape is the key shape of the payload table a kind dispatches to.
type RefShape int

const (
	// RefMessagePair addresses a messages row by (chat id, message id).
	RefMessagePair RefShape = iota
	// RefPlatformID addresses a payload row by its platform string id.
	RefPlatformID
	// RefLocalRow addresses an append-only payload row by its local id.
	RefLocalRow
	// RefPollVote addresses a poll_answers row by (poll id, user id).
	RefPollVote
)

// Shape returns the reference shape the kind requires, or false for an
// unknown kind.
func (k UpdateKind) Shape() (RefShape, bool) {
	switch k {
	case KindMessage, KindChannelPost:
		return RefMessagePair, true
	case KindInlineQuery, KindCallbackQuery, KindShippingQuery,
		KindPreCheckoutQuery, KindPoll:
		return RefPlatformID, true
	case KindEditedMessage, KindEditedChannelPost, KindChosenInlineResult,
		KindMyChatMember, KindChatMember, KindChatJoinRequest:
		return RefLocalRow, true
	case KindPollAnswer:
		return RefPollVote, true
	default:
		return 0, false
	}
}

// Dispatch errors. An exclusivity violation is a contract breach in the
// ingestion caller and is rejected outright, never repaired.
var (
	ErrUnknownKind  = errors.New("unknown update kind")
	ErrNoPayloadRef = errors.New("update references no payload")
	ErrManyPayloads = errors.New("update references more than one payload")
	ErrWrongRef     = errors.New("payload reference does not match update kind")
)

// Update is one dispatch record per inbound event, append-only and never
// mutated. It is the single entry point consumers use to enumerate "new
// events since X" in arrival order, by the platform-assigned monotonic id.
//
// Exactly one reference slot is populated, matching the kind's shape:
//   - ChatID+MessageID together for message and channel-post kinds;
//   - PayloadRef alone for platform-string-keyed kinds (queries, polls);
//   - PayloadRowID for locally keyed append-only kinds;
//   - PayloadRef+PayloadUserID together for poll answers.
type Update struct {
	ID   int64      `json:"id"   gorm:"primaryKey;autoIncrement:false"`
	Kind UpdateKind `json:"kind" gorm:"type:varchar(32);not null;index"`

	ChatID        *int64  `json:"chat_id,omitempty"         gorm:"index:idx_updates_message,priority:1"`
	MessageID     *int64  `json:"message_id,omitempty"      gorm:"index:idx_updates_message,priority:2"`
	PayloadRef    *string `json:"payload_ref,omitempty"     gorm:"type:varchar(64);index"`
	PayloadRowID  *int64  `json:"payload_row_id,omitempty"  gorm:"index"`
	PayloadUserID *int64  `json:"payload_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for Update.
func (Update) TableName() string { return "updates" }

// Validate enforces the exclusivity invariant: the kind is known, the slot
// its shape demands is fully populated, and every other slot is NULL.
func (u *Update) Validate() error {
	if u.ID == 0 {
		return fmt.Errorf("update: %w", ErrMissingID)
	}
	shape, ok := u.Kind.Shape()
	if !ok {
		return fmt.Errorf("update %d: %w: %q", u.ID, ErrUnknownKind, u.Kind)
	}

	pair := u.ChatID != nil && u.MessageID != nil
	halfPair := (u.ChatID != nil) != (u.MessageID != nil)
	ref := u.PayloadRef != nil
	row := u.PayloadRowID != nil
	voter := u.PayloadUserID != nil

	if halfPair {
		return fmt.Errorf("update %d: %w: message reference missing one component", u.ID, ErrWrongRef)
	}

	slots := 0
	if pair {
		slots++
	}
	if ref {
		slots++
	}
	if row {
		slots++
	}
	if slots == 0 {
		return fmt.Errorf("update %d: %w", u.ID, ErrNoPayloadRef)
	}
	if slots > 1 {
		return fmt.Errorf("update %d: %w", u.ID, ErrManyPayloads)
	}

	switch shape {
	case RefMessagePair:
		if !pair || voter {
			return fmt.Errorf("update %d (%s): %w", u.ID, u.Kind, ErrWrongRef)
		}
	case RefPlatformID:
		if !ref || voter {
			return fmt.Errorf("update %d (%s): %w", u.ID, u.Kind, ErrWrongRef)
		}
	case RefLocalRow:
		if !row || voter {
			return fmt.Errorf("update %d (%s): %w", u.ID, u.Kind, ErrWrongRef)
		}
	case RefPollVote:
		if !ref || !voter {
			return fmt.Errorf("update %d (%s): %w", u.ID, u.Kind, ErrWrongRef)
		}
	}
	return nil
}

// MessageRefOf returns the compound message reference for message and
// channel-post updates.
func (u *Update) MessageRefOf() (MessageRef, bool) {
	if u.ChatID == nil || u.MessageID == nil {
		return MessageRef{}, false
	}
	return MessageRef{ChatID: *u.ChatID, MessageID: *u.MessageID}, true
}
