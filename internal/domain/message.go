// Message is the largest payload table: one row per message or channel post
// received from the feed. A message is identified by the pair
// (chat id, message id); message ids alone are only unique within a chat,
// so every reference to a message anywhere in the schema carries both
// components together.

package domain

import (
	"fmt"
	"time"
)

// Message is a message or channel post as delivered by the feed.
//
// Exactly one content "kind" (text, photo, poll, invoice, a service
// message, …) is semantically populated per row; the schema models this as
// nullable columns rather than a tag because consumers query columns
// directly. Nested platform objects (media descriptors, payment info,
// service-message details) are stored as serialized JSON text.
//
// ReplyToChat/ReplyToMessage and MigrateToChatID/MigrateFromChatID are
// value references resolved by lookup at read time: the feed does not
// deliver reply targets or migration peers in causal order, so the
// referenced row may not exist yet when this one is written.
type Message struct {
	ChatID int64 `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	ID     int64 `json:"id"      gorm:"primaryKey;autoIncrement:false"`

	SenderChatID    *int64     `json:"sender_chat_id,omitempty"`
	MessageThreadID *int64     `json:"message_thread_id,omitempty"`
	UserID          *int64     `json:"user_id,omitempty" gorm:"index"`
	Date            *time.Time `json:"date,omitempty"`

	// Forward origin, flattened from the platform's origin object.
	ForwardFrom          *int64     `json:"forward_from,omitempty"            gorm:"index"`
	ForwardFromChat      *int64     `json:"forward_from_chat,omitempty"       gorm:"index"`
	ForwardFromMessageID *int64     `json:"forward_from_message_id,omitempty"`
	ForwardSignature     *string    `json:"forward_signature,omitempty"       gorm:"type:text"`
	ForwardSenderName    *string    `json:"forward_sender_name,omitempty"     gorm:"type:text"`
	ForwardDate          *time.Time `json:"forward_date,omitempty"`

	IsTopicMessage     bool `json:"is_topic_message"     gorm:"not null;default:false"`
	IsAutomaticForward bool `json:"is_automatic_forward" gorm:"not null;default:false"`

	// Compound self-reference to the replied-to message. Both components
	// travel together; either both are set or both are NULL.
	ReplyToChat    *int64 `json:"reply_to_chat,omitempty"    gorm:"index:idx_messages_reply,priority:1"`
	ReplyToMessage *int64 `json:"reply_to_message,omitempty" gorm:"index:idx_messages_reply,priority:2"`

	ViaBot              *int64     `json:"via_bot,omitempty" gorm:"index"`
	EditDate            *time.Time `json:"edit_date,omitempty"`
	HasProtectedContent bool       `json:"has_protected_content" gorm:"not null;default:false"`
	MediaGroupID        *string    `json:"media_group_id,omitempty"  gorm:"type:text"`
	AuthorSignature     *string    `json:"author_signature,omitempty" gorm:"type:text"`

	// Text content. Up to 4096 characters of full 4-byte Unicode.
	Text            *string `json:"text,omitempty"             gorm:"type:text"`
	Entities        *string `json:"entities,omitempty"         gorm:"type:text"`
	CaptionEntities *string `json:"caption_entities,omitempty" gorm:"type:text"`
	Caption         *string `json:"caption,omitempty"          gorm:"type:text"`

	// Media content, one serialized descriptor per kind.
	Audio     *string `json:"audio,omitempty"      gorm:"type:text"`
	Document  *string `json:"document,omitempty"   gorm:"type:text"`
	Animation *string `json:"animation,omitempty"  gorm:"type:text"`
	Game      *string `json:"game,omitempty"       gorm:"type:text"`
	Photo     *string `json:"photo,omitempty"      gorm:"type:text"`
	Sticker   *string `json:"sticker,omitempty"    gorm:"type:text"`
	Video     *string `json:"video,omitempty"      gorm:"type:text"`
	Voice     *string `json:"voice,omitempty"      gorm:"type:text"`
	VideoNote *string `json:"video_note,omitempty" gorm:"type:text"`
	Contact   *string `json:"contact,omitempty"    gorm:"type:text"`
	Location  *string `json:"location,omitempty"   gorm:"type:text"`
	Venue     *string `json:"venue,omitempty"      gorm:"type:text"`
	Poll      *string `json:"poll,omitempty"       gorm:"type:text"`
	Dice      *string `json:"dice,omitempty"       gorm:"type:text"`

	// Service messages.
	NewChatMembers                *string `json:"new_chat_members,omitempty" gorm:"type:text"`
	LeftChatMember                *int64  `json:"left_chat_member,omitempty" gorm:"index"`
	NewChatTitle                  *string `json:"new_chat_title,omitempty"   gorm:"type:varchar(255)"`
	NewChatPhoto                  *string `json:"new_chat_photo,omitempty"   gorm:"type:text"`
	DeleteChatPhoto               bool    `json:"delete_chat_photo"          gorm:"not null;default:false"`
	GroupChatCreated              bool    `json:"group_chat_created"         gorm:"not null;default:false"`
	SupergroupChatCreated         bool    `json:"supergroup_chat_created"    gorm:"not null;default:false"`
	ChannelChatCreated            bool    `json:"channel_chat_created"       gorm:"not null;default:false"`
	MessageAutoDeleteTimerChanged *string `json:"message_auto_delete_timer_changed,omitempty" gorm:"type:text"`

	// Group-to-supergroup migration, a value reference in each direction.
	MigrateToChatID   *int64 `json:"migrate_to_chat_id,omitempty"   gorm:"index"`
	MigrateFromChatID *int64 `json:"migrate_from_chat_id,omitempty" gorm:"index"`

	PinnedMessage     *string `json:"pinned_message,omitempty"     gorm:"type:text"`
	Invoice           *string `json:"invoice,omitempty"            gorm:"type:text"`
	SuccessfulPayment *string `json:"successful_payment,omitempty" gorm:"type:text"`
	ConnectedWebsite  *string `json:"connected_website,omitempty"  gorm:"type:text"`
	PassportData      *string `json:"passport_data,omitempty"      gorm:"type:text"`

	ProximityAlertTriggered      *string `json:"proximity_alert_triggered,omitempty"       gorm:"type:text"`
	ForumTopicCreated            *string `json:"forum_topic_created,omitempty"             gorm:"type:text"`
	ForumTopicClosed             *string `json:"forum_topic_closed,omitempty"              gorm:"type:text"`
	ForumTopicReopened           *string `json:"forum_topic_reopened,omitempty"            gorm:"type:text"`
	VideoChatScheduled           *string `json:"video_chat_scheduled,omitempty"            gorm:"type:text"`
	VideoChatStarted             *string `json:"video_chat_started,omitempty"              gorm:"type:text"`
	VideoChatEnded               *string `json:"video_chat_ended,omitempty"                gorm:"type:text"`
	VideoChatParticipantsInvited *string `json:"video_chat_participants_invited,omitempty" gorm:"type:text"`
	WebAppData                   *string `json:"web_app_data,omitempty"                    gorm:"type:text"`

	ReplyMarkup *string `json:"reply_markup,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Validate rejects a row missing either component of the composite key, and
// a reply reference carrying only one component of its pair.
func (m *Message) Validate() error {
	if m.ChatID == 0 || m.ID == 0 {
		return fmt.Errorf("message: %w", ErrMissingID)
	}
	if (m.ReplyToChat == nil) != (m.ReplyToMessage == nil) {
		return fmt.Errorf("message: reply reference must carry both chat and message id")
	}
	return nil
}

// MessageRef addresses one message by its compound natural key. The two
// components are never meaningful separately.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// Ref returns the compound key addressing this message.
func (m *Message) Ref() MessageRef {
	return MessageRef{ChatID: m.ChatID, MessageID: m.ID}
}

// ReplyRef returns the compound key of the replied-to message, if any.
func (m *Message) ReplyRef() (MessageRef, bool) {
	if m.ReplyToChat == nil || m.ReplyToMessage == nil {
		return MessageRef{}, false
	}
	return MessageRef{ChatID: *m.ReplyToChat, MessageID: *m.ReplyToMessage}, true
}
