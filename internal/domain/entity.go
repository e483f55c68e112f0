// Package domain defines the persistence models for the Telegram update
// feed: the long-lived entities (users, chats), the per-kind event payload
// tables, the tagged dispatch table, and the association/audit tables.
// These types are mapped with GORM and form the core data layer.
//
// All identifiers assigned by the platform are stored verbatim: numeric ids
// as int64, string ids (query and poll ids) as text. Locally keyed tables
// use an autoincrement int64 instead. Optional columns are pointers; NULL
// always means "not applicable", never a sentinel.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingID is returned when an entity or payload descriptor lacks the
// platform-assigned identifier that keys its table. Such a descriptor is
// rejected before any write happens.
var ErrMissingID = errors.New("missing required id")

// User is a Telegram user or bot sighted in the feed. The row is created on
// first sighting and its profile columns are overwritten on every later
// sighting; the id and CreatedAt never change.
//
// Fields:
//   - ID: platform user id (primary key, never locally generated).
//   - IsBot / IsPremium / AddedToAttachmentMenu: profile flags.
//   - FirstName / LastName / Username / LanguageCode: profile fields,
//     last-writer-wins on re-sighting.
//   - CreatedAt / UpdatedAt: first and latest sighting timestamps.
type User struct {
	ID                    int64     `json:"id"                       gorm:"primaryKey;autoIncrement:false"`
	IsBot                 bool      `json:"is_bot"                   gorm:"not null;default:false"`
	FirstName             string    `json:"first_name"               gorm:"type:varchar(255);not null;default:''"`
	LastName              *string   `json:"last_name,omitempty"      gorm:"type:varchar(255)"`
	Username              *string   `json:"username,omitempty"       gorm:"type:varchar(191);index"`
	LanguageCode          *string   `json:"language_code,omitempty"  gorm:"type:varchar(10)"`
	IsPremium             bool      `json:"is_premium"               gorm:"not null;default:false"`
	AddedToAttachmentMenu bool      `json:"added_to_attachment_menu" gorm:"not null;default:false"`
	CreatedAt             time.Time `json:"created_at"               gorm:"autoCreateTime"`
	UpdatedAt             time.Time `json:"updated_at"               gorm:"autoUpdateTime"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Validate rejects a descriptor without a platform id.
func (u *User) Validate() error {
	if u.ID == 0 {
		return fmt.Errorf("user: %w", ErrMissingID)
	}
	return nil
}

// Chat types as delivered by the platform.
const (
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
	ChatTypeChannel    = "channel"
)

// Chat is a conversation the feed has referenced: a private chat, group,
// supergroup or channel. Like User it is upserted in place.
//
// OldID links a supergroup to the group it was upgraded from. It is a value
// reference, not a foreign key: the old chat row may or may not exist, and
// the feed gives no ordering guarantee between the two sightings.
type Chat struct {
	ID                          int64     `json:"id"                    gorm:"primaryKey;autoIncrement:false"`
	Type                        string    `json:"type"                  gorm:"type:varchar(16);not null;check:type IN ('private','group','supergroup','channel')"`
	Title                       *string   `json:"title,omitempty"       gorm:"type:varchar(255)"`
	Username                    *string   `json:"username,omitempty"    gorm:"type:varchar(191);index"`
	FirstName                   *string   `json:"first_name,omitempty"  gorm:"type:varchar(255)"`
	LastName                    *string   `json:"last_name,omitempty"   gorm:"type:varchar(255)"`
	IsForum                     bool      `json:"is_forum"              gorm:"not null;default:false"`
	AllMembersAreAdministrators bool      `json:"all_members_are_administrators" gorm:"not null;default:false"`
	OldID                       *int64    `json:"old_id,omitempty"      gorm:"index"`
	CreatedAt                   time.Time `json:"created_at"            gorm:"autoCreateTime"`
	UpdatedAt                   time.Time `json:"updated_at"            gorm:"autoUpdateTime"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Validate rejects a descriptor without a platform id.
func (c *Chat) Validate() error {
	if c.ID == 0 {
		return fmt.Errorf("chat: %w", ErrMissingID)
	}
	return nil
}

// UserChat is the membership index: one row per (user, chat) pair ever seen
// together in an update. Rows cascade away with either parent.
type UserChat struct {
	UserID int64 `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	ChatID int64 `json:"chat_id" gorm:"primaryKey;autoIncrement:false;index"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UserChat.
func (UserChat) TableName() string { return "user_chats" }

// Validate rejects a pair with either side missing.
func (uc *UserChat) Validate() error {
	if uc.UserID == 0 || uc.ChatID == 0 {
		return fmt.Errorf("user_chat: %w", ErrMissingID)
	}
	return nil
}

// SchemaInfo is the single-row record of the applied schema version,
// written by repo.Migrate.
type SchemaInfo struct {
	ID         int       `gorm:"primaryKey"`
	Version    int       `gorm:"not null"`
	MigratedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the database table name for SchemaInfo.
func (SchemaInfo) TableName() string { return "schema_info" }
