// Package repo implements the data persistence layer for the update feed,
// backed by GORM. This file provides repository functions for the entity
// tables (users, chats) and the user_chats membership index.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Upserts are single atomic statements (ON CONFLICT on the platform id),
// never read-then-write, so concurrent delivery of two updates about the
// same user or chat cannot lose either write. The platform id and
// created_at survive every upsert; profile columns are last-writer-wins.
//
// Error semantics:
//   - A descriptor without its platform id fails Validate and is rejected
//     before any write (domain.ErrMissingID).
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmakov/tg-update-store/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the ingest layer and external consumers.
var ErrNotFound = gorm.ErrRecordNotFound

// userProfileColumns are overwritten on re-sighting; id and created_at are not.
var userProfileColumns = []string{
	"is_bot", "first_name", "last_name", "username", "language_code",
	"is_premium", "added_to_attachment_menu", "updated_at",
}

// chatProfileColumns are overwritten on re-sighting; id and created_at are not.
var chatProfileColumns = []string{
	"type", "title", "username", "first_name", "last_name",
	"is_forum", "all_members_are_administrators", "old_id", "updated_at",
}

// UpsertUser inserts the user on first sighting or refreshes its profile
// columns in place. Safe under concurrent upserts of the same id.
func UpsertUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(userProfileColumns),
	}).Create(u).Error
}

// UpsertChat inserts the chat on first sighting or refreshes its profile
// columns in place. Safe under concurrent upserts of the same id.
func UpsertChat(ctx context.Context, db *gorm.DB, c *domain.Chat) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(chatProfileColumns),
	}).Create(c).Error
}

// EnsureUserChat records that the user has appeared in the chat. Re-sighting
// an already known pair is a no-op (ON CONFLICT DO NOTHING).
func EnsureUserChat(ctx context.Context, db *gorm.DB, userID, chatID int64) error {
	uc := &domain.UserChat{UserID: userID, ChatID: chatID}
	if err := uc.Validate(); err != nil {
		return err
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "chat_id"}},
		DoNothing: true,
	}).Create(uc).Error
}

// GetUser fetches a user by platform id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetChat fetches a chat by platform id, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChatMembers returns the ids of all users known to have appeared in
// the chat, in ascending order.
func ListChatMembers(ctx context.Context, db *gorm.DB, chatID int64) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.UserChat{}).
		Where("chat_id = ?", chatID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ListUserChats returns the ids of all chats the user is known to have
// appeared in, in ascending order.
func ListUserChats(ctx context.Context, db *gorm.DB, userID int64) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.UserChat{}).
		Where("user_id = ?", userID).
		Order("chat_id ASC").
		Pluck("chat_id", &ids).Error
	return ids, err
}

// ResolveMigratedChat follows the old_id backlink: given the id of a group
// that was upgraded, it returns the supergroup row that recorded the old id,
// or ErrNotFound if the upgrade was never sighted.
func ResolveMigratedChat(ctx context.Context, db *gorm.DB, oldID int64) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).First(&c, "old_id = ?", oldID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
