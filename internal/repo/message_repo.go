// Package repo implements the data persistence layer for the update feed,
// backed by GORM. This file provides repository functions for the Message
// payload table.
//
// A message is addressed by its compound natural key (chat id, message id);
// every function here takes or returns the pair together, never a message
// id alone.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmakov/tg-update-store/internal/domain"
)

// InsertMessage inserts one message row, treating re-delivery of the same
// (chat id, message id) pair as a no-op. It reports whether a row was
// actually written. Rows are logically immutable once stored; an edit
// arrives as a separate EditedMessage snapshot.
func InsertMessage(ctx context.Context, db *gorm.DB, m *domain.Message) (bool, error) {
	if err := m.Validate(); err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "id"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetMessage fetches one message by its compound key, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, ref domain.MessageRef) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		First(&m, "chat_id = ? AND id = ?", ref.ChatID, ref.MessageID).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ResolveReply fetches the message a reply points at. The reference is a
// value, not an enforced foreign key: the target may never have been seen,
// in which case ErrNotFound is returned and the caller treats the reference
// as dangling.
func ResolveReply(ctx context.Context, db *gorm.DB, m *domain.Message) (*domain.Message, error) {
	ref, ok := m.ReplyRef()
	if !ok {
		return nil, ErrNotFound
	}
	return GetMessage(ctx, db, ref)
}

// ListChatMessages returns messages of one chat ordered by message id
// ascending. A limit <= 0 means no limit.
func ListChatMessages(ctx context.Context, db *gorm.DB, chatID int64, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListReplies returns all messages replying to the referenced message,
// joined on the full (chat id, message id) pair.
func ListReplies(ctx context.Context, db *gorm.DB, ref domain.MessageRef) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("reply_to_chat = ? AND reply_to_message = ?", ref.ChatID, ref.MessageID).
		Order("chat_id ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, chatID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).
		Scan(&total).Error
	return total, err
}
