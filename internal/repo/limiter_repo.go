// Package repo implements the data persistence layer for the update feed,
// backed by GORM. This file provides the outbound-call audit log consumed
// by external rate-limit accounting. The log itself enforces no policy; it
// only answers "how many calls were made where, since when".
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dmakov/tg-update-store/internal/domain"
)

// LogRequest appends one outbound-call record. chatID addresses regular
// calls, inlineMessageID inline-mode ones; either may be nil depending on
// the method.
func LogRequest(ctx context.Context, db *gorm.DB, chatID *int64, inlineMessageID *string, method string) error {
	entry := &domain.RequestLimiterEntry{
		ChatID:          chatID,
		InlineMessageID: inlineMessageID,
		Method:          method,
	}
	return db.WithContext(ctx).Create(entry).Error
}

// CountRequestsSince returns the number of logged calls with created_at at
// or after the cutoff, across all targets.
func CountRequestsSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.RequestLimiterEntry{}).
		Where("created_at >= ?", since).
		Count(&total).Error
	return total, err
}

// CountChatRequestsSince returns the number of logged calls addressed to
// one chat with created_at at or after the cutoff.
func CountChatRequestsSince(ctx context.Context, db *gorm.DB, chatID int64, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.RequestLimiterEntry{}).
		Where("chat_id = ? AND created_at >= ?", chatID, since).
		Count(&total).Error
	return total, err
}

// PruneRequestsBefore deletes audit rows older than the cutoff and reports
// how many were removed. Retention is the caller's policy.
func PruneRequestsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.RequestLimiterEntry{})
	return res.RowsAffected, res.Error
}
