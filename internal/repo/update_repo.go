// Package repo implements the data persistence layer for the update feed,
// backed by GORM. This file provides repository functions for the Update
// dispatch table: the single entry point consumers use to enumerate events
// in arrival order and resolve each one to its payload row.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmakov/tg-update-store/internal/domain"
)

// RecordUpdate appends one dispatch record. The exclusivity invariant is
// enforced first: a record referencing zero or several payloads is a
// contract violation and is rejected before the write. Re-delivery of an
// already recorded update id is a no-op; the bool reports whether a row was
// written.
func RecordUpdate(ctx context.Context, db *gorm.DB, u *domain.Update) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(u)
	return res.RowsAffected > 0, res.Error
}

// GetUpdate fetches one dispatch record by the platform update id.
func GetUpdate(ctx context.Context, db *gorm.DB, id int64) (*domain.Update, error) {
	var u domain.Update
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUpdatesSince enumerates dispatch records with id greater than afterID
// in arrival order (ascending platform update id). A limit <= 0 means no
// limit. This is the "new events since X" read path.
func ListUpdatesSince(ctx context.Context, db *gorm.DB, afterID int64, limit int) ([]domain.Update, error) {
	var out []domain.Update
	q := db.WithContext(ctx).Where("id > ?", afterID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ResolveUpdateMessage resolves a message or channel-post update to its
// messages row via the compound (chat id, message id) reference.
func ResolveUpdateMessage(ctx context.Context, db *gorm.DB, u *domain.Update) (*domain.Message, error) {
	ref, ok := u.MessageRefOf()
	if !ok {
		return nil, ErrNotFound
	}
	return GetMessage(ctx, db, ref)
}
