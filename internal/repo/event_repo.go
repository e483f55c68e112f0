// Package repo implements the data persistence layer for the update feed,
// backed by GORM. This file provides repository functions for the event
// payload tables other than messages.
//
// Two write disciplines apply, matching how the platform keys each kind:
//
//   - Platform-keyed kinds (callback/inline/shipping/pre-checkout queries)
//     insert-if-absent on the platform id: the feed is at-least-once and a
//     redelivered id is a no-op, never an error.
//   - Locally keyed kinds (edited messages, chosen inline results, member
//     updates, join requests) always append a new row under a generated id.
//
// Polls and poll answers are the two stateful exceptions, documented on
// their functions.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmakov/tg-update-store/internal/domain"
)

// InsertCallbackQuery stores the query insert-if-absent on its platform id.
// It reports whether a row was written.
func InsertCallbackQuery(ctx context.Context, db *gorm.DB, q *domain.CallbackQuery) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(q)
	return res.RowsAffected > 0, res.Error
}

// InsertInlineQuery stores the query insert-if-absent on its platform id.
func InsertInlineQuery(ctx context.Context, db *gorm.DB, q *domain.InlineQuery) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(q)
	return res.RowsAffected > 0, res.Error
}

// InsertShippingQuery stores the query insert-if-absent on its platform id.
func InsertShippingQuery(ctx context.Context, db *gorm.DB, q *domain.ShippingQuery) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(q)
	return res.RowsAffected > 0, res.Error
}

// InsertPreCheckoutQuery stores the query insert-if-absent on its platform id.
func InsertPreCheckoutQuery(ctx context.Context, db *gorm.DB, q *domain.PreCheckoutQuery) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(q)
	return res.RowsAffected > 0, res.Error
}

// InsertEditedMessage appends one edit snapshot and returns it with its
// generated id. Edits never mutate the messages row they refer to.
func InsertEditedMessage(ctx context.Context, db *gorm.DB, e *domain.EditedMessage) (*domain.EditedMessage, error) {
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// InsertChosenInlineResult appends one chosen-result row under a generated id.
func InsertChosenInlineResult(ctx context.Context, db *gorm.DB, r *domain.ChosenInlineResult) (*domain.ChosenInlineResult, error) {
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// InsertChatMemberUpdate appends one member-status snapshot. History is
// append-only; rows are never updated.
func InsertChatMemberUpdate(ctx context.Context, db *gorm.DB, u *domain.ChatMemberUpdate) (*domain.ChatMemberUpdate, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// InsertChatJoinRequest appends one join request. Append-only history.
func InsertChatJoinRequest(ctx context.Context, db *gorm.DB, r *domain.ChatJoinRequest) (*domain.ChatJoinRequest, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// pollMutableColumns are refreshed while the poll is open.
var pollMutableColumns = []string{
	"question", "options", "total_voter_count", "is_closed", "is_anonymous",
	"type", "allows_multiple_answers", "correct_option_id", "explanation",
	"explanation_entities", "open_period", "close_date", "updated_at",
}

// UpsertPoll stores the latest delivered poll state. The feed re-delivers a
// poll as its vote counts change, so an existing row is refreshed in place
// while it is open; once a closed state has been stored the row is frozen
// and later deliveries are no-ops.
func UpsertPoll(ctx context.Context, db *gorm.DB, p *domain.Poll) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(pollMutableColumns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "polls", Name: "is_closed"}, Value: false},
		}},
	}).Create(p).Error
}

// GetPoll fetches a poll by platform id, or ErrNotFound.
func GetPoll(ctx context.Context, db *gorm.DB, id string) (*domain.Poll, error) {
	var p domain.Poll
	if err := db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPollAnswer stores the user's current selection. A later vote change
// overwrites the previous row for the same (poll, user) pair; only the
// latest selection is ever retrievable.
func UpsertPollAnswer(ctx context.Context, db *gorm.DB, a *domain.PollAnswer) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "poll_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"option_ids", "updated_at"}),
	}).Create(a).Error
}

// GetPollAnswer fetches the current selection of one user in one poll.
func GetPollAnswer(ctx context.Context, db *gorm.DB, pollID string, userID int64) (*domain.PollAnswer, error) {
	var a domain.PollAnswer
	err := db.WithContext(ctx).
		First(&a, "poll_id = ? AND user_id = ?", pollID, userID).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertConversation saves the command state the external conversation
// logic carries per (user, chat). A zero ID inserts, otherwise the row is
// updated in place.
func UpsertConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	if c.Status == "" {
		c.Status = domain.ConversationActive
	}
	return db.WithContext(ctx).Save(c).Error
}

// GetActiveConversation returns the active conversation for the pair, or
// ErrNotFound when none is in progress.
func GetActiveConversation(ctx context.Context, db *gorm.DB, userID, chatID int64) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("user_id = ? AND chat_id = ? AND status = ?", userID, chatID, domain.ConversationActive).
		Order("updated_at DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListMemberHistory returns the member-status snapshots for a (chat, user)
// pair in chronological order.
func ListMemberHistory(ctx context.Context, db *gorm.DB, chatID, userID int64, since time.Time) ([]domain.ChatMemberUpdate, error) {
	var out []domain.ChatMemberUpdate
	err := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ? AND date >= ?", chatID, userID, since).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
