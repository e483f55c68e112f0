package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dmakov/tg-update-store/internal/domain"
	"github.com/dmakov/tg-update-store/internal/metrics"
	"github.com/dmakov/tg-update-store/internal/repo"
)

// Service normalizes inbound feed updates into the relational schema. One
// call to Ingest writes one update atomically: every referenced user and
// chat is upserted, the payload row is written to its kind's table, and the
// dispatch row is appended, all inside a single transaction.
type Service struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New returns a Service writing through db.
func New(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Result reports what one Ingest call did.
type Result struct {
	UpdateID int64
	Kind     domain.UpdateKind
	// Stored is true when the dispatch row was appended; Duplicate is true
	// when the update id had already been recorded and nothing changed.
	Stored    bool
	Duplicate bool
}

// Ingest validates and persists one update. Malformed envelopes (zero or
// several payloads, missing ids) are rejected before anything is written;
// redelivery of an already-recorded update id is a no-op reported via
// Result.Duplicate.
func (s *Service) Ingest(ctx context.Context, upd telego.Update) (Result, error) {
	res := Result{UpdateID: int64(upd.UpdateID)}
	log := s.log.With().
		Str("ingest_id", uuid.NewString()).
		Int64("update_id", res.UpdateID).
		Logger()

	kind, err := classify(upd)
	if err != nil {
		metrics.Rejected(reasonOf(err))
		log.Warn().Err(err).Msg("update rejected")
		return res, err
	}
	res.Kind = kind
	log = log.With().Str("kind", string(kind)).Logger()

	if upd.UpdateID == 0 {
		err := invalid(fmt.Errorf("update: %w", domain.ErrMissingID))
		metrics.Rejected(reasonOf(err))
		log.Warn().Err(err).Msg("update rejected")
		return res, err
	}

	// Redelivered update ids short-circuit before the payload write, so
	// append-only payload tables see each update at most once.
	if _, err := repo.GetUpdate(ctx, s.db, res.UpdateID); err == nil {
		res.Duplicate = true
		metrics.Duplicate(string(kind))
		log.Debug().Msg("duplicate update, no-op")
		return res, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		err = storage(err)
		metrics.Rejected(reasonOf(err))
		log.Error().Err(err).Msg("ingest failed")
		return res, err
	}

	p, err := s.plan(kind, upd)
	if err != nil {
		err = invalid(err)
		metrics.Rejected(reasonOf(err))
		log.Warn().Err(err).Msg("update rejected")
		return res, err
	}

	rec := &domain.Update{ID: res.UpdateID, Kind: kind}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range p.users {
			if err := repo.UpsertUser(ctx, tx, u); err != nil {
				return err
			}
		}
		for _, c := range p.chats {
			if err := repo.UpsertChat(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, m := range p.members {
			if err := repo.EnsureUserChat(ctx, tx, m[0], m[1]); err != nil {
				return err
			}
		}
		if err := p.apply(ctx, tx, rec); err != nil {
			return err
		}
		created, err := repo.RecordUpdate(ctx, tx, rec)
		if err != nil {
			return err
		}
		if !created {
			// A concurrent ingester recorded this update id after the
			// pre-write check. Roll back so the payload insert leaves no
			// orphan row behind the winner's dispatch record.
			return errAlreadyRecorded
		}
		res.Stored = true
		return nil
	})
	if errors.Is(err, errAlreadyRecorded) {
		res.Duplicate = true
		metrics.Duplicate(string(kind))
		log.Debug().Msg("duplicate update, no-op")
		return res, nil
	}
	if err != nil {
		if isDispatchViolation(err) {
			err = invalid(err)
		} else {
			err = storage(err)
		}
		metrics.Rejected(reasonOf(err))
		log.Error().Err(err).Msg("ingest failed")
		return Result{UpdateID: res.UpdateID, Kind: kind}, err
	}

	metrics.Ingested(string(kind))
	log.Info().Msg("update stored")
	return res, nil
}

// classify picks the update's kind from its payload pointers. Exactly one
// must be set; an empty or ambiguous envelope is a feed contract breach.
func classify(upd telego.Update) (domain.UpdateKind, error) {
	var kinds []domain.UpdateKind
	if upd.Message != nil {
		kinds = append(kinds, domain.KindMessage)
	}
	if upd.EditedMessage != nil {
		kinds = append(kinds, domain.KindEditedMessage)
	}
	if upd.ChannelPost != nil {
		kinds = append(kinds, domain.KindChannelPost)
	}
	if upd.EditedChannelPost != nil {
		kinds = append(kinds, domain.KindEditedChannelPost)
	}
	if upd.InlineQuery != nil {
		kinds = append(kinds, domain.KindInlineQuery)
	}
	if upd.ChosenInlineResult != nil {
		kinds = append(kinds, domain.KindChosenInlineResult)
	}
	if upd.CallbackQuery != nil {
		kinds = append(kinds, domain.KindCallbackQuery)
	}
	if upd.ShippingQuery != nil {
		kinds = append(kinds, domain.KindShippingQuery)
	}
	if upd.PreCheckoutQuery != nil {
		kinds = append(kinds, domain.KindPreCheckoutQuery)
	}
	if upd.Poll != nil {
		kinds = append(kinds, domain.KindPoll)
	}
	if upd.PollAnswer != nil {
		kinds = append(kinds, domain.KindPollAnswer)
	}
	if upd.MyChatMember != nil {
		kinds = append(kinds, domain.KindMyChatMember)
	}
	if upd.ChatMember != nil {
		kinds = append(kinds, domain.KindChatMember)
	}
	if upd.ChatJoinRequest != nil {
		kinds = append(kinds, domain.KindChatJoinRequest)
	}

	switch len(kinds) {
	case 0:
		return "", ErrNoPayload
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("%w: %d payloads set", ErrAmbiguousPayload, len(kinds))
	}
}

// plan is everything one ingest writes: the entities to upsert, the
// membership pairs to ensure, and the payload insert that fills the
// dispatch record's reference slot.
type plan struct {
	users   []*domain.User
	chats   []*domain.Chat
	members [][2]int64
	apply   func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error
}

func (p *plan) user(u *telego.User) {
	if u != nil {
		p.users = append(p.users, mapUser(*u))
	}
}

func (p *plan) chat(c telego.Chat) {
	p.chats = append(p.chats, mapChat(c))
}

func (p *plan) member(userID, chatID int64) {
	if userID != 0 && chatID != 0 {
		p.members = append(p.members, [2]int64{userID, chatID})
	}
}

// plan maps the payload, runs its pre-write validation, and collects every
// user and chat the payload mentions so nothing is written for a malformed
// update.
func (s *Service) plan(kind domain.UpdateKind, upd telego.Update) (*plan, error) {
	p := &plan{}

	switch kind {
	case domain.KindMessage, domain.KindChannelPost:
		m := upd.Message
		if m == nil {
			m = upd.ChannelPost
		}
		row := mapMessage(m)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		p.collectMessage(m)
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			if _, err := repo.InsertMessage(ctx, tx, row); err != nil {
				return err
			}
			rec.ChatID = &row.ChatID
			rec.MessageID = &row.ID
			return nil
		}

	case domain.KindEditedMessage, domain.KindEditedChannelPost:
		m := upd.EditedMessage
		if m == nil {
			m = upd.EditedChannelPost
		}
		if m.Chat.ID == 0 || m.MessageID == 0 {
			return nil, fmt.Errorf("edited message: %w", domain.ErrMissingID)
		}
		row := mapEditedMessage(m)
		p.user(m.From)
		p.chat(m.Chat)
		if m.From != nil {
			p.member(m.From.ID, m.Chat.ID)
		}
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			stored, err := repo.InsertEditedMessage(ctx, tx, row)
			if err != nil {
				return err
			}
			rec.PayloadRowID = &stored.ID
			return nil
		}

	case domain.KindInlineQuery:
		q := upd.InlineQuery
		row := mapInlineQuery(q)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		p.user(&q.From)
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			if _, err := repo.InsertInlineQuery(ctx, tx, row); err != nil {
				return err
			}
			rec.PayloadRef = &row.ID
			return nil
		}

	case domain.KindChosenInlineResult:
		r := upd.ChosenInlineResult
		if r.ResultID == "" {
			return nil, fmt.Errorf("chosen inline result: %w", domain.ErrMissingID)
		}
		row := mapChosenInlineResult(r)
		p.user(&r.From)
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			stored, err := repo.InsertChosenInlineResult(ctx, tx, row)
			if err != nil {
				return err
			}
			rec.PayloadRowID = &stored.ID
			return nil
		}

	case domain.KindCallbackQuery:
		q := upd.CallbackQuery
		row := mapCallbackQuery(q)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		p.user(&q.From)
		if q.Message != nil {
			p.chat(q.Message.Chat)
			p.member(q.From.ID, q.Message.Chat.ID)
		}
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			if _, err := repo.InsertCallbackQuery(ctx, tx, row); err != nil {
				return err
			}
			rec.PayloadRef = &row.ID
			return nil
		}

	case domain.KindShippingQuery:
		q := upd.ShippingQuery
		row := mapShippingQuery(q)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		p.user(&q.From)
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			if _, err := repo.InsertShippingQuery(ctx, tx, row); err != nil {
				return err
			}
			rec.PayloadRef = &row.ID
			return nil
		}

	case domain.KindPreCheckoutQuery:
		q := upd.PreCheckoutQuery
		row := mapPreCheckoutQuery(q)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		p.user(&q.From)
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			if _, err := repo.InsertPreCheckoutQuery(ctx, tx, row); err != nil {
				return err
			}
			rec.PayloadRef = &row.ID
			return nil
		}

	case domain.KindPoll:
		row := mapPoll(upd.Poll)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			if err := repo.UpsertPoll(ctx, tx, row); err != nil {
				return err
			}
			rec.PayloadRef = &row.ID
			return nil
		}

	case domain.KindPollAnswer:
		row, voter := mapPollAnswer(upd.PollAnswer)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		if voter != nil {
			p.users = append(p.users, voter)
		}
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			if err := repo.UpsertPollAnswer(ctx, tx, row); err != nil {
				return err
			}
			rec.PayloadRef = &row.PollID
			rec.PayloadUserID = &row.UserID
			return nil
		}

	case domain.KindMyChatMember, domain.KindChatMember:
		u := upd.MyChatMember
		if u == nil {
			u = upd.ChatMember
		}
		row := mapChatMemberUpdate(u)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		p.chat(u.Chat)
		p.user(&u.From)
		p.member(u.From.ID, u.Chat.ID)
		if u.NewChatMember != nil {
			member := u.NewChatMember.MemberUser()
			p.user(&member)
			p.member(member.ID, u.Chat.ID)
		}
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			stored, err := repo.InsertChatMemberUpdate(ctx, tx, row)
			if err != nil {
				return err
			}
			rec.PayloadRowID = &stored.ID
			return nil
		}

	case domain.KindChatJoinRequest:
		r := upd.ChatJoinRequest
		row := mapChatJoinRequest(r)
		if err := row.Validate(); err != nil {
			return nil, err
		}
		// The requester is not a member yet, so no membership pair.
		p.chat(r.Chat)
		p.user(&r.From)
		p.apply = func(ctx context.Context, tx *gorm.DB, rec *domain.Update) error {
			stored, err := repo.InsertChatJoinRequest(ctx, tx, row)
			if err != nil {
				return err
			}
			rec.PayloadRowID = &stored.ID
			return nil
		}

	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}

	return p, nil
}

// collectMessage gathers every user and chat a message mentions, plus the
// membership pairs the message proves.
func (p *plan) collectMessage(m *telego.Message) {
	p.chat(m.Chat)
	if m.SenderChat != nil {
		p.chat(*m.SenderChat)
	}
	if m.ForwardFromChat != nil {
		p.chat(*m.ForwardFromChat)
	}

	p.user(m.From)
	p.user(m.ForwardFrom)
	p.user(m.ViaBot)
	p.user(m.LeftChatMember)

	if m.From != nil {
		p.member(m.From.ID, m.Chat.ID)
	}
	if m.LeftChatMember != nil {
		p.member(m.LeftChatMember.ID, m.Chat.ID)
	}
	for i := range m.NewChatMembers {
		u := m.NewChatMembers[i]
		p.user(&u)
		p.member(u.ID, m.Chat.ID)
	}
}

// errAlreadyRecorded aborts the transaction when the dispatch insert loses
// a duplicate-delivery race; the caller reports it as a plain duplicate.
var errAlreadyRecorded = errors.New("update id already recorded")

// isDispatchViolation reports whether err is a write-time contract breach
// rather than a database failure.
func isDispatchViolation(err error) bool {
	return errors.Is(err, domain.ErrMissingID) ||
		errors.Is(err, domain.ErrUnknownKind) ||
		errors.Is(err, domain.ErrNoPayloadRef) ||
		errors.Is(err, domain.ErrManyPayloads) ||
		errors.Is(err, domain.ErrWrongRef)
}

// reasonOf buckets an ingest error for the rejection counter.
func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrNoPayload):
		return "no_payload"
	case errors.Is(err, ErrAmbiguousPayload):
		return "ambiguous_payload"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	default:
		return "storage"
	}
}
