package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dmakov/tg-update-store/internal/domain"
	"github.com/dmakov/tg-update-store/internal/repo"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("ingest_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db, zerolog.Nop()), db
}

func privateChat(id int64) telego.Chat {
	return telego.Chat{ID: id, Type: "private", FirstName: "Ann"}
}

func groupChat(id int64) telego.Chat {
	return telego.Chat{ID: id, Type: "group", Title: "general"}
}

func sender(id int64) telego.User {
	return telego.User{ID: id, FirstName: "Ann", Username: "ann"}
}

func textMessage(chat telego.Chat, from telego.User, msgID int, text string) *telego.Message {
	return &telego.Message{
		MessageID: msgID,
		From:      &from,
		Chat:      chat,
		Date:      1700000000,
		Text:      text,
	}
}

func mustIngest(t *testing.T, s *Service, upd telego.Update) Result {
	t.Helper()
	res, err := s.Ingest(context.Background(), upd)
	if err != nil {
		t.Fatalf("Ingest(update %d): %v", upd.UpdateID, err)
	}
	return res
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func TestIngest_MessageWritesEntitiesMembershipAndDispatch(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	chat := groupChat(-100500)
	from := sender(7)
	res := mustIngest(t, s, telego.Update{
		UpdateID: 1001,
		Message:  textMessage(chat, from, 42, "hello"),
	})

	if res.Kind != domain.KindMessage || !res.Stored || res.Duplicate {
		t.Fatalf("unexpected result %+v", res)
	}

	if _, err := repo.GetUser(ctx, db, 7); err != nil {
		t.Fatalf("user not upserted: %v", err)
	}
	if _, err := repo.GetChat(ctx, db, -100500); err != nil {
		t.Fatalf("chat not upserted: %v", err)
	}
	members, err := repo.ListChatMembers(ctx, db, -100500)
	if err != nil || len(members) != 1 || members[0] != 7 {
		t.Fatalf("membership = %v, %v; want [7]", members, err)
	}
	if _, err := repo.GetMessage(ctx, db, domain.MessageRef{ChatID: -100500, MessageID: 42}); err != nil {
		t.Fatalf("message not stored: %v", err)
	}

	rec, err := repo.GetUpdate(ctx, db, 1001)
	if err != nil {
		t.Fatalf("dispatch row missing: %v", err)
	}
	ref, ok := rec.MessageRefOf()
	if !ok || ref.ChatID != -100500 || ref.MessageID != 42 {
		t.Fatalf("dispatch reference = %+v, %v", ref, ok)
	}
	if _, err := repo.ResolveUpdateMessage(ctx, db, rec); err != nil {
		t.Fatalf("resolve dispatch payload: %v", err)
	}
}

func TestIngest_RedeliveryIsNoop(t *testing.T) {
	s, db := newService(t)

	upd := telego.Update{
		UpdateID: 2001,
		Message:  textMessage(privateChat(11), sender(11), 1, "once"),
	}
	first := mustIngest(t, s, upd)
	second := mustIngest(t, s, upd)

	if !first.Stored || first.Duplicate {
		t.Fatalf("first delivery result %+v", first)
	}
	if second.Stored || !second.Duplicate {
		t.Fatalf("redelivery result %+v", second)
	}
	if n := countRows(t, db, &domain.Update{}); n != 1 {
		t.Fatalf("dispatch rows = %d; want 1", n)
	}
	if n := countRows(t, db, &domain.Message{}); n != 1 {
		t.Fatalf("message rows = %d; want 1", n)
	}
}

func TestIngest_ReplyBeforeTargetThenResolved(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	chat := groupChat(-42)
	target := textMessage(chat, sender(1), 10, "original")
	reply := textMessage(chat, sender(2), 11, "late answer")
	reply.ReplyToMessage = target

	// The reply arrives first; its target reference dangles.
	mustIngest(t, s, telego.Update{UpdateID: 3001, Message: reply})

	stored, err := repo.GetMessage(ctx, db, domain.MessageRef{ChatID: -42, MessageID: 11})
	if err != nil {
		t.Fatalf("reply not stored: %v", err)
	}
	if _, err := repo.ResolveReply(ctx, db, stored); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("dangling reply resolved to %v; want ErrNotFound", err)
	}

	// The target arrives later under its own update id.
	mustIngest(t, s, telego.Update{UpdateID: 3002, Message: target})

	resolved, err := repo.ResolveReply(ctx, db, stored)
	if err != nil {
		t.Fatalf("resolve reply after target arrival: %v", err)
	}
	if resolved.ID != 10 || resolved.ChatID != -42 {
		t.Fatalf("resolved wrong message %+v", resolved.Ref())
	}
}

func TestIngest_PollAnswerLifecycle(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	voter := sender(9)
	vote := func(updateID int, options []int) telego.Update {
		return telego.Update{
			UpdateID:   updateID,
			PollAnswer: &telego.PollAnswer{PollID: "poll-1", User: &voter, OptionIDs: options},
		}
	}

	mustIngest(t, s, vote(4001, []int{2}))
	mustIngest(t, s, vote(4002, []int{0, 1}))
	mustIngest(t, s, vote(4003, nil)) // retraction

	if n := countRows(t, db, &domain.PollAnswer{}); n != 1 {
		t.Fatalf("poll_answers rows = %d; want 1", n)
	}
	ans, err := repo.GetPollAnswer(ctx, db, "poll-1", 9)
	if err != nil {
		t.Fatalf("get poll answer: %v", err)
	}
	if ans.OptionIDs != "[]" {
		t.Fatalf("option_ids = %q; want retracted []", ans.OptionIDs)
	}
	if n := countRows(t, db, &domain.Update{}); n != 3 {
		t.Fatalf("dispatch rows = %d; want 3", n)
	}
}

func TestIngest_PollRefreshAndFreeze(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	poll := func(updateID int, voters int, closed bool) telego.Update {
		return telego.Update{
			UpdateID: updateID,
			Poll: &telego.Poll{
				ID:              "poll-7",
				Question:        "lunch?",
				Options:         []telego.PollOption{{Text: "yes"}, {Text: "no"}},
				TotalVoterCount: voters,
				IsClosed:        closed,
				IsAnonymous:     true,
			},
		}
	}

	mustIngest(t, s, poll(5001, 1, false))
	mustIngest(t, s, poll(5002, 5, false))
	mustIngest(t, s, poll(5003, 9, true))
	mustIngest(t, s, poll(5004, 0, false)) // stale redelivery after close

	stored, err := repo.GetPoll(ctx, db, "poll-7")
	if err != nil {
		t.Fatalf("get poll: %v", err)
	}
	if !stored.IsClosed || stored.TotalVoterCount != 9 {
		t.Fatalf("poll state = closed=%v voters=%d; want frozen at closure", stored.IsClosed, stored.TotalVoterCount)
	}
}

func TestIngest_CallbackQueryLinksMessage(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	chat := groupChat(-77)
	upd := telego.Update{
		UpdateID: 6001,
		CallbackQuery: &telego.CallbackQuery{
			ID:           "cbq-abc",
			From:         sender(5),
			Message:      textMessage(chat, sender(99), 8, "pick one"),
			ChatInstance: "ci-1",
			Data:         "option:2",
		},
	}
	res := mustIngest(t, s, upd)
	if res.Kind != domain.KindCallbackQuery || !res.Stored {
		t.Fatalf("unexpected result %+v", res)
	}

	rec, err := repo.GetUpdate(ctx, db, 6001)
	if err != nil {
		t.Fatalf("dispatch row: %v", err)
	}
	if rec.PayloadRef == nil || *rec.PayloadRef != "cbq-abc" {
		t.Fatalf("payload ref = %v; want cbq-abc", rec.PayloadRef)
	}

	var q domain.CallbackQuery
	if err := db.First(&q, "id = ?", "cbq-abc").Error; err != nil {
		t.Fatalf("callback query row: %v", err)
	}
	if q.ChatID == nil || *q.ChatID != -77 || q.MessageID == nil || *q.MessageID != 8 {
		t.Fatalf("callback message link = (%v, %v); want (-77, 8)", q.ChatID, q.MessageID)
	}
	// Pressing a button proves membership of the presser.
	members, err := repo.ListChatMembers(ctx, db, -77)
	if err != nil || len(members) != 1 || members[0] != 5 {
		t.Fatalf("membership = %v, %v; want [5]", members, err)
	}
}

func TestIngest_AppendOnlyKindsGetLocalRowRef(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	member := sender(31)
	updates := []telego.Update{
		{
			UpdateID: 7001,
			MyChatMember: &telego.ChatMemberUpdated{
				Chat:          groupChat(-31),
				From:          sender(30),
				Date:          1700000100,
				OldChatMember: &telego.ChatMemberLeft{Status: "left", User: member},
				NewChatMember: &telego.ChatMemberMember{Status: "member", User: member},
			},
		},
		{
			UpdateID: 7002,
			ChatJoinRequest: &telego.ChatJoinRequest{
				Chat: groupChat(-31),
				From: sender(32),
				Date: 1700000200,
				Bio:  "please let me in",
			},
		},
		{
			UpdateID: 7003,
			ChosenInlineResult: &telego.ChosenInlineResult{
				ResultID: "r-9",
				From:     sender(33),
				Query:    "cats",
			},
		},
		{
			UpdateID:          7004,
			EditedChannelPost: textMessage(telego.Chat{ID: -200, Type: "channel", Title: "news"}, sender(34), 3, "fixed typo"),
		},
	}
	for _, upd := range updates {
		res := mustIngest(t, s, upd)
		if !res.Stored {
			t.Fatalf("update %d not stored", upd.UpdateID)
		}
		rec, err := repo.GetUpdate(ctx, db, int64(upd.UpdateID))
		if err != nil {
			t.Fatalf("dispatch row for %d: %v", upd.UpdateID, err)
		}
		if rec.PayloadRowID == nil || *rec.PayloadRowID == 0 {
			t.Fatalf("update %d: payload row id not filled", upd.UpdateID)
		}
	}

	// The promoted member is upserted and indexed, not just the actor.
	members, err := repo.ListChatMembers(ctx, db, -31)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	seen := map[int64]bool{}
	for _, id := range members {
		seen[id] = true
	}
	if !seen[30] || !seen[31] {
		t.Fatalf("membership = %v; want actor 30 and member 31", members)
	}
	// A join request does not imply membership.
	if seen[32] {
		t.Fatalf("join requester 32 must not be a member yet: %v", members)
	}
}

func TestIngest_RedeliveredAppendOnlyKindKeepsOneRow(t *testing.T) {
	s, db := newService(t)

	upd := telego.Update{
		UpdateID: 7100,
		ChatJoinRequest: &telego.ChatJoinRequest{
			Chat: groupChat(-8),
			From: sender(80),
			Date: 1700000300,
		},
	}
	mustIngest(t, s, upd)
	res := mustIngest(t, s, upd)

	if !res.Duplicate || res.Stored {
		t.Fatalf("redelivery result %+v", res)
	}
	// Append-only payload tables must not grow on redelivery.
	if n := countRows(t, db, &domain.ChatJoinRequest{}); n != 1 {
		t.Fatalf("chat_join_requests rows = %d; want 1", n)
	}
}

func TestIngest_DuplicateRaceLeavesNoOrphanPayload(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	// A competing ingester records the same update id between this call's
	// pre-write duplicate check and its dispatch insert. Simulate the race
	// by slipping the winner's dispatch row in just before the payload row
	// is written.
	winnerRow := int64(999)
	injected := false
	err := db.Callback().Create().Before("gorm:create").Register("competing_ingester", func(tx *gorm.DB) {
		if injected || tx.Statement == nil || tx.Statement.Table != "chat_join_requests" {
			return
		}
		injected = true
		winner := tx.Session(&gorm.Session{NewDB: true, SkipHooks: true})
		winner.Create(&domain.Update{ID: 7200, Kind: domain.KindChatJoinRequest, PayloadRowID: &winnerRow})
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	res, err := s.Ingest(ctx, telego.Update{
		UpdateID: 7200,
		ChatJoinRequest: &telego.ChatJoinRequest{
			Chat: groupChat(-8),
			From: sender(81),
			Date: 1700000400,
		},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !injected {
		t.Fatalf("competing dispatch row was never injected")
	}
	if !res.Duplicate || res.Stored {
		t.Fatalf("lost race must surface as a duplicate, got %+v", res)
	}
	// The loser's payload insert must roll back, not linger unreferenced.
	if n := countRows(t, db, &domain.ChatJoinRequest{}); n != 0 {
		t.Fatalf("chat_join_requests rows = %d after lost race; want 0", n)
	}
}

func TestIngest_PlatformKeyedQueries(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	updates := []telego.Update{
		{
			UpdateID:    8001,
			InlineQuery: &telego.InlineQuery{ID: "iq-1", From: sender(41), Query: "weather"},
		},
		{
			UpdateID: 8002,
			ShippingQuery: &telego.ShippingQuery{
				ID:             "sq-1",
				From:           sender(42),
				InvoicePayload: "order-7",
				ShippingAddress: telego.ShippingAddress{
					CountryCode: "NL", City: "Amsterdam", StreetLine1: "Damrak 1", PostCode: "1012",
				},
			},
		},
		{
			UpdateID: 8003,
			PreCheckoutQuery: &telego.PreCheckoutQuery{
				ID:             "pcq-1",
				From:           sender(43),
				Currency:       "EUR",
				TotalAmount:    1250,
				InvoicePayload: "order-7",
			},
		},
	}
	for _, upd := range updates {
		res := mustIngest(t, s, upd)
		rec, err := repo.GetUpdate(ctx, db, int64(upd.UpdateID))
		if err != nil {
			t.Fatalf("dispatch row for %d: %v", upd.UpdateID, err)
		}
		if rec.PayloadRef == nil {
			t.Fatalf("update %d (%s): payload ref not filled", upd.UpdateID, res.Kind)
		}
	}

	var pcq domain.PreCheckoutQuery
	if err := db.First(&pcq, "id = ?", "pcq-1").Error; err != nil {
		t.Fatalf("pre-checkout row: %v", err)
	}
	if pcq.TotalAmount == nil || *pcq.TotalAmount != 1250 {
		t.Fatalf("total_amount = %v; want 1250", pcq.TotalAmount)
	}
}

func TestIngest_RejectsMalformedEnvelopes(t *testing.T) {
	s, db := newService(t)

	cases := []struct {
		name string
		upd  telego.Update
		want error
	}{
		{
			name: "no payload",
			upd:  telego.Update{UpdateID: 9001},
			want: ErrNoPayload,
		},
		{
			name: "two payloads",
			upd: telego.Update{
				UpdateID: 9002,
				Message:  textMessage(privateChat(1), sender(1), 1, "hi"),
				Poll:     &telego.Poll{ID: "p", Question: "?"},
			},
			want: ErrAmbiguousPayload,
		},
		{
			name: "missing update id",
			upd: telego.Update{
				Message: textMessage(privateChat(1), sender(1), 1, "hi"),
			},
			want: ErrInvalidPayload,
		},
		{
			name: "message without chat id",
			upd: telego.Update{
				UpdateID: 9003,
				Message:  &telego.Message{MessageID: 5, Text: "orphan"},
			},
			want: ErrInvalidPayload,
		},
		{
			name: "callback query without id",
			upd: telego.Update{
				UpdateID:      9004,
				CallbackQuery: &telego.CallbackQuery{From: sender(2), ChatInstance: "x"},
			},
			want: ErrInvalidPayload,
		},
		{
			name: "poll answer without voter",
			upd: telego.Update{
				UpdateID:   9005,
				PollAnswer: &telego.PollAnswer{PollID: "p-1", OptionIDs: []int{0}},
			},
			want: ErrInvalidPayload,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.Ingest(context.Background(), tc.upd)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v; want %v", err, tc.want)
			}
			if res.Stored {
				t.Fatalf("rejected update reported as stored")
			}
		})
	}

	// Nothing at all may hit the database for rejected updates.
	for _, model := range []any{
		&domain.User{}, &domain.Chat{}, &domain.Message{},
		&domain.CallbackQuery{}, &domain.PollAnswer{}, &domain.Update{},
	} {
		if n := countRows(t, db, model); n != 0 {
			t.Fatalf("%T rows = %d after rejections; want 0", model, n)
		}
	}
}

func TestIngest_EntityRefreshOnResighting(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	first := sender(55)
	mustIngest(t, s, telego.Update{UpdateID: 10001, Message: textMessage(privateChat(55), first, 1, "hi")})

	renamed := first
	renamed.FirstName = "Anna"
	renamed.Username = "anna_v2"
	mustIngest(t, s, telego.Update{UpdateID: 10002, Message: textMessage(privateChat(55), renamed, 2, "again")})

	u, err := repo.GetUser(ctx, db, 55)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.FirstName != "Anna" || u.Username == nil || *u.Username != "anna_v2" {
		t.Fatalf("profile not refreshed: %+v", u)
	}
	if n := countRows(t, db, &domain.User{}); n != 1 {
		t.Fatalf("user rows = %d; want 1", n)
	}
}
