package ingest

import (
	"encoding/json"
	"testing"

	"github.com/mymmrac/telego"
)

func TestMapMessage_NormalizesOptionals(t *testing.T) {
	from := telego.User{ID: 7, FirstName: "Ann"}
	origin := telego.User{ID: 8, FirstName: "Bob"}
	channel := telego.Chat{ID: -500, Type: "channel", Title: "news"}

	m := &telego.Message{
		MessageID:            42,
		From:                 &from,
		Chat:                 telego.Chat{ID: -100, Type: "group", Title: "general"},
		Date:                 1700000000,
		Text:                 "fwd",
		ForwardFrom:          &origin,
		ForwardFromChat:      &channel,
		ForwardFromMessageID: 9,
		ForwardDate:          1699990000,
		Entities:             []telego.MessageEntity{{Type: "bold", Offset: 0, Length: 3}},
	}
	row := mapMessage(m)

	if row.ChatID != -100 || row.ID != 42 {
		t.Fatalf("key = (%d, %d); want (-100, 42)", row.ChatID, row.ID)
	}
	if row.UserID == nil || *row.UserID != 7 {
		t.Fatalf("user id = %v; want 7", row.UserID)
	}
	if row.ForwardFrom == nil || *row.ForwardFrom != 8 {
		t.Fatalf("forward_from = %v; want 8", row.ForwardFrom)
	}
	if row.ForwardFromChat == nil || *row.ForwardFromChat != -500 {
		t.Fatalf("forward_from_chat = %v; want -500", row.ForwardFromChat)
	}
	if row.ForwardDate == nil || row.ForwardDate.Unix() != 1699990000 {
		t.Fatalf("forward_date = %v", row.ForwardDate)
	}

	// Absent platform fields become NULL, not zero values.
	if row.Caption != nil || row.MediaGroupID != nil || row.EditDate != nil {
		t.Fatalf("absent fields must map to nil: caption=%v media_group=%v edit_date=%v",
			row.Caption, row.MediaGroupID, row.EditDate)
	}
	if row.ReplyToChat != nil || row.ReplyToMessage != nil {
		t.Fatalf("no reply on this message, got (%v, %v)", row.ReplyToChat, row.ReplyToMessage)
	}

	// Entities round as a JSON list.
	if row.Entities == nil {
		t.Fatalf("entities not serialized")
	}
	var ents []telego.MessageEntity
	if err := json.Unmarshal([]byte(*row.Entities), &ents); err != nil || len(ents) != 1 {
		t.Fatalf("entities json = %q (%v)", *row.Entities, err)
	}
}

func TestMapMessage_ReplyCarriesBothComponents(t *testing.T) {
	target := &telego.Message{MessageID: 10, Chat: telego.Chat{ID: -1, Type: "group"}}
	m := &telego.Message{
		MessageID:      11,
		Chat:           telego.Chat{ID: -1, Type: "group"},
		ReplyToMessage: target,
	}
	row := mapMessage(m)
	ref, ok := row.ReplyRef()
	if !ok || ref.ChatID != -1 || ref.MessageID != 10 {
		t.Fatalf("reply ref = %+v, %v; want (-1, 10)", ref, ok)
	}
}

func TestMapPoll_QuizGatesCorrectOption(t *testing.T) {
	base := telego.Poll{
		ID:       "p-1",
		Question: "?",
		Options:  []telego.PollOption{{Text: "a"}, {Text: "b"}},
	}

	regular := base
	regular.Type = "regular"
	if row := mapPoll(&regular); row.CorrectOptionID != nil {
		t.Fatalf("regular poll must not carry a correct option, got %v", *row.CorrectOptionID)
	}

	quiz := base
	quiz.Type = "quiz"
	quiz.CorrectOptionID = 0 // index zero is a valid answer
	row := mapPoll(&quiz)
	if row.CorrectOptionID == nil || *row.CorrectOptionID != 0 {
		t.Fatalf("quiz correct option = %v; want 0", row.CorrectOptionID)
	}
}

func TestMapPollAnswer_VoterChatFallback(t *testing.T) {
	byUser := &telego.PollAnswer{
		PollID:    "p-1",
		User:      &telego.User{ID: 5, FirstName: "Ann"},
		OptionIDs: []int{1},
	}
	row, voter := mapPollAnswer(byUser)
	if row.UserID != 5 || voter == nil || voter.ID != 5 {
		t.Fatalf("user vote mapped to %+v, voter %+v", row, voter)
	}

	byChat := &telego.PollAnswer{
		PollID:    "p-1",
		VoterChat: &telego.Chat{ID: -900, Type: "channel"},
	}
	row, voter = mapPollAnswer(byChat)
	if row.UserID != -900 {
		t.Fatalf("anonymous vote keyed by %d; want voter chat id -900", row.UserID)
	}
	if voter != nil {
		t.Fatalf("anonymous vote must not produce a user entity")
	}
	if row.OptionIDs != "[]" {
		t.Fatalf("retracted options = %q; want []", row.OptionIDs)
	}
}

func TestMapPreCheckoutQuery_ZeroAmountIsNull(t *testing.T) {
	q := &telego.PreCheckoutQuery{
		ID:             "pcq-0",
		From:           telego.User{ID: 2, FirstName: "Bo"},
		InvoicePayload: "order-1",
	}
	row := mapPreCheckoutQuery(q)
	if row.TotalAmount != nil {
		t.Fatalf("zero total_amount must map to nil, got %v", *row.TotalAmount)
	}

	q.TotalAmount = 1250
	row = mapPreCheckoutQuery(q)
	if row.TotalAmount == nil || *row.TotalAmount != 1250 {
		t.Fatalf("total_amount = %v; want 1250", row.TotalAmount)
	}
}

func TestMapChatMemberUpdate_SerializesSnapshots(t *testing.T) {
	member := telego.User{ID: 9, FirstName: "Cam"}
	u := &telego.ChatMemberUpdated{
		Chat:          telego.Chat{ID: -9, Type: "supergroup", Title: "ops"},
		From:          telego.User{ID: 1, FirstName: "Adm"},
		Date:          1700000000,
		OldChatMember: &telego.ChatMemberLeft{Status: "left", User: member},
		NewChatMember: &telego.ChatMemberMember{Status: "member", User: member},
	}
	row := mapChatMemberUpdate(u)

	if row.ChatID != -9 || row.UserID != 1 {
		t.Fatalf("keys = (%d, %d); want (-9, 1)", row.ChatID, row.UserID)
	}
	if row.Date.Unix() != 1700000000 {
		t.Fatalf("date = %v", row.Date)
	}
	for name, snap := range map[string]string{"old": row.OldChatMember, "new": row.NewChatMember} {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(snap), &decoded); err != nil {
			t.Fatalf("%s snapshot not valid json: %v", name, err)
		}
	}
}
