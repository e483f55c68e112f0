// Mapping from the feed's parsed update types onto the persistence models.
// Nested platform objects that the schema does not relationally decompose
// (media descriptors, locations, payment info, member snapshots) are
// serialized to JSON text. Scalar platform fields map onto columns, with
// empty strings and zero ids normalized to NULL.

package ingest

import (
	"encoding/json"
	"time"

	"github.com/mymmrac/telego"

	"github.com/dmakov/tg-update-store/internal/domain"
)

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func optInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// jsonValue serializes v, returning the empty string only on a marshal
// failure (which none of the platform types can produce).
func jsonValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// jsonPtr serializes a possibly-nil pointer to an optional text column.
func jsonPtr[T any](v *T) *string {
	if v == nil {
		return nil
	}
	s := jsonValue(v)
	return &s
}

// jsonSlice serializes a possibly-empty slice to an optional text column.
func jsonSlice[T any](v []T) *string {
	if len(v) == 0 {
		return nil
	}
	s := jsonValue(v)
	return &s
}

func mapUser(u telego.User) *domain.User {
	return &domain.User{
		ID:                    u.ID,
		IsBot:                 u.IsBot,
		FirstName:             u.FirstName,
		LastName:              optStr(u.LastName),
		Username:              optStr(u.Username),
		LanguageCode:          optStr(u.LanguageCode),
		IsPremium:             u.IsPremium,
		AddedToAttachmentMenu: u.AddedToAttachmentMenu,
	}
}

func mapChat(c telego.Chat) *domain.Chat {
	return &domain.Chat{
		ID:        c.ID,
		Type:      c.Type,
		Title:     optStr(c.Title),
		Username:  optStr(c.Username),
		FirstName: optStr(c.FirstName),
		LastName:  optStr(c.LastName),
		IsForum:   c.IsForum,
	}
}

func mapMessage(m *telego.Message) *domain.Message {
	row := &domain.Message{
		ChatID:          m.Chat.ID,
		ID:              int64(m.MessageID),
		MessageThreadID: optInt64(int64(m.MessageThreadID)),
		Date:            unixTime(int64(m.Date)),

		ForwardFromMessageID: optInt64(int64(m.ForwardFromMessageID)),
		ForwardSignature:     optStr(m.ForwardSignature),
		ForwardSenderName:    optStr(m.ForwardSenderName),
		ForwardDate:          unixTime(int64(m.ForwardDate)),

		IsTopicMessage:     m.IsTopicMessage,
		IsAutomaticForward: m.IsAutomaticForward,

		EditDate:            unixTime(int64(m.EditDate)),
		HasProtectedContent: m.HasProtectedContent,
		MediaGroupID:        optStr(m.MediaGroupID),
		AuthorSignature:     optStr(m.AuthorSignature),

		Text:            optStr(m.Text),
		Entities:        jsonSlice(m.Entities),
		CaptionEntities: jsonSlice(m.CaptionEntities),
		Caption:         optStr(m.Caption),

		Audio:     jsonPtr(m.Audio),
		Document:  jsonPtr(m.Document),
		Animation: jsonPtr(m.Animation),
		Game:      jsonPtr(m.Game),
		Photo:     jsonSlice(m.Photo),
		Sticker:   jsonPtr(m.Sticker),
		Video:     jsonPtr(m.Video),
		Voice:     jsonPtr(m.Voice),
		VideoNote: jsonPtr(m.VideoNote),
		Contact:   jsonPtr(m.Contact),
		Location:  jsonPtr(m.Location),
		Venue:     jsonPtr(m.Venue),
		Poll:      jsonPtr(m.Poll),
		Dice:      jsonPtr(m.Dice),

		NewChatMembers:                jsonSlice(m.NewChatMembers),
		NewChatTitle:                  optStr(m.NewChatTitle),
		NewChatPhoto:                  jsonSlice(m.NewChatPhoto),
		DeleteChatPhoto:               m.DeleteChatPhoto,
		GroupChatCreated:              m.GroupChatCreated,
		SupergroupChatCreated:         m.SupergroupChatCreated,
		ChannelChatCreated:            m.ChannelChatCreated,
		MessageAutoDeleteTimerChanged: jsonPtr(m.MessageAutoDeleteTimerChanged),

		MigrateToChatID:   optInt64(m.MigrateToChatID),
		MigrateFromChatID: optInt64(m.MigrateFromChatID),

		PinnedMessage:     jsonPtr(m.PinnedMessage),
		Invoice:           jsonPtr(m.Invoice),
		SuccessfulPayment: jsonPtr(m.SuccessfulPayment),
		ConnectedWebsite:  optStr(m.ConnectedWebsite),
		PassportData:      jsonPtr(m.PassportData),

		ProximityAlertTriggered:      jsonPtr(m.ProximityAlertTriggered),
		ForumTopicCreated:            jsonPtr(m.ForumTopicCreated),
		ForumTopicClosed:             jsonPtr(m.ForumTopicClosed),
		ForumTopicReopened:           jsonPtr(m.ForumTopicReopened),
		VideoChatScheduled:           jsonPtr(m.VideoChatScheduled),
		VideoChatStarted:             jsonPtr(m.VideoChatStarted),
		VideoChatEnded:               jsonPtr(m.VideoChatEnded),
		VideoChatParticipantsInvited: jsonPtr(m.VideoChatParticipantsInvited),
		WebAppData:                   jsonPtr(m.WebAppData),

		ReplyMarkup: jsonPtr(m.ReplyMarkup),
	}

	if m.From != nil {
		row.UserID = optInt64(m.From.ID)
	}
	if m.SenderChat != nil {
		row.SenderChatID = optInt64(m.SenderChat.ID)
	}
	if m.ForwardFrom != nil {
		row.ForwardFrom = optInt64(m.ForwardFrom.ID)
	}
	if m.ForwardFromChat != nil {
		row.ForwardFromChat = optInt64(m.ForwardFromChat.ID)
	}
	if m.ViaBot != nil {
		row.ViaBot = optInt64(m.ViaBot.ID)
	}
	if m.LeftChatMember != nil {
		row.LeftChatMember = optInt64(m.LeftChatMember.ID)
	}
	// The reply reference is the compound pair of the target, stored as
	// given even when the target has not been seen yet.
	if m.ReplyToMessage != nil {
		row.ReplyToChat = optInt64(m.ReplyToMessage.Chat.ID)
		row.ReplyToMessage = optInt64(int64(m.ReplyToMessage.MessageID))
	}
	return row
}

func mapEditedMessage(m *telego.Message) *domain.EditedMessage {
	row := &domain.EditedMessage{
		ChatID:    optInt64(m.Chat.ID),
		MessageID: optInt64(int64(m.MessageID)),
		EditDate:  unixTime(int64(m.EditDate)),
		Text:      optStr(m.Text),
		Entities:  jsonSlice(m.Entities),
		Caption:   optStr(m.Caption),
	}
	if m.From != nil {
		row.UserID = optInt64(m.From.ID)
	}
	return row
}

func mapCallbackQuery(q *telego.CallbackQuery) *domain.CallbackQuery {
	row := &domain.CallbackQuery{
		ID:              q.ID,
		UserID:          optInt64(q.From.ID),
		InlineMessageID: optStr(q.InlineMessageID),
		ChatInstance:    q.ChatInstance,
		Data:            q.Data,
		GameShortName:   q.GameShortName,
	}
	if q.Message != nil {
		row.ChatID = optInt64(q.Message.Chat.ID)
		row.MessageID = optInt64(int64(q.Message.MessageID))
	}
	return row
}

func mapInlineQuery(q *telego.InlineQuery) *domain.InlineQuery {
	return &domain.InlineQuery{
		ID:       q.ID,
		UserID:   optInt64(q.From.ID),
		Location: jsonPtr(q.Location),
		Query:    q.Query,
		Offset:   optStr(q.Offset),
		ChatType: optStr(q.ChatType),
	}
}

func mapChosenInlineResult(r *telego.ChosenInlineResult) *domain.ChosenInlineResult {
	return &domain.ChosenInlineResult{
		ResultID:        r.ResultID,
		UserID:          optInt64(r.From.ID),
		Location:        jsonPtr(r.Location),
		InlineMessageID: optStr(r.InlineMessageID),
		Query:           r.Query,
	}
}

func mapShippingQuery(q *telego.ShippingQuery) *domain.ShippingQuery {
	return &domain.ShippingQuery{
		ID:              q.ID,
		UserID:          optInt64(q.From.ID),
		InvoicePayload:  q.InvoicePayload,
		ShippingAddress: jsonValue(q.ShippingAddress),
	}
}

func mapPreCheckoutQuery(q *telego.PreCheckoutQuery) *domain.PreCheckoutQuery {
	return &domain.PreCheckoutQuery{
		ID:               q.ID,
		UserID:           optInt64(q.From.ID),
		Currency:         optStr(q.Currency),
		TotalAmount:      optInt64(int64(q.TotalAmount)),
		InvoicePayload:   q.InvoicePayload,
		ShippingOptionID: optStr(q.ShippingOptionID),
		OrderInfo:        jsonPtr(q.OrderInfo),
	}
}

func mapPoll(p *telego.Poll) *domain.Poll {
	row := &domain.Poll{
		ID:                    p.ID,
		Question:              p.Question,
		Options:               jsonValue(p.Options),
		TotalVoterCount:       p.TotalVoterCount,
		IsClosed:              p.IsClosed,
		IsAnonymous:           p.IsAnonymous,
		Type:                  optStr(p.Type),
		AllowsMultipleAnswers: p.AllowsMultipleAnswers,
		Explanation:           optStr(p.Explanation),
		ExplanationEntities:   jsonSlice(p.ExplanationEntities),
		OpenPeriod:            optInt(p.OpenPeriod),
		CloseDate:             unixTime(int64(p.CloseDate)),
	}
	// The correct option index is only delivered for quiz polls; zero is
	// a valid index there, so the quiz type gates the column.
	if p.Type == "quiz" {
		v := p.CorrectOptionID
		row.CorrectOptionID = &v
	}
	return row
}

// mapPollAnswer returns the answer row and, when present, the voting user
// for entity upsert. Anonymous channel votes carry a voter chat instead of
// a user; its id keys the answer so a changed vote still overwrites.
func mapPollAnswer(a *telego.PollAnswer) (*domain.PollAnswer, *domain.User) {
	options := "[]"
	if len(a.OptionIDs) > 0 {
		options = jsonValue(a.OptionIDs)
	}
	row := &domain.PollAnswer{PollID: a.PollID, OptionIDs: options}

	var voter *domain.User
	switch {
	case a.User != nil:
		row.UserID = a.User.ID
		voter = mapUser(*a.User)
	case a.VoterChat != nil:
		row.UserID = a.VoterChat.ID
	}
	return row, voter
}

func mapChatMemberUpdate(u *telego.ChatMemberUpdated) *domain.ChatMemberUpdate {
	row := &domain.ChatMemberUpdate{
		ChatID:        u.Chat.ID,
		UserID:        u.From.ID,
		OldChatMember: jsonValue(u.OldChatMember),
		NewChatMember: jsonValue(u.NewChatMember),
		InviteLink:    jsonPtr(u.InviteLink),
	}
	if t := unixTime(int64(u.Date)); t != nil {
		row.Date = *t
	}
	return row
}

func mapChatJoinRequest(r *telego.ChatJoinRequest) *domain.ChatJoinRequest {
	row := &domain.ChatJoinRequest{
		ChatID:     r.Chat.ID,
		UserID:     r.From.ID,
		UserChatID: optInt64(r.UserChatID),
		Bio:        optStr(r.Bio),
		InviteLink: jsonPtr(r.InviteLink),
	}
	if t := unixTime(int64(r.Date)); t != nil {
		row.Date = *t
	}
	return row
}
