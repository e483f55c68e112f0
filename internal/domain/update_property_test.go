package domain

import (
	"testing"

	"pgregory.net/rapid"
)

var allKinds = []UpdateKind{
	KindMessage, KindEditedMessage, KindChannelPost, KindEditedChannelPost,
	KindInlineQuery, KindChosenInlineResult, KindCallbackQuery,
	KindShippingQuery, KindPreCheckoutQuery, KindPoll, KindPollAnswer,
	KindMyChatMember, KindChatMember, KindChatJoinRequest,
}

// Property: Validate accepts a record exactly when one reference slot is
// populated and that slot matches the kind's key shape, for arbitrary
// generated rows.
func TestProperty_UpdateExclusivity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		kind := rapid.SampledFrom(allKinds).Draw(rt, "kind")

		upd := Update{
			ID:   rapid.Int64Range(1, 1<<62).Draw(rt, "id"),
			Kind: kind,
		}
		if rapid.Bool().Draw(rt, "hasChat") {
			upd.ChatID = i64(rapid.Int64Range(-1<<40, 1<<40).Draw(rt, "chatID"))
		}
		if rapid.Bool().Draw(rt, "hasMessage") {
			upd.MessageID = i64(rapid.Int64Range(1, 1<<40).Draw(rt, "messageID"))
		}
		if rapid.Bool().Draw(rt, "hasRef") {
			upd.PayloadRef = str(rapid.StringMatching(`[a-zA-Z0-9]{1,32}`).Draw(rt, "payloadRef"))
		}
		if rapid.Bool().Draw(rt, "hasRow") {
			upd.PayloadRowID = i64(rapid.Int64Range(1, 1<<40).Draw(rt, "payloadRowID"))
		}
		if rapid.Bool().Draw(rt, "hasVoter") {
			upd.PayloadUserID = i64(rapid.Int64Range(1, 1<<40).Draw(rt, "payloadUserID"))
		}

		shape, _ := kind.Shape()
		pair := upd.ChatID != nil && upd.MessageID != nil
		ref := upd.PayloadRef != nil
		row := upd.PayloadRowID != nil
		voter := upd.PayloadUserID != nil

		slots := 0
		if pair {
			slots++
		}
		if ref {
			slots++
		}
		if row {
			slots++
		}

		wantValid := slots == 1 &&
			(upd.ChatID != nil) == (upd.MessageID != nil)
		if wantValid {
			switch shape {
			case RefMessagePair:
				wantValid = pair && !voter
			case RefPlatformID:
				wantValid = ref && !voter
			case RefLocalRow:
				wantValid = row && !voter
			case RefPollVote:
				wantValid = ref && voter
			}
		}

		err := upd.Validate()
		if wantValid && err != nil {
			rt.Fatalf("Validate rejected a well-formed %s record: %v (%+v)", kind, err, upd)
		}
		if !wantValid && err == nil {
			rt.Fatalf("Validate accepted an ill-formed %s record: %+v", kind, upd)
		}
	})
}
