package protocol

import "testing"

func TestFeatureHas(t *testing.T) {
	fs := FeatureTypingTimeout | FeatureEditMessagesWithinFifteenMins
	if !fs.Has(FeatureTypingTimeout) {
		t.Error("Has(typing_timeout) = false, want true")
	}
	if fs.Has(FeatureEditMessagesWithinTwoDays) {
		t.Error("Has(edit_2d) = true, want false")
	}
	if fs.Has(FeatureNone) {
		t.Error("Has(none) = true, want false")
	}
}

func TestFeatureString(t *testing.T) {
	tests := []struct {
		in   Feature
		want string
	}{
		{FeatureNone, "none"},
		{FeatureReactions, "reactions"},
		{FeatureAutoGetChatsOnLogin | FeatureLimitedReactions, "auto_get_chats|limited_reactions"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Feature(%d).String() = %q, want %q", uint32(tt.in), got, tt.want)
		}
	}
}

func TestRequestChat(t *testing.T) {
	reqs := []struct {
		req  Request
		want string
	}{
		{GetChatsRequest{}, ""},
		{SetStatusRequest{IsOnline: true}, ""},
		{GetChatHistoryRequest{ChatID: "c1", Limit: 5}, "c1"},
		{SendReactionRequest{ChatID: "c2", MsgID: "m"}, "c2"},
	}
	for _, tt := range reqs {
		if got := tt.req.Chat(); got != tt.want {
			t.Errorf("%T.Chat() = %q, want %q", tt.req, got, tt.want)
		}
	}
}
