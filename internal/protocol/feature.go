package protocol

import "strings"

// Feature is a static capability flag a backend reports for its account.
type Feature uint32

const (
	FeatureNone Feature = 0
	// FeatureAutoGetChatsOnLogin means the backend emits NewChats after
	// connecting without being asked.
	FeatureAutoGetChatsOnLogin Feature = 1 << iota
	// FeatureTypingTimeout means remote typing state expires unless resent.
	FeatureTypingTimeout
	FeatureEditMessagesWithinTwoDays
	FeatureEditMessagesWithinFifteenMins
	// FeatureLimitedReactions means each message carries its own set of
	// allowed emojis, fetched with GetAvailableReactions.
	FeatureLimitedReactions
	FeatureReactions
	FeatureMarkReadEveryView
	// FeatureNotifyEveryUnread is set by backends that cannot tell replayed
	// history from new messages across reconnects.
	FeatureNotifyEveryUnread
	FeatureDeleteMessages
	FeatureFindMessages
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureAutoGetChatsOnLogin, "auto_get_chats"},
	{FeatureTypingTimeout, "typing_timeout"},
	{FeatureEditMessagesWithinTwoDays, "edit_2d"},
	{FeatureEditMessagesWithinFifteenMins, "edit_15m"},
	{FeatureLimitedReactions, "limited_reactions"},
	{FeatureReactions, "reactions"},
	{FeatureMarkReadEveryView, "mark_read_every_view"},
	{FeatureNotifyEveryUnread, "notify_every_unread"},
	{FeatureDeleteMessages, "delete"},
	{FeatureFindMessages, "find"},
}

// Has reports whether all bits of f are set.
func (fs Feature) Has(f Feature) bool {
	return f != FeatureNone && fs&f == f
}

func (fs Feature) String() string {
	if fs == FeatureNone {
		return "none"
	}
	var names []string
	for _, fn := range featureNames {
		if fs.Has(fn.f) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}
