package wa

import (
	"context"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// normalize strips the device part and maps LID JIDs to phone number JIDs
// so one person is one chat.
func (b *Backend) normalize(ctx context.Context, jid types.JID) types.JID {
	jid = jid.ToNonAD()
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if b.client == nil || b.client.Store == nil || b.client.Store.LIDs == nil {
		return jid
	}
	pn, err := b.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// normalizeString is normalize for a JID in string form. Unparsable input
// is returned unchanged.
func (b *Backend) normalizeString(ctx context.Context, s string) string {
	if s == "" {
		return ""
	}
	jid, err := types.ParseJID(s)
	if err != nil {
		return s
	}
	return b.normalize(ctx, jid).String()
}

// userJID parses a user id, accepting a bare phone number.
func userJID(id string) (types.JID, error) {
	if !strings.Contains(id, "@") {
		id = strings.TrimPrefix(strings.NewReplacer(" ", "", "-", "").Replace(id), "+")
		return types.NewJID(id, types.DefaultUserServer), nil
	}
	return types.ParseJID(id)
}
