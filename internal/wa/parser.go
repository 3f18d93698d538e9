package wa

import (
	"github.com/matheus3301/mchat/internal/protocol"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

// parseMessage converts a whatsmeow message to a chat message. SenderID is
// left to the caller, which resolves JIDs.
func parseMessage(info types.MessageInfo, msg *waE2E.Message) protocol.ChatMessage {
	m := protocol.ChatMessage{
		ID:         info.ID,
		Text:       extractTextBody(msg),
		TimeSent:   info.Timestamp.UnixMilli(),
		IsOutgoing: info.IsFromMe,
		IsRead:     info.IsFromMe,
	}
	quote(&m, msg)
	attach(&m, msg)
	return m
}

func quote(m *protocol.ChatMessage, msg *waE2E.Message) {
	ci := contextInfo(msg)
	if ci == nil || ci.GetStanzaID() == "" {
		return
	}
	m.QuotedID = ci.GetStanzaID()
	m.QuotedSender = ci.GetParticipant()
	m.QuotedText = extractTextBody(ci.GetQuotedMessage())
}

// attach records a media attachment. whatsmeow media is never downloaded
// here, so the file stays NotDownloaded with its type as FileInfo.
func attach(m *protocol.ChatMessage, msg *waE2E.Message) {
	kind := detectMessageType(msg)
	switch kind {
	case "text", "unknown":
		return
	}
	m.FileInfo = kind
	m.FileStatus = protocol.FileStatusNotDownloaded
	if m.Text == "" {
		m.Text = caption(msg)
	}
}

func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	}
	return nil
}

func caption(msg *waE2E.Message) string {
	if c := msg.GetImageMessage().GetCaption(); c != "" {
		return c
	}
	return msg.GetVideoMessage().GetCaption()
}

// protocolMessage returns the revoke or edit carried by msg, if any.
func protocolMessage(msg *waE2E.Message) *waE2E.ProtocolMessage {
	if pm := msg.GetProtocolMessage(); pm != nil {
		return pm
	}
	return msg.GetEditedMessage().GetMessage().GetProtocolMessage()
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}
