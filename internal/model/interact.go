package model

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
)

const (
	editWindowLong  = 48 * time.Hour
	editWindowShort = 15 * time.Minute
)

// DefaultReactions is offered when a backend does not limit reactions.
var DefaultReactions = []string{"👍", "❤️", "😂", "😮", "😢", "🙏"}

// Picker and prompt callbacks run without the Model lock held.
type (
	// ConfirmFunc asks a yes/no question.
	ConfirmFunc func(ctx context.Context, prompt string) bool
	// ReactionPicker returns the chosen emoji; ok is false on cancel.
	ReactionPicker func(ctx context.Context, options []string, current string) (emoji string, ok bool)
	// ChatPicker returns the chosen chat; ok is false on cancel.
	ChatPicker func(ctx context.Context, chats []ChatRow) (k store.Key, ok bool)
	// ContactPicker returns the chosen user id; ok is false on cancel.
	ContactPicker func(ctx context.Context, contacts []protocol.Contact) (userID string, ok bool)
	// FilePicker returns a file path; ok is false on cancel.
	FilePicker func(ctx context.Context) (path string, ok bool)
	// TextEditor edits text outside the UI, such as in $EDITOR.
	TextEditor func(ctx context.Context, text string) (string, error)
)

// Chat navigation.

// SelectChat makes k the current chat.
func (m *Model) SelectChat(k store.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.store.HasChat(k) {
		return fmt.Errorf("select chat %s: %w", k, ErrNotFound)
	}
	m.switchTo(k)
	return nil
}

// SelectChatAt makes the chat at position i of the sorted list current.
func (m *Model) SelectChatAt(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.sorted) {
		return fmt.Errorf("select chat %d: %w", i, ErrNotFound)
	}
	m.switchTo(m.sorted[i])
	return nil
}

// NextChat moves one chat down the list, wrapping around.
func (m *Model) NextChat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepChat(1)
}

// PrevChat moves one chat up the list, wrapping around.
func (m *Model) PrevChat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepChat(-1)
}

func (m *Model) stepChat(dir int) {
	n := len(m.sorted)
	if n == 0 {
		return
	}
	i := m.cur.Index
	if i < 0 {
		i = 0
	} else {
		i = (i + dir + n) % n
	}
	m.switchTo(m.sorted[i])
}

// NextUnreadChat moves to the next unread chat after the current one.
// Returns false if there is none.
func (m *Model) NextUnreadChat() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sorted)
	for step := 1; step <= n; step++ {
		k := m.sorted[(max(m.cur.Index, 0)+step)%n]
		if info, ok := m.store.Chat(k); ok && info.IsUnread && k != m.cur.Key {
			m.switchTo(k)
			return true
		}
	}
	return false
}

// switchTo changes the current chat. Selection, edit and find state do
// not survive a switch.
func (m *Model) switchTo(k store.Key) {
	if k == m.cur.Key {
		return
	}
	if !m.cur.Key.IsZero() {
		m.stopTyping()
		delete(m.typing.remote, m.cur.Key)
		m.pager.reset(m.cur.Key)
	}
	m.resetMode()
	m.cur = Cursor{Key: k, Index: slices.Index(m.sorted, k)}
	m.pager.reset(k)
	m.out.Send(k.Account, protocol.SetCurrentChatRequest{ChatID: k.Chat})
	m.logger.Debug("current chat changed", zap.String("chat", k.String()))
	m.prefetch()
	m.markVisibleRead()
	m.markAllDirty()
}

// markVisibleRead sends one MarkRead per unread inbound message on screen
// and clears the chat's unread flag.
func (m *Model) markVisibleRead() {
	k := m.cur.Key
	if k.IsZero() {
		return
	}
	everyView := m.out.SupportsFeature(k.Account, protocol.FeatureMarkReadEveryView)
	for _, msg := range m.store.Window(k, m.pager.visibleFrom(k), m.pager.window) {
		if msg.IsOutgoing || msg.IsRead {
			continue
		}
		ref := msgRef{key: k, id: msg.ID}
		if m.readSent[ref] && !everyView {
			continue
		}
		m.readSent[ref] = true
		m.out.Send(k.Account, protocol.MarkReadRequest{ChatID: k.Chat, MsgID: msg.ID, SenderID: msg.SenderID})
	}
	m.store.UpdateChat(k, func(c *protocol.ChatInfo) {
		if c.IsUnread {
			c.IsUnread = false
			m.markDirty(regionList)
		}
	})
}

// Compose buffer.

// SetEntry replaces the compose buffer of the current chat.
func (m *Model) SetEntry(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.cur.Key
	if k.IsZero() {
		return
	}
	if text == "" {
		delete(m.entries, k)
	} else {
		m.entries[k] = text
	}
	if m.mode.Current() != ModeEditing {
		m.entryChanged(k, text)
	}
	m.markDirty(regionEntry)
}

// Entry returns the compose buffer of the current chat.
func (m *Model) Entry() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.cur.Key]
}

// Send sends the compose buffer to the current chat. While a message is
// selected the new message quotes it. While editing it saves the edit.
func (m *Model) Send() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode.Current() == ModeEditing {
		return m.saveEdit()
	}
	return m.send("")
}

func (m *Model) send(filePath string) error {
	k := m.cur.Key
	if k.IsZero() {
		return ErrNoChat
	}
	text := m.entries[k]
	if strings.TrimSpace(text) == "" && filePath == "" {
		return nil
	}
	req := protocol.SendMessageRequest{
		ChatID:   k.Chat,
		ClientID: uuid.NewString(),
		Text:     text,
		FilePath: filePath,
	}
	if m.mode.Current() == ModeSelecting && m.selectedID != "" {
		if quoted, ok := m.store.Message(k, m.selectedID); ok {
			req.QuotedID = quoted.ID
			req.QuotedText = quoted.Text
			req.QuotedSender = quoted.SenderID
		}
	}
	if !m.out.Send(k.Account, req) {
		m.setFlash("send failed")
		return fmt.Errorf("send to %s: not delivered to backend", k)
	}
	delete(m.entries, k)
	m.stopTyping()
	if m.mode.Current() == ModeSelecting {
		m.leaveSelection()
	}
	m.markDirty(regionEntry, regionHistory)
	return nil
}

// SendFile asks for a file and sends it to the current chat.
func (m *Model) SendFile(ctx context.Context, pick FilePicker) error {
	m.mu.Lock()
	k := m.cur.Key
	m.mu.Unlock()
	if k.IsZero() {
		return ErrNoChat
	}

	path, ok := pick(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok || path == "" {
		return nil
	}
	if m.cur.Key != k || !m.store.HasChat(k) {
		return fmt.Errorf("send file: chat %s: %w", k, ErrNotFound)
	}
	return m.send(path)
}

// Editing.

// BeginEdit starts editing the selected message.
func (m *Model) BeginEdit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	const op = "edit"
	k := m.cur.Key
	switch m.mode.Current() {
	case ModeEditing:
		return m.reject(op, ReasonEditing)
	case ModeSelecting:
	default:
		return m.reject(op, ReasonNotSelecting)
	}
	var window time.Duration
	switch {
	case m.out.SupportsFeature(k.Account, protocol.FeatureEditMessagesWithinTwoDays):
		window = editWindowLong
	case m.out.SupportsFeature(k.Account, protocol.FeatureEditMessagesWithinFifteenMins):
		window = editWindowShort
	default:
		return m.reject(op, ReasonNotSupported)
	}
	msg, ok := m.store.Message(k, m.selectedID)
	if !ok {
		return m.reject(op, ReasonNoSelection)
	}
	if !msg.IsOutgoing {
		return m.reject(op, ReasonNotOutgoing)
	}
	if m.now().Sub(time.UnixMilli(msg.TimeSent)) > window {
		return m.reject(op, ReasonTooOld)
	}
	if err := m.mode.Transition(ModeEditing); err != nil {
		return err
	}
	m.editID = msg.ID
	m.entries[k] = msg.Text
	return nil
}

// SaveEdit sends the edited text and returns to Normal.
func (m *Model) SaveEdit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEdit()
}

func (m *Model) saveEdit() error {
	if m.mode.Current() != ModeEditing {
		return m.reject("save edit", ReasonNotSelecting)
	}
	k := m.cur.Key
	msg, ok := m.store.Message(k, m.editID)
	text := m.entries[k]
	m.pager.reset(k)
	m.resetMode()
	if !ok {
		m.logger.Debug("edited message vanished", zap.String("chat", k.String()), zap.String("msg_id", m.editID))
		return fmt.Errorf("save edit: %w", ErrNotFound)
	}
	if text == msg.Text || strings.TrimSpace(text) == "" {
		return nil
	}
	msg.Text = text
	m.out.Send(k.Account, protocol.EditMessageRequest{ChatID: k.Chat, Message: msg})
	return nil
}

// CancelEdit leaves editing and discards the compose buffer.
func (m *Model) CancelEdit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode.Current() != ModeEditing {
		return
	}
	m.pager.reset(m.cur.Key)
	m.resetMode()
}

// EditExternal edits the compose buffer with an external editor.
func (m *Model) EditExternal(ctx context.Context, edit TextEditor) error {
	m.mu.Lock()
	k := m.cur.Key
	text := m.entries[k]
	m.mu.Unlock()
	if k.IsZero() {
		return ErrNoChat
	}

	out, err := edit(ctx, text)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.setFlash("editor failed")
		return fmt.Errorf("external editor: %w", err)
	}
	if m.cur.Key != k {
		return fmt.Errorf("external editor: chat %s: %w", k, ErrNotFound)
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		delete(m.entries, k)
	} else {
		m.entries[k] = out
	}
	m.markDirty(regionEntry)
	return nil
}

// Message actions.

// selection returns the current chat and the selected message.
func (m *Model) selection(op string) (store.Key, protocol.ChatMessage, error) {
	k := m.cur.Key
	if k.IsZero() {
		return k, protocol.ChatMessage{}, ErrNoChat
	}
	if m.mode.Current() != ModeSelecting {
		return k, protocol.ChatMessage{}, m.reject(op, ReasonNotSelecting)
	}
	msg, ok := m.store.Message(k, m.selectedID)
	if !ok {
		return k, protocol.ChatMessage{}, m.reject(op, ReasonNoSelection)
	}
	return k, msg, nil
}

// DeleteSelected deletes the selected message after confirmation.
func (m *Model) DeleteSelected(ctx context.Context, confirm ConfirmFunc) error {
	const op = "delete"
	m.mu.Lock()
	k, msg, err := m.selection(op)
	if err == nil && !m.out.SupportsFeature(k.Account, protocol.FeatureDeleteMessages) {
		err = m.reject(op, ReasonNotSupported)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if !confirm(ctx, "Delete message?") {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store.Message(k, msg.ID); !ok {
		return fmt.Errorf("delete %s: %w", msg.ID, ErrNotFound)
	}
	m.out.Send(k.Account, protocol.DeleteMessageRequest{ChatID: k.Chat, MsgID: msg.ID, SenderID: msg.SenderID})
	return nil
}

// React offers the reaction set for the selected message and sends the
// chosen one. Choosing the emoji already set removes it.
func (m *Model) React(ctx context.Context, pick ReactionPicker) error {
	const op = "react"
	m.mu.Lock()
	k, msg, err := m.selection(op)
	var limited bool
	var wait <-chan struct{}
	options := DefaultReactions
	if err == nil {
		limited = m.out.SupportsFeature(k.Account, protocol.FeatureLimitedReactions)
		if !limited && !m.out.SupportsFeature(k.Account, protocol.FeatureReactions) {
			err = m.reject(op, ReasonNotSupported)
		}
	}
	if err == nil && limited {
		options, wait = m.availableReactions(k, msg.ID)
	}
	self := m.out.SelfID(k.Account)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
		options = slices.Clone(m.reactions[msgRef{key: k, id: msg.ID}])
		m.mu.Unlock()
	}
	current := msg.Reactions.SenderEmojis[self]
	emoji, ok := pick(ctx, options, current)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.store.Message(k, msg.ID); !found {
		return fmt.Errorf("react %s: %w", msg.ID, ErrNotFound)
	}
	if emoji == current {
		emoji = ""
	}
	m.out.Send(k.Account, protocol.SendReactionRequest{
		ChatID:    k.Chat,
		MsgID:     msg.ID,
		SenderID:  msg.SenderID,
		Emoji:     emoji,
		PrevEmoji: current,
	})
	return nil
}

// availableReactions returns the cached reaction set of a message, or a
// channel closed once the backend has sent it.
func (m *Model) availableReactions(k store.Key, id string) ([]string, <-chan struct{}) {
	ref := msgRef{key: k, id: id}
	if opts, ok := m.reactions[ref]; ok {
		return slices.Clone(opts), nil
	}
	ch := make(chan struct{})
	if len(m.reactWait[ref]) == 0 {
		m.out.Send(k.Account, protocol.GetAvailableReactionsRequest{ChatID: k.Chat, MsgID: id})
	}
	m.reactWait[ref] = append(m.reactWait[ref], ch)
	return nil, ch
}

// ForwardSelected sends the selected message's content to another chat.
func (m *Model) ForwardSelected(ctx context.Context, pick ChatPicker) error {
	m.mu.Lock()
	_, msg, err := m.selection("forward")
	var rows []ChatRow
	if err == nil {
		for _, k := range m.sorted {
			rows = append(rows, ChatRow{Key: k, Name: m.chatName(k)})
		}
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	target, ok := pick(ctx, rows)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.store.HasChat(target) {
		return fmt.Errorf("forward to %s: %w", target, ErrNotFound)
	}
	m.out.Send(target.Account, protocol.SendMessageRequest{
		ChatID:   target.Chat,
		ClientID: uuid.NewString(),
		Text:     msg.Text,
		FileInfo: msg.FileInfo,
	})
	m.setFlash("forwarded to " + m.chatName(target))
	return nil
}

// JumpToQuoted selects the message quoted by the selected message.
func (m *Model) JumpToQuoted() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, msg, err := m.selection("jump to quoted")
	if err != nil {
		return err
	}
	if msg.QuotedID == "" {
		return m.reject("jump to quoted", ReasonNotFound)
	}
	return m.jumpTo(msg.QuotedID)
}

// Find.

// BeginFind enters text search mode.
func (m *Model) BeginFind() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.Key.IsZero() {
		return ErrNoChat
	}
	from := m.mode.Current()
	if from == ModeEditing || from == ModeFinding {
		return m.reject("find", m.busyReason())
	}
	if err := m.mode.Transition(ModeFinding); err != nil {
		return err
	}
	m.findReturn = from
	return nil
}

// CancelFind leaves find mode.
func (m *Model) CancelFind() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode.Current() != ModeFinding {
		return
	}
	m.endFind()
}

func (m *Model) endFind() {
	to := m.findReturn
	if to != ModeSelecting || m.selectedID == "" {
		to = ModeNormal
	}
	if err := m.mode.Transition(to); err != nil {
		m.logger.Error("leaving find failed", zap.Error(err))
	}
}

// SubmitFind searches the current chat for text, older than the selected
// message or from the newest one.
func (m *Model) SubmitFind(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode.Current() != ModeFinding {
		return m.reject("find", ReasonNotSelecting)
	}
	m.endFind()
	if text == "" {
		return nil
	}
	m.lastFind = text
	return m.find(text)
}

// FindNext repeats the last search from the selected message.
func (m *Model) FindNext() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastFind == "" {
		return m.reject("find next", ReasonNotFound)
	}
	if mode := m.mode.Current(); mode == ModeEditing || mode == ModeFinding {
		return m.reject("find next", m.busyReason())
	}
	return m.find(m.lastFind)
}

func (m *Model) find(text string) error {
	k := m.cur.Key
	if k.IsZero() {
		return ErrNoChat
	}
	start := 0
	if m.selectedID != "" {
		start = m.store.IndexOf(k, m.selectedID) + 1
	}
	needle := strings.ToLower(text)
	for i := start; i < m.store.HistoryLen(k); i++ {
		id, _ := m.store.IDAt(k, i)
		if msg, ok := m.store.Message(k, id); ok && strings.Contains(strings.ToLower(msg.Text), needle) {
			m.selectAt(i)
			m.prefetch()
			return nil
		}
	}
	if m.out.SupportsFeature(k.Account, protocol.FeatureFindMessages) {
		from, _ := m.store.IDAt(k, max(start-1, 0))
		last, _ := m.store.Oldest(k)
		m.out.Send(k.Account, protocol.FindMessageRequest{ChatID: k.Chat, FromMsgID: from, LastMsgID: last, FindText: text})
		return nil
	}
	return m.reject("find", ReasonNotFound)
}

// Chat actions.

// CreateChat asks for a contact of account and opens a chat with them.
func (m *Model) CreateChat(ctx context.Context, account string, pick ContactPicker) error {
	m.mu.Lock()
	contacts := m.store.Contacts(account)
	m.mu.Unlock()
	slices.SortFunc(contacts, func(a, b protocol.Contact) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	userID, ok := pick(ctx, contacts)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if k := (store.Key{Account: account, Chat: userID}); m.store.HasChat(k) {
		m.switchTo(k)
		return nil
	}
	if !m.out.Send(account, protocol.CreateChatRequest{UserID: userID}) {
		return fmt.Errorf("create chat on %s: unknown account", account)
	}
	return nil
}

// DeleteCurrentChat deletes the current chat after confirmation.
func (m *Model) DeleteCurrentChat(ctx context.Context, confirm ConfirmFunc) error {
	m.mu.Lock()
	k := m.cur.Key
	name := m.chatName(k)
	m.mu.Unlock()
	if k.IsZero() {
		return ErrNoChat
	}

	if !confirm(ctx, fmt.Sprintf("Delete chat %s?", name)) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.store.HasChat(k) {
		return fmt.Errorf("delete chat %s: %w", k, ErrNotFound)
	}
	m.out.Send(k.Account, protocol.DeleteChatRequest{ChatID: k.Chat})
	return nil
}

// ToggleMute flips the mute state of the current chat.
func (m *Model) ToggleMute() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.cur.Key
	info, ok := m.store.Chat(k)
	if !ok {
		return ErrNoChat
	}
	m.out.Send(k.Account, protocol.SetMuteRequest{ChatID: k.Chat, IsMuted: !info.IsMuted})
	return nil
}

// TogglePin flips the pin state of the current chat.
func (m *Model) TogglePin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.cur.Key
	info, ok := m.store.Chat(k)
	if !ok {
		return ErrNoChat
	}
	m.out.Send(k.Account, protocol.SetPinRequest{ChatID: k.Chat, IsPinned: !info.IsPinned})
	return nil
}
