package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/model"
	"github.com/matheus3301/mchat/internal/tui/keys"
	"github.com/matheus3301/mchat/internal/tui/ui"
)

func runeAction(r rune, desc string, visible bool, fn func()) *keys.Action {
	return &keys.Action{Key: tcell.KeyRune, Rune: r, Description: desc, Handler: fn, Visible: visible}
}

func keyAction(k tcell.Key, desc string, visible bool, fn func()) *keys.Action {
	return &keys.Action{Key: k, Description: desc, Handler: fn, Visible: visible}
}

func (a *App) setupBindings() {
	r := a.registry

	r.AddGlobal("quit", runeAction('q', "Quit", true, a.m.Quit))
	r.AddGlobal("help", runeAction('?', "Help", true, a.showHelp))
	r.AddGlobal("command", runeAction(':', "Command", true, func() { a.showPrompt(ui.PromptCommand) }))
	r.AddGlobal("compose", runeAction('i', "Compose", true, a.focusComposer))
	r.AddGlobal("next-chat", keyAction(tcell.KeyTab, "Next chat", false, a.m.NextChat))
	r.AddGlobal("prev-chat", keyAction(tcell.KeyBacktab, "Previous chat", false, a.m.PrevChat))
	r.AddGlobal("next-unread", runeAction('u', "Next unread", true, func() {
		if !a.m.NextUnreadChat() {
			a.setNote("no unread chats")
		}
	}))
	for i := 1; i <= 9; i++ {
		r.AddGlobal(fmt.Sprintf("chat-%d", i), runeAction(rune('0'+i), fmt.Sprintf("Open chat %d", i), false, func() {
			a.report("chat", a.m.SelectChatAt(i-1))
		}))
	}
	r.AddGlobal("find", runeAction('/', "Find", true, a.beginFind))
	r.AddGlobal("find-next", runeAction('n', "Find next", false, func() { a.report("find", a.m.FindNext()) }))
	r.AddGlobal("select-up", runeAction('k', "Select older", false, func() { a.report("select", a.m.SelectUp()) }))
	r.AddGlobal("select-up-arrow", keyAction(tcell.KeyUp, "Select older", false, func() { a.report("select", a.m.SelectUp()) }))
	r.AddGlobal("page-up", keyAction(tcell.KeyPgUp, "Page up", false, func() { a.report("page", a.m.PageUp()) }))
	r.AddGlobal("page-down", keyAction(tcell.KeyPgDn, "Page down", false, func() { a.report("page", a.m.PageDown()) }))
	r.AddGlobal("start", runeAction('g', "Oldest message", false, func() {
		a.async("jump", a.m.JumpToStart)
	}))
	r.AddGlobal("end", runeAction('G', "Newest message", false, func() { a.report("jump", a.m.JumpToEnd()) }))
	r.AddGlobal("attach", runeAction('a', "Attach", true, func() {
		a.async("attach", func(ctx context.Context) error { return a.m.SendFile(ctx, a.pickFile) })
	}))
	r.AddGlobal("new-chat", runeAction('c', "New chat", true, func() { a.newChat("") }))
	r.AddGlobal("delete-chat", runeAction('D', "Delete chat", false, a.deleteChat))
	r.AddGlobal("mute", runeAction('m', "Mute", false, func() { a.report("mute", a.m.ToggleMute()) }))
	r.AddGlobal("pin", runeAction('p', "Pin", false, func() { a.report("pin", a.m.TogglePin()) }))
	r.AddGlobal("info", runeAction('I', "Chat info", false, a.showInfo))

	sel := string(model.ModeSelecting)
	r.AddView(sel, "select-down", runeAction('j', "Newer", true, func() { a.report("select", a.m.SelectDown()) }))
	r.AddView(sel, "select-down-arrow", keyAction(tcell.KeyDown, "Newer", false, func() { a.report("select", a.m.SelectDown()) }))
	r.AddView(sel, "reply", keyAction(tcell.KeyEnter, "Reply", true, a.focusComposer))
	r.AddView(sel, "edit", runeAction('e', "Edit", true, func() {
		if err := a.m.BeginEdit(); err != nil {
			a.report("edit", err)
			return
		}
		a.focusComposer()
	}))
	r.AddView(sel, "delete", runeAction('d', "Delete", true, func() {
		a.async("delete", func(ctx context.Context) error { return a.m.DeleteSelected(ctx, a.confirm) })
	}))
	r.AddView(sel, "react", runeAction('r', "React", true, func() {
		a.async("react", func(ctx context.Context) error { return a.m.React(ctx, a.pickReaction) })
	}))
	r.AddView(sel, "forward", runeAction('f', "Forward", true, func() {
		a.async("forward", func(ctx context.Context) error { return a.m.ForwardSelected(ctx, a.pickChat) })
	}))
	r.AddView(sel, "quoted", runeAction('o', "Open quote", true, func() { a.report("jump", a.m.JumpToQuoted()) }))
	r.AddView(sel, "leave", keyAction(tcell.KeyEscape, "Back", true, func() { a.report("jump", a.m.JumpToEnd()) }))

	edit := string(model.ModeEditing)
	r.AddView(edit, "cancel-edit", keyAction(tcell.KeyEscape, "Cancel edit", true, func() {
		a.m.CancelEdit()
		a.focusMessages()
	}))
	r.AddView(edit, "resume-edit", runeAction('i', "Resume edit", true, a.focusComposer))
}

func (a *App) newChat(account string) {
	if account == "" {
		account = a.defaultAccount()
	}
	if account == "" {
		a.setNote("no accounts configured")
		return
	}
	a.async("new chat", func(ctx context.Context) error {
		return a.m.CreateChat(ctx, account, a.pickContact)
	})
}

func (a *App) deleteChat() {
	a.async("delete chat", func(ctx context.Context) error {
		return a.m.DeleteCurrentChat(ctx, a.confirm)
	})
}

// defaultAccount is the account of the open chat, else the first one.
func (a *App) defaultAccount() string {
	if k := a.m.Current().Key; !k.IsZero() {
		return k.Account
	}
	if len(a.accts) > 0 {
		return a.accts[0]
	}
	return ""
}

// runCommand executes a command typed at the ':' prompt.
func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "":
	case "q", "quit":
		a.m.Quit()
	case "h", "help":
		a.showHelp()
	case "chat":
		a.openChat(cmd)
	case "new":
		a.newChat(cmd.Args)
	case "delete":
		a.deleteChat()
	case "mute":
		a.report("mute", a.m.ToggleMute())
	case "pin":
		a.report("pin", a.m.TogglePin())
	case "attach":
		if cmd.Args != "" {
			path := expandHome(cmd.Args)
			a.async("attach", func(ctx context.Context) error {
				return a.m.SendFile(ctx, func(context.Context) (string, bool) { return path, true })
			})
			return
		}
		a.async("attach", func(ctx context.Context) error { return a.m.SendFile(ctx, a.pickFile) })
	case "edit":
		a.async("external editor", func(ctx context.Context) error {
			return a.m.EditExternal(ctx, a.editExternal)
		})
	case "find":
		if err := a.m.BeginFind(); err != nil {
			a.report("find", err)
			return
		}
		a.report("find", a.m.SubmitFind(cmd.Args))
	case "window":
		n, ok := cmd.Int()
		if !ok || n <= 0 {
			a.setNote("usage: :window <n>")
			return
		}
		a.m.SetWindow(n)
	case "info":
		a.showInfo()
	default:
		a.setNote(fmt.Sprintf("unknown command: %s", cmd.Name))
	}
}

// openChat opens a chat by list position or by name prefix.
func (a *App) openChat(cmd Command) {
	if n, ok := cmd.Int(); ok {
		a.report("chat", a.m.SelectChatAt(n-1))
		return
	}
	if cmd.Args == "" {
		a.setNote("usage: :chat <n|name>")
		return
	}
	want := strings.ToLower(cmd.Args)
	for _, row := range a.m.Snapshot().Chats {
		if strings.HasPrefix(strings.ToLower(row.Name), want) {
			a.report("chat", a.m.SelectChat(row.Key))
			return
		}
	}
	a.setNote(fmt.Sprintf("no chat matching %q", cmd.Args))
}
