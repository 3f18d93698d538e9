package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/model"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
	"github.com/matheus3301/mchat/internal/tui/keys"
	"github.com/matheus3301/mchat/internal/tui/ui"
	"github.com/matheus3301/mchat/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageMain    = "main"
	pageHelp    = "help"
	pageInfo    = "info"
	pagePrompt  = "prompt"
	pagePicker  = "picker"
	pageConfirm = "confirm"

	tickInterval    = time.Second
	controlPoll     = 100 * time.Millisecond
	noteDuration    = 5 * time.Second
	defaultEditor   = "vi"
	accountsHeight  = 4
	chatListWidth   = 36
	threadMinHeight = 5
)

// Options configure the terminal UI.
type Options struct {
	Profile  string
	Accounts []string
	Logger   *zap.Logger
	// Editor is the external editor command; defaults to $EDITOR, then vi.
	Editor string
}

// App is the terminal front end. It draws Model snapshots and turns keys
// into Model commands.
type App struct {
	app      *tview.Application
	m        *model.Model
	logger   *zap.Logger
	theme    *ui.Theme
	pages    *ui.Pages
	registry *keys.Registry

	crumbs    *ui.Crumbs
	accounts  *ui.AccountsInfo
	chatList  *views.ChatList
	thread    *views.MessageThread
	logo      *ui.Logo
	body      *tview.Pages
	statusBar *views.StatusBar
	flashBar  *ui.FlashBar
	menu      *ui.Menu
	help      *views.HelpView
	info      *views.ChatInfo
	prompt    *ui.Prompt

	profile  string
	accts    []string
	editor   string
	started  time.Time
	helpOpen bool

	mu        sync.Mutex
	screen    tcell.Screen
	note      string
	noteUntil time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the terminal UI for m.
func New(m *model.Model, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	editor := opts.Editor
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = defaultEditor
	}
	theme := ui.DefaultTheme()
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		m:         m,
		logger:    logger,
		theme:     theme,
		pages:     ui.NewPages(),
		registry:  keys.NewRegistry(),
		crumbs:    ui.NewCrumbs(theme),
		accounts:  ui.NewAccountsInfo(theme),
		chatList:  views.NewChatList(theme),
		thread:    views.NewMessageThread(theme),
		logo:      ui.NewLogo(theme),
		body:      tview.NewPages(),
		statusBar: views.NewStatusBar(theme, opts.Profile),
		flashBar:  ui.NewFlashBar(theme),
		menu:      ui.NewMenu(theme),
		help:      views.NewHelpView(theme),
		info:      views.NewChatInfo(theme),
		prompt:    ui.NewPrompt(theme),
		profile:   opts.Profile,
		accts:     opts.Accounts,
		editor:    editor,
		started:   time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

// Bell rings the terminal bell. It is safe to call from any goroutine.
func (a *App) Bell() {
	a.mu.Lock()
	screen := a.screen
	a.mu.Unlock()
	if screen != nil {
		_ = screen.Beep()
	}
}

func (a *App) setupCallbacks() {
	composer := a.thread.Composer()
	composer.SetOnChange(a.m.SetEntry)
	composer.SetOnSend(func() {
		a.report("send", a.m.Send())
		if a.m.Mode() != model.ModeEditing {
			a.focusMessages()
		}
	})
	composer.SetOnLeave(func() {
		if a.m.Mode() == model.ModeEditing {
			a.m.CancelEdit()
		}
		a.focusMessages()
	})
	composer.SetOnExternal(func() {
		a.async("external editor", func(ctx context.Context) error {
			return a.m.EditExternal(ctx, a.editExternal)
		})
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.closeOverlay(pagePrompt)
		switch mode {
		case ui.PromptFind:
			a.report("find", a.m.SubmitFind(text))
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func(mode ui.PromptMode) {
		a.closeOverlay(pagePrompt)
		if mode == ui.PromptFind {
			a.m.CancelFind()
		}
	})
}

func (a *App) setupLayout() {
	a.body.AddPage("logo", a.logo, true, true)
	a.body.AddPage("thread", a.thread, true, false)

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.accounts, accountsHeight, 0, false).
		AddItem(a.chatList, 0, 1, false)

	columns := tview.NewFlex().
		AddItem(left, chatListWidth, 0, false).
		AddItem(a.body, 0, 1, true)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(columns, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.menu, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.Push(pageMain, root)
	a.app.SetRoot(a.pages, true)
	a.app.SetFocus(a.thread.Messages())
	a.app.SetInputCapture(a.capture)
	a.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		a.mu.Lock()
		a.screen = screen
		a.mu.Unlock()
		return false
	})
}

// capture routes a key to the registry of the current mode. Overlays and
// the composer own their keys.
func (a *App) capture(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		a.m.Quit()
		return nil
	}
	switch a.pages.Current() {
	case pageMain:
	case pageHelp:
		a.helpKey(ev)
		return nil
	case pageInfo:
		if ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
			a.closeOverlay(pageInfo)
		}
		return nil
	default:
		return ev
	}
	if a.app.GetFocus() == a.thread.Composer().InputField {
		return ev
	}
	if a.registry.HandleEvent(string(a.m.Mode()), ev) {
		return nil
	}
	return ev
}

func (a *App) helpKey(ev *tcell.EventKey) {
	switch {
	case ev.Key() == tcell.KeyEscape, ev.Rune() == '?', ev.Rune() == 'q':
		a.helpOpen = false
		a.closeOverlay(pageHelp)
	case ev.Key() == tcell.KeyRight, ev.Key() == tcell.KeyPgDn, ev.Rune() == ' ', ev.Rune() == 'l':
		a.m.HelpNext()
	case ev.Key() == tcell.KeyLeft, ev.Key() == tcell.KeyPgUp, ev.Rune() == 'h':
		a.m.HelpPrev()
	}
}

// Run shows the UI and blocks until the user quits or a backend asks the
// application to exit.
func (a *App) Run() error {
	a.wg.Add(1)
	go a.loop()
	err := a.app.Run()
	a.cancel()
	a.wg.Wait()
	return err
}

// loop redraws on model changes, ticks the model clock and hands the
// terminal to backends that ask for it.
func (a *App) loop() {
	defer a.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	a.app.QueueUpdateDraw(a.redraw)
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.m.Done():
			a.app.Stop()
			return
		case <-a.m.RefreshCh():
			a.app.QueueUpdateDraw(a.redraw)
		case <-ticker.C:
			a.m.Tick()
			a.app.QueueUpdateDraw(a.redraw)
		}
		if a.m.TerminalControlled() {
			a.yieldTerminal()
		}
	}
}

// yieldTerminal suspends the screen while a backend controls the terminal.
func (a *App) yieldTerminal() {
	a.logger.Info("terminal handed to backend")
	a.app.Suspend(func() {
		for a.m.TerminalControlled() {
			select {
			case <-a.ctx.Done():
				return
			case <-a.m.Done():
				return
			case <-time.After(controlPoll):
			}
		}
	})
	a.logger.Info("terminal returned to ui")
	a.app.QueueUpdateDraw(a.redraw)
}

// redraw runs on the event loop. Taking the snapshot there keeps it
// ordered with composer edits.
func (a *App) redraw() {
	d := a.m.TakeDirty()
	v := a.m.Snapshot()
	a.render(d, v)
}

func (a *App) render(d model.Dirty, v model.View) {
	a.chatList.Update(v.Chats, v.Current.Index)
	a.renderAccounts(v)

	trail := []string{a.profile}
	if !v.Current.Key.IsZero() {
		trail = append(trail, v.Current.Key.Account, v.Title)
		a.body.SwitchToPage("thread")
		a.thread.Update(v)
		if d.Entry || a.app.GetFocus() != a.thread.Composer().InputField {
			a.thread.Composer().Sync(v.Entry)
		}
	} else {
		a.body.SwitchToPage("logo")
	}
	a.crumbs.Update(trail)

	if v.Mode == model.ModeEditing && a.pages.Current() == pageMain {
		a.app.SetFocus(a.thread.Composer().InputField)
	}

	a.flashBar.Update(a.flash(v.Flash))
	a.menu.Update(toMenuHints(a.registry.Hints(string(v.Mode))))
	a.statusBar.Update(a.accountStatus(), v.Mode)
	if a.helpOpen {
		a.help.Update(a.helpSections(v.Mode), v.HelpPage)
	}
}

func (a *App) renderAccounts(v model.View) {
	counts := make(map[string]int)
	for _, c := range v.Chats {
		counts[c.Key.Account]++
	}
	data := ui.AccountsData{Profile: a.profile, Uptime: time.Since(a.started)}
	for _, id := range a.accts {
		data.Accounts = append(data.Accounts, ui.AccountData{ID: id, Status: a.m.Connection(id), Chats: counts[id]})
	}
	a.accounts.Update(data)
}

func (a *App) accountStatus() []views.AccountStatus {
	out := make([]views.AccountStatus, 0, len(a.accts))
	for _, id := range a.accts {
		out = append(out, views.AccountStatus{ID: id, Conn: a.m.Connection(id)})
	}
	return out
}

// flash prefers the model's flash over a local note.
func (a *App) flash(modelFlash string) string {
	if modelFlash != "" {
		return modelFlash
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Now().Before(a.noteUntil) {
		return a.note
	}
	return ""
}

// setNote shows msg in the flash bar for a few seconds.
func (a *App) setNote(msg string) {
	a.mu.Lock()
	a.note = msg
	a.noteUntil = time.Now().Add(noteDuration)
	a.mu.Unlock()
}

// report logs a failed command. Policy rejections are already flashed by
// the model; other errors become a note.
func (a *App) report(op string, err error) {
	if err == nil {
		return
	}
	var pe *model.PolicyError
	switch {
	case errors.As(err, &pe):
		a.logger.Debug("command rejected", zap.String("op", op), zap.String("reason", pe.Reason))
		return
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, model.ErrNoChat):
		a.setNote("open a chat first")
	default:
		a.setNote(fmt.Sprintf("%s: %v", op, err))
	}
	a.logger.Debug("command failed", zap.String("op", op), zap.Error(err))
}

// async runs a command that may block on a picker or dialog off the event
// loop.
func (a *App) async(op string, fn func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := fn(a.ctx)
		a.report(op, err)
		a.app.QueueUpdateDraw(a.redraw)
	}()
}

func (a *App) focusMessages() {
	a.app.SetFocus(a.thread.Messages())
}

func (a *App) focusComposer() {
	if a.m.Current().Key.IsZero() {
		a.report("compose", model.ErrNoChat)
		return
	}
	a.app.SetFocus(a.thread.Composer().InputField)
}

func (a *App) openOverlay(name string, item tview.Primitive, focus tview.Primitive) {
	a.pages.Push(name, item)
	a.app.SetFocus(focus)
}

func (a *App) closeOverlay(name string) {
	a.pages.Remove(name)
	if a.pages.Current() == pageMain {
		a.focusMessages()
	}
}

func (a *App) showHelp() {
	a.helpOpen = true
	a.help.Update(a.helpSections(a.m.Mode()), a.m.HelpPage())
	a.openOverlay(pageHelp, ui.Center(a.help, 64, views.HelpLinesPerPage+2), a.help)
}

func (a *App) showInfo() {
	k := a.m.Current().Key
	chat, ok := a.m.Chat(k)
	if !ok {
		a.report("info", model.ErrNoChat)
		return
	}
	a.info.Update(k, chat, a.m.Connection(k.Account), len(a.m.History(k)))
	a.openOverlay(pageInfo, ui.Center(a.info, 60, 12), a.info)
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.openOverlay(pagePrompt, ui.Center(a.prompt, 60, 3), a.prompt)
}

func (a *App) beginFind() {
	if err := a.m.BeginFind(); err != nil {
		a.report("find", err)
		return
	}
	a.showPrompt(ui.PromptFind)
}

func (a *App) helpSections(mode model.Mode) []views.HelpSection {
	sections := []views.HelpSection{{
		Title: fmt.Sprintf("Keys (%s)", mode),
		Hints: toMenuHints(a.registry.Bindings(string(mode))),
	}}
	var cmds []ui.MenuHint
	for _, c := range commandHelp {
		cmds = append(cmds, ui.MenuHint{Key: c[0], Description: c[1]})
	}
	return append(sections, views.HelpSection{Title: "Commands", Hints: cmds})
}

func toMenuHints(actions []*keys.Action) []ui.MenuHint {
	hints := make([]ui.MenuHint, 0, len(actions))
	for _, a := range actions {
		hints = append(hints, ui.MenuHint{Key: a.Label(), Description: a.Description})
	}
	return hints
}

// Blocking interactions. They run on async goroutines and wait for the
// event loop to answer.

func (a *App) pick(ctx context.Context, title string, options []string, current int) (int, bool) {
	answer := make(chan int, 1)
	a.app.QueueUpdateDraw(func() {
		p := views.NewPicker(a.theme, title, options, current, func(i int) { answer <- i })
		a.openOverlay(pagePicker, ui.Center(p, 50, min(len(options), 15)+3), p)
	})
	defer a.app.QueueUpdateDraw(func() { a.closeOverlay(pagePicker) })
	select {
	case i := <-answer:
		return i, i >= 0
	case <-ctx.Done():
		return -1, false
	}
}

func (a *App) confirm(ctx context.Context, prompt string) bool {
	answer := make(chan bool, 1)
	a.app.QueueUpdateDraw(func() {
		modal := views.NewConfirm(a.theme, prompt, func(yes bool) { answer <- yes })
		a.openOverlay(pageConfirm, modal, modal)
	})
	defer a.app.QueueUpdateDraw(func() { a.closeOverlay(pageConfirm) })
	select {
	case yes := <-answer:
		return yes
	case <-ctx.Done():
		return false
	}
}

func (a *App) pickReaction(ctx context.Context, options []string, current string) (string, bool) {
	idx := -1
	for i, o := range options {
		if o == current {
			idx = i
		}
	}
	i, ok := a.pick(ctx, "React", options, idx)
	if !ok {
		return "", false
	}
	return options[i], true
}

func (a *App) pickChat(ctx context.Context, chats []model.ChatRow) (store.Key, bool) {
	labels := make([]string, len(chats))
	for i, c := range chats {
		labels[i] = c.Key.Account + ": " + c.Name
	}
	i, ok := a.pick(ctx, "Forward to", labels, -1)
	if !ok {
		return store.Key{}, false
	}
	return chats[i].Key, true
}

func (a *App) pickContact(ctx context.Context, contacts []protocol.Contact) (string, bool) {
	labels := make([]string, len(contacts))
	for i, c := range contacts {
		labels[i] = contactLabel(c)
	}
	i, ok := a.pick(ctx, "New chat with", labels, -1)
	if !ok {
		return "", false
	}
	return contacts[i].ID, true
}

func contactLabel(c protocol.Contact) string {
	name := c.Name
	if name == "" {
		name = c.ID
	}
	if c.Phone != "" {
		name += " (" + c.Phone + ")"
	}
	return name
}

func (a *App) pickFile(ctx context.Context) (string, bool) {
	answer := make(chan string, 1)
	a.app.QueueUpdateDraw(func() {
		p := ui.NewPrompt(a.theme)
		p.Activate(ui.PromptPath)
		p.SetOnSubmit(func(_ ui.PromptMode, text string) { answer <- text })
		p.SetOnCancel(func(ui.PromptMode) { answer <- "" })
		a.openOverlay(pagePicker, ui.Center(p, 60, 3), p)
	})
	defer a.app.QueueUpdateDraw(func() { a.closeOverlay(pagePicker) })
	select {
	case path := <-answer:
		path = expandHome(strings.TrimSpace(path))
		return path, path != ""
	case <-ctx.Done():
		return "", false
	}
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return home + "/" + rest
		}
	}
	return path
}

// editExternal edits text in the external editor with the screen suspended.
func (a *App) editExternal(ctx context.Context, text string) (string, error) {
	f, err := os.CreateTemp("", "mchat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	args := strings.Fields(a.editor)
	var runErr error
	a.app.Suspend(func() {
		cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		runErr = cmd.Run()
	})
	if runErr != nil {
		return "", fmt.Errorf("run %s: %w", args[0], runErr)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read temp file: %w", err)
	}
	return string(out), nil
}

// Stop shuts the UI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
