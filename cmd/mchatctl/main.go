package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/matheus3301/mchat/internal/cache"
	"github.com/matheus3301/mchat/internal/config"
	"github.com/matheus3301/mchat/internal/lock"
	"github.com/matheus3301/mchat/internal/model"
	"github.com/matheus3301/mchat/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	configFlag := flag.String("config", "", "config file (default "+profile.ConfigPath()+")")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfgPath := *configFlag
	if cfgPath == "" {
		cfgPath = profile.ConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		fatalf("load config: %v", err)
	}
	name, err := profile.Resolve(*profileFlag, cfg)
	if err != nil {
		fatalf("%v", err)
	}

	switch args[0] {
	case "profiles":
		cmdProfiles(*jsonFlag)
	case "accounts":
		cmdAccounts(cfg, *jsonFlag)
	case "chats":
		need(args, 2, "mchatctl chats <account>")
		withCache(name, func(db *cache.DB) { cmdChats(db, args[1], *jsonFlag) })
	case "messages":
		need(args, 2, "mchatctl messages <account/chat> [limit]")
		withCache(name, func(db *cache.DB) { cmdMessages(db, args[1], limitArg(args, 2), *jsonFlag) })
	case "contacts":
		need(args, 2, "mchatctl contacts <account>")
		withCache(name, func(db *cache.DB) { cmdContacts(db, args[1], *jsonFlag) })
	case "search":
		need(args, 3, "mchatctl search <account> <text> [limit]")
		withCache(name, func(db *cache.DB) { cmdSearch(db, args[1], args[2], limitArg(args, 3), *jsonFlag) })
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: mchatctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  profiles                          List profiles and whether a client is running")
	fmt.Fprintln(os.Stderr, "  accounts                          List configured accounts")
	fmt.Fprintln(os.Stderr, "  chats <account>                   List cached chats")
	fmt.Fprintln(os.Stderr, "  messages <account/chat> [limit]   Show newest cached messages")
	fmt.Fprintln(os.Stderr, "  contacts <account>                List cached contacts")
	fmt.Fprintln(os.Stderr, "  search <account> <text> [limit]   Search cached messages")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "usage: "+usage)
		os.Exit(1)
	}
}

func limitArg(args []string, i int) int {
	if len(args) <= i {
		return 20
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n <= 0 {
		fatalf("invalid limit %q", args[i])
	}
	return n
}

// withCache opens the profile cache read side. The schema is owned by the
// client, so a missing database is reported rather than created.
func withCache(name string, fn func(db *cache.DB)) {
	path := profile.CachePath(name)
	if _, err := os.Stat(path); err != nil {
		fatalf("no cache for profile %q (%s)", name, path)
	}
	db, err := cache.Open(path)
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = db.Close() }()
	fn(db)
}

type profileRow struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
}

func cmdProfiles(jsonOut bool) {
	entries, err := os.ReadDir(filepath.Join(profile.BaseDir(), "profiles"))
	if err != nil && !os.IsNotExist(err) {
		fatalf("%v", err)
	}
	var rows []profileRow
	for _, e := range entries {
		if !e.IsDir() || profile.ValidateName(e.Name()) != nil {
			continue
		}
		dir := profile.Dir(e.Name())
		held, pid := lock.Holder(dir)
		rows = append(rows, profileRow{Name: e.Name(), Path: dir, Running: held, PID: pid})
	}
	if jsonOut {
		outputJSON(rows)
		return
	}
	if len(rows) == 0 {
		fmt.Println("No profiles found.")
		return
	}
	for _, r := range rows {
		state := "stopped"
		if r.Running {
			state = fmt.Sprintf("running, pid %d", r.PID)
		}
		fmt.Printf("%-20s %s (%s)\n", r.Name, r.Path, state)
	}
}

func cmdAccounts(cfg *config.Config, jsonOut bool) {
	if jsonOut {
		outputJSON(cfg.Accounts)
		return
	}
	for _, a := range cfg.Accounts {
		fmt.Printf("%-20s %s\n", a.ID, a.Protocol)
	}
}

func cmdChats(db *cache.DB, account string, jsonOut bool) {
	chats, err := db.ListChats(account)
	if err != nil {
		fatalf("%v", err)
	}
	if jsonOut {
		outputJSON(chats)
		return
	}
	for _, c := range chats {
		flags := ""
		if c.IsUnread {
			flags += "*"
		}
		if c.IsMuted {
			flags += "m"
		}
		if c.IsPinned {
			flags += "p"
		}
		fmt.Printf("%-3s %-30s %-24s %s\n", flags, c.ID, c.Name, formatTime(c.LastMessageTime))
	}
}

func cmdMessages(db *cache.DB, keyArg string, limit int, jsonOut bool) {
	k, ok := model.ParseKey(keyArg)
	if !ok {
		fatalf("invalid chat %q, want account/chat", keyArg)
	}
	msgs, err := db.ListMessagesBefore(k.Account, k.Chat, "", limit)
	if err != nil {
		fatalf("%v", err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	// Oldest first reads naturally in a terminal.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := m.SenderID
		if m.IsOutgoing {
			sender = "me"
		}
		fmt.Printf("%s  %-16s %s\n", formatTime(m.TimeSent), sender, m.Text)
	}
}

func cmdContacts(db *cache.DB, account string, jsonOut bool) {
	contacts, err := db.ListContacts(account)
	if err != nil {
		fatalf("%v", err)
	}
	if jsonOut {
		outputJSON(contacts)
		return
	}
	for _, c := range contacts {
		fmt.Printf("%-30s %-24s %s\n", c.ID, c.Name, c.Phone)
	}
}

func cmdSearch(db *cache.DB, account, text string, limit int, jsonOut bool) {
	results, err := db.SearchMessages(account, text, "", limit)
	if err != nil {
		fatalf("%v", err)
	}
	if jsonOut {
		outputJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}
	for _, r := range results {
		fmt.Printf("%s  %-24s %s\n", formatTime(r.Message.TimeSent), r.ChatID, r.Message.Text)
	}
}

func formatTime(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
