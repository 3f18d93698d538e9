package tui

import (
	"strconv"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Int returns the argument as a number.
func (c Command) Int() (int, bool) {
	n, err := strconv.Atoi(c.Args)
	return n, err == nil
}

// commandHelp lists the prompt commands for the help overlay.
var commandHelp = [][2]string{
	{":chat <n|name>", "Open chat by position or name"},
	{":new [account]", "Start a chat with a contact"},
	{":delete", "Delete the current chat"},
	{":mute / :pin", "Toggle mute or pin"},
	{":attach [path]", "Send a file"},
	{":edit", "Compose in $EDITOR"},
	{":find <text>", "Find text in the chat"},
	{":window <n>", "Messages per page"},
	{":info", "Chat details"},
	{":help / :h", "This help"},
	{":quit / :q", "Quit"},
}
