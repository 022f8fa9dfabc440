package chatclient

import (
	"errors"
	"strconv"
	"strings"
)

// Command is a parsed user command line.
type Command struct {
	Kind     CommandKind
	TargetID uint64
	Message  string
}

// CommandKind discriminates the three supported commands.
type CommandKind int

const (
	// CommandNone means the input line was blank and nothing should happen.
	CommandNone CommandKind = iota
	CommandListOnline
	CommandSend
	CommandQuit
)

// ErrInvalidTargetID is returned when /enviar's id argument does not parse
// as an unsigned integer.
var ErrInvalidTargetID = errors.New("chatclient: invalid target id")

// ErrUsageSend is returned when /enviar is missing its id or message.
var ErrUsageSend = errors.New("chatclient: usage: /enviar <id> <text>")

// ErrUnknownCommand is returned for any input that isn't /listar, /enviar,
// or /sair.
var ErrUnknownCommand = errors.New("chatclient: unknown command")

// ParseCommand parses one line of user input into a Command.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: CommandNone}, nil
	}

	lower := strings.ToLower(line)
	switch {
	case lower == "/sair":
		return Command{Kind: CommandQuit}, nil
	case lower == "/listar":
		return Command{Kind: CommandListOnline}, nil
	case lower == "/enviar":
		return Command{}, ErrUsageSend
	case strings.HasPrefix(lower, "/enviar "):
		parts := strings.SplitN(line[len("/enviar "):], " ", 2)
		if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
			return Command{}, ErrUsageSend
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return Command{}, ErrInvalidTargetID
		}
		return Command{Kind: CommandSend, TargetID: id, Message: parts[1]}, nil
	default:
		return Command{}, ErrUnknownCommand
	}
}
