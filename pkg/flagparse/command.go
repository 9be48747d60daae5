package flagparse

import (
	"fmt"

	"github.com/gamesave/savesync/pkg/util"
)

// Command defines the command to execute.
type Command int

const (
	None Command = iota
	Sync
	Version
	Init
	List
)

var commandToString = map[Command]string{
	None:    "none",
	Sync:    "sync",
	Version: "version",
	Init:    "init",
	List:    "list",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'sync', 'list', 'version', or 'init'", s)
}
