// Package matcher maps recognized text to a command of the active profile.
package matcher

import (
	"strings"

	"github.com/rbright/voicecmd/internal/profile"
)

// Match is the outcome of a successful lookup.
type Match struct {
	Index   int
	Command profile.Command
	Exact   bool
}

// Find scans commands in order. An exact phrase match returns immediately.
// Otherwise the first command with sensitivity of at least 1 whose phrase
// equals one whitespace-separated token of text wins.
func Find(text string, commands []profile.Command) (Match, bool) {
	tokens := strings.Fields(text)
	fuzzy := -1
	for i, cmd := range commands {
		if cmd.Command == text {
			return Match{Index: i, Command: cmd, Exact: true}, true
		}
		if fuzzy >= 0 || cmd.Sensitivity < 1 {
			continue
		}
		for _, token := range tokens {
			if token == cmd.Command {
				fuzzy = i
				break
			}
		}
	}
	if fuzzy < 0 {
		return Match{}, false
	}
	return Match{Index: fuzzy, Command: commands[fuzzy]}, true
}
