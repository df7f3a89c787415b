// Package profile persists named, ordered voice-command lists as JSON files.
package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/voicecmd/internal/textnorm"
)

// DefaultName is the profile created when the store is empty.
const DefaultName = "Default"

// MaxSensitivity is the upper bound of Command.Sensitivity.
const MaxSensitivity = 10

var (
	ErrNotFound           = errors.New("profile not found")
	ErrExists             = errors.New("profile already exists")
	ErrInvalidName        = errors.New("invalid profile name")
	ErrInvalidSensitivity = fmt.Errorf("sensitivity must be within 0..%d", MaxSensitivity)
	ErrEmptyCommand       = errors.New("command text is empty after normalization")
)

// Command is one phrase to macro binding.
type Command struct {
	Command     string `json:"command"`
	Macro       string `json:"macro"`
	Sensitivity int    `json:"sensitivity"`
}

// Profile is a named, ordered command list. Order decides match priority.
type Profile struct {
	Name     string    `json:"-"`
	Commands []Command `json:"voiceCommands"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p Profile) Clone() Profile {
	out := Profile{Name: p.Name, Commands: make([]Command, len(p.Commands))}
	copy(out.Commands, p.Commands)
	return out
}

// IndexError reports a command index outside the profile's list.
type IndexError struct {
	Profile string
	Index   int
	Len     int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("profile %q: command index %d out of range [0,%d)", e.Profile, e.Index, e.Len)
}

// RecordError reports a stored command that fails validation.
type RecordError struct {
	Profile string
	Index   int
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("profile %q: command %d: %v", e.Profile, e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// normalizeCommand validates a command record and normalizes its phrase.
func normalizeCommand(cmd Command) (Command, error) {
	if cmd.Sensitivity < 0 || cmd.Sensitivity > MaxSensitivity {
		return Command{}, fmt.Errorf("%w: got %d", ErrInvalidSensitivity, cmd.Sensitivity)
	}
	cmd.Command = textnorm.Normalize(cmd.Command)
	if cmd.Command == "" {
		return Command{}, ErrEmptyCommand
	}
	return cmd, nil
}

// cleanName trims a profile name and strips a trailing .json suffix.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".json")
	if name == "" || name == "." || name == ".." ||
		strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}
