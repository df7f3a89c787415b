// Package cli parses voicecmd command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun        Command = "run"
	CommandStatus     Command = "status"
	CommandStop       Command = "stop"
	CommandProfile    Command = "profile"
	CommandMicrophone Command = "microphone"
	CommandRecognizer Command = "recognizer"
	CommandDevices    Command = "devices"
	CommandProfiles   Command = "profiles"
	CommandSettings   Command = "settings"
	CommandModels     Command = "models"
	CommandHistory    Command = "history"
	CommandEvents     Command = "events"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

// arity bounds the positional arguments of each command. max < 0 is unbounded.
type arity struct{ min, max int }

var validCommands = map[Command]arity{
	CommandRun:        {0, 0},
	CommandStatus:     {0, 0},
	CommandStop:       {0, 0},
	CommandProfile:    {1, 6},
	CommandMicrophone: {0, 1},
	CommandRecognizer: {1, -1},
	CommandDevices:    {0, 0},
	CommandProfiles:   {0, 0},
	CommandSettings:   {0, 3},
	CommandModels:     {0, 4},
	CommandHistory:    {0, 1},
	CommandEvents:     {0, 1},
	CommandDoctor:     {0, 0},
	CommandVersion:    {0, 0},
	CommandHelp:       {0, 0},
}

// Parsed is the result of Parse. Args holds the positional arguments that
// follow the command.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Args       []string
}

// Parse reads global flags followed by one command and its arguments.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			bounds, ok := validCommands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			rest := args[i+1:]
			if len(rest) < bounds.min {
				return Parsed{}, fmt.Errorf("command %q requires at least %d argument(s)", arg, bounds.min)
			}
			if bounds.max >= 0 && len(rest) > bounds.max {
				if bounds.max == 0 {
					return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
				}
				return Parsed{}, fmt.Errorf("command %q accepts at most %d argument(s)", arg, bounds.max)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			parsed.Args = append([]string(nil), rest...)
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Daemon:
  run                         Run the listening engine in the foreground
  status                      Print engine state, profile, microphone, and recognizer
  stop                        Stop the running engine
  events [N]                  Print the N most recent engine events

Live switching:
  profile use NAME            Activate a profile
  profile off                 Deactivate matching
  microphone [NAME]           Switch microphone (default: backend default)
  recognizer KIND [OPT=VAL]   Switch recognizer (vosk, keyword, whisper)

Profiles:
  profiles                    List profiles
  profile show NAME           Print a profile's commands
  profile create NAME         Create an empty profile
  profile delete NAME         Delete a profile
  profile add NAME PHRASE MACRO [SENSITIVITY]
  profile set NAME INDEX PHRASE MACRO [SENSITIVITY]
  profile remove NAME INDEX

Settings and assets:
  settings                    Print every engine setting
  settings get KEY            Print one setting
  settings set KEY VALUE      Change a setting
  devices                     List available input devices
  models                      List downloadable models and their cache state
  models fetch vosk ID        Download and activate a vosk model
  models fetch whisper MODEL [LANGUAGE]
  history [N]                 Print recently dispatched commands

Other:
  doctor                      Run configuration and environment checks
  version                     Print version information
  help                        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/voicecmd/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
