package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/voicecmd.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/voicecmd.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
	require.Empty(t, parsed.Args)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
		wantArgs []string
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:    "version flag",
			args:    []string{"--version"},
			wantCmd: CommandVersion,
		},
		{
			name:    "flags after argument-free command",
			args:    []string{"status", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "unknown flag",
			args:    []string{"--verbose"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"toggle"},
			wantErr: "unknown command",
		},
		{
			name:    "profile needs an action",
			args:    []string{"profile"},
			wantErr: "requires at least 1 argument",
		},
		{
			name:    "history takes one count",
			args:    []string{"history", "5", "6"},
			wantErr: "accepts at most 1 argument",
		},
		{
			name:     "profile add keeps macro verbatim",
			args:     []string{"--config", "/tmp/c", "profile", "add", "Default", "save file", "ctrl_l;s", "6"},
			wantCmd:  CommandProfile,
			wantPath: "/tmp/c",
			wantArgs: []string{"add", "Default", "save file", "ctrl_l;s", "6"},
		},
		{
			name:     "recognizer with options",
			args:     []string{"recognizer", "whisper", "model=base", "language=auto"},
			wantCmd:  CommandRecognizer,
			wantArgs: []string{"whisper", "model=base", "language=auto"},
		},
		{
			name:     "microphone without name",
			args:     []string{"microphone"},
			wantCmd: CommandMicrophone,
		},
		{
			name:     "arguments may start with a dash",
			args:     []string{"settings", "set", "phrase_time", "-1"},
			wantCmd:  CommandSettings,
			wantArgs: []string{"set", "phrase_time", "-1"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			if tc.wantArgs != nil {
				require.Equal(t, tc.wantArgs, parsed.Args)
			}
		})
	}
}

func TestHelpTextListsEveryCommand(t *testing.T) {
	text := HelpText("voicecmd")
	require.Contains(t, text, "voicecmd [--config PATH]")
	for cmd := range validCommands {
		require.Contains(t, text, "  "+string(cmd))
	}
}
