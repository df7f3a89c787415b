package matcher

import (
	"testing"

	"github.com/rbright/voicecmd/internal/profile"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		commands  []profile.Command
		wantIndex int
		wantExact bool
		wantOK    bool
	}{
		{
			name: "exact match wins over earlier fuzzy candidates",
			text: "open browser",
			commands: []profile.Command{
				{Command: "open", Sensitivity: 5},
				{Command: "browser", Sensitivity: 5},
				{Command: "open browser", Sensitivity: 0},
			},
			wantIndex: 2,
			wantExact: true,
			wantOK:    true,
		},
		{
			name:     "multi word command is not matched by containment",
			text:     "please go up now",
			commands: []profile.Command{{Command: "go up", Sensitivity: 5}},
		},
		{
			name:     "sensitivity zero disables token matching",
			text:     "go up now",
			commands: []profile.Command{{Command: "up", Sensitivity: 0}},
		},
		{
			name:      "token equality matches with sensitivity",
			text:      "go up now",
			commands:  []profile.Command{{Command: "up", Sensitivity: 1}},
			wantIndex: 0,
			wantOK:    true,
		},
		{
			name: "first recorded fuzzy match wins",
			text: "copy then paste",
			commands: []profile.Command{
				{Command: "undo", Sensitivity: 3},
				{Command: "paste", Sensitivity: 3},
				{Command: "copy", Sensitivity: 3},
			},
			wantIndex: 1,
			wantOK:    true,
		},
		{
			name:      "exact match with sensitivity zero",
			text:      "save",
			commands:  []profile.Command{{Command: "save", Sensitivity: 0}},
			wantIndex: 0,
			wantExact: true,
			wantOK:    true,
		},
		{
			name: "empty profile",
			text: "save",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Find(tc.text, tc.commands)
			require.Equal(t, tc.wantOK, ok)
			if !ok {
				return
			}
			require.Equal(t, tc.wantIndex, got.Index)
			require.Equal(t, tc.wantExact, got.Exact)
			require.Equal(t, tc.commands[tc.wantIndex], got.Command)
		})
	}
}
