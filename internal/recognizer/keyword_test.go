package recognizer

import (
	"encoding/json"
	"testing"

	"github.com/rbright/voicecmd/internal/profile"
	"github.com/stretchr/testify/require"
)

func TestKeywordsFromCommands(t *testing.T) {
	keywords := KeywordsFromCommands([]profile.Command{
		{Command: "Open Browser", Sensitivity: 7},
		{Command: "close", Sensitivity: 0},
		{Command: "open browser", Sensitivity: 2},
		{Command: "!!", Sensitivity: 5},
	})
	require.Equal(t, []Keyword{
		{Phrase: "open browser", Threshold: 0.7},
		{Phrase: "close", Threshold: 0},
	}, keywords)
}

func TestGrammarAppendsUnknownToken(t *testing.T) {
	var phrases []string
	require.NoError(t, json.Unmarshal([]byte(Grammar([]Keyword{{Phrase: "open browser"}, {Phrase: "close"}})), &phrases))
	require.Equal(t, []string{"open browser", "close", "[unk]"}, phrases)

	require.Equal(t, `["[unk]"]`, Grammar(nil))
}

func TestSpotKeywords(t *testing.T) {
	keywords := []Keyword{
		{Phrase: "open", Threshold: 0.5},
		{Phrase: "open browser", Threshold: 0.8},
		{Phrase: "close", Threshold: 0.3},
	}

	tests := []struct {
		name  string
		words []Word
		want  string
	}{
		{
			name:  "longest phrase wins",
			words: []Word{{"open", 0.9}, {"browser", 0.9}},
			want:  "open browser",
		},
		{
			name:  "low confidence word rejects the whole phrase",
			words: []Word{{"open", 0.9}, {"browser", 0.6}},
			want:  "",
		},
		{
			name:  "unknown words are skipped",
			words: []Word{{"[unk]", 1}, {"close", 0.4}, {"[unk]", 1}},
			want:  "close",
		},
		{
			name:  "several phrases joined by a space",
			words: []Word{{"close", 0.5}, {"open", 0.6}},
			want:  "close open",
		},
		{
			name:  "below threshold",
			words: []Word{{"close", 0.2}},
			want:  "",
		},
		{
			name:  "threshold is inclusive",
			words: []Word{{"open", 0.5}},
			want:  "open",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SpotKeywords(tc.words, keywords))
		})
	}
}
