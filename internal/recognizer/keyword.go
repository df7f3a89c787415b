package recognizer

import (
	"encoding/json"
	"strings"

	"github.com/rbright/voicecmd/internal/profile"
	"github.com/rbright/voicecmd/internal/textnorm"
)

// UnknownToken is the grammar entry that absorbs out-of-vocabulary speech.
const UnknownToken = "[unk]"

// Keyword is one phrase a spotting backend listens for.
type Keyword struct {
	Phrase    string
	Threshold float64
}

// Word is one recognized word with its confidence in [0,1].
type Word struct {
	Word string  `json:"word"`
	Conf float64 `json:"conf"`
}

// KeywordsFromCommands derives spotting keywords from a profile's commands.
// The threshold of each phrase is its sensitivity scaled to [0,1]. Duplicate
// phrases keep their first threshold.
func KeywordsFromCommands(commands []profile.Command) []Keyword {
	seen := make(map[string]struct{}, len(commands))
	out := make([]Keyword, 0, len(commands))
	for _, cmd := range commands {
		phrase := textnorm.Normalize(cmd.Command)
		if phrase == "" {
			continue
		}
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		out = append(out, Keyword{
			Phrase:    phrase,
			Threshold: float64(cmd.Sensitivity) / float64(profile.MaxSensitivity),
		})
	}
	return out
}

// Grammar encodes keywords as a vosk grammar: a JSON array of phrases plus
// the unknown token.
func Grammar(keywords []Keyword) string {
	phrases := make([]string, 0, len(keywords)+1)
	for _, kw := range keywords {
		phrases = append(phrases, kw.Phrase)
	}
	phrases = append(phrases, UnknownToken)
	data, _ := json.Marshal(phrases)
	return string(data)
}

// SpotKeywords scans words left to right, greedily taking the longest keyword
// phrase that starts at each position. A phrase is accepted when every one of
// its words meets the keyword's threshold. Accepted phrases are joined by a
// single space.
func SpotKeywords(words []Word, keywords []Keyword) string {
	type candidate struct {
		tokens    []string
		threshold float64
	}
	candidates := make([]candidate, 0, len(keywords))
	for _, kw := range keywords {
		tokens := strings.Fields(kw.Phrase)
		if len(tokens) == 0 {
			continue
		}
		candidates = append(candidates, candidate{tokens: tokens, threshold: kw.Threshold})
	}

	var accepted []string
	for i := 0; i < len(words); {
		best := -1
		for j, c := range candidates {
			if !phraseAt(words, i, c.tokens) {
				continue
			}
			if best < 0 || len(c.tokens) > len(candidates[best].tokens) {
				best = j
			}
		}
		if best < 0 {
			i++
			continue
		}

		c := candidates[best]
		if confident(words[i:i+len(c.tokens)], c.threshold) {
			accepted = append(accepted, strings.Join(c.tokens, " "))
		}
		i += len(c.tokens)
	}
	return strings.Join(accepted, " ")
}

func phraseAt(words []Word, start int, tokens []string) bool {
	if start+len(tokens) > len(words) {
		return false
	}
	for k, token := range tokens {
		if textnorm.Normalize(words[start+k].Word) != token {
			return false
		}
	}
	return true
}

func confident(words []Word, threshold float64) bool {
	for _, w := range words {
		if w.Conf < threshold {
			return false
		}
	}
	return true
}
