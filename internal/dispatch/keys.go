package dispatch

import "sort"

// Key is one physical key, identified by its Linux input event code.
type Key struct {
	Code  int
	Shift bool
}

// Linux input event codes (linux/input-event-codes.h).
const (
	codeEsc        = 1
	codeMinus      = 12
	codeEqual      = 13
	codeBackspace  = 14
	codeTab        = 15
	codeLeftBrace  = 26
	codeRightBrace = 27
	codeEnter      = 28
	codeLeftCtrl   = 29
	codeSemicolon  = 39
	codeApostrophe = 40
	codeGrave      = 41
	codeLeftShift  = 42
	codeBackslash  = 43
	codeComma      = 51
	codeDot        = 52
	codeSlash      = 53
	codeRightShift = 54
	codeLeftAlt    = 56
	codeSpace      = 57
	codeCapsLock   = 58
	codeF1         = 59
	codeNumLock    = 69
	codeScrollLock = 70
	codeF11        = 87
	codeF12        = 88
	codeRightCtrl  = 97
	codeSysRq      = 99
	codeRightAlt   = 100
	codeHome       = 102
	codeUp         = 103
	codePageUp     = 104
	codeLeft       = 105
	codeRight      = 106
	codeEnd        = 107
	codeDown       = 108
	codePageDown   = 109
	codeInsert     = 110
	codeDelete     = 111
	codeMute       = 113
	codeVolumeDown = 114
	codeVolumeUp   = 115
	codePause      = 119
	codeLeftMeta   = 125
	codeRightMeta  = 126
	codeCompose    = 127
	codeNextSong   = 163
	codePlayPause  = 164
	codePrevSong   = 165
	codeF13        = 183
)

var symbols = map[string]int{
	"alt":               codeLeftAlt,
	"alt_l":             codeLeftAlt,
	"alt_r":             codeRightAlt,
	"alt_gr":            codeRightAlt,
	"backspace":         codeBackspace,
	"caps_lock":         codeCapsLock,
	"cmd":               codeLeftMeta,
	"cmd_l":             codeLeftMeta,
	"cmd_r":             codeRightMeta,
	"ctrl":              codeLeftCtrl,
	"ctrl_l":            codeLeftCtrl,
	"ctrl_r":            codeRightCtrl,
	"delete":            codeDelete,
	"down":              codeDown,
	"end":               codeEnd,
	"enter":             codeEnter,
	"esc":               codeEsc,
	"home":              codeHome,
	"insert":            codeInsert,
	"left":              codeLeft,
	"menu":              codeCompose,
	"num_lock":          codeNumLock,
	"page_down":         codePageDown,
	"page_up":           codePageUp,
	"pause":             codePause,
	"print_screen":      codeSysRq,
	"right":             codeRight,
	"scroll_lock":       codeScrollLock,
	"shift":             codeLeftShift,
	"shift_l":           codeLeftShift,
	"shift_r":           codeRightShift,
	"space":             codeSpace,
	"tab":               codeTab,
	"up":                codeUp,
	"media_play_pause":  codePlayPause,
	"media_volume_mute": codeMute,
	"media_volume_down": codeVolumeDown,
	"media_volume_up":   codeVolumeUp,
	"media_previous":    codePrevSong,
	"media_next":        codeNextSong,
	"f1":                codeF1,
	"f2":                codeF1 + 1,
	"f3":                codeF1 + 2,
	"f4":                codeF1 + 3,
	"f5":                codeF1 + 4,
	"f6":                codeF1 + 5,
	"f7":                codeF1 + 6,
	"f8":                codeF1 + 7,
	"f9":                codeF1 + 8,
	"f10":               codeF1 + 9,
	"f11":               codeF11,
	"f12":               codeF12,
	"f13":               codeF13,
	"f14":               codeF13 + 1,
	"f15":               codeF13 + 2,
	"f16":               codeF13 + 3,
	"f17":               codeF13 + 4,
	"f18":               codeF13 + 5,
	"f19":               codeF13 + 6,
	"f20":               codeF13 + 7,
}

// US layout, one entry per key row.
var (
	letterRows = []struct {
		letters string
		first   int
	}{
		{"qwertyuiop", 16},
		{"asdfghjkl", 30},
		{"zxcvbnm", 44},
	}
	digitRow    = "1234567890"
	shiftDigit  = "!@#$%^&*()"
	punctuation = map[rune]Key{
		'-':  {Code: codeMinus},
		'_':  {Code: codeMinus, Shift: true},
		'=':  {Code: codeEqual},
		'+':  {Code: codeEqual, Shift: true},
		'[':  {Code: codeLeftBrace},
		'{':  {Code: codeLeftBrace, Shift: true},
		']':  {Code: codeRightBrace},
		'}':  {Code: codeRightBrace, Shift: true},
		';':  {Code: codeSemicolon},
		':':  {Code: codeSemicolon, Shift: true},
		'\'': {Code: codeApostrophe},
		'"':  {Code: codeApostrophe, Shift: true},
		'`':  {Code: codeGrave},
		'~':  {Code: codeGrave, Shift: true},
		'\\': {Code: codeBackslash},
		'|':  {Code: codeBackslash, Shift: true},
		',':  {Code: codeComma},
		'<':  {Code: codeComma, Shift: true},
		'.':  {Code: codeDot},
		'>':  {Code: codeDot, Shift: true},
		'/':  {Code: codeSlash},
		'?':  {Code: codeSlash, Shift: true},
		' ':  {Code: codeSpace},
		'\t': {Code: codeTab},
		'\n': {Code: codeEnter},
		'\r': {Code: codeEnter},
	}
)

// Symbol looks up a named key such as "enter" or "ctrl_l".
func Symbol(name string) (Key, bool) {
	code, ok := symbols[name]
	return Key{Code: code}, ok
}

// Symbols lists every named key in sorted order.
func Symbols() []string {
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Char returns the key that types r on a US layout.
func Char(r rune) (Key, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return letterKey(r, false)
	case r >= 'A' && r <= 'Z':
		return letterKey(r-'A'+'a', true)
	}
	for i, d := range digitRow {
		if r == d {
			return Key{Code: 2 + i}, true
		}
	}
	for i, s := range shiftDigit {
		if r == s {
			return Key{Code: 2 + i, Shift: true}, true
		}
	}
	k, ok := punctuation[r]
	return k, ok
}

func letterKey(r rune, shift bool) (Key, bool) {
	for _, row := range letterRows {
		for i, l := range row.letters {
			if l == r {
				return Key{Code: row.first + i, Shift: shift}, true
			}
		}
	}
	return Key{}, false
}
