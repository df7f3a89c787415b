package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Paths    *jsoncPaths    `json:"paths"`
	Audio    *jsoncAudio    `json:"audio"`
	Dispatch *jsoncDispatch `json:"dispatch"`
	Health   *jsoncHealth   `json:"health"`
	Events   *jsoncEvents   `json:"events"`
	Notify   *jsoncNotify   `json:"notify"`
	History  *jsoncHistory  `json:"history"`
	Debug    *jsoncDebug    `json:"debug"`
}

type jsoncPaths struct {
	Profiles *string `json:"profiles"`
	Models   *string `json:"models"`
	Settings *string `json:"settings"`
}

type jsoncAudio struct {
	Backend              *string  `json:"backend"`
	CalibrationSeconds   *float64 `json:"calibration_seconds"`
	ListenTimeoutSeconds *float64 `json:"listen_timeout_seconds"`
	EnergyRatio          *float64 `json:"energy_ratio"`
	PauseMS              *int     `json:"pause_ms"`
}

type jsoncDispatch struct {
	DelayMS  *int `json:"delay_ms"`
	SettleMS *int `json:"settle_ms"`
}

type jsoncHealth struct {
	Addr *string `json:"addr"`
}

type jsoncEvents struct {
	NATSURL *string `json:"nats_url"`
	Subject *string `json:"subject"`
	Buffer  *int    `json:"buffer"`
}

type jsoncNotify struct {
	Enable            *bool   `json:"enable"`
	AppName           *string `json:"app_name"`
	Sounds            *bool   `json:"sounds"`
	SoundExecutedFile *string `json:"sound_executed_file"`
	SoundErrorFile    *string `json:"sound_error_file"`
}

type jsoncHistory struct {
	Enable *bool   `json:"enable"`
	Path   *string `json:"path"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if p := payload.Paths; p != nil {
		setTrimmed(&cfg.Paths.Profiles, p.Profiles)
		setTrimmed(&cfg.Paths.Models, p.Models)
		setTrimmed(&cfg.Paths.Settings, p.Settings)
	}

	if a := payload.Audio; a != nil {
		if a.Backend != nil {
			cfg.Audio.Backend = strings.ToLower(strings.TrimSpace(*a.Backend))
		}
		set(&cfg.Audio.CalibrationSeconds, a.CalibrationSeconds)
		set(&cfg.Audio.ListenTimeoutSeconds, a.ListenTimeoutSeconds)
		set(&cfg.Audio.EnergyRatio, a.EnergyRatio)
		set(&cfg.Audio.PauseMS, a.PauseMS)
	}

	if d := payload.Dispatch; d != nil {
		set(&cfg.Dispatch.DelayMS, d.DelayMS)
		set(&cfg.Dispatch.SettleMS, d.SettleMS)
	}

	if h := payload.Health; h != nil {
		setTrimmed(&cfg.Health.Addr, h.Addr)
	}

	if e := payload.Events; e != nil {
		setTrimmed(&cfg.Events.NATSURL, e.NATSURL)
		setTrimmed(&cfg.Events.Subject, e.Subject)
		set(&cfg.Events.Buffer, e.Buffer)
	}

	if n := payload.Notify; n != nil {
		set(&cfg.Notify.Enable, n.Enable)
		setTrimmed(&cfg.Notify.AppName, n.AppName)
		set(&cfg.Notify.Sounds, n.Sounds)
		setTrimmed(&cfg.Notify.SoundExecutedFile, n.SoundExecutedFile)
		setTrimmed(&cfg.Notify.SoundErrorFile, n.SoundErrorFile)
	}

	if h := payload.History; h != nil {
		set(&cfg.History.Enable, h.Enable)
		setTrimmed(&cfg.History.Path, h.Path)
	}

	if d := payload.Debug; d != nil {
		set(&cfg.Debug.EnableAudioDump, d.AudioDump)
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// normalizeJSONC blanks comments and drops trailing commas so the result is
// plain JSON with the original line and column of every remaining token.
func normalizeJSONC(content string) (string, error) {
	withoutComments, err := blankComments(content)
	if err != nil {
		return "", err
	}
	return dropTrailingCommas(withoutComments), nil
}

// stringEnd returns the index just past the string literal opening at start.
func stringEnd(content string, start int) int {
	for i := start + 1; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(content)
}

func blankComments(content string) (string, error) {
	out := []byte(content)
	for i := 0; i < len(out); {
		switch {
		case out[i] == '"':
			i = stringEnd(content, i)
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' && out[i] != '\r' {
				out[i] = ' '
				i++
			}
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("unterminated block comment in JSONC")
			}
			stop := i + 2 + end + 2
			for ; i < stop; i++ {
				if !isJSONWhitespace(out[i]) {
					out[i] = ' '
				}
			}
		default:
			i++
		}
	}
	return string(out), nil
}

func dropTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))
	for i := 0; i < len(content); {
		ch := content[i]
		if ch == '"' {
			end := stringEnd(content, i)
			out.WriteString(content[i:end])
			i = end
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				out.WriteByte(' ')
				i++
				continue
			}
		}
		out.WriteByte(ch)
		i++
	}
	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

// wrapJSONDecodeError prefixes decode errors with a line and column.
// Unknown-field errors carry no offset, so the field name is located instead.
func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	const unknownPrefix = "json: unknown field "
	if msg := err.Error(); strings.HasPrefix(msg, unknownPrefix) {
		field := strings.TrimPrefix(msg, unknownPrefix)
		if idx := strings.Index(content, field); idx >= 0 {
			line, col := offsetToLineCol(content, int64(idx+1))
			return fmt.Errorf("line %d column %d: %w", line, col, err)
		}
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
