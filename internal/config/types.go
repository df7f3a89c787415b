// Package config resolves, parses, validates, and defaults voicecmd daemon
// configuration. Engine settings that change at runtime live in the settings
// store instead.
package config

import "time"

// Config is the fully materialized daemon configuration.
type Config struct {
	Paths    PathsConfig
	Audio    AudioConfig
	Dispatch DispatchConfig
	Health   HealthConfig
	Events   EventsConfig
	Notify   NotifyConfig
	History  HistoryConfig
	Debug    DebugConfig
}

// PathsConfig locates the on-disk stores. Empty values resolve to XDG
// defaults in Load.
type PathsConfig struct {
	Profiles string
	Models   string
	Settings string
}

// AudioConfig selects the capture backend and tunes phrase detection.
type AudioConfig struct {
	Backend              string
	CalibrationSeconds   float64
	ListenTimeoutSeconds float64
	EnergyRatio          float64
	PauseMS              int
}

// Calibration is the ambient-noise sampling window after a microphone opens.
func (a AudioConfig) Calibration() time.Duration {
	return secondsToDuration(a.CalibrationSeconds)
}

// ListenTimeout bounds how long a capture waits for speech to start.
func (a AudioConfig) ListenTimeout() time.Duration {
	return secondsToDuration(a.ListenTimeoutSeconds)
}

// Pause is the trailing silence that ends a phrase.
func (a AudioConfig) Pause() time.Duration {
	return time.Duration(a.PauseMS) * time.Millisecond
}

// DispatchConfig tunes keystroke injection.
type DispatchConfig struct {
	DelayMS  int
	SettleMS int
}

// Delay is the pause after every injected key tap.
func (d DispatchConfig) Delay() time.Duration {
	return time.Duration(d.DelayMS) * time.Millisecond
}

// Settle is the wait after creating the virtual keyboard.
func (d DispatchConfig) Settle() time.Duration {
	return time.Duration(d.SettleMS) * time.Millisecond
}

// HealthConfig controls the gRPC health endpoint. An empty Addr disables it.
type HealthConfig struct {
	Addr string
}

// EventsConfig controls the event stream fan-out.
type EventsConfig struct {
	NATSURL string
	Subject string
	Buffer  int
}

// NotifyConfig controls desktop notifications for warnings and errors and
// the audible cues played for executed commands and failures.
type NotifyConfig struct {
	Enable  bool
	AppName string

	Sounds            bool
	SoundExecutedFile string
	SoundErrorFile    string
}

// HistoryConfig controls the command history database.
type HistoryConfig struct {
	Enable bool
	Path   string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
