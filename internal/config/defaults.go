package config

// Audio backends accepted by audio.backend.
const (
	BackendPulse     = "pulse"
	BackendPortAudio = "portaudio"
)

// Default returns the configuration used when no file is present. Paths are
// left empty and resolved by Load.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:              BackendPulse,
			CalibrationSeconds:   3,
			ListenTimeoutSeconds: 1,
			EnergyRatio:          1.5,
			PauseMS:              800,
		},
		Dispatch: DispatchConfig{DelayMS: 100, SettleMS: 2000},
		Health:   HealthConfig{Addr: "127.0.0.1:50071"},
		Events:   EventsConfig{Subject: "voicecmd.events", Buffer: 100},
		Notify:   NotifyConfig{Enable: true, AppName: "voicecmd"},
		History:  HistoryConfig{Enable: true},
	}
}
