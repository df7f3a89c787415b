package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Audio.Backend {
	case BackendPulse, BackendPortAudio:
	case "":
		return nil, fmt.Errorf("audio.backend must not be empty")
	default:
		return nil, fmt.Errorf("audio.backend must be one of: %s, %s", BackendPulse, BackendPortAudio)
	}
	if cfg.Audio.CalibrationSeconds <= 0 {
		return nil, fmt.Errorf("audio.calibration_seconds must be > 0")
	}
	if cfg.Audio.ListenTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("audio.listen_timeout_seconds must be > 0")
	}
	if cfg.Audio.EnergyRatio < 1 {
		return nil, fmt.Errorf("audio.energy_ratio must be >= 1")
	}
	if cfg.Audio.PauseMS <= 0 {
		return nil, fmt.Errorf("audio.pause_ms must be > 0")
	}
	if cfg.Audio.CalibrationSeconds > 10 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.calibration_seconds=%.1f delays every microphone switch", cfg.Audio.CalibrationSeconds)})
	}

	if cfg.Dispatch.DelayMS < 0 {
		return nil, fmt.Errorf("dispatch.delay_ms must be >= 0")
	}
	if cfg.Dispatch.SettleMS < 0 {
		return nil, fmt.Errorf("dispatch.settle_ms must be >= 0")
	}
	if cfg.Dispatch.DelayMS == 0 {
		warnings = append(warnings, Warning{Message: "dispatch.delay_ms=0 may drop keystrokes in some applications"})
	}

	if addr := cfg.Health.Addr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("health.addr %q: %w", addr, err)
		}
	}

	if cfg.Events.Buffer <= 0 {
		return nil, fmt.Errorf("events.buffer must be > 0")
	}
	if raw := cfg.Events.NATSURL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("events.nats_url %q is not a valid URL", raw)
		}
		if strings.TrimSpace(cfg.Events.Subject) == "" {
			return nil, fmt.Errorf("events.subject must not be empty when events.nats_url is set")
		}
	}

	if cfg.Notify.Enable && strings.TrimSpace(cfg.Notify.AppName) == "" {
		return nil, fmt.Errorf("notify.app_name must not be empty when notify.enable=true")
	}

	return warnings, nil
}
