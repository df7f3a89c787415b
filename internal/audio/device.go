package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Device describes one capture source surfaced by a backend.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Label returns the human-facing device name.
func (d Device) Label() string {
	description := strings.TrimSpace(d.Description)
	id := strings.TrimSpace(d.ID)
	if description == "" {
		return id
	}
	if id == "" || id == description {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

// Stream yields fixed-rate mono s16 frames from one open device.
type Stream interface {
	Read(ctx context.Context) ([]int16, error)
	Close() error
}

// Backend enumerates capture devices and opens streams on them.
type Backend interface {
	Name() string
	ListDevices(ctx context.Context) ([]Device, error)
	OpenStream(ctx context.Context, device Device) (Stream, error)
}

// IsDefaultName reports whether name asks for the backend default source.
func IsDefaultName(name string) bool {
	name = strings.TrimSpace(strings.ToLower(name))
	return name == "" || name == "default"
}

// selectDeviceFromList resolves a configured name against live devices.
//
// Exact ID or description matches win over substring matches.
func selectDeviceFromList(devices []Device, name string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, errors.New("no audio input devices found")
	}

	var (
		defaultDevice *Device
		exact         *Device
		partial       *Device
	)

	term := strings.TrimSpace(strings.ToLower(name))
	for i := range devices {
		dev := &devices[i]
		if dev.Default && defaultDevice == nil {
			defaultDevice = dev
		}
		if IsDefaultName(term) {
			continue
		}
		if exact == nil && (strings.ToLower(dev.ID) == term || strings.ToLower(dev.Description) == term) {
			exact = dev
		}
		if partial == nil && deviceMatches(*dev, term) {
			partial = dev
		}
	}

	var selected *Device
	switch {
	case IsDefaultName(term):
		if defaultDevice == nil {
			return Device{}, errors.New("default audio source is unavailable")
		}
		selected = defaultDevice
	case exact != nil:
		selected = exact
	case partial != nil:
		selected = partial
	default:
		return Device{}, fmt.Errorf("microphone %q did not match any device", name)
	}

	if !selected.Available {
		return Device{}, fmt.Errorf("microphone %q is not available", selected.ID)
	}
	if selected.Muted {
		return Device{}, fmt.Errorf("microphone %q is muted", selected.ID)
	}
	return *selected, nil
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// defaultFromList returns the device flagged as default.
func defaultFromList(devices []Device) (Device, bool) {
	for _, dev := range devices {
		if dev.Default {
			return dev, true
		}
	}
	return Device{}, false
}
