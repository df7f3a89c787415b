package ipc

import "github.com/rbright/voicecmd/internal/events"

// Commands understood by the daemon.
const (
	CommandStatus     = "status"
	CommandProfile    = "profile"
	CommandMicrophone = "microphone"
	CommandRecognizer = "recognizer"
	CommandStop       = "stop"
	CommandEvents     = "events"
	CommandReload     = "reload"
)

type Request struct {
	Command string `json:"command"`
	// Name carries the profile or microphone name.
	Name    string            `json:"name,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Options map[string]string `json:"options,omitempty"`
	Limit   int               `json:"limit,omitempty"`
}

// Status is the engine snapshot returned by the status command.
type Status struct {
	State      string            `json:"state"`
	Profile    string            `json:"profile"`
	Microphone string            `json:"microphone"`
	Recognizer string            `json:"recognizer"`
	Options    map[string]string `json:"options,omitempty"`
	Commands   int               `json:"commands"`
}

type Response struct {
	OK      bool           `json:"ok"`
	State   string         `json:"state,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Status  *Status        `json:"status,omitempty"`
	Events  []events.Event `json:"events,omitempty"`
}

// Fail builds an error response.
func Fail(err error) Response {
	return Response{OK: false, Error: err.Error()}
}
