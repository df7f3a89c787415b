package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/voicecmd/internal/ipc"
	"github.com/rbright/voicecmd/internal/settings"
)

// Handle serves control-socket requests. Switch requests are validated here
// and applied by the engine goroutine between cycles.
func (e *Engine) Handle(_ context.Context, req ipc.Request) ipc.Response {
	state := string(e.State())
	switch req.Command {
	case ipc.CommandStatus:
		st := e.Status()
		return ipc.Response{OK: true, State: st.State, Message: "status", Status: &st}
	case ipc.CommandProfile:
		name := strings.TrimSpace(req.Name)
		if name != "" {
			p, err := e.profiles.Get(name)
			if err != nil {
				return ipc.Response{OK: false, State: state, Error: err.Error()}
			}
			name = p.Name
		}
		e.RequestProfileSwitch(name)
		return ipc.Response{OK: true, State: state, Message: "profile switch requested"}
	case ipc.CommandMicrophone:
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = "default"
		}
		e.RequestMicrophoneSwitch(name)
		return ipc.Response{OK: true, State: state, Message: "microphone switch requested"}
	case ipc.CommandRecognizer:
		kind := strings.TrimSpace(req.Kind)
		if err := validateRecognizer(kind, req.Options); err != nil {
			return ipc.Response{OK: false, State: state, Error: err.Error()}
		}
		e.RequestRecognizerSwitch(kind, req.Options)
		return ipc.Response{OK: true, State: state, Message: "recognizer switch requested"}
	case ipc.CommandReload:
		e.RequestReload()
		return ipc.Response{OK: true, State: state, Message: "settings reload requested"}
	case ipc.CommandStop:
		e.RequestStop()
		return ipc.Response{OK: true, State: state, Message: "stop requested"}
	case ipc.CommandEvents:
		if e.ring == nil {
			return ipc.Response{OK: false, State: state, Error: "event history is disabled"}
		}
		return ipc.Response{OK: true, State: state, Events: e.ring.Recent(req.Limit)}
	default:
		return ipc.Response{OK: false, State: state, Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func validateRecognizer(kind string, options map[string]string) error {
	if err := settings.Check(settings.KeyRecognizer, kind); err != nil {
		return err
	}
	var errs []error
	for name, value := range options {
		if err := settings.Check(kind+":"+name, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
