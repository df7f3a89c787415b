package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rbright/voicecmd/internal/config"
	"github.com/rbright/voicecmd/internal/fsm"
	"github.com/rbright/voicecmd/internal/ipc"
	"github.com/rbright/voicecmd/internal/settings"
)

const callTimeout = 2 * time.Second

// call sends req to the running daemon.
func call(ctx context.Context, req ipc.Request) (ipc.Response, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, fmt.Errorf("%w: %v", ipc.ErrNotRunning, err)
	}
	return ipc.Call(ctx, socketPath, req, callTimeout)
}

// liveStatus returns the daemon status, or ok=false when no daemon runs.
func liveStatus(ctx context.Context) (ipc.Status, bool, error) {
	resp, err := call(ctx, ipc.Request{Command: ipc.CommandStatus})
	if errors.Is(err, ipc.ErrNotRunning) {
		return ipc.Status{}, false, nil
	}
	if err != nil {
		return ipc.Status{}, false, err
	}
	if resp.Status == nil {
		return ipc.Status{State: resp.State}, true, nil
	}
	return *resp.Status, true, nil
}

func (r Runner) commandStatus(ctx context.Context) int {
	st, running, err := liveStatus(ctx)
	if err != nil {
		return r.fail(err)
	}
	if !running {
		fmt.Fprintln(r.Stdout, string(fsm.StateStopped))
		return 0
	}

	fmt.Fprintf(r.Stdout, "state: %s\n", st.State)
	if st.Profile == "" {
		fmt.Fprintln(r.Stdout, "profile: (none)")
	} else {
		fmt.Fprintf(r.Stdout, "profile: %s (%d commands)\n", st.Profile, st.Commands)
	}
	fmt.Fprintf(r.Stdout, "microphone: %s\n", st.Microphone)
	fmt.Fprintf(r.Stdout, "recognizer: %s%s\n", st.Recognizer, formatOptions(st.Options))
	return 0
}

func formatOptions(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+options[k])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// forward sends req and prints the daemon's acknowledgement.
func (r Runner) forward(ctx context.Context, req ipc.Request) int {
	resp, err := call(ctx, req)
	if err != nil {
		return r.fail(err)
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandStop(ctx context.Context) int {
	return r.forward(ctx, ipc.Request{Command: ipc.CommandStop})
}

func (r Runner) commandMicrophone(ctx context.Context, cfg config.Config, args []string) int {
	req := ipc.Request{Command: ipc.CommandMicrophone}
	name := "default"
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		req.Name = args[0]
		name = strings.TrimSpace(args[0])
	}
	return r.switchOrPersist(ctx, cfg, req, map[string]any{settings.KeyMicrophone: name})
}

func (r Runner) commandRecognizer(ctx context.Context, cfg config.Config, args []string) int {
	kind := strings.TrimSpace(args[0])
	req := ipc.Request{Command: ipc.CommandRecognizer, Kind: kind}
	updates := map[string]any{settings.KeyRecognizer: kind}
	if len(args) > 1 {
		req.Options = make(map[string]string, len(args)-1)
		for _, arg := range args[1:] {
			name, value, ok := strings.Cut(arg, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return r.usage("recognizer option %q must be NAME=VALUE", arg)
			}
			req.Options[name] = value
			updates[kind+":"+name] = value
		}
	}
	return r.switchOrPersist(ctx, cfg, req, updates)
}

func (r Runner) commandEvents(ctx context.Context, args []string) int {
	limit, ok := r.countArg(args, 20)
	if !ok {
		return 2
	}
	resp, err := call(ctx, ipc.Request{Command: ipc.CommandEvents, Limit: limit})
	if err != nil {
		return r.fail(err)
	}
	for _, e := range resp.Events {
		fmt.Fprintf(r.Stdout, "%s %-7s %s\n", e.Time.Local().Format(time.DateTime), e.Severity, e.Message)
	}
	return 0
}

// countArg parses an optional positive count argument.
func (r Runner) countArg(args []string, fallback int) (int, bool) {
	if len(args) == 0 {
		return fallback, true
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		r.usage("count must be a positive integer, got %q", args[0])
		return 0, false
	}
	return n, true
}
