package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rbright/voicecmd/internal/config"
	"github.com/rbright/voicecmd/internal/history"
	"github.com/rbright/voicecmd/internal/ipc"
	"github.com/rbright/voicecmd/internal/models"
	"github.com/rbright/voicecmd/internal/profile"
	"github.com/rbright/voicecmd/internal/settings"
	"github.com/rbright/voicecmd/internal/version"
)

// switchOrPersist forwards a live switch. Without a running daemon the
// updates are saved for the next start instead.
func (r Runner) switchOrPersist(ctx context.Context, cfg config.Config, req ipc.Request, updates map[string]any) int {
	resp, err := call(ctx, req)
	switch {
	case err == nil:
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	case !errors.Is(err, ipc.ErrNotRunning) || updates == nil:
		return r.fail(err)
	}

	store, _, err := settings.Open(cfg.Paths.Settings)
	if err != nil {
		return r.fail(err)
	}
	if err := store.SetMany(updates); err != nil {
		return r.fail(err)
	}
	fmt.Fprintln(r.Stdout, "engine not running; saved for the next start")
	return 0
}

func (r Runner) commandProfile(ctx context.Context, cfg config.Config, args []string) int {
	store := profile.NewStore(cfg.Paths.Profiles)
	action, rest := args[0], args[1:]

	need := func(n int) bool {
		if len(rest) < n {
			r.usage("profile %s requires %d argument(s)", action, n)
			return false
		}
		return true
	}

	switch action {
	case "use":
		if !need(1) {
			return 2
		}
		p, err := store.Get(rest[0])
		if err != nil {
			return r.fail(err)
		}
		return r.switchOrPersist(ctx, cfg,
			ipc.Request{Command: ipc.CommandProfile, Name: p.Name},
			map[string]any{settings.KeyProfile: p.Name})
	case "off":
		return r.forward(ctx, ipc.Request{Command: ipc.CommandProfile})
	case "show":
		if !need(1) {
			return 2
		}
		p, err := store.Get(rest[0])
		if err != nil {
			return r.fail(err)
		}
		if len(p.Commands) == 0 {
			fmt.Fprintf(r.Stdout, "profile %s has no commands\n", p.Name)
			return 0
		}
		for i, cmd := range p.Commands {
			fmt.Fprintf(r.Stdout, "%d. %q -> %q (sensitivity %d)\n", i, cmd.Command, cmd.Macro, cmd.Sensitivity)
		}
		return 0
	case "create":
		if !need(1) {
			return 2
		}
		if err := store.Create(rest[0]); err != nil {
			return r.fail(err)
		}
		fmt.Fprintf(r.Stdout, "created profile %s\n", rest[0])
		return 0
	case "delete":
		if !need(1) {
			return 2
		}
		if err := store.Delete(rest[0]); err != nil {
			return r.fail(err)
		}
		fmt.Fprintf(r.Stdout, "deleted profile %s\n", rest[0])
		return r.afterProfileEdit(ctx, rest[0], true)
	case "add", "set":
		return r.commandProfileEdit(ctx, store, action, rest)
	case "remove":
		if !need(2) {
			return 2
		}
		index, err := strconv.Atoi(rest[1])
		if err != nil {
			return r.usage("index must be an integer, got %q", rest[1])
		}
		if err := store.RemoveCommand(rest[0], index); err != nil {
			return r.fail(err)
		}
		fmt.Fprintf(r.Stdout, "removed command %d from %s\n", index, rest[0])
		return r.afterProfileEdit(ctx, rest[0], false)
	default:
		return r.usage("unknown profile action %q", action)
	}
}

func (r Runner) commandProfileEdit(ctx context.Context, store *profile.Store, action string, rest []string) int {
	name := ""
	if len(rest) > 0 {
		name = rest[0]
	}
	fields := rest[min(1, len(rest)):]
	index := -1
	if action == "set" {
		if len(fields) < 1 {
			return r.usage("profile set requires NAME INDEX PHRASE MACRO [SENSITIVITY]")
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return r.usage("index must be an integer, got %q", fields[0])
		}
		index, fields = n, fields[1:]
	}
	if name == "" || len(fields) < 2 || len(fields) > 3 {
		if action == "set" {
			return r.usage("profile set requires NAME INDEX PHRASE MACRO [SENSITIVITY]")
		}
		return r.usage("profile add requires NAME PHRASE MACRO [SENSITIVITY]")
	}

	cmd := profile.Command{Command: fields[0], Macro: fields[1]}
	if len(fields) == 3 {
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return r.usage("sensitivity must be an integer, got %q", fields[2])
		}
		cmd.Sensitivity = n
	}

	var err error
	if action == "set" {
		err = store.ReplaceCommand(name, index, cmd)
	} else {
		err = store.AppendCommand(name, cmd)
	}
	if err != nil {
		return r.fail(err)
	}
	fmt.Fprintf(r.Stdout, "saved command in %s\n", name)
	return r.afterProfileEdit(ctx, name, false)
}

// afterProfileEdit refreshes a running engine whose active profile changed
// on disk. A deleted active profile deactivates matching.
func (r Runner) afterProfileEdit(ctx context.Context, name string, deleted bool) int {
	st, running, err := liveStatus(ctx)
	if err != nil {
		return r.fail(err)
	}
	if !running || st.Profile != name {
		return 0
	}
	req := ipc.Request{Command: ipc.CommandProfile, Name: name}
	if deleted {
		req.Name = ""
	}
	if _, err := call(ctx, req); err != nil {
		return r.fail(err)
	}
	if deleted {
		fmt.Fprintln(r.Stdout, "active profile deleted; matching paused")
	} else {
		fmt.Fprintln(r.Stdout, "active profile reloaded")
	}
	return 0
}

func (r Runner) commandProfiles(ctx context.Context, cfg config.Config) int {
	names, err := profile.NewStore(cfg.Paths.Profiles).ListNames()
	if err != nil {
		return r.fail(err)
	}
	active := ""
	if st, running, err := liveStatus(ctx); err == nil && running {
		active = st.Profile
	} else if store, _, err := settings.Open(cfg.Paths.Settings); err == nil {
		active = store.Get().Profile
	}
	for _, name := range names {
		mark := " "
		if name == active {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %s\n", mark, name)
	}
	return 0
}

func (r Runner) commandSettings(ctx context.Context, cfg config.Config, args []string) int {
	store, warnings, err := settings.Open(cfg.Paths.Settings)
	if err != nil {
		return r.fail(err)
	}
	for _, w := range warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w)
	}

	if len(args) == 0 {
		for _, key := range settings.Keys() {
			value, _ := store.Value(key)
			fmt.Fprintf(r.Stdout, "%s = %v\n", key, value)
		}
		return 0
	}

	switch {
	case args[0] == "get" && len(args) == 2:
		value, err := store.Value(args[1])
		if err != nil {
			return r.fail(err)
		}
		fmt.Fprintln(r.Stdout, value)
		return 0
	case args[0] == "set" && len(args) == 3:
		value, err := settings.ParseValue(args[1], args[2])
		if err != nil {
			return r.fail(err)
		}
		if err := store.Set(args[1], value); err != nil {
			return r.fail(err)
		}
		fmt.Fprintf(r.Stdout, "%s = %v\n", args[1], value)
		resp, err := call(ctx, ipc.Request{Command: ipc.CommandReload})
		switch {
		case errors.Is(err, ipc.ErrNotRunning):
		case err != nil:
			fmt.Fprintf(r.Stderr, "warning: saved, but the running engine did not reload: %v\n", err)
		case resp.Message != "":
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	default:
		return r.usage("usage: settings [get KEY | set KEY VALUE]")
	}
}

func (r Runner) commandDevices(ctx context.Context, cfg config.Config) int {
	backend, err := r.Platform.backend(cfg.Audio.Backend)
	if err != nil {
		return r.fail(err)
	}
	devices, err := backend.ListDevices(ctx)
	if err != nil {
		return r.fail(err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) commandModels(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) int {
	fetcher := models.NewFetcher(&http.Client{}, logger, models.WithUserAgent(version.UserAgent()))
	manager := models.NewManager(cfg.Paths.Models, fetcher, logger)

	if len(args) == 0 {
		active := manager.ActiveVosk()
		for _, info := range models.Catalog() {
			state := ""
			switch {
			case info.Engine == models.EngineVosk && info.ID == active:
				state = "active"
			case manager.Cached(info):
				state = "cached"
			}
			fmt.Fprintf(r.Stdout, "%-8s %-20s %-40s %s\n", info.Engine, info.ID, info.Name, state)
		}
		return 0
	}

	if args[0] != "fetch" || len(args) < 3 {
		return r.usage("usage: models [fetch vosk ID | fetch whisper MODEL [LANGUAGE]]")
	}
	manager.OnProgress(func(message string) { fmt.Fprintln(r.Stdout, message) })

	var (
		path string
		err  error
	)
	switch models.Engine(args[1]) {
	case models.EngineVosk:
		if len(args) != 3 {
			return r.usage("usage: models fetch vosk ID")
		}
		path, err = manager.EnsureVosk(ctx, args[2])
	case models.EngineWhisper:
		language := "english"
		if len(args) == 4 {
			language = args[3]
		}
		path, err = manager.EnsureWhisper(ctx, args[2], language)
	default:
		return r.usage("unknown model engine %q", args[1])
	}
	if err != nil {
		return r.fail(err)
	}
	fmt.Fprintln(r.Stdout, path)
	return 0
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config, args []string) int {
	if !cfg.History.Enable {
		return r.fail(errors.New("command history is disabled (history.enable=false)"))
	}
	limit, ok := r.countArg(args, history.DefaultLimit)
	if !ok {
		return 2
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return r.fail(err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return r.fail(err)
	}
	for _, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = "error: " + e.Error
		}
		fmt.Fprintf(r.Stdout, "%s [%s/%s] %q -> %s (%s)\n",
			e.At.Local().Format(time.DateTime), e.Profile, e.Recognizer, e.Phrase, e.Command, status)
	}
	return 0
}
