// Package models resolves, downloads, and unpacks recognizer model assets.
package models

import (
	"fmt"
	"sort"
	"strings"
)

// Engine names the recognizer family a model belongs to.
type Engine string

const (
	EngineVosk    Engine = "vosk"
	EngineWhisper Engine = "whisper"
)

const (
	voskBaseURL    = "https://alphacephei.com/vosk/models/"
	whisperBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"
)

// Info describes one downloadable model.
type Info struct {
	// ID is the name used in settings, e.g. "small-en" or "tiny".
	ID     string
	Engine Engine
	// Name is the archive directory for vosk and the file stem for whisper.
	Name string
	URL  string
	Zip  bool
}

// Filename is the file the model is downloaded as.
func (i Info) Filename() string {
	if i.Zip {
		return i.Name + ".zip"
	}
	return i.Name + ".bin"
}

var voskModels = map[string]string{
	"small-en":            "vosk-model-small-en-us-0.15",
	"en-us":               "vosk-model-en-us-0.22",
	"small-nl":            "vosk-model-small-nl-0.22",
	"nl-spraakherkenning": "vosk-model-nl-spraakherkenning-0.6",
}

var whisperModels = []string{"tiny", "base", "small", "medium", "large", "large-v1", "large-v2", "large-v3"}

// Vosk looks up a vosk model id.
func Vosk(id string) (Info, error) {
	name, ok := voskModels[id]
	if !ok {
		return Info{}, fmt.Errorf("unknown vosk model %q (known: %s)", id, strings.Join(VoskIDs(), ", "))
	}
	return Info{
		ID:     id,
		Engine: EngineVosk,
		Name:   name,
		URL:    voskBaseURL + name + ".zip",
		Zip:    true,
	}, nil
}

// Whisper looks up a whisper model. English with a non-large model selects
// the English-only variant.
func Whisper(model, language string) (Info, error) {
	known := false
	for _, m := range whisperModels {
		if m == model {
			known = true
			break
		}
	}
	if !known {
		return Info{}, fmt.Errorf("unknown whisper model %q (known: %s)", model, strings.Join(whisperModels, ", "))
	}

	name := "ggml-" + model
	if strings.EqualFold(language, "english") && !strings.HasPrefix(model, "large") {
		name += ".en"
	}
	return Info{
		ID:     model,
		Engine: EngineWhisper,
		Name:   name,
		URL:    whisperBaseURL + name + ".bin",
	}, nil
}

// VoskIDs lists vosk model ids in sorted order.
func VoskIDs() []string {
	ids := make([]string, 0, len(voskModels))
	for id := range voskModels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WhisperIDs lists whisper model names smallest first.
func WhisperIDs() []string {
	return append([]string(nil), whisperModels...)
}

// Catalog returns every known model. Whisper models are listed in their
// multilingual variant.
func Catalog() []Info {
	out := make([]Info, 0, len(voskModels)+len(whisperModels))
	for _, id := range VoskIDs() {
		info, _ := Vosk(id)
		out = append(out, info)
	}
	for _, model := range whisperModels {
		info, _ := Whisper(model, "")
		out = append(out, info)
	}
	return out
}
