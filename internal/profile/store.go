package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rbright/voicecmd/internal/atomicfile"
)

const fileExt = ".json"

// Store keeps one <name>.json file per profile inside dir.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore returns a store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the profile directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get reads one profile.
func (s *Store) Get(name string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(name)
}

// ListNames returns all profile names sorted lexically.
func (s *Store) ListNames() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Create writes a new empty profile.
func (s *Store) Create(name string) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(clean)); err == nil {
		return fmt.Errorf("%w: %q", ErrExists, clean)
	}
	return s.write(Profile{Name: clean, Commands: []Command{}})
}

// Delete removes a profile file.
func (s *Store) Delete(name string) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(clean)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, clean)
		}
		return fmt.Errorf("delete profile %q: %w", clean, err)
	}
	return nil
}

// AppendCommand adds cmd at the end of the profile's list.
func (s *Store) AppendCommand(name string, cmd Command) error {
	cmd, err := normalizeCommand(cmd)
	if err != nil {
		return err
	}
	return s.update(name, func(p *Profile) error {
		p.Commands = append(p.Commands, cmd)
		return nil
	})
}

// ReplaceCommand overwrites the command at index.
func (s *Store) ReplaceCommand(name string, index int, cmd Command) error {
	cmd, err := normalizeCommand(cmd)
	if err != nil {
		return err
	}
	return s.update(name, func(p *Profile) error {
		if index < 0 || index >= len(p.Commands) {
			return &IndexError{Profile: p.Name, Index: index, Len: len(p.Commands)}
		}
		p.Commands[index] = cmd
		return nil
	})
}

// RemoveCommand deletes the command at index, preserving the order of the rest.
func (s *Store) RemoveCommand(name string, index int) error {
	return s.update(name, func(p *Profile) error {
		if index < 0 || index >= len(p.Commands) {
			return &IndexError{Profile: p.Name, Index: index, Len: len(p.Commands)}
		}
		p.Commands = append(p.Commands[:index], p.Commands[index+1:]...)
		return nil
	})
}

// EnsureDefault creates the Default profile when the store holds none.
func (s *Store) EnsureDefault() (bool, error) {
	names, err := s.ListNames()
	if err != nil {
		return false, err
	}
	if len(names) > 0 {
		return false, nil
	}
	if err := s.Create(DefaultName); err != nil && !errors.Is(err, ErrExists) {
		return false, err
	}
	return true, nil
}

func (s *Store) update(name string, mutate func(*Profile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read(name)
	if err != nil {
		return err
	}
	if err := mutate(&p); err != nil {
		return err
	}
	return s.write(p)
}

func (s *Store) read(name string) (Profile, error) {
	clean, err := cleanName(name)
	if err != nil {
		return Profile{}, err
	}

	content, err := os.ReadFile(s.path(clean))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, fmt.Errorf("%w: %q", ErrNotFound, clean)
		}
		return Profile{}, fmt.Errorf("read profile %q: %w", clean, err)
	}

	var p Profile
	if err := json.Unmarshal(content, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %q: %w", clean, err)
	}
	p.Name = clean
	if p.Commands == nil {
		p.Commands = []Command{}
	}
	for i, cmd := range p.Commands {
		cmd, err := normalizeCommand(cmd)
		if err != nil {
			return Profile{}, &RecordError{Profile: clean, Index: i, Err: err}
		}
		p.Commands[i] = cmd
	}
	return p, nil
}

func (s *Store) write(p Profile) error {
	if p.Commands == nil {
		p.Commands = []Command{}
	}
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", p.Name, err)
	}
	data = append(data, '\n')
	if err := atomicfile.WriteFile(s.path(p.Name), data, 0o600); err != nil {
		return fmt.Errorf("write profile %q: %w", p.Name, err)
	}
	return nil
}

func (s *Store) path(clean string) string {
	return filepath.Join(s.dir, clean+fileExt)
}
