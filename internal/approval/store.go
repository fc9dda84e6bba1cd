// Package approval publishes affirmation prompts as files so they can be
// answered from another process, such as a second terminal or a chat
// bridge.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/affirmgate/internal/policy"
)

// validKey matches alphanumeric, dash, underscore, and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateKey rejects keys that could cause path traversal.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("key contains invalid characters: only alphanumeric, dash, underscore, and dot are allowed")
	}
	return nil
}

// ErrNotPending is returned when answering a prompt that is not waiting
// for an answer.
var ErrNotPending = errors.New("prompt is not pending")

// Status is the state of a published prompt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusAffirmed  Status = "affirmed"
	StatusCancelled Status = "cancelled"
)

// Final reports whether no further answers are accepted.
func (s Status) Final() bool {
	return s == StatusAffirmed || s == StatusCancelled
}

// Entry is one published prompt and its state.
type Entry struct {
	Key           string     `json:"key"`
	Status        Status     `json:"status"`
	Title         string     `json:"title"`
	Body          []string   `json:"body,omitempty"`
	RequiresToken bool       `json:"requires_token"`
	Placeholder   string     `json:"placeholder,omitempty"`
	Input         string     `json:"input,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// Store manages prompt files on disk.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store backed by dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("cannot create pending directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns ~/.affirmgate/pending.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "affirmgate-pending")
	}
	return filepath.Join(home, ".affirmgate", "pending")
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Request publishes p under key. No-op if the key already exists.
func (s *Store) Request(key string, p policy.Prompt) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("invalid prompt key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return s.writeAtomic(path, Entry{
		Key:           key,
		Status:        StatusPending,
		Title:         p.Title,
		Body:          p.Body,
		RequiresToken: p.RequiresToken(),
		Placeholder:   p.Placeholder,
		CreatedAt:     time.Now().UTC(),
	})
}

// Submit answers a pending prompt with input.
func (s *Store) Submit(key, input string) error {
	return s.update(key, func(e *Entry) error {
		if e.Status != StatusPending {
			return fmt.Errorf("%w: %s is %s", ErrNotPending, key, e.Status)
		}
		e.Status = StatusSubmitted
		e.Input = input
		e.Error = ""
		return nil
	})
}

// Cancel declines a prompt that has not resolved yet.
func (s *Store) Cancel(key string) error {
	return s.update(key, func(e *Entry) error {
		if e.Status.Final() {
			return fmt.Errorf("%w: %s is %s", ErrNotPending, key, e.Status)
		}
		e.Status = StatusCancelled
		return nil
	})
}

// Reject returns a submitted prompt to pending with an error message.
func (s *Store) Reject(key, message string) error {
	return s.update(key, func(e *Entry) error {
		if e.Status != StatusSubmitted {
			return fmt.Errorf("%w: %s is %s", ErrNotPending, key, e.Status)
		}
		e.Status = StatusPending
		e.Input = ""
		e.Error = message
		return nil
	})
}

// Resolve records the final outcome of a prompt.
func (s *Store) Resolve(key string, affirmed bool) error {
	return s.update(key, func(e *Entry) error {
		e.Status = StatusCancelled
		if affirmed {
			e.Status = StatusAffirmed
		}
		now := time.Now().UTC()
		e.ResolvedAt = &now
		return nil
	})
}

// Get returns the entry for key.
func (s *Store) Get(key string) (*Entry, error) {
	if err := validateKey(key); err != nil {
		return nil, fmt.Errorf("invalid prompt key: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.read(key)
	if err != nil {
		return nil, fmt.Errorf("prompt %q not found: %w", key, err)
	}
	return e, nil
}

// List returns all entries, oldest first.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Entry
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		e, err := s.read(strings.TrimSuffix(de.Name(), ".json"))
		if err != nil {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Cleanup removes every prompt file in the store.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) update(key string, fn func(*Entry) error) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("invalid prompt key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.read(key)
	if err != nil {
		return fmt.Errorf("prompt %q not found: %w", key, err)
	}
	if err := fn(e); err != nil {
		return err
	}
	return s.writeAtomic(s.path(key), *e)
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) read(key string) (*Entry, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) writeAtomic(path string, e Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
