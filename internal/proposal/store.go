package proposal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when an id has no proposal in the store.
var ErrNotFound = errors.New("proposal not found")

// Store is a single-file proposal registry. Every mutation rewrites the
// whole document atomically; the process is assumed to be the only
// writer.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store backed by the JSON document at path. The
// file is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

type document struct {
	Proposals []record `json:"proposals"`
}

// Add persists p. An empty id is assigned from the creation clock; an
// empty created_at is stamped. Proposals enter the store as draft or
// proposed, never pre-approved.
func (s *Store) Add(p Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := p.Base()
	now := time.Now().UTC()
	if m.ID == "" {
		if _, ok := p.(*Fix); ok {
			m.ID = NewFixID(now)
		} else {
			m.ID = NewID(now)
		}
	}
	if m.CreatedAt == "" {
		m.CreatedAt = now.Format(time.RFC3339Nano)
	}
	if m.Status == "" {
		m.Status = StatusProposed
	}
	if m.Status != StatusDraft && m.Status != StatusProposed {
		return fmt.Errorf("proposal %s: cannot be created with status %q", m.ID, m.Status)
	}
	if m.Project == "" {
		return fmt.Errorf("proposal %s: project is required", m.ID)
	}

	doc, err := s.load()
	if err != nil {
		return err
	}
	for _, r := range doc.Proposals {
		if r.ID == m.ID {
			return fmt.Errorf("proposal %s already exists", m.ID)
		}
	}
	doc.Proposals = append(doc.Proposals, encode(p))
	return s.save(doc)
}

// Get returns the proposal with the given id.
func (s *Store) Get(id string) (Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range doc.Proposals {
		if r.ID == id {
			return decode(r), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns every proposal in creation order.
func (s *Store) List() ([]Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Proposal, 0, len(doc.Proposals))
	for _, r := range doc.Proposals {
		out = append(out, decode(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base().ID < out[j].Base().ID })
	return out, nil
}

// ListByStatus returns proposals in the given state, in creation order.
func (s *Store) ListByStatus(st Status) ([]Proposal, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, p := range all {
		if p.Base().Status == st {
			out = append(out, p)
		}
	}
	return out, nil
}

// Approve moves the proposal to approved. Only a proposed proposal can
// be approved.
func (s *Store) Approve(id string) error {
	return s.SetStatus(id, StatusApproved)
}

// Reject moves the proposal to rejected.
func (s *Store) Reject(id string) error {
	return s.SetStatus(id, StatusRejected)
}

// SetStatus applies a lifecycle transition. Backward or repeated
// transitions are rejected.
func (s *Store) SetStatus(id string, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("unknown status %q", to)
	}
	return s.update(id, func(r *record) error {
		if r.Status == to {
			return fmt.Errorf("proposal %s is already %s", id, to)
		}
		if !CanTransition(r.Status, to) {
			return fmt.Errorf("proposal %s: cannot move from %s to %s", id, r.Status, to)
		}
		r.Status = to
		return nil
	})
}

// SetLastExecution records the outcome of an execution attempt on the
// proposal. It is written on success and failure alike.
func (s *Store) SetLastExecution(id string, le LastExecution) error {
	return s.update(id, func(r *record) error {
		r.LastExecution = &le
		return nil
	})
}

func (s *Store) update(id string, fn func(*record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Proposals {
		if doc.Proposals[i].ID == id {
			if err := fn(&doc.Proposals[i]); err != nil {
				return err
			}
			return s.save(doc)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("read proposal store: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse proposal store %s: %w", s.path, err)
	}
	return &doc, nil
}

func (s *Store) save(doc *document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode proposal store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".proposals-*.tmp")
	if err != nil {
		return fmt.Errorf("write proposal store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write proposal store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write proposal store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write proposal store: %w", err)
	}
	return nil
}
