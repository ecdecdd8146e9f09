// Package store is the single-writer JSON document store holding projects,
// phases, subphases, contractors, costs and documents.
//
// The whole dataset lives in memory and is rewritten atomically to data.json
// after every mutation. Mutations are serialized in arrival order; reads take
// a consistent snapshot and never wait for a queued mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gradnja/stroski-api/internal/domain"
	"github.com/gradnja/stroski-api/internal/paths"
	"github.com/gradnja/stroski-api/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000Z"
	dateLayout      = "2006-01-02"
	monthLayout     = "2006-01"
)

// Store owns the dataset of one data root. Create it once per process.
type Store struct {
	paths   paths.Paths
	uploads *storage.LocalStorage
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
	locale  language.Tag

	// ticket is the mutation serializer: one slot, blocked senders are served FIFO
	ticket chan struct{}

	// mu guards state against readers while a mutation changes it
	mu    sync.RWMutex
	state *domain.State

	initMu sync.Mutex
	ready  bool
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for timestamps and default dates
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the id generator
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithLocale sets the collation used when sorting by phase or contractor name
func WithLocale(tag language.Tag) Option {
	return func(s *Store) { s.locale = tag }
}

// New creates a store rooted at root. Nothing is read until the first operation.
func New(root string, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		paths:  paths.New(root),
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
		locale: language.Slovenian,
		ticket: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the data root layout
func (s *Store) Paths() paths.Paths {
	return s.paths
}

// Ready reports whether the dataset has been loaded
func (s *Store) Ready() bool {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.ready
}

// Init loads the dataset. Every operation calls it; calling it explicitly at
// startup surfaces a corrupt data file early. A failed load is retried on the
// next call.
func (s *Store) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.ready {
		return nil
	}

	if err := s.paths.EnsureExists(); err != nil {
		return err
	}
	uploads, err := storage.NewLocalStorage(s.paths.Uploads())
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(s.paths.DataFile())
	created := false
	var st *domain.State
	switch {
	case err == nil:
		st, err = decodeState(raw, s.now(), s.newID)
		if err != nil {
			s.logger.Error("Failed to decode data file",
				zap.String("path", s.paths.DataFile()),
				zap.Error(err),
			)
			return err
		}
	case errors.Is(err, os.ErrNotExist):
		st = domain.NewState()
		created = true
	default:
		return fmt.Errorf("failed to read data file: %w", err)
	}

	seeded := seedPhases(st, s.newID)

	s.mu.Lock()
	s.state = st
	s.uploads = uploads
	s.mu.Unlock()

	if created || seeded {
		if err := s.persist(); err != nil {
			return err
		}
	}

	s.ready = true
	s.logger.Info("Data store loaded",
		zap.String("path", s.paths.DataFile()),
		zap.Bool("created", created),
		zap.Bool("seeded", seeded),
		zap.Int("projects", len(st.Projects)),
		zap.Int("costs", len(st.Costs)),
	)
	return nil
}

// Snapshot returns a deep copy of the whole dataset
func (s *Store) Snapshot(ctx context.Context) (*domain.State, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state), nil
}

// serialize runs fn as the only in-flight mutation. Callers queue in arrival
// order and there is no timeout once queued.
func (s *Store) serialize(fn func() error) error {
	s.ticket <- struct{}{}
	defer func() { <-s.ticket }()
	return fn()
}

// mutate applies fn to the in-memory state under the write lock and persists.
// It must be called from inside serialize.
func (s *Store) mutate(fn func(st *domain.State)) error {
	s.mu.Lock()
	fn(s.state)
	s.mu.Unlock()
	return s.persist()
}

// read runs fn under the read lock
func (s *Store) read(fn func(st *domain.State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func (s *Store) today() string {
	return s.now().UTC().Format(dateLayout)
}

func cloneState(st *domain.State) *domain.State {
	out := &domain.State{
		Version:     st.Version,
		Projects:    make([]domain.Project, 0, len(st.Projects)),
		Phases:      append([]domain.Phase{}, st.Phases...),
		Subphases:   append([]domain.Subphase{}, st.Subphases...),
		Contractors: make([]domain.Contractor, 0, len(st.Contractors)),
		Costs:       make([]domain.Cost, 0, len(st.Costs)),
		Documents:   append([]domain.Document{}, st.Documents...),
	}
	for _, p := range st.Projects {
		out.Projects = append(out.Projects, p.Clone())
	}
	for _, c := range st.Contractors {
		out.Contractors = append(out.Contractors, c.Clone())
	}
	for _, c := range st.Costs {
		out.Costs = append(out.Costs, c.Clone())
	}
	if st.Meta.ActiveProjectID != nil {
		id := *st.Meta.ActiveProjectID
		out.Meta.ActiveProjectID = &id
	}
	return out
}
