// Package services composes the bibliographic and extension repositories
// into DatabaseService, the single object request handlers talk to.
//
// DatabaseService is built once by the entrypoint and passed to handlers.
// Its lifecycle is explicit: New, then Ready after Init, then Closed after
// Close. Calls outside the Ready state return ErrNotReady.
//
// # Usage
//
//	svc := services.NewDatabaseService(services.Options{Connections: conns})
//	if err := svc.Init(ctx); err != nil { ... }
//	defer svc.Close()
//	books, err := svc.FindAll(ctx, services.FindOptions{Limit: 50})
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/calibre"
	"github.com/mrlokans/booklog/internal/database/talebook"
	"github.com/mrlokans/booklog/internal/validation"
)

// ErrNotReady is returned by every call made before Init or after Close.
var ErrNotReady = errors.New("service not ready")

// State is the lifecycle position of a DatabaseService.
type State int32

const (
	StateNew State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ItemsSyncer repairs missing items rows out of band. The task queue implements it.
type ItemsSyncer interface {
	RequestItemsSync(ctx context.Context, bookIDs ...int64) error
}

// Options configures a DatabaseService.
type Options struct {
	Connections *database.ConnectionManager
	// Validator defaults to validation.NewBookValidator().
	Validator *validation.BookValidator
	// DefaultReaderID is used when a request names no reader.
	DefaultReaderID int64
	// InitSchema creates missing tables in both stores during Init and Reconnect.
	InitSchema bool
}

// bound holds the repositories over the currently open connections. A nil
// field means the store is unavailable.
type bound struct {
	calibreBase  *database.BaseRepository
	talebookBase *database.BaseRepository

	books      *calibre.BookRepository
	authors    *calibre.AuthorRepository
	publishers *calibre.PublisherRepository
	tags       *calibre.TagRepository

	ext *talebook.Repositories
}

// DatabaseService is the flat facade over both stores.
type DatabaseService struct {
	conns         *database.ConnectionManager
	validator     *validation.BookValidator
	defaultReader int64
	initSchema    bool

	mu     sync.RWMutex
	state  State
	repos  *bound
	syncer ItemsSyncer
}

func NewDatabaseService(opts Options) *DatabaseService {
	v := opts.Validator
	if v == nil {
		v = validation.NewBookValidator()
	}
	return &DatabaseService{
		conns:         opts.Connections,
		validator:     v,
		defaultReader: opts.DefaultReaderID,
		initSchema:    opts.InitSchema,
		state:         StateNew,
	}
}

// SetItemsSyncer installs the syncer used when an items write fails after a create.
func (s *DatabaseService) SetItemsSyncer(syncer ItemsSyncer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncer = syncer
}

// Init opens both stores and moves the service to Ready. Calling it again
// while Ready is a no-op; a closed service cannot be reopened.
func (s *DatabaseService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateClosed:
		return fmt.Errorf("init: %w", ErrNotReady)
	}

	s.conns.Init(ctx)
	repos, err := s.bind(ctx)
	if err != nil {
		return err
	}
	s.repos = repos
	s.state = StateReady
	log.Info().
		Bool("calibre", repos.calibreBase != nil).
		Bool("talebook", repos.talebookBase != nil).
		Msg("database service ready")
	return nil
}

// Reconnect reopens both stores with freshly resolved paths.
func (s *DatabaseService) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrNotReady
	}
	if err := s.conns.Reconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("closing connections during reconnect")
	}
	repos, err := s.bind(ctx)
	if err != nil {
		return err
	}
	s.repos = repos
	return nil
}

// Close releases both stores. Every later call returns ErrNotReady.
func (s *DatabaseService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.repos = nil
	return s.conns.Close()
}

// State returns the lifecycle state.
func (s *DatabaseService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *DatabaseService) bind(ctx context.Context) (*bound, error) {
	metrics := s.conns.Metrics()
	b := &bound{}

	if db := s.conns.Calibre(); db != nil {
		b.calibreBase = database.NewBaseRepository(db, database.StoreCalibre, metrics)
		if s.initSchema {
			if err := calibre.EnsureSchema(ctx, b.calibreBase); err != nil {
				return nil, err
			}
		}
		b.books = calibre.NewBookRepository(b.calibreBase)
		b.authors = calibre.NewAuthorRepository(b.calibreBase)
		b.publishers = calibre.NewPublisherRepository(b.calibreBase)
		b.tags = calibre.NewTagRepository(b.calibreBase)
	}

	if db := s.conns.Talebook(); db != nil {
		b.talebookBase = database.NewBaseRepository(db, database.StoreTalebook, metrics)
		if s.initSchema {
			if err := talebook.EnsureSchema(ctx, b.talebookBase); err != nil {
				return nil, err
			}
		}
		b.ext = talebook.New(b.talebookBase)
	}
	return b, nil
}

// ready returns the bound repositories or ErrNotReady.
func (s *DatabaseService) ready() (*bound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady || s.repos == nil {
		return nil, ErrNotReady
	}
	return s.repos, nil
}

func (s *DatabaseService) itemsSyncer() ItemsSyncer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncer
}

// DefaultReaderID is the reader used when a request names none.
func (s *DatabaseService) DefaultReaderID() int64 {
	return s.defaultReader
}

// Availability reports which stores are open.
type Availability struct {
	State    string `json:"state"`
	Calibre  bool   `json:"calibre"`
	Talebook bool   `json:"talebook"`
}

func (s *DatabaseService) Availability() Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := Availability{State: s.state.String()}
	if s.repos != nil {
		a.Calibre = s.repos.calibreBase != nil
		a.Talebook = s.repos.talebookBase != nil
	}
	return a
}

// Ping checks both connections.
func (s *DatabaseService) Ping(ctx context.Context) (map[database.Store]error, error) {
	if _, err := s.ready(); err != nil {
		return nil, err
	}
	return s.conns.Ping(ctx), nil
}

func requireCalibre(b *bound) error {
	if b.books == nil {
		return fmt.Errorf("calibre: %w", database.ErrStoreUnavailable)
	}
	return nil
}

func requireTalebook(b *bound) error {
	if b.ext == nil {
		return fmt.Errorf("talebook: %w", database.ErrStoreUnavailable)
	}
	return nil
}
