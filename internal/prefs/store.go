package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type State struct {
	Scheme   Scheme
	ThreadID *string
}

type Observer func(State)

type Options struct {
	Storage    Storage
	StorageKey string
	Signal     Signal
	Logger     *slog.Logger
}

// Store holds the process-wide preference state. The scheme is persisted
// under a fixed key; the thread id lives in memory only.
type Store struct {
	storage Storage
	key     string
	logger  *slog.Logger

	mu        sync.RWMutex
	state     State
	observers map[int]Observer
	nextID    int
}

func New(ctx context.Context, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage:   opts.Storage,
		key:       opts.StorageKey,
		logger:    logger,
		state:     State{Scheme: initialScheme(ctx, opts.Storage, opts.StorageKey, opts.Signal, logger)},
		observers: map[int]Observer{},
	}
}

// InitialScheme resolves the scheme a fresh process starts with: the stored
// value when it is valid, otherwise the platform signal. It never fails.
func InitialScheme(ctx context.Context, storage Storage, key string, signal Signal) Scheme {
	return initialScheme(ctx, storage, key, signal, slog.Default())
}

func initialScheme(ctx context.Context, storage Storage, key string, signal Signal, logger *slog.Logger) (scheme Scheme) {
	fallback := schemeFromSignal(signal)
	if storage == nil {
		return fallback
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Warn("preference storage panicked, using platform preference", "key", key, "panic", fmt.Sprint(recovered))
			scheme = fallback
		}
	}()

	value, err := storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("preference storage unavailable, using platform preference", "key", key, "error", err)
		}
		return fallback
	}
	stored, err := ParseScheme(value)
	if err != nil {
		logger.Warn("ignoring stored color scheme", "key", key, "value", value)
		return fallback
	}
	return stored
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

func (s *Store) Scheme() Scheme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Scheme
}

func (s *Store) ThreadID() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyThreadID(s.state.ThreadID)
}

// SetScheme persists the scheme and then applies it in memory. A failed
// write still updates memory so the toggle takes effect for this process;
// the storage error is returned to the caller.
func (s *Store) SetScheme(ctx context.Context, scheme Scheme) error {
	if !scheme.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidScheme, string(scheme))
	}

	var writeErr error
	if s.storage != nil {
		if err := s.storage.Set(ctx, s.key, string(scheme)); err != nil {
			writeErr = fmt.Errorf("persist color scheme: %w", err)
			s.logger.Warn("failed to persist color scheme", "key", s.key, "error", err)
		}
	}

	s.mu.Lock()
	s.state.Scheme = scheme
	snapshot, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
	return writeErr
}

func (s *Store) ToggleScheme(ctx context.Context) (Scheme, error) {
	next := s.Scheme().Toggled()
	return next, s.SetScheme(ctx, next)
}

// SetThreadID records the active conversation thread. Nil or empty clears it.
func (s *Store) SetThreadID(threadID *string) {
	if threadID != nil && *threadID == "" {
		threadID = nil
	}

	s.mu.Lock()
	s.state.ThreadID = copyThreadID(threadID)
	snapshot, observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
}

// Subscribe registers an observer that is called synchronously after every
// mutation. The returned func removes it.
func (s *Store) Subscribe(observer Observer) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = observer
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotLocked() (State, []Observer) {
	observers := make([]Observer, 0, len(s.observers))
	for id := 0; id < s.nextID; id++ {
		if observer, ok := s.observers[id]; ok {
			observers = append(observers, observer)
		}
	}
	return copyState(s.state), observers
}

func notify(observers []Observer, state State) {
	for _, observer := range observers {
		observer(copyState(state))
	}
}

func copyState(state State) State {
	return State{Scheme: state.Scheme, ThreadID: copyThreadID(state.ThreadID)}
}

func copyThreadID(threadID *string) *string {
	if threadID == nil {
		return nil
	}
	value := *threadID
	return &value
}
