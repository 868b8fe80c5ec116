package widget

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadyReady = errors.New("widget already ready")
	ErrDisposed     = errors.New("widget disposed")
)

type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseReady
	PhaseDisposed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Lifecycle tracks one mounted widget instance as seen from the host. Its
// only inputs are the widget's ready, thread-change and error events plus
// the host's own dispose on unmount. Transport, retries and recovery stay
// inside the widget.
type Lifecycle struct {
	id        string
	callbacks Callbacks
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	phase      Phase
	handle     Handle
	errorCount int
}

func NewLifecycle(callbacks Callbacks, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		id:        uuid.NewString(),
		callbacks: callbacks,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *Lifecycle) InstanceID() string {
	return l.id
}

func (l *Lifecycle) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

func (l *Lifecycle) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorCount
}

// Mount marks the configuration as handed to the widget.
func (l *Lifecycle) Mount() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.phase {
	case PhaseDisposed:
		return ErrDisposed
	case PhaseUninitialized:
		l.phase = PhaseInitializing
	}
	return nil
}

// Ready fires OnReady the first time only. Later calls return the original
// handle with ErrAlreadyReady.
func (l *Lifecycle) Ready() (Handle, error) {
	l.mu.Lock()
	switch l.phase {
	case PhaseDisposed:
		l.mu.Unlock()
		return Handle{}, ErrDisposed
	case PhaseReady:
		handle := l.handle
		l.mu.Unlock()
		l.logger.Debug("ignoring repeated widget ready", "instance_id", l.id)
		return handle, ErrAlreadyReady
	}
	l.phase = PhaseReady
	l.handle = Handle{InstanceID: l.id, ReadyAt: l.now()}
	handle := l.handle
	l.mu.Unlock()

	if l.callbacks.OnReady != nil {
		safeCall(l.logger, EventReady, func() { l.callbacks.OnReady(handle) })
	}
	return handle, nil
}

// ThreadChange is accepted in any live phase; the widget may restore a
// thread while it is still booting.
func (l *Lifecycle) ThreadChange(threadID *string) error {
	l.mu.Lock()
	if l.phase == PhaseDisposed {
		l.mu.Unlock()
		return ErrDisposed
	}
	l.mu.Unlock()

	if l.callbacks.OnThreadChange != nil {
		safeCall(l.logger, EventThreadChange, func() { l.callbacks.OnThreadChange(threadID) })
	}
	return nil
}

// Error is non-terminal. It never fails for a live instance.
func (l *Lifecycle) Error(payload any) error {
	l.mu.Lock()
	if l.phase == PhaseDisposed {
		l.mu.Unlock()
		return ErrDisposed
	}
	l.errorCount++
	l.mu.Unlock()

	if l.callbacks.OnError != nil {
		safeCall(l.logger, EventError, func() { l.callbacks.OnError(payload) })
	}
	return nil
}

func (l *Lifecycle) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phase = PhaseDisposed
}
