package widget

import (
	"fmt"
	"log/slog"
	"time"

	"dorthy/internal/prefs"
)

// Handle is what the host receives once the widget reports ready.
type Handle struct {
	InstanceID string    `json:"instanceId"`
	ReadyAt    time.Time `json:"readyAt"`
}

type Callbacks struct {
	OnReady        func(Handle)
	OnThreadChange func(threadID *string)
	OnError        func(payload any)
}

type threadSetter interface {
	SetThreadID(threadID *string)
}

// Bind wires the widget's lifecycle events into the preference store.
// onReady may be nil.
func Bind(store threadSetter, onReady func(Handle), logger *slog.Logger) Callbacks {
	if logger == nil {
		logger = slog.Default()
	}
	return Callbacks{
		OnReady: func(handle Handle) {
			if onReady != nil {
				onReady(handle)
			}
		},
		OnThreadChange: func(threadID *string) {
			store.SetThreadID(threadID)
		},
		OnError: func(payload any) {
			logWidgetError(logger, payload)
		},
	}
}

// logWidgetError runs inside the widget's event handling and must not
// panic, whatever the payload looks like. The widget shows its own error UI.
func logWidgetError(logger *slog.Logger, payload any) {
	defer func() {
		_ = recover()
	}()
	logger.Error("chat widget error", "error", describeError(payload))
}

func describeError(payload any) string {
	defer func() {
		_ = recover()
	}()
	switch value := payload.(type) {
	case nil:
		return "<empty>"
	case error:
		return value.Error()
	case string:
		if value == "" {
			return "<empty>"
		}
		return value
	case map[string]any:
		if message, ok := value["message"].(string); ok && message != "" {
			return message
		}
		if len(value) == 0 {
			return "<empty>"
		}
		return fmt.Sprintf("%v", value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// safeCall invokes fn and swallows panics from host-supplied callbacks.
func safeCall(logger *slog.Logger, event string, fn func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("widget callback panicked", "event", event, "panic", fmt.Sprint(recovered))
		}
	}()
	fn()
}

var _ threadSetter = (*prefs.Store)(nil)
