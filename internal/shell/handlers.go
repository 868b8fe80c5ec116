package shell

import (
	"encoding/json"
	"errors"
	"net/http"

	"dorthy/internal/prefs"
	"dorthy/internal/widget"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type PreferencesResponse struct {
	Scheme   prefs.Scheme `json:"scheme"`
	ThreadID *string      `json:"threadId"`
}

type SchemeRequest struct {
	Scheme string `json:"scheme"`
}

type SchemeResponse struct {
	Scheme prefs.Scheme `json:"scheme"`
}

type WidgetEvent struct {
	InstanceID string          `json:"instanceId"`
	Type       string          `json:"type"`
	ThreadID   *string         `json:"threadId"`
	Error      json.RawMessage `json:"error"`
}

type ReadyResponse struct {
	Handle widget.Handle `json:"handle"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

func (s *Server) handleWidgetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buildConfig())
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, _ *http.Request) {
	state := s.deps.Prefs.State()
	writeJSON(w, http.StatusOK, PreferencesResponse{Scheme: state.Scheme, ThreadID: state.ThreadID})
}

func (s *Server) handleSetScheme(w http.ResponseWriter, r *http.Request) {
	var req SchemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	scheme, err := prefs.ParseScheme(req.Scheme)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Prefs.SetScheme(r.Context(), scheme); err != nil {
		s.logger.Warn("color scheme not persisted", "scheme", scheme, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleScheme(w http.ResponseWriter, r *http.Request) {
	next, err := s.deps.Prefs.ToggleScheme(r.Context())
	if err != nil {
		s.logger.Warn("color scheme not persisted", "scheme", next, "error", err)
	}
	writeJSON(w, http.StatusOK, SchemeResponse{Scheme: next})
}

// handleWidgetEvent receives events the page bridge forwards from the
// widget. Error events are always accepted, even for instances the shell
// no longer tracks.
func (s *Server) handleWidgetEvent(w http.ResponseWriter, r *http.Request) {
	var event WidgetEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}

	lifecycle, ok := s.instance(event.InstanceID)
	if event.Type == widget.EventError {
		payload := decodeErrorPayload(event.Error)
		if !ok || lifecycle.Error(payload) != nil {
			s.callbacks.OnError(payload)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch event.Type {
	case widget.EventReady, widget.EventThreadChange, widget.EventDispose:
	default:
		writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}
	if !ok {
		writeError(w, http.StatusGone, "unknown widget instance")
		return
	}

	switch event.Type {
	case widget.EventReady:
		handle, err := lifecycle.Ready()
		if err != nil && !errors.Is(err, widget.ErrAlreadyReady) {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ReadyResponse{Handle: handle})
	case widget.EventThreadChange:
		if err := lifecycle.ThreadChange(event.ThreadID); err != nil {
			writeError(w, http.StatusGone, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case widget.EventDispose:
		s.unmount(event.InstanceID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeErrorPayload(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return string(raw)
	}
	return payload
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
