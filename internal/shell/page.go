package shell

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"dorthy/internal/content"
	"dorthy/internal/prefs"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type pageData struct {
	Scheme     prefs.Scheme
	Content    content.Table
	InstanceID string
	ConfigJSON string
}

// handleIndex renders the shell and mounts a fresh widget instance for it.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	lifecycle, cfg := s.mount()

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		s.unmount(lifecycle.InstanceID())
		s.logger.Error("encode widget config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build widget config")
		return
	}

	var buf bytes.Buffer
	err = indexTemplate.Execute(&buf, pageData{
		Scheme:     prefs.Scheme(cfg.Theme.ColorScheme),
		Content:    s.deps.Content.Table(),
		InstanceID: lifecycle.InstanceID(),
		ConfigJSON: string(configJSON),
	})
	if err != nil {
		s.unmount(lifecycle.InstanceID())
		s.logger.Error("render index", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
