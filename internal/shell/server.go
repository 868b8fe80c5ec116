package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"dorthy/internal/content"
	"dorthy/internal/prefs"
	"dorthy/internal/widget"
)

const (
	Version       = "0.1.0"
	EventEndpoint = "/api/widget/events"

	maxLiveInstances = 64
)

type Config struct {
	Addr            string
	AllowedHosts    []string
	CORSOrigins     []string
	BackendURL      string
	ProxyPath       string
	ShutdownTimeout time.Duration
}

type Deps struct {
	Prefs         *prefs.Store
	Content       *content.Source
	Widget        widget.Settings
	WidgetOptions []widget.Option
	Ready         *ReadyRef
}

// Server composes the branded page around the chat widget and relays the
// widget's lifecycle events into the preference store.
type Server struct {
	cfg        Config
	deps       Deps
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
	callbacks  widget.Callbacks

	mu        sync.Mutex
	instances map[string]*widget.Lifecycle
	order     []string
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Prefs == nil {
		return nil, errors.New("shell: preference store is required")
	}
	if deps.Content == nil {
		deps.Content = content.NewStaticSource(content.Default())
	}
	if deps.Ready == nil {
		deps.Ready = &ReadyRef{}
	}
	if deps.Widget.EventEndpoint == "" {
		deps.Widget.EventEndpoint = EventEndpoint
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		instances: map[string]*widget.Lifecycle{},
	}
	s.callbacks = widget.Bind(deps.Prefs, deps.Ready.Store, logger)

	router, err := s.setupRouter()
	if err != nil {
		return nil, err
	}
	s.router = router
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() (chi.Router, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(allowedHosts(s.cfg.AllowedHosts))

	if len(s.cfg.CORSOrigins) > 0 {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		})
		r.Use(corsMiddleware.Handler)
	}

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/widget/config", s.handleWidgetConfig)
		r.Post("/widget/events", s.handleWidgetEvent)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences/scheme", s.handleSetScheme)
		r.Post("/preferences/scheme/toggle", s.handleToggleScheme)
	})

	if s.cfg.BackendURL != "" && s.cfg.ProxyPath != "" {
		proxy, err := newBackendProxy(s.cfg.BackendURL, s.logger)
		if err != nil {
			return nil, err
		}
		r.Handle(s.cfg.ProxyPath, proxy)
		r.Handle(s.cfg.ProxyPath+"/*", proxy)
		s.logger.Info("proxying widget api", "path", s.cfg.ProxyPath, "backend", s.cfg.BackendURL)
	}

	return r, nil
}

// newBackendProxy forwards the widget API path to the chat backend,
// rewriting the Host header to the backend's.
func newBackendProxy(backendURL string, logger *slog.Logger) (http.Handler, error) {
	target, err := url.Parse(backendURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("shell: invalid backend url %q", backendURL)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("backend proxy error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "chat backend unavailable")
	}
	return proxy, nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// mount starts a new widget instance for one page render. The oldest
// instances are disposed once too many are live.
func (s *Server) mount() (*widget.Lifecycle, widget.Config) {
	lifecycle := widget.NewLifecycle(s.callbacks, s.logger)
	_ = lifecycle.Mount()
	cfg := s.buildConfig()

	s.mu.Lock()
	s.instances[lifecycle.InstanceID()] = lifecycle
	s.order = append(s.order, lifecycle.InstanceID())
	var evicted []*widget.Lifecycle
	for len(s.order) > maxLiveInstances {
		oldest := s.order[0]
		s.order = s.order[1:]
		if instance, ok := s.instances[oldest]; ok {
			evicted = append(evicted, instance)
			delete(s.instances, oldest)
		}
	}
	s.mu.Unlock()

	for _, instance := range evicted {
		s.disposeInstance(instance)
	}
	return lifecycle, cfg
}

func (s *Server) instance(id string) (*widget.Lifecycle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lifecycle, ok := s.instances[id]
	return lifecycle, ok
}

func (s *Server) unmount(id string) {
	s.mu.Lock()
	lifecycle, ok := s.instances[id]
	if ok {
		delete(s.instances, id)
		for i, candidate := range s.order {
			if candidate == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if ok {
		s.disposeInstance(lifecycle)
	}
}

func (s *Server) disposeInstance(lifecycle *widget.Lifecycle) {
	lifecycle.Dispose()
	s.deps.Ready.Clear(lifecycle.InstanceID())
	s.logger.Debug("widget disposed", "instance_id", lifecycle.InstanceID())
}

func (s *Server) buildConfig() widget.Config {
	return widget.Build(s.deps.Prefs.Scheme(), s.deps.Content.Table(), s.deps.Widget, s.deps.WidgetOptions...)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.mu.Lock()
	live := make([]*widget.Lifecycle, 0, len(s.instances))
	for _, lifecycle := range s.instances {
		live = append(live, lifecycle)
	}
	s.instances = map[string]*widget.Lifecycle{}
	s.order = nil
	s.mu.Unlock()
	for _, lifecycle := range live {
		s.disposeInstance(lifecycle)
	}

	s.logger.Info("http server stopped")
	return nil
}
