package shell

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dorthy/internal/content"
	"dorthy/internal/prefs"
	"dorthy/internal/widget"
)

const testKey = "chatkit-boilerplate-theme"

var instancePattern = regexp.MustCompile(`data-instance="([^"]+)"`)
var configPattern = regexp.MustCompile(`data-config="([^"]+)"`)

type testShell struct {
	server  *Server
	store   *prefs.Store
	storage *prefs.MemoryStorage
	ready   *ReadyRef
}

func newTestShell(t *testing.T, cfg Config) testShell {
	t.Helper()
	storage := prefs.NewMemoryStorage()
	store := prefs.New(context.Background(), prefs.Options{Storage: storage, StorageKey: testKey, Signal: prefs.StaticSignal(false)})
	ready := &ReadyRef{}
	server, err := New(cfg, Deps{
		Prefs:   store,
		Content: content.NewStaticSource(content.Default()),
		Widget:  widget.Settings{APIURL: "/chatkit", DomainKey: "domain_pk_localhost_dev"},
		Ready:   ready,
	}, nil)
	require.NoError(t, err)
	return testShell{server: server, store: store, storage: storage, ready: ready}
}

func (ts testShell) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts testShell) mountPage(t *testing.T) (string, widget.Config) {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()

	match := instancePattern.FindStringSubmatch(page)
	require.Len(t, match, 2)
	cfgMatch := configPattern.FindStringSubmatch(page)
	require.Len(t, cfgMatch, 2)

	var cfg widget.Config
	require.NoError(t, json.Unmarshal([]byte(html.UnescapeString(cfgMatch[1])), &cfg))
	return match[1], cfg
}

func TestHealth(t *testing.T) {
	ts := newTestShell(t, Config{})
	rec := ts.do(t, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, Version, resp.Version)
}

func TestIndexEmbedsWidgetConfig(t *testing.T) {
	ts := newTestShell(t, Config{})
	instanceID, cfg := ts.mountPage(t)

	assert.NotEmpty(t, instanceID)
	assert.Equal(t, "/chatkit", cfg.API.URL)
	assert.Equal(t, "light", cfg.Theme.ColorScheme)
	assert.Equal(t, EventEndpoint, cfg.Callbacks.Endpoint)
	assert.Equal(t, content.Default().Prompts, cfg.StartScreen.Prompts)

	lifecycle, ok := ts.server.instance(instanceID)
	require.True(t, ok)
	assert.Equal(t, widget.PhaseInitializing, lifecycle.Phase())
}

func TestWidgetReadyStoresHandle(t *testing.T) {
	ts := newTestShell(t, Config{})
	instanceID, _ := ts.mountPage(t)

	_, ok := ts.ready.Load()
	assert.False(t, ok)

	body := `{"instanceId":"` + instanceID + `","type":"ready"}`
	rec := ts.do(t, http.MethodPost, EventEndpoint, body)
	require.Equal(t, http.StatusOK, rec.Code)

	handle, ok := ts.ready.Load()
	require.True(t, ok)
	assert.Equal(t, instanceID, handle.InstanceID)

	again := ts.do(t, http.MethodPost, EventEndpoint, body)
	require.Equal(t, http.StatusOK, again.Code)
	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(again.Body).Decode(&resp))
	assert.Equal(t, handle.ReadyAt.Unix(), resp.Handle.ReadyAt.Unix())
}

func TestThreadChangeScenario(t *testing.T) {
	ts := newTestShell(t, Config{})
	instanceID, _ := ts.mountPage(t)

	rec := ts.do(t, http.MethodPost, EventEndpoint, `{"instanceId":"`+instanceID+`","type":"thread.change","threadId":"abc123"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, ts.store.ThreadID())
	assert.Equal(t, "abc123", *ts.store.ThreadID())

	prefsRec := ts.do(t, http.MethodGet, "/api/preferences", "")
	var resp PreferencesResponse
	require.NoError(t, json.NewDecoder(prefsRec.Body).Decode(&resp))
	require.NotNil(t, resp.ThreadID)
	assert.Equal(t, "abc123", *resp.ThreadID)

	rec = ts.do(t, http.MethodPost, EventEndpoint, `{"instanceId":"`+instanceID+`","type":"thread.change","threadId":null}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, ts.store.ThreadID())
}

func TestWidgetErrorsAreAlwaysAccepted(t *testing.T) {
	ts := newTestShell(t, Config{})
	instanceID, _ := ts.mountPage(t)

	bodies := []string{
		`{"instanceId":"` + instanceID + `","type":"error","error":{"message":"network"}}`,
		`{"instanceId":"` + instanceID + `","type":"error"}`,
		`{"instanceId":"` + instanceID + `","type":"error","error":42}`,
		`{"instanceId":"unknown","type":"error","error":"late failure"}`,
	}
	for _, body := range bodies {
		rec := ts.do(t, http.MethodPost, EventEndpoint, body)
		assert.Equal(t, http.StatusAccepted, rec.Code, body)
	}

	lifecycle, ok := ts.server.instance(instanceID)
	require.True(t, ok)
	assert.Equal(t, 3, lifecycle.ErrorCount())
}

func TestWidgetEventRejections(t *testing.T) {
	ts := newTestShell(t, Config{})
	instanceID, _ := ts.mountPage(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, EventEndpoint, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, EventEndpoint, `{"instanceId":"`+instanceID+`","type":"resize"}`).Code)
	assert.Equal(t, http.StatusGone, ts.do(t, http.MethodPost, EventEndpoint, `{"instanceId":"missing","type":"ready"}`).Code)
}

func TestDisposeUnmountsInstance(t *testing.T) {
	ts := newTestShell(t, Config{})
	instanceID, _ := ts.mountPage(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, EventEndpoint, `{"instanceId":"`+instanceID+`","type":"ready"}`).Code)

	rec := ts.do(t, http.MethodPost, EventEndpoint, `{"instanceId":"`+instanceID+`","type":"dispose"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := ts.server.instance(instanceID)
	assert.False(t, ok)
	_, ready := ts.ready.Load()
	assert.False(t, ready)
	assert.Equal(t, http.StatusGone, ts.do(t, http.MethodPost, EventEndpoint, `{"instanceId":"`+instanceID+`","type":"thread.change","threadId":"x"}`).Code)
}

func TestMountEvictsOldestInstances(t *testing.T) {
	ts := newTestShell(t, Config{})
	first, _ := ts.server.mount()
	for i := 0; i < maxLiveInstances; i++ {
		ts.server.mount()
	}

	_, ok := ts.server.instance(first.InstanceID())
	assert.False(t, ok)
	assert.Equal(t, widget.PhaseDisposed, first.Phase())
}

func TestSchemeEndpoints(t *testing.T) {
	ts := newTestShell(t, Config{})

	rec := ts.do(t, http.MethodPut, "/api/preferences/scheme", `{"scheme":"dark"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	stored, err := ts.storage.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "dark", stored)

	_, cfg := ts.mountPage(t)
	assert.Equal(t, "dark", cfg.Theme.ColorScheme)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/preferences/scheme", `{"scheme":"sepia"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/preferences/scheme", `{`).Code)
	assert.Equal(t, prefs.SchemeDark, ts.store.Scheme())

	toggle := ts.do(t, http.MethodPost, "/api/preferences/scheme/toggle", "")
	require.Equal(t, http.StatusOK, toggle.Code)
	var resp SchemeResponse
	require.NoError(t, json.NewDecoder(toggle.Body).Decode(&resp))
	assert.Equal(t, prefs.SchemeLight, resp.Scheme)

	configRec := ts.do(t, http.MethodGet, "/api/widget/config", "")
	var current widget.Config
	require.NoError(t, json.NewDecoder(configRec.Body).Decode(&current))
	assert.Equal(t, "light", current.Theme.ColorScheme)
}

func TestAllowedHosts(t *testing.T) {
	ts := newTestShell(t, Config{AllowedHosts: []string{"localhost", ".railway.app"}})

	cases := map[string]int{
		"localhost:5170":        http.StatusOK,
		"dorthy.up.railway.app": http.StatusOK,
		"railway.app":           http.StatusOK,
		"evil.example.com":      http.StatusForbidden,
		"notrailway.app":        http.StatusForbidden,
	}
	for host, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Host = host
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, host)
	}
}

func TestBackendProxyForwardsWidgetAPI(t *testing.T) {
	var gotPath, gotHost string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHost = r.Host
		w.WriteHeader(http.StatusTeapot)
	}))
	t.Cleanup(backend.Close)

	ts := newTestShell(t, Config{BackendURL: backend.URL, ProxyPath: "/chatkit"})
	rec := ts.do(t, http.MethodPost, "/chatkit/threads", `{}`)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "/chatkit/threads", gotPath)
	assert.Equal(t, strings.TrimPrefix(backend.URL, "http://"), gotHost)
}

func TestNewRejectsBadBackendURL(t *testing.T) {
	store := prefs.New(context.Background(), prefs.Options{})
	_, err := New(Config{BackendURL: "::not a url", ProxyPath: "/chatkit"}, Deps{Prefs: store}, nil)
	assert.Error(t, err)

	_, err = New(Config{}, Deps{}, nil)
	assert.Error(t, err)
}
