package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/wqlbridge/internal/metrics"
	"github.com/leapstack-labs/wqlbridge/internal/testutil"
	"github.com/leapstack-labs/wqlbridge/pkg/adapters/memory"
	"github.com/leapstack-labs/wqlbridge/pkg/bridge"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, a *memory.Adapter, m *metrics.Metrics) *Server {
	t.Helper()
	if a == nil {
		a = memory.New(testutil.NewTestLogger(t))
		require.NoError(t, a.Connect(context.Background(), core.AdapterConfig{}))
	}
	b, err := bridge.New(bridge.Config{
		Adapter:           a,
		AllowedNamespaces: bridge.DefaultNamespaces,
		Observer:          m,
		Logger:            testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return New(Config{Bridge: b, Metrics: m, Reloader: a, Logger: testutil.NewTestLogger(t)})
}

func postQuery(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery(t *testing.T) {
	h := newTestServer(t, nil, metrics.New()).Handler()

	rec := postQuery(t, h, `{"namespace":"ROOT\\CIMV2","query":"SELECT * FROM Win32_Processor","properties":["Name","Missing"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Records []map[string]any `json:"records"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Contains(t, resp.Records[0], "Missing")
	assert.Nil(t, resp.Records[0]["Missing"])
	assert.NotEmpty(t, resp.Records[0]["Name"])

	// Records keep request order on the wire.
	assert.Less(t, strings.Index(rec.Body.String(), `"Name"`), strings.Index(rec.Body.String(), `"Missing"`))
}

func TestHandleQuery_Errors(t *testing.T) {
	h := newTestServer(t, nil, metrics.New()).Handler()

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed body", `{"namespace":`, http.StatusBadRequest, "InvalidArgument"},
		{"numeric namespace", `{"namespace":7,"query":"SELECT * FROM Win32_Processor"}`, http.StatusBadRequest, "InvalidArgument"},
		{"scalar properties", `{"namespace":"root/cimv2","query":"SELECT * FROM Win32_Processor","properties":"Name"}`, http.StatusBadRequest, "InvalidArgument"},
		{"mixed properties", `{"namespace":"root/cimv2","query":"SELECT * FROM Win32_Processor","properties":["Name",1]}`, http.StatusBadRequest, "InvalidArgument"},
		{"missing query", `{"namespace":"root/cimv2"}`, http.StatusBadRequest, "InvalidArgument"},
		{"unsupported namespace", `{"namespace":"root/default","query":"SELECT * FROM x"}`, http.StatusNotFound, "NamespaceError"},
		{"invalid query", `{"namespace":"root/cimv2","query":"invalid"}`, http.StatusUnprocessableEntity, "QueryError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postQuery(t, h, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Error.Kind)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestHandleQuery_SubsystemFault(t *testing.T) {
	a := memory.New(nil)
	require.NoError(t, a.Connect(context.Background(), core.AdapterConfig{
		Params: map[string]any{"fault_classes": []string{"Win32_Service"}},
	}))
	h := newTestServer(t, a, metrics.New()).Handler()

	rec := postQuery(t, h, `{"namespace":"root/cimv2","query":"SELECT * FROM Win32_Service"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(core.InvalidArgument))
	assert.Equal(t, http.StatusNotFound, StatusFor(core.NamespaceError))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(core.QueryError))
	assert.Equal(t, http.StatusBadGateway, StatusFor(core.SubsystemFault))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(0))
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, nil, metrics.New()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	const id = "6f1c1d3a-2a4e-4c43-9a52-1f0e8d5c9b7e"
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a uuid", rec.Header().Get(RequestIDHeader))
}

func TestHandleNamespaces(t *testing.T) {
	h := newTestServer(t, nil, metrics.New()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/namespaces", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Namespaces []string `json:"namespaces"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"root/cimv2", "root/cimv2/power", "root/microsoft/windows/storage", "root/wmi"}, resp.Namespaces)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	h := newTestServer(t, nil, m).Handler()

	postQuery(t, h, `{"namespace":"root/cimv2","query":"SELECT * FROM Win32_Processor"}`)
	postQuery(t, h, `{"namespace":"root/cimv2","query":"invalid"}`)

	assert.InDelta(t, 1, promtest.ToFloat64(m.QueriesTotal.WithLabelValues("root/cimv2", "ok")), 0)
	assert.InDelta(t, 1, promtest.ToFloat64(m.RequestTotal.WithLabelValues("POST", "/v1/query", "422")), 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wqlbridge_queries_total")
}

func TestServe_WatchReloadsFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.yaml")
	write := func(name string) {
		data := "namespaces:\n  root/cimv2:\n    Win32_Processor:\n      - Name: " + name + "\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	}
	write("before")

	a := memory.New(testutil.NewTestLogger(t))
	require.NoError(t, a.Connect(context.Background(), core.AdapterConfig{Path: path}))
	s := newTestServer(t, a, metrics.New())
	s.watch = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	// Follow the event stream so the reload is observed end to end.
	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Eventually(t, func() bool { return s.Notifier().Listeners() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	write("after")

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	select {
	case line := <-lines:
		assert.Equal(t, "event: reload", line)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload event")
	}

	body := `{"namespace":"root/cimv2","query":"SELECT Name FROM Win32_Processor"}`
	qresp, err := http.Post("http://"+ln.Addr().String()+"/v1/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = qresp.Body.Close() }()
	var out QueryResponse
	require.NoError(t, json.NewDecoder(qresp.Body).Decode(&out))
	require.Len(t, out.Records, 1)
	name, _ := out.Records[0].Get("Name")
	assert.Equal(t, core.String("after"), name)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
