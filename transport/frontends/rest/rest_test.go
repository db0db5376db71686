package rest_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrife/murre/config"
	"github.com/jrife/murre/service"
	"github.com/jrife/murre/transport/frontends"
	"github.com/jrife/murre/transport/frontends/rest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

const nodeConfig = `
partition_count: 4
maps:
  - name: raw
  - name: docs
    serializer: json
    index:
      attribute: color
`

func newServer(t *testing.T) (*httptest.Server, *tracetest.SpanRecorder) {
	t.Helper()

	cfg, err := config.Parse([]byte(nodeConfig))
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	mapService, err := service.New(service.Config{Node: cfg, Logger: zap.NewNop(), Registerer: registry})
	require.NoError(t, err)
	t.Cleanup(mapService.Shutdown)

	recorder := tracetest.NewSpanRecorder()
	frontend := &rest.Frontend{}
	require.NoError(t, frontend.Init(frontends.Options{
		Server:         mapService,
		Logger:         zap.NewNop(),
		Registerer:     registry,
		Gatherer:       registry,
		TracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(recorder)),
	}))

	server := httptest.NewServer(frontend.Handler())
	t.Cleanup(server.Close)

	return server, recorder
}

func do(t *testing.T, method string, url string, body []byte) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))

	return body
}

func TestEntries(t *testing.T) {
	server, recorder := newServer(t)

	status, body := do(t, http.MethodPut, server.URL+"/maps/raw/entries/a", []byte("hello"))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, decode(t, body)["replaced"])

	status, body = do(t, http.MethodPut, server.URL+"/maps/raw/entries/a?ttl=1h", []byte("world"))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, decode(t, body)["replaced"])

	status, body = do(t, http.MethodGet, server.URL+"/maps/raw/entries/a", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "world", string(body))

	status, body = do(t, http.MethodDelete, server.URL+"/maps/raw/entries/a", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, decode(t, body)["removed"])

	status, _ = do(t, http.MethodGet, server.URL+"/maps/raw/entries/a", nil)
	require.Equal(t, http.StatusNotFound, status)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	require.Equal(t, "PUT /maps/{map}/entries/{key}", spans[0].Name())
}

func TestErrors(t *testing.T) {
	server, _ := newServer(t)

	status, body := do(t, http.MethodGet, server.URL+"/maps/missing/entries/a", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NotFound", decode(t, body)["code"])

	status, _ = do(t, http.MethodPut, server.URL+"/maps/raw/entries/a?ttl=soon", []byte("v"))
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, http.MethodPost, server.URL+"/maps/missing/load", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestMapEndpoints(t *testing.T) {
	server, _ := newServer(t)

	do(t, http.MethodPut, server.URL+"/maps/docs/entries/alice", []byte(`{"color":"red"}`))
	do(t, http.MethodPut, server.URL+"/maps/docs/entries/bob", []byte(`{"color":"blue"}`))

	status, body := do(t, http.MethodGet, server.URL+"/maps/docs/entries/alice", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"color":"red"}`, string(body))

	status, body = do(t, http.MethodGet, server.URL+"/maps/docs/index/red", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"keys":["alice"]}`, string(body))

	status, body = do(t, http.MethodGet, server.URL+"/maps/docs/stats", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(2), decode(t, body)["Puts"])

	status, body = do(t, http.MethodPost, server.URL+"/maps/docs/load", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, decode(t, body)["already_loaded"])

	status, body = do(t, http.MethodDelete, server.URL+"/maps/docs/entries", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(2), decode(t, body)["cleared"])
}

func TestHealthAndMetrics(t *testing.T) {
	server, _ := newServer(t)

	status, _ := do(t, http.MethodGet, server.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, status)

	do(t, http.MethodPut, server.URL+"/maps/raw/entries/a", []byte("v"))

	status, body := do(t, http.MethodGet, server.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), "murre_map_events_total")
	require.Contains(t, string(body), "murre_http_request_duration_seconds")
}

func TestListenAndStop(t *testing.T) {
	cfg, err := config.Parse([]byte(nodeConfig))
	require.NoError(t, err)

	mapService, err := service.New(service.Config{Node: cfg, Logger: zap.NewNop(), Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer mapService.Shutdown()

	frontend := &rest.Frontend{}
	require.NoError(t, frontend.Init(frontends.Options{Server: mapService, Registerer: prometheus.NewRegistry()}))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error)
	go func() { done <- frontend.Listen(listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")

		if err != nil {
			return false
		}

		resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, time.Second*5, time.Millisecond*10)

	require.NoError(t, frontend.Stop())
	require.NoError(t, <-done)
}
