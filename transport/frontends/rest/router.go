package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jrife/murre/transport"
	"github.com/jrife/murre/transport/frontends"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MaxValueSize bounds the body of a put
const MaxValueSize = 10 * 1024 * 1024

// Router creates and configures the HTTP router
func Router(options frontends.Options) http.Handler {
	options = options.WithDefaults()
	handler := &handler{server: options.Server, logger: options.Logger.With(zap.String("frontend", "rest"))}
	router := mux.NewRouter()

	router.Use(
		tracingMiddleware(options.TracerProvider),
		metricsMiddleware(options.Registerer),
		loggingMiddleware(handler.logger),
		recoveryMiddleware(handler.logger),
	)

	router.HandleFunc("/healthz", handler.health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	maps := router.PathPrefix("/maps/{map}").Subrouter()
	maps.HandleFunc("/entries/{key}", handler.get).Methods(http.MethodGet)
	maps.HandleFunc("/entries/{key}", handler.put).Methods(http.MethodPut)
	maps.HandleFunc("/entries/{key}", handler.remove).Methods(http.MethodDelete)
	maps.HandleFunc("/entries", handler.clear).Methods(http.MethodDelete)
	maps.HandleFunc("/load", handler.load).Methods(http.MethodPost)
	maps.HandleFunc("/stats", handler.stats).Methods(http.MethodGet)
	maps.HandleFunc("/index/{attr}", handler.index).Methods(http.MethodGet)

	return router
}

type handler struct {
	server transport.MapServer
	logger *zap.Logger
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (handler *handler) writeJSON(w http.ResponseWriter, body interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		handler.logger.Debug("could not write response", zap.Error(err))
	}
}

func (handler *handler) writeError(w http.ResponseWriter, err error) {
	code := transport.Code(err)

	handler.writeJSON(w, ErrorResponse{Error: err.Error(), Code: code.String()}, httpStatus(code))
}

func (handler *handler) health(w http.ResponseWriter, r *http.Request) {
	handler.writeJSON(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

func (handler *handler) get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	value, found, err := transport.Get(r.Context(), handler.server, vars["map"], []byte(vars["key"]))

	if err != nil {
		handler.writeError(w, err)

		return
	}

	if !found {
		handler.writeJSON(w, ErrorResponse{Error: "key not found", Code: "NotFound"}, http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}

func (handler *handler) put(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var ttl time.Duration

	if s := r.URL.Query().Get("ttl"); s != "" {
		var err error

		if ttl, err = time.ParseDuration(s); err != nil || ttl < 0 {
			handler.writeJSON(w, ErrorResponse{Error: "invalid ttl", Code: "InvalidArgument"}, http.StatusBadRequest)

			return
		}
	}

	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxValueSize))

	if err != nil {
		handler.writeJSON(w, ErrorResponse{Error: err.Error(), Code: "InvalidArgument"}, http.StatusBadRequest)

		return
	}

	replaced, err := transport.Put(r.Context(), handler.server, vars["map"], []byte(vars["key"]), value, ttl)

	if err != nil {
		handler.writeError(w, err)

		return
	}

	handler.writeJSON(w, map[string]bool{"replaced": replaced}, http.StatusOK)
}

func (handler *handler) remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	removed, err := transport.Remove(r.Context(), handler.server, vars["map"], []byte(vars["key"]))

	if err != nil {
		handler.writeError(w, err)

		return
	}

	handler.writeJSON(w, map[string]bool{"removed": removed}, http.StatusOK)
}

func (handler *handler) clear(w http.ResponseWriter, r *http.Request) {
	cleared, err := handler.server.Clear(r.Context(), mux.Vars(r)["map"])

	if err != nil {
		handler.writeError(w, err)

		return
	}

	handler.writeJSON(w, map[string]int{"cleared": cleared}, http.StatusOK)
}

func (handler *handler) load(w http.ResponseWriter, r *http.Request) {
	alreadyLoaded, err := handler.server.TriggerLoad(r.Context(), mux.Vars(r)["map"])

	if err != nil {
		handler.writeError(w, err)

		return
	}

	handler.writeJSON(w, map[string]bool{"already_loaded": alreadyLoaded}, http.StatusOK)
}

func (handler *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := handler.server.Stats(mux.Vars(r)["map"])

	if err != nil {
		handler.writeError(w, err)

		return
	}

	handler.writeJSON(w, stats, http.StatusOK)
}

func (handler *handler) index(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	keys, err := handler.server.IndexKeys(r.Context(), vars["map"], vars["attr"])

	if err != nil {
		handler.writeError(w, err)

		return
	}

	response := struct {
		Keys []string `json:"keys"`
	}{Keys: make([]string, len(keys))}

	for i, key := range keys {
		response.Keys[i] = string(key)
	}

	handler.writeJSON(w, response, http.StatusOK)
}
