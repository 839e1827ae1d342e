// Package httpapi serves the detection pipeline over HTTP, with a websocket
// endpoint for live camera streams.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/imaging"
	"github.com/wyyywsd/FinderEye/internal/logging"
	"github.com/wyyywsd/FinderEye/internal/pipeline"
)

const (
	// MaxFrameBytes bounds an uploaded image or websocket frame.
	MaxFrameBytes = 32 << 20

	requestIDHeader = "X-Request-ID"
)

// API holds the HTTP handlers.
type API struct {
	pipeline *pipeline.Pipeline
	settings *config.Store
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates the API for p.
func New(p *pipeline.Pipeline, settings *config.Store) *API {
	return &API{
		pipeline: p,
		settings: settings,
		log:      logging.Component("http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router returns the route table.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.requestID)

	r.MethodNotAllowedHandler = a.requestID(http.HandlerFunc(a.handleMethodNotAllowed))

	// Routes live on the root router: a PathPrefix subrouter reports a
	// method mismatch as 404.
	r.HandleFunc("/healthz", a.handleHealth).Methods("GET")
	r.HandleFunc("/v1/detect", a.handleDetect).Methods("POST")
	r.HandleFunc("/v1/stream/frame", a.handleStreamFrame).Methods("POST")
	r.HandleFunc("/v1/stream/suspend", a.handleSuspend).Methods("PUT")
	r.HandleFunc("/v1/stream/reset", a.handleReset).Methods("POST")
	r.HandleFunc("/v1/stream/stats", a.handleStats).Methods("GET")
	r.HandleFunc("/v1/stream/ws", a.handleStreamWS).Methods("GET")
	r.HandleFunc("/v1/settings", a.handleGetSettings).Methods("GET")
	r.HandleFunc("/v1/settings", a.handleUpdateSettings).Methods("PUT")
	return r
}

func (a *API) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.sendError(w, r, "method_not_allowed", fmt.Errorf("%s not allowed on %s", r.Method, r.URL.Path), http.StatusMethodNotAllowed)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (a *API) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      a.Router(),
		Addr:         addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.log.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type ctxKey struct{}

// requestID tags every request with an id, taken from the client when it
// sends one.
func (a *API) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		a.log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) sendError(w http.ResponseWriter, r *http.Request, code string, err error, status int) {
	if status >= 500 {
		a.log.Error().Str("request_id", RequestID(r.Context())).Err(err).Msg(code)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error(), RequestID: RequestID(r.Context())})
}

// sendPipelineError maps coded pipeline errors to HTTP statuses.
func (a *API) sendPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var de *detection.Error
	switch {
	case errors.As(err, &de) && de.Code == detection.CodeSuperseded:
		a.sendError(w, r, string(de.Code), err, http.StatusConflict)
	case errors.As(err, &de) && de.Code == detection.CodeInvalidFrame:
		a.sendError(w, r, string(de.Code), err, http.StatusBadRequest)
	case errors.As(err, &de) && de.Code == detection.CodeDetectorUnavailable:
		a.sendError(w, r, string(de.Code), err, http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.sendError(w, r, "cancelled", err, http.StatusRequestTimeout)
	default:
		a.sendError(w, r, "processing_error", err, http.StatusInternalServerError)
	}
}

// queryFromRequest reads keyword, mode and orientation query parameters.
func queryFromRequest(r *http.Request) (pipeline.Query, imaging.Orientation, error) {
	v := r.URL.Query()
	kind, err := detection.ParseKind(v.Get("mode"))
	if err != nil {
		return pipeline.Query{}, 0, err
	}
	var o imaging.Orientation
	if s := v.Get("orientation"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || !imaging.Orientation(n).Valid() {
			return pipeline.Query{}, 0, errors.New("orientation must be an EXIF value from 1 to 8")
		}
		o = imaging.Orientation(n)
	}
	return pipeline.Query{Keyword: v.Get("keyword"), Kind: kind}, o, nil
}

func readFrame(r *http.Request, o imaging.Orientation) (pipeline.Frame, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxFrameBytes+1))
	if err != nil {
		return pipeline.Frame{}, err
	}
	if len(data) > MaxFrameBytes {
		return pipeline.Frame{}, detection.NewInvalidFrameError("image exceeds size limit")
	}
	return pipeline.FrameFromEncoded(data, o)
}
