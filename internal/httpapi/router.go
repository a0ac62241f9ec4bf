package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/tonebridge/internal/codec"
	"github.com/lukasbauer/tonebridge/internal/metrics"
	"github.com/lukasbauer/tonebridge/internal/relay"
)

type RouterConfig struct {
	Tools          codec.Tools
	MaxUploadBytes int64 // multipart uploads and JSON bodies

	// Duplex sessions
	Relay relay.Config
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	batch    *codec.BatchGateway
	stream   *codec.StreamingGateway
	sessions *relay.Registry
	metrics  *metrics.Metrics
	mux      *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, batch *codec.BatchGateway, stream *codec.StreamingGateway, sessions *relay.Registry, m *metrics.Metrics) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	r := &Router{
		cfg:      cfg,
		logger:   logger,
		batch:    batch,
		stream:   stream,
		sessions: sessions,
		metrics:  m,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	r.mux.HandleFunc("GET /health", r.instrument("health", r.handleHealth))

	// One-shot conversions
	r.mux.HandleFunc("POST /encode", r.instrument("encode", r.handleEncode))
	r.mux.HandleFunc("POST /decode", r.instrument("decode", r.handleDecode))
	r.mux.HandleFunc("POST /decode-webm", r.instrument("decode-webm", r.handleDecodeWebm))

	// Duplex relay (hijacked, not instrumented)
	r.mux.HandleFunc("GET /ws/cli", r.handleRelayWS)

	r.mux.Handle("GET /metrics", r.metrics.Handler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, req)
		r.metrics.HTTPRequest(route, rec.status)
	}
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
