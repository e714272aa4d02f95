package httpapi

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/clio/internal/eventlog"
	"github.com/lukasbauer/clio/internal/llm"
	"github.com/shirou/gopsutil/v3/process"
)

type RouterConfig struct {
	// Greeting sent in the connected frame after a successful handshake.
	GreetingText string

	// Conversation window size per session.
	MaxTurns int
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	llm      llm.Client
	eventLog *eventlog.Logger
	sessions *SessionTable
	started  time.Time
	mux      *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, client llm.Client, eventLog *eventlog.Logger, sessions *SessionTable) http.Handler {
	r := &Router{
		cfg:      cfg,
		logger:   logger,
		llm:      client,
		eventLog: eventLog,
		sessions: sessions,
		started:  time.Now(),
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Duplex conversation channel
	r.mux.HandleFunc("GET /ws", r.handleChatWS)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	stats := map[string]any{
		"status":     "ok",
		"sessions":   r.sessions.Len(),
		"goroutines": runtime.NumGoroutine(),
		"uptime_s":   int(time.Since(r.started).Seconds()),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			stats["mem_rss_mb"] = mi.RSS / (1 << 20)
		}
		if cp, err := proc.CPUPercent(); err == nil {
			stats["cpu_percent"] = math.Round(cp*10) / 10
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
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
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
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
