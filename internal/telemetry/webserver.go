package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rjboer/gohackrf/internal/logging"
)

// WebServer exposes telemetry history and live updates over HTTP.
type WebServer struct {
	srv    *http.Server
	hub    *Hub
	logger logging.Logger
}

// NewWebServer builds an HTTP server serving the history, live, summary and
// config endpoints.
func NewWebServer(addr string, hub *Hub, logger logging.Logger) *WebServer {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebServer{
		hub:    hub,
		logger: logger.With(logging.Subsystem("telemetry")),
		srv:    &http.Server{Addr: addr, Handler: NewHandler(hub)},
	}
}

// NewHandler returns the telemetry API routes.
func NewHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/history", hub.handleHistory)
	mux.HandleFunc("/api/live", hub.handleLive)
	mux.HandleFunc("/api/summary", hub.handleSummary)
	mux.HandleFunc("/api/config", hub.handleGetConfig)
	mux.HandleFunc("/api/config/update", hub.handleSetConfig)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "hackrf telemetry: /api/history /api/live /api/summary /api/config /api/config/update")
	})
	return mux
}

// Listen binds the server address so the caller learns the actual port
// before Serve runs.
func (w *WebServer) Listen() (net.Listener, error) {
	return net.Listen("tcp", w.srv.Addr)
}

// Serve handles requests on ln and shuts down when the context is canceled.
func (w *WebServer) Serve(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := w.srv.Shutdown(shutdownCtx); err != nil {
			w.logger.Warn("web telemetry shutdown", logging.Err(err))
		}
	}()

	w.logger.Info("web telemetry listening", logging.Field{Key: "addr", Value: ln.Addr().String()})
	if err := w.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		w.logger.Error("web telemetry server error", logging.Err(err))
	}
}
