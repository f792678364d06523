package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// healthState is the outcome of the most recent build, served on /health.
type healthState struct {
	mu      sync.RWMutex
	built   bool
	builds  int
	designs map[string]designHealth
	at      time.Time
}

type designHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthReport struct {
	Status  string                  `json:"status"`
	BuiltAt *time.Time              `json:"built_at,omitempty"`
	Designs map[string]designHealth `json:"designs"`
}

func newHealthState() *healthState {
	return &healthState{designs: make(map[string]designHealth)}
}

func (h *healthState) record(results []BuildResult) {
	designs := make(map[string]designHealth, len(results))
	for _, r := range results {
		dh := designHealth{Status: r.Status.String()}
		if r.Err != nil {
			dh.Error = r.Err.Error()
		}
		designs[r.Design] = dh
	}
	h.mu.Lock()
	h.built = true
	h.builds++
	h.designs = designs
	h.at = time.Now().UTC()
	h.mu.Unlock()
}

func (h *healthState) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.builds
}

func (h *healthState) report() (healthReport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rep := healthReport{Status: "pending", Designs: h.designs}
	if !h.built {
		return rep, true
	}
	at := h.at
	rep.BuiltAt = &at
	rep.Status = "ok"
	for _, d := range h.designs {
		if d.Error != "" {
			rep.Status = "failing"
			return rep, false
		}
	}
	return rep, true
}

// healthHandler reports the last build. Any failing design turns the
// response into 503.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	rep, ok := a.health.report()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		a.logger.Debug("Failed to write health report.", "error", err)
	}
}

// startHealthcheckServer starts the health check server on port and returns
// a function that shuts it down. Port 0 disables the server.
func (a *App) startHealthcheckServer(ctx context.Context, port int) (func() error, error) {
	if port <= 0 {
		a.logger.Debug("Health check server disabled.")
		return func() error { return nil }, nil
	}
	a.logger.Debug("Configuring health check server.")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("health check server: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		// Serve returns ErrServerClosed on graceful shutdown.
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()

	return func() error {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		a.logger.Info("🩺 Shutting down health check server...")
		err := srv.Shutdown(shutdownCtx)
		<-done
		return err
	}, nil
}
