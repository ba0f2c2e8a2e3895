// Package web serves the operational JSON API: ingest status, the live
// vessel table, and Prometheus metrics. The product UI consumes these
// endpoints; nothing here renders.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aiswatch/internal/ingest"
	"aiswatch/internal/track"
)

// StatusSnapshot is the /api/status document.
type StatusSnapshot struct {
	Service   string                  `json:"service"`
	NowUTC    string                  `json:"now_utc"`
	UptimeSec int64                   `json:"uptime_sec"`
	Sources   []ingest.SourceSnapshot `json:"sources"`
	Stats     ingest.Stats            `json:"stats"`
}

// Handler builds the API mux. metrics may be nil to disable /metrics.
func Handler(manager *ingest.Manager, store *track.Store, metrics http.Handler) http.Handler {
	start := time.Now().UTC()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		now := time.Now().UTC()
		writeJSON(w, StatusSnapshot{
			Service:   "aiswatch",
			NowUTC:    now.Format(time.RFC3339Nano),
			UptimeSec: int64(now.Sub(start).Seconds()),
			Sources:   manager.Sources(),
			Stats:     manager.Stats(),
		})
	})

	mux.HandleFunc("/api/vessels", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		vessels := store.Snapshot(time.Now().UTC())
		if vessels == nil {
			vessels = []track.Vessel{}
		}
		writeJSON(w, vessels)
	})

	mux.HandleFunc("/api/stats/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		manager.ResetStats()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"ok\":true}\n"))
	})

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// Serve runs the API server until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
