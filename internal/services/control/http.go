package control

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/internal/services/telemetry"
)

// HTTPDeps are the optional handlers mounted next to the control API.
type HTTPDeps struct {
	History http.Handler // GET /stats/history
	Metrics http.Handler // GET /metrics
	Stream  http.Handler // GET /ws
	Ready   func() error // nil error means ready
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func NewHTTPMux(ctrl *Controller, deps HTTPDeps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Ready bool   `json:"ready"`
			Error string `json:"error,omitempty"`
		}
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, resp{Ready: false, Error: err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, resp{Ready: true})
	})

	// GET /stats: live snapshot
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
	})

	// GET /stats/summary?last=<n>: statistics over the refresh history
	mux.HandleFunc("/stats/summary", func(w http.ResponseWriter, r *http.Request) {
		var samples []messages.Snapshot
		if h := ctrl.History(); h != nil {
			samples = h.Samples()
		}
		if s := strings.TrimSpace(r.URL.Query().Get("last")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n < len(samples) {
				samples = samples[len(samples)-n:]
			}
		}
		writeJSON(w, http.StatusOK, telemetry.Summarize(samples))
	})

	if deps.History != nil {
		mux.Handle("/stats/history", deps.History)
	}

	mux.HandleFunc("/topology", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.Topology())
	})

	// POST /commands {"type":"add_tank_water","target":0,"value":25}
	mux.HandleFunc("/commands", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var cmd messages.Command
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
		if err := dec.Decode(&cmd); err != nil {
			writeJSON(w, http.StatusBadRequest, messages.CommandResult{Success: false, Message: "invalid JSON: " + err.Error()})
			return
		}
		res, err := ctrl.Apply(cmd)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}
	if deps.Stream != nil {
		mux.Handle("/ws", deps.Stream)
	}
	return mux
}
