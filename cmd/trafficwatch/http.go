package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trafficwatch/internal/database"
	"trafficwatch/internal/stream"
	"trafficwatch/internal/ws"
)

// streamSummary is one entry of the stream listing.
type streamSummary struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Status   string `json:"status"`
}

// frameResponse carries the latest frame, or a null frame with a
// message while the stream has not captured one yet.
type frameResponse struct {
	StreamID  string     `json:"stream_id"`
	Frame     *string    `json:"frame"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Message   string     `json:"message,omitempty"`
}

func newHTTPServer(addr string, logger *log.Logger, registry *stream.Registry, hub *ws.Hub, store *database.Store) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	wsHandler := ws.NewHandler(hub)
	r.Get("/ws/frames/{id}", wsHandler.ServeFrames)
	r.Get("/ws/alerts/{id}", wsHandler.ServeAlerts)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/streams", func(w http.ResponseWriter, _ *http.Request) {
			controllers := registry.All()
			out := make([]streamSummary, 0, len(controllers))
			for _, c := range controllers {
				out = append(out, streamSummary{ID: c.ID(), Location: c.Location(), Status: c.Status()})
			}
			writeJSON(w, http.StatusOK, out)
		})

		r.Get("/streams/{id}/frame", func(w http.ResponseWriter, req *http.Request) {
			c, err := registry.Get(chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			snap := c.LatestFrame()
			if snap == nil {
				writeJSON(w, http.StatusOK, frameResponse{
					StreamID: c.ID(),
					Message:  "no frame captured yet",
				})
				return
			}
			frame := base64.StdEncoding.EncodeToString(snap.Data)
			writeJSON(w, http.StatusOK, frameResponse{
				StreamID:  c.ID(),
				Frame:     &frame,
				Timestamp: &snap.CapturedAt,
			})
		})

		r.Get("/streams/{id}/detection", func(w http.ResponseWriter, req *http.Request) {
			c, err := registry.Get(chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, c.LatestDetection())
		})

		r.Get("/events/recent", func(w http.ResponseWriter, req *http.Request) {
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			events, err := store.RecentAccidents(limit)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, events)
		})
	})

	return &http.Server{
		Addr:     addr,
		Handler:  r,
		ErrorLog: logger,
	}
}

func shutdownHTTPServer(srv *http.Server, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, stream.ErrStreamNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
