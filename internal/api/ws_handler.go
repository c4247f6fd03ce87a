package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/renderdeck/renderdeck-agent/internal/jobs"

	"github.com/go-chi/chi/v5"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The agent serves loopback clients only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// jobProgressHandler streams a job's progress updates over a websocket.
// The current persisted state is sent first, then live updates until
// the job settles or the client disconnects.
func jobProgressHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := cfg.Jobs.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		// Subscribe before the snapshot so no update can fall between.
		updates, unsubscribe := cfg.Broadcaster.Subscribe(id)
		defer unsubscribe()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "error", err, "job_id", id)
			return
		}
		defer conn.Close()

		snapshot := jobs.Update{
			JobID:    job.ID,
			Status:   job.Status,
			Phase:    job.Phase,
			Progress: job.Progress,
			Error:    job.Error,
		}
		if err := writeUpdate(conn, snapshot); err != nil {
			return
		}
		if job.Settled() {
			return
		}

		// Drain client frames so pongs and close frames are processed.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if err := writeUpdate(conn, update); err != nil {
					return
				}
				if update.Status == jobs.StatusSucceeded || update.Status == jobs.StatusFailed {
					return
				}
			case <-ping.C:
				deadline := time.Now().Add(wsWriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-clientGone:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeUpdate(conn *websocket.Conn, update jobs.Update) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(update)
}
