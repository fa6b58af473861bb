package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avolent/driftchat/internal/chat"
)

// HandleEvents opens the long-lived server-push stream for one identity.
// The response is a sequence of "data: <json>" frames, with comment frames
// on a ticker to hold the transport open. Admission rejections answer 403
// before any stream state exists.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("id")
	if identity == "" {
		Error(w, http.StatusBadRequest, "missing id")
		return
	}
	name := r.URL.Query().Get("name")
	origin := clientOrigin(r)

	flusher, okF := w.(http.Flusher)
	if !okF {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sess, backlog, err := h.hub.Connect(identity, origin, name)
	if err != nil {
		Error(w, http.StatusForbidden, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Replay the log snapshot taken at admission; live events queued on the
	// channel strictly follow it.
	for _, ev := range backlog {
		if err := writeFrame(w, ev); err != nil {
			h.hub.Disconnect(sess)
			return
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Channel closed by the client; the grace period decides
			// whether this becomes a real departure.
			h.hub.Disconnect(sess)
			return
		case <-sess.Done():
			// A newer connect took over this identity. Nothing to tear
			// down here: continuity belongs to the replacement stream.
			slog.Debug("stream superseded", "user_id", sess.ID)
			return
		case <-keepalive.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				h.hub.Disconnect(sess)
				return
			}
			flusher.Flush()
		case ev := <-sess.Channel:
			if err := writeFrame(w, ev); err != nil {
				h.hub.Disconnect(sess)
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w io.Writer, ev chat.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
