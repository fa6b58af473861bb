// Package api provides the HTTP surface of the chat relay: the SSE event
// stream plus the short-lived action endpoints that drive it.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/avolent/driftchat/internal/chat"
	"github.com/avolent/driftchat/internal/config"
	"github.com/avolent/driftchat/internal/gif"
	"github.com/avolent/driftchat/internal/preview"
)

// Handler routes chat actions to the hub and the outbound collaborators.
type Handler struct {
	hub      *chat.Hub
	gifs     *gif.Client
	previews *preview.Client
	limiters *limiterPool
	cfg      *config.Config
}

// NewHandler creates a handler over the hub and the outbound collaborators.
func NewHandler(hub *chat.Hub, gifs *gif.Client, previews *preview.Client, cfg *config.Config) *Handler {
	return &Handler{
		hub:      hub,
		gifs:     gifs,
		previews: previews,
		limiters: newLimiterPool(cfg.PostRPS, cfg.PostBurst),
		cfg:      cfg,
	}
}

// RegisterRoutes mounts all chat endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.HandleEvents)
	r.Post("/chat", h.HandlePost)
	r.Post("/message/delete", h.HandleDelete)
	r.Post("/read", h.HandleRead)
	r.Post("/nickname", h.HandleNickname)
	r.Post("/heartbeat", h.HandleHeartbeat)
	r.Get("/gifs", h.HandleGifSearch)
	r.Get("/preview", h.HandlePreview)
}

type postRequest struct {
	UserID      string           `json:"userId"`
	Message     string           `json:"message"`
	MessageType string           `json:"messageType"`
	GifURL      string           `json:"gifUrl"`
	Attachment  *chat.Attachment `json:"attachment"`
	ReplyTo     *chat.ReplyRef   `json:"replyTo"`
	Encrypted   bool             `json:"encrypted"`
}

type actionRequest struct {
	UserID    string `json:"userId"`
	MessageID int64  `json:"messageId"`
	Nickname  string `json:"nickname"`
}

// HandlePost accepts a chat message. The response is always "ok"; whether a
// message event fires depends on validation inside the store.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	defer ok(w)

	var req postRequest
	if err := h.decode(w, r, &req); err != nil || req.UserID == "" {
		return
	}
	if !h.limiters.Allow(req.UserID) {
		slog.Debug("post rate limited", "user_id", req.UserID)
		return
	}

	text := req.Message
	if !req.Encrypted {
		// Ciphertext is opaque to the server and passes through untouched;
		// plain text is stripped of unsafe markup before it enters the log.
		text = chat.SanitizeText(text)
	}

	p := chat.Payload{
		Type:       messageType(&req),
		Text:       text,
		GifURL:     req.GifURL,
		Attachment: req.Attachment,
		ReplyTo:    req.ReplyTo,
		Encrypted:  req.Encrypted,
	}
	h.hub.Post(req.UserID, p)
}

// HandleDelete retracts a message for its original sender. Always "ok".
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	defer ok(w)

	var req actionRequest
	if err := h.decode(w, r, &req); err != nil || req.UserID == "" {
		return
	}
	h.hub.Delete(req.UserID, req.MessageID)
}

// HandleRead records a read acknowledgement. Always "ok".
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	defer ok(w)

	var req actionRequest
	if err := h.decode(w, r, &req); err != nil || req.UserID == "" {
		return
	}
	h.hub.Read(req.UserID, req.MessageID)
}

// HandleNickname renames a session. Always "ok".
func (h *Handler) HandleNickname(w http.ResponseWriter, r *http.Request) {
	defer ok(w)

	var req actionRequest
	if err := h.decode(w, r, &req); err != nil || req.UserID == "" {
		return
	}
	h.hub.Rename(req.UserID, req.Nickname)
}

// HandleHeartbeat refreshes the caller's activity clock. Always "ok".
func (h *Handler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	defer ok(w)

	var req actionRequest
	if err := h.decode(w, r, &req); err != nil || req.UserID == "" {
		return
	}
	h.hub.Heartbeat(req.UserID)
}

// HandleGifSearch proxies the GIF lookup collaborator.
func (h *Handler) HandleGifSearch(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.gifs.Search(r.Context(), r.URL.Query().Get("q")))
}

// HandlePreview proxies the link-preview collaborator.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.previews.Fetch(r.Context(), r.URL.Query().Get("url")))
}

// decode reads a JSON body with a size cap derived from the attachment
// ceiling. Malformed bodies are absorbed: the caller still answers "ok" and
// the action becomes a no-op.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	limit := int64(h.cfg.MaxAttachmentBytes)*2 + 64<<10
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if !errors.As(err, &maxErr) {
			slog.Debug("malformed request body", "path", r.URL.Path, "error", err)
		}
		return err
	}
	return nil
}

func messageType(req *postRequest) string {
	switch {
	case req.Attachment != nil:
		return "file"
	case req.MessageType == "gif" || (req.GifURL != "" && req.Message == ""):
		return "gif"
	default:
		return "text"
	}
}

// clientOrigin extracts the network origin used for quota accounting. The
// chi RealIP middleware has already folded X-Forwarded-For into RemoteAddr.
func clientOrigin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func ok(w http.ResponseWriter) {
	_, _ = w.Write([]byte("ok"))
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
