package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Message is one server-sent event pushed to a session's listeners.
type Message struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Message types.
const (
	MessageConnected    = "connected"
	MessageHeartbeat    = "heartbeat"
	MessageCategories   = "categories"
	MessageSearch       = "search"
	MessageNotification = "notification"
	MessageSyncStatus   = "sync"
)

// MessageSource hands out per-user message streams.
type MessageSource interface {
	// Listen returns a channel of messages for userID and a cancel func that
	// must be called to release it. The channel is closed when the source
	// ends the stream.
	Listen(ctx context.Context, userID string) (<-chan Message, func(), error)
}

// Authenticator resolves the user behind a stream request.
type Authenticator func(r *http.Request) (userID string, err error)

// StreamHandler serves GET /api/v1/stream.
type StreamHandler struct {
	source    MessageSource
	auth      Authenticator
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a handler. A non-positive heartbeat defaults to 30s.
func NewStreamHandler(source MessageSource, auth Authenticator, logger *slog.Logger, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{source: source, auth: auth, logger: logger, heartbeat: heartbeat}
}

// ServeHTTP streams the caller's session messages until they disconnect.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := h.auth(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"UNAUTHORIZED","message":"authentication required"}`))
		return
	}

	ctx := r.Context()
	messages, cancel, err := h.source.Listen(ctx, userID)
	if err != nil {
		h.logger.Error("failed to open message stream",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		http.Error(w, "Failed to establish stream", http.StatusInternalServerError)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("streaming not supported", slog.String("error", err.Error()))
		return
	}

	log := h.logger.With(slog.String("user_id", userID))
	if err := h.send(w, rc, Message{Type: MessageConnected, At: time.Now()}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				log.Info("stream closed by session")
				return
			}
			if err := h.send(w, rc, msg); err != nil {
				log.Info("client disconnected during send")
				return
			}
		case <-ticker.C:
			if err := h.send(w, rc, Message{Type: MessageHeartbeat, At: time.Now()}); err != nil {
				log.Info("client disconnected during heartbeat")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *StreamHandler) send(w http.ResponseWriter, rc *http.ResponseController, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(2 * h.heartbeat)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}
