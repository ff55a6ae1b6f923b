package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/chepyr/go-task-manager/internal/auth"
	"github.com/chepyr/go-task-manager/internal/ratelimit"
	"github.com/chepyr/go-task-manager/shared"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"

	writeWait = 5 * time.Second

	// how often an open connection re-verifies the token it was opened with
	tokenRecheck = time.Minute
)

// WSHub fans task events out to the websocket connections of the task owner.
type WSHub struct {
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
	upgrader    websocket.Upgrader
	recheck     time.Duration
}

// NewWSHub accepts upgrades from allowedOrigins only; an empty list allows all.
func NewWSHub(allowedOrigins []string) *WSHub {
	return &WSHub{
		connections: make(map[uuid.UUID]map[*websocket.Conn]bool),
		upgrader:    websocket.Upgrader{CheckOrigin: checkOrigin(allowedOrigins)},
		recheck:     tokenRecheck,
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

type taskEvent struct {
	Event  string            `json:"event"`
	TaskID uuid.UUID         `json:"task_id"`
	Task   *taskResource     `json:"task,omitempty"`
	Status models.TaskStatus `json:"status"`
}

// Broadcast sends event about task to every connection of userID. A
// connection that fails to receive it is dropped.
func (h *WSHub) Broadcast(userID uuid.UUID, event string, task *models.Task) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.connections[userID]
	if !exists {
		return
	}

	payload := taskEvent{Event: event, TaskID: task.ID, Status: task.Status}
	if event != EventTaskDeleted {
		res := newTaskResource(task)
		payload.Task = &res
	}
	message, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal task event", "event", event, "error", err)
		return
	}

	for conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			slog.Warn("websocket send failed", "user_id", userID, "error", err)
			delete(conns, conn)
			conn.Close()
		}
	}
	if len(conns) == 0 {
		delete(h.connections, userID)
	}
}

func (h *WSHub) register(userID uuid.UUID, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*websocket.Conn]bool)
	}
	h.connections[userID][conn] = true
}

func (h *WSHub) unregister(userID uuid.UUID, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, ok := h.connections[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
	}
	conn.Close()
}

// Close drops every connection, used on shutdown.
func (h *WSHub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for userID, conns := range h.connections {
		for conn := range conns {
			conn.Close()
		}
		delete(h.connections, userID)
	}
}

// HandleWebSocket subscribes the caller to events about their own tasks.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.RateLimiter.Allow(ratelimit.ClientIP(r)) {
		shared.SendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	// Upgrade writes the error response itself
	conn, err := h.WSHub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.WSHub.register(caller.UserID, conn)
	defer h.WSHub.unregister(caller.UserID, conn)

	raw, _ := auth.BearerToken(r)
	done := make(chan struct{})
	defer close(done)
	go h.watchToken(conn, caller, raw, done)

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket closed", "user_id", caller.UserID, "error", err)
			}
			return
		}
	}
}

// watchToken closes conn once raw stops verifying, so that a logout also ends
// the subscriptions opened with the revoked token. It returns when done closes.
func (h *Handler) watchToken(conn *websocket.Conn, caller models.Caller, raw string, done <-chan struct{}) {
	ticker := time.NewTicker(h.WSHub.recheck)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, err := h.Verifier.Verify(ctx, raw)
			cancel()
			if errors.Is(err, auth.ErrInvalidToken) {
				slog.Info("closing websocket of revoked token", "user_id", caller.UserID)
				closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "token revoked")
				conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
				h.WSHub.unregister(caller.UserID, conn)
				return
			}
			if err != nil {
				// keep the connection while the token store is unreachable
				slog.Warn("websocket token recheck failed", "user_id", caller.UserID, "error", err)
			}
		}
	}
}
