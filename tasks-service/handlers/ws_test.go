package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestCheckOrigin(t *testing.T) {
	allowReq := httptest.NewRequest(http.MethodGet, "/", nil)
	allowReq.Header.Set("Origin", "https://b.example")
	denyReq := httptest.NewRequest(http.MethodGet, "/", nil)
	denyReq.Header.Set("Origin", "https://c.example")

	if !checkOrigin(nil)(denyReq) {
		t.Fatalf("checkOrigin should allow when no origins are configured")
	}
	check := checkOrigin([]string{"https://a.example", "https://b.example"})
	if !check(allowReq) {
		t.Fatalf("expected allow for https://b.example")
	}
	if check(denyReq) {
		t.Fatalf("expected deny for https://c.example")
	}
}

func (h *WSHub) total() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	n := 0
	for _, conns := range h.connections {
		n += len(conns)
	}
	return n
}

func dialWS(t *testing.T, server *httptest.Server, authz string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{authz}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_OwnerReceivesEvents(t *testing.T) {
	e := setupHTTP(t)
	server := httptest.NewServer(e.mux)
	defer server.Close()

	aliceConn := dialWS(t, server, e.alice)
	dialWS(t, server, e.bob)

	// registration happens after the handshake completes
	deadline := time.Now().Add(2 * time.Second)
	for e.handler.WSHub.total() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	task := e.createTask(t, e.alice, map[string]any{"title": "live"})
	if rec := e.do(t, http.MethodDelete, "/tasks/"+task.ID, e.alice, nil); rec.Code != http.StatusOK {
		t.Fatalf("DELETE status=%d", rec.Code)
	}

	aliceConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{EventTaskCreated, EventTaskDeleted} {
		_, data, err := aliceConn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		var event struct {
			Event  string `json:"event"`
			TaskID string `json:"task_id"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.Event != want || event.TaskID != task.ID {
			t.Errorf("event = %+v, want %s for %s", event, want, task.ID)
		}
	}
}

func TestWebSocket_BobSeesNothing(t *testing.T) {
	e := setupHTTP(t)
	server := httptest.NewServer(e.mux)
	defer server.Close()

	bobConn := dialWS(t, server, e.bob)
	deadline := time.Now().Add(2 * time.Second)
	for e.handler.WSHub.total() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	e.createTask(t, e.alice, map[string]any{"title": "private"})

	bobConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := bobConn.ReadMessage(); err == nil {
		t.Fatalf("bob received %s", data)
	}
}

func TestWebSocket_RateLimited(t *testing.T) {
	e := setupHTTP(t)
	for i := 0; i < 5; i++ {
		e.handler.RateLimiter.Allow("192.0.2.1")
	}
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("Authorization", e.alice)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status=%d, want 429", rec.Code)
	}
}

func TestWebSocket_ClosedAfterTokenRevoked(t *testing.T) {
	e := setupHTTP(t)
	e.handler.WSHub.recheck = 20 * time.Millisecond
	server := httptest.NewServer(e.mux)
	defer server.Close()

	conn := dialWS(t, server, e.alice)
	deadline := time.Now().Add(2 * time.Second)
	for e.handler.WSHub.total() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// a live token survives several rechecks
	time.Sleep(100 * time.Millisecond)
	if got := e.handler.WSHub.total(); got != 1 {
		t.Fatalf("connections = %d before revocation, want 1", got)
	}

	ctx := context.Background()
	caller, err := e.tokens.Verify(ctx, strings.TrimPrefix(e.alice, "Bearer "))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := e.tokens.RevokeAll(ctx, caller.UserID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var netErr net.Error
	if err == nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		t.Fatalf("connection still open after revocation: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for e.handler.WSHub.total() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := e.handler.WSHub.total(); got != 0 {
		t.Errorf("connections = %d after revocation, want 0", got)
	}
}
