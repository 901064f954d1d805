package stream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil))

	req := httptest.NewRequest(http.MethodGet, "/stream/ws/tour-1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 for non-websocket request")
	}
}

func dialStream(t *testing.T, hub *Hub, path string) (*websocket.Conn, func()) {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}

	go func() {
		_ = app.Listener(ln)
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+path, nil)
	if err != nil {
		ln.Close()
		t.Fatalf("dial error: %v", err)
	}
	return conn, func() {
		conn.Close()
		_ = app.Shutdown()
		ln.Close()
	}
}

func TestStreamHandlersWebsocketBroadcast(t *testing.T) {
	hub := NewHub(nil)
	conn, cleanup := dialStream(t, hub, "/stream/ws/tour-1")
	defer cleanup()

	hub.Broadcast("tour-1", []byte("hello"))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != "hello" {
		t.Fatalf("unexpected message")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("client")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	conn.Close()
	hub.Broadcast("tour-1", []byte("bye"))
	_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
}

func TestStreamHandlersDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	conn, cleanup := dialStream(t, hub, "/stream/ws/tour-4")
	defer cleanup()

	if !waitForClients(hub, "tour-4", 1) {
		t.Fatalf("client never registered")
	}

	conn.Close()

	// the registration must drop without waiting for a broadcast
	if !waitForClients(hub, "tour-4", 0) {
		t.Fatalf("client stayed registered after disconnect")
	}
}

func waitForClients(hub *Hub, tourID string, want int) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients[tourID])
		hub.mu.RUnlock()
		if n == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestStreamHandlersWebsocketWriteError(t *testing.T) {
	hub := NewHub(nil)
	conn, cleanup := dialStream(t, hub, "/stream/ws/tour-2")
	defer cleanup()
	conn.Close()

	hub.Broadcast("tour-2", []byte("ping"))
	time.Sleep(20 * time.Millisecond)
}

func TestStreamHandlersWebsocketCloseMessage(t *testing.T) {
	hub := NewHub(nil)
	conn, cleanup := dialStream(t, hub, "/stream/ws/tour-3")
	defer cleanup()

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	hub.Broadcast("tour-3", []byte("ping"))
	time.Sleep(20 * time.Millisecond)
}
