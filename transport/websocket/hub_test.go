package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
)

func newTestClient(hub *Hub, sessionID string, buffer int) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, buffer),
	}
}

// waitFor polls cond until it holds or a second passes
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if cap(hub.broadcast) != broadcastBuffer {
		t.Errorf("expected broadcast buffer %d, got %d", broadcastBuffer, cap(hub.broadcast))
	}
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	sessionID := "multi-client-session"

	client1 := newTestClient(hub, sessionID, 1)
	client2 := newTestClient(hub, sessionID, 1)
	hub.registerClient(client1)
	hub.registerClient(client2)

	if got := hub.ClientCount(sessionID); got != 2 {
		t.Errorf("Expected 2 clients in session, got %d", got)
	}

	hub.unregisterClient(client1)
	if got := hub.ClientCount(sessionID); got != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", got)
	}
	if _, ok := <-client1.send; ok {
		t.Error("unregistered client's channel should be closed")
	}

	// a second unregister is a no-op
	hub.unregisterClient(client1)

	hub.unregisterClient(client2)
	if _, exists := hub.sessions[sessionID]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
}

func TestHubBroadcastMessage(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "ab12", 4)
	other := newTestClient(hub, "cd34", 4)
	hub.registerClient(client)
	hub.registerClient(other)

	readout := &locomotive.Readout{
		Name:    "Class 37",
		ForceN:  120000,
		Engines: []diesel.Readout{{State: diesel.Running, RPM: 750}},
	}
	hub.broadcastMessage(&Message{SessionID: "ab12", Event: EventStateUpdate, Readout: readout})

	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.Event != EventStateUpdate {
			t.Errorf("Expected event %s, got %s", EventStateUpdate, message.Event)
		}
		if message.Readout.ForceN != 120000 || message.Readout.Engines[0].State != diesel.Running {
			t.Errorf("readout not correctly transmitted: %+v", message.Readout)
		}
	default:
		t.Fatal("No message queued for client")
	}

	if len(other.send) != 0 {
		t.Error("other sessions should not receive the broadcast")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := newTestClient(hub, "ab12", 1)
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "ab12", Event: "one"})
	hub.broadcastMessage(&Message{SessionID: "ab12", Event: "two"})

	if got := hub.ClientCount("ab12"); got != 0 {
		t.Errorf("slow client should be dropped, %d remain", got)
	}
}

func TestHubBroadcastEventQueues(t *testing.T) {
	hub := NewHub()
	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" || message.Event != "custom-event" || message.Data != "test-data" {
			t.Errorf("unexpected message %+v", message)
		}
	default:
		t.Fatal("No broadcast message queued")
	}
}

func TestHubPublishAfterShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.BroadcastEvent("x", "late", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing after shutdown should not block")
	}
}

func startTestServer(t *testing.T, hub *Hub) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketLifecycle(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn, _, err := websocket.DefaultDialer.Dial(startTestServer(t, hub)+"?session=ws01", nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}

	waitFor(t, func() bool { return hub.ClientCount("ws01") == 1 }, "client was not registered")

	hub.BroadcastToSession("ws01", &locomotive.Readout{Name: "Class 37", FuelLevelL: 4000})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.SessionID != "ws01" || message.Readout == nil || message.Readout.FuelLevelL != 4000 {
		t.Errorf("unexpected message %+v", message)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount("ws01") == 0 }, "client was not unregistered")
}

func TestWebSocketClosedOnShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conn, _, err := websocket.DefaultDialer.Dial(startTestServer(t, hub)+"?session=ws02", nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.ClientCount("ws02") == 1 }, "client was not registered")

	cancel()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to close on hub shutdown")
	}
}
