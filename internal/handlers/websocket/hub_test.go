package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketsimulator/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, ch <-chan []byte) types.WebSocketMessage {
	t.Helper()
	select {
	case raw, ok := <-ch:
		require.True(t, ok, "send channel closed")
		var msg types.WebSocketMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	return types.WebSocketMessage{}
}

func TestHubGreetsAndBroadcasts(t *testing.T) {
	hub := startHub(t)
	a := &Client{Send: make(chan []byte, 8), ID: "a"}
	b := &Client{Send: make(chan []byte, 8), ID: "b"}
	hub.RegisterClient(a)
	hub.RegisterClient(b)

	hello := receive(t, a.Send)
	assert.Equal(t, types.ConnectionStatus, hello.Type)
	assert.Equal(t, "a", hello.Data.(map[string]interface{})["clientId"])
	receive(t, b.Send)
	assert.Equal(t, 2, hub.GetClientCount())

	hub.Broadcast(types.DayChanged, types.DayChangedData{PreviousDay: 1, CurrentDay: 2, TotalDays: 5})

	for _, c := range []*Client{a, b} {
		msg := receive(t, c.Send)
		assert.Equal(t, types.DayChanged, msg.Type)
		assert.Equal(t, 2.0, msg.Data.(map[string]interface{})["currentDay"])
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := startHub(t)
	c := &Client{Send: make(chan []byte, 8), ID: "c"}
	hub.RegisterClient(c)
	receive(t, c.Send)

	hub.UnregisterClient(c)
	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.GetClientCount())
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := &Client{Send: make(chan []byte, 1), ID: "slow"}
	hub.RegisterClient(slow)

	// the greeting fills the buffer
	require.Eventually(t, func() bool { return len(slow.Send) == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast(types.SchedulerStatus, types.SchedulerStatusData{Enabled: true})

	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Broadcast(types.SimulationStatus, types.SimulationStatusData{CurrentDay: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
}

func TestRegisterAfterShutdownClosesClient(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	c := &Client{Send: make(chan []byte, 1), ID: "late"}
	hub.RegisterClient(c)
	_, ok := <-c.Send
	assert.False(t, ok)
	hub.UnregisterClient(c)
}

func TestSendErrorAfterDisconnectIsDropped(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := &Client{Send: make(chan []byte, 4), Hub: hub, ID: "gone"}
	hub.RegisterClient(c)
	receive(t, c.Send)

	c.SendError("Read-only feed", "clients cannot send commands")
	msg := receive(t, c.Send)
	assert.Equal(t, types.Error, msg.Type)

	hub.UnregisterClient(c)
	c.SendError("late", "after unregister")
	cancel()
	<-stopped
	c.SendError("later", "after shutdown")

	_, ok := <-c.Send
	assert.False(t, ok, "nothing is delivered once the hub closed the client")
}

func TestWebSocketEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	handler := NewWebSocketHandler(hub)

	r := gin.New()
	r.GET("/ws", handler.HandleWebSocket)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello types.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, types.ConnectionStatus, hello.Type)

	hub.Broadcast(types.DayChanged, types.DayChangedData{PreviousDay: 0, CurrentDay: 1, TotalDays: 15, Trigger: "manual"})

	var msg types.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, types.DayChanged, msg.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"advance"}`)))
	var reply types.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, types.Error, reply.Type)
}
