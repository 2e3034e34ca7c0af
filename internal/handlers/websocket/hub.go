package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"marketsimulator/internal/types"
)

const broadcastBuffer = 64

// directMessage is addressed to a single client.
type directMessage struct {
	client *Client
	data   []byte
}

// Hub maintains the display clients and fans day-cycle messages out to them.
// Clients never send commands; the hub only pushes. Only Run writes to or
// closes a client's Send channel.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		direct:     make(chan directMessage, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s connected. Total clients: %d", client.ID, total)

			statusMsg := types.WebSocketMessage{
				Type: types.ConnectionStatus,
				Data: types.ConnectionStatusData{
					Status:    "connected",
					ClientID:  client.ID,
					Message:   "Subscribed to day updates",
					Timestamp: time.Now().UnixMilli(),
				},
			}
			if data, err := json.Marshal(statusMsg); err == nil {
				h.deliver(client, data)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("Client %s disconnected. Total clients: %d", client.ID, len(h.clients))
			}
			h.mutex.Unlock()

		case message := <-h.direct:
			h.deliver(message.client, message.data)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				h.deliverLocked(client, message)
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.clients[client] {
		h.deliverLocked(client, data)
	}
}

// deliverLocked drops a client whose send buffer is full.
func (h *Hub) deliverLocked(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		close(client.Send)
		delete(h.clients, client)
		log.Printf("Client %s too slow, dropped", client.ID)
	}
}

// Broadcast queues a message for every connected client. It never blocks: when
// the queue is full the message is dropped.
func (h *Hub) Broadcast(msgType types.MessageType, data interface{}) {
	message := types.WebSocketMessage{
		Type: msgType,
		Data: data,
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	select {
	case h.broadcast <- jsonData:
	default:
		log.Printf("Broadcast queue full, dropping %s message", msgType)
	}
}

// sendTo queues data for one client. Messages for clients that are gone, or
// sent after the hub stopped, are dropped.
func (h *Hub) sendTo(client *Client, data []byte) {
	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-h.done:
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RegisterClient registers a new client. After the hub stops the client is
// closed immediately.
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// UnregisterClient unregisters a client
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
