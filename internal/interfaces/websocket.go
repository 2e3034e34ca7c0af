package interfaces

import "marketsimulator/internal/types"

// Broadcaster pushes a message to every connected display client. Delivery is
// best-effort and must never block the caller.
type Broadcaster interface {
	Broadcast(msgType types.MessageType, data interface{})
}

// NopBroadcaster drops every message.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(types.MessageType, interface{}) {}
