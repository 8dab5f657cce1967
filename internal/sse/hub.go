package sse

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
)

type SSEEvent string

const (
	SSEEventGroupingProgress SSEEvent = "GroupingProgress"
	SSEEventImportProgress   SSEEvent = "ImportProgress"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEClient struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
}

func (c *SSEClient) Close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *SSEClient) Done() <-chan struct{} { return c.done }

type SSEHub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		logger:        log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
	}
}

func (hub *SSEHub) NewSSEClient(channels ...string) *SSEClient {
	client := &SSEClient{
		ID:       uuid.New(),
		Channels: map[string]bool{},
		Outbound: make(chan SSEMessage, 64),
		done:     make(chan struct{}),
	}
	hub.mu.Lock()
	for _, ch := range channels {
		client.Channels[ch] = true
		if hub.subscriptions[ch] == nil {
			hub.subscriptions[ch] = map[*SSEClient]bool{}
		}
		hub.subscriptions[ch][client] = true
	}
	hub.mu.Unlock()
	return client
}

func (hub *SSEHub) Remove(client *SSEClient) {
	hub.mu.Lock()
	for ch := range client.Channels {
		delete(hub.subscriptions[ch], client)
		if len(hub.subscriptions[ch]) == 0 {
			delete(hub.subscriptions, ch)
		}
	}
	hub.mu.Unlock()
	client.Close()
}

// Broadcast fans a message out to every subscriber of its channel. Slow
// clients are skipped rather than blocked on.
func (hub *SSEHub) Broadcast(msg SSEMessage) {
	hub.mu.RLock()
	clients := make([]*SSEClient, 0, len(hub.subscriptions[msg.Channel]))
	for c := range hub.subscriptions[msg.Channel] {
		clients = append(clients, c)
	}
	hub.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			hub.logger.Warn("dropping SSE message for slow client", "client_id", c.ID.String(), "channel", msg.Channel)
		}
	}
}
