package stream

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans member location updates out to websocket clients watching a
// tour. With Redis configured, updates also cross instance boundaries
// via pubsub.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	TourID string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(tourID string) *Client {
	client := &Client{
		TourID: tourID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[tourID] == nil {
		h.clients[tourID] = map[*Client]struct{}{}
	}
	h.clients[tourID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tourClients, ok := h.clients[client.TourID]; ok {
		delete(tourClients, client)
		if len(tourClients) == 0 {
			delete(h.clients, client.TourID)
		}
	}
	close(client.Send)
}

func (h *Hub) Broadcast(tourID string, payload []byte) {
	h.deliver(tourID, payload)

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(tourID), payload).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) deliver(tourID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[tourID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "tour:*:locations")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliver(tourIDFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

func redisChannel(tourID string) string {
	return "tour:" + tourID + ":locations"
}

func tourIDFromChannel(ch string) string {
	// tour:{id}:locations
	const prefix = "tour:"
	const suffix = ":locations"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
