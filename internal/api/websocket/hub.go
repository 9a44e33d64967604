// Package websocket implements the anomaly fan-out: a hub broadcasting
// every newly created anomaly to all attached subscribers.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelhq/sentinel-backend/internal/models"
	"github.com/sentinelhq/sentinel-backend/internal/pkg/metrics"
)

// Message is the envelope sent to subscribers.
type Message struct {
	Type      string                `json:"type"`
	Anomaly   models.AnomalyPayload `json:"anomaly"`
	Timestamp time.Time             `json:"timestamp"`
}

// MessageTypeAnomalyDetected is the single channel name published by the
// ingestion pipeline and the analysis scheduler.
const MessageTypeAnomalyDetected = "anomaly_detected"

// Hub maintains active WebSocket connections and broadcasts anomalies.
// Publishing never blocks: the broadcast channel is buffered, and a
// subscriber that cannot keep up is dropped rather than stalling the hub.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound anomaly messages
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(ctx context.Context, log *slog.Logger) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ctx:        hubCtx,
		cancel:     cancel,
		log:        log,
	}
}

// Run starts the hub loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebSocketConnectionsActive.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketConnectionsActive.Dec()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full, drop the connection
					close(client.send)
					delete(h.clients, client)
					metrics.WebSocketConnectionsActive.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop stops the hub and closes all client connections.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketConnectionsActive.Dec()
	}
}

// PublishAnomaly broadcasts one anomaly payload to every subscriber in
// publish order. It never blocks the caller: when the hub is saturated or
// stopped the message is dropped with a log line.
func (h *Hub) PublishAnomaly(payload models.AnomalyPayload) {
	msg := Message{
		Type:      MessageTypeAnomalyDetected,
		Anomaly:   payload,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode anomaly message", "anomaly_id", payload.ID, "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
		h.log.Warn("hub stopped, dropping anomaly message", "anomaly_id", payload.ID)
	default:
		h.log.Warn("hub broadcast buffer full, dropping anomaly message", "anomaly_id", payload.ID)
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
