// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package activity

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/metrics"
)

// Message types sent over the websocket.
const (
	MessageTypeActivity      = "activity"
	MessageTypeSyncCompleted = "sync_completed"
)

// Message is the websocket envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SyncCompletedData accompanies a sync_completed message.
type SyncCompletedData struct {
	AccountID  string         `json:"account_id"`
	Mode       string         `json:"mode"`
	Counts     map[string]int `json:"counts"`
	DurationMs int64          `json:"duration_ms"`
}

// Hub relays activity entries and ad-hoc messages to connected clients.
type Hub struct {
	log        *Log
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub streaming entries of log.
func NewHub(log *Log) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext processes registrations and broadcasts until ctx ends,
// then closes every client. Lifecycle events are drained before messages
// so a client registered before an entry is added always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	entries, unsubscribe := h.log.Subscribe(256)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.Register:
			h.add(c)
			continue
		case c := <-h.Unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.Register:
			h.add(c)
		case c := <-h.Unregister:
			h.remove(c)
		case e := <-entries:
			h.broadcastToClients(Message{Type: MessageTypeActivity, Data: e})
		case m := <-h.broadcast:
			h.broadcastToClients(m)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("activity client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("activity client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	n := h.ClientCount()
	h.mu.Lock()
	for _, c := range h.sortedClients() {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	metrics.WebSocketConnections.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "activity-hub").
		Str("reason", reason).
		Int("clients_closed", n).
		Msg("activity hub stopped")
}

// sortedClients returns clients in id order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// broadcastToClients delivers m in client id order and drops clients whose
// send buffer is full.
func (h *Hub) broadcastToClients(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stale []*Client
	for _, c := range h.sortedClients() {
		select {
		case c.send <- m:
		default:
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		close(c.send)
		delete(h.clients, c)
	}
	if len(stale) > 0 {
		metrics.WebSocketConnections.Set(float64(len(h.clients)))
	}
}

// BroadcastJSON queues a message for every client.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastSyncCompleted announces the end of a pass.
func (h *Hub) BroadcastSyncCompleted(data SyncCompletedData) {
	h.BroadcastJSON(MessageTypeSyncCompleted, data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
