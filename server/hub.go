package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/logger"
)

// JobUpdateMessage is pushed to feed clients whenever a job changes status.
type JobUpdateMessage struct {
	Type      string    `json:"type"` // always "job_update"
	Job       *blog.Job `json:"job"`
	Timestamp int64     `json:"timestamp"`
}

// Hub fans job updates out to connected WebSocket clients. It implements
// pipeline.JobObserver.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = logger.Logger
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     log.Named("hub"),
	}
}

// Run processes client registration until ctx is cancelled, then closes
// every remaining client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("Hub stopping due to context cancellation")
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("Client connected", "client_id", client.id, "clients", count)
		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				client.close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("Client disconnected", "client_id", client.id, "clients", count)
		}
	}
}

// add registers a client. It reports false once the hub has stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// remove unregisters a client; a stopped hub has already closed it.
func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// JobUpdated broadcasts the job to all clients. Slow clients whose buffer is
// full miss the update.
func (h *Hub) JobUpdated(job *blog.Job) {
	msg := JobUpdateMessage{
		Type:      "job_update",
		Job:       job,
		Timestamp: time.Now().Unix(),
	}
	sent := h.broadcast(msg)
	h.logger.Debugw("Broadcast job update",
		logger.FieldJobID, job.ID,
		logger.FieldStatus, job.Status,
		"clients", sent)
}

// broadcast sends msg to every client and returns how many accepted it.
func (h *Hub) broadcast(msg interface{}) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients {
		if client.trySend(msg) {
			sent++
		}
	}
	return sent
}
