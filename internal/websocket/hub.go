package websocket

import (
	"encoding/json"
	"sync"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/sirupsen/logrus"
)

const pushBuffer = 256

// FeedEvent is pushed whenever a session's visible feed changes.
type FeedEvent struct {
	Type  string        `json:"type"` // always "feed"
	Tips  []*models.Tip `json:"tips"`
	Error string        `json:"error,omitempty"`
}

// HistoryEvent is pushed whenever a watched tip's verification history changes.
type HistoryEvent struct {
	Type    string                       `json:"type"` // always "history"
	TipID   string                       `json:"tipId"`
	Records []*models.VerificationRecord `json:"records"`
	Error   string                       `json:"error,omitempty"`
}

// messageToSend is a payload addressed to every connection of one session.
type messageToSend struct {
	sessionID string
	payload   []byte
}

// Hub maintains the set of active clients, keyed by session, and pushes
// session state changes to them. It implements actors.SessionListener.
type Hub struct {
	// Registered clients. Maps session ID to a set of active client connections.
	Clients map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	push       chan *messageToSend

	// OnSessionClosed runs when the last connection of a session goes away.
	OnSessionClosed func(sessionID string)

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		push:       make(chan *messageToSend, pushBuffer),
	}
}

// Run starts the hub's processing loop. It returns when done is closed.
func (h *Hub) Run(done <-chan struct{}) {
	utils.Log.Info("WebSocket hub started")
	for {
		select {
		case <-done:
			utils.Log.Info("WebSocket hub stopped")
			return

		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Clients[client.SessionID]; !ok {
				h.Clients[client.SessionID] = make(map[*Client]bool)
			}
			h.Clients[client.SessionID][client] = true
			count := len(h.Clients[client.SessionID])
			h.mu.Unlock()
			client.log().WithField("connections", count).Debug("WebSocket client registered")

		case client := <-h.Unregister:
			h.unregister(client)

		case msg := <-h.push:
			h.mu.RLock()
			for client := range h.Clients[msg.sessionID] {
				select {
				case client.Send <- msg.payload:
				default:
					client.log().Warn("Send buffer full, dropping push")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	sessionClients, ok := h.Clients[client.SessionID]
	if !ok || !sessionClients[client] {
		h.mu.Unlock()
		return
	}
	delete(sessionClients, client)
	close(client.Send)
	empty := len(sessionClients) == 0
	if empty {
		delete(h.Clients, client.SessionID)
	}
	h.mu.Unlock()

	client.log().Debug("WebSocket client unregistered")
	if empty && h.OnSessionClosed != nil {
		h.OnSessionClosed(client.SessionID)
	}
}

// ConnectionCount returns the number of open connections for a session.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[sessionID])
}

// FeedChanged queues the session's new visible feed for its connections.
func (h *Hub) FeedChanged(sessionID string, tips []*models.Tip, err error) {
	if h.ConnectionCount(sessionID) == 0 {
		return
	}
	event := FeedEvent{Type: "feed", Tips: tips}
	if event.Tips == nil {
		event.Tips = []*models.Tip{}
	}
	if err != nil {
		event.Error = err.Error()
	}
	h.send(sessionID, event)
}

// HistoryChanged queues a watched tip's verification history for the session.
func (h *Hub) HistoryChanged(sessionID, tipID string, records []*models.VerificationRecord, err error) {
	if h.ConnectionCount(sessionID) == 0 {
		return
	}
	event := HistoryEvent{Type: "history", TipID: tipID, Records: records}
	if event.Records == nil {
		event.Records = []*models.VerificationRecord{}
	}
	if err != nil {
		event.Error = err.Error()
	}
	h.send(sessionID, event)
}

// send never blocks: it is called from actor goroutines.
func (h *Hub) send(sessionID string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		utils.Log.WithError(err).Error("Failed to encode websocket event")
		return
	}
	select {
	case h.push <- &messageToSend{sessionID: sessionID, payload: payload}:
	default:
		utils.Log.WithFields(logrus.Fields{
			"sessionID": sessionID,
		}).Warn("Hub push queue full, dropping event")
	}
}
