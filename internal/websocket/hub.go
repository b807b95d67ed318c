package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to a user's sockets after a committed balance change.
type BalanceUpdate struct {
	AccountID     string `json:"accountId"`
	AccountName   string `json:"accountName"`
	Balance       string `json:"balance"`
	TransactionID string `json:"transactionId,omitempty"`
}

const EventBalanceUpdate = "balance_update"

// Event is the frame written to sockets. Data holds the event payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans events out to every socket a user holds. Sends never block: a
// client whose buffer is full misses the event and picks up the latest
// balance on the next one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Connected reports how many sockets the user currently holds.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	h.publish(userID, Event{Type: EventBalanceUpdate, Data: update})
}

func (h *Hub) publish(userID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
