package websocket

import (
	"context"
	"encoding/json"

	"commerce-core/models"
)

// OrderUpdate is the message pushed to subscribers of an order.
type OrderUpdate struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

type Client struct {
	hub     *Hub
	conn    *Conn
	send    chan []byte
	orderID string
}

// Hub fans order status updates out to websocket subscribers, keyed by order.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan OrderUpdate
	clients    map[string]map[*Client]bool

	// done is closed when Run exits so senders into the hub's channels never
	// block after shutdown.
	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan OrderUpdate),
		clients:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.orderID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.orderID] = set
			}
			set[c] = true
		case c := <-h.unregister:
			if set, ok := h.clients[c.orderID]; ok {
				if _, exists := set[c]; exists {
					delete(set, c)
					close(c.send)
				}
				if len(set) == 0 {
					delete(h.clients, c.orderID)
				}
			}
		case upd := <-h.broadcast:
			msg, _ := json.Marshal(upd)
			if set, ok := h.clients[upd.OrderID]; ok {
				for c := range set {
					select {
					case c.send <- msg:
					default:
						delete(set, c)
						close(c.send)
					}
				}
			}
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			return
		}
	}
}

// NotifyStatus satisfies the order service's notifier hook.
func (h *Hub) NotifyStatus(orderID string, status models.OrderStatus) {
	go func() {
		select {
		case h.broadcast <- OrderUpdate{OrderID: orderID, Status: status}:
		case <-h.done:
		}
	}()
}
