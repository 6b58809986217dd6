package websocket

import (
	"net/http"
	"time"

	"commerce-core/middleware"
	"commerce-core/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gw "github.com/gorilla/websocket"
)

type Conn = gw.Conn

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated order-status subscriptions.
type Handler struct {
	hub    *Hub
	orders *services.OrderService
}

func NewHandler(hub *Hub, orders *services.OrderService) *Handler {
	return &Handler{hub: hub, orders: orders}
}

// ServeWS subscribes the caller to one order's status feed. Only the order's
// owner (or an admin) may subscribe.
func (h *Handler) ServeWS(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	if !middleware.IsAdmin(c) {
		if _, err := h.orders.GetOrderByID(c.Request.Context(), userID, orderID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 8),
		orderID: orderID.String(),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(gw.CloseMessage, []byte{})
}

// readPump only watches for the client going away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
