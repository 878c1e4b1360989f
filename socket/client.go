package socket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"postbase/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn

	PostID       string
	SubscriberID string

	send chan []byte
}

// ServeWs upgrades the request and subscribes the connection to live
// updates for the post named by the postId query parameter. Viewers may be
// anonymous; a missing subscriberId gets a generated one.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("postId")
	if postID == "" {
		http.Error(w, "Missing postId parameter", http.StatusBadRequest)
		return
	}
	subscriberID := r.URL.Query().Get("subscriberId")
	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		hub:          hub,
		conn:         conn,
		PostID:       postID,
		SubscriberID: subscriberID,
		send:         make(chan []byte, hub.queueSize),
	}
	hub.Register <- client

	go client.writePump()
	go client.readPump()
}

// readPump only watches for the connection closing; viewers never send
// messages upstream. Its exit unregisters the client and frees its queue.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Replaced by a reconnect or unregistered by the hub.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
