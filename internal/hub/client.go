// internal/hub/client.go
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/snapq/capture-coordinator/pkg/schema"
)

// client is one WebSocket connection to an in-page UI.
type client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan schema.Envelope
	tabID     string
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *client) enqueue(env schema.Envelope) error {
	defer func() {
		// Sending on a closed channel means the connection was replaced
		// mid-send; the retry path in the messenger handles it.
		_ = recover()
	}()
	select {
	case c.send <- env:
		return nil
	default:
		return ErrNoListener
	}
}

// readPump reads UI frames, routing acks to pending deliveries and everything
// else to the dispatcher. Runs until the connection drops.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.hub.logger.Warn("websocket read error", "err", err, "tab_id", c.tabID)
			}
			return
		}

		var env schema.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.hub.logger.Warn("malformed ui frame", "err", err, "tab_id", c.tabID)
			continue
		}

		if env.Type == schema.MsgAck {
			c.hub.handleAck(env.Seq)
			continue
		}
		c.hub.dispatcher.Dispatch(c.tabID, env)
	}
}

// writePump serialises all writes for the connection and keeps it alive with
// pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.hub.logger.Warn("websocket write error", "err", err, "tab_id", c.tabID)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
