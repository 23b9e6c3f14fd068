package api

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eventhub/eventchat/internal/slogging"
)

// wsClient binds a Connection to a gorilla websocket
type wsClient struct {
	conn    *Connection
	ws      *websocket.Conn
	session *Session
	cfg     HubConfig
}

// ReadPump reads frames in order and hands each to the session. It runs
// the disconnect sequence when the peer goes away or the connection closes.
func (c *wsClient) ReadPump(ctx context.Context) {
	defer func() {
		c.session.Disconnect(ctx)
		c.conn.Close()
	}()

	if c.cfg.ReadLimitBytes > 0 {
		c.ws.SetReadLimit(c.cfg.ReadLimitBytes)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slogging.Get().Warn("WebSocket read error on %s: %v", c.conn.ID, err)
			}
			return
		}
		if !c.conn.IsOpen() {
			return
		}
		slogging.LogWebSocketMessage(slogging.WSMessageInbound, c.conn.ID, c.conn.UserID(), "", message, c.cfg.FrameLogging)
		c.session.HandleFrame(ctx, message)
	}
}

// WritePump drains the outbound queue, one frame per websocket message,
// and keeps the peer alive with pings.
func (c *wsClient) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message := <-c.conn.Queue():
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				slogging.Get().Debug("WebSocket write failed on %s: %v", c.conn.ID, err)
				c.conn.Close()
				return
			}
			slogging.LogWebSocketMessage(slogging.WSMessageOutbound, c.conn.ID, c.conn.UserID(), "", message, c.cfg.FrameLogging)
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		case <-c.conn.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}
