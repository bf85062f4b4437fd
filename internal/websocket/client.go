package websocket

import (
	"encoding/json"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Command is a message sent by the browser over the socket, e.g.
// {"type":"watch","tipId":"..."} to follow a tip's verification history.
type Command struct {
	Type  string `json:"type"`
	TipID string `json:"tipId"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	SessionID string
	UserID    string // empty for anonymous sessions

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// OnCommand handles commands read from the connection.
	OnCommand func(c *Client, cmd Command)
}

func (c *Client) log() *logrus.Entry {
	return utils.Log.WithFields(logrus.Fields{
		"sessionID": c.SessionID,
		"userID":    c.UserID,
	})
}

// ReadPump pumps commands from the websocket connection to OnCommand.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
		c.log().Debug("WebSocket ReadPump stopped")
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log().WithError(err).Warn("WebSocket read error")
			}
			break
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.log().WithError(err).Debug("Ignoring malformed websocket command")
			continue
		}
		if c.OnCommand != nil {
			c.OnCommand(c, cmd)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.log().Debug("WebSocket WritePump stopped")
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Each event is its own frame; a client parses one JSON value per message.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log().WithError(err).Warn("WebSocket write error")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log().WithError(err).Warn("WebSocket ping error")
				return
			}
		}
	}
}
