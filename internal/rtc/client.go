// Package rtc is the websocket client for the media gateway. The gateway
// speaks a small JSON signaling protocol (join/publish/leave plus stream
// notifications); captured media travels as binary frames on the same
// connection.
package rtc

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/mockingbird/internal/media"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

type frame struct {
	Type     string `json:"type"`
	Session  string `json:"session,omitempty"`
	Token    string `json:"token,omitempty"`
	StreamID string `json:"stream_id,omitempty"`
	Audio    bool   `json:"audio,omitempty"`
	Video    bool   `json:"video,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Client struct {
	gatewayURL string
	dialer     *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	ackC     chan frame
	handlers media.StreamHandlers
}

func New(gatewayURL string) *Client {
	return &Client{
		gatewayURL: gatewayURL,
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// Connect dials the gateway, joins the session and waits for the joined
// acknowledgement before handing the connection to the background read
// loop.
func (c *Client) Connect(ctx context.Context, sessionID, token string, handlers media.StreamHandlers) error {
	u, err := url.Parse(c.gatewayURL)
	if err != nil {
		return fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("session", sessionID)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial media gateway: %w", err)
	}

	join := frame{Type: "join", Session: sessionID, Token: token}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send join: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var reply frame
	if err := conn.ReadJSON(&reply); err != nil {
		_ = conn.Close()
		return fmt.Errorf("read join reply: %w", err)
	}
	if reply.Type != "joined" {
		_ = conn.Close()
		if reply.Error != "" {
			return fmt.Errorf("join rejected: %s", reply.Error)
		}
		return fmt.Errorf("join rejected: unexpected reply %q", reply.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	done := make(chan struct{})
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.done = done
	c.ackC = make(chan frame, 1)
	c.handlers = handlers
	c.mu.Unlock()

	go c.readLoop(conn, done)
	return nil
}

// Publish announces the local audio/video tracks and waits for the
// gateway to acknowledge.
func (c *Client) Publish(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	ackC := c.ackC
	done := c.done
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("publish: not connected")
	}

	if err := c.writeFrame(frame{Type: "publish", Audio: true, Video: true}); err != nil {
		return fmt.Errorf("send publish: %w", err)
	}

	select {
	case ack := <-ackC:
		if ack.Type != "published" {
			return fmt.Errorf("publish rejected: %s", ack.Error)
		}
		return nil
	case <-done:
		return fmt.Errorf("publish: connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect sends a best-effort leave frame and closes the connection.
// Safe to call multiple times or before Connect.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.done = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteJSON(frame{Type: "leave"})
	return conn.Close()
}

// Write sends a captured media frame. Frames written while disconnected
// are dropped.
func (c *Client) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return len(p), nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("write media frame: %w", err)
	}
	return len(p), nil
}

func (c *Client) writeFrame(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(f)
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				log.Printf("media gateway read: %v", err)
			}
			return
		}

		c.mu.Lock()
		handlers := c.handlers
		ackC := c.ackC
		c.mu.Unlock()

		switch f.Type {
		case "published":
			select {
			case ackC <- f:
			default:
			}
		case "stream_added":
			if handlers.OnStreamAdded != nil {
				handlers.OnStreamAdded(f.StreamID)
			}
		case "stream_removed":
			if handlers.OnStreamRemoved != nil {
				handlers.OnStreamRemoved(f.StreamID)
			}
		case "error":
			log.Printf("media gateway error: %s", f.Error)
			select {
			case ackC <- f:
			default:
			}
		default:
			// Unknown signaling frames are ignored.
		}
	}
}
