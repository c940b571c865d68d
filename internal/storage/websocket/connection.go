package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/WCArena/pudscan/pkg/streaming"
)

const (
	outboxSize   = 1_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

var errClosed = errors.New("connection closed")

// acks tracks messages waiting for a server ack, keyed by type and id.
type acks struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func ackKey(msgType, id string) string {
	return msgType + "/" + id
}

func (a *acks) expect(msgType, id string) <-chan struct{} {
	ch := make(chan struct{})
	a.mu.Lock()
	a.waiters[ackKey(msgType, id)] = ch
	a.mu.Unlock()
	return ch
}

func (a *acks) forget(msgType, id string) {
	a.mu.Lock()
	delete(a.waiters, ackKey(msgType, id))
	a.mu.Unlock()
}

// resolve releases the waiter for msgType/id and reports whether one existed.
func (a *acks) resolve(msgType, id string) bool {
	key := ackKey(msgType, id)
	a.mu.Lock()
	ch, ok := a.waiters[key]
	delete(a.waiters, key)
	a.mu.Unlock()
	if ok {
		close(ch)
	}
	return ok
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

// connection owns one live socket at a time. A single writer goroutine drains
// the outbox; a reader goroutine resolves acks. Either one failing triggers
// a reconnect.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	closed bool

	outbox chan []byte
	done   chan struct{}
	acks   acks

	target  string // dial URL including the secret
	backoff time.Duration
	logger  *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		outbox:  make(chan []byte, outboxSize),
		done:    make(chan struct{}),
		acks:    acks{waiters: make(map[string]chan struct{})},
		backoff: time.Second,
		logger:  logger,
	}
}

func dialTarget(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *connection) dial(rawURL, secret string) error {
	target, err := dialTarget(rawURL, secret)
	if err != nil {
		return err
	}
	c.target = target

	conn, _, err := ws.DefaultDialer.Dial(c.target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.attach(conn)
	return nil
}

// attach installs conn as the live socket and starts its loops. It reports
// false if the connection was closed meanwhile.
func (c *connection) attach(conn *ws.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)
	return true
}

func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbox:
			err := conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err == nil {
				err = conn.WriteMessage(ws.TextMessage, data)
			}
			if err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("WebSocket read error", "error", err)
				go c.reconnect(conn)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(raw, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("Ignoring non-ack message", "raw", string(raw))
			continue
		}
		if !c.acks.resolve(ack.For, ack.ID) {
			c.logger.Debug("Unexpected ack", "for", ack.For, "id", ack.ID)
		}
	}
}

// reconnect replaces failed with a fresh socket, backing off exponentially.
// Only the first caller for a given socket does the work.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = failed.Close()
	c.conn = nil
	wait := c.backoff
	c.mu.Unlock()

	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", wait)
		select {
		case <-c.done:
			return
		case <-time.After(wait):
		}

		conn, _, err := ws.DefaultDialer.Dial(c.target, nil)
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			wait = nextBackoff(wait)
			continue
		}
		if c.attach(conn) {
			c.logger.Info("WebSocket reconnected", "attempt", attempt)
		}
		return
	}
	c.logger.Error("Giving up on WebSocket reconnect", "attempts", maxReconnect)
}

// send queues data for the writer. When the outbox is full the message is
// dropped.
func (c *connection) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
		c.logger.Warn("WebSocket outbox full, dropping message")
	}
}

// sendAndWait queues data and waits for the ack of msgType/id.
func (c *connection) sendAndWait(data []byte, msgType, id string, timeout time.Duration) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errClosed
	}

	acked := c.acks.expect(msgType, id)
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-acked:
		return nil
	case <-timer.C:
		c.acks.forget(msgType, id)
		return fmt.Errorf("timeout waiting for ack of %s %q", msgType, id)
	case <-c.done:
		return fmt.Errorf("%w while waiting for ack of %s %q", errClosed, msgType, id)
	}
}

// close sends a close frame and stops every goroutine. It is idempotent.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return conn.Close()
}
