// ABOUTME: WebSocket client for the bridge
// ABOUTME: Correlates responses to calls by id and surfaces beat events on a channel
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by calls on a closed client
var ErrClosed = errors.New("bridge connection closed")

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// envelope is any message the bridge sends
type envelope struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Client is a connection to a bridge
type Client struct {
	conn  *websocket.Conn
	hello Hello

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan envelope
	closed  bool

	beats chan BeatEvent
	done  chan struct{}
}

// Dial connects to the bridge at addr (host:port) and waits for its hello
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	var first envelope
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading hello: %w", err)
	}
	if first.Event != EventHello {
		conn.Close()
		return nil, fmt.Errorf("expected %s event, got %q", EventHello, first.Event)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan envelope),
		beats:   make(chan BeatEvent, 32),
		done:    make(chan struct{}),
	}
	if err := json.Unmarshal(first.Data, &c.hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decoding hello: %w", err)
	}

	go c.readLoop()
	return c, nil
}

// Hello returns what the bridge announced on connect
func (c *Client) Hello() Hello {
	return c.hello
}

// Beats delivers beat events; slow readers miss beats
func (c *Client) Beats() <-chan BeatEvent {
	return c.beats
}

// Call invokes method and decodes its result into result, which may be nil.
// A failure reported by the bridge is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	reply := make(chan envelope, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := map[string]any{"id": id, "method": method}
	if params != nil {
		req["params"] = params
	}

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case resp := <-reply:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		var msg envelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Bridge client read error: %v", err)
			}
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return
		}

		if msg.Event == EventBeat {
			var beat BeatEvent
			if err := json.Unmarshal(msg.Data, &beat); err != nil {
				log.Printf("Bridge client: bad beat event: %v", err)
				continue
			}
			select {
			case c.beats <- beat:
			default:
			}
			continue
		}

		c.mu.Lock()
		reply, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if ok {
			reply <- msg
		}
	}
}
