// Package ws is the client side of the board's real-time channel: one
// explicitly owned websocket connection that emits intents and turns
// pushed frames into typed events.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sujalbistaa/blurtbox/internal/events"
)

const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	writeWait                = 10 * time.Second
)

var ErrClosed = errors.New("connection closed")

type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
	Header            http.Header
}

// Conn is safe for concurrent use. Handlers and acknowledgement callbacks
// all run on the hub goroutine.
type Conn struct {
	cfg    Config
	dialer *websocket.Dialer
	hub    *Hub
	log    *slog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	conn   *websocket.Conn
	acks   map[string]func(events.Ack)
	closed bool

	start sync.Once
	done  chan struct{}
	wg    sync.WaitGroup
}

// Dial opens the channel. Nothing is read until Start, so subscribers
// registered in between see every event, the first Connected included.
// Once started the Conn reconnects on its own until Close is called or the
// attempts run out.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.ReconnectAttempts < 0 {
		cfg.ReconnectAttempts = 0
	} else if cfg.ReconnectAttempts == 0 {
		cfg.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	c := &Conn{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		hub:  NewHub(),
		log:  slog.Default().With("component", "ws.conn"),
		acks: make(map[string]func(events.Ack)),
		done: make(chan struct{}),
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	go c.hub.Run()
	return c, nil
}

// Start announces the connection to subscribers and begins reading. Later
// calls do nothing, as does a call after Close.
func (c *Conn) Start() {
	c.start.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.hub.Publish(events.Connected{})
		c.wg.Add(1)
		go c.readLoop(c.conn)
	})
}

func (c *Conn) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// Subscribe registers fn for every decoded push event.
func (c *Conn) Subscribe(fn events.Handler) events.Subscription {
	return c.hub.Subscribe(fn)
}

// Emit sends a fire-and-forget intent.
func (c *Conn) Emit(event string, payload any) error {
	env, err := envelope(event, payload, "")
	if err != nil {
		return err
	}
	return c.write(env)
}

// EmitWithAck sends an intent and calls fn with the backend's answer. If
// the connection drops first, fn receives an Ack carrying the failure.
// fn is not called when EmitWithAck itself returns an error.
func (c *Conn) EmitWithAck(event string, payload any, fn func(events.Ack)) error {
	id := uuid.NewString()
	env, err := envelope(event, payload, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.acks[id] = fn
	c.mu.Unlock()

	if err := c.write(env); err != nil {
		c.mu.Lock()
		delete(c.acks, id)
		c.mu.Unlock()
		return err
	}
	return nil
}

func envelope(event string, payload any, ackID string) (events.Envelope, error) {
	env := events.Envelope{Type: event, Ack: ackID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return env, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		env.Data = data
	}
	return env, nil
}

func (c *Conn) write(env events.Envelope) error {
	c.mu.Lock()
	conn, closed := c.conn, c.closed
	c.mu.Unlock()
	if closed || conn == nil {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("emitting %s: %w", env.Type, err)
	}
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("emitting %s: %w", env.Type, err)
	}
	return nil
}

func (c *Conn) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			c.log.Warn("real-time channel dropped", "error", err)
			conn.Close()
			c.failAcks("connection lost")

			conn, err = c.reconnect()
			if errors.Is(err, ErrClosed) {
				return
			}
			if err != nil {
				c.log.Error("giving up on real-time channel", "error", err)
				c.hub.Publish(events.Disconnected{Err: err})
				return
			}
			c.hub.Publish(events.Connected{Reconnect: true})
			continue
		}
		c.handleFrame(data)
	}
}

func (c *Conn) handleFrame(data []byte) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropping malformed frame", "error", err)
		return
	}

	if env.Type == events.MessageTypeAck {
		var ack events.Ack
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &ack); err != nil {
				ack.Error = "malformed acknowledgement"
			}
		}
		c.mu.Lock()
		fn, ok := c.acks[env.Ack]
		delete(c.acks, env.Ack)
		c.mu.Unlock()
		if ok && fn != nil {
			c.hub.Do(func() { fn(ack) })
		}
		return
	}

	ev, err := events.Decode(env.Type, env.Data)
	if err != nil {
		c.log.Warn("dropping push event", "type", env.Type, "error", err)
		return
	}
	c.hub.Publish(ev)
}

func (c *Conn) reconnect() (*websocket.Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return nil, ErrClosed
		case <-time.After(c.cfg.ReconnectDelay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
		conn, err := c.connect(ctx)
		cancel()
		if err != nil {
			lastErr = err
			c.log.Warn("reconnect failed", "attempt", attempt, "error", err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return nil, ErrClosed
		}
		c.conn = conn
		c.mu.Unlock()
		c.log.Info("real-time channel reconnected", "attempt", attempt)
		return conn, nil
	}
	if lastErr == nil {
		lastErr = errors.New("reconnection disabled")
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.cfg.ReconnectAttempts, lastErr)
}

// failAcks answers every outstanding acknowledgement with reason.
func (c *Conn) failAcks(reason string) {
	c.mu.Lock()
	pending := c.acks
	c.acks = make(map[string]func(events.Ack))
	c.mu.Unlock()

	for _, fn := range pending {
		if fn == nil {
			continue
		}
		fn := fn
		c.hub.Do(func() { fn(events.Ack{Error: reason}) })
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears the connection down and waits for the reader to exit.
// Outstanding acknowledgements fail with ErrClosed's message.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	pending := c.acks
	c.acks = make(map[string]func(events.Ack))
	c.mu.Unlock()

	close(c.done)

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		if err = conn.Close(); errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	c.wg.Wait()
	c.hub.Stop()

	for _, fn := range pending {
		if fn != nil {
			fn(events.Ack{Error: ErrClosed.Error()})
		}
	}
	return err
}
