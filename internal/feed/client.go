// Package feed implements the reconnecting market-data subscriber. A Client
// holds one logical subscription: it keeps exactly one physical WebSocket
// connection at a time, replays its desired symbol set on every (re)connect,
// dispatches typed frames to consumer callbacks, and retries lost
// connections with capped exponential backoff.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/domain"
	"tradesim/internal/stream"
)

const (
	// initialBackoff is the delay before the first reconnect attempt.
	initialBackoff = 500 * time.Millisecond

	// maxBackoff caps the exponential reconnect backoff.
	maxBackoff = 5 * time.Second

	// handshakeTimeout bounds a single dial attempt.
	handshakeTimeout = 15 * time.Second

	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
)

// Callbacks is the consumer contract. Every handler is optional; nil
// handlers are skipped.
type Callbacks struct {
	OnQuote     func(domain.Quote)
	OnTrade     func(domain.TradePrint)
	OnOrderBook func(domain.OrderBookSnapshot)
	OnStatus    func(domain.ConnectionState)
}

// Client is a symbol-scoped, reconnecting view of the broker's stream.
type Client struct {
	url    string
	cb     Callbacks
	logger *slog.Logger

	mu      sync.Mutex
	symbols map[string]struct{}
	conn    *websocket.Conn
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Client for the given broker endpoint with an initial desired
// symbol set. Run must be called to start streaming.
func New(url string, symbols []string, cb Callbacks, logger *slog.Logger) *Client {
	set := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		if sym != "" {
			set[sym] = struct{}{}
		}
	}
	return &Client{
		url:     url,
		cb:      cb,
		logger:  logger.With(slog.String("component", "feed")),
		symbols: set,
		done:    make(chan struct{}),
	}
}

// Run connects and streams until the context is cancelled or Close is
// called. Reconnect attempts are serialized: there is never more than one
// open socket for the client. The backoff sequence for repeated failures is
// 500ms, 1s, 2s, 4s, then 5s capped, and resets after any successful open.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if c.userClosed() || ctx.Err() != nil {
			c.status(domain.StateClosed)
			return ctx.Err()
		}

		c.status(domain.StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.status(domain.StateError)
			c.status(domain.StateReconnecting)
			if !c.waitRetry(ctx, attempt) {
				c.status(domain.StateClosed)
				return ctx.Err()
			}
			attempt++
			continue
		}

		// A fresh connection starts with an empty registry on the broker, so
		// the full desired set must be replayed before anything else.
		attempt = 0
		c.setConn(conn)
		c.status(domain.StateOpen)
		if err := c.sendSymbols(stream.TypeSubscribe, c.desired()); err != nil {
			c.logger.Warn("feed: subscribe replay failed", slog.String("error", err.Error()))
		}

		c.readLoop(ctx, conn)
		c.setConn(nil)
		conn.Close()

		if c.userClosed() || ctx.Err() != nil {
			c.status(domain.StateClosed)
			return ctx.Err()
		}

		c.status(domain.StateError)
		c.status(domain.StateReconnecting)
		if !c.waitRetry(ctx, attempt) {
			c.status(domain.StateClosed)
			return ctx.Err()
		}
		attempt++
	}
}

// Close tears the client down. Suppresses any further reconnects; the final
// reported state is closed, not reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })

	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}

// Subscribe adds symbols to the desired set and, when connected, sends the
// delta to the broker. Duplicates are harmless.
func (c *Client) Subscribe(symbols ...string) error {
	c.mu.Lock()
	for _, sym := range symbols {
		if sym != "" {
			c.symbols[sym] = struct{}{}
		}
	}
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.sendSymbols(stream.TypeSubscribe, symbols)
}

// Unsubscribe removes symbols from the desired set and, when connected,
// sends the delta to the broker. Unknown symbols are harmless.
func (c *Client) Unsubscribe(symbols ...string) error {
	c.mu.Lock()
	for _, sym := range symbols {
		delete(c.symbols, sym)
	}
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.sendSymbols(stream.TypeUnsubscribe, symbols)
}

// Symbols returns the current desired symbol set.
func (c *Client) Symbols() []string {
	return c.desired()
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: connect %s: %w", c.url, err)
	}
	return conn, nil
}

// readLoop dispatches inbound frames until the connection dies. A parse
// failure or unknown frame type is logged and dropped; it never stops
// dispatch.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock the blocking read when the caller tears us down.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-c.done:
			conn.Close()
		case <-watchDone:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.dispatch(message)
	}
}

// dispatch routes one frame by its type discriminant to the matching
// callback.
func (c *Client) dispatch(message []byte) {
	var frame stream.Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.logger.Warn("feed: malformed frame dropped", slog.String("error", err.Error()))
		return
	}

	switch frame.Type {
	case stream.TypeQuote:
		var quote domain.Quote
		if err := json.Unmarshal(frame.Payload, &quote); err != nil {
			c.logger.Warn("feed: bad quote payload", slog.String("error", err.Error()))
			return
		}
		if c.cb.OnQuote != nil {
			c.cb.OnQuote(quote)
		}
	case stream.TypeTrade:
		var print domain.TradePrint
		if err := json.Unmarshal(frame.Payload, &print); err != nil {
			c.logger.Warn("feed: bad trade payload", slog.String("error", err.Error()))
			return
		}
		if c.cb.OnTrade != nil {
			c.cb.OnTrade(print)
		}
	case stream.TypeOrderBook:
		var book domain.OrderBookSnapshot
		if err := json.Unmarshal(frame.Payload, &book); err != nil {
			c.logger.Warn("feed: bad orderbook payload", slog.String("error", err.Error()))
			return
		}
		if c.cb.OnOrderBook != nil {
			c.cb.OnOrderBook(book)
		}
	case stream.TypeConnected, stream.TypeHeartbeat:
		// Liveness only; nothing to deliver.
	default:
		c.logger.Warn("feed: unknown frame type dropped", slog.String("type", frame.Type))
	}
}

// sendSymbols writes a subscribe/unsubscribe frame carrying the given
// symbols on the current connection.
func (c *Client) sendSymbols(frameType string, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("feed: %w", domain.ErrWSDisconnect)
	}

	data, err := json.Marshal(stream.Frame{Type: frameType, Symbols: symbols})
	if err != nil {
		return fmt.Errorf("feed: marshal %s: %w", frameType, err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// waitRetry sleeps for the backoff of the given attempt. It returns false
// when the client was closed or the context cancelled first; the closed flag
// is consulted before arming the timer so a deliberate teardown never races
// a reconnect.
func (c *Client) waitRetry(ctx context.Context, attempt int) bool {
	if c.userClosed() {
		return false
	}

	timer := time.NewTimer(backoffDelay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	case <-timer.C:
		return true
	}
}

// backoffDelay returns the reconnect delay for the given zero-based attempt:
// 500ms doubled per attempt, capped at 5s.
func backoffDelay(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

func (c *Client) desired() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.symbols))
	for sym := range c.symbols {
		out = append(out, sym)
	}
	return out
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) userClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) status(state domain.ConnectionState) {
	if c.cb.OnStatus != nil {
		c.cb.OnStatus(state)
	}
}
