// Package stream implements the WebSocket fan-out broker. The broker owns
// every open connection and its subscription registry, drives the quote,
// order-book, heartbeat, and randomized trade cadences, and removes dead
// connections. Streaming errors never leave the broker: a failed write only
// costs that one connection, and a malformed inbound frame is logged and
// dropped with the connection left open.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/market"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends transport-level pings at this interval. Must be less
	// than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing frames per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// Config holds the broker's dissemination cadences.
type Config struct {
	QuoteInterval     time.Duration // one quote per subscribed symbol
	BookInterval      time.Duration // one depth snapshot per subscribed symbol
	HeartbeatInterval time.Duration // liveness frame to every connection
	TradeMinDelay     time.Duration // lower bound of the random trade interval
	TradeMaxDelay     time.Duration // upper bound (exclusive)
	ConnectedDelay    time.Duration // delay before the connected ack
}

// DefaultConfig returns the production cadences.
func DefaultConfig() Config {
	return Config{
		QuoteInterval:     time.Second,
		BookInterval:      500 * time.Millisecond,
		HeartbeatInterval: 10 * time.Second,
		TradeMinDelay:     2 * time.Second,
		TradeMaxDelay:     5 * time.Second,
		ConnectedDelay:    100 * time.Millisecond,
	}
}

// client is one WebSocket connection with its subscription registry. The
// registry is mutated only by the connection's own read pump and read by the
// broker's timers, so a per-client lock is required.
type client struct {
	broker *Broker
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}

	mu      sync.RWMutex
	symbols map[string]struct{}
}

// Broker owns the set of live connections and drives the dissemination
// cadences over the shared market simulator.
type Broker struct {
	cfg    Config
	sim    *market.Simulator
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewBroker creates a Broker over the given simulator.
func NewBroker(cfg Config, sim *market.Simulator, logger *slog.Logger) *Broker {
	return &Broker{
		cfg:     cfg,
		sim:     sim,
		logger:  logger.With(slog.String("component", "broker")),
		clients: make(map[*client]struct{}),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run drives the quote, book, heartbeat, and trade cadences until the context
// is cancelled. Each tick is a short non-blocking pass: frames are queued on
// per-client buffered channels and slow consumers have frames dropped rather
// than delaying anyone else.
func (b *Broker) Run(ctx context.Context) error {
	quoteTicker := time.NewTicker(b.cfg.QuoteInterval)
	defer quoteTicker.Stop()
	bookTicker := time.NewTicker(b.cfg.BookInterval)
	defer bookTicker.Stop()
	heartbeatTicker := time.NewTicker(b.cfg.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	// The trade cadence is a single timer re-armed with a fresh random delay
	// after each firing, so cancelling the context stops the rescheduling
	// deterministically.
	tradeTimer := time.NewTimer(b.nextTradeDelay())
	defer tradeTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return ctx.Err()
		case <-quoteTicker.C:
			b.fanOutQuotes()
		case <-bookTicker.C:
			b.fanOutBooks()
		case <-heartbeatTicker.C:
			b.sendHeartbeats()
		case <-tradeTimer.C:
			b.emitRandomTrade()
			tradeTimer.Reset(b.nextTradeDelay())
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection, registers it
// with an empty subscription registry, and schedules the connected ack.
// GET /ws
func (b *Broker) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		broker:  b,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		symbols: make(map[string]struct{}),
	}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	total := len(b.clients)
	b.mu.Unlock()
	b.logger.Info("ws: client connected", slog.Int("total_clients", total))

	// The ack is decoupled from the socket-open race by a short delay.
	time.AfterFunc(b.cfg.ConnectedDelay, func() {
		if msg, err := encodeConnected(); err == nil {
			c.enqueue(msg)
		}
	})

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of currently connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// fanOutQuotes advances each subscribed symbol's walk once and delivers the
// same quote to every connection subscribed to it, so all subscribers
// converge on one price path.
func (b *Broker) fanOutQuotes() {
	b.fanOut(TypeQuote, func(symbol string) (any, bool) {
		return b.sim.NextQuote(symbol), true
	})
}

// fanOutBooks mirrors fanOutQuotes for depth snapshots.
func (b *Broker) fanOutBooks() {
	b.fanOut(TypeOrderBook, func(symbol string) (any, bool) {
		return b.sim.NextOrderBook(symbol), true
	})
}

// fanOut generates one payload per symbol in the union of all registries and
// queues the encoded frame on every subscribed connection.
func (b *Broker) fanOut(frameType string, generate func(symbol string) (any, bool)) {
	clients := b.snapshotClients()
	if len(clients) == 0 {
		return
	}

	encoded := make(map[string][]byte)
	for _, c := range clients {
		for _, symbol := range c.subscribed() {
			msg, ok := encoded[symbol]
			if !ok {
				payload, emit := generate(symbol)
				if !emit {
					continue
				}
				data, err := encodeFrame(frameType, payload)
				if err != nil {
					b.logger.Error("ws: encode frame failed",
						slog.String("type", frameType),
						slog.String("error", err.Error()),
					)
					continue
				}
				encoded[symbol] = data
				msg = data
			}
			c.enqueue(msg)
		}
	}
}

// sendHeartbeats queues a liveness frame on every connection regardless of
// subscriptions.
func (b *Broker) sendHeartbeats() {
	msg, err := encodeHeartbeat(time.Now().UnixMilli())
	if err != nil {
		return
	}
	for _, c := range b.snapshotClients() {
		c.enqueue(msg)
	}
}

// emitRandomTrade picks one connection with a non-empty registry and one of
// its symbols at random, and delivers a single print to that connection only.
// Trades are sparse and connection-scoped, not broadcast.
func (b *Broker) emitRandomTrade() {
	var candidates []*client
	for _, c := range b.snapshotClients() {
		if len(c.subscribed()) > 0 {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return
	}

	b.rngMu.Lock()
	c := candidates[b.rng.Intn(len(candidates))]
	symbols := c.subscribed()
	if len(symbols) == 0 {
		b.rngMu.Unlock()
		return
	}
	symbol := symbols[b.rng.Intn(len(symbols))]
	b.rngMu.Unlock()

	print := b.sim.NextTrade(symbol)
	if msg, err := encodeFrame(TypeTrade, print); err == nil {
		c.enqueue(msg)
	}
}

func (b *Broker) nextTradeDelay() time.Duration {
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	span := b.cfg.TradeMaxDelay - b.cfg.TradeMinDelay
	if span <= 0 {
		return b.cfg.TradeMinDelay
	}
	return b.cfg.TradeMinDelay + time.Duration(b.rng.Int63n(int64(span)))
}

func (b *Broker) snapshotClients() []*client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		out = append(out, c)
	}
	return out
}

// remove unregisters a client and tears down its connection. Safe to call
// more than once; only the first call wins.
func (b *Broker) remove(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		close(c.done)
	}
	total := len(b.clients)
	b.mu.Unlock()

	if ok {
		c.conn.Close()
		b.logger.Info("ws: client disconnected", slog.Int("total_clients", total))
	}
}

func (b *Broker) closeAll() {
	for _, c := range b.snapshotClients() {
		b.remove(c)
	}
}

// ─── client ───────────────────────────────────────────────────────────────

// subscribed returns a snapshot of the client's symbol set.
func (c *client) subscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.symbols))
	for sym := range c.symbols {
		out = append(out, sym)
	}
	return out
}

// enqueue queues a frame for delivery, dropping it if the client is gone or
// its buffer is full. Never blocks.
func (c *client) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		c.broker.logger.Warn("ws: dropping frame for slow client")
	}
}

// readPump consumes inbound frames and applies subscribe/unsubscribe
// mutations to this connection's registry. A frame that fails to parse or
// carries an unknown type is logged and ignored; the connection stays open.
func (c *client) readPump() {
	defer c.broker.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.broker.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.broker.logger.Warn("ws: malformed frame dropped",
				slog.String("error", err.Error()),
			)
			continue
		}

		switch frame.Type {
		case TypeSubscribe:
			c.updateSubscriptions(frame.Symbols, true)
		case TypeUnsubscribe:
			c.updateSubscriptions(frame.Symbols, false)
		default:
			c.broker.logger.Warn("ws: unknown frame type dropped",
				slog.String("type", frame.Type),
			)
		}
	}
}

// updateSubscriptions applies an idempotent add or remove of the given
// symbols. Unknown or duplicate symbols are not errors.
func (c *client) updateSubscriptions(symbols []string, add bool) {
	c.mu.Lock()
	for _, sym := range symbols {
		if sym == "" {
			continue
		}
		if add {
			c.symbols[sym] = struct{}{}
		} else {
			delete(c.symbols, sym)
		}
	}
	count := len(c.symbols)
	c.mu.Unlock()

	action := "subscribe"
	if !add {
		action = "unsubscribe"
	}
	c.broker.logger.Debug("ws: registry updated",
		slog.String("action", action),
		slog.Int("symbols", count),
	)
}

// writePump pumps queued frames to the WebSocket connection and sends
// periodic transport pings. A write failure ends the connection; the read
// pump then unregisters it.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
