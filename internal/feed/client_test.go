package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/domain"
	"tradesim/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBackoffDelay(t *testing.T) {
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for attempt, wantDelay := range want {
		if got := backoffDelay(attempt); got != wantDelay {
			t.Errorf("backoffDelay(%d) = %v, want %v", attempt, got, wantDelay)
		}
	}
}

// wsURL rewrites an httptest server URL to the ws scheme.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestReconnectReplaysFullSubscription(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan stream.Frame, 4)
	var connections atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dropAfterFirst := connections.Add(1) == 1

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame stream.Frame
			if json.Unmarshal(msg, &frame) == nil {
				frames <- frame
			}
			if dropAfterFirst {
				conn.Close()
				return
			}
		}
	}))
	defer srv.Close()

	client := New(wsURL(srv), []string{"AAPL", "MSFT"}, Callbacks{}, testLogger())
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case frame := <-frames:
			if frame.Type != stream.TypeSubscribe {
				t.Fatalf("connection %d: first frame type = %q, want subscribe", i+1, frame.Type)
			}
			got := append([]string(nil), frame.Symbols...)
			sort.Strings(got)
			if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
				t.Fatalf("connection %d: replayed symbols = %v, want full set", i+1, got)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for subscribe frame on connection %d", i+1)
		}
	}
}

func TestSubscribeSendsDeltaWhenConnected(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan stream.Frame, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame stream.Frame
			if json.Unmarshal(msg, &frame) == nil {
				frames <- frame
			}
		}
	}))
	defer srv.Close()

	client := New(wsURL(srv), []string{"AAPL"}, Callbacks{}, testLogger())
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	// Initial replay.
	select {
	case <-frames:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial subscribe")
	}

	if err := client.Subscribe("TSLA"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	select {
	case frame := <-frames:
		if frame.Type != stream.TypeSubscribe || len(frame.Symbols) != 1 || frame.Symbols[0] != "TSLA" {
			t.Errorf("delta frame = %+v, want subscribe [TSLA]", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscribe delta")
	}

	if err := client.Unsubscribe("AAPL"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	select {
	case frame := <-frames:
		if frame.Type != stream.TypeUnsubscribe || len(frame.Symbols) != 1 || frame.Symbols[0] != "AAPL" {
			t.Errorf("delta frame = %+v, want unsubscribe [AAPL]", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for unsubscribe delta")
	}

	got := client.Symbols()
	sort.Strings(got)
	if len(got) != 1 || got[0] != "TSLA" {
		t.Errorf("desired set = %v, want [TSLA]", got)
	}
}

func TestDialFailureReportsReconnecting(t *testing.T) {
	var mu sync.Mutex
	var states []domain.ConnectionState

	// Nothing is listening, so every dial fails immediately.
	client := New("ws://127.0.0.1:1/ws", []string{"AAPL"}, Callbacks{
		OnStatus: func(s domain.ConnectionState) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	}, testLogger())
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	// Wait until the second attempt has started, proving a full
	// connecting, error, reconnecting, connecting cycle.
	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		snapshot := append([]domain.ConnectionState(nil), states...)
		mu.Unlock()

		connecting := 0
		for _, s := range snapshot {
			if s == domain.StateConnecting {
				connecting++
			}
		}
		if connecting >= 2 {
			want := []domain.ConnectionState{
				domain.StateConnecting,
				domain.StateError,
				domain.StateReconnecting,
				domain.StateConnecting,
			}
			for i, s := range want {
				if snapshot[i] != s {
					t.Fatalf("state[%d] = %q, want %q (full: %v)", i, snapshot[i], s, snapshot)
				}
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("second attempt never started; states: %v", snapshot)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseSuppressesReconnect(t *testing.T) {
	// Nothing is listening here, so every dial fails and the client sits in
	// its retry loop until closed.
	client := New("ws://127.0.0.1:1/ws", []string{"AAPL"}, Callbacks{}, testLogger())

	done := make(chan error, 1)
	go func() { done <- client.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	client.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after Close = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestDispatchRoutesFrames(t *testing.T) {
	var gotQuote *domain.Quote
	var gotTrade *domain.TradePrint
	var gotBook *domain.OrderBookSnapshot

	client := New("ws://unused", nil, Callbacks{
		OnQuote:     func(q domain.Quote) { gotQuote = &q },
		OnTrade:     func(p domain.TradePrint) { gotTrade = &p },
		OnOrderBook: func(b domain.OrderBookSnapshot) { gotBook = &b },
	}, testLogger())

	client.dispatch([]byte(`{"type":"quote","payload":{"symbol":"AAPL","last":186.42}}`))
	if gotQuote == nil || gotQuote.Symbol != "AAPL" || gotQuote.Last != 186.42 {
		t.Errorf("quote dispatch = %+v", gotQuote)
	}

	client.dispatch([]byte(`{"type":"trade","payload":{"price":100.5,"size":75,"side":"buy"}}`))
	if gotTrade == nil || gotTrade.Price != 100.5 || gotTrade.Size != 75 {
		t.Errorf("trade dispatch = %+v", gotTrade)
	}

	client.dispatch([]byte(`{"type":"orderbook","payload":{"mid":100,"spread":0.1,"bids":[],"asks":[]}}`))
	if gotBook == nil || gotBook.Mid != 100 {
		t.Errorf("orderbook dispatch = %+v", gotBook)
	}
}

func TestDispatchToleratesGarbage(t *testing.T) {
	client := New("ws://unused", nil, Callbacks{}, testLogger())

	// None of these may panic or invoke a callback.
	client.dispatch([]byte(`not json at all`))
	client.dispatch([]byte(`{"type":"mystery"}`))
	client.dispatch([]byte(`{"type":"quote","payload":"not an object"}`))
	client.dispatch([]byte(`{"type":"connected"}`))
	client.dispatch([]byte(`{"type":"heartbeat","ts":123}`))
}
