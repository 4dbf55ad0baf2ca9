package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tradesim/internal/domain"
	"tradesim/internal/feed"
)

// shutdownGrace bounds how long in-flight HTTP requests may run after the
// context is cancelled.
const shutdownGrace = 10 * time.Second

// ServeMode runs the broker cadences and the HTTP/WebSocket server until the
// context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Broker.Run(ctx)
	})

	g.Go(func() error {
		return deps.Server.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// WatchMode connects a stream client to the configured broker endpoint and
// logs everything it receives. Useful as a tape reader and as a live check
// of the reconnect path.
func (a *App) WatchMode(ctx context.Context, _ *Dependencies) error {
	logger := a.logger.With(slog.String("mode", "watch"))

	client := feed.New(a.cfg.Feed.URL, a.cfg.Feed.Symbols, feed.Callbacks{
		OnQuote: func(q domain.Quote) {
			logger.Info("quote",
				slog.String("symbol", q.Symbol),
				slog.Float64("last", q.Last),
				slog.Float64("bid", q.Bid),
				slog.Float64("ask", q.Ask),
			)
		},
		OnTrade: func(t domain.TradePrint) {
			logger.Info("trade",
				slog.Float64("price", t.Price),
				slog.Int64("size", t.Size),
				slog.String("side", string(t.Side)),
			)
		},
		OnOrderBook: func(b domain.OrderBookSnapshot) {
			logger.Debug("orderbook",
				slog.Float64("mid", b.Mid),
				slog.Float64("spread", b.Spread),
			)
		},
		OnStatus: func(s domain.ConnectionState) {
			logger.Info("stream status", slog.String("state", string(s)))
		},
	}, a.logger)

	defer client.Close()
	return client.Run(ctx)
}

// FullMode runs the server and a watch client against it in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.ServeMode(ctx, deps)
	})

	g.Go(func() error {
		// Give the server a moment to bind before the first dial; the client
		// retries with backoff anyway.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		return a.WatchMode(ctx, deps)
	})

	return g.Wait()
}
