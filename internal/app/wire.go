package app

import (
	"log/slog"
	"time"

	"tradesim/internal/config"
	"tradesim/internal/domain"
	"tradesim/internal/ledger"
	"tradesim/internal/market"
	"tradesim/internal/orders"
	"tradesim/internal/server"
	"tradesim/internal/server/handler"
	"tradesim/internal/stream"
)

// Dependencies bundles everything the application modes need to operate.
type Dependencies struct {
	Simulator *market.Simulator
	Broker    *stream.Broker
	Book      *ledger.Book
	Intake    *orders.Intake
	Server    *server.Server
}

// Wire constructs all concrete dependencies from the given configuration.
// Everything lives in process memory; there is nothing to tear down beyond
// cancelling the context.
func Wire(cfg *config.Config, logger *slog.Logger) *Dependencies {
	sim := market.New(cfg.Market.BasePrices)

	broker := stream.NewBroker(stream.Config{
		QuoteInterval:     cfg.Stream.QuoteInterval.Duration,
		BookInterval:      cfg.Stream.BookInterval.Duration,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval.Duration,
		TradeMinDelay:     cfg.Stream.TradeMinDelay.Duration,
		TradeMaxDelay:     cfg.Stream.TradeMaxDelay.Duration,
		ConnectedDelay:    cfg.Stream.ConnectedDelay.Duration,
	}, sim, logger)

	book := ledger.NewBook()
	intake := orders.NewIntake(sim, book, logger)
	seedPortfolio(book, intake)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(),
		Market: handler.NewMarketHandler(sim, logger),
		Orders: handler.NewOrderHandler(intake, logger),
		Positions: handler.NewPositionHandler(book, sim, domain.AccountSummary{
			BuyingPower:    250_000,
			Cash:           150_000,
			Equity:         365_000,
			MaintenanceReq: 120_000,
		}, logger),
	}

	srv := server.NewServer(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, handlers, broker, logger)

	return &Dependencies{
		Simulator: sim,
		Broker:    broker,
		Book:      book,
		Intake:    intake,
		Server:    srv,
	}
}

// seedPortfolio preloads a small portfolio so the REST surface has data on
// boot, mirroring the demo dataset of the trading UI.
func seedPortfolio(book *ledger.Book, intake *orders.Intake) {
	book.Seed([]domain.Position{
		{Symbol: "AAPL", Qty: 200, AvgPrice: 184.50, PlDay: 120},
		{Symbol: "NVDA", Qty: 50, AvgPrice: 855.20, PlDay: 640},
		{Symbol: "SPY", Qty: -40, AvgPrice: 523.40, PlDay: 55},
	})

	now := time.Now().UnixMilli()
	limitPrice := 410.50
	intake.Seed(
		[]domain.Order{
			{
				ID:          "ORD-1001",
				Symbol:      "MSFT",
				Qty:         50,
				Side:        domain.SideBuy,
				Type:        domain.OrderTypeLimit,
				LimitPrice:  &limitPrice,
				Status:      domain.OrderStatusWorking,
				SubmittedAt: now - 10*time.Minute.Milliseconds(),
			},
			{
				ID:          "ORD-1000",
				Symbol:      "TSLA",
				Qty:         25,
				Side:        domain.SideSell,
				Type:        domain.OrderTypeMarket,
				Status:      domain.OrderStatusFilled,
				SubmittedAt: now - time.Hour.Milliseconds(),
			},
		},
		[]domain.Fill{
			{
				ID:        "FILL-2002",
				OrderID:   "ORD-1000",
				Symbol:    "TSLA",
				Qty:       25,
				Price:     182.05,
				Side:      domain.SideSell,
				Timestamp: now - 58*time.Minute.Milliseconds(),
			},
		},
	)
}
