package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/nmsbook/internal/config"
	"github.com/efreitasn/nmsbook/internal/domain"
	"github.com/efreitasn/nmsbook/internal/engine"
	"github.com/efreitasn/nmsbook/internal/feed"
	"github.com/efreitasn/nmsbook/internal/handler"
	"github.com/efreitasn/nmsbook/internal/service"
	"github.com/efreitasn/nmsbook/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Stores.
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore(cfg.TradeWindow)

	// Optional durable trade journal.
	var journal *store.TradeJournal
	if cfg.JournalDir != "" {
		journal, err = store.OpenTradeJournal(cfg.JournalDir)
		if err != nil {
			logger.Error("failed to open trade journal", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer journal.Close()
		logger.Info("trade journal enabled", slog.String("dir", cfg.JournalDir))
	}

	// Engine.
	symbols := domain.NewSymbolRegistry()
	books := engine.NewBookManager()
	stream := engine.NewEventLog()
	seq := engine.NewSequencer()
	matcher := engine.NewMatcher(books, orderStore, tradeStore, stream, seq, symbols)

	// Services.
	orderSvc := service.NewOrderService(matcher, orderStore)
	marketSvc := service.NewMarketService(tradeStore, books, matcher, symbols)

	// Feeds.
	tradeHub := feed.NewHub[*domain.Trade]()
	bookHub := feed.NewHub[feed.BookUpdate]()

	var publisher *feed.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = feed.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		logger.Info("kafka publishing enabled", slog.String("topic", cfg.KafkaTopic))
	}

	pump := feed.NewPump(stream, marketSvc, tradeHub, bookHub, journal, publisher, cfg.SnapshotDepth, logger)

	// Router.
	orderH := handler.NewOrderHandler(orderSvc)
	marketH := handler.NewMarketHandler(marketSvc, cfg.SnapshotDepth)
	wsH := handler.NewWSHandler(marketSvc, tradeHub, bookHub, cfg.SnapshotDepth, cfg.WSBuffer, logger)
	router := handler.NewRouter(orderH, marketH, wsH, logger)

	// Start the feed pump with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops the pump).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
