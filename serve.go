package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/streamchat/internal/adapter/provider"
	"github.com/xiaot623/gogo/streamchat/internal/repository"
	"github.com/xiaot623/gogo/streamchat/internal/routing"
	"github.com/xiaot623/gogo/streamchat/internal/telemetry"
	handler "github.com/xiaot623/gogo/streamchat/internal/transport/http"
	"github.com/xiaot623/gogo/streamchat/internal/transport/http/gateway"
	v1 "github.com/xiaot623/gogo/streamchat/internal/transport/http/v1"
	"github.com/xiaot623/gogo/streamchat/internal/transport/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat gateway, conversation API and WebSocket sessions",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting streamchat",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("database", cfg.DatabaseURL),
		zap.String("chat_url", cfg.ChatURL),
		zap.Bool("mock", cfg.MockMode),
	)

	// Initialize store
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()
	debouncer := repository.NewDebouncer(store, cfg.PersistDebounce, logger)

	// Initialize telemetry
	telemetryLog, err := telemetry.OpenFileLog(cfg.TelemetryLog)
	if err != nil {
		return fmt.Errorf("failed to open telemetry log: %w", err)
	}
	defer telemetryLog.Close()
	sink := telemetry.New(cfg.TelemetryEnabled, cfg.TelemetryURL, logger)
	defer flushTelemetry(sink)

	// Initialize routing policy and providers
	router, err := routing.NewEngine(ctx, routing.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("failed to initialize routing policy: %w", err)
	}
	providers, err := provider.NewRegistryFromOptions(ctx, provider.Options{
		OpenAIAPIKey:   cfg.OpenAIAPIKey,
		OpenAIBaseURL:  cfg.OpenAIBaseURL,
		MistralAPIKey:  cfg.MistralAPIKey,
		MistralBaseURL: cfg.MistralBaseURL,
		GoogleAPIKey:   cfg.GoogleAPIKey,
		Mock:           cfg.MockMode,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}
	if providers.Empty() {
		logger.Warn("no provider API keys configured; /api/chat will fail")
	}

	// Initialize WebSocket sessions
	hub := ws.NewHub()
	wsServer := ws.NewServer(ws.Options{
		PingInterval:   cfg.WSPingInterval,
		WriteTimeout:   cfg.WSWriteTimeout,
		ReadTimeout:    cfg.WSReadTimeout,
		MaxMessageSize: cfg.WSMaxMessageSize,
	}, hub, sessionFactory(cfg, sink), store, debouncer, logger)

	server := handler.NewServer(hub,
		gateway.NewHandler(router, providers, telemetryLog, logger),
		v1.NewHandler(store),
		wsServer,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("HTTP server started", zap.String("addr", addr))
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down streamchat")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown HTTP server gracefully", zap.Error(err))
		}
		hub.CloseAll()
		wsServer.Wait()
		debouncer.Close(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("streamchat stopped")
	return nil
}
