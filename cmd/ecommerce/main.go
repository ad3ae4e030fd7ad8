// Package main запускает HTTP-сервер интернет-магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/ecommerce-system/internal/cache"
	"github.com/mmeshcher/ecommerce-system/internal/config"
	"github.com/mmeshcher/ecommerce-system/internal/events"
	"github.com/mmeshcher/ecommerce-system/internal/fulfillment"
	"github.com/mmeshcher/ecommerce-system/internal/handler"
	"github.com/mmeshcher/ecommerce-system/internal/middleware"
	"github.com/mmeshcher/ecommerce-system/internal/repository"
	"github.com/mmeshcher/ecommerce-system/internal/service"
	"github.com/mmeshcher/ecommerce-system/internal/token"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo service.Repository

	if cfg.DatabaseURI != "" {
		pgRepo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pgRepo
	} else {
		// Без базы данных запускаемся с хранилищем в памяти.
		sugar.Warn("DATABASE_URI is empty, using in-memory store")
		repo = repository.NewMemoryRepository()
	}

	codec := token.NewCodec(cfg.AuthSecret)

	opts := service.Options{}

	if cfg.FulfillmentAddress != "" {
		opts.FulfillmentClient = fulfillment.NewClient(cfg.FulfillmentAddress)
	}

	if cfg.RedisAddress != "" {
		catalogCache := cache.New(cfg.RedisAddress)
		defer catalogCache.Close()
		opts.CatalogCache = catalogCache
	}

	if brokers := cfg.BrokerList(); len(brokers) > 0 {
		publisher := events.NewPublisher(brokers, events.DefaultTopic)
		defer publisher.Close()
		opts.Publisher = publisher
	}

	svc := service.NewService(repo, codec, opts)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(codec)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового опроса службы доставки
	g.Go(func() error {
		svc.StartFulfillmentUpdates(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting ecommerce server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
