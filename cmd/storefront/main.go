// Package main запускает HTTP-сервер сервиса витрины.
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

	"github.com/mmeshcher/storefront-system/internal/config"
	"github.com/mmeshcher/storefront-system/internal/events"
	"github.com/mmeshcher/storefront-system/internal/handler"
	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/payment"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var gateway service.PaymentGateway
	if cfg.PaymentGatewayAddress != "" {
		gateway = payment.NewClient(cfg.PaymentGatewayAddress)
	}

	bus := events.NewBus()

	var amqpPublisher *events.AMQPPublisher
	if cfg.BrokerURL != "" {
		amqpPublisher, err = events.NewAMQPPublisher(cfg.BrokerURL, "storefront.orders")
		if err != nil {
			sugar.Fatalw("broker initialization error", "error", err.Error())
		}
		defer amqpPublisher.Close()

		// События из внутренней шины дублируются в брокер.
		bus.Subscribe(func(e events.OrderEvent) {
			if err := amqpPublisher.PublishOrderEvent(context.Background(), e); err != nil {
				sugar.Errorw("publish to broker failed", "error", err.Error(), "order", e.OrderID)
			}
		})
	}

	svc := service.NewService(repo, gateway, bus, service.Options{
		CartMinQuantity:    cfg.CartMinQuantity,
		CartMaxQuantity:    cfg.CartMaxQuantity,
		TaxRateBasisPoints: cfg.TaxRateBasisPoints,
		SweepInterval:      cfg.NotificationSweep,
		Logger:             logger,
	})
	defer svc.Close()

	svc.SubscribeOrderEvents(bus)

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновой очистки истёкших уведомлений
	svc.StartNotificationSweeper(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress)
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
