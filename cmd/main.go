package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/config"
	"github.com/RaikyD/dealer-orders-service/internal/idempotency"
	"github.com/RaikyD/dealer-orders-service/internal/kafka"
	"github.com/RaikyD/dealer-orders-service/internal/logger"
	"github.com/RaikyD/dealer-orders-service/internal/migrate"
	"github.com/RaikyD/dealer-orders-service/internal/presentation"
	"github.com/RaikyD/dealer-orders-service/internal/presentation/helpers"
	"github.com/RaikyD/dealer-orders-service/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("info")
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger.Init(cfg.LOG_LEVEL)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(cfg.DB_STRING); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DB_STRING)
	if err != nil {
		logger.Error("pgxpool new failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("db ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	// Wiring
	orderRepo := repository.NewOrderRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	catalog := repository.NewCatalogRepository(pool)

	pricing := application.NewPricingEngine(catalog, cfg.DeliveryFee, cfg.FreeDeliveryThreshold)
	coupons := application.NewCouponsService(couponRepo, catalog, catalog, pricing, cfg.PublicCouponCodes)
	orders := application.NewOrdersService(application.OrdersServiceDeps{
		Orders:  orderRepo,
		Coupons: couponRepo,
		Users:   catalog,
		Pricing: pricing,
		Engine:  coupons,
	})
	fulfillment := application.NewFulfillmentService(orderRepo, catalog)

	var idemStore idempotency.Store
	if cfg.REDIS_ADDR != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.REDIS_ADDR})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, idempotency keys disabled", "err", err)
		} else {
			idemStore = idempotency.NewRedisStore(rdb)
		}
	}

	if len(cfg.KAFKA_BROKERS) > 0 {
		prod := kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_TOPIC)
		defer prod.Close()
		relay := kafka.NewRelay(repository.NewOutboxRepository(pool), prod, cfg.OutboxInterval)
		go relay.Run(ctx)

		if cfg.KAFKA_GROUP != "" {
			kafka.StartFinalizeConsumer(ctx, orders, kafka.ConsumerConfig{
				Brokers: cfg.KAFKA_BROKERS,
				Topic:   cfg.KAFKA_TOPIC,
				GroupID: cfg.KAFKA_GROUP,
			})
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set, outbox events stay unpublished")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", helpers.UserHeader, idempotency.HeaderKey},
		ExposedHeaders: []string{idempotency.HeaderReplay},
		MaxAge:         300,
	}))

	presentation.MountHealth(r, pool)
	presentation.NewOrdersHandler(orders, fulfillment,
		idempotency.Middleware(idemStore, cfg.IdempotencyTTL, helpers.UserID),
	).Register(r)
	presentation.NewCouponsHandler(coupons, orders).Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP_PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting http", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server crashed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "err", err)
	}
	logger.Info("server stopped")
}
