package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmcnair/stockfolio/internal/api"
	"github.com/jmcnair/stockfolio/internal/config"
	"github.com/jmcnair/stockfolio/internal/database"
	"github.com/jmcnair/stockfolio/internal/kafka"
	"github.com/jmcnair/stockfolio/internal/logger"
	"github.com/jmcnair/stockfolio/internal/portfolio"
	"github.com/jmcnair/stockfolio/internal/quotes"
)

func main() {
	cfg := config.Load()

	log := logger.Must(os.Getenv("ENV") != "production")
	defer log.Sync()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to database")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	yahoo := quotes.NewClient(cfg.Quotes)
	provider := quotes.NewCachedProvider(yahoo, rdb, cfg.Redis.QuoteTTL)

	svc := portfolio.NewService(db, provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
		defer producer.Close()

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.FillsTopic, cfg.Kafka.GroupID, db, svc, log)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error("trade fill consumer stopped", zap.Error(err))
			}
		}()
		log.Info("kafka integration enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		log.Info("kafka integration disabled")
	}

	refresher := quotes.NewRefresher(provider, db, log, cfg.Quotes)
	go refresher.Run(ctx)

	handler := api.NewHandler(svc, provider, producer, log)
	router := api.SetupRoutes(handler)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
