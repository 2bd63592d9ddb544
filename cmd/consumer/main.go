package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go-retrytopic/internal/config"
	"go-retrytopic/internal/kafka"
	"go-retrytopic/internal/observability"
	"go-retrytopic/internal/retry"
	"go-retrytopic/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	observability.InitLogger(cfg.Logging.Level)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := observability.NewPrometheusMetrics(registry)

	client := kafka.NewClient(cfg.Kafka.Brokers, 5, logger)
	if err := client.HealthCheck(ctx); err != nil {
		logger.Fatal("Kafka brokers unreachable", zap.Error(err))
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		Acks:       cfg.Producer.Acks,
		Retries:    cfg.Producer.Retries,
		Idempotent: cfg.Producer.Idempotent,
		Metrics:    metrics,
		Logger:     logger,
	})
	defer producer.Close()

	chain := cfg.DestinationChain()
	resolver, err := retry.NewChainResolver(retry.ChainResolverConfig{Chain: chain})
	if err != nil {
		logger.Fatal("Invalid destination chain", zap.Error(err))
	}
	for _, dest := range chain {
		if err := resolver.BindPublisher(dest.Topic, producer); err != nil {
			logger.Fatal("Failed to bind publisher", zap.String("topic", dest.Topic), zap.Error(err))
		}
	}

	recoverer := retry.NewRecoverer(retry.RecovererConfig{
		Resolver: resolver,
		Logger:   logger,
		Metrics:  metrics,
	})

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Consumer.Topic,
		GroupID:       cfg.Consumer.GroupID,
		Workers:       cfg.Consumer.Workers,
		FetchMinBytes: cfg.Consumer.FetchMinBytes,
		FetchMaxBytes: cfg.Consumer.FetchMaxBytes,
		Metrics:       metrics,
		Logger:        logger,
	}, recoverer)
	defer consumer.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.Retry.MetricsListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	go client.HealthCheckLoop(ctx, 30*time.Second, nil)

	processor := service.NewOrderProcessor()
	if err := consumer.Start(ctx, processor.Process); err != nil {
		logger.Error("Consumer stopped with error", zap.Error(err))
	}
}
