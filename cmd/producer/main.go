package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"go-retrytopic/internal/config"
	"go-retrytopic/internal/kafka"
	"go-retrytopic/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	order := map[string]interface{}{
		"event_type":  "order_created",
		"order_id":    "ORD-2026-001234",
		"customer_id": "CUST-567890",
		"items": []interface{}{
			map[string]interface{}{
				"product_id": "PROD-111",
				"quantity":   1,
				"price":      42900.00,
			},
		},
		"total_amount": "42900.00",
		"currency":     "THB",
		"status":       "pending",
	}
	payload, err := json.Marshal(order)
	if err != nil {
		log.Fatal(err)
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		Acks:       cfg.Producer.Acks,
		Retries:    cfg.Producer.Retries,
		Idempotent: cfg.Producer.Idempotent,
		Logger:     logger,
	})
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	headers := models.Headers{}.Add(models.HeaderMessageID, []byte(uuid.NewString()))
	if err := producer.Publish(ctx, cfg.Consumer.Topic, 0, uuid.NewString(), payload, headers); err != nil {
		log.Fatal(err)
	}
	log.Println("Send message to kafka success.")
}
