package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go-retrytopic/internal/retry"

	"github.com/joho/godotenv"
)

type Config struct {
	Kafka    KafkaConfig
	Logging  LoggingConfig
	Consumer ConsumerConfig
	Producer ProducerConfig
	Retry    RetryConfig
}

type KafkaConfig struct {
	Brokers []string
}

type LoggingConfig struct {
	Level string
}

type ConsumerConfig struct {
	Topic         string
	GroupID       string
	Workers       int
	FetchMinBytes int
	FetchMaxBytes int
}

type ProducerConfig struct {
	Acks       int
	Retries    int
	Idempotent bool
}

// RetryConfig describes the retry-chain topology: one retry topic per delay,
// then the dead-letter topic.
type RetryConfig struct {
	Delays            []time.Duration
	RetrySuffix       string
	DLTSuffix         string
	Partitions        int
	AttemptsPerTopic  int
	MetricsListenAddr string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	return &Config{
		Kafka: KafkaConfig{
			Brokers: parseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092")),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Consumer: ConsumerConfig{
			Topic:         getEnv("KAFKA_CONSUMER_TOPIC", "orders"),
			GroupID:       getEnv("KAFKA_CONSUMER_GROUP_ID", "order-processor-group"),
			Workers:       getEnvInt("KAFKA_CONSUMER_WORKERS", 5),
			FetchMinBytes: getEnvInt("KAFKA_CONSUMER_FETCH_MIN_BYTES", 1024),
			FetchMaxBytes: getEnvInt("KAFKA_CONSUMER_FETCH_MAX_BYTES", 10485760),
		},
		Producer: ProducerConfig{
			Acks:       parseAcks(getEnv("KAFKA_PRODUCER_ACKS", "all")),
			Retries:    getEnvInt("KAFKA_PRODUCER_RETRIES", 3),
			Idempotent: getEnvBool("KAFKA_PRODUCER_IDEMPOTENT", true),
		},
		Retry: RetryConfig{
			Delays:            getEnvDurations("RETRY_TOPIC_DELAYS", []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second}),
			RetrySuffix:       getEnv("RETRY_TOPIC_SUFFIX", "-retry"),
			DLTSuffix:         getEnv("RETRY_DLT_SUFFIX", "-dlt"),
			Partitions:        getEnvInt("RETRY_TOPIC_PARTITIONS", 3),
			AttemptsPerTopic:  getEnvInt("RETRY_ATTEMPTS_PER_TOPIC", 1),
			MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ":9090"),
		},
	}
}

// DestinationChain builds the ordered destination chain for the configured
// source topic: source, one retry topic per delay, then the dead-letter
// topic at the end.
func (c *Config) DestinationChain() []retry.Destination {
	chain := make([]retry.Destination, 0, len(c.Retry.Delays)+2)
	chain = append(chain, retry.Destination{
		Topic:       c.Consumer.Topic,
		Partitions:  c.Retry.Partitions,
		MaxAttempts: c.Retry.AttemptsPerTopic,
	})
	for i, delay := range c.Retry.Delays {
		chain = append(chain, retry.Destination{
			Topic:       fmt.Sprintf("%s%s-%d", c.Consumer.Topic, c.Retry.RetrySuffix, i+1),
			Partitions:  c.Retry.Partitions,
			Delay:       delay,
			MaxAttempts: c.Retry.AttemptsPerTopic,
		})
	}
	chain = append(chain, retry.Destination{
		Topic:      c.Consumer.Topic + c.Retry.DLTSuffix,
		Partitions: c.Retry.Partitions,
	})
	return chain
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurations(key string, defaultValue []time.Duration) []time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		result = append(result, d)
	}
	return result
}

func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, broker := range parts {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseAcks(acks string) int {
	switch strings.ToLower(acks) {
	case "all", "-1":
		return -1
	case "0":
		return 0
	case "1":
		return 1
	default:
		return -1 // default to all
	}
}
