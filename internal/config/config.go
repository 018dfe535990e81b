package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Kafka   KafkaConfig
	Redis   RedisConfig
	Service ServiceConfig
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServiceConfig struct {
	Port string
}

// Load reads configuration from the environment, with a .env file as an
// optional source for local runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	rawDB := getEnv("REDIS_DB", "0")
	redisDB, err := strconv.Atoi(rawDB)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB %q: %w", rawDB, err)
	}

	return &Config{
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "orders"),
			GroupID: getEnv("KAFKA_GROUP_ID", "order-stats-workers"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Service: ServiceConfig{
			Port: getEnv("SERVICE_PORT", "8081"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
