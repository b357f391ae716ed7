package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Ledger   LedgerConfig   `yaml:"ledger"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	RecordChangedTopicName string `yaml:"record_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LedgerConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	// Secret the external identity provider signs session tokens with.
	// Overridable via the JWT_SECRET env var so it stays out of the file.
	JWTSecret string `yaml:"jwt_secret"`

	SnapshotTTLSeconds      int `yaml:"snapshot_ttl_seconds"`
	WriteRateLimitPerMinute int `yaml:"write_rate_limit_per_minute"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if s := os.Getenv("JWT_SECRET"); s != "" {
		config.Ledger.JWTSecret = s
	}

	return &config, nil
}
