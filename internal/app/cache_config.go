package app

import (
	"strings"

	"github.com/zenebedagim/dental-clinic-sub002/internal/ack"
	"github.com/zenebedagim/dental-clinic-sub002/internal/cache"
	"github.com/zenebedagim/dental-clinic-sub002/internal/database"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:   strings.TrimSpace(c.Redis.Address),
		Username:  strings.TrimSpace(c.Redis.Username),
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		TLS:       c.Redis.TLS,
		Timeout:   c.Redis.Timeout,
		KeyPrefix: c.Redis.KeyPrefix,
	}
}

// OpenConfig converts the database section into database.Config for the selected driver.
func (c DatabaseConfig) OpenConfig() database.Config {
	cfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}

// KafkaSinkConfig converts the ack section into the Kafka sink configuration.
func (c AckConfig) KafkaSinkConfig() ack.KafkaConfig {
	brokers := make([]string, 0, len(c.Kafka.Brokers))
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return ack.KafkaConfig{
		Brokers:      brokers,
		Topic:        c.Kafka.Topic,
		BatchTimeout: c.Kafka.BatchTimeout,
		Async:        c.Kafka.Async,
	}
}
