package app

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/openmusic/internal/config"
	"github.com/cuongbtq/openmusic/shared/logger"
	"github.com/cuongbtq/openmusic/shared/mailer"
	"github.com/cuongbtq/openmusic/shared/postgresql"
	"github.com/cuongbtq/openmusic/shared/rabbitmq"
	"github.com/cuongbtq/openmusic/shared/redis"
	"github.com/cuongbtq/openmusic/shared/reporter"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
)

// LoadConfig loads .env when present, then the YAML configuration at path.
// An empty path falls back to envVar and then defaultPath.
func LoadConfig(path, envVar, defaultPath string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	if path == "" {
		path = os.Getenv(envVar)
	}
	if path == "" {
		path = defaultPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// InitPostgreSQL initializes the PostgreSQL database client
func InitPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectRetries:  cfg.ConnectRetries,
		ConnectInterval: cfg.ConnectInterval,
		ConnectTimeout:  cfg.ConnectTimeout,
	}, logger)
}

// RabbitMQClientConfig maps the rabbitmq section to the client configuration.
// The API and the worker must declare identical topology, so both use this.
func RabbitMQClientConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.DeadLetter.Exchange,
		DeadLetterQueue:    cfg.DeadLetter.Queue,
		DeadLetterKey:      cfg.DeadLetter.RoutingKey,
		PublisherConfirms:  cfg.Publish.Confirms,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}

// InitRabbitMQ initializes the RabbitMQ client
func InitRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(RabbitMQClientConfig(cfg), logger)
}

// InitRedis initializes the Redis client backing the likes cache
func InitRedis(cfg *config.RedisConfig, logger *slog.Logger) *goredis.Client {
	return redis.NewClient(&redis.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)
}

// InitMailer initializes the SMTP sender
func InitMailer(cfg *config.SMTPConfig, logger *slog.Logger) (*mailer.Sender, error) {
	return mailer.NewSender(&mailer.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Username:  cfg.Username,
		Password:  cfg.Password,
		From:      cfg.From,
		StartTLS:  cfg.StartTLS,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}, logger)
}

// InitReporter initializes error reporting. Without a DSN the reporter drops everything.
func InitReporter(cfg *config.Config) (*reporter.Reporter, error) {
	return reporter.New(&reporter.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.App.Environment,
		Release:     cfg.App.Version,
	})
}
