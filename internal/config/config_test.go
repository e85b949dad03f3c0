package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENMUSIC_TEST_DB_PASSWORD", "s3cret")

			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "localhost", cfg.Database.Host)
			assert.Equal(t, "s3cret", cfg.Database.Password)
			assert.Equal(t, "export", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "export:playlist", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, "export.dlx", cfg.RabbitMQ.DeadLetter.Exchange)
			assert.Equal(t, "export:playlist.dlq", cfg.RabbitMQ.DeadLetter.Queue)
			assert.True(t, cfg.RabbitMQ.Publish.Confirms)
			assert.Equal(t, 4, cfg.RabbitMQ.Consumer.PrefetchCount)
			assert.Equal(t, 3, cfg.Export.MaxAttempts)
			assert.Equal(t, 30*time.Minute, cfg.Export.LikesCacheTTL)
			assert.Equal(t, "noreply@openmusic.dev", cfg.SMTP.From)
			assert.Equal(t, "openmusic-api-service", cfg.App.Name)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/missing_database.yaml")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Export.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Export.LikesCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.Export.ReconcileAfter)
	assert.Equal(t, 100, cfg.Export.ReconcileBatch)
	assert.Equal(t, "direct", cfg.RabbitMQ.Exchange.Type)
	assert.Equal(t, 1, cfg.RabbitMQ.Consumer.PrefetchCount)
	assert.Equal(t, "export-worker", cfg.RabbitMQ.Consumer.Tag)
	assert.Equal(t, 3, cfg.Database.ConnectRetries)
	assert.Equal(t, 2*time.Second, cfg.Database.ConnectInterval)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "openmusic",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "export"},
			Queue:    QueueConfig{Name: "export:playlist"},
			DeadLetter: DeadLetterConfig{
				Exchange: "export.dlx",
				Queue:    "export:playlist.dlq",
			},
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		SMTP:  SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@openmusic.dev"},
		Export: ExportConfig{
			MaxAttempts:   3,
			LikesCacheTTL: 30 * time.Minute,
		},
		Worker: WorkerConfig{
			Concurrency:     4,
			JobTimeout:      time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "server port too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "server port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "empty database host", mutate: func(c *Config) { c.Database.Host = "" }, errString: "database host is required"},
		{name: "empty database name", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
		{name: "empty rabbitmq host", mutate: func(c *Config) { c.RabbitMQ.Host = "" }, errString: "rabbitmq host is required"},
		{name: "empty exchange name", mutate: func(c *Config) { c.RabbitMQ.Exchange.Name = "" }, errString: "rabbitmq exchange name is required"},
		{name: "empty queue name", mutate: func(c *Config) { c.RabbitMQ.Queue.Name = "" }, errString: "rabbitmq queue name is required"},
		{name: "empty redis host", mutate: func(c *Config) { c.Redis.Host = "" }, errString: "redis host is required"},
		{name: "zero cache ttl", mutate: func(c *Config) { c.Export.LikesCacheTTL = 0 }, errString: "likes_cache_ttl"},
		{name: "zero max attempts", mutate: func(c *Config) { c.Export.MaxAttempts = 0 }, errString: "max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "server port not required", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, errString: "worker concurrency"},
		{name: "zero job timeout", mutate: func(c *Config) { c.Worker.JobTimeout = 0 }, errString: "worker job_timeout"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.Worker.ShutdownTimeout = 0 }, errString: "worker shutdown_timeout"},
		{name: "missing dead-letter queue", mutate: func(c *Config) { c.RabbitMQ.DeadLetter.Queue = "" }, errString: "dead_letter"},
		{name: "missing smtp host", mutate: func(c *Config) { c.SMTP.Host = "" }, errString: "smtp host is required"},
		{name: "invalid smtp port", mutate: func(c *Config) { c.SMTP.Port = -1 }, errString: "invalid smtp port"},
		{name: "missing smtp from", mutate: func(c *Config) { c.SMTP.From = "" }, errString: "smtp from address is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
