package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/openmusic/internal/app"
	"github.com/cuongbtq/openmusic/internal/config"
	"github.com/cuongbtq/openmusic/shared/logger"
	"github.com/cuongbtq/openmusic/shared/postgresql"
	"github.com/cuongbtq/openmusic/shared/rabbitmq"
	"github.com/spf13/cobra"
)

// Runtime opens configuration and connections on first use so that help
// and flag errors never touch the network
type Runtime struct {
	configPath string
	cfg        *config.Config
	logger     *logger.Logger
	db         *postgresql.Client
	broker     *rabbitmq.Client
}

// Config loads the configuration once
func (r *Runtime) Config() (*config.Config, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}

	cfg, err := app.LoadConfig(r.configPath, "EXPORTCTL_CONFIG_PATH", "configs/api-service/config.yaml")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r.cfg = cfg
	return cfg, nil
}

// Logger returns the command logger
func (r *Runtime) Logger() (*slog.Logger, error) {
	if r.logger != nil {
		return r.logger.Logger, nil
	}

	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}

	l, err := app.InitLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	r.logger = l
	return l.Logger, nil
}

// Database connects to PostgreSQL once
func (r *Runtime) Database() (*postgresql.Client, error) {
	if r.db != nil {
		return r.db, nil
	}

	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	l, err := r.Logger()
	if err != nil {
		return nil, err
	}

	db, err := app.InitPostgreSQL(&cfg.Database, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	r.db = db
	return db, nil
}

// Broker connects to RabbitMQ once
func (r *Runtime) Broker() (*rabbitmq.Client, error) {
	if r.broker != nil {
		return r.broker, nil
	}

	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	l, err := r.Logger()
	if err != nil {
		return nil, err
	}

	broker, err := app.InitRabbitMQ(&cfg.RabbitMQ, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	r.broker = broker
	return broker, nil
}

// Close releases whatever was opened
func (r *Runtime) Close() {
	if r.broker != nil {
		_ = r.broker.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
	if r.logger != nil {
		_ = r.logger.Close()
	}
}

// Execute runs exportctl and releases its connections afterwards
func Execute(ctx context.Context) error {
	rt := &Runtime{}
	defer rt.Close()

	return NewRootCmd(rt).ExecuteContext(ctx)
}

// NewRootCmd builds the exportctl command tree
func NewRootCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "exportctl",
		Short:         "Operate the playlist export pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to configuration file")

	jobs := NewJobsRootCmd()
	jobs.AddCommand(NewJobsGetCmd(rt), NewJobsListCmd(rt))

	cmd.AddCommand(
		NewMigrateCmd(rt),
		NewReconcileCmd(rt),
		jobs,
	)

	return cmd
}
