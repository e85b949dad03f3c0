package reporter

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds Sentry configuration
type Config struct {
	DSN         string
	Environment string
	Release     string
}

// Reporter forwards faults that need operator attention to Sentry.
// A Reporter created without a DSN drops everything.
type Reporter struct {
	enabled bool
}

// New initializes the Sentry SDK when a DSN is configured
func New(config *Config) (*Reporter, error) {
	if config.DSN == "" {
		return &Reporter{}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         config.DSN,
		Environment: config.Environment,
		Release:     config.Release,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return &Reporter{enabled: true}, nil
}

// Capture reports err with the given tags
func (r *Reporter) Capture(err error, tags map[string]string) {
	if r == nil || !r.enabled || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent
func (r *Reporter) Flush(timeout time.Duration) {
	if r == nil || !r.enabled {
		return
	}
	sentry.Flush(timeout)
}
