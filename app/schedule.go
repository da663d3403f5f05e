package app

import (
	"context"
	"fmt"
	"time"

	"incidentwatch/logging"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct {
	log *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}

// NewScheduler registers a refresh on the cron expression expr. A tick that fires while the
// previous refresh is still running is skipped. The caller starts and stops
// the returned cron.
func NewScheduler(expr string, timeout time.Duration, refresh func(ctx context.Context) error) (*cron.Cron, error) {
	logger := cronLogger{log: logging.WithPrefix("cron")}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := c.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		started := time.Now()
		if err := refresh(ctx); err != nil {
			logger.log.Error("scheduled refresh failed", "err", err)
			return
		}
		logger.log.Info("scheduled refresh complete", "took", time.Since(started).Round(time.Millisecond))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add cron job %q: %w", expr, err)
	}
	return c, nil
}
