// Package notify delivers refresh alerts to operators.
package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans an alert out to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, title, text))
	}
	return errs
}

// Log records alerts in the service log, so they are kept even when no
// webhook is configured or the webhook is down.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, title, text string) error {
	fields := []zap.Field{zap.String("title", title)}
	for _, f := range parseFields(text) {
		fields = append(fields, zap.String(snake(f.key), f.value))
	}
	l.logger.Warn("refresh_alert", fields...)
	return nil
}
