package resilient

import (
	"context"

	"procurement/internal/apperr"

	"go.uber.org/zap"
)

// Notification is a user-visible message about a failed call.
type Notification struct {
	Kind     apperr.Kind
	Key      string
	Context  string
	Message  string
	Redirect bool // the session was dropped, the user must sign in again
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("kind", n.Kind.String()),
		zap.String("key", n.Key),
		zap.String("context", n.Context),
	}
	if n.Redirect {
		fields = append(fields, zap.Bool("redirect_to_login", true))
	}

	if n.Kind.Informational() {
		l.log.Info(n.Message, fields...)
		return
	}
	l.log.Warn(n.Message, fields...)
}
