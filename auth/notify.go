package auth

import (
	"context"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a user-facing message, shown by the host as a toast or flash.
type Notification struct {
	Level   Level
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier writes notifications to a logger. It is the default when the host has no UI.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) {
	entry := l.Log.WithField("notification", true)
	if n.Level == LevelError {
		entry.Warn(n.Message)
		return
	}
	entry.Info(n.Message)
}
