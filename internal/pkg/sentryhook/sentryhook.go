// Package sentryhook forwards error-level zap entries to Sentry.
package sentryhook

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap/zapcore"
)

// Settings represents the configuration required to bootstrap Sentry.
type Settings struct {
	DSN         string
	Environment string
	Release     string
}

// Init creates a Sentry hub. A blank DSN disables reporting and returns a nil hub.
func Init(settings Settings) (*sentry.Hub, func(), error) {
	if settings.DSN == "" {
		return nil, func() {}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         settings.DSN,
		Environment: settings.Environment,
		Release:     settings.Release,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "error initializing sentry client")
	}

	hub := sentry.NewHub(client, sentry.NewScope())
	flush := func() {
		hub.Flush(2 * time.Second)
	}
	return hub, flush, nil
}

// Core is a zapcore.Core that reports entries at or above its level.
type Core struct {
	zapcore.LevelEnabler
	hub    *sentry.Hub
	fields []zapcore.Field
}

// NewCore returns a core reporting to hub. A nil hub yields a no-op core.
func NewCore(hub *sentry.Hub, level zapcore.Level) zapcore.Core {
	if hub == nil {
		return zapcore.NewNopCore()
	}
	return &Core{LevelEnabler: level, hub: hub}
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &Core{LevelEnabler: c.LevelEnabler, hub: c.hub, fields: merged}
}

func (c *Core) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *Core) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	var cause error
	for _, f := range append(append([]zapcore.Field{}, c.fields...), fields...) {
		if f.Type == zapcore.ErrorType {
			if err, ok := f.Interface.(error); ok && cause == nil {
				cause = err
				continue
			}
		}
		f.AddTo(enc)
	}

	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(entry.Level))
		scope.SetContext("log", sentry.Context(enc.Fields))
		if entry.Caller.Defined {
			scope.SetTag("caller", entry.Caller.TrimmedPath())
		}
		if cause == nil {
			c.hub.CaptureMessage(entry.Message)
			return
		}
		c.hub.CaptureException(errors.New(entry.Message + ": " + cause.Error()))
	})
	return nil
}

func (c *Core) Sync() error {
	c.hub.Flush(2 * time.Second)
	return nil
}

func sentryLevel(l zapcore.Level) sentry.Level {
	switch l {
	case zapcore.DebugLevel:
		return sentry.LevelDebug
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	default:
		return sentry.LevelFatal
	}
}
