// Package logging provides the structured logger shared by every invocation.
// Entries created with WithContext carry the trace id and invocation metadata
// of the invocation the context belongs to.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/bookstore_lambda/internal/config"
	"github.com/R3E-Network/bookstore_lambda/internal/invocation"
)

// MessageKey is the JSON key holding the log message.
const MessageKey = "message"

// Logger wraps logrus with invocation-aware helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a logger for service. format is "json" or "text"; level is any
// logrus level name and falls back to info.
func New(service, level, format string) *Logger {
	return NewWithOutput(service, level, format, os.Stdout)
}

// NewWithOutput is New writing to out.
func NewWithOutput(service, level, format string, out io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			ForceColors:     true,
			TimestampFormat: "15:04:05.000",
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: MessageKey,
			},
		})
	}

	base.AddHook(&invocationHook{service: service})

	return &Logger{Logger: base, service: service}
}

// NewFromConfig creates the process logger from cfg: level and format come
// from the environment, and the service name from the function name.
func NewFromConfig(cfg *config.Config) *Logger {
	return New(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
}

// NewDefault creates an info-level JSON logger.
func NewDefault(service string) *Logger {
	return New(service, "info", "json")
}

// Service returns the service name stamped on every entry.
func (l *Logger) Service() string {
	return l.service
}

// LogRequest logs the finish line of an HTTP request. The level follows the
// response status.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	msg := fmt.Sprintf("←- %s %s %dms", method, path, duration.Milliseconds())
	switch {
	case status >= 500:
		entry.Error(msg)
	case status >= 400:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}

// ContextFields returns the invocation fields for ctx, or nil outside an
// invocation.
func ContextFields(ctx context.Context) logrus.Fields {
	rec, ok := invocation.FromContext(ctx)
	if !ok {
		return nil
	}

	fields := logrus.Fields{
		"trace_id": rec.TraceID(),
		"kind":     string(rec.Kind()),
	}
	if req, ok := rec.Request(); ok {
		fields["request"] = req
	}
	if job, ok := rec.Job(); ok {
		fields["job"] = job
	}
	return fields
}

type invocationHook struct {
	service string
}

func (h *invocationHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *invocationHook) Fire(entry *logrus.Entry) error {
	if h.service != "" {
		if _, exists := entry.Data["service"]; !exists {
			entry.Data["service"] = h.service
		}
	}
	for k, v := range ContextFields(entry.Context) {
		if _, exists := entry.Data[k]; !exists {
			entry.Data[k] = v
		}
	}
	return nil
}
