// Package logging builds the slog handler used by font-sources.
//
// Records are written as JSON lines by zap, reached through the logr bridge
// (go-logr/zapr). Level filtering happens in front of the bridge so slog
// levels keep their meaning.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	level  slog.Leveler
	writer io.Writer
}

// Option configures NewHandler
type Option func(*options)

// WithLevel sets the minimum level written
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithWriter sets the destination, stderr by default
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// NewHandler returns a JSON slog.Handler backed by zap
func NewHandler(opts ...Option) slog.Handler {
	o := &options{level: slog.LevelInfo, writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.MessageKey = "msg"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = encodeLevel

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(o.writer),
		zap.LevelEnablerFunc(func(zapcore.Level) bool { return true }),
	)
	logger := zapr.NewLoggerWithOptions(zap.New(core), zapr.ErrorKey("error"))

	return &levelHandler{handler: logr.ToSlogHandler(logger), level: o.level}
}

// encodeLevel names levels below zap's debug, which is where slog debug
// records end up after the logr bridge, "debug"
func encodeLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level < zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	zapcore.LowercaseLevelEncoder(level, enc)
}

// ParseLevel maps a level name to a slog.Level. An empty name is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// levelHandler drops records below level before they reach the bridge
type levelHandler struct {
	handler slog.Handler
	level   slog.Leveler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{handler: h.handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{handler: h.handler.WithGroup(name), level: h.level}
}
