package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys stamped on every entry
const (
	FieldApp     = "app"
	FieldVersion = "version"
)

// Options select the logger built by New
type Options struct {
	// JSON switches the console encoder to JSON for log shippers.
	JSON bool
	// Debug lowers the level so prompts, replies and tool calls are logged.
	Debug bool
	// App and Version are attached to every entry when set.
	App     string
	Version string
}

// New builds the application logger. Logs go to stderr so that command
// output on stdout, such as the ranking table, stays clean.
func New(opts Options) (*zap.Logger, error) {
	return config(opts).Build()
}

func config(opts Options) zap.Config {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encoding := "console"
	if opts.JSON {
		encoding = "json"
	}

	initial := map[string]any{}
	for _, f := range StringFields(
		StringField{Key: FieldApp, Value: opts.App},
		StringField{Key: FieldVersion, Value: opts.Version},
	) {
		initial[f.Key] = f.String
	}

	return zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    initial,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.MillisDurationEncoder,
		},
	}
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
