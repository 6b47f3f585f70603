package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const redacted = "[redacted]"

// sensitiveKeys never reach the log stream, whatever group they sit in.
var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"authorization": {},
	"token":         {},
	"jwt_secret":    {},
	"password":      {},
	"dsn":           {},
}

// NewJSONLogger writes JSON lines to stdout tagged with the service name.
func NewJSONLogger(service, level string) *slog.Logger {
	return newJSONLogger(os.Stdout, service, level)
}

func newJSONLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redact,
	})
	return slog.New(handler).With("service", service)
}

func redact(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(attr.Key)]; ok && attr.Value.Kind() != slog.KindGroup {
		return slog.String(attr.Key, redacted)
	}
	return attr
}

// parseLevel maps LOG_LEVEL values onto slog levels; unknown values mean info.
func parseLevel(level string) slog.Level {
	var out slog.Level
	if err := out.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		if strings.EqualFold(strings.TrimSpace(level), "warning") {
			return slog.LevelWarn
		}
		return slog.LevelInfo
	}
	return out
}
