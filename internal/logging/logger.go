package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/vatsalyanallabothula/weather/internal/config"
)

const redacted = "[REDACTED]"

func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newWithWriter(os.Stdout, cfg, version, appName)
}

func newWithWriter(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	replace := redactSecret(cfg.OpenWeatherAPIKey)

	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:       cfg.LogLevel,
			AddSource:   true,
			TimeFormat:  time.Kitchen,
			ReplaceAttr: replace,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       cfg.LogLevel,
		ReplaceAttr: replace,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

// redactSecret masks the OpenWeatherMap key wherever it shows up in a string
// or error attribute, e.g. a request URL echoed back by a failing dependency.
func redactSecret(secret string) func(groups []string, a slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if secret == "" {
			return a
		}
		switch a.Value.Kind() {
		case slog.KindString:
			if s := a.Value.String(); strings.Contains(s, secret) {
				return slog.String(a.Key, strings.ReplaceAll(s, secret, redacted))
			}
		case slog.KindAny:
			if err, ok := a.Value.Any().(error); ok && strings.Contains(err.Error(), secret) {
				return slog.String(a.Key, strings.ReplaceAll(err.Error(), secret, redacted))
			}
		}
		return a
	}
}
