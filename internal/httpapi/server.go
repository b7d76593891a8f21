package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vatsalyanallabothula/weather/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
