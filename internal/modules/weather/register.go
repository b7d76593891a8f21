package weather

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/vatsalyanallabothula/weather/internal/config"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/controller"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/openweather"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/repository"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/service"
)

// NewService wires the session store and the OpenWeatherMap client. A nil
// publisher disables MQTT output.
func NewService(db *sql.DB, cfg config.Config, publisher service.Publisher, logger *slog.Logger) *service.Service {
	client := openweather.NewClient(openweather.Options{
		APIKey:      cfg.OpenWeatherAPIKey,
		BaseURL:     cfg.OpenWeatherBaseURL,
		IconBaseURL: cfg.OpenWeatherIconBaseURL,
		Timeout:     cfg.OpenWeatherTimeout,
	})
	return service.NewService(repository.NewRepository(db), client, service.Options{
		TTL:       cfg.SessionTTL,
		Publisher: publisher,
		Logger:    logger,
	})
}

func RegisterFeature(mux *http.ServeMux, svc *service.Service) {
	weatherController := controller.NewWeatherController(svc)
	weatherController.RegisterRoutes(mux)
}
