package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/vatsalyanallabothula/weather/internal/modules/weather/comfort"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/service"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/types"
)

// ConditionsService is the part of *service.Service the handlers use.
type ConditionsService interface {
	StartSession(ctx context.Context) (types.Session, error)
	Session(ctx context.Context, id string) (types.Session, error)
	SetLocation(ctx context.Context, id string, coords types.Coordinates) error
	ForgetLocation(ctx context.Context, id string) error
	Conditions(ctx context.Context, id string) (service.Observation, error)
	Classify(temperatureC, humidityPct *float64) comfort.Assessment
	TTL() time.Duration
}

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	service ConditionsService
}

func NewWeatherController(svc ConditionsService) WeatherController {
	return &weatherControllerImpl{service: svc}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/conditions", c.handleConditionsPartial)
	mux.HandleFunc("GET /api/v1/conditions", c.handleConditions)
	mux.HandleFunc("POST /api/v1/location", c.handleSetLocation)
	mux.HandleFunc("DELETE /api/v1/location", c.handleForgetLocation)
	mux.HandleFunc("GET /api/v1/comfort", c.handleComfort)
}
