package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vatsalyanallabothula/weather/internal/modules/weather/comfort"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/repository"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/types"
)

// ErrLocationUnavailable means the session has no position yet, so nothing
// can be fetched.
var ErrLocationUnavailable = errors.New("location unavailable")

// ErrWeatherUnavailable wraps every failure of the upstream fetch.
var ErrWeatherUnavailable = errors.New("weather unavailable")

// ErrSessionNotFound is re-exported so callers need not import the repository.
var ErrSessionNotFound = repository.ErrSessionNotFound

// WeatherFetcher is implemented by openweather.Client.
type WeatherFetcher interface {
	CurrentWeather(ctx context.Context, coords types.Coordinates) (types.WeatherReading, error)
	IconURL(code string) string
}

// Publisher receives every freshly fetched observation.
type Publisher interface {
	PublishConditions(ctx context.Context, obs Observation) error
}

// Observation is a reading for a session together with its comfort assessment.
type Observation struct {
	SessionID   string               `json:"sessionId"`
	Coordinates types.Coordinates    `json:"coordinates"`
	Reading     types.WeatherReading `json:"reading"`
	IconURL     string               `json:"iconUrl"`
	Comfort     comfort.Assessment   `json:"comfort"`
	// Cached is false only on the request that triggered the upstream fetch.
	Cached bool `json:"cached"`
}

type Options struct {
	TTL       time.Duration
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

type Service struct {
	repository repository.SessionRepository
	weather    WeatherFetcher
	publisher  Publisher
	logger     *slog.Logger
	ttl        time.Duration
	now        func() time.Time
	newID      func() string
}

func NewService(repo repository.SessionRepository, weather WeatherFetcher, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		repository: repo,
		weather:    weather,
		publisher:  opts.Publisher,
		logger:     logger,
		ttl:        ttl,
		now:        now,
		newID:      newID,
	}
}

// TTL is how long a session lives after creation.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) StartSession(ctx context.Context) (types.Session, error) {
	sess, err := s.repository.CreateSession(ctx, s.newID(), s.now(), s.ttl)
	if err != nil {
		return types.Session{}, fmt.Errorf("start session: %w", err)
	}
	s.logger.Debug("session started", "session_id", sess.ID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

func (s *Service) Session(ctx context.Context, id string) (types.Session, error) {
	if id == "" {
		return types.Session{}, ErrSessionNotFound
	}
	return s.repository.GetSession(ctx, id, s.now())
}

func (s *Service) SetLocation(ctx context.Context, id string, coords types.Coordinates) error {
	if err := coords.Validate(); err != nil {
		return err
	}
	if err := s.repository.SetLocation(ctx, id, coords, s.now()); err != nil {
		return err
	}
	s.logger.Debug("session located", "session_id", id, "coordinates", coords.String())
	return nil
}

// ForgetLocation drops the position and any reading so the browser detects again.
func (s *Service) ForgetLocation(ctx context.Context, id string) error {
	return s.repository.ClearLocation(ctx, id, s.now())
}

// Conditions returns the session's observation, fetching from upstream only
// when no reading is cached. Upstream failures wrap ErrWeatherUnavailable and
// are never retried.
func (s *Service) Conditions(ctx context.Context, id string) (Observation, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return Observation{}, err
	}
	if !sess.Located() {
		return Observation{}, ErrLocationUnavailable
	}
	if sess.Reading != nil {
		return s.observe(sess.ID, *sess.Coordinates, *sess.Reading, true), nil
	}

	reading, err := s.weather.CurrentWeather(ctx, *sess.Coordinates)
	if err != nil {
		s.logger.Warn("weather fetch failed", "session_id", id, "error", err)
		return Observation{}, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}

	err = s.repository.SaveReading(ctx, sess.ID, reading, s.now())
	if errors.Is(err, repository.ErrReadingExists) {
		// A concurrent request stored first; its reading wins.
		current, getErr := s.repository.GetSession(ctx, sess.ID, s.now())
		if getErr != nil {
			return Observation{}, getErr
		}
		if current.Reading == nil || current.Coordinates == nil {
			return Observation{}, ErrLocationUnavailable
		}
		return s.observe(current.ID, *current.Coordinates, *current.Reading, true), nil
	}
	if err != nil {
		return Observation{}, fmt.Errorf("save reading: %w", err)
	}

	obs := s.observe(sess.ID, *sess.Coordinates, reading, false)
	s.logger.Info("conditions fetched",
		"session_id", sess.ID,
		"location", reading.LocationName,
		"category", obs.Comfort.Category.String(),
	)
	s.publish(ctx, obs)
	return obs, nil
}

// Classify is the stateless classifier with missing humidity treated as 0.
func (s *Service) Classify(temperatureC, humidityPct *float64) comfort.Assessment {
	h := 0.0
	if humidityPct != nil {
		h = *humidityPct
	}
	return comfort.Classify(temperatureC, h)
}

func (s *Service) observe(id string, coords types.Coordinates, reading types.WeatherReading, cached bool) Observation {
	return Observation{
		SessionID:   id,
		Coordinates: coords,
		Reading:     reading,
		IconURL:     s.weather.IconURL(reading.IconCode),
		Comfort:     s.Classify(reading.TemperatureC, reading.HumidityPct),
		Cached:      cached,
	}
}

func (s *Service) publish(ctx context.Context, obs Observation) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishConditions(ctx, obs); err != nil {
		s.logger.Warn("publish conditions failed", "session_id", obs.SessionID, "error", err)
	}
}
