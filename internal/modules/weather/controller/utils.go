package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vatsalyanallabothula/weather/internal/modules/weather/service"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/types"
)

const (
	sessionCookieName = "ws_session"
	maxLocationBody   = 4 << 10
)

func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, id string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// parseLocation accepts a JSON body or a URL-encoded form with latitude and
// longitude.
func parseLocation(w http.ResponseWriter, r *http.Request) (types.Coordinates, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(w, r.Body, maxLocationBody)

	var coords types.Coordinates
	switch mediaType {
	case "application/json":
		var payload struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			if errors.Is(err, io.EOF) {
				return types.Coordinates{}, errors.New("empty request body")
			}
			return types.Coordinates{}, fmt.Errorf("invalid JSON body: %w", err)
		}
		if payload.Latitude == nil || payload.Longitude == nil {
			return types.Coordinates{}, errors.New("latitude and longitude are required")
		}
		coords = types.Coordinates{Latitude: *payload.Latitude, Longitude: *payload.Longitude}
	case "application/x-www-form-urlencoded":
		r.Body = body
		if err := r.ParseForm(); err != nil {
			return types.Coordinates{}, fmt.Errorf("invalid form body: %w", err)
		}
		lat, err := parseRequiredFloat(r.PostForm.Get("latitude"), "latitude")
		if err != nil {
			return types.Coordinates{}, err
		}
		lon, err := parseRequiredFloat(r.PostForm.Get("longitude"), "longitude")
		if err != nil {
			return types.Coordinates{}, err
		}
		coords = types.Coordinates{Latitude: lat, Longitude: lon}
	default:
		return types.Coordinates{}, fmt.Errorf("unsupported content type %q", mediaType)
	}

	if err := coords.Validate(); err != nil {
		return types.Coordinates{}, err
	}
	return coords, nil
}

func parseRequiredFloat(s, name string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("'%s' is required", name)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' (expected number)", name)
	}
	return f, nil
}

// parseComfortQuery reads temperature and humidity. A missing or non-numeric
// temperature is reported as nil so it classifies as unknown; humidity must
// be a finite number when present.
func parseComfortQuery(r *http.Request) (temperature, humidity *float64, err error) {
	q := r.URL.Query()

	if s := strings.TrimSpace(q.Get("temperature")); s != "" {
		if f, convErr := strconv.ParseFloat(s, 64); convErr == nil {
			temperature = &f
		}
	}
	if s := strings.TrimSpace(q.Get("humidity")); s != "" {
		f, convErr := strconv.ParseFloat(s, 64)
		if convErr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil, errors.New("invalid 'humidity' (expected number)")
		}
		humidity = &f
	}
	return temperature, humidity, nil
}

// conditionsStatus maps service errors onto a status code and user-facing message.
func conditionsStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrLocationUnavailable):
		return http.StatusConflict, "No location yet. Allow location access and try again."
	case errors.Is(err, service.ErrWeatherUnavailable):
		return http.StatusBadGateway, "Unable to fetch weather data: " + err.Error()
	default:
		return http.StatusInternalServerError, "Failed to load conditions."
	}
}
