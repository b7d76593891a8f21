package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCoordinates is returned by Coordinates.Validate.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate requires finite values within the WGS84 ranges.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) {
		return fmt.Errorf("%w: latitude is not a finite number", ErrInvalidCoordinates)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("%w: longitude is not a finite number", ErrInvalidCoordinates)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinates, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinates, c.Longitude)
	}
	return nil
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

// WeatherReading is the current conditions fetched once per session. Nil
// numeric fields mean the upstream response omitted them.
type WeatherReading struct {
	LocationName string    `json:"locationName"`
	Description  string    `json:"description"`
	IconCode     string    `json:"iconCode"`
	TemperatureC *float64  `json:"temperatureC"`
	HumidityPct  *float64  `json:"humidityPct"`
	WindSpeedMps *float64  `json:"windSpeedMps"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

type Session struct {
	ID          string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Coordinates *Coordinates
	Reading     *WeatherReading
}

// Located reports whether the browser has handed over a position.
func (s Session) Located() bool {
	return s.Coordinates != nil
}
