package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MQTTClient is satisfied by *mqtt.Publisher.
type MQTTClient interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// conditionsMessage is the wire format on {prefix}/sessions/{id}/conditions.
type conditionsMessage struct {
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	TemperatureC *float64  `json:"temperature_c,omitempty"`
	HumidityPct  *float64  `json:"humidity_pct,omitempty"`
	WindSpeedMps *float64  `json:"wind_speed_mps,omitempty"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	Category     string    `json:"category"`
	Advisory     string    `json:"advisory"`
}

type mqttPublisher struct {
	client MQTTClient
	prefix string
}

// NewMQTTPublisher publishes observations through client under prefix.
func NewMQTTPublisher(client MQTTClient, prefix string) Publisher {
	return &mqttPublisher{client: client, prefix: strings.Trim(prefix, "/")}
}

func (p *mqttPublisher) PublishConditions(ctx context.Context, obs Observation) error {
	payload, err := encodeConditions(obs)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, conditionsTopic(p.prefix, obs.SessionID), payload)
}

func conditionsTopic(prefix, sessionID string) string {
	return fmt.Sprintf("%s/sessions/%s/conditions", prefix, sessionID)
}

func encodeConditions(obs Observation) ([]byte, error) {
	msg := conditionsMessage{
		SessionID:    obs.SessionID,
		Timestamp:    obs.Reading.FetchedAt.UTC(),
		LocationName: obs.Reading.LocationName,
		Latitude:     obs.Coordinates.Latitude,
		Longitude:    obs.Coordinates.Longitude,
		TemperatureC: obs.Reading.TemperatureC,
		HumidityPct:  obs.Reading.HumidityPct,
		WindSpeedMps: obs.Reading.WindSpeedMps,
		Description:  obs.Reading.Description,
		Icon:         obs.Reading.IconCode,
		Category:     obs.Comfort.Category.String(),
		Advisory:     obs.Comfort.Advisory,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}
	return b, nil
}
