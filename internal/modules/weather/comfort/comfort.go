// Package comfort maps a temperature and relative humidity onto an advisory.
package comfort

import (
	"fmt"
	"math"
)

// Category is one comfort band; the zero value is Unknown.
type Category int

const (
	Unknown Category = iota
	ExtremeCold
	VeryCold
	CoolPleasant
	Ideal
	WarmHumid
	SlightlyWarm
	Hot
	ExtremeHeat
)

// Tone is how prominently an advisory should be displayed.
type Tone string

const (
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

// Band edges in °C. Each band includes its lower edge.
const (
	freezingC = 0.0
	coldC     = 10.0
	coolC     = 18.0
	warmC     = 26.0
	hotC      = 32.0
	extremeC  = 38.0

	// humidHumidityPct is exclusive: 70% is not humid.
	humidHumidityPct = 70.0
)

type categoryInfo struct {
	name     string
	tone     Tone
	advisory string
}

var categories = map[Category]categoryInfo{
	Unknown:      {name: "unknown", tone: ToneWarning, advisory: "Unable to determine temperature."},
	ExtremeCold:  {name: "extreme_cold", tone: ToneInfo, advisory: "Extremely cold! Frostbite risk — stay indoors and wear thermal layers."},
	VeryCold:     {name: "very_cold", tone: ToneWarning, advisory: "Very cold — dress warmly with a coat or jacket."},
	CoolPleasant: {name: "cool_pleasant", tone: ToneInfo, advisory: "Cool and pleasant, might need a light jacket in evenings."},
	Ideal:        {name: "ideal", tone: ToneSuccess, advisory: "Ideal weather — comfortable and fresh air!"},
	WarmHumid:    {name: "warm_humid", tone: ToneWarning, advisory: "Warm and humid — feels sticky, stay hydrated."},
	SlightlyWarm: {name: "slightly_warm", tone: ToneInfo, advisory: "Slightly warm — wear breathable cotton clothes."},
	Hot:          {name: "hot", tone: ToneWarning, advisory: "Hot — avoid heavy outdoor work, drink plenty of water."},
	ExtremeHeat:  {name: "extreme_heat", tone: ToneError, advisory: "Extreme heat! Stay cool and avoid direct sunlight."},
}

// Categories lists every category in display order, Unknown last.
func Categories() []Category {
	return []Category{ExtremeCold, VeryCold, CoolPleasant, Ideal, WarmHumid, SlightlyWarm, Hot, ExtremeHeat, Unknown}
}

func (c Category) String() string {
	if info, ok := categories[c]; ok {
		return info.name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) Advisory() string {
	return categories[c].advisory
}

func (c Category) Tone() Tone {
	if info, ok := categories[c]; ok {
		return info.tone
	}
	return ToneWarning
}

func (c Category) MarshalText() ([]byte, error) {
	if _, ok := categories[c]; !ok {
		return nil, fmt.Errorf("unknown comfort category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	for c, info := range categories {
		if info.name == s {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("invalid comfort category %q", s)
}

// Assessment is the outcome of Classify for one reading.
type Assessment struct {
	Category Category `json:"category"`
	Advisory string   `json:"advisory"`
	Tone     Tone     `json:"tone"`
}

// Classify picks the single category for the inputs; the first matching band
// wins. A nil, NaN or infinite temperature yields Unknown.
func Classify(temperatureC *float64, humidityPct float64) Assessment {
	c := categorize(temperatureC, humidityPct)
	return Assessment{Category: c, Advisory: c.Advisory(), Tone: c.Tone()}
}

func categorize(temperatureC *float64, humidityPct float64) Category {
	if temperatureC == nil {
		return Unknown
	}
	t := *temperatureC
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return Unknown
	}

	switch {
	case t < freezingC:
		return ExtremeCold
	case t < coldC:
		return VeryCold
	case t < coolC:
		return CoolPleasant
	case t < warmC:
		return Ideal
	case t < hotC:
		if humidityPct > humidHumidityPct {
			return WarmHumid
		}
		return SlightlyWarm
	case t < extremeC:
		return Hot
	default:
		return ExtremeHeat
	}
}
