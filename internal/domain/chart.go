// Package domain contains core domain types for the Selene client.
package domain

import (
	"time"
)

// ZodiacSystem selects the zodiac used for chart positions.
type ZodiacSystem string

const (
	ZodiacTropical ZodiacSystem = "tropical"
	ZodiacSidereal ZodiacSystem = "sidereal"
)

// HouseSystem selects the house division method.
type HouseSystem string

const (
	HousesPlacidus   HouseSystem = "placidus"
	HousesWholeSign  HouseSystem = "whole_sign"
	HousesEqual      HouseSystem = "equal"
	HousesKoch       HouseSystem = "koch"
	HousesPorphyry   HouseSystem = "porphyry"
	HousesRegiomonta HouseSystem = "regiomontanus"
)

// PlanetPosition is one planet's placement as computed by the backend.
type PlanetPosition struct {
	Name      string  `json:"name"`
	Sign      string  `json:"sign"`
	Degree    float64 `json:"degree"`
	House     int     `json:"house"`
	Retrograde bool   `json:"retrograde,omitempty"`
}

// HouseCusp is one house cusp placement.
type HouseCusp struct {
	Number int     `json:"number"`
	Sign   string  `json:"sign"`
	Degree float64 `json:"degree"`
}

// Aspect is an angular relation between two chart points.
type Aspect struct {
	First  string  `json:"first"`
	Second string  `json:"second"`
	Type   string  `json:"type"`
	Orb    float64 `json:"orb"`
}

// Chart is a computed birth chart as delivered by the backend. The client
// never calculates positions itself; it only holds and displays them.
type Chart struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	BirthTime time.Time        `json:"birth_time"`
	Location  string           `json:"location"`
	Zodiac    ZodiacSystem     `json:"zodiac"`
	Houses    HouseSystem      `json:"houses"`
	Planets   []PlanetPosition `json:"planets"`
	Cusps     []HouseCusp      `json:"cusps"`
	Aspects   []Aspect         `json:"aspects"`
}

// ChartContext is the read-only chart projection attached to outgoing chat
// messages. It is assembled fresh per message and never persisted.
type ChartContext struct {
	ChartID string           `json:"chart_id,omitempty"`
	Zodiac  ZodiacSystem     `json:"zodiac,omitempty"`
	Houses  HouseSystem      `json:"houses,omitempty"`
	Planets []PlanetPosition `json:"planets,omitempty"`
	Cusps   []HouseCusp      `json:"cusps,omitempty"`
	Aspects []Aspect         `json:"aspects,omitempty"`
}

// AppContext describes where in the application the user currently is.
type AppContext struct {
	Page          string    `json:"page"`
	ActiveChartID string    `json:"active_chart_id,omitempty"`
	TransitDate   time.Time `json:"transit_date,omitempty"`
}

// Preferences carries the interpretive settings sent with every chat message.
type Preferences struct {
	Paradigms      []string `json:"paradigms,omitempty"`
	SynthesisDepth string   `json:"synthesis_depth,omitempty"`
}
