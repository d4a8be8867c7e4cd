// Package chart implements the configuration-driven derivation layer: it
// binds a persisted chart configuration and an ingested table into resolved
// dimensions, the entity-dimension key space, and the validated selection
// state a renderer consumes.
package chart

import (
	"encoding/json"
	"fmt"
	"strconv"

	"sigs.k8s.io/yaml"

	"github.com/vizkit/grapher/pkg/series"
)

// Property is the chart role a dimension binds a variable to.
type Property string

const (
	PropertyX      Property = "x"
	PropertyY      Property = "y"
	PropertySize   Property = "size"
	PropertyColor  Property = "color"
	PropertyFilter Property = "filter"
)

// AddCountryMode controls how entity selection behaves.
type AddCountryMode string

const (
	// AddCountry lets the user select any number of entities.
	AddCountry AddCountryMode = "add-country"
	// ChangeCountry constrains the selection to a single entity; a new
	// selection evicts the old one.
	ChangeCountry AddCountryMode = "change-country"
	// SelectionDisabled hides entity selection entirely.
	SelectionDisabled AddCountryMode = "disabled"
)

// DimensionSpec is the persisted form of a dimension: a chart role, a
// variable id, and display overrides that shadow the resolved column's own
// metadata.
type DimensionSpec struct {
	Property   Property       `json:"property"`
	VariableID int            `json:"variableId"`
	Display    series.Display `json:"display,omitempty"`
}

// SelectionEntry is one persisted selected series: an entity within the
// dimension at the given index of the dimensions list.
type SelectionEntry struct {
	EntityID int    `json:"entityId"`
	Index    int    `json:"index"`
	Color    string `json:"color,omitempty"`
}

// Config is the persisted configuration surface. Everything else the engine
// exposes is derived, ephemeral, and never persisted.
type Config struct {
	Title               string           `json:"title,omitempty"`
	Type                string           `json:"type,omitempty"`
	Dimensions          []DimensionSpec  `json:"dimensions,omitempty"`
	SelectedData        []SelectionEntry `json:"selectedData,omitempty"`
	MinTime             *TimeBound       `json:"minTime,omitempty"`
	MaxTime             *TimeBound       `json:"maxTime,omitempty"`
	MinPopulationFilter *int             `json:"minPopulationFilter,omitempty"`
	AddCountryMode      AddCountryMode   `json:"addCountryMode,omitempty"`
}

// LoadConfig parses a persisted configuration from YAML or JSON.
func LoadConfig(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse chart config: %w", err)
	}
	return config, nil
}

// Time bound literals: the wire format has no native infinity.
const (
	earliestLiteral = "earliest"
	latestLiteral   = "latest"
)

// TimeBound is a numeric time bound or one of the two infinities.
type TimeBound struct {
	Value    int
	Infinity int // -1 earliest, +1 latest, 0 finite
}

func TimeBoundValue(v int) TimeBound { return TimeBound{Value: v} }
func EarliestTime() TimeBound        { return TimeBound{Infinity: -1} }
func LatestTime() TimeBound          { return TimeBound{Infinity: 1} }

// Resolve clamps the bound into the available [min, max] time range.
func (b TimeBound) Resolve(min, max int) int {
	switch {
	case b.Infinity < 0:
		return min
	case b.Infinity > 0:
		return max
	case b.Value < min:
		return min
	case b.Value > max:
		return max
	default:
		return b.Value
	}
}

func (b TimeBound) MarshalJSON() ([]byte, error) {
	switch {
	case b.Infinity < 0:
		return json.Marshal(earliestLiteral)
	case b.Infinity > 0:
		return json.Marshal(latestLiteral)
	default:
		return json.Marshal(b.Value)
	}
}

func (b *TimeBound) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*b = TimeBoundValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid time bound %s", string(data))
	}
	switch s {
	case earliestLiteral:
		*b = EarliestTime()
	case latestLiteral:
		*b = LatestTime()
	default:
		// tolerate numeric strings, some stored configs carry them
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid time bound %q", s)
		}
		*b = TimeBoundValue(n)
	}
	return nil
}
