// Package series implements the legacy variable wire format and the
// ingestion join that merges independently indexed variable series into one
// dense row-per-(entity,time) table.
package series

import (
	"encoding/json"
	"fmt"
)

// VariablesAndEntityKey is the sole ingestion input format: a bundle of
// sparse per-variable series plus the entity-id lookup they are keyed by.
type VariablesAndEntityKey struct {
	Variables map[string]Variable   `json:"variables"`
	EntityKey map[string]EntityMeta `json:"entityKey"`
}

// EntityMeta resolves a numeric entity id to its name and short code.
type EntityMeta struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Source identifies where a variable's measurements came from.
type Source struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Link string `json:"link,omitempty"`
}

// Display carries the presentation overrides a variable declares for itself.
// Dimension-level overrides shadow these, and these shadow the variable's
// own top-level metadata.
type Display struct {
	Name                 string   `json:"name,omitempty"`
	Unit                 string   `json:"unit,omitempty"`
	ShortUnit            string   `json:"shortUnit,omitempty"`
	YearIsDay            bool     `json:"yearIsDay,omitempty"`
	ZeroDay              string   `json:"zeroDay,omitempty"`
	EntityAnnotationsMap string   `json:"entityAnnotationsMap,omitempty"`
	ConversionFactor     *float64 `json:"conversionFactor,omitempty"`
	Tolerance            *int     `json:"tolerance,omitempty"`
	NumDecimalPlaces     *int     `json:"numDecimalPlaces,omitempty"`
	IsProjection         bool     `json:"isProjection,omitempty"`
}

// Variable is one sparse measurement series: values[i] was observed for
// entities[i] at years[i]. When display.yearIsDay is set the "years" are day
// offsets from the variable's zero day.
type Variable struct {
	ID          int     `json:"id"`
	Name        string  `json:"name,omitempty"`
	Entities    []int   `json:"entities"`
	Years       []int   `json:"years"`
	Values      []any   `json:"values"`
	Unit        string  `json:"unit,omitempty"`
	ShortUnit   string  `json:"shortUnit,omitempty"`
	Description string  `json:"description,omitempty"`
	Coverage    string  `json:"coverage,omitempty"`
	DatasetID   int     `json:"datasetId,omitempty"`
	DatasetName string  `json:"datasetName,omitempty"`
	Source      Source  `json:"source,omitempty"`
	Display     Display `json:"display,omitempty"`
}

// Parse decodes a legacy wire-format payload.
func Parse(data []byte) (*VariablesAndEntityKey, error) {
	bundle := &VariablesAndEntityKey{}
	if err := json.Unmarshal(data, bundle); err != nil {
		return nil, fmt.Errorf("failed to parse legacy variable payload: %w", err)
	}
	return bundle, nil
}
