package chart

import (
	"github.com/vizkit/grapher/pkg/table"
)

// Hard defaults for display attributes no override or column metadata sets.
const (
	defaultTolerance        = 0
	defaultConversionFactor = 1.0
	defaultDecimalPlaces    = 2
)

// Dimension is a DimensionSpec resolved against the ingested table: the spec
// bound to its column, with display attributes falling back spec override →
// column metadata → hard default.
type Dimension struct {
	Spec DimensionSpec
	// Index is the dimension's position in the configured dimensions list;
	// selection entries and entity-dimension keys address dimensions by it.
	Index  int
	Column *table.Column
}

func (d *Dimension) Property() Property { return d.Spec.Property }
func (d *Dimension) VariableID() int    { return d.Spec.VariableID }

// DisplayName resolves the dimension's human name.
func (d *Dimension) DisplayName() string {
	if d.Spec.Display.Name != "" {
		return d.Spec.Display.Name
	}
	return d.Column.Spec.DisplayName()
}

func (d *Dimension) Unit() string {
	if d.Spec.Display.Unit != "" {
		return d.Spec.Display.Unit
	}
	return d.Column.Spec.Unit
}

func (d *Dimension) ShortUnit() string {
	if d.Spec.Display.ShortUnit != "" {
		return d.Spec.Display.ShortUnit
	}
	return d.Column.Spec.ShortUnit
}

func (d *Dimension) Tolerance() int {
	if d.Spec.Display.Tolerance != nil {
		return *d.Spec.Display.Tolerance
	}
	if d.Column.Spec.Tolerance != nil {
		return *d.Column.Spec.Tolerance
	}
	return defaultTolerance
}

func (d *Dimension) ConversionFactor() float64 {
	if d.Spec.Display.ConversionFactor != nil {
		return *d.Spec.Display.ConversionFactor
	}
	if d.Column.Spec.ConversionFactor != nil {
		return *d.Column.Spec.ConversionFactor
	}
	return defaultConversionFactor
}

func (d *Dimension) NumDecimalPlaces() int {
	if d.Spec.Display.NumDecimalPlaces != nil {
		return *d.Spec.Display.NumDecimalPlaces
	}
	if d.Column.Spec.NumDecimalPlaces != nil {
		return *d.Column.Spec.NumDecimalPlaces
	}
	return defaultDecimalPlaces
}

func (d *Dimension) IsProjection() bool {
	return d.Spec.Display.IsProjection || d.Column.Spec.IsProjection
}
