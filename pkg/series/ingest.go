package series

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/vizkit/grapher/pkg/table"
)

type ErrIngest = error

func NewIngestError(variableID int, err error) ErrIngest {
	return fmt.Errorf("failed to ingest variable %d: %w", variableID, err)
}

// Ingest joins every variable series in the bundle into one dense table. For
// each variable one row is built per (value, entity, time) triple; rows
// across all variables are then grouped by (time, entity) and merged by
// field union. Variables are processed in ascending id order so the merged
// row order is stable.
func Ingest(bundle *VariablesAndEntityKey, log logr.Logger) (*table.Table, error) {
	t := table.New(log)
	t.AddColumn(table.ColumnSpec{Slug: table.EntityNameSlug, Name: "Entity"})
	t.AddColumn(table.ColumnSpec{Slug: table.EntityIDSlug})
	t.AddColumn(table.ColumnSpec{Slug: table.EntityCodeSlug, Name: "Code"})

	variables := make([]Variable, 0, len(bundle.Variables))
	for _, v := range bundle.Variables {
		variables = append(variables, v)
	}
	sort.Slice(variables, func(i, j int) bool { return variables[i].ID < variables[j].ID })

	grouped := map[string]table.Row{}
	var order []string

	for _, v := range variables {
		slug := strconv.Itoa(v.ID)
		spec := columnSpec(v, slug)

		timeSlug := table.YearSlug
		shift := 0
		if v.Display.YearIsDay {
			timeSlug = table.DaySlug
			s, err := dayOffsetShift(v.Display.ZeroDay)
			if err != nil {
				return nil, NewIngestError(v.ID, err)
			}
			shift = s
		}

		annotations := map[string]string{}
		if v.Display.EntityAnnotationsMap != "" {
			annotations = ParseAnnotations(v.Display.EntityAnnotationsMap)
			spec.AnnotationsColumnSlug = slug + "-annotations"
		}
		t.AddColumn(spec)
		if spec.AnnotationsColumnSlug != "" {
			t.AddColumn(table.ColumnSpec{
				Slug: spec.AnnotationsColumnSlug,
				Name: v.Name + " annotations",
			})
		}

		for i, raw := range v.Values {
			if i >= len(v.Entities) || i >= len(v.Years) {
				log.Info("truncated variable series", "variable", v.ID, "index", i)
				break
			}
			entityID := v.Entities[i]
			meta, ok := bundle.EntityKey[strconv.Itoa(entityID)]
			if !ok {
				log.Info("skipping value for unknown entity", "variable", v.ID,
					"entity", entityID)
				continue
			}
			timeValue := v.Years[i] + shift

			key := fmt.Sprintf("%s:%d %s", timeSlug, timeValue, meta.Name)
			row, ok := grouped[key]
			if !ok {
				row = table.Row{
					table.EntityNameSlug: meta.Name,
					table.EntityIDSlug:   entityID,
					table.EntityCodeSlug: meta.Code,
					timeSlug:             timeValue,
				}
				grouped[key] = row
				order = append(order, key)
			}
			row[slug] = parseValue(raw)
			if note, ok := annotations[meta.Name]; ok {
				row[spec.AnnotationsColumnSlug] = note
			}
		}
	}

	rows := make([]table.Row, len(order))
	for i, key := range order {
		rows[i] = grouped[key]
	}
	t.AppendRows(rows...)

	return t, nil
}

func columnSpec(v Variable, slug string) table.ColumnSpec {
	id := v.ID
	spec := table.ColumnSpec{
		Slug:             slug,
		Name:             v.Name,
		Unit:             v.Unit,
		ShortUnit:        v.ShortUnit,
		Description:      v.Description,
		Coverage:         v.Coverage,
		DatasetName:      v.DatasetName,
		SourceName:       v.Source.Name,
		VariableID:       &id,
		ConversionFactor: v.Display.ConversionFactor,
		Tolerance:        v.Display.Tolerance,
		NumDecimalPlaces: v.Display.NumDecimalPlaces,
		IsProjection:     v.Display.IsProjection,
	}
	if v.Display.Name != "" {
		spec.Name = v.Display.Name
	}
	if v.Display.Unit != "" {
		spec.Unit = v.Display.Unit
	}
	if v.Display.ShortUnit != "" {
		spec.ShortUnit = v.Display.ShortUnit
	}
	return spec
}

// ParseAnnotations splits a colon-delimited "entity: note" side-channel into
// a map. Parsing is best-effort: lines without a colon are ignored, notes
// keep any further colons verbatim.
func ParseAnnotations(text string) map[string]string {
	annotations := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		entity := strings.TrimSpace(parts[0])
		note := strings.TrimSpace(parts[1])
		if entity != "" && note != "" {
			annotations[entity] = note
		}
	}
	return annotations
}

// parseValue normalizes a wire value: numbers and numeric strings become
// float64, anything else stays a string.
func parseValue(raw any) any {
	switch v := raw.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return v
	default:
		return fmt.Sprintf("%v", raw)
	}
}
