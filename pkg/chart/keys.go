package chart

import (
	"fmt"
)

// EntityDimensionKey names one selectable series: one entity within one
// primary dimension. Keys are deterministic and injective for the lifetime
// of a chart session.
type EntityDimensionKey = string

// MakeEntityDimensionKey builds the canonical key for an (entity, dimension)
// pair.
func MakeEntityDimensionKey(entityName string, dimensionIndex int) EntityDimensionKey {
	return fmt.Sprintf("%s_%d", entityName, dimensionIndex)
}

// EntityDimensionInfo is one entry of the key index.
type EntityDimensionInfo struct {
	Key            EntityDimensionKey
	EntityName     string
	EntityID       int
	EntityCode     string
	DimensionIndex int
	Dimension      *Dimension
	// Label is context-sensitive: the entity name when only one variable is
	// configured, the dimension name on a single-entity chart, and the
	// combination otherwise.
	Label string
	// ShortCode disambiguates entities sharing a code across multiple
	// primary dimensions.
	ShortCode string
}

func makeKeyInfos(primary []*Dimension, singleVariable, singleEntity, disambiguate bool) []*EntityDimensionInfo {
	var infos []*EntityDimensionInfo

	for _, dim := range primary {
		idByName := map[string]int{}
		codeByName := map[string]string{}
		for _, row := range dim.Column.RowsWithValue() {
			name := row.EntityName()
			if _, ok := idByName[name]; !ok {
				idByName[name] = row.EntityID()
				codeByName[name] = row.EntityCode()
			}
		}

		for _, entityName := range dim.Column.EntityNamesUniq() {
			var label string
			switch {
			case singleVariable:
				label = entityName
			case singleEntity:
				label = dim.DisplayName()
			default:
				label = fmt.Sprintf("%s - %s", entityName, dim.DisplayName())
			}

			code := codeByName[entityName]
			if code == "" {
				code = entityName
			}
			if disambiguate {
				code = fmt.Sprintf("%s-%d", code, dim.Index)
			}

			infos = append(infos, &EntityDimensionInfo{
				Key:            MakeEntityDimensionKey(entityName, dim.Index),
				EntityName:     entityName,
				EntityID:       idByName[entityName],
				EntityCode:     codeByName[entityName],
				DimensionIndex: dim.Index,
				Dimension:      dim,
				Label:          label,
				ShortCode:      code,
			})
		}
	}

	return infos
}
