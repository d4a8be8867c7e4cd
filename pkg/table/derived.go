package table

import (
	"sort"

	"github.com/vizkit/grapher/pkg/smoothing"
)

// AddRollingAverageColumn derives a windowed mean of the source column into a
// new column, computed independently per entity. Each entity's observations
// are ordered by time and densified with explicit gap placeholders before
// averaging, so irregular reporting does not narrow the window; the
// placeholders are dropped again on write-back. Unlike AddComputedColumn this
// is the one derivation that sees the sequence, not a single row.
func (t *Table) AddRollingAverageColumn(spec ColumnSpec, sourceSlug string, window int, align smoothing.Alignment) *Column {
	if existing, ok := t.columns[spec.Slug]; ok {
		t.log.Info("ignoring duplicate rolling-average column registration", "slug", spec.Slug)
		return existing
	}

	type observation struct {
		rowIndex int
		time     int
		sample   smoothing.Sample
	}

	byEntity := map[string][]observation{}
	var entities []string
	for i, row := range t.rows {
		v, ok := row[sourceSlug]
		if !ok {
			continue
		}
		sample := smoothing.Gap()
		if f, ok := asFloat(v); ok {
			sample = smoothing.V(f)
		}
		entity := row.EntityName()
		if _, ok := byEntity[entity]; !ok {
			entities = append(entities, entity)
		}
		byEntity[entity] = append(byEntity[entity],
			observation{rowIndex: i, time: row.Time(), sample: sample})
	}

	// one concatenated gap-dense sequence over all entities; the group key
	// resets the averaging window at each entity boundary
	var series []smoothing.Sample
	var groups []string
	var rowSlots []int // row index per position, -1 for inserted placeholders
	for _, entity := range entities {
		obs := byEntity[entity]
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].time < obs[j].time })

		values := make([]smoothing.Sample, len(obs))
		times := make([]int, len(obs))
		for i, o := range obs {
			values[i], times[i] = o.sample, o.time
		}
		dense := smoothing.InsertMissingValuePlaceholders(values, times)

		slots := make([]int, len(dense))
		for i := range slots {
			slots[i] = -1
		}
		pos := 0
		slots[0] = obs[0].rowIndex
		for i := 1; i < len(obs); i++ {
			pos += times[i] - times[i-1]
			slots[pos] = obs[i].rowIndex
		}

		series = append(series, dense...)
		rowSlots = append(rowSlots, slots...)
		for range dense {
			groups = append(groups, entity)
		}
	}

	c := t.AddColumn(spec)
	for i, sample := range smoothing.RollingByGroup(series, groups, window, align) {
		if rowSlots[i] < 0 {
			continue
		}
		if v, ok := sample.Value(); ok {
			t.rows[rowSlots[i]][spec.Slug] = v
		}
	}
	t.bump()
	return c
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
