package table

// Reserved slugs present on every ingested row. Exactly one of YearSlug or
// DaySlug carries the time axis.
const (
	EntityNameSlug = "entityName"
	EntityIDSlug   = "entityId"
	EntityCodeSlug = "entityCode"
	YearSlug       = "year"
	DaySlug        = "day"
)

// ColumnSpec describes one slug-named field across all rows. The slug is the
// stable identifier; everything else is display metadata that dimension
// overrides may shadow.
type ColumnSpec struct {
	Slug                  string   `json:"slug"`
	Name                  string   `json:"name,omitempty"`
	Unit                  string   `json:"unit,omitempty"`
	ShortUnit             string   `json:"shortUnit,omitempty"`
	Description           string   `json:"description,omitempty"`
	Coverage              string   `json:"coverage,omitempty"`
	DatasetName           string   `json:"datasetName,omitempty"`
	SourceName            string   `json:"sourceName,omitempty"`
	VariableID            *int     `json:"variableId,omitempty"`
	NumDecimalPlaces      *int     `json:"numDecimalPlaces,omitempty"`
	Tolerance             *int     `json:"tolerance,omitempty"`
	ConversionFactor      *float64 `json:"conversionFactor,omitempty"`
	IsProjection          bool     `json:"isProjection,omitempty"`
	IsFilterColumn        bool     `json:"isFilterColumn,omitempty"`
	AnnotationsColumnSlug string   `json:"annotationsColumnSlug,omitempty"`
}

// DisplayName returns the human column name, falling back to the slug.
func (s ColumnSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Slug
}

// Column is a typed view over one field of the owning table. Its accessors
// are derived from the current unfiltered-row view and are memoized against
// the table's version counter, so they reflect row and filter mutations
// without explicit invalidation calls.
type Column struct {
	Spec ColumnSpec

	table *Table

	cachedAt    uint64
	cacheValid  bool
	rows        []Row
	values      []any
	entityNames []string
	times       []int
}

func newColumn(t *Table, spec ColumnSpec) *Column {
	return &Column{Spec: spec, table: t}
}

// Table returns the owning table.
func (c *Column) Table() *Table { return c.table }

func (c *Column) ensure() {
	if c.cacheValid && c.cachedAt == c.table.version {
		return
	}

	c.rows = c.rows[:0]
	c.values = c.values[:0]
	c.entityNames = c.entityNames[:0]
	c.times = c.times[:0]

	for _, row := range c.table.UnfilteredRows() {
		v, ok := row[c.Spec.Slug]
		if !ok {
			continue
		}
		c.rows = append(c.rows, row)
		c.values = append(c.values, v)
		c.entityNames = append(c.entityNames, row.EntityName())
		c.times = append(c.times, row.Time())
	}

	c.cachedAt = c.table.version
	c.cacheValid = true
}

// Values returns the column's value for every visible row that carries the
// field, in row order.
func (c *Column) Values() []any {
	c.ensure()
	return c.values
}

// EntityNames is positionally aligned with Values.
func (c *Column) EntityNames() []string {
	c.ensure()
	return c.entityNames
}

// Times is positionally aligned with Values; it reads the row's year or day,
// whichever the table carries.
func (c *Column) Times() []int {
	c.ensure()
	return c.times
}

// RowsWithValue returns the visible rows that carry this column's field.
func (c *Column) RowsWithValue() []Row {
	c.ensure()
	return c.rows
}

// EntityNamesUniq returns the distinct entities with a value in this column,
// in first-seen row order.
func (c *Column) EntityNamesUniq() []string {
	c.ensure()
	seen := make(map[string]bool, len(c.entityNames))
	uniq := make([]string, 0, len(c.entityNames))
	for _, name := range c.entityNames {
		if !seen[name] {
			seen[name] = true
			uniq = append(uniq, name)
		}
	}
	return uniq
}

// EntityMap groups the column's values by entity name.
func (c *Column) EntityMap() map[string][]any {
	c.ensure()
	m := make(map[string][]any)
	for i, name := range c.entityNames {
		m[name] = append(m[name], c.values[i])
	}
	return m
}

// HasEntity reports whether the entity has at least one value in this column.
func (c *Column) HasEntity(entityName string) bool {
	c.ensure()
	for _, name := range c.entityNames {
		if name == entityName {
			return true
		}
	}
	return false
}

// MinTime and MaxTime return the time extent of the column's values. The
// second return is false when the column is empty.
func (c *Column) MinTime() (int, bool) {
	c.ensure()
	if len(c.times) == 0 {
		return 0, false
	}
	m := c.times[0]
	for _, t := range c.times[1:] {
		if t < m {
			m = t
		}
	}
	return m, true
}

func (c *Column) MaxTime() (int, bool) {
	c.ensure()
	if len(c.times) == 0 {
		return 0, false
	}
	m := c.times[0]
	for _, t := range c.times[1:] {
		if t > m {
			m = t
		}
	}
	return m, true
}
