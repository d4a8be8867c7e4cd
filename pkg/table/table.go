// Package table implements the in-memory tabular store the chart engine
// derives from: sparse rows keyed by column slug, a registry of raw,
// computed and filter columns, and read-time filtered views. Rows are
// append-only for the lifetime of one chart session; columns come and go
// with configuration changes.
package table

import (
	"sort"

	"github.com/go-logr/logr"
)

// Row maps a column slug to a scalar value (float64 or string). A missing
// key means the row has no observation for that column.
type Row map[string]any

func (r Row) EntityName() string { s, _ := r[EntityNameSlug].(string); return s }
func (r Row) EntityCode() string { s, _ := r[EntityCodeSlug].(string); return s }

func (r Row) EntityID() int {
	v, _ := asInt(r[EntityIDSlug])
	return v
}

// Time returns the row's time value, reading the day column when present and
// the year column otherwise.
func (r Row) Time() int {
	if v, ok := asInt(r[DaySlug]); ok {
		return v
	}
	v, _ := asInt(r[YearSlug])
	return v
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Table owns the row collection and the column registry. All mutation goes
// through the methods below; each mutation bumps an internal version counter
// that column accessors memoize against.
type Table struct {
	rows    []Row
	columns map[string]*Column
	slugs   []string // registration order, drives export column order
	filters map[string]func(Row) bool
	version uint64
	log     logr.Logger
}

// New creates an empty table.
func New(log logr.Logger) *Table {
	return &Table{
		columns: map[string]*Column{},
		filters: map[string]func(Row) bool{},
		log:     log.WithName("table"),
	}
}

func (t *Table) bump() { t.version++ }

// NumRows returns the size of the full row store, ignoring filters.
func (t *Table) NumRows() int { return len(t.rows) }

// Rows returns the full row store, ignoring filter columns.
func (t *Table) Rows() []Row { return t.rows }

// Slugs returns the registered column slugs in registration order.
func (t *Table) Slugs() []string { return t.slugs }

// Column looks up a registered column by slug.
func (t *Table) Column(slug string) (*Column, bool) {
	c, ok := t.columns[slug]
	return c, ok
}

// ColumnByVariableID finds the column ingested for the given variable id.
func (t *Table) ColumnByVariableID(id int) (*Column, bool) {
	for _, slug := range t.slugs {
		c := t.columns[slug]
		if c.Spec.VariableID != nil && *c.Spec.VariableID == id {
			return c, true
		}
	}
	return nil, false
}

// HasColumnForVariable reports whether a column has been ingested for the
// given variable id.
func (t *Table) HasColumnForVariable(id int) bool {
	_, ok := t.ColumnByVariableID(id)
	return ok
}

// AddColumn registers a raw-view column. A duplicate slug is a no-op with a
// warning, never fatal: auto-detected columns must not shadow explicitly
// registered ones and vice versa.
func (t *Table) AddColumn(spec ColumnSpec) *Column {
	if existing, ok := t.columns[spec.Slug]; ok {
		t.log.Info("ignoring duplicate column registration", "slug", spec.Slug)
		return existing
	}
	c := newColumn(t, spec)
	t.columns[spec.Slug] = c
	t.slugs = append(t.slugs, spec.Slug)
	t.bump()
	return c
}

// ComputeFn produces the value of a computed column for one row.
type ComputeFn func(row Row, index int) any

// AddComputedColumn registers a column and materializes fn into every
// existing row. The column is a snapshot, not a live formula: rows appended
// later are not computed retroactively.
func (t *Table) AddComputedColumn(spec ColumnSpec, fn ComputeFn) *Column {
	if existing, ok := t.columns[spec.Slug]; ok {
		t.log.Info("ignoring duplicate computed column registration", "slug", spec.Slug)
		return existing
	}
	c := t.AddColumn(spec)
	for i, row := range t.rows {
		if v := fn(row, i); v != nil {
			row[spec.Slug] = v
		}
	}
	t.bump()
	return c
}

// FilterFn decides the visibility contribution of one filter column.
type FilterFn func(row Row) bool

// AddFilterColumn registers a boolean filter column. The predicate result is
// cached onto each row lazily on the first unfiltered-row read; a changed
// predicate therefore needs a fresh slug.
func (t *Table) AddFilterColumn(slug string, predicate FilterFn) *Column {
	if existing, ok := t.columns[slug]; ok {
		t.log.Info("ignoring duplicate filter column registration", "slug", slug)
		return existing
	}
	c := t.AddColumn(ColumnSpec{Slug: slug, IsFilterColumn: true})
	t.filters[slug] = predicate
	t.bump()
	return c
}

// DeleteColumnBySlug removes the column and strips its field from every row.
// Unknown slugs are ignored.
func (t *Table) DeleteColumnBySlug(slug string) {
	if _, ok := t.columns[slug]; !ok {
		return
	}
	delete(t.columns, slug)
	delete(t.filters, slug)
	for i, s := range t.slugs {
		if s == slug {
			t.slugs = append(t.slugs[:i], t.slugs[i+1:]...)
			break
		}
	}
	for _, row := range t.rows {
		delete(row, slug)
	}
	t.bump()
}

// UnfilteredRows returns the rows visible under the conjunction of all
// registered filter columns. Filter predicates are materialized into each
// row before visibility is decided, so repeated reads are cheap.
func (t *Table) UnfilteredRows() []Row {
	if len(t.filters) == 0 {
		return t.rows
	}

	visible := make([]Row, 0, len(t.rows))
	for _, row := range t.rows {
		keep := true
		for slug, predicate := range t.filters {
			cached, ok := row[slug].(bool)
			if !ok {
				cached = predicate(row)
				row[slug] = cached
			}
			if !cached {
				keep = false
			}
		}
		if keep {
			visible = append(visible, row)
		}
	}
	return visible
}

// AppendRows concatenates an ingestion batch onto the row store.
func (t *Table) AppendRows(rows ...Row) {
	t.rows = append(t.rows, rows...)
	t.bump()
}

// DetectAndAddColumnsFromRows infers one column per distinct field name
// found across the batch. Already-registered slugs are left untouched.
func (t *Table) DetectAndAddColumnsFromRows(rows ...Row) {
	seen := map[string]bool{}
	var order []string
	for _, row := range rows {
		for slug := range row {
			if !seen[slug] {
				seen[slug] = true
				order = append(order, slug)
			}
		}
	}
	// map iteration order is unstable; identity columns first, rest sorted
	order = frontload(order, EntityNameSlug, EntityIDSlug, EntityCodeSlug, YearSlug, DaySlug)
	for _, slug := range order {
		if _, ok := t.columns[slug]; ok {
			continue
		}
		t.AddColumn(ColumnSpec{Slug: slug})
	}
}

func frontload(slugs []string, first ...string) []string {
	out := make([]string, 0, len(slugs))
	rest := make([]string, 0, len(slugs))
	for _, want := range first {
		for _, s := range slugs {
			if s == want {
				out = append(out, s)
			}
		}
	}
	for _, s := range slugs {
		claimed := false
		for _, want := range first {
			if s == want {
				claimed = true
				break
			}
		}
		if !claimed {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
