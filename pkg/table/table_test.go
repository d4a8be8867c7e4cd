package table

import (
	"github.com/go-logr/logr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testRows() []Row {
	return []Row{
		{EntityNameSlug: "France", EntityIDSlug: 1, EntityCodeSlug: "FRA", YearSlug: 2000, "gdp": 10.0},
		{EntityNameSlug: "France", EntityIDSlug: 1, EntityCodeSlug: "FRA", YearSlug: 2001, "gdp": 12.0},
		{EntityNameSlug: "Italy", EntityIDSlug: 2, EntityCodeSlug: "ITA", YearSlug: 2000, "gdp": 8.0},
		{EntityNameSlug: "Italy", EntityIDSlug: 2, EntityCodeSlug: "ITA", YearSlug: 2001},
	}
}

var _ = Describe("Table", func() {
	var t *Table

	BeforeEach(func() {
		t = New(logr.Discard())
		t.AppendRows(testRows()...)
		t.DetectAndAddColumnsFromRows(t.Rows()...)
	})

	Context("column registry", func() {
		It("should detect one column per distinct field", func() {
			Expect(t.Slugs()).To(Equal([]string{
				EntityNameSlug, EntityIDSlug, EntityCodeSlug, YearSlug, "gdp",
			}))
		})

		It("should not let a duplicate registration override an existing spec", func() {
			t2 := New(logr.Discard())
			t2.AddColumn(ColumnSpec{Slug: "gdp", Name: "GDP"})
			t2.AddColumn(ColumnSpec{Slug: "gdp", Name: "shadow"})
			col, ok := t2.Column("gdp")
			Expect(ok).To(BeTrue())
			Expect(col.Spec.Name).To(Equal("GDP"))
			Expect(t2.Slugs()).To(HaveLen(1))
		})

		It("should not let auto-detection override an explicit spec", func() {
			t.DeleteColumnBySlug("gdp")
			t.AddColumn(ColumnSpec{Slug: "gdp", Name: "GDP"})
			t.DetectAndAddColumnsFromRows(Row{"gdp": 1.0})
			col, _ := t.Column("gdp")
			Expect(col.Spec.Name).To(Equal("GDP"))
		})

		It("should find columns by variable id", func() {
			id := 42
			t.AddColumn(ColumnSpec{Slug: "42", VariableID: &id})
			col, ok := t.ColumnByVariableID(42)
			Expect(ok).To(BeTrue())
			Expect(col.Spec.Slug).To(Equal("42"))
			Expect(t.HasColumnForVariable(43)).To(BeFalse())
		})
	})

	Context("computed columns", func() {
		It("should materialize the function into every existing row", func() {
			t.AddComputedColumn(ColumnSpec{Slug: "gdpX2"}, func(row Row, _ int) any {
				if v, ok := row["gdp"].(float64); ok {
					return v * 2
				}
				return nil
			})
			Expect(t.Rows()[0]["gdpX2"]).To(Equal(20.0))
			Expect(t.Rows()[1]["gdpX2"]).To(Equal(24.0))
			// the fourth row has no gdp value at all
			Expect(t.Rows()[3]).NotTo(HaveKey("gdpX2"))
		})

		It("should be a snapshot, not a live formula", func() {
			t.AddComputedColumn(ColumnSpec{Slug: "one"}, func(Row, int) any { return 1.0 })
			t.AppendRows(Row{EntityNameSlug: "Spain", YearSlug: 2000})
			Expect(t.Rows()[4]).NotTo(HaveKey("one"))
		})
	})

	Context("filter columns", func() {
		It("should compose filters conjunctively", func() {
			t.AddFilterColumn("f_recent", func(row Row) bool { return row.Time() >= 2001 })
			t.AddFilterColumn("f_france", func(row Row) bool { return row.EntityName() == "France" })

			visible := t.UnfilteredRows()
			Expect(visible).To(HaveLen(1))
			Expect(visible[0].EntityName()).To(Equal("France"))
			Expect(visible[0].Time()).To(Equal(2001))
		})

		It("should equal the intersection of independently computed filters", func() {
			recent := func(row Row) bool { return row.Time() >= 2001 }
			france := func(row Row) bool { return row.EntityName() == "France" }

			var want []Row
			for _, row := range t.Rows() {
				if recent(row) && france(row) {
					want = append(want, row)
				}
			}

			t.AddFilterColumn("f_recent", recent)
			t.AddFilterColumn("f_france", france)
			Expect(t.UnfilteredRows()).To(Equal(want))
		})

		It("should cache the predicate result onto the row", func() {
			calls := 0
			t.AddFilterColumn("f_count", func(Row) bool { calls++; return true })
			t.UnfilteredRows()
			t.UnfilteredRows()
			Expect(calls).To(Equal(len(t.Rows())))
		})

		It("should restore the full row view when the filter column is deleted", func() {
			total := len(t.UnfilteredRows())
			t.AddFilterColumn("f_none", func(Row) bool { return false })
			Expect(t.UnfilteredRows()).To(BeEmpty())
			t.DeleteColumnBySlug("f_none")
			Expect(t.UnfilteredRows()).To(HaveLen(total))
		})
	})

	Context("column accessors", func() {
		It("should derive aligned values, entities and times", func() {
			col, _ := t.Column("gdp")
			Expect(col.Values()).To(Equal([]any{10.0, 12.0, 8.0}))
			Expect(col.EntityNames()).To(Equal([]string{"France", "France", "Italy"}))
			Expect(col.Times()).To(Equal([]int{2000, 2001, 2000}))
			Expect(col.EntityNamesUniq()).To(Equal([]string{"France", "Italy"}))
		})

		It("should reflect row mutation without explicit invalidation", func() {
			col, _ := t.Column("gdp")
			Expect(col.Values()).To(HaveLen(3))
			t.AppendRows(Row{EntityNameSlug: "Spain", YearSlug: 2000, "gdp": 5.0})
			Expect(col.Values()).To(HaveLen(4))
		})

		It("should reflect filter state", func() {
			col, _ := t.Column("gdp")
			t.AddFilterColumn("f_italy", func(row Row) bool { return row.EntityName() == "Italy" })
			Expect(col.Values()).To(Equal([]any{8.0}))
		})

		It("should group values by entity", func() {
			col, _ := t.Column("gdp")
			Expect(col.EntityMap()).To(Equal(map[string][]any{
				"France": {10.0, 12.0},
				"Italy":  {8.0},
			}))
		})

		It("should compute the time extent", func() {
			col, _ := t.Column("gdp")
			minTime, ok := col.MinTime()
			Expect(ok).To(BeTrue())
			Expect(minTime).To(Equal(2000))
			maxTime, _ := col.MaxTime()
			Expect(maxTime).To(Equal(2001))
		})
	})

	Context("column deletion", func() {
		It("should strip the field from every row", func() {
			t.DeleteColumnBySlug("gdp")
			for _, row := range t.Rows() {
				Expect(row).NotTo(HaveKey("gdp"))
			}
			_, ok := t.Column("gdp")
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("Delimited export", func() {
	It("should render columns in registration order with empty missing values", func() {
		t := New(logr.Discard())
		t.AddColumn(ColumnSpec{Slug: EntityNameSlug, Name: "Entity"})
		t.AddColumn(ColumnSpec{Slug: YearSlug})
		t.AddColumn(ColumnSpec{Slug: "gdp", Name: "GDP"})
		t.AppendRows(
			Row{EntityNameSlug: "France", YearSlug: 2000, "gdp": 10.5},
			Row{EntityNameSlug: "Italy", YearSlug: 2000},
		)

		Expect(t.ToCSV()).To(Equal("Entity,year,GDP\nFrance,2000,10.5\nItaly,2000,\n"))
	})

	It("should quote fields containing the delimiter", func() {
		t := New(logr.Discard())
		t.AddColumn(ColumnSpec{Slug: "note"})
		t.AppendRows(Row{"note": "a,b"})
		Expect(t.ToCSV()).To(Equal("note\n\"a,b\"\n"))
	})
})
