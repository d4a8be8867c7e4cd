package chart

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vizkit/grapher/pkg/series"
)

const (
	timeout  = time.Second
	interval = time.Millisecond * 25
)

func testEntityKey() map[string]series.EntityMeta {
	return map[string]series.EntityMeta{
		"1": {Name: "France", Code: "FRA"},
		"2": {Name: "Italy", Code: "ITA"},
		"3": {Name: "Spain", Code: "ESP"},
	}
}

// testBundle carries two yearly variables over three entities.
func testBundle() *series.VariablesAndEntityKey {
	return &series.VariablesAndEntityKey{
		Variables: map[string]series.Variable{
			"100": {ID: 100, Name: "GDP", Unit: "dollars",
				Entities: []int{1, 1, 2, 2, 3},
				Years:    []int{2000, 2001, 2000, 2001, 2000},
				Values:   []any{10.0, 12.0, 8.0, 9.0, 5.0}},
			"101": {ID: 101, Name: "Life expectancy",
				Entities: []int{1, 2, 3},
				Years:    []int{2000, 2000, 2000},
				Values:   []any{79.0, 81.0, 80.0}},
		},
		EntityKey: testEntityKey(),
	}
}

func yDim(variableID int) DimensionSpec {
	return DimensionSpec{Property: PropertyY, VariableID: variableID}
}

func newTestGrapher(config *Config) *Grapher {
	g := New(config, Options{})
	Expect(g.ReceiveData(testBundle())).To(Succeed())
	return g
}

var _ = Describe("Grapher readiness", func() {
	It("should not be ready before any data arrives", func() {
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100)}}, Options{})
		Expect(g.IsReady()).To(BeFalse())
		Expect(g.FilledDimensions()).To(BeEmpty())
		Expect(g.AvailableEntities()).To(BeEmpty())
		Expect(g.SelectedKeys()).To(BeEmpty())
	})

	It("should become ready once every referenced variable has a column", func() {
		g := newTestGrapher(&Config{Dimensions: []DimensionSpec{yDim(100), yDim(101)}})
		Expect(g.IsReady()).To(BeTrue())

		filled := g.FilledDimensions()
		Expect(filled).To(HaveLen(2))
		for i, dim := range filled {
			Expect(dim.Index).To(Equal(i))
			Expect(dim.Column.Spec.VariableID).To(HaveValue(Equal(dim.VariableID())))
		}
	})

	It("should not be ready while a referenced variable is missing", func() {
		g := newTestGrapher(&Config{Dimensions: []DimensionSpec{yDim(100), yDim(999)}})
		Expect(g.IsReady()).To(BeFalse())
		Expect(g.FilledDimensions()).To(BeEmpty())
	})

	It("should report single-variable and single-entity shapes", func() {
		g := newTestGrapher(&Config{Dimensions: []DimensionSpec{yDim(100)}})
		Expect(g.IsSingleVariable()).To(BeTrue())
		Expect(g.IsSingleEntity()).To(BeFalse())

		g = newTestGrapher(&Config{Dimensions: []DimensionSpec{yDim(100), yDim(101)}})
		Expect(g.IsSingleVariable()).To(BeFalse())
	})

	It("should derive the distinct sorted variable-id set", func() {
		g := New(&Config{Dimensions: []DimensionSpec{
			yDim(101), yDim(100), yDim(101),
		}}, Options{})
		Expect(g.VariableIDs()).To(Equal([]int{100, 101}))
	})
})

var _ = Describe("Dimension resolution", func() {
	It("should fall back display overrides to column metadata to defaults", func() {
		tolerance := 3
		g := newTestGrapher(&Config{Dimensions: []DimensionSpec{
			{Property: PropertyY, VariableID: 100,
				Display: series.Display{Unit: "USD", Tolerance: &tolerance}},
		}})

		dim := g.FilledDimensions()[0]
		Expect(dim.Unit()).To(Equal("USD"))           // override wins
		Expect(dim.DisplayName()).To(Equal("GDP"))    // column metadata
		Expect(dim.Tolerance()).To(Equal(3))          // override wins
		Expect(dim.ConversionFactor()).To(Equal(1.0)) // hard default
		Expect(dim.NumDecimalPlaces()).To(Equal(2))   // hard default
	})
})

var _ = Describe("Available entities", func() {
	It("should list entities reachable through axis dimensions in insertion order", func() {
		g := newTestGrapher(&Config{Dimensions: []DimensionSpec{yDim(100)}})
		Expect(g.AvailableEntities()).To(Equal([]string{"France", "Italy", "Spain"}))
	})

	It("should union entities across axis dimensions", func() {
		g := newTestGrapher(&Config{Dimensions: []DimensionSpec{yDim(100), yDim(101)}})
		Expect(g.AvailableEntities()).To(Equal([]string{"France", "Italy", "Spain"}))
	})
})

var _ = Describe("Time domain", func() {
	It("should resolve bounds against the available range", func() {
		minBound, maxBound := TimeBoundValue(2001), LatestTime()
		g := newTestGrapher(&Config{
			Dimensions: []DimensionSpec{yDim(100)},
			MinTime:    &minBound,
			MaxTime:    &maxBound,
		})
		lo, hi, ok := g.TimeDomain()
		Expect(ok).To(BeTrue())
		Expect(lo).To(Equal(2001))
		Expect(hi).To(Equal(2001))
	})

	It("should clamp out-of-range bounds", func() {
		minBound := TimeBoundValue(1800)
		g := newTestGrapher(&Config{
			Dimensions: []DimensionSpec{yDim(100)},
			MinTime:    &minBound,
		})
		lo, hi, ok := g.TimeDomain()
		Expect(ok).To(BeTrue())
		Expect(lo).To(Equal(2000))
		Expect(hi).To(Equal(2001))
	})
})

var _ = Describe("Display title", func() {
	It("should prefer the configured title", func() {
		g := newTestGrapher(&Config{Title: "My chart", Dimensions: []DimensionSpec{yDim(100)}})
		Expect(g.DisplayTitle()).To(Equal("My chart"))
	})

	It("should fall back to the primary dimension names", func() {
		g := newTestGrapher(&Config{Dimensions: []DimensionSpec{yDim(100), yDim(101)}})
		Expect(g.DisplayTitle()).To(Equal("GDP and Life expectancy"))
	})

	It("should show the raw title in authoring mode", func() {
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100)}}, Options{Authoring: true})
		Expect(g.ReceiveData(testBundle())).To(Succeed())
		Expect(g.DisplayTitle()).To(Equal(""))
	})
})

var _ = Describe("Population filter", func() {
	populations := map[string]float64{"France": 67e6, "Italy": 59e6, "Spain": 47e6}

	It("should add and remove the pop_filter column", func() {
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100)}},
			Options{Populations: populations})
		Expect(g.ReceiveData(testBundle())).To(Succeed())

		total := len(g.Table().UnfilteredRows())

		minPop := 60_000_000
		g.SetMinPopulationFilter(&minPop)
		_, ok := g.Table().Column(PopulationFilterSlug)
		Expect(ok).To(BeTrue())
		Expect(g.AvailableEntities()).To(Equal([]string{"France"}))
		Expect(len(g.Table().UnfilteredRows())).To(BeNumerically("<", total))

		g.SetMinPopulationFilter(nil)
		_, ok = g.Table().Column(PopulationFilterSlug)
		Expect(ok).To(BeFalse())
		Expect(g.Table().UnfilteredRows()).To(HaveLen(total))
		Expect(g.AvailableEntities()).To(Equal([]string{"France", "Italy", "Spain"}))
	})

	It("should keep entities with unknown population", func() {
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100)}},
			Options{Populations: map[string]float64{"France": 1}})
		Expect(g.ReceiveData(testBundle())).To(Succeed())

		minPop := 100
		g.SetMinPopulationFilter(&minPop)
		Expect(g.AvailableEntities()).To(Equal([]string{"Italy", "Spain"}))
	})

	It("should survive an end-to-end daily ingest with epoch re-basing", func() {
		bundle := &series.VariablesAndEntityKey{
			Variables: map[string]series.Variable{
				"200": {ID: 200, Name: "Cases",
					Entities: []int{1, 2},
					Years:    []int{0, 0},
					Values:   []any{1.0, 2.0},
					Display:  series.Display{YearIsDay: true, ZeroDay: "2020-01-31"}},
				"201": {ID: 201, Name: "Deaths",
					Entities: []int{1, 2},
					Years:    []int{10, 10},
					Values:   []any{3.0, 4.0},
					Display:  series.Display{YearIsDay: true}},
			},
			EntityKey: testEntityKey(),
		}

		g := New(&Config{Dimensions: []DimensionSpec{yDim(200), yDim(201)}},
			Options{Populations: map[string]float64{"France": 10, "Italy": 1}})
		Expect(g.ReceiveData(bundle)).To(Succeed())

		// one merged row per (entity, aligned day) with both values present
		rows := g.Table().Rows()
		Expect(rows).To(HaveLen(2))
		for _, row := range rows {
			Expect(row.Time()).To(Equal(10))
			Expect(row).To(HaveKey("200"))
			Expect(row).To(HaveKey("201"))
		}

		minPop := 5
		g.SetMinPopulationFilter(&minPop)
		Expect(g.Table().UnfilteredRows()).To(HaveLen(1))
		g.SetMinPopulationFilter(nil)
		Expect(g.Table().UnfilteredRows()).To(HaveLen(2))
	})
})

// fakeFetcher serves canned bundles and records every call.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   [][]int
	bundles map[int]*series.VariablesAndEntityKey
	err     error
	block   chan struct{} // when set, the first call waits on it
	blocked bool
}

func (f *fakeFetcher) FetchVariables(ctx context.Context, ids []int) (*series.VariablesAndEntityKey, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ids)
	wait := f.block != nil && !f.blocked
	if wait {
		f.blocked = true
	}
	f.mu.Unlock()

	if wait {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	merged := &series.VariablesAndEntityKey{
		Variables: map[string]series.Variable{},
		EntityKey: testEntityKey(),
	}
	for _, id := range ids {
		bundle, ok := f.bundles[id]
		if !ok {
			continue
		}
		for slug, v := range bundle.Variables {
			merged.Variables[slug] = v
		}
	}
	return merged, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func bundleFor(id int, name string) *series.VariablesAndEntityKey {
	return &series.VariablesAndEntityKey{
		Variables: map[string]series.Variable{
			strconv.Itoa(id): {ID: id, Name: name,
				Entities: []int{1, 2},
				Years:    []int{2000, 2000},
				Values:   []any{1.0, 2.0}},
		},
		EntityKey: testEntityKey(),
	}
}

var _ = Describe("Fetch reaction", func() {
	var fetcher *fakeFetcher

	BeforeEach(func() {
		fetcher = &fakeFetcher{bundles: map[int]*series.VariablesAndEntityKey{
			100: bundleFor(100, "GDP"),
			101: bundleFor(101, "Life expectancy"),
		}}
	})

	It("should fetch once immediately at construction", func() {
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100)}}, Options{Fetcher: fetcher})
		Eventually(g.IsReady, timeout, interval).Should(BeTrue())
		Expect(fetcher.callCount()).To(Equal(1))
	})

	It("should not refetch when the variable-id set is unchanged", func() {
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100), yDim(101)}},
			Options{Fetcher: fetcher})
		Eventually(g.IsReady, timeout, interval).Should(BeTrue())

		// same distinct set, different dimension order
		g.SetDimensions([]DimensionSpec{yDim(101), yDim(100)})
		Consistently(fetcher.callCount, time.Millisecond*100, interval).Should(Equal(1))
	})

	It("should fetch once per distinct resulting set", func() {
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100)}}, Options{Fetcher: fetcher})
		Eventually(g.IsReady, timeout, interval).Should(BeTrue())

		g.SetDimensions([]DimensionSpec{yDim(101)})
		Eventually(fetcher.callCount, timeout, interval).Should(Equal(2))
		Eventually(g.IsReady, timeout, interval).Should(BeTrue())
	})

	It("should not fetch without configured dimensions", func() {
		g := New(&Config{}, Options{Fetcher: fetcher})
		Consistently(fetcher.callCount, time.Millisecond*100, interval).Should(BeZero())
		Expect(g.IsReady()).To(BeFalse())
	})

	It("should stay not-ready when the fetch fails", func() {
		fetcher.err = errors.New("boom")
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100)}}, Options{Fetcher: fetcher})
		Consistently(g.IsReady, time.Millisecond*100, interval).Should(BeFalse())
	})

	It("should discard a stale result for a superseded variable-id set", func() {
		fetcher.block = make(chan struct{})
		g := New(&Config{Dimensions: []DimensionSpec{yDim(100)}}, Options{Fetcher: fetcher})
		// wait for the construction fetch to arrive (and block) first
		Eventually(fetcher.callCount, timeout, interval).Should(Equal(1))

		// supersede the blocked fetch, then let it finish
		g.SetDimensions([]DimensionSpec{yDim(101)})
		Eventually(g.IsReady, timeout, interval).Should(BeTrue())
		close(fetcher.block)

		Consistently(func() bool {
			t := g.Table()
			return t != nil && t.HasColumnForVariable(100)
		}, time.Millisecond*100, interval).Should(BeFalse())
		Expect(g.Table().HasColumnForVariable(101)).To(BeTrue())
	})
})
