package chart

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/vizkit/grapher/pkg/reactive"
	"github.com/vizkit/grapher/pkg/series"
	"github.com/vizkit/grapher/pkg/table"
)

// PopulationFilterSlug names the filter column driven by
// Config.MinPopulationFilter.
const PopulationFilterSlug = "pop_filter"

// Fetcher loads variable series for a chart. Implementations own retry
// policy; the engine only guarantees that a failed fetch never marks the
// chart ready.
type Fetcher interface {
	FetchVariables(ctx context.Context, variableIDs []int) (*series.VariablesAndEntityKey, error)
}

// Options configure a chart session at construction.
type Options struct {
	// Authoring switches the session into authoring-tool behavior. It is an
	// explicit construction parameter, never ambient state.
	Authoring bool
	// Fetcher resolves the variable series referenced by the configured
	// dimensions. Optional: sessions fed through ReceiveData need none.
	Fetcher Fetcher
	// Populations backs the minimum-population filter column. Entities
	// missing from the map are never filtered out.
	Populations map[string]float64
	Logger      logr.Logger
}

// Grapher is one chart session: the persisted configuration as reactive
// roots, the ingested table, and the derivation graph over both. A session
// owns its table and configuration exclusively; the only concurrency is the
// asynchronous fetch write-back, which the internal mutex serializes against
// the owner's calls.
type Grapher struct {
	SessionID uuid.UUID

	mu          sync.Mutex
	log         logr.Logger
	graph       *reactive.Graph
	fetcher     Fetcher
	authoring   bool
	populations map[string]float64

	// roots: the persisted configuration fields and the table
	title       *reactive.Root[string]
	chartType   *reactive.Root[string]
	dims        *reactive.Root[[]DimensionSpec]
	selected    *reactive.Root[[]SelectionEntry]
	minPop      *reactive.Root[*int]
	countryMode *reactive.Root[AddCountryMode]
	minTime     *reactive.Root[*TimeBound]
	maxTime     *reactive.Root[*TimeBound]
	tbl         *reactive.Root[*table.Table]

	// derived
	variableIDs   *reactive.Computed[[]int]
	ready         *reactive.Computed[bool]
	filledDims    *reactive.Computed[[]*Dimension]
	primaryDims   *reactive.Computed[[]*Dimension]
	availEntities *reactive.Computed[[]string]
	keyInfos      *reactive.Computed[[]*EntityDimensionInfo]
	keyIndex      *reactive.Computed[map[EntityDimensionKey]*EntityDimensionInfo]
	selectedKeys  *reactive.Computed[[]EntityDimensionKey]
	displayTitle  *reactive.Computed[string]

	fetchGen    int
	fetchCancel context.CancelFunc
}

// New creates a chart session from a persisted configuration. The fetch
// reaction fires once immediately, so a session with a fetcher and
// configured dimensions starts loading right away.
func New(config *Config, opts Options) *Grapher {
	if config == nil {
		config = &Config{}
	}
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	g := &Grapher{
		SessionID:   uuid.New(),
		fetcher:     opts.Fetcher,
		authoring:   opts.Authoring,
		populations: opts.Populations,
	}
	g.log = log.WithName("grapher").WithValues("session", g.SessionID.String())
	g.graph = reactive.NewGraph(g.log)

	g.title = reactive.NewRoot(g.graph, "title", config.Title)
	g.chartType = reactive.NewRoot(g.graph, "type", config.Type)
	g.dims = reactive.NewRoot(g.graph, "dimensions", config.Dimensions)
	g.selected = reactive.NewRoot(g.graph, "selectedData", config.SelectedData)
	g.minPop = reactive.NewRoot(g.graph, "minPopulationFilter", config.MinPopulationFilter)
	g.countryMode = reactive.NewRoot(g.graph, "addCountryMode", config.AddCountryMode)
	g.minTime = reactive.NewRoot(g.graph, "minTime", config.MinTime)
	g.maxTime = reactive.NewRoot(g.graph, "maxTime", config.MaxTime)
	g.tbl = reactive.NewRoot[*table.Table](g.graph, "table", nil)

	g.variableIDs = reactive.NewComputed(g.graph, "variableIDs",
		g.computeVariableIDs, reactive.SlicesEqual)
	g.ready = reactive.NewComputed(g.graph, "isReady",
		g.computeIsReady, reactive.Comparable)
	g.filledDims = reactive.NewComputed(g.graph, "filledDimensions",
		g.computeFilledDimensions, nil)
	g.primaryDims = reactive.NewComputed(g.graph, "primaryDimensions",
		g.computePrimaryDimensions, nil)
	g.availEntities = reactive.NewComputed(g.graph, "availableEntities",
		g.computeAvailableEntities, reactive.SlicesEqual)
	g.keyInfos = reactive.NewComputed(g.graph, "entityDimensionKeys",
		g.computeKeyInfos, nil)
	g.keyIndex = reactive.NewComputed(g.graph, "entityDimensionMap",
		g.computeKeyIndex, nil)
	g.selectedKeys = reactive.NewComputed(g.graph, "selectedKeys",
		g.computeSelectedKeys, reactive.SlicesEqual)
	g.displayTitle = reactive.NewComputed(g.graph, "displayTitle",
		g.computeDisplayTitle, reactive.Comparable)

	// the one side-effecting reaction: fetch on variable-id set change
	reactive.NewReaction(g.graph, g.variableIDs, reactive.SlicesEqual, g.startFetch)

	return g
}

// --- derivations -----------------------------------------------------------

func (g *Grapher) computeVariableIDs() []int {
	seen := map[int]bool{}
	var ids []int
	for _, spec := range g.dims.Get() {
		if !seen[spec.VariableID] {
			seen[spec.VariableID] = true
			ids = append(ids, spec.VariableID)
		}
	}
	sort.Ints(ids)
	return ids
}

func (g *Grapher) computeIsReady() bool {
	t := g.tbl.Get()
	if t == nil {
		return false
	}
	for _, id := range g.variableIDs.Get() {
		if !t.HasColumnForVariable(id) {
			return false
		}
	}
	return true
}

func (g *Grapher) computeFilledDimensions() []*Dimension {
	if !g.ready.Get() {
		return nil
	}
	t := g.tbl.Get()
	specs := g.dims.Get()
	filled := make([]*Dimension, 0, len(specs))
	for i, spec := range specs {
		col, ok := t.ColumnByVariableID(spec.VariableID)
		if !ok {
			// unreachable while ready, but never raise from a derivation
			continue
		}
		filled = append(filled, &Dimension{Spec: spec, Index: i, Column: col})
	}
	return filled
}

func (g *Grapher) computePrimaryDimensions() []*Dimension {
	var primary []*Dimension
	for _, dim := range g.filledDims.Get() {
		if dim.Property() == PropertyY {
			primary = append(primary, dim)
		}
	}
	return primary
}

func (g *Grapher) computeAvailableEntities() []string {
	seen := map[string]bool{}
	var entities []string
	for _, dim := range g.filledDims.Get() {
		if dim.Property() != PropertyX && dim.Property() != PropertyY {
			continue
		}
		for _, name := range dim.Column.EntityNamesUniq() {
			if !seen[name] {
				seen[name] = true
				entities = append(entities, name)
			}
		}
	}
	return entities
}

func (g *Grapher) computeKeyInfos() []*EntityDimensionInfo {
	primary := g.primaryDims.Get()
	singleVariable := len(g.variableIDs.Get()) == 1
	singleEntity := len(g.availEntities.Get()) == 1
	disambiguate := len(primary) > 1 && g.countryMode.Get() != ChangeCountry
	return makeKeyInfos(primary, singleVariable, singleEntity, disambiguate)
}

func (g *Grapher) computeKeyIndex() map[EntityDimensionKey]*EntityDimensionInfo {
	infos := g.keyInfos.Get()
	index := make(map[EntityDimensionKey]*EntityDimensionInfo, len(infos))
	for _, info := range infos {
		index[info.Key] = info
	}
	return index
}

func (g *Grapher) computeDisplayTitle() string {
	title := g.title.Get()
	if title != "" || g.authoring {
		// authoring tools show the raw title so the author sees what is
		// actually persisted
		return title
	}
	var names []string
	for _, dim := range g.primaryDims.Get() {
		names = append(names, dim.DisplayName())
	}
	return strings.Join(names, " and ")
}

// --- public read surface ---------------------------------------------------

// IsReady reports whether every variable id referenced by the configured
// dimensions has a resolved column in the table.
func (g *Grapher) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready.Get()
}

// VariableIDs returns the sorted distinct variable ids the configured
// dimensions reference.
func (g *Grapher) VariableIDs() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.variableIDs.Get()
}

// FilledDimensions returns the resolved dimensions, or an empty list while
// the chart is not ready.
func (g *Grapher) FilledDimensions() []*Dimension {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.filledDims.Get()
}

// PrimaryDimensions returns the resolved y-property dimensions.
func (g *Grapher) PrimaryDimensions() []*Dimension {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.primaryDims.Get()
}

// IsSingleVariable reports whether exactly one variable is configured across
// all dimensions; key labels degrade to plain entity names in that case.
func (g *Grapher) IsSingleVariable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.variableIDs.Get()) == 1
}

// IsSingleEntity reports whether exactly one entity is reachable through the
// configured axis dimensions.
func (g *Grapher) IsSingleEntity() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.availEntities.Get()) == 1
}

// AvailableEntities lists the entity names reachable through the configured
// axis dimensions, in insertion order.
func (g *Grapher) AvailableEntities() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.availEntities.Get()
}

// AvailableEntityCodes lists the entity codes for AvailableEntities.
func (g *Grapher) AvailableEntityCodes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	codes := map[string]bool{}
	var out []string
	for _, info := range g.keyInfos.Get() {
		if info.EntityCode != "" && !codes[info.EntityCode] {
			codes[info.EntityCode] = true
			out = append(out, info.EntityCode)
		}
	}
	return out
}

// EntityDimensionMap returns the key index: one entry per (entity, primary
// dimension) pair.
func (g *Grapher) EntityDimensionMap() map[EntityDimensionKey]*EntityDimensionInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keyIndex.Get()
}

// KeyInfos returns the key index entries in dimension-then-entity order.
func (g *Grapher) KeyInfos() []*EntityDimensionInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keyInfos.Get()
}

// LookupKey resolves a key against the current index. Unknown keys are a
// caller error.
func (g *Grapher) LookupKey(key EntityDimensionKey) (*EntityDimensionInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookupKeyLocked(key)
}

func (g *Grapher) lookupKeyLocked(key EntityDimensionKey) (*EntityDimensionInfo, error) {
	info, ok := g.keyIndex.Get()[key]
	if !ok {
		return nil, NewUnknownKeyError(key)
	}
	return info, nil
}

// DisplayTitle returns the configured title, falling back to the primary
// dimension names outside authoring mode.
func (g *Grapher) DisplayTitle() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.displayTitle.Get()
}

// Table returns the ingested table, or nil before the first write-back.
func (g *Grapher) Table() *table.Table {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tbl.Get()
}

// TimeDomain resolves the configured min/max time bounds against the time
// extent of the primary dimensions. ok is false while no primary dimension
// has data.
func (g *Grapher) TimeDomain() (minTime, maxTime int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	have := false
	lo, hi := 0, 0
	for _, dim := range g.primaryDims.Get() {
		dmin, okMin := dim.Column.MinTime()
		dmax, okMax := dim.Column.MaxTime()
		if !okMin || !okMax {
			continue
		}
		if !have {
			lo, hi, have = dmin, dmax, true
			continue
		}
		if dmin < lo {
			lo = dmin
		}
		if dmax > hi {
			hi = dmax
		}
	}
	if !have {
		return 0, 0, false
	}

	minTime, maxTime = lo, hi
	if b := g.minTime.Get(); b != nil {
		minTime = b.Resolve(lo, hi)
	}
	if b := g.maxTime.Get(); b != nil {
		maxTime = b.Resolve(lo, hi)
	}
	return minTime, maxTime, true
}

// Config reconstructs the persisted configuration from the current roots.
func (g *Grapher) Config() *Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &Config{
		Title:               g.title.Get(),
		Type:                g.chartType.Get(),
		Dimensions:          g.dims.Get(),
		SelectedData:        g.selected.Get(),
		MinTime:             g.minTime.Get(),
		MaxTime:             g.maxTime.Get(),
		MinPopulationFilter: g.minPop.Get(),
		AddCountryMode:      g.countryMode.Get(),
	}
}

// --- setters ---------------------------------------------------------------

func (g *Grapher) SetTitle(title string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.title.Set(title)
}

// SetDimensions replaces the configured dimensions. Changing the resolved
// variable-id set triggers at most one new fetch.
func (g *Grapher) SetDimensions(specs []DimensionSpec) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dims.Set(specs)
}

func (g *Grapher) SetAddCountryMode(mode AddCountryMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.countryMode.Set(mode)
}

func (g *Grapher) SetMinTime(bound *TimeBound) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.minTime.Set(bound)
}

func (g *Grapher) SetMaxTime(bound *TimeBound) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maxTime.Set(bound)
}

// SetMinPopulationFilter adds, replaces or removes the pop_filter column and
// records the threshold in the persisted configuration. Passing nil clears
// the filter and restores the unfiltered row view.
func (g *Grapher) SetMinPopulationFilter(minPopulation *int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.minPop.Set(minPopulation)
	if t := g.tbl.Get(); t != nil {
		g.applyPopulationFilter(t)
		g.tbl.Set(t) // same table, new filter state: invalidate dependents
	}
}

func (g *Grapher) applyPopulationFilter(t *table.Table) {
	t.DeleteColumnBySlug(PopulationFilterSlug)
	minPopulation := g.minPop.Get()
	if minPopulation == nil {
		return
	}
	threshold := float64(*minPopulation)
	t.AddFilterColumn(PopulationFilterSlug, func(row table.Row) bool {
		pop, ok := g.populations[row.EntityName()]
		return !ok || pop >= threshold
	})
}

// --- data write-back -------------------------------------------------------

// ReceiveData ingests a variable bundle and swaps it in as the table root.
// It supersedes any in-flight fetch: an older fetch that completes later is
// discarded.
func (g *Grapher) ReceiveData(bundle *series.VariablesAndEntityKey) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchGen++
	if g.fetchCancel != nil {
		g.fetchCancel()
		g.fetchCancel = nil
	}
	return g.receiveLocked(bundle)
}

func (g *Grapher) receiveLocked(bundle *series.VariablesAndEntityKey) error {
	t, err := series.Ingest(bundle, g.log)
	if err != nil {
		return err
	}
	g.applyPopulationFilter(t)
	g.tbl.Set(t)
	return nil
}

// startFetch is the reaction effect wired to the variable-id set. It runs
// once at construction and then once per distinct value of the set; a newer
// set cancels the previous fetch's context and stale results are discarded
// at write-back regardless.
func (g *Grapher) startFetch(ids []int) {
	g.fetchGen++
	gen := g.fetchGen
	if g.fetchCancel != nil {
		g.fetchCancel()
		g.fetchCancel = nil
	}
	if g.fetcher == nil || len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.fetchCancel = cancel
	g.log.V(1).Info("fetching variables", "ids", ids)

	go func() {
		bundle, err := g.fetcher.FetchVariables(ctx, ids)
		if err != nil {
			// the chart stays not-ready; retry policy belongs to the fetcher
			g.log.Error(NewFetchError(ids, err), "variable fetch failed")
			return
		}
		g.receiveFetched(gen, bundle)
	}()
}

func (g *Grapher) receiveFetched(gen int, bundle *series.VariablesAndEntityKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.fetchGen {
		g.log.V(1).Info("discarding stale fetch result", "generation", gen)
		return
	}
	if err := g.receiveLocked(bundle); err != nil {
		g.log.Error(err, "failed to ingest fetched variables")
	}
}
