package chart

import (
	"github.com/vizkit/grapher/pkg/util"
)

type entityDimensionPair struct {
	entityID       int
	dimensionIndex int
}

// computeSelectedKeys is the selection read path: the persisted entries are
// filtered through the validity rule (the dimension index addresses an
// existing primary dimension and the entity has data in it), deduplicated by
// (entity, dimension), and collapsed to the most-recently-added entity in
// change-country mode. Invalid entries are dropped from the view, never
// mutated in place.
func (g *Grapher) computeSelectedKeys() []EntityDimensionKey {
	if !g.ready.Get() {
		return nil
	}

	byPair := map[entityDimensionPair]*EntityDimensionInfo{}
	for _, info := range g.keyInfos.Get() {
		byPair[entityDimensionPair{info.EntityID, info.DimensionIndex}] = info
	}

	seen := map[entityDimensionPair]bool{}
	var valid []*EntityDimensionInfo
	for _, entry := range g.selected.Get() {
		pair := entityDimensionPair{entry.EntityID, entry.Index}
		info, ok := byPair[pair]
		if !ok || seen[pair] {
			continue
		}
		seen[pair] = true
		valid = append(valid, info)
	}

	if g.countryMode.Get() == ChangeCountry && len(valid) > 0 {
		lastEntity := valid[len(valid)-1].EntityID
		collapsed := valid[:0]
		for _, info := range valid {
			if info.EntityID == lastEntity {
				collapsed = append(collapsed, info)
			}
		}
		valid = collapsed
	}

	return util.Map(func(info *EntityDimensionInfo) EntityDimensionKey { return info.Key }, valid)
}

// SelectedKeys returns the currently selected series keys.
func (g *Grapher) SelectedKeys() []EntityDimensionKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selectedKeys.Get()
}

// SetSelectedKeys resolves the keys back to persisted selection entries and
// replaces the selection atomically, carrying over previously set colors.
// An unknown key fails the whole write; writing while not ready is a no-op.
func (g *Grapher) SetSelectedKeys(keys []EntityDimensionKey) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setSelectedKeysLocked(keys)
}

func (g *Grapher) setSelectedKeysLocked(keys []EntityDimensionKey) error {
	if !g.ready.Get() {
		return nil
	}

	colors := map[entityDimensionPair]string{}
	for _, entry := range g.selected.Get() {
		if entry.Color != "" {
			colors[entityDimensionPair{entry.EntityID, entry.Index}] = entry.Color
		}
	}

	entries := make([]SelectionEntry, 0, len(keys))
	for _, key := range keys {
		info, err := g.lookupKeyLocked(key)
		if err != nil {
			return err
		}
		entry := SelectionEntry{EntityID: info.EntityID, Index: info.DimensionIndex}
		entry.Color = colors[entityDimensionPair{entry.EntityID, entry.Index}]
		entries = append(entries, entry)
	}

	g.selected.Set(entries)
	return nil
}

// ToggleKey adds the key to the selection, or removes it if already
// selected.
func (g *Grapher) ToggleKey(key EntityDimensionKey) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ready.Get() {
		return nil
	}
	if _, err := g.lookupKeyLocked(key); err != nil {
		return err
	}

	current := g.selectedKeys.Get()
	var next []EntityDimensionKey
	if util.Contains(current, key) {
		next = util.Filter(func(k EntityDimensionKey) bool { return k != key }, current)
	} else {
		next = append(append(next, current...), key)
	}
	return g.setSelectedKeysLocked(next)
}

// SetKeyColor records a color on the persisted entry for the key. There is
// no separate color store: this is a read-modify-write of the selection
// list.
func (g *Grapher) SetKeyColor(key EntityDimensionKey, color string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, err := g.lookupKeyLocked(key)
	if err != nil {
		return err
	}

	entries := g.selected.Get()
	next := make([]SelectionEntry, len(entries))
	for i, entry := range entries {
		if entry.EntityID == info.EntityID && entry.Index == info.DimensionIndex {
			entry.Color = color
		}
		next[i] = entry
	}
	g.selected.Set(next)
	return nil
}

// ResetSelection clears the persisted selection.
func (g *Grapher) ResetSelection() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selected.Set(nil)
}

// SelectedEntities returns the distinct entity names of the current
// selection, in selection order.
func (g *Grapher) SelectedEntities() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selectedEntityField(func(info *EntityDimensionInfo) string { return info.EntityName })
}

// SelectedEntityCodes returns the distinct entity codes of the current
// selection.
func (g *Grapher) SelectedEntityCodes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selectedEntityField(func(info *EntityDimensionInfo) string { return info.EntityCode })
}

func (g *Grapher) selectedEntityField(field func(*EntityDimensionInfo) string) []string {
	index := g.keyIndex.Get()
	seen := map[string]bool{}
	var out []string
	for _, key := range g.selectedKeys.Get() {
		info, ok := index[key]
		if !ok {
			continue
		}
		v := field(info)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
