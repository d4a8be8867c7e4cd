package reactive

// Root is a mutable input value of the graph. All mutation goes through Set;
// assigning around it would silently desynchronize memoized derivations from
// their sources.
type Root[T any] struct {
	g     *Graph
	n     *node
	value T
}

// NewRoot registers a root value.
func NewRoot[T any](g *Graph, name string, initial T) *Root[T] {
	r := &Root[T]{g: g, n: g.newNode(name), value: initial}
	r.n.dirty = false
	return r
}

// Get returns the current value, recording the read when called from inside
// a derivation.
func (r *Root[T]) Get() T {
	r.g.track(r.n)
	return r.value
}

// Set assigns a new value, invalidates the derivations that transitively
// read this root, and re-runs reactions. Derivations are pure: calling Set
// from inside one is a programming error.
func (r *Root[T]) Set(value T) {
	if r.g.evaluating() {
		panic("reactive: root mutated during a derivation: " + r.n.id)
	}
	r.value = value
	r.g.onRootChanged(r.n)
}

// Computed is a memoized pure function of roots and other computed values.
// Get re-evaluates only when a transitively-reachable input changed since
// the value was last produced.
type Computed[T any] struct {
	g       *Graph
	n       *node
	compute func() T
	equal   func(a, b T) bool
	value   T
	valid   bool
	changed bool
}

// NewComputed registers a derived value. The equal function decides whether
// a re-evaluation produced a new value (reactions only fire on new values);
// pass nil to treat every re-evaluation as a change.
func NewComputed[T any](g *Graph, name string, compute func() T, equal func(a, b T) bool) *Computed[T] {
	return &Computed[T]{g: g, n: g.newNode(name), compute: compute, equal: equal}
}

// Get returns the memoized value, recomputing it first if an input changed.
func (c *Computed[T]) Get() T {
	c.g.track(c.n)
	if c.n.dirty || !c.valid {
		c.g.beginEval(c.n)
		value := c.compute()
		c.g.endEval()

		c.changed = !c.valid || c.equal == nil || !c.equal(c.value, value)
		c.value = value
		c.valid = true
		c.n.dirty = false
		if c.changed {
			c.g.log.V(4).Info("recomputed", "node", c.n.id)
		}
	}
	return c.value
}

// Comparable is the equality function for comparable value types.
func Comparable[T comparable](a, b T) bool { return a == b }

// SlicesEqual compares two slices element-wise.
func SlicesEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
