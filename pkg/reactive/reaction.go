package reactive

type reaction interface {
	run() bool
}

// Reaction wires a side effect to one computed value. The effect runs once
// immediately at registration regardless of prior state, and afterwards only
// when the watched value changes, never on mere re-evaluation.
type Reaction[T any] struct {
	g      *Graph
	source *Computed[T]
	equal  func(a, b T) bool
	effect func(T)
	last   T
	seen   bool
}

// NewReaction registers the reaction and fires the initial effect.
func NewReaction[T any](g *Graph, source *Computed[T], equal func(a, b T) bool, effect func(T)) *Reaction[T] {
	r := &Reaction[T]{g: g, source: source, equal: equal, effect: effect}
	g.reactions = append(g.reactions, r)

	r.last = source.Get()
	r.seen = true
	effect(r.last)
	return r
}

func (r *Reaction[T]) run() bool {
	value := r.source.Get()
	if r.seen && r.equal != nil && r.equal(r.last, value) {
		return false
	}
	r.last = value
	r.seen = true
	r.effect(value)
	return true
}
