// Package reactive implements a dependency-tracked computation cache. Root
// values are mutated through explicit setters; derived values are pure
// functions whose reads are recorded automatically during evaluation, so a
// setter invalidates exactly the derived values that transitively depended
// on the root it changed. Recomputation is demand-driven: nothing is
// re-evaluated until it is read again.
//
// The graph is single-threaded by contract. Callers own one graph per
// session and never share it across goroutines.
package reactive

import (
	"fmt"

	"github.com/go-logr/logr"
)

type node struct {
	id         string
	dirty      bool
	deps       map[*node]struct{} // nodes read during the last evaluation
	dependents map[*node]struct{} // reverse edges, drives invalidation
}

func newNode(id string) *node {
	return &node{
		id:         id,
		dirty:      true,
		deps:       map[*node]struct{}{},
		dependents: map[*node]struct{}{},
	}
}

// Graph is the node registry plus the evaluation stack used for automatic
// read tracking.
type Graph struct {
	nextID    int
	evalStack []*node
	reactions []reaction
	flushing  bool
	log       logr.Logger
}

// NewGraph creates an empty computation graph.
func NewGraph(log logr.Logger) *Graph {
	return &Graph{log: log.WithName("reactive")}
}

func (g *Graph) newNode(name string) *node {
	id := fmt.Sprintf("node_%d_%s", g.nextID, name)
	g.nextID++
	return newNode(id)
}

// track records that the currently evaluating computed value read n.
func (g *Graph) track(n *node) {
	if len(g.evalStack) == 0 {
		return
	}
	reader := g.evalStack[len(g.evalStack)-1]
	reader.deps[n] = struct{}{}
	n.dependents[reader] = struct{}{}
}

// beginEval drops the node's recorded reads from the previous evaluation and
// pushes it onto the evaluation stack; the fresh read set is rebuilt as the
// evaluation runs.
func (g *Graph) beginEval(n *node) {
	for dep := range n.deps {
		delete(dep.dependents, n)
	}
	n.deps = map[*node]struct{}{}
	g.evalStack = append(g.evalStack, n)
}

func (g *Graph) endEval() {
	g.evalStack = g.evalStack[:len(g.evalStack)-1]
}

func (g *Graph) evaluating() bool { return len(g.evalStack) > 0 }

// invalidate marks every transitive dependent of n dirty. Already-dirty
// nodes have propagated before, so the walk stops there.
func (g *Graph) invalidate(n *node) {
	for dependent := range n.dependents {
		if dependent.dirty {
			continue
		}
		dependent.dirty = true
		g.invalidate(dependent)
	}
}

// onRootChanged is called by every root setter: it invalidates dependents
// and re-runs the registered reactions. A reaction only fires its effect
// when the value it watches actually changed.
func (g *Graph) onRootChanged(n *node) {
	g.invalidate(n)
	g.flush()
}

func (g *Graph) flush() {
	if g.flushing {
		// a reaction effect mutated a root; the outer flush loop picks the
		// change up on its next pass
		return
	}
	g.flushing = true
	defer func() { g.flushing = false }()

	// loop until quiescent: an effect may mutate roots that other
	// reactions watch
	for {
		fired := false
		for _, r := range g.reactions {
			if r.run() {
				fired = true
			}
		}
		if !fired {
			return
		}
	}
}
