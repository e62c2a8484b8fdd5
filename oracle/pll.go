// Package oracle implements FullPLL, the dynamic all-pairs distance
// oracle the heat-degree engine uses to estimate per-session path delay
// (§4.1, C2 in the design). It maintains a 2-hop labeling that supports
// sub-linear point queries and incremental/decremental maintenance as
// the underlying topology graph changes.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package oracle

import (
	"sort"
	"sync"

	"github.com/qosmcast/heatctl/graph"
)

// Oracle owns a private copy of the graph it labels; callers push every
// topology mutation through Insert/Remove/SetWeight rather than mutating
// a shared graph.Graph, so the labels and the graph never drift apart.
type Oracle struct {
	mu     sync.RWMutex
	g      *graph.Graph
	order  []uint64            // landmark order, ascending by rank
	rank   map[uint64]int      // node -> position in order
	labels map[uint64]map[uint64]float64 // node -> hub -> distance

	version int64
	cache   sync.Map // cacheKey -> float64
}

type cacheKey struct{ u, v uint64 }

func New() *Oracle {
	return &Oracle{
		g:      graph.New(),
		rank:   make(map[uint64]int),
		labels: make(map[uint64]map[uint64]float64),
	}
}

// Build performs a full pruned-Dijkstra labeling of g (§4.1). The oracle
// keeps its own clone of g so subsequent Insert/Remove calls don't race
// with the caller's copy.
func Build(g *graph.Graph) *Oracle {
	o := New()
	o.g = g.Clone()
	o.rebuildOrder()
	o.rebuildLabels()
	return o
}

func (o *Oracle) rebuildOrder() {
	nodes := o.g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	o.order = nodes
	o.rank = make(map[uint64]int, len(nodes))
	for i, n := range nodes {
		o.rank[n] = i
	}
}

// rebuildLabels runs pruned Dijkstra from every landmark in order,
// inserting L[u][v_k] <- D[u] only when the current labels can't already
// answer v_k->u within D[u] (§4.1).
func (o *Oracle) rebuildLabels() {
	o.labels = make(map[uint64]map[uint64]float64, len(o.order))
	for _, n := range o.order {
		o.labels[n] = make(map[uint64]float64)
	}
	for _, vk := range o.order {
		o.prunedDijkstraFrom(vk)
	}
	o.bumpVersion()
}

func (o *Oracle) prunedDijkstraFrom(vk uint64) {
	dist := map[uint64]float64{vk: 0}
	pq := graph.NewPQ()
	pq.Push(vk, 0)
	for pq.Len() > 0 {
		u, du, ok := pq.Pop()
		if !ok {
			break
		}
		if d, seen := dist[u]; seen && du > d {
			continue
		}
		if o.queryLabelsOnly(vk, u) <= du {
			continue // pruned: labels already answer this within du
		}
		o.labels[u][vk] = du
		for _, v := range o.g.Neighbors(u) {
			attr, _ := o.g.Edge(u, v)
			nd := du + attr.Weight
			if old, seen := dist[v]; !seen || nd < old {
				dist[v] = nd
				pq.Push(v, nd)
			}
		}
	}
}

// queryLabelsOnly answers from the label store alone (no cache), used
// internally during (re)build/maintenance.
func (o *Oracle) queryLabelsOnly(u, v uint64) float64 {
	if u == v {
		return 0
	}
	lu, lv := o.labels[u], o.labels[v]
	if lu == nil || lv == nil {
		return graph.Inf
	}
	best := graph.Inf
	// iterate the smaller label set
	if len(lu) > len(lv) {
		lu, lv = lv, lu
	}
	for hub, du := range lu {
		if dv, ok := lv[hub]; ok {
			if d := du + dv; d < best {
				best = d
			}
		}
	}
	return best
}

func (o *Oracle) bumpVersion() {
	o.version++
	o.cache = sync.Map{}
}

// Query answers d(u,v), O(|L(u)|+|L(v)|), +Inf if disconnected (§4.1).
// Results are cached per graph version and invalidated on every update.
// The cache is a sync.Map so concurrent Query calls, which only hold the
// read lock against o.labels/o.g, never race on the cache store (§5:
// "queries are safe to issue concurrently with each other").
func (o *Oracle) Query(u, v uint64) float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if u == v {
		return 0
	}
	key := cacheKey{min64(u, v), max64(u, v)}
	if d, ok := o.cache.Load(key); ok {
		return d.(float64)
	}
	d := o.queryLabelsOnly(u, v)
	o.cache.Store(key, d)
	return d
}

func (o *Oracle) HasNode(n uint64) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.g.HasNode(n)
}

// Snapshot returns a read-only clone of the graph the oracle is
// currently labeling, for callers (the heat engine) that need to run
// their own graph algorithms (Steiner, MST) against the same topology.
func (o *Oracle) Snapshot() *graph.Graph {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.g.Clone()
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
