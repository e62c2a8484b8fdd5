package oracle

import "github.com/qosmcast/heatctl/graph"

// InsertEdge adds a new edge, or lowers the weight of an existing one
// (§4.1 "Incremental"). A no-op for non-existent-edge removal requests
// and for a same-weight update (§4.1 "Failure semantics").
func (o *Oracle) InsertEdge(a, b uint64, bw, weight float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	old, existed := o.g.Edge(a, b)
	if existed && weight == old.Weight {
		return
	}
	if existed && weight > old.Weight {
		o.decrementLocked(a, b, weight, bw, old.Weight)
		return
	}

	if !existed {
		o.ensureRank(a)
		o.ensureRank(b)
	}
	o.g.AddEdge(a, b, graph.EdgeAttr{Weight: weight, Bandwidth: bw})
	if !existed {
		o.labels[a] = zeroOr(o.labels[a])
		o.labels[b] = zeroOr(o.labels[b])
	}

	hubs := o.hubUnion(a, b)
	for _, v := range hubs {
		da := o.queryLabelsOnly(v, a)
		db := o.queryLabelsOnly(v, b)
		seed := make(map[uint64]float64, 2)
		if cand := da + weight; cand < db {
			seed[b] = cand
		}
		if cand := db + weight; cand < da {
			seed[a] = cand
		}
		if len(seed) == 0 {
			continue
		}
		o.boundedDijkstraFrom(v, seed)
	}
	o.bumpVersion()
}

func zeroOr(m map[uint64]float64) map[uint64]float64 {
	if m == nil {
		return make(map[uint64]float64)
	}
	return m
}

func (o *Oracle) ensureRank(n uint64) int {
	if r, ok := o.rank[n]; ok {
		return r
	}
	r := len(o.order)
	o.order = append(o.order, n)
	o.rank[n] = r
	return r
}

// hubUnion returns the union of L[a] and L[b]'s hubs, in ascending
// landmark order (§4.1: "in ascending hub-order").
func (o *Oracle) hubUnion(a, b uint64) []uint64 {
	seen := make(map[uint64]bool)
	var out []uint64
	for _, labels := range []map[uint64]float64{o.labels[a], o.labels[b]} {
		for h := range labels {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	sortByRank(out, o.rank)
	return out
}

func sortByRank(nodes []uint64, rank map[uint64]int) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && rank[nodes[j-1]] > rank[nodes[j]]; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}

// boundedDijkstraFrom resumes a pruned Dijkstra rooted at hub v, seeded
// with already-known improved distances. A relaxation that still beats
// the current label-only query from v is installed and its neighbors are
// enqueued; otherwise the branch is pruned (§4.1).
func (o *Oracle) boundedDijkstraFrom(v uint64, seed map[uint64]float64) {
	pq := graph.NewPQ()
	best := make(map[uint64]float64, len(seed))
	for n, d := range seed {
		pq.Push(n, d)
		best[n] = d
	}
	for pq.Len() > 0 {
		u, du, ok := pq.Pop()
		if !ok {
			break
		}
		if d, seen := best[u]; seen && du > d {
			continue
		}
		if o.queryLabelsOnly(v, u) <= du {
			continue
		}
		if o.labels[u] == nil {
			o.labels[u] = make(map[uint64]float64)
		}
		o.labels[u][v] = du
		for _, w := range o.g.Neighbors(u) {
			attr, _ := o.g.Edge(u, w)
			nd := du + attr.Weight
			if old, seen := best[w]; !seen || nd < old {
				best[w] = nd
				pq.Push(w, nd)
			}
		}
	}
}

// RemoveEdge deletes an edge. A no-op if the edge doesn't exist
// (§4.1 "Failure semantics").
func (o *Oracle) RemoveEdge(a, b uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	attr, existed := o.g.Edge(a, b)
	if !existed {
		return
	}
	o.g.RemoveEdge(a, b)
	o.decrementLocked(a, b, graph.Inf, attr.Bandwidth, attr.Weight)
}

// decrementLocked implements §4.1 "Decremental": compute the affected
// sets on both sides of the edge that just got removed/heavier, drop the
// labels that crossed between them, then restore via a greedy sweep.
// newWeight == graph.Inf signals an outright removal.
func (o *Oracle) decrementLocked(a, b uint64, newWeight, bw, oldWeight float64) {
	if newWeight != graph.Inf {
		o.g.AddEdge(a, b, graph.EdgeAttr{Weight: newWeight, Bandwidth: bw})
	}

	affectedA := o.affectedSet(a, b, oldWeight)
	affectedB := o.affectedSet(b, a, oldWeight)

	for v := range affectedA {
		for h := range affectedB {
			delete(o.labels[v], h)
		}
	}
	for v := range affectedB {
		for h := range affectedA {
			delete(o.labels[v], h)
		}
	}

	small, large := affectedA, affectedB
	if len(large) < len(small) {
		small, large = large, small
	}
	for u := range small {
		dist := o.g.Dijkstra(u)
		for v := range large {
			d, ok := dist[v]
			if !ok {
				continue
			}
			if d < o.queryLabelsOnly(u, v) {
				hi, lo := u, v
				if o.rank[lo] > o.rank[hi] {
					hi, lo = lo, hi
				}
				if o.labels[hi] == nil {
					o.labels[hi] = make(map[uint64]float64)
				}
				o.labels[hi][lo] = d
			}
		}
	}
	o.bumpVersion()
}

// affectedSet finds nodes whose distance to y may have grown now that
// the x-y edge is gone/heavier: y itself, plus every node whose old
// shortest path to y passed through the x-y edge, identified by the
// witness equality d(u,x) + oldWeight == d(u,y) evaluated against the
// pre-update labels (§4.1 "Decremental").
func (o *Oracle) affectedSet(x, y uint64, oldWeight float64) map[uint64]bool {
	affected := map[uint64]bool{y: true}
	for _, u := range o.order {
		if u == y {
			continue
		}
		dux := o.queryLabelsOnly(u, x)
		duy := o.queryLabelsOnly(u, y)
		if dux == graph.Inf || duy == graph.Inf {
			continue
		}
		if dux+oldWeight == duy {
			affected[u] = true
		}
	}
	return affected
}
