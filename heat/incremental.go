package heat

import (
	"github.com/qosmcast/heatctl/graph"
	"github.com/qosmcast/heatctl/session"
)

// edgeUpdater is the subset of the oracle the engine needs to notify on
// edge changes (§4.2 change_edge_delay: "notify the oracle (C2)").
type edgeUpdater interface {
	distancer
	InsertEdge(a, b uint64, bw, weight float64)
	RemoveEdge(a, b uint64)
}

// AddReceiver implements §4.2 add_receiver(s, r): recompute relevance for
// (s,r) on every edge, rebuild heat on touched edges, and reroute s plus
// any session whose tree now crosses a newly congested edge.
func (e *Engine) AddReceiver(src, recv uint64) error {
	s, ok := e.sessions.Get(src)
	if !ok {
		return ErrUnknownSession(src)
	}
	if err := e.sessions.AddReceiver(src, recv); err != nil {
		return err
	}
	touched := e.evaluateReceiver(s, recv, e.allEdges())
	toRebuild := e.applyTouchedEdges(touched)
	toRebuild[src] = true
	e.rebuildQueued(toRebuild)
	return nil
}

// RemoveReceiver implements §4.2 remove_receiver(s, r): undo (s,r)'s
// contribution on every edge via the contribution ledger, rebuild heat on
// touched edges, then prune r out of the tree by walking toward the root.
func (e *Engine) RemoveReceiver(src, recv uint64) error {
	s, ok := e.sessions.Get(src)
	if !ok {
		return ErrUnknownSession(src)
	}
	touched := make(map[graph.EdgeKey]bool)
	for _, k := range e.allEdges() {
		ck := contribKey{edge: k, src: src, recv: recv}
		if e.contrib[ck] {
			e.decR(k, src)
			delete(e.contrib, ck)
			touched[k] = true
		}
	}
	if err := e.sessions.RemoveReceiver(src, recv); err != nil {
		return err
	}
	e.rebuildHeat(keys(touched))
	e.pruneReceiver(s, recv)
	return nil
}

// pruneReceiver implements §4.2's S5 pruning rule: walk the unique path
// from r toward the root, deleting interior nodes whose tree-degree drops
// to 1 and which are neither the source nor another receiver. s.Receivers
// must already have recv removed.
func (e *Engine) pruneReceiver(s *session.Session, recv uint64) {
	tree, ok := e.trees[s.SrcDpid]
	if !ok || !tree.HasNode(recv) {
		return
	}
	parent, _ := graph.RootTree(tree, s.SrcDpid)
	node := recv
	for {
		if node == s.SrcDpid || len(tree.Neighbors(node)) > 1 || s.Receivers[node] {
			break
		}
		p, hasParent := parent[node]
		tree.RemoveNode(node)
		if !hasParent {
			break
		}
		node = p
	}
}

// ChangeEdgeDelay implements §4.2 change_edge_delay(a, b, new): always
// notifies the oracle; a decrease needs no relevance re-evaluation, an
// increase may evict sessions from R and forces a reroute of anyone who
// loses a tree edge or whose tree edge becomes congested.
func (e *Engine) ChangeEdgeDelay(oracle edgeUpdater, a, b uint64, newWeight float64) error {
	attr, existed := e.g.Edge(a, b)
	if !existed {
		return ErrUnknownEdge{A: a, B: b}
	}
	old := attr.Weight
	oracle.InsertEdge(a, b, attr.Bandwidth, newWeight)
	e.g.SetWeight(a, b, newWeight)
	e.g.SetWeight(b, a, newWeight)

	if newWeight <= old {
		return nil
	}

	toRebuild := make(map[uint64]bool)
	for k, bySession := range e.relevance {
		for src := range copySet(bySession) {
			s, ok := e.sessions.Get(src)
			if !ok {
				continue
			}
			stillQualifies := false
			for _, r := range s.ReceiverList() {
				eAttr, ok := e.g.Edge(k.U, k.V)
				if !ok {
					continue
				}
				if e.est(src, r, k.U, k.V, eAttr.Weight) <= s.DelayBound {
					stillQualifies = true
					break
				}
			}
			if !stillQualifies {
				e.decR(k, src)
				for _, r := range s.ReceiverList() {
					delete(e.contrib, contribKey{edge: k, src: src, recv: r})
				}
				if e.treeHasEdge(src, k) {
					toRebuild[src] = true
				}
			}
		}
		if cell, ok := e.heat[k]; ok && !cell.Available {
			for src := range e.relevance[k] {
				if e.treeHasEdge(src, k) {
					toRebuild[src] = true
				}
			}
		}
	}
	e.rebuildHeat(e.allEdges())
	e.rebuildQueued(toRebuild)
	return nil
}

func copySet(m map[uint64]int) map[uint64]int {
	out := make(map[uint64]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// applyTouchedEdges recomputes heat on touched edges and returns the set
// of sessions that must be queued for reroute because one of their
// installed tree edges just became congested (§4.2 add_receiver).
func (e *Engine) applyTouchedEdges(touched map[graph.EdgeKey]bool) map[uint64]bool {
	e.rebuildHeat(keys(touched))
	toRebuild := make(map[uint64]bool)
	for k := range touched {
		cell, ok := e.heat[k]
		if !ok || cell.Available {
			continue
		}
		for src := range e.relevance[k] {
			if e.treeHasEdge(src, k) {
				toRebuild[src] = true
			}
		}
	}
	return toRebuild
}

func (e *Engine) rebuildQueued(sessions map[uint64]bool) {
	for src := range sessions {
		e.rebuildTree(src)
	}
}

func keys(m map[graph.EdgeKey]bool) []graph.EdgeKey {
	out := make([]graph.EdgeKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
