// Package heat is the heat-degree QoS multicast routing engine (C3, §4.2):
// it maintains the relevance matrix R and heat matrix H described in §3,
// and rebuilds affected multicast trees as receivers join/leave or edge
// delay changes.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package heat

import (
	"sort"

	"github.com/qosmcast/heatctl/graph"
	"github.com/qosmcast/heatctl/session"
)

// contribKey tracks the per-(session,receiver) relevance contribution on
// an edge, so remove_receiver can undo exactly what add_receiver did
// (§4.2: "the engine must remember per-(s,r) contributions").
type contribKey struct {
	edge graph.EdgeKey
	src  uint64
	recv uint64
}

// HeatCell is the H[u][v] tuple of §3: h_ok when uncongested, h_hot when
// congested, and the raw available flag so callers can tell which is live.
type HeatCell struct {
	HOk       float64
	HHot      float64
	Available bool
}

// Lookup returns the §3 per-session heat value for this cell: h_ok if the
// session already uses the edge or the edge is still uncongested, else
// h_hot.
func (c HeatCell) Lookup(sessionUsesEdge bool) float64 {
	if sessionUsesEdge || c.Available {
		return c.HOk
	}
	return c.HHot
}

// distancer is the subset of oracle.Oracle the engine needs: point
// queries against the current topology. Kept as an interface so tests can
// substitute a plain graph.Graph-backed stub.
type distancer interface {
	Query(u, v uint64) float64
}

// Engine owns R, H, and the installed tree for every session (§4.2).
type Engine struct {
	g        *graph.Graph
	dist     distancer
	sessions *session.Registry

	relevance map[graph.EdgeKey]map[uint64]int // R[u][v][s] = count
	heat      map[graph.EdgeKey]HeatCell
	contrib   map[contribKey]bool // which (edge,s,r) pairs currently count in R
	trees     map[uint64]*graph.Graph
	dirty     map[uint64]bool // sessions flagged "best-effort tree" per §7
}

// New builds an engine over g and dist (typically an *oracle.Oracle) and
// registry, running the §4.2 "Initialization" procedure.
func New(g *graph.Graph, dist distancer, registry *session.Registry) *Engine {
	e := &Engine{
		g:         g,
		dist:      dist,
		sessions:  registry,
		relevance: make(map[graph.EdgeKey]map[uint64]int),
		heat:      make(map[graph.EdgeKey]HeatCell),
		contrib:   make(map[contribKey]bool),
		trees:     make(map[uint64]*graph.Graph),
		dirty:     make(map[uint64]bool),
	}
	e.initRelevance()
	e.rebuildHeat(e.allEdges())
	for _, s := range registry.All() {
		e.rebuildTree(s.SrcDpid)
	}
	return e
}

func (e *Engine) allEdges() []graph.EdgeKey { return e.g.Edges() }

// est computes est(s,r,u,v) of §4.2 step 1: the best-case path delay for
// (source s, receiver r) routed via edge {u,v}, considering both
// orientations.
func (e *Engine) est(src, recv, u, v uint64, w float64) float64 {
	a := e.dist.Query(src, u) + w + e.dist.Query(v, recv)
	b := e.dist.Query(src, v) + w + e.dist.Query(u, recv)
	if a < b {
		return a
	}
	return b
}

// initRelevance is §4.2 step 1: for every edge, every session, every
// receiver, test est(s,r,u,v) <= D[s].
func (e *Engine) initRelevance() {
	for _, s := range e.sessions.All() {
		for _, r := range s.ReceiverList() {
			e.evaluateReceiver(s, r, e.allEdges())
		}
	}
}

// evaluateReceiver re-tests a single (s,r) pair against the given edges
// and updates R + the contribution ledger accordingly. Returns the set of
// edges whose R[edge][s] membership actually changed.
func (e *Engine) evaluateReceiver(s *session.Session, r uint64, edges []graph.EdgeKey) map[graph.EdgeKey]bool {
	touched := make(map[graph.EdgeKey]bool)
	for _, k := range edges {
		attr, ok := e.g.Edge(k.U, k.V)
		if !ok {
			continue
		}
		qualifies := e.est(s.SrcDpid, r, k.U, k.V, attr.Weight) <= s.DelayBound
		ck := contribKey{edge: k, src: s.SrcDpid, recv: r}
		already := e.contrib[ck]
		switch {
		case qualifies && !already:
			e.incR(k, s.SrcDpid)
			e.contrib[ck] = true
			touched[k] = true
		case !qualifies && already:
			e.decR(k, s.SrcDpid)
			delete(e.contrib, ck)
			touched[k] = true
		}
	}
	return touched
}

func (e *Engine) incR(k graph.EdgeKey, src uint64) {
	m, ok := e.relevance[k]
	if !ok {
		m = make(map[uint64]int)
		e.relevance[k] = m
	}
	m[src]++
}

func (e *Engine) decR(k graph.EdgeKey, src uint64) {
	m, ok := e.relevance[k]
	if !ok {
		return
	}
	m[src]--
	if m[src] <= 0 {
		delete(m, src)
	}
	if len(m) == 0 {
		delete(e.relevance, k)
	}
}

// rebuildHeat recomputes H[u][v] for exactly the given edges from R and
// the current edge capacity (§3 heat-matrix definition).
func (e *Engine) rebuildHeat(edges []graph.EdgeKey) {
	wmax := e.g.MaxWeight()
	n := float64(e.g.NodeCount())
	for _, k := range edges {
		attr, ok := e.g.Edge(k.U, k.V)
		if !ok {
			delete(e.heat, k)
			continue
		}
		var demand float64
		for src := range e.relevance[k] {
			if s, ok := e.sessions.Get(src); ok {
				demand += s.BwDemand
			}
		}
		available := demand <= attr.Bandwidth
		var hOk float64
		if n > 0 && wmax > 0 {
			hOk = attr.Weight / (n * wmax)
		}
		var hHot float64
		if attr.Bandwidth > 0 {
			ratio := demand / attr.Bandwidth
			hHot = ratio * ratio
		} else {
			hHot = graph.Inf
		}
		e.heat[k] = HeatCell{HOk: hOk, HHot: hHot, Available: available}
	}
}

// heatGraph builds G_s of §4.2 step 3: a clone of the physical graph
// reweighted by heat(s,·,·), restricted to edges where s is relevant.
func (e *Engine) heatGraph(src uint64) *graph.Graph {
	gs := graph.New()
	for _, k := range e.g.Edges() {
		m, ok := e.relevance[k]
		if !ok {
			continue
		}
		if _, relevant := m[src]; !relevant {
			continue
		}
		cell := e.heat[k]
		usesEdge := e.treeHasEdge(src, k)
		gs.AddEdge(k.U, k.V, graph.EdgeAttr{Weight: cell.Lookup(usesEdge)})
	}
	return gs
}

func (e *Engine) treeHasEdge(src uint64, k graph.EdgeKey) bool {
	t, ok := e.trees[src]
	if !ok {
		return false
	}
	return t.HasEdge(k.U, k.V)
}

// rebuildTree is §4.2 step 3 for one session: Steiner tree over the heat
// graph, rooted at the source. Falls back to the raw physical graph if
// the heat graph can't connect every terminal (§7 "Infeasible routing").
func (e *Engine) rebuildTree(src uint64) {
	s, ok := e.sessions.Get(src)
	if !ok {
		delete(e.trees, src)
		return
	}
	terminals := append([]uint64{src}, s.ReceiverList()...)
	sort.Slice(terminals, func(i, j int) bool { return terminals[i] < terminals[j] })

	gs := e.heatGraph(src)
	tree := graph.SteinerTree(gs, terminals)
	if !spansAll(tree, terminals) {
		tree = graph.SteinerTree(e.g, terminals)
		e.dirty[src] = true
	} else {
		delete(e.dirty, src)
	}
	e.trees[src] = tree
}

func spansAll(tree *graph.Graph, terminals []uint64) bool {
	for _, t := range terminals {
		if !tree.HasNode(t) {
			return false
		}
	}
	return true
}

// Tree returns the currently installed undirected tree for a session.
func (e *Engine) Tree(src uint64) (*graph.Graph, bool) {
	t, ok := e.trees[src]
	return t, ok
}

// RootedTree returns the directed, source-rooted form used by the
// distributor (§4.2: "DFS into a rooted directed tree").
func (e *Engine) RootedTree(src uint64) (parent map[uint64]uint64, children map[uint64][]uint64, ok bool) {
	t, ok := e.trees[src]
	if !ok {
		return nil, nil, false
	}
	p, c := graph.RootTree(t, src)
	return p, c, true
}

// IsDirty reports whether a session's tree was computed on a best-effort
// basis because no feasible heat-graph tree existed (§7).
func (e *Engine) IsDirty(src uint64) bool { return e.dirty[src] }

// Relevant reports whether session s currently has R[edge][s] > 0.
func (e *Engine) Relevant(k graph.EdgeKey, src uint64) bool {
	m, ok := e.relevance[k]
	if !ok {
		return false
	}
	return m[src] > 0
}

// Heat returns the current H[u][v] cell, if any.
func (e *Engine) Heat(k graph.EdgeKey) (HeatCell, bool) {
	c, ok := e.heat[k]
	return c, ok
}
