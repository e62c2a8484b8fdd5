package graph

import "sort"

// SteinerTree approximates the minimum-weight tree connecting terminals
// in g using the classical KMB heuristic (§4.2): build the metric closure
// over shortest-path distances between terminals, take its MST, expand
// each closure edge back to its underlying shortest path, take the MST of
// that expanded subgraph, then prune non-terminal leaves.
//
// Ties among equal-weight candidate edges are broken by (u,v) with u<v,
// then by weight (§4.2: "Steiner-tree edge ties are broken by the
// ordering (u,v) of u<v then edge weight").
func SteinerTree(g *Graph, terminals []uint64) *Graph {
	if len(terminals) == 0 {
		return New()
	}
	if len(terminals) == 1 {
		out := New()
		out.AddNode(terminals[0])
		return out
	}

	// 1. metric closure: complete graph over terminals, weighted by
	// shortest-path distance, remembering the path for expansion.
	paths := make(map[EdgeKey][]uint64, len(terminals)*len(terminals))
	closure := New()
	for _, t := range terminals {
		closure.AddNode(t)
	}
	sortedTerminals := append([]uint64(nil), terminals...)
	sort.Slice(sortedTerminals, func(i, j int) bool { return sortedTerminals[i] < sortedTerminals[j] })

	for i, s := range sortedTerminals {
		dist, prev := g.DijkstraPath(s)
		for _, t := range sortedTerminals[i+1:] {
			d, ok := dist[t]
			if !ok || d == Inf {
				continue // unreachable terminal: excluded from this session's tree
			}
			path, ok := PathTo(prev, s, t)
			if !ok {
				continue
			}
			key := MakeEdgeKey(s, t)
			closure.AddEdge(s, t, EdgeAttr{Weight: d})
			paths[key] = path
		}
	}

	// 2. MST of the metric closure, tie-broken deterministically.
	closureMST := deterministicMST(closure)

	// 3. expand each closure edge into its underlying shortest path,
	// building the union subgraph.
	expanded := New()
	for _, e := range closureMST {
		path, ok := paths[MakeEdgeKey(e.U, e.V)]
		if !ok {
			continue
		}
		for i := 0; i+1 < len(path); i++ {
			a, b := path[i], path[i+1]
			attr, _ := g.Edge(a, b)
			expanded.AddEdge(a, b, attr)
		}
	}

	// 4. MST of the expanded subgraph removes redundant cycles introduced
	// by overlapping shortest paths.
	treeEdges := deterministicMST(expanded)
	tree := New()
	for t := range terminalSet(terminals) {
		tree.AddNode(t)
	}
	for _, e := range treeEdges {
		attr, _ := expanded.Edge(e.U, e.V)
		tree.AddEdge(e.U, e.V, attr)
	}

	// 5. prune non-terminal leaves.
	pruneNonTerminalLeaves(tree, terminalSet(terminals))
	return tree
}

func terminalSet(terminals []uint64) map[uint64]bool {
	s := make(map[uint64]bool, len(terminals))
	for _, t := range terminals {
		s[t] = true
	}
	return s
}

func pruneNonTerminalLeaves(tree *Graph, terminals map[uint64]bool) {
	for {
		pruned := false
		for _, n := range tree.Nodes() {
			if terminals[n] {
				continue
			}
			if len(tree.Neighbors(n)) <= 1 {
				tree.RemoveNode(n)
				pruned = true
			}
		}
		if !pruned {
			return
		}
	}
}

// deterministicMST is Kruskal's algorithm with the tie-break the spec
// mandates: sort candidate edges by (weight, u, v) so runs are
// reproducible regardless of map iteration order.
func deterministicMST(g *Graph) []EdgeKey {
	edges := g.Edges()
	sort.Slice(edges, func(i, j int) bool {
		ai, _ := g.Edge(edges[i].U, edges[i].V)
		aj, _ := g.Edge(edges[j].U, edges[j].V)
		if ai.Weight != aj.Weight {
			return ai.Weight < aj.Weight
		}
		if edges[i].U != edges[j].U {
			return edges[i].U < edges[j].U
		}
		return edges[i].V < edges[j].V
	})

	parent := map[uint64]uint64{}
	for _, n := range g.Nodes() {
		parent[n] = n
	}
	var find func(uint64) uint64
	find = func(x uint64) uint64 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	var out []EdgeKey
	for _, e := range edges {
		ru, rv := find(e.U), find(e.V)
		if ru != rv {
			parent[ru] = rv
			out = append(out, e)
		}
	}
	return out
}

// RootTree converts an undirected tree into a rooted directed tree via
// BFS from root (§4.2: "Orientation into a rooted tree follows BFS order
// from the source"). Returns, for each node, its parent (absent for
// root) and its children.
func RootTree(tree *Graph, root uint64) (parent map[uint64]uint64, children map[uint64][]uint64) {
	parent = make(map[uint64]uint64)
	children = make(map[uint64][]uint64)
	if !tree.HasNode(root) {
		return parent, children
	}
	visited := map[uint64]bool{root: true}
	queue := []uint64{root}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		nbs := tree.Neighbors(u)
		sort.Slice(nbs, func(i, j int) bool { return nbs[i] < nbs[j] })
		for _, v := range nbs {
			if visited[v] {
				continue
			}
			visited[v] = true
			parent[v] = u
			children[u] = append(children[u], v)
			queue = append(queue, v)
		}
	}
	return parent, children
}
