package graph

// BFS returns the set of nodes reachable from src, and each node's hop
// count from src. Used by the oracle's decremental affected-set sweep
// (§4.1) and by tree orientation (§4.2: "DFS/BFS order from the source").
func (g *Graph) BFS(src uint64) (order []uint64, hops map[uint64]int) {
	hops = map[uint64]int{src: 0}
	order = []uint64{src}
	queue := []uint64{src}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.Neighbors(u) {
			if _, seen := hops[v]; seen {
				continue
			}
			hops[v] = hops[u] + 1
			order = append(order, v)
			queue = append(queue, v)
		}
	}
	return order, hops
}

// Dijkstra returns single-source shortest distances using EdgeAttr.Weight
// as edge cost. Unreachable nodes are absent from the result.
func (g *Graph) Dijkstra(src uint64) map[uint64]float64 {
	dist := map[uint64]float64{src: 0}
	visited := make(map[uint64]bool)
	pq := NewPQ()
	pq.Push(src, 0)
	for pq.Len() > 0 {
		u, du, ok := pq.Pop()
		if !ok {
			break
		}
		if visited[u] {
			continue
		}
		visited[u] = true
		for _, nb := range g.adj[u] {
			nd := du + nb.attr.Weight
			if old, ok := dist[nb.to]; !ok || nd < old {
				dist[nb.to] = nd
				pq.Push(nb.to, nd)
			}
		}
	}
	return dist
}

// DijkstraPath returns the shortest-path distance and a predecessor map
// from src, so callers can reconstruct a path to any target.
func (g *Graph) DijkstraPath(src uint64) (dist map[uint64]float64, prev map[uint64]uint64) {
	dist = map[uint64]float64{src: 0}
	prev = make(map[uint64]uint64)
	visited := make(map[uint64]bool)
	pq := NewPQ()
	pq.Push(src, 0)
	for pq.Len() > 0 {
		u, du, ok := pq.Pop()
		if !ok {
			break
		}
		if visited[u] {
			continue
		}
		visited[u] = true
		for _, nb := range g.adj[u] {
			nd := du + nb.attr.Weight
			if old, ok := dist[nb.to]; !ok || nd < old {
				dist[nb.to] = nd
				prev[nb.to] = u
				pq.Push(nb.to, nd)
			}
		}
	}
	return dist, prev
}

// PathTo reconstructs the path src->dst from a DijkstraPath prev map.
func PathTo(prev map[uint64]uint64, src, dst uint64) ([]uint64, bool) {
	if dst == src {
		return []uint64{src}, true
	}
	var rev []uint64
	cur := dst
	for {
		p, ok := prev[cur]
		if !ok {
			return nil, false
		}
		rev = append(rev, cur)
		cur = p
		if cur == src {
			rev = append(rev, src)
			break
		}
	}
	path := make([]uint64, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path, true
}

// Query is the plain-graph distance used as the oracle's correctness
// oracle in tests (§8, property 2): O(V log V + E), fine for test scale.
func (g *Graph) Query(u, v uint64) float64 {
	if u == v {
		return 0
	}
	dist := g.Dijkstra(u)
	if d, ok := dist[v]; ok {
		return d
	}
	return Inf
}

// MST runs Prim's algorithm over weight, returning the tree edges.
// Disconnected graphs yield a spanning forest (one tree per component).
func (g *Graph) MST() []EdgeKey {
	visited := make(map[uint64]bool)
	var out []EdgeKey
	for _, start := range g.Nodes() {
		if visited[start] {
			continue
		}
		visited[start] = true
		pq := NewPQ()
		bestFrom := map[uint64]uint64{}
		for _, nb := range g.adj[start] {
			if pq.Push(nb.to, nb.attr.Weight) {
				bestFrom[nb.to] = start
			}
		}
		for pq.Len() > 0 {
			u, _, ok := pq.Pop()
			if !ok || visited[u] {
				continue
			}
			visited[u] = true
			if u != start {
				out = append(out, MakeEdgeKey(bestFrom[u], u))
			}
			for _, nb := range g.adj[u] {
				if !visited[nb.to] && pq.Push(nb.to, nb.attr.Weight) {
					bestFrom[nb.to] = u
				}
			}
		}
	}
	return out
}
