package graph

import "testing"

func triangle() *Graph {
	g := New()
	g.AddEdge(1, 2, EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(2, 3, EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(1, 3, EdgeAttr{Weight: 1, Bandwidth: 10})
	return g
}

func TestDijkstraTriangle(t *testing.T) {
	g := triangle()
	dist := g.Dijkstra(1)
	if dist[3] != 1 {
		t.Fatalf("want dist(1,3)=1, got %v", dist[3])
	}
}

func TestQueryDisconnected(t *testing.T) {
	g := New()
	g.AddNode(1)
	g.AddNode(2)
	if d := g.Query(1, 2); d != Inf {
		t.Fatalf("want Inf for disconnected pair, got %v", d)
	}
}

func TestRemoveEdgeIsSymmetric(t *testing.T) {
	g := triangle()
	g.RemoveEdge(1, 2)
	if g.HasEdge(1, 2) || g.HasEdge(2, 1) {
		t.Fatal("edge should be gone in both directions")
	}
	if !g.HasEdge(1, 3) {
		t.Fatal("unrelated edge should survive")
	}
}

func TestMSTSpansAllNodes(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, EdgeAttr{Weight: 2})
	g.AddEdge(2, 3, EdgeAttr{Weight: 1})
	g.AddEdge(1, 3, EdgeAttr{Weight: 5})
	edges := g.MST()
	if len(edges) != 2 {
		t.Fatalf("want 2 edges (3 nodes), got %d", len(edges))
	}
}

func TestSteinerTriangleDirectEdgeWins(t *testing.T) {
	// S1 boundary scenario: K3 with uniform weight, session src=1 recv={3}.
	g := triangle()
	tree := SteinerTree(g, []uint64{1, 3})
	if !tree.HasEdge(1, 3) {
		t.Fatalf("expected direct edge {1,3} in tree, got edges %v", tree.Edges())
	}
	if tree.NodeCount() != 2 {
		t.Fatalf("want exactly the two terminals, got %d nodes", tree.NodeCount())
	}
}

func TestSteinerSpansAllTerminalsAndIsATree(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, EdgeAttr{Weight: 1})
	g.AddEdge(2, 3, EdgeAttr{Weight: 1})
	g.AddEdge(3, 4, EdgeAttr{Weight: 1})
	g.AddEdge(4, 1, EdgeAttr{Weight: 1})
	terminals := []uint64{1, 3}
	tree := SteinerTree(g, terminals)
	for _, term := range terminals {
		if !tree.HasNode(term) {
			t.Fatalf("missing terminal %d", term)
		}
	}
	edgeCount := len(tree.Edges())
	if edgeCount != tree.NodeCount()-1 {
		t.Fatalf("not a tree: %d nodes, %d edges", tree.NodeCount(), edgeCount)
	}
}

func TestRootTreeOrientation(t *testing.T) {
	tree := New()
	tree.AddEdge(1, 2, EdgeAttr{Weight: 1})
	tree.AddEdge(2, 3, EdgeAttr{Weight: 1})
	parent, children := RootTree(tree, 1)
	if parent[2] != 1 || parent[3] != 2 {
		t.Fatalf("bad rooting: %v", parent)
	}
	if len(children[1]) != 1 || children[1][0] != 2 {
		t.Fatalf("bad children: %v", children)
	}
}
