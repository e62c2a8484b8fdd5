package heat

import (
	"testing"

	"github.com/qosmcast/heatctl/graph"
	"github.com/qosmcast/heatctl/oracle"
	"github.com/qosmcast/heatctl/session"
)

// graphDistancer answers Query via plain Dijkstra, for tests that don't
// need the oracle's incremental machinery.
type graphDistancer struct{ g *graph.Graph }

func (d graphDistancer) Query(u, v uint64) float64 { return d.g.Query(u, v) }

func TestS1TriangleDirectEdgeWins(t *testing.T) {
	g := graph.New()
	g.AddEdge(1, 2, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(2, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(1, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 10})

	reg := session.NewRegistry()
	reg.Add(1, []uint64{3}, 10, 1)

	e := New(g, graphDistancer{g}, reg)
	tree, ok := e.Tree(1)
	if !ok {
		t.Fatal("expected a tree for session 1")
	}
	if !tree.HasEdge(1, 3) {
		t.Fatalf("expected direct edge {1,3}, got edges %v", tree.Edges())
	}
}

func TestS2BandwidthContentionMarksUnavailable(t *testing.T) {
	g := graph.New()
	g.AddEdge(1, 2, graph.EdgeAttr{Weight: 1, Bandwidth: 1})
	g.AddEdge(2, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 1})

	reg := session.NewRegistry()
	reg.Add(1, []uint64{3}, 10, 0.6)
	reg.Add(3, []uint64{1}, 10, 0.6)

	e := New(g, graphDistancer{g}, reg)

	k12 := graph.MakeEdgeKey(1, 2)
	cell, ok := e.Heat(k12)
	if !ok {
		t.Fatal("expected heat cell for {1,2}")
	}
	if cell.Available {
		t.Fatal("want overcommitted edge {1,2} to be unavailable (demand 1.2 > bw 1)")
	}
	wantHot := 1.2 * 1.2
	if diff := cell.HHot - wantHot; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("want h_hot=%v, got %v", wantHot, cell.HHot)
	}

	if _, ok := e.Tree(1); !ok {
		t.Fatal("engine must still produce a best-effort tree under overcommit")
	}
	if _, ok := e.Tree(3); !ok {
		t.Fatal("engine must still produce a best-effort tree under overcommit")
	}
}

func TestS5ReceiverRemovalPrunesDeadLeaf(t *testing.T) {
	g := graph.New()
	g.AddEdge(1, 2, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(2, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(3, 4, graph.EdgeAttr{Weight: 1, Bandwidth: 10})

	reg := session.NewRegistry()
	reg.Add(1, []uint64{3, 4}, 10, 1)

	e := New(g, graphDistancer{g}, reg)
	tree, ok := e.Tree(1)
	if !ok || !tree.HasNode(4) {
		t.Fatalf("expected initial tree to include node 4: %v", tree)
	}

	if err := e.RemoveReceiver(1, 4); err != nil {
		t.Fatal(err)
	}
	tree, ok = e.Tree(1)
	if !ok {
		t.Fatal("expected tree to survive")
	}
	if tree.HasNode(4) {
		t.Fatal("node 4 should have been pruned")
	}
	if !tree.HasNode(3) || !tree.HasNode(2) || !tree.HasNode(1) {
		t.Fatalf("nodes 1,2,3 should remain: %v", tree.Nodes())
	}
}

func TestS6DelayIncreaseForcesReroute(t *testing.T) {
	g := graph.New()
	g.AddEdge(1, 2, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(2, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(3, 4, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(4, 1, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(1, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 10})

	reg := session.NewRegistry()
	reg.Add(1, []uint64{3}, 2, 1)

	o := oracle.Build(g)
	e := New(g, o, reg)

	tree, ok := e.Tree(1)
	if !ok || !tree.HasEdge(1, 3) {
		t.Fatalf("expected initial tree to use direct edge {1,3}: %v", tree)
	}

	if err := e.ChangeEdgeDelay(o, 1, 3, 5); err != nil {
		t.Fatal(err)
	}

	tree, ok = e.Tree(1)
	if !ok {
		t.Fatal("expected tree to survive reroute")
	}
	if tree.HasEdge(1, 3) {
		t.Fatal("edge {1,3} should no longer be used: it exceeds the delay bound")
	}
	if !tree.HasNode(1) || !tree.HasNode(3) {
		t.Fatalf("tree must still span source and receiver: %v", tree.Nodes())
	}
}

func TestAddReceiverExtendsRelevanceAndTree(t *testing.T) {
	g := graph.New()
	g.AddEdge(1, 2, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(2, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 10})

	reg := session.NewRegistry()
	reg.Add(1, nil, 10, 1)

	e := New(g, graphDistancer{g}, reg)
	if err := e.AddReceiver(1, 3); err != nil {
		t.Fatal(err)
	}
	tree, ok := e.Tree(1)
	if !ok || !tree.HasNode(3) {
		t.Fatalf("expected tree to now include receiver 3: %v", tree)
	}
}
