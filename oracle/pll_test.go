package oracle

import (
	"testing"

	"github.com/qosmcast/heatctl/graph"
)

func cycleWithChord() *graph.Graph {
	g := graph.New()
	g.AddEdge(1, 2, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(2, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(3, 4, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(4, 1, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	g.AddEdge(1, 3, graph.EdgeAttr{Weight: 1, Bandwidth: 10})
	return g
}

func assertMatchesDijkstra(t *testing.T, o *Oracle, g *graph.Graph) {
	t.Helper()
	for _, u := range g.Nodes() {
		for _, v := range g.Nodes() {
			want := g.Query(u, v)
			got := o.Query(u, v)
			if want != got {
				t.Errorf("query(%d,%d): oracle=%v dijkstra=%v", u, v, got, want)
			}
		}
	}
}

func TestBuildMatchesDijkstra(t *testing.T) {
	g := cycleWithChord()
	o := Build(g)
	assertMatchesDijkstra(t, o, g)
}

func TestInsertEdgeMatchesDijkstra(t *testing.T) {
	g := cycleWithChord()
	o := Build(g)
	g.AddEdge(2, 4, graph.EdgeAttr{Weight: 1, Bandwidth: 5})
	o.InsertEdge(2, 4, 5, 1)
	assertMatchesDijkstra(t, o, g)
}

func TestWeightIncreaseMatchesDijkstra(t *testing.T) {
	// S6 boundary scenario.
	g := cycleWithChord()
	o := Build(g)
	g.SetWeight(1, 3, 5)
	g.SetWeight(3, 1, 5)
	o.InsertEdge(1, 3, 10, 5)
	assertMatchesDijkstra(t, o, g)
}

func TestRemoveEdgeMatchesDijkstra(t *testing.T) {
	g := cycleWithChord()
	o := Build(g)
	g.RemoveEdge(1, 3)
	o.RemoveEdge(1, 3)
	assertMatchesDijkstra(t, o, g)
}

func TestQueryIsZeroForSameNode(t *testing.T) {
	g := cycleWithChord()
	o := Build(g)
	if o.Query(2, 2) != 0 {
		t.Fatal("self-distance must be 0")
	}
}
