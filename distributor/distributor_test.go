package distributor

import (
	"testing"

	"github.com/qosmcast/heatctl/session"
	"github.com/qosmcast/heatctl/southbound"
	"github.com/qosmcast/heatctl/topology"
)

type fakeCommander struct {
	groupMods []southbound.GroupMod
	flowMods  []southbound.FlowMod
}

func (c *fakeCommander) FlowMod(f southbound.FlowMod) error {
	c.flowMods = append(c.flowMods, f)
	return nil
}
func (c *fakeCommander) GroupMod(g southbound.GroupMod) error {
	c.groupMods = append(c.groupMods, g)
	return nil
}
func (c *fakeCommander) PacketOut(southbound.PacketOut) error { return nil }

func buildStore() *topology.Store {
	st := topology.New()
	var w [16]byte
	st.ApplySwitch(topology.Switch{Dpid: 1}, w, topology.OpEnter)
	st.ApplySwitch(topology.Switch{Dpid: 2}, w, topology.OpEnter)
	st.ApplySwitch(topology.Switch{Dpid: 3}, w, topology.OpEnter)
	st.ApplyLink(topology.Link{SrcDpid: 1, SrcPortNo: 10, DstDpid: 2, DstPortNo: 20}, topology.OpEnter)
	st.ApplyLink(topology.Link{SrcDpid: 2, SrcPortNo: 21, DstDpid: 3, DstPortNo: 30}, topology.OpEnter)
	return st
}

func TestInstallChainTree(t *testing.T) {
	st := buildStore()
	shard := NewShardMap(map[int16][]uint64{1: {1, 2, 3}})
	cmd := &fakeCommander{}
	in := NewInstaller(1, shard, st, cmd)

	reg := session.NewRegistry()
	s, _ := reg.Add(1, []uint64{3}, 10, 1)

	parent := map[uint64]uint64{2: 1, 3: 2}
	children := map[uint64][]uint64{1: {2}, 2: {3}}
	nodes := []uint64{1, 2, 3}

	if err := in.Install(s, parent, children, nodes); err != nil {
		t.Fatal(err)
	}

	if len(cmd.groupMods) != 2 {
		t.Fatalf("want group-mods on node1 and node2, got %d: %+v", len(cmd.groupMods), cmd.groupMods)
	}
	for _, g := range cmd.groupMods {
		if g.Command != southbound.GroupAdd {
			t.Fatalf("first install should be GroupAdd, got %v", g.Command)
		}
		if g.GroupID != s.GroupNo {
			t.Fatalf("want group id %d, got %d", s.GroupNo, g.GroupID)
		}
	}

	var leafFlow bool
	for _, f := range cmd.flowMods {
		if f.Dpid == 3 && len(f.Actions) == 1 && f.Actions[0].OutPort == hostAccessPort {
			leafFlow = true
		}
	}
	if !leafFlow {
		t.Fatalf("expected leaf receiver flow-mod on node 3, got %+v", cmd.flowMods)
	}
}

func TestReinstallSameTreeIsModify(t *testing.T) {
	st := buildStore()
	shard := NewShardMap(map[int16][]uint64{1: {1, 2, 3}})
	cmd := &fakeCommander{}
	in := NewInstaller(1, shard, st, cmd)

	reg := session.NewRegistry()
	s, _ := reg.Add(1, []uint64{3}, 10, 1)
	parent := map[uint64]uint64{2: 1, 3: 2}
	children := map[uint64][]uint64{1: {2}, 2: {3}}
	nodes := []uint64{1, 2, 3}

	if err := in.Install(s, parent, children, nodes); err != nil {
		t.Fatal(err)
	}
	cmd.groupMods = nil
	if err := in.Install(s, parent, children, nodes); err != nil {
		t.Fatal(err)
	}
	for _, g := range cmd.groupMods {
		if g.Command != southbound.GroupModify {
			t.Fatalf("re-install of identical tree should be GroupModify, got %v", g.Command)
		}
	}
}
