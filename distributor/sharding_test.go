package distributor_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/qosmcast/heatctl/distributor"
	"github.com/qosmcast/heatctl/session"
	"github.com/qosmcast/heatctl/southbound"
	"github.com/qosmcast/heatctl/topology"
)

type recordingCommander struct {
	groupMods []southbound.GroupMod
	flowMods  []southbound.FlowMod
}

func (c *recordingCommander) FlowMod(f southbound.FlowMod) error {
	c.flowMods = append(c.flowMods, f)
	return nil
}
func (c *recordingCommander) GroupMod(g southbound.GroupMod) error {
	c.groupMods = append(c.groupMods, g)
	return nil
}
func (c *recordingCommander) PacketOut(southbound.PacketOut) error { return nil }

func chainStore() *topology.Store {
	st := topology.New()
	var w [16]byte
	st.ApplySwitch(topology.Switch{Dpid: 1}, w, topology.OpEnter)
	st.ApplySwitch(topology.Switch{Dpid: 2}, w, topology.OpEnter)
	st.ApplySwitch(topology.Switch{Dpid: 3}, w, topology.OpEnter)
	st.ApplyLink(topology.Link{SrcDpid: 1, SrcPortNo: 10, DstDpid: 2, DstPortNo: 20}, topology.OpEnter)
	st.ApplyLink(topology.Link{SrcDpid: 2, SrcPortNo: 21, DstDpid: 3, DstPortNo: 30}, topology.OpEnter)
	return st
}

var _ = Describe("sharded installation", func() {
	var (
		store *topology.Store
		shard *distributor.ShardMap
		cmd   *recordingCommander
		reg   *session.Registry
	)

	BeforeEach(func() {
		store = chainStore()
		// node 1 is owned by cid 1, nodes 2 and 3 by cid 2: a cross-shard
		// tree, so installer 1 only ever touches node 1.
		shard = distributor.NewShardMap(map[int16][]uint64{1: {1}, 2: {2, 3}})
		cmd = &recordingCommander{}
		reg = session.NewRegistry()
	})

	It("only emits commands for nodes owned by its own cid", func() {
		in := distributor.NewInstaller(1, shard, store, cmd)
		s, err := reg.Add(1, []uint64{3}, 10, 1)
		Expect(err).NotTo(HaveOccurred())

		parent := map[uint64]uint64{2: 1, 3: 2}
		children := map[uint64][]uint64{1: {2}, 2: {3}}
		nodes := []uint64{1, 2, 3}

		Expect(in.Install(s, parent, children, nodes)).To(Succeed())

		for _, g := range cmd.groupMods {
			Expect(g.Dpid).To(Equal(uint64(1)))
		}
		for _, f := range cmd.flowMods {
			Expect(f.Dpid).To(Equal(uint64(1)))
		}
		Expect(cmd.groupMods).NotTo(BeEmpty())
	})

	It("excludes cids that own none of the tree's nodes from owning_cids", func() {
		nodes := []uint64{1, 2}
		owning := distributor.OwningCids(shard, nodes)
		Expect(owning).To(ConsistOf(int16(1), int16(2)))
	})

	It("invalidates and reinstalls when the node set changes under the same source", func() {
		allShard := distributor.NewShardMap(map[int16][]uint64{1: {1, 2, 3}})
		in := distributor.NewInstaller(1, allShard, store, cmd)
		s, err := reg.Add(1, []uint64{3}, 10, 1)
		Expect(err).NotTo(HaveOccurred())

		parent := map[uint64]uint64{2: 1, 3: 2}
		children := map[uint64][]uint64{1: {2}, 2: {3}}
		Expect(in.Install(s, parent, children, []uint64{1, 2, 3})).To(Succeed())

		cmd.groupMods = nil
		cmd.flowMods = nil

		// receiver set grows: the tree's node set changes, so the stale
		// install on node 2 must be deleted (group-delete + flow-delete +
		// table-miss) before the new group-mod lands.
		Expect(reg.AddReceiver(1, 2)).To(Succeed())
		parent2 := map[uint64]uint64{2: 1, 3: 2}
		children2 := map[uint64][]uint64{1: {2}, 2: {3}}
		Expect(in.Install(s, parent2, children2, []uint64{1, 2, 3, 4})).To(Succeed())

		var sawDelete bool
		for _, g := range cmd.groupMods {
			if g.Command == southbound.GroupDelete {
				sawDelete = true
			}
		}
		Expect(sawDelete).To(BeTrue(), "node-set change must invalidate the stale tree before reinstalling")
	})
})
