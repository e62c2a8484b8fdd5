// Package distributor is the tree distributor & installer (C8, §4.5): it
// assigns each session tree's installation responsibility to the
// controllers owning its nodes, and realizes the locally-owned subtree as
// group-table and flow-table commands.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package distributor

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/qosmcast/heatctl/cmn/cos"
	"github.com/qosmcast/heatctl/cmn/mono"
	"github.com/qosmcast/heatctl/heat"
	"github.com/qosmcast/heatctl/session"
	"github.com/qosmcast/heatctl/southbound"
	"github.com/qosmcast/heatctl/stats"
	"github.com/qosmcast/heatctl/topology"
)

// ShardMap is the static `cid -> {dpid}` configuration of §3.
type ShardMap struct {
	cidOf map[uint64]int16
}

func NewShardMap(cidToDpids map[int16][]uint64) *ShardMap {
	sm := &ShardMap{cidOf: make(map[uint64]int16)}
	for cid, dpids := range cidToDpids {
		for _, d := range dpids {
			sm.cidOf[d] = cid
		}
	}
	return sm
}

func (sm *ShardMap) CidOf(dpid uint64) (int16, bool) {
	c, ok := sm.cidOf[dpid]
	return c, ok
}

// OwningCids computes owning_cids(s) of §4.5: every cid owning at least
// one tree node.
func OwningCids(sm *ShardMap, nodes []uint64) []int16 {
	seen := map[int16]bool{}
	for _, n := range nodes {
		if cid, ok := sm.CidOf(n); ok {
			seen[cid] = true
		}
	}
	out := make([]int16, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

const hostAccessPort uint16 = 1 // §4.5: "port 1 by convention ... parameterizable"

// Installer emits the group-mod/flow-mod sequence for one controller's
// shard and tracks what's currently installed, for §4.5's idempotence
// rule (re-add collapses to modify; a stale tree is deleted then
// reinstalled).
type Installer struct {
	SelfCid      int16
	Shard        *ShardMap
	Store        *topology.Store
	Commander    southbound.Commander
	HostPort     uint16
	Stats        stats.Tracker

	installed map[uint64]installedTree // session src -> what's on the wire now
}

type installedTree struct {
	groupNo   uint16
	nodeSet   map[uint64]bool
}

func NewInstaller(selfCid int16, shard *ShardMap, store *topology.Store, cmd southbound.Commander) *Installer {
	return &Installer{
		SelfCid: selfCid, Shard: shard, Store: store, Commander: cmd,
		HostPort:  hostAccessPort,
		installed: make(map[uint64]installedTree),
	}
}

// Install realizes §4.5 steps 1-3 for session s's tree on this
// controller's shard. parent/children come from heat.Engine.RootedTree.
func (in *Installer) Install(s *session.Session, parent map[uint64]uint64, children map[uint64][]uint64, allNodes []uint64) error {
	start := mono.NanoTime()
	if in.Stats != nil {
		defer func() { in.Stats.Observe(stats.InstallLatency, mono.Since(start).Seconds()) }()
	}
	prev, wasInstalled := in.installed[s.SrcDpid]
	stale := wasInstalled && (prev.groupNo != s.GroupNo || !sameNodeSet(prev.nodeSet, allNodes))
	if stale {
		if err := in.invalidate(s.SrcDpid, prev); err != nil {
			return err
		}
	}

	for _, n := range allNodes {
		cid, ok := in.Shard.CidOf(n)
		if !ok || cid != in.SelfCid {
			continue
		}
		succs := children[n]
		isReceiver := s.Receivers[n]
		if len(succs) == 0 {
			if s.Receivers[n] {
				// step 3: leaf receiver, no out-edge.
				if err := in.Commander.FlowMod(southbound.FlowMod{
					Dpid: n, Priority: 1,
					Match:   southbound.Match{Ipv4Dst: s.GroupIP()},
					Actions: []southbound.Action{{OutPort: in.HostPort}},
				}); err != nil {
					return errors.Wrapf(err, "flow-mod leaf dpid=%016X", n)
				}
			}
			continue
		}

		// step 1: group-mod with one bucket per tree successor, plus the
		// host bucket if n is itself a receiver.
		buckets := make([]southbound.Bucket, 0, len(succs)+1)
		for _, succ := range succs {
			portNo, ok := in.Store.PortTo(n, succ)
			if !ok {
				return errors.Errorf("no port from %016X toward %016X", n, succ)
			}
			buckets = append(buckets, southbound.Bucket{OutPort: portNo})
		}
		if isReceiver {
			buckets = append(buckets, southbound.Bucket{OutPort: in.HostPort})
		}
		cmdKind := southbound.GroupAdd
		if wasInstalled && !stale {
			cmdKind = southbound.GroupModify
		}
		if err := in.Commander.GroupMod(southbound.GroupMod{
			Dpid: n, Command: cmdKind, GroupID: s.GroupNo, Buckets: buckets,
		}); err != nil {
			return errors.Wrapf(err, "group-mod dpid=%016X", n)
		}

		// step 2.
		if err := in.Commander.FlowMod(southbound.FlowMod{
			Dpid: n, Priority: 1,
			Match:   southbound.Match{Ipv4Dst: s.GroupIP()},
			Actions: []southbound.Action{{ToGroup: true, GroupID: s.GroupNo}},
		}); err != nil {
			return errors.Wrapf(err, "flow-mod group-dispatch dpid=%016X", n)
		}
	}

	in.installed[s.SrcDpid] = installedTree{groupNo: s.GroupNo, nodeSet: toSet(allNodes)}
	return nil
}

// invalidate implements §4.5's stale-tree step: delete-ANY group and flow
// state, then re-add the table-miss flow, on every node this controller
// owned under the old tree.
func (in *Installer) invalidate(src uint64, prev installedTree) error {
	for n := range prev.nodeSet {
		cid, ok := in.Shard.CidOf(n)
		if !ok || cid != in.SelfCid {
			continue
		}
		if err := in.Commander.GroupMod(southbound.GroupMod{Dpid: n, Command: southbound.GroupDelete, GroupID: prev.groupNo}); err != nil {
			return err
		}
		if err := in.Commander.FlowMod(southbound.FlowMod{Dpid: n, Delete: true}); err != nil {
			return err
		}
		if err := in.Commander.FlowMod(southbound.TableMissFlowMod(n)); err != nil {
			return err
		}
	}
	return nil
}

func sameNodeSet(a map[uint64]bool, nodes []uint64) bool {
	if len(a) != len(nodes) {
		return false
	}
	for _, n := range nodes {
		if !a[n] {
			return false
		}
	}
	return true
}

func toSet(nodes []uint64) map[uint64]bool {
	s := make(map[uint64]bool, len(nodes))
	for _, n := range nodes {
		s[n] = true
	}
	return s
}

// InstallAll drives the whole C8 pipeline for every session the engine
// currently knows about, computing owning_cids and installing only the
// subset owned by selfCid (§4.5: "for cid != self_cid, the entry is left
// for that controller to pull"). One session's installation failure
// (e.g. a southbound rejection) must not block the others, mirroring the
// best-effort posture of §4.2's correctness contract; failures are
// collected and joined.
func InstallAll(in *Installer, engine *heat.Engine, sessions *session.Registry) error {
	var errs cos.Errs
	for _, s := range sessions.All() {
		parent, children, ok := engine.RootedTree(s.SrcDpid)
		if !ok {
			continue
		}
		nodes := nodesOf(parent, s.SrcDpid)
		owning := OwningCids(in.Shard, nodes)
		if !contains(owning, in.SelfCid) {
			continue
		}
		if err := in.Install(s, parent, children, nodes); err != nil {
			errs.Add(errors.Wrapf(err, "session src=%016X", s.SrcDpid))
		}
	}
	if _, err := errs.JoinErr(); err != nil {
		return err
	}
	return nil
}

func nodesOf(parent map[uint64]uint64, root uint64) []uint64 {
	set := map[uint64]bool{root: true}
	for n := range parent {
		set[n] = true
	}
	for _, p := range parent {
		set[p] = true
	}
	out := make([]uint64, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func contains(cids []int16, c int16) bool {
	for _, x := range cids {
		if x == c {
			return true
		}
	}
	return false
}
