package coordinator

import (
	"sync"

	"github.com/qosmcast/heatctl/distributor"
	"github.com/qosmcast/heatctl/heat"
	"github.com/qosmcast/heatctl/session"
)

// engineProvider is the orchestrator's live heat.Engine accessor. The
// orchestrator replaces its engine wholesale on topology churn (§4.6), so
// PendingTracker must read it through this indirection rather than cache a
// pointer that would go stale the moment a rebuild happens.
type engineProvider interface {
	Engine() *heat.Engine
}

// PendingTracker implements §4.5's "pull protocol": for each cid, which
// sessions still need to be acknowledged, and the trees/session-table
// bundle relevant to that cid.
type PendingTracker struct {
	mu      sync.Mutex
	shard   *distributor.ShardMap
	engine  engineProvider
	sess    *session.Registry
	pending map[int16]map[uint64]bool // cid -> src dpid -> still pending
}

func NewPendingTracker(shard *distributor.ShardMap, engine engineProvider, sess *session.Registry) *PendingTracker {
	return &PendingTracker{
		shard: shard, engine: engine, sess: sess,
		pending: make(map[int16]map[uint64]bool),
	}
}

// MarkPending queues every owning cid (other than self) against session
// src once a tree has been (re)computed.
func (t *PendingTracker) MarkPending(src uint64, owningCids []int16, selfCid int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cid := range owningCids {
		if cid == selfCid {
			continue
		}
		m, ok := t.pending[cid]
		if !ok {
			m = make(map[uint64]bool)
			t.pending[cid] = m
		}
		m[src] = true
	}
}

// Ack implements "after installing, the receiving controller acknowledges
// by removing itself from each session's pending set" (§4.5).
func (t *PendingTracker) Ack(cid int16, src uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending[cid], src)
}

func (t *PendingTracker) Forget(cid int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, cid)
}

// BundleFor answers /trees?cid=<n>: the relevant-subset-of-trees and
// session-table still pending for cid.
func (t *PendingTracker) BundleFor(cid int16) TreeBundle {
	t.mu.Lock()
	srcs := make([]uint64, 0, len(t.pending[cid]))
	for src := range t.pending[cid] {
		srcs = append(srcs, src)
	}
	t.mu.Unlock()

	engine := t.engine.Engine()
	var bundle TreeBundle
	for _, src := range srcs {
		s, ok := t.sess.Get(src)
		if !ok {
			continue
		}
		parent, _, ok := engine.RootedTree(src)
		if !ok {
			continue
		}
		tw := TreeWire{SrcDpid: src, GroupNo: s.GroupNo, GroupIP: s.GroupIP(), Receivers: s.ReceiverList()}
		for child, p := range parent {
			tw.Edges = append(tw.Edges, LinkWire{SrcDpid: p, DstDpid: child})
		}
		bundle.Trees = append(bundle.Trees, tw)
		bundle.SessionTable = append(bundle.SessionTable, SessionRow{
			SrcDpid: src, GroupNo: s.GroupNo, DelayBound: s.DelayBound, BwDemand: s.BwDemand,
		})
	}
	return bundle
}
