// Package orchestrator is the control loop (C9, §4.6): a debounced event
// loop that batches topology-apply notifications and session-admin
// requests, then drives the heat engine and tree distributor.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qosmcast/heatctl/cmn/cos"
	"github.com/qosmcast/heatctl/cmn/mono"
	"github.com/qosmcast/heatctl/cmn/nlog"
	"github.com/qosmcast/heatctl/distributor"
	"github.com/qosmcast/heatctl/graph"
	"github.com/qosmcast/heatctl/heat"
	"github.com/qosmcast/heatctl/oracle"
	"github.com/qosmcast/heatctl/overlay"
	"github.com/qosmcast/heatctl/session"
	"github.com/qosmcast/heatctl/stats"
	"github.com/qosmcast/heatctl/topology"
)

// DebounceWindow is §4.6's default accumulation window.
const DebounceWindow = 1 * time.Second

// sessionRequest is a pending C4 admin call queued for the next debounced
// recompute.
type sessionRequest struct {
	kind       reqKind
	src        uint64
	receivers  []uint64
	delayBound float64
	bwDemand   float64
}

type reqKind int

const (
	reqAddSession reqKind = iota
	reqAddReceiver
	reqRemoveReceiver
)

// Orchestrator owns the engine's lifecycle: it rebuilds a fresh
// heat.Engine on session addition or edge churn (§4.6: "a fresh
// HeatDegreeBase is built" as the pragmatic escape hatch), and otherwise
// drives incremental operations.
type Orchestrator struct {
	Store    *topology.Store
	Sessions *session.Registry
	Oracle   *oracle.Oracle
	Shard    *distributor.ShardMap
	SelfCid  int16
	Peer     *overlay.Peer
	Pending  interface {
		MarkPending(src uint64, owningCids []int16, selfCid int16)
	}
	Installer *distributor.Installer
	Stats     stats.Tracker

	graph  *graph.Graph
	engine *heat.Engine

	mu    sync.Mutex
	dirty bool
	reqs  []sessionRequest
	wake  chan struct{}
}

// New builds an orchestrator over the given shared topology store — the
// same instance the local.Adapter applies southbound events into, so that
// shutdown's final leave-publish walks the controller's actual switch set.
func New(store *topology.Store, g *graph.Graph, o *oracle.Oracle, sessions *session.Registry, shard *distributor.ShardMap, selfCid int16) *Orchestrator {
	return &Orchestrator{
		Store:    store,
		Sessions: sessions,
		Oracle:   o,
		Shard:    shard,
		SelfCid:  selfCid,
		graph:    g,
		engine:   heat.New(g, o, sessions),
		wake:     make(chan struct{}, 1),
	}
}

// NotifyTopologyChanged implements local.Notifier: any real apply wakes
// the debounce loop and, since the spec treats every topology churn as an
// edge-gain/loss candidate, marks the engine for a full reset.
func (o *Orchestrator) NotifyTopologyChanged() {
	o.mu.Lock()
	o.dirty = true
	o.mu.Unlock()
	o.poke()
}

// AddSession, AddReceiver, RemoveReceiver queue a session-admin request
// for the next debounce tick (§4.6).
func (o *Orchestrator) AddSessionWithQoS(src uint64, receivers []uint64, delayBound, bwDemand float64) {
	o.mu.Lock()
	o.reqs = append(o.reqs, sessionRequest{
		kind: reqAddSession, src: src, receivers: receivers,
		delayBound: delayBound, bwDemand: bwDemand,
	})
	o.mu.Unlock()
	o.poke()
}

// AddSession and ModifySession satisfy coordinator.SessionAdmin: the
// /group_add and /group_mod HTTP bodies (§6) carry only {src, dst[]}, so
// QoS bounds fall back to the controller's configured defaults.
func (o *Orchestrator) AddSession(src uint64, receivers []uint64) error {
	o.AddSessionWithQoS(src, receivers, defaultDelayBound, defaultBwDemand)
	return nil
}

func (o *Orchestrator) ModifySession(src uint64, receivers []uint64) error {
	if _, ok := o.Sessions.Get(src); !ok {
		return o.AddSession(src, receivers)
	}
	for _, r := range receivers {
		o.AddReceiver(src, r)
	}
	return nil
}

func (o *Orchestrator) AddReceiver(src, recv uint64) {
	o.mu.Lock()
	o.reqs = append(o.reqs, sessionRequest{kind: reqAddReceiver, src: src, receivers: []uint64{recv}})
	o.mu.Unlock()
	o.poke()
}

func (o *Orchestrator) RemoveReceiver(src, recv uint64) {
	o.mu.Lock()
	o.reqs = append(o.reqs, sessionRequest{kind: reqRemoveReceiver, src: src, receivers: []uint64{recv}})
	o.mu.Unlock()
	o.poke()
}

func (o *Orchestrator) poke() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Run is the debounced event loop of §4.6: wait for activity, wait out
// DebounceWindow to absorb a burst, then recompute once.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.debounceLoop(ctx) })
	err := g.Wait()
	o.shutdown()
	return err
}

func (o *Orchestrator) debounceLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.wake:
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(DebounceWindow):
			}
			o.recompute()
		}
	}
}

func (o *Orchestrator) recompute() {
	start := mono.NanoTime()
	o.mu.Lock()
	dirty := o.dirty
	reqs := o.reqs
	o.dirty = false
	o.reqs = nil
	o.mu.Unlock()

	if dirty {
		n := len(o.Sessions.All())
		nlog.Infof("orchestrator: topology churn observed, rebuilding heat engine from scratch (%d session%s)", n, cos.Plural(n))
		o.engine = heat.New(o.graph, o.Oracle, o.Sessions)
		o.incr(stats.TreesRecomputed, float64(n))
	}

	for _, r := range reqs {
		o.applyRequest(r)
	}

	if o.Stats != nil {
		o.Stats.Observe(stats.RecomputeLatency, mono.Since(start).Seconds())
		for _, s := range o.Sessions.All() {
			if o.engine.IsDirty(s.SrcDpid) {
				o.Stats.Inc(stats.InfeasibleRoutes)
			}
		}
	}

	if o.Installer != nil {
		if err := distributor.InstallAll(o.Installer, o.engine, o.Sessions); err != nil {
			nlog.Errorf("orchestrator: install failed: %v", err)
		}
	}
	if o.Pending != nil {
		for _, s := range o.Sessions.All() {
			parent, _, ok := o.engine.RootedTree(s.SrcDpid)
			if !ok {
				continue
			}
			nodes := make([]uint64, 0, len(parent)+1)
			nodes = append(nodes, s.SrcDpid)
			for n := range parent {
				nodes = append(nodes, n)
			}
			owning := distributor.OwningCids(o.Shard, nodes)
			o.Pending.MarkPending(s.SrcDpid, owning, o.SelfCid)
		}
	}
}

func (o *Orchestrator) applyRequest(r sessionRequest) {
	switch r.kind {
	case reqAddSession:
		if _, err := o.Sessions.Add(r.src, r.receivers, r.delayBound, r.bwDemand); err != nil {
			nlog.Warningf("orchestrator: add session %016X: %v", r.src, err)
			return
		}
		nlog.Infof("orchestrator: topology churn (new session), rebuilding heat engine")
		o.engine = heat.New(o.graph, o.Oracle, o.Sessions)
	case reqAddReceiver:
		if err := o.engine.AddReceiver(r.src, r.receivers[0]); err != nil {
			nlog.Warningf("orchestrator: add receiver: %v", err)
			return
		}
		o.incr(stats.SessionsRerouted, 1)
	case reqRemoveReceiver:
		if err := o.engine.RemoveReceiver(r.src, r.receivers[0]); err != nil {
			nlog.Warningf("orchestrator: remove receiver: %v", err)
			return
		}
		o.incr(stats.SessionsRerouted, 1)
	}
}

func (o *Orchestrator) incr(name string, v float64) {
	if o.Stats != nil {
		o.Stats.Add(name, v)
	}
}

// defaults used when a session is admitted without an explicit bound; the
// HTTP /group_add surface (§6) carries only {src, dst[]}, so QoS defaults
// come from the controller's own configuration in a full deployment.
const (
	defaultDelayBound = 50.0
	defaultBwDemand   = 1.0
)

// Engine exposes the current heat engine for read-only inspection (tests,
// the pull-trees loop).
func (o *Orchestrator) Engine() *heat.Engine { return o.engine }

// shutdown implements §4.6's "on controller graceful shutdown, it emits a
// final leave publish for every local entity and disconnects."
func (o *Orchestrator) shutdown() {
	if o.Peer == nil {
		return
	}
	for _, sw := range o.Store.Switches() {
		o.Peer.Publish(overlay.TopicSwitches, overlay.SwitchRecord{
			WriterID: o.Peer.WriterID, Dpid: int64(sw.Dpid), Op: overlay.SwitchLeave,
		}.Encode())
	}
}
