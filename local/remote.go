// Package local: remote-record application (C6/C7, §4.3/§4.4). Where
// Adapter turns local southbound events into overlay publishes, Remote
// turns inbound overlay records from other writers into topology.Store
// mutations, completing the replication loop.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package local

import (
	"github.com/pkg/errors"

	"github.com/qosmcast/heatctl/overlay"
	"github.com/qosmcast/heatctl/stats"
	"github.com/qosmcast/heatctl/topology"
)

// Remote adapts a *topology.Store to overlay.Handlers, applying every
// decoded record from any writer (including this controller's own replayed
// publishes, which apply idempotently) and notifying on real change.
type Remote struct {
	Store  *topology.Store
	Notify Notifier
	Stats  stats.Tracker

	// SelfCid/WriterID, when WriterID is non-zero, enable §7's fatal
	// duplicate-cid check: a remote switch record claiming this
	// controller's own cid under a different writer_id means a second
	// process for the same cid is already live on the overlay.
	SelfCid  int16
	WriterID [16]byte
	Fatal    chan error
}

func NewRemote(store *topology.Store, notify Notifier) *Remote {
	return &Remote{Store: store, Notify: notify, Fatal: make(chan error, 1)}
}

var zeroWriterID [16]byte

// Handlers builds the overlay.Handlers this Remote should be wired with.
func (r *Remote) Handlers() overlay.Handlers {
	return overlay.Handlers{
		OnSwitch:   r.onSwitch,
		OnPort:     r.onPort,
		OnLink:     r.onLink,
		OnHost:     r.onHost,
		OnPeerLost: r.onPeerLost,
	}
}

func switchOpOf(op overlay.SwitchOp) topology.Op {
	if op == overlay.SwitchEnter {
		return topology.OpEnter
	}
	return topology.OpLeave
}

func portOpOf(op overlay.PortOp) topology.Op {
	switch op {
	case overlay.PortAdd:
		return topology.OpEnter
	case overlay.PortModify:
		return topology.OpModify
	default:
		return topology.OpLeave
	}
}

func linkOpOf(op overlay.LinkOp) topology.Op {
	if op == overlay.LinkAdd {
		return topology.OpEnter
	}
	return topology.OpLeave
}

func (r *Remote) onSwitch(writerID [16]byte, rec overlay.SwitchRecord) {
	if r.WriterID != zeroWriterID && rec.Cid == r.SelfCid && writerID != r.WriterID {
		err := errors.Errorf("local: duplicate cid %d: writer %x already announced it, refusing to continue as writer %x", rec.Cid, writerID, r.WriterID)
		select {
		case r.Fatal <- err:
		default:
		}
	}
	sw := topology.Switch{Dpid: uint64(rec.Dpid), Cid: rec.Cid, PortCount: uint16(rec.PortCount)}
	_, changed := r.Store.ApplySwitch(sw, writerID, switchOpOf(rec.Op))
	if changed && r.Notify != nil {
		r.Notify.NotifyTopologyChanged()
	}
}

func (r *Remote) onPort(_ [16]byte, rec overlay.PortRecord) {
	p := topology.Port{
		Dpid: uint64(rec.Dpid), PortNo: uint16(rec.PortNo), HwAddr: rec.HwAddr,
		Name: rec.Name, OfpVersion: rec.Ofp, Config: uint16(rec.Config),
		State: uint16(rec.State), IsLive: rec.IsLive,
	}
	_, changed := r.Store.ApplyPort(p, portOpOf(rec.Op))
	if changed && r.Notify != nil {
		r.Notify.NotifyTopologyChanged()
	}
}

func (r *Remote) onLink(_ [16]byte, rec overlay.LinkRecord) {
	l := topology.Link{
		SrcDpid: uint64(rec.SrcDpid), SrcPortNo: uint16(rec.SrcPortNo),
		DstDpid: uint64(rec.DstDpid), DstPortNo: uint16(rec.DstPortNo),
	}
	_, changed := r.Store.ApplyLink(l, linkOpOf(rec.Op))
	if changed && r.Notify != nil {
		r.Notify.NotifyTopologyChanged()
	}
}

func (r *Remote) onHost(_ [16]byte, rec overlay.HostRecord) {
	h := topology.Host{Dpid: uint64(rec.Dpid), PortNo: uint16(rec.PortNo), Mac: rec.Mac, IPv4: rec.IPv4, IPv6: rec.IPv6}
	_, existed, synthesized := r.Store.ApplyHost(h)
	if (!existed || len(synthesized) > 0) && r.Notify != nil {
		r.Notify.NotifyTopologyChanged()
	}
}

// onPeerLost is §4.4's liveness outcome: mark the writer's controller
// record dead without evicting the switches it owned (§7, conservative).
func (r *Remote) onPeerLost(writerID [16]byte) {
	r.Store.ApplyPeerLoss(writerID)
	if r.Stats != nil {
		r.Stats.Inc(stats.PeersLost)
	}
	if r.Notify != nil {
		r.Notify.NotifyTopologyChanged()
	}
}
