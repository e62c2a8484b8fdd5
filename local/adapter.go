// Package local is the local topology adapter (C7, §4.3/§4.4/§9): it
// translates southbound events into overlay publishes plus topology-store
// registry updates, replacing the source's library-managed event dispatch
// with typed EventSink methods.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package local

import (
	"github.com/qosmcast/heatctl/overlay"
	"github.com/qosmcast/heatctl/southbound"
	"github.com/qosmcast/heatctl/topology"
)

// Notifier is called after every apply that represents a real change, so
// the orchestrator (C9) can debounce a recompute.
type Notifier interface {
	NotifyTopologyChanged()
}

// Adapter owns the mapping from this controller's shard dpids to ports,
// so it can hand the overlay fully-formed wire records.
type Adapter struct {
	Cid      int16
	WriterID [16]byte
	Store    *topology.Store
	Peer     *overlay.Peer
	Notify   Notifier

	localSwitches map[uint64]bool
}

func New(cid int16, writerID [16]byte, store *topology.Store, peer *overlay.Peer, notify Notifier) *Adapter {
	return &Adapter{
		Cid:           cid,
		WriterID:      writerID,
		Store:         store,
		Peer:          peer,
		Notify:        notify,
		localSwitches: make(map[uint64]bool),
	}
}

func (a *Adapter) changed(wasChange bool) {
	if wasChange && a.Notify != nil {
		a.Notify.NotifyTopologyChanged()
	}
}

func (a *Adapter) OnSwitchEnter(ev southbound.SwitchEnterEvent) {
	a.localSwitches[ev.Dpid] = true
	sw := topology.Switch{Dpid: ev.Dpid, Cid: a.Cid, PortCount: uint16(len(ev.Ports))}
	_, changed := a.Store.ApplySwitch(sw, a.WriterID, topology.OpEnter)
	a.Peer.Publish(overlay.TopicSwitches, overlay.SwitchRecord{
		WriterID: a.WriterID, Cid: a.Cid, Dpid: int64(ev.Dpid),
		PortCount: int16(len(ev.Ports)), Op: overlay.SwitchEnter,
	}.Encode())
	for _, p := range ev.Ports {
		a.applyAndPublishPort(ev.Dpid, p, topology.OpEnter, overlay.PortAdd)
	}
	a.changed(changed)
}

func (a *Adapter) OnSwitchLeave(ev southbound.SwitchLeaveEvent) {
	delete(a.localSwitches, ev.Dpid)
	_, changed := a.Store.ApplySwitch(topology.Switch{Dpid: ev.Dpid}, a.WriterID, topology.OpLeave)
	a.Peer.Publish(overlay.TopicSwitches, overlay.SwitchRecord{
		WriterID: a.WriterID, Dpid: int64(ev.Dpid), Op: overlay.SwitchLeave,
	}.Encode())
	a.changed(changed)
}

func (a *Adapter) applyAndPublishPort(dpid uint64, p southbound.Port, op topology.Op, wireOp overlay.PortOp) {
	tp := topology.Port{
		Dpid: dpid, PortNo: p.PortNo, HwAddr: p.HwAddr, Name: p.Name,
		Config: p.Config, State: p.State, IsLive: p.IsLive,
	}
	_, changed := a.Store.ApplyPort(tp, op)
	a.Peer.Publish(overlay.TopicPorts, overlay.PortRecord{
		Dpid: int64(dpid), Config: int16(p.Config), State: int16(p.State),
		PortNo: int16(p.PortNo), HwAddr: p.HwAddr, Name: p.Name, IsLive: p.IsLive,
		Op: wireOp,
	}.Encode())
	a.changed(changed)
}

func (a *Adapter) OnPortAdd(ev southbound.PortAddEvent) {
	a.applyAndPublishPort(ev.Dpid, ev.Port, topology.OpEnter, overlay.PortAdd)
}

func (a *Adapter) OnPortModify(ev southbound.PortModifyEvent) {
	a.applyAndPublishPort(ev.Dpid, ev.Port, topology.OpModify, overlay.PortModify)
}

func (a *Adapter) OnPortDelete(ev southbound.PortDeleteEvent) {
	_, changed := a.Store.ApplyPort(topology.Port{Dpid: ev.Dpid, PortNo: ev.Port.PortNo}, topology.OpLeave)
	a.Peer.Publish(overlay.TopicPorts, overlay.PortRecord{
		Dpid: int64(ev.Dpid), PortNo: int16(ev.Port.PortNo), Op: overlay.PortDelete,
	}.Encode())
	a.changed(changed)
}

func (a *Adapter) OnLinkAdd(ev southbound.LinkAddEvent) {
	l := topology.Link{SrcDpid: ev.SrcDpid, SrcPortNo: ev.SrcPortNo, DstDpid: ev.DstDpid, DstPortNo: ev.DstPortNo}
	_, changed := a.Store.ApplyLink(l, topology.OpEnter)
	a.Peer.Publish(overlay.TopicLinks, overlay.LinkRecord{
		SrcDpid: int64(ev.SrcDpid), SrcPortNo: int16(ev.SrcPortNo),
		DstDpid: int64(ev.DstDpid), DstPortNo: int16(ev.DstPortNo), Op: overlay.LinkAdd,
	}.Encode())
	a.changed(changed)
}

func (a *Adapter) OnLinkDelete(ev southbound.LinkDeleteEvent) {
	l := topology.Link{SrcDpid: ev.SrcDpid, SrcPortNo: ev.SrcPortNo, DstDpid: ev.DstDpid, DstPortNo: ev.DstPortNo}
	_, changed := a.Store.ApplyLink(l, topology.OpLeave)
	a.Peer.Publish(overlay.TopicLinks, overlay.LinkRecord{
		SrcDpid: int64(ev.SrcDpid), SrcPortNo: int16(ev.SrcPortNo),
		DstDpid: int64(ev.DstDpid), DstPortNo: int16(ev.DstPortNo), Op: overlay.LinkDelete,
	}.Encode())
	a.changed(changed)
}

func (a *Adapter) OnHostAdd(ev southbound.HostAddEvent) {
	h := topology.Host{Dpid: ev.Dpid, PortNo: ev.PortNo, Mac: ev.Mac, IPv4: ev.IPv4, IPv6: ev.IPv6}
	_, existed, synthesized := a.Store.ApplyHost(h)
	a.Peer.Publish(overlay.TopicHosts, overlay.HostRecord{
		Dpid: int64(ev.Dpid), PortNo: int16(ev.PortNo), Mac: ev.Mac,
		IPv4: ev.IPv4, IPv6: ev.IPv6, Op: overlay.HostAdd,
	}.Encode())
	for _, l := range synthesized {
		a.Peer.Publish(overlay.TopicLinks, overlay.LinkRecord{
			SrcDpid: int64(l.SrcDpid), SrcPortNo: int16(l.SrcPortNo),
			DstDpid: int64(l.DstDpid), DstPortNo: int16(l.DstPortNo), Op: overlay.LinkAdd,
		}.Encode())
	}
	a.changed(!existed || len(synthesized) > 0)
}

// OnPacketIn and OnOFPError/OnStateChange are handled by the session I/O
// and ARP-learning collaborators (§1 "Out of scope"); the adapter only
// needs to satisfy the EventSink interface so C7 can be wired as the
// single southbound.EventSink for a controller. Packet-in/ARP learning
// coexistence is guaranteed by the table-miss entry (§6), not by this
// package.
func (a *Adapter) OnPacketIn(southbound.PacketInEvent)       {}
func (a *Adapter) OnOFPError(southbound.OFPErrorEvent)       {}
func (a *Adapter) OnStateChange(southbound.StateChangeEvent) {}

// LocalSwitches/LocalPorts/LocalLinks/LocalHosts implement
// overlay.LocalView (§4.4 "Late joiners") by replaying the subset of the
// store that this controller owns.
func (a *Adapter) LocalSwitches() []overlay.SwitchRecord {
	var out []overlay.SwitchRecord
	for _, sw := range a.Store.Switches() {
		if !a.localSwitches[sw.Dpid] {
			continue
		}
		out = append(out, overlay.SwitchRecord{
			WriterID: a.WriterID, Cid: sw.Cid, Dpid: int64(sw.Dpid),
			PortCount: int16(sw.PortCount), Op: overlay.SwitchEnter,
		})
	}
	return out
}

func (a *Adapter) LocalPorts() []overlay.PortRecord {
	var out []overlay.PortRecord
	for _, p := range a.Store.Ports() {
		if !a.localSwitches[p.Dpid] {
			continue
		}
		out = append(out, overlay.PortRecord{
			Dpid: int64(p.Dpid), Config: int16(p.Config), State: int16(p.State),
			PortNo: int16(p.PortNo), HwAddr: p.HwAddr, Name: p.Name, IsLive: p.IsLive,
			Op: overlay.PortAdd,
		})
	}
	return out
}

func (a *Adapter) LocalLinks() []overlay.LinkRecord {
	var out []overlay.LinkRecord
	for _, l := range a.Store.Links() {
		if !a.localSwitches[l.SrcDpid] {
			continue
		}
		out = append(out, overlay.LinkRecord{
			SrcDpid: int64(l.SrcDpid), SrcPortNo: int16(l.SrcPortNo),
			DstDpid: int64(l.DstDpid), DstPortNo: int16(l.DstPortNo), Op: overlay.LinkAdd,
		})
	}
	return out
}

func (a *Adapter) LocalHosts() []overlay.HostRecord {
	var out []overlay.HostRecord
	for _, h := range a.Store.Hosts() {
		if !a.localSwitches[h.Dpid] {
			continue
		}
		out = append(out, overlay.HostRecord{
			Dpid: int64(h.Dpid), PortNo: int16(h.PortNo), Mac: h.Mac,
			IPv4: h.IPv4, IPv6: h.IPv6, Op: overlay.HostAdd,
		})
	}
	return out
}
