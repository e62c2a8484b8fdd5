// Package topology is the global topology store (C5, §4.3): six
// replicated mappings — controllers, switches, ports, links, hosts, plus
// the static cid->shard map — with idempotent apply and query APIs.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package topology

import (
	"sync"

	"github.com/qosmcast/heatctl/stats"
)

type Op uint8

const (
	OpEnter Op = iota
	OpLeave
	OpModify
)

// Switch is §3's switch tuple, unique by Dpid.
type Switch struct {
	Dpid      uint64
	Cid       int16
	PortCount uint16
}

type portKey struct {
	Dpid   uint64
	PortNo uint16
}

// Port is §3's port tuple, unique by (Dpid, PortNo).
type Port struct {
	Dpid       uint64
	PortNo     uint16
	HwAddr     string
	Name       string
	OfpVersion string
	Config     uint16
	State      uint16
	IsLive     bool
}

// Link is §3's directed link tuple, replicated in both directions by the
// caller (the overlay publishes each direction separately).
type Link struct {
	SrcDpid    uint64
	SrcPortNo  uint16
	DstDpid    uint64
	DstPortNo  uint16
}

type linkKey struct {
	SrcDpid, DstDpid     uint64
	SrcPortNo, DstPortNo uint16
}

// Host is §3's host tuple, keyed by Mac.
type Host struct {
	Dpid   uint64
	PortNo uint16
	Mac    string
	IPv4   string
	IPv6   string
}

// Peer is §3's peer record, keyed by Cid.
type Peer struct {
	WriterID [16]byte
	Cid      int16
	IsLive   bool
}

// Store holds the six replicated mappings behind a single re-entrant-by-
// convention mutex (§5: "all mutations... go through a single mutex held
// only for the duration of one apply or one engine call").
type Store struct {
	mu          sync.Mutex
	controllers map[int16]Peer
	switches    map[uint64]Switch
	ports       map[portKey]Port
	links       map[linkKey]Link
	hosts       map[string]Host   // keyed by mac
	hwToSwitch  map[string]uint64 // hw_addr -> dpid, to detect "host port was a switch hw_addr"

	// Stats is optional; when set, a dropped stale link reference (§7
	// StaleReference) is counted.
	Stats stats.Tracker
}

func New() *Store {
	return &Store{
		controllers: make(map[int16]Peer),
		switches:    make(map[uint64]Switch),
		ports:       make(map[portKey]Port),
		links:       make(map[linkKey]Link),
		hosts:       make(map[string]Host),
		hwToSwitch:  make(map[string]uint64),
	}
}

// countStaleLocked must be called with s.mu held.
func (s *Store) countStaleLocked() {
	if s.Stats != nil {
		s.Stats.Inc(stats.StaleReferences)
	}
}

// ApplySwitch is §4.3 "switch enter"/"switch leave": upsert/cascade-remove,
// and for a genuinely new switch, also upsert its controller record live.
// Returns the prior Switch (zero value, false if absent) so callers can
// detect a real change (§4.3: "every successful apply returns the prior
// state").
func (s *Store) ApplySwitch(sw Switch, writerID [16]byte, op Op) (Switch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.switches[sw.Dpid]

	switch op {
	case OpLeave:
		if !existed {
			return prev, false
		}
		delete(s.switches, sw.Dpid)
		s.cascadeRemoveSwitchLocked(sw.Dpid)
		return prev, true
	case OpEnter, OpModify:
		s.switches[sw.Dpid] = sw
		if !existed {
			s.controllers[sw.Cid] = Peer{WriterID: writerID, Cid: sw.Cid, IsLive: true}
		}
		return prev, true
	}
	return prev, false
}

func (s *Store) cascadeRemoveSwitchLocked(dpid uint64) {
	for k, p := range s.ports {
		if k.Dpid == dpid {
			delete(s.ports, k)
			delete(s.hwToSwitch, p.HwAddr)
		}
	}
	for mac, h := range s.hosts {
		if h.Dpid == dpid {
			delete(s.hosts, mac)
		}
	}
	for k := range s.links {
		if k.SrcDpid == dpid || k.DstDpid == dpid {
			delete(s.links, k)
		}
	}
}

// ApplyPort is §4.3's port add/modify/delete.
func (s *Store) ApplyPort(p Port, op Op) (Port, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := portKey{Dpid: p.Dpid, PortNo: p.PortNo}
	prev, existed := s.ports[key]

	switch op {
	case OpEnter:
		if existed {
			return prev, false
		}
		s.ports[key] = p
		if p.HwAddr != "" {
			s.hwToSwitch[p.HwAddr] = p.Dpid
		}
		return prev, true
	case OpModify:
		s.ports[key] = p
		return prev, true
	case OpLeave:
		if !existed {
			return prev, false
		}
		delete(s.ports, key)
		delete(s.hwToSwitch, prev.HwAddr)
		if sw, ok := s.switches[p.Dpid]; ok && sw.PortCount > 0 {
			sw.PortCount--
			s.switches[p.Dpid] = sw
		}
		for mac, h := range s.hosts {
			if h.Dpid == p.Dpid && h.PortNo == p.PortNo {
				delete(s.hosts, mac)
			}
		}
		return prev, true
	}
	return prev, false
}

// ApplyLink is §4.3's link add/delete. Dropped silently (§7 StaleReference)
// if either endpoint switch is unknown.
func (s *Store) ApplyLink(l Link, op Op) (Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey{SrcDpid: l.SrcDpid, SrcPortNo: l.SrcPortNo, DstDpid: l.DstDpid, DstPortNo: l.DstPortNo}
	prev, existed := s.links[key]

	switch op {
	case OpEnter:
		if _, ok := s.switches[l.SrcDpid]; !ok {
			s.countStaleLocked()
			return prev, false
		}
		if _, ok := s.switches[l.DstDpid]; !ok {
			s.countStaleLocked()
			return prev, false
		}
		s.links[key] = l
		return prev, true
	case OpLeave:
		if !existed {
			return prev, false
		}
		delete(s.links, key)
		return prev, true
	}
	return prev, false
}

// ApplyHost is §4.3's "host add": insert by mac; if the access port's mac
// was previously seen as a switch hw_addr, synthesize the bidirectional
// access link it implies.
func (s *Store) ApplyHost(h Host) (Host, bool, []Link) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.hosts[h.Mac]
	s.hosts[h.Mac] = h

	var synthesized []Link
	if peerDpid, ok := s.hwToSwitch[h.Mac]; ok {
		fwd := linkKey{SrcDpid: h.Dpid, SrcPortNo: h.PortNo, DstDpid: peerDpid}
		rev := linkKey{SrcDpid: peerDpid, DstDpid: h.Dpid, DstPortNo: h.PortNo}
		fwdLink := Link{SrcDpid: h.Dpid, SrcPortNo: h.PortNo, DstDpid: peerDpid}
		revLink := Link{SrcDpid: peerDpid, DstDpid: h.Dpid, DstPortNo: h.PortNo}
		s.links[fwd] = fwdLink
		s.links[rev] = revLink
		synthesized = append(synthesized, fwdLink, revLink)
	}
	return prev, existed, synthesized
}

// ApplyPeerLoss is §4.3's "peer loss": mark the controller record dead
// without evicting its owned switches (conservative, §7).
func (s *Store) ApplyPeerLoss(writerID [16]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cid, p := range s.controllers {
		if p.WriterID == writerID {
			p.IsLive = false
			s.controllers[cid] = p
		}
	}
}

// DuplicateCid reports whether cid is currently claimed by a live writer
// other than writerID (§7 "Fatal: duplicate cid detected on overlay: two
// writers announce the same cid with different writer_ids").
func (s *Store) DuplicateCid(cid int16, writerID [16]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.controllers[cid]
	return ok && p.IsLive && p.WriterID != writerID
}

func (s *Store) Switches() []Switch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Switch, 0, len(s.switches))
	for _, sw := range s.switches {
		out = append(out, sw)
	}
	return out
}

func (s *Store) Links() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Link, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l)
	}
	return out
}

func (s *Store) Ports() []Port {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Port, 0, len(s.ports))
	for _, p := range s.ports {
		out = append(out, p)
	}
	return out
}

func (s *Store) Hosts() []Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	return out
}

func (s *Store) Controllers() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Peer, 0, len(s.controllers))
	for _, p := range s.controllers {
		out = append(out, p)
	}
	return out
}

func (s *Store) HasSwitch(dpid uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.switches[dpid]
	return ok
}

// PortTo resolves the unique port on n whose peer is succ, per §4.5's
// `port(n -> succ)`.
func (s *Store) PortTo(n, succ uint64) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.links {
		if k.SrcDpid == n && k.DstDpid == succ {
			return k.SrcPortNo, true
		}
	}
	return 0, false
}
