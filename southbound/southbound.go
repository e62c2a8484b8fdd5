// Package southbound declares the contract between the core and the
// external OpenFlow collaborator (§6): the events the core consumes and
// the commands it emits. The collaborator itself — the wire codec, the
// session I/O, ARP learning — is out of scope (§1 "Out of scope").
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package southbound

// Port mirrors topology.Port's wire-relevant fields, duplicated here so
// this package has no dependency on the topology store's internal types.
type Port struct {
	PortNo uint16
	HwAddr string
	Name   string
	Config uint16
	State  uint16
	IsLive bool
}

// Events consumed from the collaborator (§6 "Events consumed").
type SwitchEnterEvent struct {
	Dpid  uint64
	Ports []Port
}

type SwitchLeaveEvent struct{ Dpid uint64 }

type PortAddEvent struct {
	Dpid uint64
	Port Port
}

type PortModifyEvent struct {
	Dpid uint64
	Port Port
}

type PortDeleteEvent struct {
	Dpid uint64
	Port Port
}

type LinkAddEvent struct {
	SrcDpid, DstDpid     uint64
	SrcPortNo, DstPortNo uint16
}

type LinkDeleteEvent struct {
	SrcDpid, DstDpid     uint64
	SrcPortNo, DstPortNo uint16
}

type HostAddEvent struct {
	Dpid   uint64
	PortNo uint16
	Mac    string
	IPv4   string
	IPv6   string
}

type PacketInEvent struct {
	Dpid   uint64
	InPort uint16
	Data   []byte
}

// OFPErrorEvent carries an OFPErrorMsg (§6, §7 "Southbound rejection").
type OFPErrorEvent struct {
	Dpid uint64
	Type uint16
	Code uint16
}

type DatapathState int

const (
	StateMain DatapathState = iota
	StateDead
)

type StateChangeEvent struct {
	Dpid  uint64
	State DatapathState
}

// EventSink is implemented by the local topology adapter (C7) to consume
// every southbound event kind (§9: "a typed event channel per southbound
// event kind consumed by C7", replacing library-managed event dispatch).
type EventSink interface {
	OnSwitchEnter(SwitchEnterEvent)
	OnSwitchLeave(SwitchLeaveEvent)
	OnPortAdd(PortAddEvent)
	OnPortModify(PortModifyEvent)
	OnPortDelete(PortDeleteEvent)
	OnLinkAdd(LinkAddEvent)
	OnLinkDelete(LinkDeleteEvent)
	OnHostAdd(HostAddEvent)
	OnPacketIn(PacketInEvent)
	OnOFPError(OFPErrorEvent)
	OnStateChange(StateChangeEvent)
}

// Bucket is one OpenFlow group-mod bucket: output to OutPort (§4.5).
type Bucket struct {
	OutPort uint16
}

type GroupCommand int

const (
	GroupAdd GroupCommand = iota
	GroupModify
	GroupDelete
)

// GroupMod is the §6 "GroupMod" command, type ALL for multicast fan-out.
type GroupMod struct {
	Dpid    uint64
	Command GroupCommand
	GroupID uint16 // == session group_no
	Buckets []Bucket
}

// Match is the subset of OpenFlow match fields the distributor needs.
type Match struct {
	Ipv4Dst string // group_ip, or "" / ANY for delete-all
}

type Action struct {
	OutPort uint16 // 0 with GroupID set means "goto group"
	GroupID uint16
	ToGroup bool
}

// FlowMod is the §6 "FlowMod" command.
type FlowMod struct {
	Dpid     uint64
	Priority uint16
	Match    Match
	Actions  []Action
	BufferID *uint32
	Delete   bool // true for the stale-tree-invalidation delete-ANY step (§4.5)
}

// PacketOut is the §6 "PacketOut" command.
type PacketOut struct {
	Dpid    uint64
	InPort  uint16
	Actions []Action
	Data    []byte
}

// Commander is implemented by the collaborator: the core emits commands
// through it (§6 "Commands emitted").
type Commander interface {
	FlowMod(FlowMod) error
	GroupMod(GroupMod) error
	PacketOut(PacketOut) error
}

// TableMissFlowMod returns the §6 table-miss entry: priority 0, match any,
// output to controller. OutPort 0xfffffffd is OFPP_CONTROLLER in
// OpenFlow-1.3; represented here as a constant so callers never need the
// collaborator's numeric port space.
const ControllerPort = 0xfffffffd

func TableMissFlowMod(dpid uint64) FlowMod {
	return FlowMod{
		Dpid:     dpid,
		Priority: 0,
		Actions:  []Action{{OutPort: ControllerPort}},
	}
}
