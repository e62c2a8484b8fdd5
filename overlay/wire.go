// Package overlay implements the topology pub/sub overlay (C6, §4.4):
// four topics, late-joiner state transfer, and peer liveness, over the
// fixed-width wire schema of §6.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package overlay

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Topic names the four replicated mappings of §4.4.
type Topic string

const (
	TopicSwitches Topic = "switches"
	TopicPorts    Topic = "ports"
	TopicLinks    Topic = "links"
	TopicHosts    Topic = "hosts"
)

var AllTopics = []Topic{TopicSwitches, TopicPorts, TopicLinks, TopicHosts}

// HeartbeatMAC is the well-known mac of the §4.4 heartbeat host record:
// dpid=0, port_no=0.
const HeartbeatMAC = "00:00:00:00:00:00"

type SwitchOp uint8

const (
	SwitchLeave SwitchOp = 0
	SwitchEnter SwitchOp = 1
)

type PortOp uint8

const (
	PortDelete PortOp = 0
	PortAdd    PortOp = 1
	PortModify PortOp = 2
)

type LinkOp uint8

const (
	LinkDelete LinkOp = 0
	LinkAdd    LinkOp = 1
)

type HostOp uint8

const (
	HostDelete HostOp = 0
	HostAdd    HostOp = 1
)

// SwitchRecord is §6's switch wire record.
type SwitchRecord struct {
	WriterID  [16]byte
	Cid       int16
	Dpid      int64
	PortCount int16
	Op        SwitchOp
}

// PortRecord is §6's port wire record.
type PortRecord struct {
	Dpid    int64
	Ofp     string
	Config  int16
	State   int16
	PortNo  int16
	HwAddr  string
	Name    string
	IsLive  bool
	Op      PortOp
}

// LinkRecord is §6's link wire record.
type LinkRecord struct {
	SrcDpid   int64
	SrcPortNo int16
	DstDpid   int64
	DstPortNo int16
	Op        LinkOp
}

// HostRecord is §6's host wire record.
type HostRecord struct {
	Dpid   int64
	PortNo int16
	Mac    string
	IPv4   string
	IPv6   string
	Op     HostOp
}

func (r *HostRecord) IsHeartbeat() bool {
	return r.Dpid == 0 && r.PortNo == 0 && r.Mac == HeartbeatMAC
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func (r SwitchRecord) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Write(r.WriterID[:])
	binary.Write(buf, binary.LittleEndian, r.Cid)
	binary.Write(buf, binary.LittleEndian, r.Dpid)
	binary.Write(buf, binary.LittleEndian, r.PortCount)
	binary.Write(buf, binary.LittleEndian, r.Op)
	return buf.Bytes()
}

func DecodeSwitch(data []byte) (SwitchRecord, error) {
	var r SwitchRecord
	br := bytes.NewReader(data)
	if _, err := br.Read(r.WriterID[:]); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.Cid); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.Dpid); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.PortCount); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.Op); err != nil {
		return r, err
	}
	return r, nil
}

func (r PortRecord) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, r.Dpid)
	writeString(buf, r.Ofp)
	binary.Write(buf, binary.LittleEndian, r.Config)
	binary.Write(buf, binary.LittleEndian, r.State)
	binary.Write(buf, binary.LittleEndian, r.PortNo)
	writeString(buf, r.HwAddr)
	writeString(buf, r.Name)
	var live uint8
	if r.IsLive {
		live = 1
	}
	binary.Write(buf, binary.LittleEndian, live)
	binary.Write(buf, binary.LittleEndian, r.Op)
	return buf.Bytes()
}

func DecodePort(data []byte) (PortRecord, error) {
	var r PortRecord
	br := bytes.NewReader(data)
	if err := binary.Read(br, binary.LittleEndian, &r.Dpid); err != nil {
		return r, err
	}
	var err error
	if r.Ofp, err = readString(br); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.Config); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.State); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.PortNo); err != nil {
		return r, err
	}
	if r.HwAddr, err = readString(br); err != nil {
		return r, err
	}
	if r.Name, err = readString(br); err != nil {
		return r, err
	}
	var live uint8
	if err := binary.Read(br, binary.LittleEndian, &live); err != nil {
		return r, err
	}
	r.IsLive = live == 1
	if err := binary.Read(br, binary.LittleEndian, &r.Op); err != nil {
		return r, err
	}
	return r, nil
}

func (r LinkRecord) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, r.SrcDpid)
	binary.Write(buf, binary.LittleEndian, r.SrcPortNo)
	binary.Write(buf, binary.LittleEndian, r.DstDpid)
	binary.Write(buf, binary.LittleEndian, r.DstPortNo)
	binary.Write(buf, binary.LittleEndian, r.Op)
	return buf.Bytes()
}

func DecodeLink(data []byte) (LinkRecord, error) {
	var r LinkRecord
	br := bytes.NewReader(data)
	for _, f := range []any{&r.SrcDpid, &r.SrcPortNo, &r.DstDpid, &r.DstPortNo, &r.Op} {
		if err := binary.Read(br, binary.LittleEndian, f); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (r HostRecord) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, r.Dpid)
	binary.Write(buf, binary.LittleEndian, r.PortNo)
	writeString(buf, r.Mac)
	writeString(buf, r.IPv4)
	writeString(buf, r.IPv6)
	binary.Write(buf, binary.LittleEndian, r.Op)
	return buf.Bytes()
}

func DecodeHost(data []byte) (HostRecord, error) {
	var r HostRecord
	br := bytes.NewReader(data)
	if err := binary.Read(br, binary.LittleEndian, &r.Dpid); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.PortNo); err != nil {
		return r, err
	}
	var err error
	if r.Mac, err = readString(br); err != nil {
		return r, err
	}
	if r.IPv4, err = readString(br); err != nil {
		return r, err
	}
	if r.IPv6, err = readString(br); err != nil {
		return r, err
	}
	if err := binary.Read(br, binary.LittleEndian, &r.Op); err != nil {
		return r, err
	}
	return r, nil
}

// DpidString renders a dpid as 16 hex digits upper-case (§6).
func DpidString(d uint64) string { return fmt.Sprintf("%016X", d) }

// PortString renders a port number as 8 hex digits upper-case (§6).
func PortString(p uint16) string { return fmt.Sprintf("%08X", p) }
