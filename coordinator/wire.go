// Package coordinator is the optional centralized coordinator HTTP
// surface of §6, a shortcut over the full pub/sub overlay: it answers
// /switches, /links, /all_links, /trees, and accepts /group_add,
// /group_mod session-admin requests.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package coordinator

import (
	"github.com/tinylib/msgp/msgp"
)

// LinkWire is the binary-encoded form of /all_links (§6).
type LinkWire struct {
	SrcDpid, DstDpid     uint64
	SrcPortNo, DstPortNo uint16
}

// TreeWire is one session's rooted tree, flattened to parent edges, for
// the binary /trees response (§6).
type TreeWire struct {
	SrcDpid  uint64
	GroupNo  uint16
	GroupIP  string
	Receivers []uint64
	Edges    []LinkWire // child -> parent, enough to reconstruct the rooted tree
}

// TreeBundle is the `(trees, session_table)` pair of §4.5's pull protocol.
type TreeBundle struct {
	Trees        []TreeWire
	SessionTable []SessionRow
}

// SessionRow is one row of the binary session table half of TreeBundle.
type SessionRow struct {
	SrcDpid    uint64
	GroupNo    uint16
	DelayBound float64
	BwDemand   float64
}

func encodeLinks(links []LinkWire) []byte {
	b := msgp.AppendArrayHeader(nil, uint32(len(links)))
	for _, l := range links {
		b = msgp.AppendMapHeader(b, 4)
		b = msgp.AppendString(b, "src_dpid")
		b = msgp.AppendUint64(b, l.SrcDpid)
		b = msgp.AppendString(b, "src_port")
		b = msgp.AppendUint16(b, l.SrcPortNo)
		b = msgp.AppendString(b, "dst_dpid")
		b = msgp.AppendUint64(b, l.DstDpid)
		b = msgp.AppendString(b, "dst_port")
		b = msgp.AppendUint16(b, l.DstPortNo)
	}
	return b
}

func DecodeLinks(b []byte) ([]LinkWire, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, err
	}
	out := make([]LinkWire, 0, n)
	for i := uint32(0); i < n; i++ {
		var l LinkWire
		var fields uint32
		fields, b, err = msgp.ReadMapHeaderBytes(b)
		if err != nil {
			return nil, err
		}
		for f := uint32(0); f < fields; f++ {
			var key string
			key, b, err = msgp.ReadStringBytes(b)
			if err != nil {
				return nil, err
			}
			switch key {
			case "src_dpid":
				l.SrcDpid, b, err = msgp.ReadUint64Bytes(b)
			case "src_port":
				l.SrcPortNo, b, err = msgp.ReadUint16Bytes(b)
			case "dst_dpid":
				l.DstDpid, b, err = msgp.ReadUint64Bytes(b)
			case "dst_port":
				l.DstPortNo, b, err = msgp.ReadUint16Bytes(b)
			}
			if err != nil {
				return nil, err
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func encodeTreeBundle(tb TreeBundle) []byte {
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendString(b, "trees")
	b = msgp.AppendArrayHeader(b, uint32(len(tb.Trees)))
	for _, t := range tb.Trees {
		b = msgp.AppendMapHeader(b, 5)
		b = msgp.AppendString(b, "src_dpid")
		b = msgp.AppendUint64(b, t.SrcDpid)
		b = msgp.AppendString(b, "group_no")
		b = msgp.AppendUint16(b, t.GroupNo)
		b = msgp.AppendString(b, "group_ip")
		b = msgp.AppendString(b, t.GroupIP)
		b = msgp.AppendString(b, "receivers")
		b = msgp.AppendArrayHeader(b, uint32(len(t.Receivers)))
		for _, r := range t.Receivers {
			b = msgp.AppendUint64(b, r)
		}
		b = msgp.AppendString(b, "edges")
		b = append(b, encodeLinks(t.Edges)...)
	}
	b = msgp.AppendString(b, "session_table")
	b = msgp.AppendArrayHeader(b, uint32(len(tb.SessionTable)))
	for _, row := range tb.SessionTable {
		b = msgp.AppendMapHeader(b, 4)
		b = msgp.AppendString(b, "src_dpid")
		b = msgp.AppendUint64(b, row.SrcDpid)
		b = msgp.AppendString(b, "group_no")
		b = msgp.AppendUint16(b, row.GroupNo)
		b = msgp.AppendString(b, "delay_bound")
		b = msgp.AppendFloat64(b, row.DelayBound)
		b = msgp.AppendString(b, "bw_demand")
		b = msgp.AppendFloat64(b, row.BwDemand)
	}
	return b
}

func DecodeTreeBundle(b []byte) (TreeBundle, error) {
	var tb TreeBundle
	topFields, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return tb, err
	}
	for i := uint32(0); i < topFields; i++ {
		var key string
		key, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return tb, err
		}
		switch key {
		case "trees":
			var n uint32
			n, b, err = msgp.ReadArrayHeaderBytes(b)
			if err != nil {
				return tb, err
			}
			for t := uint32(0); t < n; t++ {
				var tree TreeWire
				var fields uint32
				fields, b, err = msgp.ReadMapHeaderBytes(b)
				if err != nil {
					return tb, err
				}
				for f := uint32(0); f < fields; f++ {
					var k string
					k, b, err = msgp.ReadStringBytes(b)
					if err != nil {
						return tb, err
					}
					switch k {
					case "src_dpid":
						tree.SrcDpid, b, err = msgp.ReadUint64Bytes(b)
					case "group_no":
						tree.GroupNo, b, err = msgp.ReadUint16Bytes(b)
					case "group_ip":
						tree.GroupIP, b, err = msgp.ReadStringBytes(b)
					case "receivers":
						var rn uint32
						rn, b, err = msgp.ReadArrayHeaderBytes(b)
						if err != nil {
							return tb, err
						}
						for r := uint32(0); r < rn; r++ {
							var v uint64
							v, b, err = msgp.ReadUint64Bytes(b)
							if err != nil {
								return tb, err
							}
							tree.Receivers = append(tree.Receivers, v)
						}
					case "edges":
						var en uint32
						en, b, err = msgp.ReadArrayHeaderBytes(b)
						if err != nil {
							return tb, err
						}
						for e := uint32(0); e < en; e++ {
							var lf uint32
							var l LinkWire
							lf, b, err = msgp.ReadMapHeaderBytes(b)
							if err != nil {
								return tb, err
							}
							for lk := uint32(0); lk < lf; lk++ {
								var lkey string
								lkey, b, err = msgp.ReadStringBytes(b)
								if err != nil {
									return tb, err
								}
								switch lkey {
								case "src_dpid":
									l.SrcDpid, b, err = msgp.ReadUint64Bytes(b)
								case "src_port":
									l.SrcPortNo, b, err = msgp.ReadUint16Bytes(b)
								case "dst_dpid":
									l.DstDpid, b, err = msgp.ReadUint64Bytes(b)
								case "dst_port":
									l.DstPortNo, b, err = msgp.ReadUint16Bytes(b)
								}
								if err != nil {
									return tb, err
								}
							}
							tree.Edges = append(tree.Edges, l)
						}
					}
					if err != nil {
						return tb, err
					}
				}
				tb.Trees = append(tb.Trees, tree)
			}
		case "session_table":
			var n uint32
			n, b, err = msgp.ReadArrayHeaderBytes(b)
			if err != nil {
				return tb, err
			}
			for i := uint32(0); i < n; i++ {
				var row SessionRow
				var fields uint32
				fields, b, err = msgp.ReadMapHeaderBytes(b)
				if err != nil {
					return tb, err
				}
				for f := uint32(0); f < fields; f++ {
					var k string
					k, b, err = msgp.ReadStringBytes(b)
					if err != nil {
						return tb, err
					}
					switch k {
					case "src_dpid":
						row.SrcDpid, b, err = msgp.ReadUint64Bytes(b)
					case "group_no":
						row.GroupNo, b, err = msgp.ReadUint16Bytes(b)
					case "delay_bound":
						row.DelayBound, b, err = msgp.ReadFloat64Bytes(b)
					case "bw_demand":
						row.BwDemand, b, err = msgp.ReadFloat64Bytes(b)
					}
					if err != nil {
						return tb, err
					}
				}
				tb.SessionTable = append(tb.SessionTable, row)
			}
		}
	}
	return tb, nil
}
