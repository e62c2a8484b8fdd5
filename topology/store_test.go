package topology

import "testing"

func TestSwitchLeaveCascadesPortsLinksHosts(t *testing.T) {
	s := New()
	var w [16]byte
	s.ApplySwitch(Switch{Dpid: 1, Cid: 1, PortCount: 1}, w, OpEnter)
	s.ApplySwitch(Switch{Dpid: 2, Cid: 1, PortCount: 1}, w, OpEnter)
	s.ApplyPort(Port{Dpid: 1, PortNo: 1, HwAddr: "aa:aa"}, OpEnter)
	s.ApplyLink(Link{SrcDpid: 1, SrcPortNo: 1, DstDpid: 2, DstPortNo: 1}, OpEnter)
	s.ApplyHost(Host{Dpid: 1, PortNo: 1, Mac: "bb:bb"})

	s.ApplySwitch(Switch{Dpid: 1}, w, OpLeave)

	if s.HasSwitch(1) {
		t.Fatal("switch 1 should be gone")
	}
	if len(s.Ports()) != 0 {
		t.Fatalf("ports should cascade, got %v", s.Ports())
	}
	if len(s.Links()) != 0 {
		t.Fatalf("links should cascade, got %v", s.Links())
	}
	if len(s.Hosts()) != 0 {
		t.Fatalf("hosts should cascade, got %v", s.Hosts())
	}
}

func TestLinkDroppedIfEndpointUnknown(t *testing.T) {
	s := New()
	var w [16]byte
	s.ApplySwitch(Switch{Dpid: 1}, w, OpEnter)
	_, applied := s.ApplyLink(Link{SrcDpid: 1, DstDpid: 99}, OpEnter)
	if applied {
		t.Fatal("link referencing unknown switch must be dropped")
	}
}

func TestHostAddSynthesizesAccessLink(t *testing.T) {
	s := New()
	var w [16]byte
	s.ApplySwitch(Switch{Dpid: 1}, w, OpEnter)
	s.ApplySwitch(Switch{Dpid: 2}, w, OpEnter)
	s.ApplyPort(Port{Dpid: 2, PortNo: 5, HwAddr: "cc:cc"}, OpEnter)

	s.ApplyHost(Host{Dpid: 1, PortNo: 3, Mac: "cc:cc"})

	links := s.Links()
	if len(links) != 2 {
		t.Fatalf("want synthesized bidirectional link, got %v", links)
	}
}

func TestPeerLossKeepsSwitchesButMarksDead(t *testing.T) {
	s := New()
	var w [16]byte
	w[0] = 7
	s.ApplySwitch(Switch{Dpid: 1, Cid: 1}, w, OpEnter)
	s.ApplyPeerLoss(w)

	if !s.HasSwitch(1) {
		t.Fatal("switches must survive peer loss")
	}
	found := false
	for _, p := range s.Controllers() {
		if p.Cid == 1 {
			found = true
			if p.IsLive {
				t.Fatal("controller record should be marked dead")
			}
		}
	}
	if !found {
		t.Fatal("expected controller record for cid 1")
	}
}

func TestApplyReturnsPriorState(t *testing.T) {
	s := New()
	var w [16]byte
	_, changed := s.ApplySwitch(Switch{Dpid: 1, PortCount: 4}, w, OpEnter)
	if !changed {
		t.Fatal("first enter should be a real change")
	}
	prev, changed := s.ApplySwitch(Switch{Dpid: 1, PortCount: 8}, w, OpModify)
	if !changed {
		t.Fatal("modify should be a real change")
	}
	if prev.PortCount != 4 {
		t.Fatalf("want prior port_count=4, got %d", prev.PortCount)
	}
}
