package local

import (
	"testing"

	"github.com/qosmcast/heatctl/overlay"
	"github.com/qosmcast/heatctl/topology"
)

func TestRemoteAppliesSwitchAndNotifies(t *testing.T) {
	store := topology.New()
	notify := &countingNotifier{}
	remote := NewRemote(store, notify)
	h := remote.Handlers()

	var wid [16]byte
	wid[0] = 7
	h.OnSwitch(wid, overlay.SwitchRecord{WriterID: wid, Cid: 2, Dpid: 9, PortCount: 1, Op: overlay.SwitchEnter})

	if !store.HasSwitch(9) {
		t.Fatal("expected remote switch to be applied")
	}
	if notify.n == 0 {
		t.Fatal("expected a topology-changed notification")
	}
}

func TestRemotePeerLossMarksControllerDead(t *testing.T) {
	store := topology.New()
	remote := NewRemote(store, nil)
	h := remote.Handlers()

	var wid [16]byte
	wid[0] = 3
	h.OnSwitch(wid, overlay.SwitchRecord{WriterID: wid, Cid: 5, Dpid: 1, Op: overlay.SwitchEnter})
	h.OnPeerLost(wid)

	var found bool
	for _, p := range store.Controllers() {
		if p.Cid == 5 {
			found = true
			if p.IsLive {
				t.Fatal("expected controller to be marked dead after peer loss")
			}
		}
	}
	if !found {
		t.Fatal("expected controller record to survive peer loss")
	}
	if !store.HasSwitch(1) {
		t.Fatal("peer loss must not evict owned switches (conservative, §7)")
	}
}

func TestRemoteDetectsDuplicateCid(t *testing.T) {
	store := topology.New()
	remote := NewRemote(store, nil)
	var self [16]byte
	self[0] = 1
	remote.SelfCid = 4
	remote.WriterID = self
	h := remote.Handlers()

	var other [16]byte
	other[0] = 2
	h.OnSwitch(other, overlay.SwitchRecord{WriterID: other, Cid: 4, Dpid: 1, Op: overlay.SwitchEnter})

	select {
	case err := <-remote.Fatal:
		if err == nil {
			t.Fatal("expected a non-nil fatal error")
		}
	default:
		t.Fatal("expected duplicate-cid detection to signal on Fatal")
	}
}

func TestRemoteIgnoresDuplicateCidFromSelf(t *testing.T) {
	store := topology.New()
	remote := NewRemote(store, nil)
	var self [16]byte
	self[0] = 1
	remote.SelfCid = 4
	remote.WriterID = self
	h := remote.Handlers()

	h.OnSwitch(self, overlay.SwitchRecord{WriterID: self, Cid: 4, Dpid: 1, Op: overlay.SwitchEnter})

	select {
	case err := <-remote.Fatal:
		t.Fatalf("unexpected fatal error from own writer id: %v", err)
	default:
	}
}
