package local

import (
	"testing"

	"github.com/qosmcast/heatctl/overlay"
	"github.com/qosmcast/heatctl/southbound"
	"github.com/qosmcast/heatctl/topology"
)

type countingNotifier struct{ n int }

func (c *countingNotifier) NotifyTopologyChanged() { c.n++ }

func TestSwitchEnterPublishesAndAppliesLocally(t *testing.T) {
	bus := overlay.NewInProcBus()
	store := topology.New()
	var writerID [16]byte
	writerID[0] = 1
	peer := overlay.NewPeer(writerID, bus, nil, overlay.Handlers{})

	ch, cancel := bus.Subscribe(overlay.TopicSwitches)
	defer cancel()

	notify := &countingNotifier{}
	a := New(1, writerID, store, peer, notify)

	a.OnSwitchEnter(southbound.SwitchEnterEvent{
		Dpid: 42,
		Ports: []southbound.Port{
			{PortNo: 1, HwAddr: "aa:aa"},
		},
	})

	if !store.HasSwitch(42) {
		t.Fatal("expected switch 42 in the store")
	}
	if notify.n != 1 {
		t.Fatalf("expected one topology-changed notification, got %d", notify.n)
	}
	select {
	case env := <-ch:
		r, err := overlay.DecodeSwitch(env.Data)
		if err != nil {
			t.Fatal(err)
		}
		if r.Dpid != 42 || r.Op != overlay.SwitchEnter {
			t.Fatalf("unexpected record: %+v", r)
		}
	default:
		t.Fatal("expected a published switch record")
	}

	locals := a.LocalSwitches()
	if len(locals) != 1 || locals[0].Dpid != 42 {
		t.Fatalf("expected switch 42 in local view, got %v", locals)
	}
}
