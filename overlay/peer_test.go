package overlay

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeView struct {
	switches []SwitchRecord
	ports    []PortRecord
	links    []LinkRecord
	hosts    []HostRecord
}

func (v *fakeView) LocalSwitches() []SwitchRecord { return v.switches }
func (v *fakeView) LocalPorts() []PortRecord       { return v.ports }
func (v *fakeView) LocalLinks() []LinkRecord       { return v.links }
func (v *fakeView) LocalHosts() []HostRecord       { return v.hosts }

type recorder struct {
	mu       sync.Mutex
	switches []SwitchRecord
}

func (r *recorder) onSwitch(_ [16]byte, s SwitchRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.switches = append(r.switches, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.switches)
}

func TestLateJoinerReceivesFullLocalView(t *testing.T) {
	bus := NewInProcBus()

	var writerA [16]byte
	writerA[0] = 1
	viewA := &fakeView{switches: []SwitchRecord{
		{Dpid: 1, Cid: 1, PortCount: 2, Op: SwitchEnter},
		{Dpid: 2, Cid: 1, PortCount: 1, Op: SwitchEnter},
		{Dpid: 3, Cid: 1, PortCount: 1, Op: SwitchEnter},
	}}
	peerA := NewPeer(writerA, bus, viewA, Handlers{})
	peerA.HeartbeatEvery = time.Hour // don't let heartbeats interfere

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go peerA.Run(ctx)

	rec := &recorder{}
	var writerB [16]byte
	writerB[0] = 2
	peerB := NewPeer(writerB, bus, nil, Handlers{OnSwitch: rec.onSwitch})
	peerB.HeartbeatEvery = time.Hour
	go peerB.Run(ctx)

	deadline := time.After(2 * time.Second)
	for rec.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for late-joiner replay, got %d records", rec.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPeerLossDeclaredAfterTimeout(t *testing.T) {
	bus := NewInProcBus()

	var writerA [16]byte
	writerA[0] = 9
	peerA := NewPeer(writerA, bus, &fakeView{}, Handlers{})
	peerA.HeartbeatEvery = 20 * time.Millisecond
	peerA.PeerTimeout = 100 * time.Millisecond

	var lost [16]byte
	var mu sync.Mutex
	var writerB [16]byte
	writerB[0] = 10
	peerB := NewPeer(writerB, bus, &fakeView{}, Handlers{
		OnPeerLost: func(w [16]byte) {
			mu.Lock()
			lost = w
			mu.Unlock()
		},
	})
	peerB.HeartbeatEvery = 20 * time.Millisecond
	peerB.PeerTimeout = 100 * time.Millisecond

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()
	go peerA.Run(ctxA)
	go peerB.Run(ctxB)

	// let A's heartbeats establish liveness, then kill A.
	time.Sleep(80 * time.Millisecond)
	cancelA()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		got := lost
		mu.Unlock()
		if got == writerA {
			return
		}
		select {
		case <-deadline:
			t.Fatal("peer loss was never declared")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
