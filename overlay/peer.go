package overlay

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"
	cuckoo "github.com/seiflotfy/cuckoofilter"
	"golang.org/x/sync/errgroup"

	"github.com/qosmcast/heatctl/stats"
)

// dedupSeed is an arbitrary fixed seed for the writer+payload digest fed to
// each topic's cuckoo filter; only needs to be stable for one process.
const dedupSeed = 0x9e3779b97f4a7c15

// LocalView is the subset of a controller's own shard that a Peer must be
// able to replay on late-joiner request (§4.4 "Late joiners"): switches
// first, then ports, then links, then hosts.
type LocalView interface {
	LocalSwitches() []SwitchRecord
	LocalPorts() []PortRecord
	LocalLinks() []LinkRecord
	LocalHosts() []HostRecord
}

// Handlers receives decoded, deduplicated records off each topic's
// subscriber loop, annotated with the writer that published them.
type Handlers struct {
	OnSwitch func(writerID [16]byte, r SwitchRecord)
	OnPort   func(writerID [16]byte, r PortRecord)
	OnLink   func(writerID [16]byte, r LinkRecord)
	OnHost   func(writerID [16]byte, r HostRecord)
	OnPeerLost func(writerID [16]byte)
}

// Peer is one controller's presence on the overlay: it publishes its own
// local topology changes and heartbeats, subscribes to all four topics,
// and runs the liveness and late-joiner protocols of §4.4.
type Peer struct {
	WriterID    [16]byte
	Bus         Bus
	View        LocalView
	Handlers    Handlers
	PeerTimeout    time.Duration // default 10s, §4.4 "Liveness"
	HeartbeatEvery time.Duration // default 1s
	Stats          stats.Tracker

	mu       sync.Mutex
	lastSeen map[[16]byte]time.Time
	filters  map[Topic]*cuckoo.Filter
}

func NewPeer(writerID [16]byte, bus Bus, view LocalView, h Handlers) *Peer {
	p := &Peer{
		WriterID:       writerID,
		Bus:            bus,
		View:           view,
		Handlers:       h,
		PeerTimeout:    10 * time.Second,
		HeartbeatEvery: 1 * time.Second,
		lastSeen:       make(map[[16]byte]time.Time),
		filters:        make(map[Topic]*cuckoo.Filter),
	}
	for _, t := range AllTopics {
		p.filters[t] = cuckoo.NewFilter(4096)
	}
	return p
}

func (p *Peer) markSeen(writerID [16]byte) {
	p.mu.Lock()
	p.lastSeen[writerID] = time.Now()
	p.mu.Unlock()
}

// seenBefore reports whether (topic, writerID, payload) was already
// delivered recently, absorbing the overlay's at-least-once duplicates
// (§4.4 "Exactly-once is not guaranteed") before they even reach the
// idempotent-but-not-free apply layer.
func (p *Peer) seenBefore(topic Topic, writerID [16]byte, data []byte) bool {
	h := xxhash.New64S(dedupSeed)
	h.Write(writerID[:])
	h.Write(data)
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], h.Sum64())

	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.filters[topic]
	if f.Lookup(key[:]) {
		return true
	}
	f.InsertUnique(key[:])
	return false
}

func (p *Peer) Publish(topic Topic, data []byte) {
	p.Bus.Publish(topic, Envelope{WriterID: p.WriterID, Data: data})
}

// Run starts every loop of §5's concurrency model that this package owns
// (four subscriber loops, the heartbeat-emit loop, the peer-liveness
// loop, the new-subscription loop) and blocks until ctx is cancelled or
// one loop errors.
func (p *Peer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.subscribeSwitches(ctx) })
	g.Go(func() error { return p.subscribePorts(ctx) })
	g.Go(func() error { return p.subscribeLinks(ctx) })
	g.Go(func() error { return p.subscribeHosts(ctx) })
	g.Go(func() error { return p.heartbeatLoop(ctx) })
	g.Go(func() error { return p.livenessLoop(ctx) })
	g.Go(func() error { return p.newSubscriptionLoop(ctx) })

	return g.Wait()
}

func (p *Peer) subscribeSwitches(ctx context.Context) error {
	ch, cancel := p.Bus.Subscribe(TopicSwitches)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			if p.seenBefore(TopicSwitches, env.WriterID, env.Data) {
				continue
			}
			p.markSeen(env.WriterID)
			r, err := DecodeSwitch(env.Data)
			if err != nil {
				continue
			}
			if p.Handlers.OnSwitch != nil {
				p.Handlers.OnSwitch(env.WriterID, r)
			}
		}
	}
}

func (p *Peer) subscribePorts(ctx context.Context) error {
	ch, cancel := p.Bus.Subscribe(TopicPorts)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			if p.seenBefore(TopicPorts, env.WriterID, env.Data) {
				continue
			}
			p.markSeen(env.WriterID)
			r, err := DecodePort(env.Data)
			if err != nil {
				continue
			}
			if p.Handlers.OnPort != nil {
				p.Handlers.OnPort(env.WriterID, r)
			}
		}
	}
}

func (p *Peer) subscribeLinks(ctx context.Context) error {
	ch, cancel := p.Bus.Subscribe(TopicLinks)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			if p.seenBefore(TopicLinks, env.WriterID, env.Data) {
				continue
			}
			p.markSeen(env.WriterID)
			r, err := DecodeLink(env.Data)
			if err != nil {
				continue
			}
			if p.Handlers.OnLink != nil {
				p.Handlers.OnLink(env.WriterID, r)
			}
		}
	}
}

func (p *Peer) subscribeHosts(ctx context.Context) error {
	ch, cancel := p.Bus.Subscribe(TopicHosts)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			// heartbeats are frequent and deliberately repetitive; never
			// let the dedup filter swallow them, or liveness stalls.
			r, err := DecodeHost(env.Data)
			if err != nil {
				continue
			}
			if r.IsHeartbeat() {
				p.markSeen(env.WriterID)
				continue
			}
			if p.seenBefore(TopicHosts, env.WriterID, env.Data) {
				continue
			}
			p.markSeen(env.WriterID)
			if p.Handlers.OnHost != nil {
				p.Handlers.OnHost(env.WriterID, r)
			}
		}
	}
}

func (p *Peer) heartbeatLoop(ctx context.Context) error {
	hb := HostRecord{Dpid: 0, PortNo: 0, Mac: HeartbeatMAC, Op: HostAdd}
	ticker := time.NewTicker(p.HeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Publish(TopicHosts, hb.Encode())
		}
	}
}

// livenessLoop implements §4.4 "Liveness": a writer with no record on any
// topic for PeerTimeout is declared lost.
func (p *Peer) livenessLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.HeartbeatEvery)
	defer ticker.Stop()
	declared := make(map[[16]byte]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := time.Now()
			p.mu.Lock()
			var lost [][16]byte
			for w, t := range p.lastSeen {
				if w == p.WriterID {
					continue
				}
				if now.Sub(t) >= p.PeerTimeout && !declared[w] {
					declared[w] = true
					lost = append(lost, w)
				}
			}
			p.mu.Unlock()
			for _, w := range lost {
				p.Bus.DeclarePeerLost(w)
			}
		}
	}
}

func (p *Peer) newSubscriptionLoop(ctx context.Context) error {
	ch := p.Bus.OnNewSubscription()
	peerLost := p.Bus.OnPeerLost()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			p.replayLocalView()
		case w, ok := <-peerLost:
			if !ok {
				return nil
			}
			if p.Handlers.OnPeerLost != nil {
				p.Handlers.OnPeerLost(w)
			}
		}
	}
}

// replayLocalView is §4.4's late-joiner procedure: re-publish every local
// entity with op=enter, ordered switches, ports, links, hosts so
// referential invariants hold at the receiver.
func (p *Peer) replayLocalView() {
	if p.View == nil {
		return
	}
	if p.Stats != nil {
		p.Stats.Inc(stats.LateJoinTransfers)
	}
	for _, r := range p.View.LocalSwitches() {
		r.WriterID = p.WriterID
		p.Publish(TopicSwitches, r.Encode())
	}
	for _, r := range p.View.LocalPorts() {
		p.Publish(TopicPorts, r.Encode())
	}
	for _, r := range p.View.LocalLinks() {
		p.Publish(TopicLinks, r.Encode())
	}
	for _, r := range p.View.LocalHosts() {
		p.Publish(TopicHosts, r.Encode())
	}
}
