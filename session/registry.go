// Package session is the multicast session registry (C4, §3): source,
// receivers, delay bound, bandwidth demand, and the dense group-number /
// multicast-IP allocation each session is keyed by.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Session is the tuple (source, receivers, delay bound, bandwidth
// demand, group number, group IP) of §3 "Multicast session".
type Session struct {
	SrcDpid    uint64
	Receivers  map[uint64]bool
	GroupNo    uint16
	DelayBound float64
	BwDemand   float64
}

func (s *Session) GroupIP() string {
	return fmt.Sprintf("224.0.1.%d", s.GroupNo)
}

func (s *Session) ReceiverList() []uint64 {
	out := make([]uint64, 0, len(s.Receivers))
	for r := range s.Receivers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var ErrDuplicateSource = errors.New("session: a session already exists for this source switch")
var ErrNotFound = errors.New("session: no session for this source switch")

// Registry is unique by SrcDpid (§3) and hands out dense group numbers
// starting at 1, reclaiming the lowest free slot on removal so the
// allocation stays dense under churn.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	groupOf  map[uint16]uint64 // group no -> src dpid, for dense reuse
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uint64]*Session),
		groupOf:  make(map[uint16]uint64),
	}
}

// Add creates a new session rooted at src. Group numbers are allocated
// densely from 1 and are stable for the session's lifetime (§3).
func (r *Registry) Add(src uint64, receivers []uint64, delayBound, bwDemand float64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[src]; exists {
		return nil, errors.Wrapf(ErrDuplicateSource, "src=%016X", src)
	}
	groupNo := r.nextGroupNo()
	s := &Session{
		SrcDpid:    src,
		Receivers:  toSet(receivers),
		GroupNo:    groupNo,
		DelayBound: delayBound,
		BwDemand:   bwDemand,
	}
	r.sessions[src] = s
	r.groupOf[groupNo] = src
	return s, nil
}

func (r *Registry) nextGroupNo() uint16 {
	for g := uint16(1); ; g++ {
		if _, used := r.groupOf[g]; !used {
			return g
		}
	}
}

func toSet(recv []uint64) map[uint64]bool {
	out := make(map[uint64]bool, len(recv))
	for _, r := range recv {
		out[r] = true
	}
	return out
}

func (r *Registry) Remove(src uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[src]
	if !ok {
		return errors.Wrapf(ErrNotFound, "src=%016X", src)
	}
	delete(r.sessions, src)
	delete(r.groupOf, s.GroupNo)
	return nil
}

func (r *Registry) AddReceiver(src, dpid uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[src]
	if !ok {
		return errors.Wrapf(ErrNotFound, "src=%016X", src)
	}
	s.Receivers[dpid] = true
	return nil
}

func (r *Registry) RemoveReceiver(src, dpid uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[src]
	if !ok {
		return errors.Wrapf(ErrNotFound, "src=%016X", src)
	}
	delete(s.Receivers, dpid)
	return nil
}

func (r *Registry) Get(src uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[src]
	return s, ok
}

// All returns sessions ordered by SrcDpid for deterministic iteration.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SrcDpid < out[j].SrcDpid })
	return out
}
