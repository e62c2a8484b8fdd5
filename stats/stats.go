// Package stats provides methods and functionality to register, track, and
// export the controller's counters and latencies - engine recomputes,
// overlay churn, overcommit warnings - for scraping via /metrics.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Tracker is the narrow interface the rest of the core depends on, so
// that orchestrator/heat/overlay code never imports prometheus directly
// (compare with cluster/mock.StatsTracker in the teacher).
type Tracker interface {
	Inc(name string)
	Add(name string, v float64)
	Observe(name string, seconds float64)
}

const (
	TreesRecomputed   = "trees_recomputed_total"
	SessionsRerouted  = "sessions_rerouted_total"
	Overcommits       = "edge_overcommits_total"
	InfeasibleRoutes  = "infeasible_routes_total"
	PeersLost         = "peers_lost_total"
	LateJoinTransfers = "late_join_transfers_total"
	StaleReferences   = "stale_references_dropped_total"
	RecomputeLatency  = "heat_recompute_seconds"
	InstallLatency    = "tree_install_seconds"
)

type Runner struct {
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
	reg        *prometheus.Registry
}

var _ Tracker = (*Runner)(nil)

func NewRunner(cid int16) *Runner {
	reg := prometheus.NewRegistry()
	r := &Runner{
		counters:   make(map[string]prometheus.Counter, 8),
		histograms: make(map[string]prometheus.Histogram, 2),
		reg:        reg,
	}
	for _, name := range []string{
		TreesRecomputed, SessionsRerouted, Overcommits, InfeasibleRoutes,
		PeersLost, LateJoinTransfers, StaleReferences,
	} {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "heatctl",
			Name:        name,
			Help:        name,
			ConstLabels: prometheus.Labels{"cid": itoa(cid)},
		})
		reg.MustRegister(c)
		r.counters[name] = c
	}
	for _, name := range []string{RecomputeLatency, InstallLatency} {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "heatctl",
			Name:        name,
			Help:        name,
			ConstLabels: prometheus.Labels{"cid": itoa(cid)},
			Buckets:     prometheus.DefBuckets,
		})
		reg.MustRegister(h)
		r.histograms[name] = h
	}
	return r
}

func (r *Runner) Inc(name string) { r.Add(name, 1) }

func (r *Runner) Add(name string, v float64) {
	if c, ok := r.counters[name]; ok {
		c.Add(v)
	}
}

func (r *Runner) Observe(name string, seconds float64) {
	if h, ok := r.histograms[name]; ok {
		h.Observe(seconds)
	}
}

func (r *Runner) Registry() *prometheus.Registry { return r.reg }

func itoa(v int16) string {
	const digits = "0123456789"
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var b [8]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = digits[v%10]
		v /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}
