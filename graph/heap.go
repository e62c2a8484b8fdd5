// Package graph provides the weighted-graph primitives shared by the
// distance oracle and the heat-degree engine: a min-heap, BFS, Dijkstra,
// MST, and a Steiner-tree approximation (§4.1, §4.2, C1 in the design).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package graph

import "container/heap"

// item is one entry of the priority queue: a node and its current best
// known distance, plus the heap index for O(log n) decrease-key.
type item struct {
	node  uint64
	dist  float64
	index int
}

type minHeap []*item

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *minHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// PQ is a min-priority-queue over nodes keyed by distance, supporting
// decrease-key, used by Dijkstra and by the oracle's resumable bounded
// Dijkstra (§4.1).
type PQ struct {
	h       minHeap
	indexOf map[uint64]*item
}

func NewPQ() *PQ {
	return &PQ{indexOf: make(map[uint64]*item)}
}

func (pq *PQ) Len() int { return pq.h.Len() }

// Push inserts node at dist, or decreases its key if already present and
// dist improves on the current value. Reports whether the queue's
// knowledge of node actually changed, so callers (e.g. Prim's MST) can
// keep a "best predecessor" map in lockstep with the heap.
func (pq *PQ) Push(node uint64, dist float64) bool {
	if it, ok := pq.indexOf[node]; ok {
		return pq.DecreaseKey(node, dist)
	}
	it := &item{node: node, dist: dist}
	heap.Push(&pq.h, it)
	pq.indexOf[node] = it
	return true
}

func (pq *PQ) DecreaseKey(node uint64, dist float64) bool {
	it, ok := pq.indexOf[node]
	if !ok || dist >= it.dist {
		return false
	}
	it.dist = dist
	heap.Fix(&pq.h, it.index)
	return true
}

func (pq *PQ) Pop() (node uint64, dist float64, ok bool) {
	if pq.h.Len() == 0 {
		return 0, 0, false
	}
	it := heap.Pop(&pq.h).(*item)
	delete(pq.indexOf, it.node)
	return it.node, it.dist, true
}
