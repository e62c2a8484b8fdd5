package heat

import "fmt"

// ErrUnknownSession is returned when an incremental operation names a
// source dpid with no registered session.
type ErrUnknownSession uint64

func (e ErrUnknownSession) Error() string {
	return fmt.Sprintf("heat: no session rooted at %016X", uint64(e))
}

// ErrUnknownEdge is returned by ChangeEdgeDelay for an edge absent from
// the physical graph (§4.1 "Failure semantics": updates to non-existent
// edges are no-ops, surfaced here as an error the caller can ignore).
type ErrUnknownEdge struct{ A, B uint64 }

func (e ErrUnknownEdge) Error() string {
	return fmt.Sprintf("heat: no edge {%016X,%016X}", e.A, e.B)
}
