package worker

import "sync/atomic"

// Stats is a point-in-time copy of the server counters.
type Stats struct {
	ConnectionsAccepted uint64 `json:"connections_accepted"` // Connections handed to a session
	ConnectionsClosed   uint64 `json:"connections_closed"`   // Sessions that reached CLOSED
	ConnectionErrors    uint64 `json:"connection_errors"`    // Sessions closed by an I/O or protocol error
	Requests            uint64 `json:"requests"`             // SortRequests answered
	ElementsSorted      uint64 `json:"elements_sorted"`      // Elements across answered requests
}

// Active returns the number of sessions still open.
func (s Stats) Active() uint64 {
	return s.ConnectionsAccepted - s.ConnectionsClosed
}

// counters is the live, lock-free form of Stats.
type counters struct {
	accepted atomic.Uint64
	closed   atomic.Uint64
	errors   atomic.Uint64
	requests atomic.Uint64
	elements atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		ConnectionsAccepted: c.accepted.Load(),
		ConnectionsClosed:   c.closed.Load(),
		ConnectionErrors:    c.errors.Load(),
		Requests:            c.requests.Load(),
		ElementsSorted:      c.elements.Load(),
	}
}
