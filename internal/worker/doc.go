// Package worker implements the receiving side of the sort protocol.
//
// A Server listens on a TCP port and hands every accepted connection to its
// own session goroutine. A session reads a stream of messages:
//
//	SortRequest     sort the payload with the parallel chunk sorter and
//	                answer with a SortResponse of the same length
//	ShutdownNotice  close this connection
//	end of stream   close this connection
//	anything else   log and close this connection
//
// None of these stop the listener. A ShutdownNotice only ends the session
// that received it; the server keeps accepting until Close is called or the
// context passed to Serve is cancelled. Worker processes keep no state
// between requests beyond counters exposed through Stats.
package worker
