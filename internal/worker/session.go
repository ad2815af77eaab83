package worker

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dreamware/distsort/internal/protocol"
	"github.com/dreamware/distsort/internal/sorting"
	"github.com/dreamware/distsort/internal/tracer"
)

// state is the position of a session in its state machine:
//
//	AWAITING_MESSAGE -> PROCESSING_REQUEST -> AWAITING_MESSAGE
//	AWAITING_MESSAGE -> CLOSED
type state int

const (
	stateAwaiting state = iota
	stateProcessing
	stateClosed
)

func (st state) String() string {
	switch st {
	case stateAwaiting:
		return "AWAITING_MESSAGE"
	case stateProcessing:
		return "PROCESSING_REQUEST"
	case stateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// session owns one accepted connection from accept to close.
type session struct {
	srv   *Server
	nc    net.Conn
	conn  *protocol.Conn
	log   *slog.Logger
	id    uint64
	state state
}

func newSession(srv *Server, nc net.Conn) *session {
	id := srv.nextID.Add(1)
	conn := protocol.NewConn(nc)
	conn.MaxPayload = srv.opts.MaxPayload
	return &session{
		srv:  srv,
		nc:   nc,
		conn: conn,
		id:   id,
		log:  srv.log.With("conn", id, "remote", nc.RemoteAddr().String()),
	}
}

// run services messages until ShutdownNotice, end of stream or an error.
// Errors never leave the session.
func (s *session) run(ctx context.Context) {
	defer s.close()
	s.log.Debug("worker: connection accepted")

	for {
		msg, err := s.conn.Receive()
		if err != nil {
			s.fail(err)
			return
		}

		switch msg.Tag {
		case protocol.TagSortRequest:
			s.state = stateProcessing
			if err := s.handleSort(ctx, msg.Payload); err != nil {
				s.fail(err)
				return
			}
			s.state = stateAwaiting
		case protocol.TagShutdown:
			s.log.Info("worker: shutdown notice received")
			return
		default:
			s.fail(errors.Wrapf(protocol.ErrUnexpectedMessage, "%s from coordinator", msg.Tag))
			return
		}
	}
}

func (s *session) handleSort(ctx context.Context, payload []int8) (err error) {
	p := s.srv.parallelism()
	ctx, span := tracer.Start(ctx, "worker.sort", trace.WithAttributes(
		attribute.Int("elements", len(payload)),
		attribute.Int("parallelism", p),
	))
	defer func() {
		tracer.Fail(span, err)
		span.End()
	}()

	s.log.Info("worker: request received", "size", len(payload), "parallelism", p)
	start := time.Now()

	sorted, rep, err := sorting.SortChunks(payload, p)
	if err != nil {
		return errors.Wrap(err, "sort request")
	}
	elapsed := time.Since(start)
	s.srv.metrics.RequestDuration.Observe(elapsed.Seconds())
	s.srv.metrics.MergeRounds.Add(float64(rep.Rounds))

	// Counted before the reply so a client that has its response also
	// sees it in Stats.
	s.srv.stats.requests.Add(1)
	s.srv.stats.elements.Add(uint64(len(sorted)))
	s.srv.metrics.Requests.Inc()
	s.srv.metrics.ElementsSorted.Add(float64(len(sorted)))

	if err := s.conn.Send(protocol.SortResponse(sorted)); err != nil {
		return errors.Wrap(err, "send response")
	}
	s.log.Info("worker: response sent",
		"size", len(sorted),
		"chunks", rep.Chunks,
		"rounds", rep.Rounds,
		"sort", rep.SortElapsed,
		"merge", rep.MergeElapsed,
		"elapsed", elapsed,
	)
	return nil
}

// fail logs why the session is closing. A clean end of stream, or a closed
// connection during server shutdown, is not an error.
func (s *session) fail(err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.log.Debug("worker: peer closed connection", "state", s.state)
	case s.srv.isClosed() && errors.Is(err, net.ErrClosed):
		s.log.Debug("worker: connection closed by server shutdown", "state", s.state)
	default:
		s.srv.stats.errors.Add(1)
		s.srv.metrics.RequestErrors.Inc()
		s.log.Warn("worker: closing connection", "state", s.state, "err", err)
	}
}

func (s *session) close() {
	s.state = stateClosed
	s.conn.Close()
	s.srv.untrack(s.nc)
	s.log.Debug("worker: connection closed", "state", s.state)
}
