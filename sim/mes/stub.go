package mes

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/traysim/traysim/sim/transport"
)

// StubServer is a minimal MES: it answers every action query with execute
// and every routing query with release to Next(station). The workpiece
// (order) id is the tray id.
type StubServer struct {
	// Next picks the routing target; nil alternates between stations 1 and 2.
	Next func(station uint32) uint32
	// Drop, if set, suppresses the answer to matching queries.
	Drop func(msgType uint32, q Query) bool
}

// Answer computes the reply to one frame. ok is false for frames that get no
// reply (unknown type, short body, dropped).
func (s *StubServer) Answer(f transport.Frame) (Response, bool) {
	if f.Type != MsgActionQuery && f.Type != MsgActionDoneQuery {
		return Response{}, false
	}
	var q Query
	if err := q.UnmarshalBinary(f.Body); err != nil {
		logrus.WithError(err).Warn("mes-stub: bad query")
		return Response{}, false
	}
	if s.Drop != nil && s.Drop(f.Type, q) {
		return Response{}, false
	}
	r := Response{Station: q.Station, Tray: q.Tray, Order: q.Tray}
	if f.Type == MsgActionQuery {
		r.Action = ActionExecute
		return r, true
	}
	r.Action = ActionRelease
	r.NextStation = s.next(q.Station)
	return r, true
}

func (s *StubServer) next(station uint32) uint32 {
	if s.Next != nil {
		return s.Next(station)
	}
	if station == 1 {
		return 2
	}
	return 1
}

// Serve accepts connections on ln until ctx is done.
func (s *StubServer) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logrus.Infof("mes-stub: client %s connected", conn.RemoteAddr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ServeConn(ctx, transport.Wrap(conn)); err != nil {
				logrus.WithError(err).Warn("mes-stub: connection closed")
			}
		}()
	}
}

// ServeConn answers queries on one connection until it closes or ctx is done.
func (s *StubServer) ServeConn(ctx context.Context, c *transport.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()
	defer c.Close()
	for {
		f, err := c.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) ||
				errors.Is(err, transport.ErrNotConnected) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		r, ok := s.Answer(f)
		if !ok {
			continue
		}
		if err := c.Send(ResponseFrame(r)); err != nil {
			return err
		}
	}
}
