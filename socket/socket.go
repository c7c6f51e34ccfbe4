// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package socket adapts SCTP style associations to a byte-stream socket.
//
// A Socket is bound at most once, either by dialing a peer or by accepting
// one inbound association on a listening endpoint. Association notifications
// drive a small lifecycle state machine whose effects become socket events
// (connect, data, end, close, error).
package socket

import (
	"fmt"
	"sync"

	"github.com/pion/logging"
)

type ownership int

const (
	borrowed ownership = iota
	owned
)

// endpointHandle records whether the socket must destroy the endpoint when it
// is done with it.
type endpointHandle struct {
	ep  Endpoint
	own ownership
}

// Config configures a Socket.
type Config struct {
	// EndpointFactory allocates an endpoint on Connect. The socket owns it.
	EndpointFactory EndpointFactory
	// SharedEndpoint is used instead of EndpointFactory. The socket never
	// destroys it.
	SharedEndpoint Endpoint
	// DefaultSendParams seeds the per-write parameters.
	DefaultSendParams Params
	LoggerFactory     logging.LoggerFactory
}

// Stats holds the socket counters.
type Stats struct {
	BytesRead    uint64
	BytesWritten uint64
	// BufferSize is the number of bytes handed to the association whose send
	// has not completed yet.
	BufferSize int
}

// Socket is a byte-stream view of a single association.
type Socket struct {
	mu       sync.Mutex
	readable *sync.Cond

	log      logging.LeveledLogger
	factory  EndpointFactory
	shared   Endpoint
	handlers handlers

	state         State
	connectCalled bool
	pending       ConnectOptions
	endpoint      endpointHandle
	acceptCancel  func()
	assoc         Association
	local         Addr
	remote        Addr

	sendDefaults Params
	writeEnded   bool
	readQueue    [][]byte
	readEOF      bool
	stats        Stats
}

// New returns an unbound socket.
func New(cfg Config) *Socket {
	loggerFactory := cfg.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	s := &Socket{
		log:          loggerFactory.NewLogger("socket"),
		factory:      cfg.EndpointFactory,
		shared:       cfg.SharedEndpoint,
		sendDefaults: cfg.DefaultSendParams.Clone(),
	}
	s.readable = sync.NewCond(&s.mu)

	return s
}

// State returns the current lifecycle state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Connecting reports whether the socket waits for its association to come up.
func (s *Socket) Connecting() bool {
	return s.State() == StateConnecting
}

// Destroyed reports whether the socket reached a terminal state.
func (s *Socket) Destroyed() bool {
	return s.State().Terminal()
}

// Address returns the local address once an endpoint is bound.
func (s *Socket) Address() Addr {
	return s.LocalAddr()
}

// LocalAddr returns the local address once an endpoint is bound.
func (s *Socket) LocalAddr() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.local
}

// RemoteAddr returns the peer address once an association is bound.
func (s *Socket) RemoteAddr() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remote
}

// Stats returns a snapshot of the counters.
func (s *Socket) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

type event struct {
	in       input
	streamID uint16
	lost     CommLost
	err      error
	done     func(error)
}

func (s *Socket) dispatch(ev event) {
	s.mu.Lock()
	run := s.step(ev)
	s.mu.Unlock()

	for _, fn := range run {
		fn()
	}
}

// step applies ev to the state machine and returns the effects to run once
// s.mu is released. Caller holds s.mu.
func (s *Socket) step(ev event) []func() {
	from := s.state
	to, effects := transition(from, ev.in)
	s.state = to
	if from != to {
		s.log.Debugf("%s -> %s on %s", from, to, ev.in)
	}

	doneUsed := false
	run := make([]func(), 0, len(effects)+1)
	for _, eff := range effects {
		switch eff {
		case effectAcquireEndpoint:
			opts := s.pending
			run = append(run, func() { s.acquire(opts) })
		case effectEmitConnect:
			run = append(run, s.handlers.takeConnect()...)
		case effectPush:
			assoc, streamID := s.assoc, ev.streamID
			run = append(run, func() { s.push(assoc, streamID) })
		case effectFinishEnd:
			doneUsed = true
			done := ev.done
			run = append(run, func() { done(nil) })
		case effectShutdown:
			doneUsed = true
			run = append(run, s.shutdownEffect(s.assoc, ev.done))
		case effectAbort:
			run = append(run, s.abortEffect(s.assoc, ev.err))
		case effectReleaseEndpoint:
			run = append(run, s.releaseEffect(s.endpoint, s.acceptCancel))
			s.endpoint = endpointHandle{}
			s.acceptCancel = nil
		case effectDetach:
			s.assoc = nil
		case effectEmitEnd:
			run = append(run, s.handlers.end...)
		case effectEmitClose:
			info := CloseInfo{
				Event:   ev.lost.Event,
				Reason:  ev.lost.Reason,
				Aborted: ev.in == inputDestroy,
				Err:     ev.err,
			}
			for _, fn := range s.handlers.close {
				run = append(run, func() { fn(info) })
			}
		case effectEmitError:
			err := ev.err
			for _, fn := range s.handlers.err {
				run = append(run, func() { fn(err) })
			}
		}
	}
	if ev.done != nil && !doneUsed {
		done := ev.done
		run = append(run, func() { done(nil) })
	}
	if to.Terminal() && !s.readEOF {
		s.readEOF = true
		s.readable.Broadcast()
	}

	return run
}

func (s *Socket) shutdownEffect(assoc Association, done func(error)) func() {
	return func() {
		if assoc == nil {
			// Listening without a peer: nothing to shut down.
			done(nil)
			s.dispatch(event{in: inputShutdownComplete})
			return
		}
		assoc.Shutdown(done)
	}
}

func (s *Socket) abortEffect(assoc Association, reason error) func() {
	return func() {
		if assoc == nil {
			return
		}
		if err := assoc.Abort(reason); err != nil {
			s.log.Warnf("abort: %v", err)
		}
	}
}

func (s *Socket) releaseEffect(h endpointHandle, cancel func()) func() {
	return func() {
		if cancel != nil {
			cancel()
		}
		if h.ep == nil || h.own != owned {
			return
		}
		if err := h.ep.Destroy(); err != nil {
			s.log.Warnf("destroy endpoint: %v", err)
		}
	}
}

// notify is the sink handed to Association.Subscribe.
func (s *Socket) notify(n Notification) {
	switch n := n.(type) {
	case CommUp:
		s.dispatch(event{in: inputCommUp})
	case DataArrived:
		s.dispatch(event{in: inputData, streamID: n.StreamID})
	case ShutdownComplete:
		s.dispatch(event{in: inputShutdownComplete})
	case CommLost:
		s.dispatch(event{in: inputCommLost, lost: n})
	case CommError:
		err := ErrCommunication
		if n.Err != nil {
			err = fmt.Errorf("%w: %w", ErrCommunication, n.Err)
		}
		s.dispatch(event{in: inputCommError, err: err})
	}
}
