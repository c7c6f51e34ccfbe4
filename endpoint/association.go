// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/sctp"
	"github.com/pion/sctpsock/socket"
)

type outbound struct {
	data      []byte
	stream    uint16
	ppi       sctp.PayloadProtocolIdentifier
	unordered bool
	shutdown  bool
	done      func(error)
}

// Association drives one pion/sctp association and turns its activity into
// socket notifications. Notifications are buffered until Subscribe and then
// delivered in order from a single goroutine.
type Association struct {
	ep     *Endpoint
	log    logging.LeveledLogger
	conn   *peerConn
	remote socket.Addr

	mu       sync.Mutex
	sctp     *sctp.Association
	streams  map[uint16]*sctp.Stream
	pending  map[uint16][][]byte
	params   socket.Params
	outbox   []outbound
	notes    []socket.Notification
	sink     func(socket.Notification)
	closing  bool
	aborted  bool
	rejected bool
	abortMsg string
	draining bool
	finished bool

	// readers counts the stream read loops still running.
	readers sync.WaitGroup

	outWake  chan struct{}
	noteWake chan struct{}
	done     chan struct{}

	// stopped is closed when the notification goroutine returns.
	stopped chan struct{}
}

func newAssociation(ep *Endpoint, conn *peerConn) *Association {
	a := &Association{
		ep:       ep,
		log:      ep.log,
		conn:     conn,
		remote:   toSocketAddr(conn.remote),
		streams:  map[uint16]*sctp.Stream{},
		pending:  map[uint16][][]byte{},
		params:   socket.Params{},
		outWake:  make(chan struct{}, 1),
		noteWake: make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go a.notifyLoop()

	return a
}

func (a *Association) config() sctp.Config {
	return sctp.Config{
		NetConn:              a.conn,
		LoggerFactory:        a.ep.cfg.LoggerFactory,
		MaxReceiveBufferSize: a.ep.cfg.MaxReceiveBufferSize,
		MaxMessageSize:       a.ep.cfg.MaxMessageSize,
	}
}

func (a *Association) dial() {
	sa, err := sctp.Client(a.config())
	a.established(sa, err)
}

func (a *Association) serve() {
	sa, err := sctp.Server(a.config())
	if !a.established(sa, err) {
		return
	}
	a.ep.handOff(a)
}

// established records the handshake outcome and starts the stream loops.
func (a *Association) established(sa *sctp.Association, err error) bool {
	a.mu.Lock()
	if err == nil && a.aborted {
		a.mu.Unlock()
		a.log.Debugf("handshake with %s completed after abort", a.remote)
		a.abortEstablished(sa, "aborted during handshake")
		a.failed(errAssociationClosed)
		return false
	}
	if err != nil {
		a.mu.Unlock()
		a.log.Debugf("handshake with %s failed: %v", a.remote, err)
		a.failed(err)
		return false
	}
	a.sctp = sa
	a.mu.Unlock()

	a.log.Debugf("association with %s established", a.remote)
	a.notify(socket.CommUp{})
	a.wakeWriter()
	go a.writeLoop(sa)
	go a.acceptLoop(sa)

	return true
}

// failed ends an association that never came up.
func (a *Association) failed(err error) {
	a.mu.Lock()
	queued := a.outbox
	a.outbox = nil
	a.mu.Unlock()

	for _, out := range queued {
		out.done(err)
	}
	_ = a.conn.Close()
	a.finish(socket.CommLost{Event: socket.EventCantStrAssoc, Reason: err.Error()})
}

// Send queues data for the writer goroutine. Recognized parameters are
// stream, protocol and unordered; the rest are ignored.
func (a *Association) Send(data []byte, params socket.Params, done func(error)) {
	out := outboundFrom(data, params, done)

	a.mu.Lock()
	var err error
	switch {
	case a.finished || a.aborted:
		err = errAssociationClosed
	case a.closing:
		err = errShuttingDown
	}
	if err != nil {
		a.mu.Unlock()
		done(err)
		return
	}
	a.outbox = append(a.outbox, out)
	a.mu.Unlock()

	a.wakeWriter()
}

func outboundFrom(data []byte, params socket.Params, done func(error)) outbound {
	out := outbound{
		data: data,
		ppi:  sctp.PayloadTypeWebRTCBinary,
		done: done,
	}
	if stream, ok := params.Uint16(socket.ParamStream); ok {
		out.stream = stream
	}
	if ppi, ok := params.Uint32(socket.ParamProtocol); ok {
		out.ppi = sctp.PayloadProtocolIdentifier(ppi)
	}
	out.unordered, _ = params.Bool(socket.ParamUnordered)

	// pion/sctp cannot carry empty user data; mark it with the empty PPIDs.
	if len(out.data) == 0 {
		out.data = []byte{0}
		if out.ppi == sctp.PayloadTypeWebRTCString {
			out.ppi = sctp.PayloadTypeWebRTCStringEmpty
		} else {
			out.ppi = sctp.PayloadTypeWebRTCBinaryEmpty
		}
	}

	return out
}

func isEmptyPayload(ppi sctp.PayloadProtocolIdentifier) bool {
	return ppi == sctp.PayloadTypeWebRTCBinaryEmpty || ppi == sctp.PayloadTypeWebRTCStringEmpty
}

// Receive pops the oldest message received on streamID.
func (a *Association) Receive(streamID uint16) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	queue := a.pending[streamID]
	if len(queue) == 0 {
		return nil
	}
	msg := queue[0]
	queue[0] = nil
	if len(queue) == 1 {
		delete(a.pending, streamID)
	} else {
		a.pending[streamID] = queue[1:]
	}

	return msg
}

// Shutdown starts the graceful shutdown once every queued message was handed
// to pion/sctp. done is called before the shutdown-complete notification.
func (a *Association) Shutdown(done func(error)) {
	a.mu.Lock()
	var err error
	switch {
	case a.finished || a.aborted:
		err = errAssociationClosed
	case a.closing:
		err = errShuttingDown
	}
	if err != nil {
		a.mu.Unlock()
		done(err)
		return
	}
	a.closing = true
	a.outbox = append(a.outbox, outbound{shutdown: true, done: done})
	a.mu.Unlock()

	a.wakeWriter()
}

// Abort sends an ABORT carrying reason and tears the association down. It
// waits at most AbortTimeout for the chunk to be written.
func (a *Association) Abort(reason error) error {
	msg := "aborted"
	if reason != nil {
		msg = reason.Error()
	}

	a.mu.Lock()
	if a.aborted || a.finished {
		a.mu.Unlock()
		return nil
	}
	a.aborted = true
	a.rejected = errors.Is(reason, socket.ErrPeerRejected) || errors.Is(reason, errNoListener)
	a.abortMsg = msg
	sa := a.sctp
	a.mu.Unlock()

	if sa == nil {
		// Still handshaking: closing the conn fails the handshake.
		return a.conn.Close()
	}
	a.abortEstablished(sa, msg)

	return nil
}

func (a *Association) abortEstablished(sa *sctp.Association, msg string) {
	written := make(chan struct{})
	go func() {
		sa.Abort(msg)
		close(written)
	}()

	timer := time.NewTimer(a.ep.cfg.AbortTimeout)
	defer timer.Stop()
	select {
	case <-written:
	case <-timer.C:
		a.log.Warnf("abort of %s timed out, closing", a.remote)
	}
	_ = a.conn.Close()
}

// Configure stores peer parameters such as hb_interval. pion/sctp has no knob
// for them, so they are kept for inspection only.
func (a *Association) Configure(p socket.Params) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.params.Merge(p)
}

// Params returns a copy of the configured peer parameters.
func (a *Association) Params() socket.Params {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.params.Clone()
}

// RemoteAddr returns the peer address.
func (a *Association) RemoteAddr() socket.Addr {
	return a.remote
}

// Subscribe sets the notification sink and flushes what was buffered.
func (a *Association) Subscribe(fn func(socket.Notification)) {
	a.mu.Lock()
	a.sink = fn
	a.mu.Unlock()

	wake(a.noteWake)
}

func (a *Association) bytes() (uint64, uint64) {
	a.mu.Lock()
	sa := a.sctp
	a.mu.Unlock()
	if sa == nil {
		return 0, 0
	}

	return sa.BytesSent(), sa.BytesReceived()
}

func (a *Association) notify(n socket.Notification) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	a.notes = append(a.notes, n)
	a.mu.Unlock()

	wake(a.noteWake)
}

// finish queues the terminal notification. Later notifications are dropped.
func (a *Association) finish(n socket.Notification) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	a.notes = append(a.notes, n)
	a.finished = true
	close(a.done)
	a.mu.Unlock()

	a.ep.forgetAssociation(a)
	_ = a.conn.Close()
	wake(a.noteWake)
}

func (a *Association) notifyLoop() {
	defer close(a.stopped)

	epDone := a.ep.done
	for {
		select {
		case <-a.noteWake:
		case <-epDone:
			epDone = nil
		}

		a.mu.Lock()
		sink, finished, rejected := a.sink, a.finished, a.rejected
		var batch []socket.Notification
		if sink != nil {
			batch, a.notes = a.notes, nil
		}
		a.mu.Unlock()

		for _, n := range batch {
			sink(n)
		}
		// Without a subscriber the goroutine lives until the endpoint goes,
		// unless a listener rejected the association: nobody subscribes then.
		if finished && (sink != nil || epDone == nil || rejected) {
			return
		}
	}
}

func (a *Association) wakeWriter() {
	wake(a.outWake)
}

func (a *Association) writeLoop(sa *sctp.Association) {
	for {
		a.mu.Lock()
		batch := a.outbox
		a.outbox = nil
		a.mu.Unlock()

		for i, out := range batch {
			if out.shutdown {
				a.shutdown(sa, out.done)
				failAll(batch[i+1:], errShuttingDown)
				return
			}
			out.done(a.write(sa, out))
		}

		select {
		case <-a.outWake:
		case <-a.done:
			a.mu.Lock()
			rest := a.outbox
			a.outbox = nil
			a.mu.Unlock()
			failAll(rest, errAssociationClosed)
			return
		}
	}
}

func failAll(batch []outbound, err error) {
	for _, out := range batch {
		out.done(err)
	}
}

func (a *Association) write(sa *sctp.Association, out outbound) error {
	stream, err := a.stream(sa, out.stream, out.ppi)
	if err != nil {
		return err
	}
	stream.SetReliabilityParams(out.unordered, sctp.ReliabilityTypeReliable, 0)
	_, err = stream.WriteSCTP(out.data, out.ppi)

	return err
}

func (a *Association) stream(sa *sctp.Association, id uint16, ppi sctp.PayloadProtocolIdentifier) (*sctp.Stream, error) {
	a.mu.Lock()
	s, ok := a.streams[id]
	a.mu.Unlock()
	if ok {
		return s, nil
	}

	s, err := sa.OpenStream(id, ppi)
	if err != nil {
		return nil, err
	}

	return a.track(s), nil
}

func (a *Association) shutdown(sa *sctp.Association, done func(error)) {
	ctx, cancel := context.WithTimeout(context.Background(), a.ep.cfg.ShutdownTimeout)
	defer cancel()

	if err := sa.Shutdown(ctx); err != nil {
		a.log.Debugf("shutdown of %s failed: %v", a.remote, err)
		done(err)
		a.finish(socket.CommLost{Event: socket.EventCommLost, Reason: err.Error()})
		return
	}
	done(nil)
	a.drainReaders()
	a.finish(socket.ShutdownComplete{})
}

// drainReaders waits until every stream reader handed its queued messages to
// the socket. pion/sctp returns buffered messages before the close error, so
// the readers end once the association is closed. The wait is bounded by
// ShutdownTimeout.
func (a *Association) drainReaders() {
	a.mu.Lock()
	a.draining = true
	a.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		a.readers.Wait()
		close(drained)
	}()

	timer := time.NewTimer(a.ep.cfg.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		a.log.Warnf("stream readers of %s still running after shutdown", a.remote)
	}
}

// track starts a reader for s unless one runs already and returns the stream
// that is registered for its identifier.
func (a *Association) track(s *sctp.Stream) *sctp.Stream {
	id := s.StreamIdentifier()

	a.mu.Lock()
	if existing, ok := a.streams[id]; ok {
		a.mu.Unlock()
		return existing
	}
	a.streams[id] = s
	if a.draining {
		a.mu.Unlock()
		return s
	}
	a.readers.Add(1)
	a.mu.Unlock()

	go a.readLoop(s)

	return s
}

func (a *Association) acceptLoop(sa *sctp.Association) {
	for {
		s, err := sa.AcceptStream()
		if err != nil {
			a.closed(err)
			return
		}
		a.track(s)
	}
}

func (a *Association) readLoop(s *sctp.Stream) {
	defer a.readers.Done()

	id := s.StreamIdentifier()
	buf := make([]byte, a.ep.cfg.readBufferSize())
	for {
		n, ppi, err := s.ReadSCTP(buf)
		if errors.Is(err, io.ErrShortBuffer) {
			a.truncated(id, len(buf))
			continue
		}
		if err != nil {
			a.readFailed(id, err)
			return
		}

		msg := make([]byte, n)
		copy(msg, buf[:n])
		if isEmptyPayload(ppi) {
			msg = msg[:0]
		}

		a.mu.Lock()
		a.pending[id] = append(a.pending[id], msg)
		a.mu.Unlock()
		a.notify(socket.DataArrived{StreamID: id})
	}
}

// truncated reports a message larger than the read buffer. pion/sctp has
// already discarded it.
func (a *Association) truncated(id uint16, limit int) {
	a.log.Warnf("stream %d: message over %d bytes dropped", id, limit)
	a.notify(socket.CommError{Err: fmt.Errorf("%w: stream %d, limit %d bytes", errMessageTooLarge, id, limit)})
}

// readFailed reports a stream read error unless it is part of the
// association going away.
func (a *Association) readFailed(id uint16, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || a.conn.peerAbort.Load() {
		return
	}
	a.mu.Lock()
	ending := a.closing || a.aborted || a.draining || a.finished
	a.mu.Unlock()
	if ending {
		return
	}

	a.log.Debugf("stream %d of %s: %v", id, a.remote, err)
	a.notify(socket.CommError{Err: fmt.Errorf("%w: stream %d: %w", errStreamRead, id, err)})
}

// closed maps the end of the pion/sctp association to a notification.
func (a *Association) closed(err error) {
	a.mu.Lock()
	aborted, abortMsg, closing := a.aborted, a.abortMsg, a.closing
	a.mu.Unlock()

	switch {
	case aborted:
		a.finish(socket.CommLost{Event: socket.EventCommLost, Reason: abortMsg})
	case a.conn.peerAbort.Load():
		a.finish(socket.CommLost{Event: socket.EventCommLost, Reason: "peer aborted"})
	case errors.Is(err, io.EOF):
		if !closing && !a.conn.peerShutdown.Load() {
			a.log.Debugf("association with %s closed without a shutdown chunk", a.remote)
		}
		a.drainReaders()
		a.finish(socket.ShutdownComplete{})
	default:
		a.finish(socket.CommLost{Event: socket.EventCommLost, Reason: err.Error()})
	}
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
