// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import (
	"errors"
	"slices"
	"sync"

	"github.com/pion/logging"
)

var errFakeAbort = errors.New("fake: abort failed")

type sendCall struct {
	data   []byte
	params Params
}

type fakeAssociation struct {
	mu         sync.Mutex
	remote     Addr
	sink       func(Notification)
	sends      []sendCall
	sendErr    error
	pending    map[uint16][][]byte
	shutdowns  int
	aborts     []error
	abortErr   error
	configured []Params
}

func newFakeAssociation(ip string, port int) *fakeAssociation {
	return &fakeAssociation{
		remote:  NewAddr(ip, port),
		pending: map[uint16][][]byte{},
	}
}

func (a *fakeAssociation) Send(data []byte, params Params, done func(error)) {
	a.mu.Lock()
	a.sends = append(a.sends, sendCall{data: data, params: params})
	err := a.sendErr
	a.mu.Unlock()
	done(err)
}

func (a *fakeAssociation) Receive(streamID uint16) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	queue := a.pending[streamID]
	if len(queue) == 0 {
		return nil
	}
	a.pending[streamID] = queue[1:]

	return queue[0]
}

func (a *fakeAssociation) Shutdown(done func(error)) {
	a.mu.Lock()
	a.shutdowns++
	a.mu.Unlock()
	done(nil)
}

func (a *fakeAssociation) Abort(reason error) error {
	a.mu.Lock()
	a.aborts = append(a.aborts, reason)
	err := a.abortErr
	a.mu.Unlock()

	return err
}

func (a *fakeAssociation) Configure(p Params) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.configured = append(a.configured, p)
}

func (a *fakeAssociation) RemoteAddr() Addr {
	return a.remote
}

func (a *fakeAssociation) Subscribe(fn func(Notification)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sink = fn
}

// emit delivers n the way a real association would, from outside any lock.
func (a *fakeAssociation) emit(n Notification) {
	a.mu.Lock()
	sink := a.sink
	a.mu.Unlock()
	if sink != nil {
		sink(n)
	}
}

func (a *fakeAssociation) deliver(streamID uint16, msg []byte) {
	a.mu.Lock()
	a.pending[streamID] = append(a.pending[streamID], msg)
	a.mu.Unlock()
	a.emit(DataArrived{StreamID: streamID})
}

func (a *fakeAssociation) sendCalls() []sendCall {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]sendCall(nil), a.sends...)
}

func (a *fakeAssociation) abortCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.aborts)
}

type fakeEndpoint struct {
	mu         sync.Mutex
	local      Addr
	next       *fakeAssociation
	associated []AssociateOptions
	inbound    []func(Association)
	configured []Params
	destroyed  int
}

func (e *fakeEndpoint) Associate(opts AssociateOptions) (Association, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.associated = append(e.associated, opts)
	if e.next == nil {
		e.next = newFakeAssociation(opts.RemoteAddress, opts.RemotePort)
	}

	return e.next, nil
}

func (e *fakeEndpoint) OnAssociation(fn func(Association)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := len(e.inbound)
	e.inbound = append(e.inbound, fn)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.inbound[idx] = nil
	}
}

func (e *fakeEndpoint) Configure(p Params) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.configured = append(e.configured, p)
}

func (e *fakeEndpoint) LocalAddr() Addr {
	return e.local
}

func (e *fakeEndpoint) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.destroyed++

	return nil
}

// arrive hands assoc to every registered inbound handler.
func (e *fakeEndpoint) arrive(assoc Association) {
	e.mu.Lock()
	fns := slices.Clone(e.inbound)
	e.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(assoc)
		}
	}
}

func (e *fakeEndpoint) destroyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.destroyed
}

// fakeFactory counts allocations and hands out ep, or fails with err.
type fakeFactory struct {
	mu    sync.Mutex
	ep    *fakeEndpoint
	err   error
	calls []EndpointOptions
}

func (f *fakeFactory) open(opts EndpointOptions, _ logging.LeveledLogger) (Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}

	return f.ep, nil
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

type seen struct {
	connects int
	ends     int
	closes   []CloseInfo
	errs     []error
}

type recorder struct {
	mu   sync.Mutex
	seen seen
}

func record(s *Socket) *recorder {
	r := &recorder{}
	s.OnConnect(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen.connects++
	})
	s.OnEnd(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen.ends++
	})
	s.OnClose(func(info CloseInfo) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen.closes = append(r.seen.closes, info)
	})
	s.OnError(func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen.errs = append(r.seen.errs, err)
	})

	return r
}

func (r *recorder) snapshot() seen {
	r.mu.Lock()
	defer r.mu.Unlock()

	return seen{
		connects: r.seen.connects,
		ends:     r.seen.ends,
		closes:   append([]CloseInfo(nil), r.seen.closes...),
		errs:     append([]error(nil), r.seen.errs...),
	}
}

func newTestSocket(factory *fakeFactory) *Socket {
	return New(Config{
		EndpointFactory: factory.open,
		LoggerFactory:   logging.NewDefaultLoggerFactory(),
	})
}
