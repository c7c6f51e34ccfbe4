// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

// CloseInfo describes why a socket closed without a graceful shutdown.
type CloseInfo struct {
	// Event and Reason come from the communication-lost notification.
	Event  LostEvent
	Reason string
	// Aborted is set when the socket itself was destroyed.
	Aborted bool
	// Err is the reason passed to Destroy, if any.
	Err error
}

type connectHandler struct {
	fn   func()
	once bool
}

type handlers struct {
	connect []connectHandler
	data    []func([]byte)
	end     []func()
	close   []func(CloseInfo)
	err     []func(error)
}

// OnConnect registers fn for the connect event.
func (s *Socket) OnConnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers.connect = append(s.handlers.connect, connectHandler{fn: fn})
}

// OnData registers fn for inbound messages. Once a data handler exists the
// socket is in flowing mode and messages are no longer queued for Read.
func (s *Socket) OnData(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers.data = append(s.handlers.data, fn)
}

// OnEnd registers fn for the end event, raised after a graceful shutdown.
func (s *Socket) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers.end = append(s.handlers.end, fn)
}

// OnClose registers fn for the close event, raised when the association is
// lost or the socket is destroyed.
func (s *Socket) OnClose(fn func(CloseInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers.close = append(s.handlers.close, fn)
}

// OnError registers fn for asynchronous errors.
func (s *Socket) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers.err = append(s.handlers.err, fn)
}

// takeConnect returns the connect handlers and drops the once-only ones.
// Caller holds s.mu.
func (h *handlers) takeConnect() []func() {
	fns := make([]func(), 0, len(h.connect))
	kept := h.connect[:0]
	for _, c := range h.connect {
		fns = append(fns, c.fn)
		if !c.once {
			kept = append(kept, c)
		}
	}
	h.connect = kept

	return fns
}
