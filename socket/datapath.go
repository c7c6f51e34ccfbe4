// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import (
	"io"
	"slices"
)

// WriteAsync sends p as one message with the current default send parameters.
// done is called exactly once with the outcome. Nothing is queued when no
// association is bound.
func (s *Socket) WriteAsync(p []byte, done func(error)) {
	if done == nil {
		done = func(error) {}
	}

	s.mu.Lock()
	if s.writeEnded {
		s.mu.Unlock()
		done(ErrWriteAfterEnd)
		return
	}
	assoc := s.assoc
	if assoc == nil {
		s.mu.Unlock()
		done(ErrNoAssociation)
		return
	}
	params := s.sendDefaults.Clone()
	size := len(p)
	s.stats.BufferSize += size
	s.mu.Unlock()

	data := make([]byte, size)
	copy(data, p)
	assoc.Send(data, params, func(err error) {
		s.mu.Lock()
		s.stats.BufferSize -= size
		if err == nil {
			s.stats.BytesWritten += uint64(size)
		}
		s.mu.Unlock()
		done(err)
	})
}

// Write sends p as one message and waits for the association to take it.
func (s *Socket) Write(p []byte) (int, error) {
	result := make(chan error, 1)
	s.WriteAsync(p, func(err error) {
		result <- err
	})
	if err := <-result; err != nil {
		return 0, err
	}

	return len(p), nil
}

// push moves one pending message from the association to the readable side.
func (s *Socket) push(assoc Association, streamID uint16) {
	if assoc == nil {
		return
	}
	msg := assoc.Receive(streamID)
	if msg == nil {
		return
	}

	s.mu.Lock()
	s.stats.BytesRead += uint64(len(msg))
	if len(s.handlers.data) == 0 {
		s.readQueue = append(s.readQueue, msg)
		s.readable.Broadcast()
		s.mu.Unlock()
		return
	}
	fns := slices.Clone(s.handlers.data)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

// Read copies the next queued message into p. A read never spans two
// messages; when p is too small the rest is returned by the next call.
// Read returns io.EOF once the socket is closed and the queue is empty.
func (s *Socket) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.waitReadable() {
		return 0, io.EOF
	}
	msg := s.readQueue[0]
	n := copy(p, msg)
	if n < len(msg) {
		s.readQueue[0] = msg[n:]
	} else {
		s.readQueue[0] = nil
		s.readQueue = s.readQueue[1:]
	}

	return n, nil
}

// ReadMessage returns the next queued message whole.
func (s *Socket) ReadMessage() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.waitReadable() {
		return nil, io.EOF
	}
	msg := s.readQueue[0]
	s.readQueue[0] = nil
	s.readQueue = s.readQueue[1:]

	return msg, nil
}

// waitReadable blocks until a message is queued or the socket is done.
// Caller holds s.mu.
func (s *Socket) waitReadable() bool {
	for len(s.readQueue) == 0 && !s.readEOF {
		s.readable.Wait()
	}

	return len(s.readQueue) > 0
}

// End closes the write side and starts a graceful shutdown. done is called
// when the association finished its shutdown. Inbound data may still arrive
// until the end event.
func (s *Socket) End(done func(error)) {
	if done == nil {
		done = func(error) {}
	}

	s.mu.Lock()
	s.writeEnded = true
	s.mu.Unlock()

	s.dispatch(event{in: inputEnd, done: done})
}

// CloseWrite is End waiting for the shutdown to complete. It blocks for as
// long as the association takes.
func (s *Socket) CloseWrite() error {
	result := make(chan error, 1)
	s.End(func(err error) {
		result <- err
	})

	return <-result
}

// Destroy aborts the association without the shutdown handshake and closes
// the socket. It never fails: abort errors are only logged.
func (s *Socket) Destroy(reason error) error {
	s.mu.Lock()
	s.writeEnded = true
	s.mu.Unlock()

	s.dispatch(event{in: inputDestroy, err: reason})

	return nil
}

// Close is Destroy(nil).
func (s *Socket) Close() error {
	return s.Destroy(nil)
}
