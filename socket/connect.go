// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import "fmt"

// Connect binds the socket to a peer. Only the first call has an effect;
// later calls return nil without validating anything, even when the first one
// was rejected.
//
// Option errors are returned and leave the socket unbound. Failures to bind the endpoint or start the
// association are reported through OnError. onConnected, if non-nil, runs
// once on the connect event.
func (s *Socket) Connect(opts *ConnectOptions, onConnected func()) error {
	s.mu.Lock()
	if s.connectCalled || s.state != StateUnbound {
		s.mu.Unlock()
		return nil
	}
	s.connectCalled = true
	if opts == nil {
		s.mu.Unlock()
		return ErrMissingOptions
	}
	if err := opts.validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.factory == nil && s.shared == nil {
		s.mu.Unlock()
		return ErrNoEndpointFactory
	}

	resolved := opts.withDefaults()
	kept, dropped := filterIPv4(resolved.LocalAddress)
	resolved.LocalAddress = kept
	if len(dropped) > 0 {
		s.log.Debugf("ignoring non IPv4 local addresses %v", dropped)
	}
	s.pending = resolved
	if onConnected != nil {
		s.handlers.connect = append(s.handlers.connect, connectHandler{fn: onConnected, once: true})
	}
	run := s.step(event{in: inputConnect})
	s.mu.Unlock()

	for _, fn := range run {
		fn()
	}

	return nil
}

func (s *Socket) openEndpoint(opts ConnectOptions) (Endpoint, ownership, error) {
	if s.shared != nil {
		return s.shared, borrowed, nil
	}

	ep, err := s.factory(EndpointOptions{
		LocalAddress: opts.LocalAddress,
		LocalPort:    opts.LocalPort,
		MIS:          opts.MIS,
		OS:           opts.OS,
	}, s.log)
	if err != nil {
		return nil, owned, fmt.Errorf("%w: port %d: %w", ErrEndpointUnavailable, opts.LocalPort, err)
	}
	if ep == nil {
		return nil, owned, fmt.Errorf("%w: port %d", ErrEndpointUnavailable, opts.LocalPort)
	}

	return ep, owned, nil
}

func (s *Socket) acquire(opts ConnectOptions) {
	ep, own, err := s.openEndpoint(opts)
	if err != nil {
		s.dispatch(event{in: inputEndpointFailed, err: err})
		return
	}

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		s.releaseEffect(endpointHandle{ep: ep, own: own}, nil)()
		return
	}
	s.endpoint = endpointHandle{ep: ep, own: own}
	s.local = ep.LocalAddr()
	s.mu.Unlock()

	if opts.Listen {
		s.listen(ep, opts)
		return
	}

	assoc, err := ep.Associate(AssociateOptions{
		RemoteAddress: opts.Host,
		RemotePort:    opts.Port,
		MIS:           opts.MIS,
		OS:            opts.OS,
	})
	if err != nil {
		s.dispatch(event{in: inputEndpointFailed, err: fmt.Errorf("associate %s: %w", opts.peer(), err)})
		return
	}
	if !s.bind(assoc) {
		_ = assoc.Abort(ErrPeerRejected)
		return
	}
	assoc.Subscribe(s.notify)
}

func (s *Socket) listen(ep Endpoint, opts ConnectOptions) {
	cancel := ep.OnAssociation(func(assoc Association) {
		s.accept(opts, assoc)
	})

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		cancel()
		return
	}
	s.acceptCancel = cancel
	s.mu.Unlock()
}

// accept binds the first inbound association matching opts. Every other one
// is aborted; the endpoint keeps listening.
func (s *Socket) accept(opts ConnectOptions, assoc Association) {
	if s.State() != StateConnecting || !opts.Accept(opts.peer(), assoc) {
		s.reject(assoc)
		return
	}
	if !s.bind(assoc) {
		s.reject(assoc)
		return
	}

	s.dispatch(event{in: inputCommUp})
	assoc.Subscribe(s.notify)
}

func (s *Socket) reject(assoc Association) {
	s.log.Debugf("rejecting association from %s", assoc.RemoteAddr())
	if err := assoc.Abort(ErrPeerRejected); err != nil {
		s.log.Debugf("abort rejected association: %v", err)
	}
}

// bind attaches assoc unless the socket already has one or left connecting.
func (s *Socket) bind(assoc Association) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnecting || s.assoc != nil {
		return false
	}
	s.assoc = assoc
	s.remote = assoc.RemoteAddr()

	return true
}
