// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/sctpsock/endpoint"
	"github.com/pion/sctpsock/socket"
	"github.com/pion/transport/v3/vnet"
	"go.uber.org/multierr"
)

const (
	routerCIDR   = "10.0.0.0/24"
	listenerIP   = "10.0.0.2"
	listenerPort = 5000
	dialerIP     = "10.0.0.1"
	dialerPort   = 5001
	listenerAddr = "10.0.0.2:5000"
	// rejectPort is a port the dialer never uses.
	rejectPort = 6000
)

// outcome is the observed state of a socket when a scenario ends.
type outcome string

const (
	outcomeAny       outcome = ""
	outcomeWaiting   outcome = "waiting"
	outcomeConnected outcome = "connected"
	outcomeEnded     outcome = "ended"
	outcomeLost      outcome = "lost"
	outcomeAborted   outcome = "aborted"
)

// peer is one socket of a session and the events it raised.
type peer struct {
	name string
	sock *socket.Socket
	ep   atomic.Pointer[endpoint.Endpoint]

	connected chan struct{}
	ended     chan struct{}
	closed    chan struct{}

	mu        sync.Mutex
	closeInfo socket.CloseInfo
	errs      []error
}

func newPeer(name string, cfg endpoint.Config, lf logging.LoggerFactory) *peer {
	p := &peer{
		name:      name,
		connected: make(chan struct{}),
		ended:     make(chan struct{}),
		closed:    make(chan struct{}),
	}
	p.sock = socket.New(socket.Config{
		EndpointFactory: func(opts socket.EndpointOptions, _ logging.LeveledLogger) (socket.Endpoint, error) {
			ep, err := endpoint.Initialize(cfg, opts)
			if err != nil {
				return nil, err
			}
			p.ep.Store(ep)

			return ep, nil
		},
		LoggerFactory: lf,
	})

	var connectOnce, endOnce, closeOnce sync.Once
	p.sock.OnConnect(func() {
		connectOnce.Do(func() { close(p.connected) })
	})
	p.sock.OnEnd(func() {
		endOnce.Do(func() { close(p.ended) })
	})
	p.sock.OnClose(func(info socket.CloseInfo) {
		closeOnce.Do(func() {
			p.mu.Lock()
			p.closeInfo = info
			p.mu.Unlock()
			close(p.closed)
		})
	})
	p.sock.OnError(func(err error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.errs = append(p.errs, err)
	})

	return p
}

// outcome reports the socket state and, for a lost association, the close
// event and reason.
func (p *peer) outcome() (outcome, string) {
	switch p.sock.State() {
	case socket.StateUnbound, socket.StateConnecting:
		return outcomeWaiting, ""
	case socket.StateOpen, socket.StateClosing:
		return outcomeConnected, ""
	case socket.StateAborted:
		return outcomeAborted, ""
	case socket.StateClosed:
	}
	if fired(p.ended) {
		return outcomeEnded, ""
	}
	if !fired(p.closed) {
		// Closed but the handlers have not run yet.
		return outcomeLost, ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return outcomeLost, fmt.Sprintf("%s: %s", p.closeInfo.Event, p.closeInfo.Reason)
}

func (p *peer) firstError() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.errs) == 0 {
		return nil
	}

	return p.errs[0]
}

func (p *peer) endpointStats() endpoint.Stats {
	ep := p.ep.Load()
	if ep == nil {
		return endpoint.Stats{}
	}

	return ep.Stats()
}

func (p *peer) wait(ctx context.Context, ch <-chan struct{}, event string) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s %s: %w", errOutcomeTimeout, p.name, event, ctx.Err())
	}
}

func fired(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// session is a listener and a dialer socket joined by a virtual router.
type session struct {
	log       logging.LeveledLogger
	router    *vnet.Router
	validator *wireValidator
	faults    *faultInjector
	logger    *packetLogger
	listener  *peer
	dialer    *peer
}

func newSession(def caseDefinition, seed int64, logPath string, lf logging.LoggerFactory) (*session, error) {
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          routerCIDR,
		QueueSize:     4096,
		MinDelay:      def.Profile.MinDelay,
		MaxJitter:     def.Profile.MaxJitter,
		LoggerFactory: lf,
	})
	if err != nil {
		return nil, fmt.Errorf("harness: router: %w", err)
	}
	logger, err := newPacketLogger(logPath)
	if err != nil {
		return nil, err
	}

	sess := &session{
		log:       lf.NewLogger("harness"),
		router:    router,
		validator: newWireValidator(logger),
		logger:    logger,
	}
	if def.Fault != nil {
		if injector := newFaultInjector(*def.Fault); injector != nil {
			sess.faults = injector
			router.AddChunkFilter(injector.Filter)
		}
	}
	router.AddChunkFilter(sess.validator.Filter)
	if def.Profile.DropPercent > 0 {
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1))) //nolint:gosec // not cryptographic purpose
		router.AddChunkFilter(dropFilter(rng, def.Profile.DropPercent))
	}

	leftNet, err := vnet.NewNet(&vnet.NetConfig{StaticIP: dialerIP})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("harness: dialer net: %w", err), logger.Close())
	}
	rightNet, err := vnet.NewNet(&vnet.NetConfig{StaticIP: listenerIP})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("harness: listener net: %w", err), logger.Close())
	}
	if err := router.AddNet(leftNet); err != nil {
		return nil, multierr.Append(fmt.Errorf("harness: add dialer net: %w", err), logger.Close())
	}
	if err := router.AddNet(rightNet); err != nil {
		return nil, multierr.Append(fmt.Errorf("harness: add listener net: %w", err), logger.Close())
	}
	if err := router.Start(); err != nil {
		return nil, multierr.Append(fmt.Errorf("harness: start router: %w", err), logger.Close())
	}

	cfg := endpoint.DefaultConfig()
	cfg.LoggerFactory = lf
	cfg.MaxMessageSize = def.MaxMessageSize

	cfg.Net = rightNet
	sess.listener = newPeer("listener", cfg, lf)
	cfg.Net = leftNet
	sess.dialer = newPeer("dialer", cfg, lf)

	return sess, nil
}

// connect starts the listener, expecting the dialer on peerPort, then the
// dialer.
func (s *session) connect(peerPort int) error {
	err := s.listener.sock.Connect(&socket.ConnectOptions{
		Host:         dialerIP,
		Port:         peerPort,
		LocalAddress: []string{listenerIP},
		LocalPort:    listenerPort,
		Listen:       true,
	}, nil)
	if err != nil {
		return fmt.Errorf("harness: listener connect: %w", err)
	}
	if err := s.listener.firstError(); err != nil {
		return fmt.Errorf("harness: listener: %w", err)
	}

	err = s.dialer.sock.Connect(&socket.ConnectOptions{
		Host:         listenerIP,
		Port:         listenerPort,
		LocalAddress: []string{dialerIP},
		LocalPort:    dialerPort,
	}, nil)
	if err != nil {
		return fmt.Errorf("harness: dialer connect: %w", err)
	}
	if s.dialer.ep.Load() == nil {
		return fmt.Errorf("%w: %v", errEndpointNotBound, s.dialer.firstError())
	}

	return nil
}

func (s *session) waitConnected(ctx context.Context) error {
	for _, p := range []*peer{s.dialer, s.listener} {
		select {
		case <-p.connected:
		case <-p.closed:
			return fmt.Errorf("%w: %s closed", errNotConnected, p.name)
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", errNotConnected, p.name, ctx.Err())
		}
	}
	s.log.Debugf("connected %s <-> %s", s.dialer.sock.LocalAddr(), s.listener.sock.LocalAddr())

	return nil
}

// play runs the scenario of def once both sockets are set up.
func (s *session) play(ctx context.Context, def caseDefinition, messages int, payload []byte) (transfer, error) {
	peerPort := dialerPort
	if def.Scenario == scenarioReject {
		peerPort = rejectPort
	}
	if err := s.connect(peerPort); err != nil {
		return transfer{}, err
	}

	switch def.Scenario {
	case scenarioReject:
		return transfer{}, s.dialer.wait(ctx, s.dialer.closed, "close")
	case scenarioBurst, scenarioHandshake:
		if err := s.waitConnected(ctx); err != nil {
			return transfer{}, err
		}

		return s.burst(ctx, messages, messages, payload, def.Profile.Unordered)
	case scenarioGracefulClose:
		if err := s.waitConnected(ctx); err != nil {
			return transfer{}, err
		}
		tr, err := s.burst(ctx, messages, 0, payload, def.Profile.Unordered)
		if err != nil {
			return tr, err
		}
		if err := s.dialer.sock.CloseWrite(); err != nil {
			return tr, fmt.Errorf("harness: close write: %w", err)
		}

		return tr, multierr.Combine(
			s.dialer.wait(ctx, s.dialer.ended, "end"),
			s.listener.wait(ctx, s.listener.ended, "end"),
		)
	case scenarioPeerAbort:
		if err := s.waitConnected(ctx); err != nil {
			return transfer{}, err
		}
		tr, err := s.burst(ctx, messages, 0, payload, def.Profile.Unordered)
		if err != nil {
			return tr, err
		}
		_ = s.dialer.sock.Destroy(nil)

		return tr, s.listener.wait(ctx, s.listener.closed, "close")
	default:
		return transfer{}, fmt.Errorf("%w: %s", errUnknownScenario, def.Scenario)
	}
}

func (s *session) endpointStats() endpoint.Stats {
	var total endpoint.Stats
	for _, p := range []*peer{s.listener, s.dialer} {
		st := p.endpointStats()
		total.BytesSent += st.BytesSent
		total.BytesReceived += st.BytesReceived
		total.Dropped += st.Dropped
	}

	return total
}

// abort destroys both sockets, releasing every blocked reader.
func (s *session) abort() {
	_ = s.dialer.sock.Destroy(nil)
	_ = s.listener.sock.Destroy(nil)
}

func (s *session) close() error {
	s.abort()
	if err := s.router.Stop(); err != nil {
		s.log.Debugf("stop router: %v", err)
	}

	return s.logger.Close()
}

// scenarioRun is what one iteration of a case observed.
type scenarioRun struct {
	forward       int
	reverse       int
	listener      outcome
	dialer        outcome
	listenerClose string
	dialerClose   string
	metrics       resultMetrics
}

func runScenario(ctx context.Context, def caseDefinition, seed int64, logPath string, lf logging.LoggerFactory) (scenarioRun, error) {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1))) //nolint:gosec // not cryptographic purpose
	target := def.Messages
	if target <= 0 {
		target = minBurstPackets + rng.IntN(burstRange)
	}
	payload := newPayload(rng, def.PayloadSize)

	sess, err := newSession(def, seed, logPath, lf)
	if err != nil {
		return scenarioRun{}, err
	}
	stop := context.AfterFunc(ctx, sess.abort)

	startCPU := readCPUSeconds()
	startTime := time.Now()
	tr, err := sess.play(ctx, def, target, payload)
	duration := time.Since(startTime)
	cpu := readCPUSeconds() - startCPU
	stop()

	run := scenarioRun{forward: tr.forward.count, reverse: tr.reverse.count}
	run.listener, run.listenerClose = sess.listener.outcome()
	run.dialer, run.dialerClose = sess.dialer.outcome()
	stats := sess.endpointStats()
	err = multierr.Append(err, sess.close())

	run.metrics = buildMetrics(tr, stats, sess.validator.Summary(), duration, target)
	run.metrics.CPUSeconds = cpu
	run.metrics.FaultsInjected = sess.faults.Injected()

	if err != nil && isTimeoutErr(err) && def.Policy.MinForward > 0 && def.Policy.MinReverse > 0 {
		if run.forward >= def.Policy.MinForward && run.reverse >= def.Policy.MinReverse {
			err = nil
		}
	}

	return run, err
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
