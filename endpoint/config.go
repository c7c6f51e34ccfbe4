// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package endpoint implements socket.Endpoint and socket.Association on top of
// pion/sctp, carrying SCTP packets in UDP datagrams.
package endpoint

import (
	"fmt"
	"time"

	"github.com/pion/logging"
	"github.com/pion/sctpsock/socket"
	"github.com/pion/transport/v3"
	"github.com/pion/transport/v3/stdnet"
)

const (
	// DefaultShutdownTimeout bounds a graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second
	// DefaultAbortTimeout bounds the wait for an ABORT to be written.
	DefaultAbortTimeout = time.Second

	defaultPeerQueueSize = 1024
	// receiveMTU is the largest datagram read from the wire.
	receiveMTU = 8192
	// minReadBufferSize matches the pion/sctp default maximum message size.
	minReadBufferSize = 65536
)

// Config configures endpoints created by Initialize or NewFactory.
type Config struct {
	// Net provides the UDP socket. Defaults to the host network.
	Net           transport.Net
	LoggerFactory logging.LoggerFactory
	// MaxReceiveBufferSize and MaxMessageSize are passed to pion/sctp; zero
	// keeps its defaults.
	MaxReceiveBufferSize uint32
	MaxMessageSize       uint32
	ShutdownTimeout      time.Duration
	AbortTimeout         time.Duration
	// PeerQueueSize is the number of datagrams buffered per peer before
	// newer ones are dropped.
	PeerQueueSize int
}

// DefaultConfig returns a Config using the host network.
func DefaultConfig() Config {
	return Config{
		LoggerFactory:   logging.NewDefaultLoggerFactory(),
		ShutdownTimeout: DefaultShutdownTimeout,
		AbortTimeout:    DefaultAbortTimeout,
		PeerQueueSize:   defaultPeerQueueSize,
	}
}

func (c Config) withDefaults() (Config, error) {
	if c.Net == nil {
		n, err := stdnet.NewNet()
		if err != nil {
			return c, fmt.Errorf("endpoint: host network: %w", err)
		}
		c.Net = n
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.AbortTimeout <= 0 {
		c.AbortTimeout = DefaultAbortTimeout
	}
	if c.PeerQueueSize <= 0 {
		c.PeerQueueSize = defaultPeerQueueSize
	}

	return c, nil
}

func (c Config) readBufferSize() int {
	if int(c.MaxMessageSize) > minReadBufferSize {
		return int(c.MaxMessageSize)
	}

	return minReadBufferSize
}

// NewFactory returns a socket.EndpointFactory creating endpoints from cfg.
func NewFactory(cfg Config) socket.EndpointFactory {
	return func(opts socket.EndpointOptions, _ logging.LeveledLogger) (socket.Endpoint, error) {
		ep, err := Initialize(cfg, opts)
		if err != nil {
			return nil, err
		}

		return ep, nil
	}
}
