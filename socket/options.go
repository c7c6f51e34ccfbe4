// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import (
	"fmt"
	"strings"
)

const (
	// DefaultHost is used when ConnectOptions.Host is empty.
	DefaultHost = "127.0.0.1"

	maxPort = 65535
)

// AcceptFunc decides whether an inbound association may bind to a listening
// socket. expected holds the peer named in ConnectOptions.
type AcceptFunc func(expected Addr, assoc Association) bool

// MatchPeer accepts an association only when its remote address and port equal
// the expected peer.
func MatchPeer(expected Addr, assoc Association) bool {
	remote := assoc.RemoteAddr()

	return remote.Port == expected.Port && remote.IP == expected.IP
}

// AcceptAny accepts the first inbound association regardless of its peer.
func AcceptAny(Addr, Association) bool {
	return true
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	// Host is the remote address. In listen mode it is the expected peer.
	Host string
	// Port is the remote port. In listen mode it is the expected peer port.
	Port int
	// LocalAddress lists local addresses to bind; only IPv4 literals are kept.
	LocalAddress []string
	// LocalPort is the local port, 0 picks an ephemeral one.
	LocalPort int
	// MIS and OS are the requested inbound and outbound stream counts.
	MIS uint16
	OS  uint16
	// Listen selects passive mode.
	Listen bool
	// Accept filters inbound associations in passive mode. Defaults to MatchPeer.
	Accept AcceptFunc
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Accept == nil {
		o.Accept = MatchPeer
	}

	return o
}

func (o ConnectOptions) validate() error {
	if o.Port == 0 {
		return ErrMissingPort
	}
	if o.Port < 0 || o.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, o.Port)
	}
	if o.LocalPort < 0 || o.LocalPort > maxPort {
		return fmt.Errorf("%w: local %d", ErrInvalidPort, o.LocalPort)
	}

	return nil
}

func (o ConnectOptions) peer() Addr {
	return NewAddr(o.Host, o.Port)
}

// ParseConnectOptions builds ConnectOptions from a loosely typed map such as a
// decoded YAML document. Numbers may be given as strings.
func ParseConnectOptions(raw any) (*ConnectOptions, error) {
	if raw == nil {
		return nil, ErrMissingOptions
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidOptions, raw)
	}

	p := Params(values)
	opts := &ConnectOptions{}
	if _, set := values["port"]; set {
		port, ok := toInt64(values["port"])
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPort, values["port"])
		}
		opts.Port = int(port)
	}
	if _, set := values["localPort"]; set {
		port, ok := toInt64(values["localPort"])
		if !ok {
			return nil, fmt.Errorf("%w: local %v", ErrInvalidPort, values["localPort"])
		}
		opts.LocalPort = int(port)
	}
	if host, ok := values["host"].(string); ok {
		opts.Host = strings.TrimSpace(host)
	}
	opts.LocalAddress = stringList(values["localAddress"])
	opts.MIS, _ = p.Uint16("MIS")
	opts.OS, _ = p.Uint16("OS")
	opts.Listen, _ = p.Bool("listen")

	return opts, nil
}

func stringList(v any) []string {
	switch list := v.(type) {
	case string:
		return []string{list}
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
