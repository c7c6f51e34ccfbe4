// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import "errors"

var (
	// ErrMissingOptions is returned by Connect when no options are given.
	ErrMissingOptions = errors.New("socket: connect options are required")
	// ErrInvalidOptions is returned when loosely typed options cannot be parsed.
	ErrInvalidOptions = errors.New("socket: connect options must be a map")
	// ErrMissingPort is returned by Connect when no port is set.
	ErrMissingPort = errors.New("socket: port is required")
	// ErrInvalidPort is returned when the port is not a valid integer port.
	ErrInvalidPort = errors.New("socket: invalid port")
	// ErrNoEndpointFactory is returned when neither a factory nor a shared endpoint is configured.
	ErrNoEndpointFactory = errors.New("socket: no endpoint factory configured")
	// ErrEndpointUnavailable wraps endpoint allocation failures.
	ErrEndpointUnavailable = errors.New("socket: unable to bind endpoint")
	// ErrNoAssociation is passed to write callbacks when no association is bound.
	ErrNoAssociation = errors.New("socket: no association established")
	// ErrWriteAfterEnd is passed to write callbacks after End.
	ErrWriteAfterEnd = errors.New("socket: write after end")
	// ErrCommunication is the base of errors surfaced from communication-error notifications.
	ErrCommunication = errors.New("socket: communication error")
)

// ErrPeerRejected is the abort reason for inbound associations refused by a
// listening socket.
var ErrPeerRejected = errors.New("socket: peer rejected")
