// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package endpoint

import "errors"

var (
	errBind              = errors.New("endpoint: bind failed")
	errClosed            = errors.New("endpoint: closed")
	errPeerExists        = errors.New("endpoint: association to peer already exists")
	errAssociationClosed = errors.New("endpoint: association closed")
	errShuttingDown      = errors.New("endpoint: association is shutting down")
	errNoListener        = errors.New("endpoint: no listener for inbound association")
	errDestroyed         = errors.New("endpoint: destroyed")
	errMessageTooLarge   = errors.New("endpoint: inbound message exceeds read buffer")
	errStreamRead        = errors.New("endpoint: stream read failed")
)
