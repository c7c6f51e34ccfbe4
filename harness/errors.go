// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import "errors"

var (
	errNoCases          = errors.New("harness: no cases specified")
	errUnknownCase      = errors.New("harness: unknown scenario case")
	errInvalidRepeat    = errors.New("harness: repeat must be >= 1")
	errInvalidTimeout   = errors.New("harness: timeout must be a valid duration")
	errNotConnected     = errors.New("harness: sockets did not connect")
	errUnexpectedClose  = errors.New("harness: socket closed before the transfer finished")
	errOutcomeTimeout   = errors.New("harness: lifecycle event not observed")
	errScenarioFailed   = errors.New("harness: scenario failed")
	errUnknownScenario  = errors.New("harness: unknown scenario kind")
	errEndpointNotBound = errors.New("harness: endpoint was not bound")
)
