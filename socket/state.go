// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

// State is the lifecycle state of a Socket.
type State int

// Socket states.
const (
	StateUnbound State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateAborted
}

type input int

const (
	inputConnect input = iota
	inputEndpointFailed
	inputCommUp
	inputData
	inputEnd
	inputShutdownComplete
	inputCommLost
	inputCommError
	inputDestroy
)

func (i input) String() string {
	switch i {
	case inputConnect:
		return "connect"
	case inputEndpointFailed:
		return "endpoint-failed"
	case inputCommUp:
		return "comm-up"
	case inputData:
		return "data"
	case inputEnd:
		return "end"
	case inputShutdownComplete:
		return "shutdown-complete"
	case inputCommLost:
		return "comm-lost"
	case inputCommError:
		return "comm-error"
	case inputDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

type effect int

const (
	effectAcquireEndpoint effect = iota
	effectEmitConnect
	effectPush
	effectFinishEnd
	effectShutdown
	effectAbort
	effectReleaseEndpoint
	effectDetach
	effectEmitEnd
	effectEmitClose
	effectEmitError
)

// transition is the whole lifecycle of a Socket. It has no side effects; the
// caller runs the returned effects in order.
func transition(from State, in input) (State, []effect) {
	if from.Terminal() {
		return from, nil
	}

	switch in {
	case inputConnect:
		if from == StateUnbound {
			return StateConnecting, []effect{effectAcquireEndpoint}
		}
	case inputEndpointFailed:
		if from == StateConnecting {
			return StateClosed, []effect{effectReleaseEndpoint, effectEmitError}
		}
	case inputCommUp:
		if from == StateConnecting {
			return StateOpen, []effect{effectEmitConnect}
		}
	case inputData:
		if from != StateUnbound {
			return from, []effect{effectPush}
		}
	case inputEnd:
		switch from {
		case StateUnbound:
			return from, []effect{effectFinishEnd}
		case StateConnecting, StateOpen:
			return StateClosing, []effect{effectShutdown}
		}
	case inputShutdownComplete:
		if from != StateUnbound {
			return StateClosed, []effect{effectReleaseEndpoint, effectDetach, effectEmitEnd}
		}
	case inputCommLost:
		if from != StateUnbound {
			return StateClosed, []effect{effectReleaseEndpoint, effectDetach, effectEmitClose}
		}
	case inputCommError:
		return from, []effect{effectEmitError}
	case inputDestroy:
		return StateAborted, []effect{effectAbort, effectReleaseEndpoint, effectDetach, effectEmitClose}
	}

	return from, nil
}
