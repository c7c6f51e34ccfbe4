// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    State
		in      input
		to      State
		effects []effect
	}{
		{"connect", StateUnbound, inputConnect, StateConnecting, []effect{effectAcquireEndpoint}},
		{"second connect", StateConnecting, inputConnect, StateConnecting, nil},
		{"connect when open", StateOpen, inputConnect, StateOpen, nil},
		{"endpoint failed", StateConnecting, inputEndpointFailed, StateClosed, []effect{effectReleaseEndpoint, effectEmitError}},
		{"comm up", StateConnecting, inputCommUp, StateOpen, []effect{effectEmitConnect}},
		{"duplicate comm up", StateOpen, inputCommUp, StateOpen, nil},
		{"data while unbound", StateUnbound, inputData, StateUnbound, nil},
		{"data while open", StateOpen, inputData, StateOpen, []effect{effectPush}},
		{"data while closing", StateClosing, inputData, StateClosing, []effect{effectPush}},
		{"end while unbound", StateUnbound, inputEnd, StateUnbound, []effect{effectFinishEnd}},
		{"end while connecting", StateConnecting, inputEnd, StateClosing, []effect{effectShutdown}},
		{"end while open", StateOpen, inputEnd, StateClosing, []effect{effectShutdown}},
		{"end while closing", StateClosing, inputEnd, StateClosing, nil},
		{
			"shutdown complete", StateClosing, inputShutdownComplete, StateClosed,
			[]effect{effectReleaseEndpoint, effectDetach, effectEmitEnd},
		},
		{"shutdown complete while unbound", StateUnbound, inputShutdownComplete, StateUnbound, nil},
		{
			"comm lost", StateOpen, inputCommLost, StateClosed,
			[]effect{effectReleaseEndpoint, effectDetach, effectEmitClose},
		},
		{"comm error", StateOpen, inputCommError, StateOpen, []effect{effectEmitError}},
		{
			"destroy unbound", StateUnbound, inputDestroy, StateAborted,
			[]effect{effectAbort, effectReleaseEndpoint, effectDetach, effectEmitClose},
		},
		{
			"destroy open", StateOpen, inputDestroy, StateAborted,
			[]effect{effectAbort, effectReleaseEndpoint, effectDetach, effectEmitClose},
		},
		{"destroy closed", StateClosed, inputDestroy, StateClosed, nil},
		{"comm lost after abort", StateAborted, inputCommLost, StateAborted, nil},
		{"data after close", StateClosed, inputData, StateClosed, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			to, effects := transition(tc.from, tc.in)
			require.Equal(t, tc.to, to)
			require.Equal(t, tc.effects, effects)
		})
	}
}

func TestTerminalStatesAbsorbEveryInput(t *testing.T) {
	t.Parallel()

	for _, from := range []State{StateClosed, StateAborted} {
		for in := inputConnect; in <= inputDestroy; in++ {
			to, effects := transition(from, in)
			require.Equal(t, from, to, "%s on %s", from, in)
			require.Empty(t, effects, "%s on %s", from, in)
		}
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "aborted", StateAborted.String())
	require.Equal(t, "unknown", State(42).String())
	require.True(t, StateClosed.Terminal())
	require.False(t, StateClosing.Terminal())
}
