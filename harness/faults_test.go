// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFaultInjectorDisabled(t *testing.T) {
	t.Parallel()

	require.Nil(t, newFaultInjector(faultSpec{Mode: faultModeChecksum}))
	require.Nil(t, newFaultInjector(faultSpec{Every: 3}))

	var f *faultInjector
	require.Zero(t, f.Injected())
}

func TestFaultInjectorSkipsLifecycleChunks(t *testing.T) {
	t.Parallel()

	f := newFaultInjector(faultSpec{Mode: faultModeChecksum, Every: 1})
	for _, kind := range []byte{chunkInit, chunkInitAck, chunkAbort, chunkShutdown, chunkShutdownAck, chunkShutdownComplete} {
		pkt := buildSCTP(7, testChunk{kind: kind, body: make([]byte, 16)})
		f.apply(pkt)
		_, _, err := validateSCTP(pkt)
		require.NoError(t, err)
		require.Equal(t, computeSCTPChecksum(pkt), binary.LittleEndian.Uint32(pkt[8:12]))
	}
	require.Zero(t, f.Injected())
}

func TestFaultInjectorModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode         faultMode
		payload      string
		wantChecksum bool
		wantParse    string
	}{
		{faultModeChecksum, "abcd", false, ""},
		{faultModeBadChunkLen, "abcd", true, "chunk too short"},
		{faultModeNonZeroPadding, "abc", true, "non-zero padding"},
	}

	for _, tc := range tests {
		t.Run(string(tc.mode), func(t *testing.T) {
			t.Parallel()

			f := newFaultInjector(faultSpec{Mode: tc.mode, Every: 2})
			first := buildSCTP(7, dataChunk(1, tc.payload))
			f.apply(first)
			require.Zero(t, f.Injected())

			pkt := buildSCTP(7, dataChunk(2, tc.payload))
			f.apply(pkt)
			require.Equal(t, 1, f.Injected())

			checksumOK := computeSCTPChecksum(pkt) == binary.LittleEndian.Uint32(pkt[8:12])
			require.Equal(t, tc.wantChecksum, checksumOK)
			_, _, err := validateSCTP(pkt)
			if tc.wantParse == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantParse)
		})
	}
}

func TestFaultInjectorAlignedPaddingUntouched(t *testing.T) {
	t.Parallel()

	f := newFaultInjector(faultSpec{Mode: faultModeNonZeroPadding, Every: 1})
	pkt := buildSCTP(7, dataChunk(1, "abcd"))
	f.apply(pkt)

	require.Zero(t, f.Injected())
}

func TestDropFilter(t *testing.T) {
	t.Parallel()

	keepAll := dropFilter(rand.New(rand.NewPCG(1, 2)), 0) //nolint:gosec // test
	dropAll := dropFilter(rand.New(rand.NewPCG(1, 2)), 100) //nolint:gosec // test
	for range 100 {
		require.True(t, keepAll(nil))
		require.False(t, dropAll(nil))
	}
}
