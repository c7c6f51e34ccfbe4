// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package endpoint

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildPacket returns a packet with one chunk per entry of chunks, each
// carrying bodyLen bytes of value.
func buildPacket(bodyLen int, chunks ...byte) []byte {
	pkt := make([]byte, commonHeaderSize)
	for _, t := range chunks {
		length := chunkHeaderSize + bodyLen
		chunk := make([]byte, (length+3)&^3)
		chunk[0] = t
		binary.BigEndian.PutUint16(chunk[2:4], uint16(length)) //nolint:gosec // test sizes are small
		pkt = append(pkt, chunk...)
	}

	return pkt
}

func TestChunkTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pkt  []byte
		want []byte
	}{
		{"header only", make([]byte, commonHeaderSize), nil},
		{"short", []byte{1, 2, 3}, nil},
		{"init", buildPacket(16, chunkTypeInit), []byte{chunkTypeInit}},
		{"padded bundle", buildPacket(5, 0x00, chunkTypeShutdown), []byte{0x00, chunkTypeShutdown}},
		{"abort", buildPacket(0, chunkTypeAbort), []byte{chunkTypeAbort}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, chunkTypes(tc.pkt))
		})
	}
}

func TestChunkTypesStopsAtMalformedChunk(t *testing.T) {
	t.Parallel()

	pkt := buildPacket(4, chunkTypeShutdownAck, chunkTypeAbort)
	// Second chunk claims to run past the packet.
	binary.BigEndian.PutUint16(pkt[commonHeaderSize+8+2:], 0xffff)
	require.Equal(t, []byte{chunkTypeShutdownAck}, chunkTypes(pkt))

	binary.BigEndian.PutUint16(pkt[commonHeaderSize+2:], 2)
	require.Empty(t, chunkTypes(pkt))
}

func TestStartsWithInit(t *testing.T) {
	t.Parallel()

	require.True(t, startsWithInit(buildPacket(16, chunkTypeInit)))
	require.False(t, startsWithInit(buildPacket(16, 0x00, chunkTypeInit)))
	require.False(t, startsWithInit(nil))
}
