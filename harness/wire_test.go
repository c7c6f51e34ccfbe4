// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testChunk struct {
	kind byte
	body []byte
}

// buildSCTP returns a packet with a valid checksum. Chunk bodies are padded
// to four bytes.
func buildSCTP(tag uint32, chunks ...testChunk) []byte {
	pkt := make([]byte, sctpHeaderSize)
	binary.BigEndian.PutUint16(pkt[0:2], 5000)
	binary.BigEndian.PutUint16(pkt[2:4], 5001)
	binary.BigEndian.PutUint32(pkt[4:8], tag)
	for _, c := range chunks {
		length := sctpChunkHeaderSize + len(c.body)
		chunk := make([]byte, (length+3)&^3)
		chunk[0] = c.kind
		binary.BigEndian.PutUint16(chunk[2:4], uint16(length)) //nolint:gosec // test sizes are small
		copy(chunk[sctpChunkHeaderSize:], c.body)
		pkt = append(pkt, chunk...)
	}
	rewriteChecksum(pkt)

	return pkt
}

const (
	testSrc = "10.0.0.1:5001"
	testDst = "10.0.0.2:5000"
)

func dataChunk(tsn uint32, payload string) testChunk {
	body := make([]byte, 12+len(payload))
	binary.BigEndian.PutUint32(body[0:4], tsn)
	copy(body[12:], payload)

	return testChunk{kind: chunkData, body: body}
}

func TestValidateSCTP(t *testing.T) {
	t.Parallel()

	duplicate := buildSCTP(7, dataChunk(1, "a"), dataChunk(1, "b"))
	shortData := buildSCTP(7, testChunk{kind: chunkData, body: make([]byte, 4)})
	overrun := buildSCTP(7, testChunk{kind: chunkSack, body: make([]byte, 12)})
	binary.BigEndian.PutUint16(overrun[sctpHeaderSize+2:], 200)
	badPadding := buildSCTP(7, dataChunk(1, "abc"))
	badPadding[len(badPadding)-1] = 0xff

	tests := []struct {
		name    string
		pkt     []byte
		types   []byte
		wantErr string
	}{
		{"init with zero tag", buildSCTP(0, testChunk{kind: chunkInit, body: make([]byte, 16)}), []byte{chunkInit}, ""},
		{"data and sack", buildSCTP(7, dataChunk(1, "hi"), testChunk{kind: chunkSack, body: make([]byte, 12)}), []byte{chunkData, chunkSack}, ""},
		{"zero tag without init", buildSCTP(0, testChunk{kind: chunkSack, body: make([]byte, 12)}), []byte{chunkSack}, "invalid verification tag=0"},
		{"no chunks", buildSCTP(7), nil, "missing chunks"},
		{"duplicate tsn", duplicate, []byte{chunkData}, "duplicate tsn=1"},
		{"short data", shortData, nil, "data chunk too short"},
		{"overrun", overrun, nil, "chunk overruns packet type=SACK"},
		{"non-zero padding", badPadding, []byte{chunkData}, "non-zero padding"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, types, err := validateSCTP(tc.pkt)
			require.Equal(t, tc.types, types)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestChunkName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SHUTDOWN_COMPLETE", chunkName(chunkShutdownComplete))
	require.Equal(t, "0x80", chunkName(0x80))
}

func TestWireValidatorSummary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "packets.jsonl")
	logger, err := newPacketLogger(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	v := newWireValidator(logger)
	corrupt := buildSCTP(7, dataChunk(2, "x"))
	corrupt[len(corrupt)-1] ^= 0xff

	v.inspect(buildSCTP(0, testChunk{kind: chunkInit, body: make([]byte, 16)}), testSrc, testDst)
	v.inspect(buildSCTP(7, dataChunk(1, "hi"), testChunk{kind: chunkSack, body: make([]byte, 12)}), testSrc, testDst)
	v.inspect(corrupt, testSrc, testDst)
	v.inspect([]byte{1, 2, 3}, testSrc, testDst)

	sum := v.Summary()
	require.Equal(t, 4, sum.TotalPackets)
	require.Equal(t, 1, sum.ChecksumErrors)
	require.Equal(t, 1, sum.ShortPackets)
	require.Equal(t, 1, sum.ParseErrors)
	require.Equal(t, map[string]int{"INIT": 1, "DATA": 2, "SACK": 1}, sum.Chunks)
	require.ErrorContains(t, sum.Err(), "checksum_errors=1")
	require.Zero(t, sum.LogErrors)

	require.NoError(t, logger.Close())
	raw, err := os.ReadFile(path) //nolint:gosec // test temp dir
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], `"direction":"forward"`)
	require.Contains(t, lines[1], `"chunks":["DATA","SACK"]`)
	require.Contains(t, lines[3], `"parse_error":"short packet len=3`)
}

func TestPacketDirection(t *testing.T) {
	t.Parallel()

	require.Equal(t, directionForward, packetDirection("10.0.0.2:5000"))
	require.Equal(t, directionReverse, packetDirection("10.0.0.1:5001"))
}

func TestWireSummaryErrClean(t *testing.T) {
	t.Parallel()

	require.NoError(t, wireSummary{TotalPackets: 3}.Err())
}
