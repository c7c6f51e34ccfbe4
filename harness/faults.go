// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/pion/transport/v3/vnet"
)

type faultMode string

const (
	faultModeChecksum       faultMode = "checksum"
	faultModeBadChunkLen    faultMode = "bad-chunk-len"
	faultModeNonZeroPadding faultMode = "nonzero-padding"
)

type faultSpec struct {
	Mode  faultMode
	Every int
}

// faultInjector corrupts every Nth packet after the handshake. Packets whose
// first chunk opens or closes an association are left alone so the scenario
// still reaches its end.
type faultInjector struct {
	spec     faultSpec
	mu       sync.Mutex
	seen     int
	injected int
}

func newFaultInjector(spec faultSpec) *faultInjector {
	if spec.Every <= 0 || spec.Mode == "" {
		return nil
	}

	return &faultInjector{spec: spec}
}

func (f *faultInjector) Filter(c vnet.Chunk) bool {
	if f == nil || c == nil || c.Network() != "udp" {
		return true
	}
	f.apply(c.UserData())

	return true
}

// apply corrupts data in place when its turn comes.
func (f *faultInjector) apply(data []byte) {
	chunkType, chunkLen, offset, ok := firstChunkInfo(data)
	if !ok {
		return
	}
	switch chunkType {
	case chunkInit, chunkInitAck, chunkAbort, chunkShutdown, chunkShutdownAck, chunkShutdownComplete:
		return
	}

	f.mu.Lock()
	f.seen++
	shouldFault := f.seen%f.spec.Every == 0
	f.mu.Unlock()
	if !shouldFault {
		return
	}

	switch f.spec.Mode {
	case faultModeChecksum:
		data[len(data)-1] ^= 0xFF
	case faultModeBadChunkLen:
		binary.BigEndian.PutUint16(data[offset+2:offset+4], uint16(sctpChunkHeaderSize-1))
		rewriteChecksum(data)
	case faultModeNonZeroPadding:
		if chunkLen%4 == 0 {
			return
		}
		padOffset := offset + chunkLen
		if padOffset >= len(data) {
			return
		}
		data[padOffset] = 0xFF
		rewriteChecksum(data)
	}

	f.mu.Lock()
	f.injected++
	f.mu.Unlock()
}

func (f *faultInjector) Injected() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.injected
}

// dropFilter discards dropPercent percent of the packets, drawn from rng.
func dropFilter(rng *rand.Rand, dropPercent float64) vnet.ChunkFilter {
	var mu sync.Mutex

	return func(vnet.Chunk) bool {
		mu.Lock()
		value := rng.IntN(1000)
		mu.Unlock()

		return float64(value)/10.0 >= dropPercent
	}
}

func firstChunkInfo(data []byte) (chunkType byte, chunkLen int, offset int, ok bool) {
	if len(data) < sctpHeaderSize+sctpChunkHeaderSize {
		return 0, 0, 0, false
	}
	offset = sctpHeaderSize
	chunkType = data[offset]
	chunkLen = int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
	if chunkLen < sctpChunkHeaderSize {
		return 0, 0, 0, false
	}
	if offset+chunkLen > len(data) {
		return 0, 0, 0, false
	}

	return chunkType, chunkLen, offset, true
}

func rewriteChecksum(data []byte) {
	if len(data) < sctpHeaderSize {
		return
	}
	sum := computeSCTPChecksum(data)
	binary.LittleEndian.PutUint32(data[8:12], sum)
}
