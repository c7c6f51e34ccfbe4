// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	"github.com/pion/transport/v3/vnet"
)

const (
	sctpHeaderSize      = 12
	sctpChunkHeaderSize = 4
	sctpDataHeaderSize  = 16

	chunkData             = 0x00
	chunkInit             = 0x01
	chunkInitAck          = 0x02
	chunkSack             = 0x03
	chunkHeartbeat        = 0x04
	chunkHeartbeatAck     = 0x05
	chunkAbort            = 0x06
	chunkShutdown         = 0x07
	chunkShutdownAck      = 0x08
	chunkError            = 0x09
	chunkCookieEcho       = 0x0a
	chunkCookieAck        = 0x0b
	chunkShutdownComplete = 0x0e
	chunkForwardTSN       = 0xc0
)

var (
	wireChecksumTable = crc32.MakeTable(crc32.Castagnoli)
	wireZeroes        [4]byte
)

var chunkNames = map[byte]string{
	chunkData:             "DATA",
	chunkInit:             "INIT",
	chunkInitAck:          "INIT_ACK",
	chunkSack:             "SACK",
	chunkHeartbeat:        "HEARTBEAT",
	chunkHeartbeatAck:     "HEARTBEAT_ACK",
	chunkAbort:            "ABORT",
	chunkShutdown:         "SHUTDOWN",
	chunkShutdownAck:      "SHUTDOWN_ACK",
	chunkError:            "ERROR",
	chunkCookieEcho:       "COOKIE_ECHO",
	chunkCookieAck:        "COOKIE_ACK",
	chunkShutdownComplete: "SHUTDOWN_COMPLETE",
	chunkForwardTSN:       "FORWARD_TSN",
}

func chunkName(t byte) string {
	if name, ok := chunkNames[t]; ok {
		return name
	}

	return fmt.Sprintf("0x%02x", t)
}

// wireValidator checks every SCTP packet crossing the router and counts the
// chunk types it carries.
type wireValidator struct {
	mu             sync.Mutex
	totalPackets   int
	checksumErrors int
	parseErrors    int
	shortPackets   int
	logErrors      int
	firstError     string
	chunks         map[string]int
	logger         *packetLogger
}

type wireSummary struct {
	TotalPackets   int
	ChecksumErrors int
	ParseErrors    int
	ShortPackets   int
	LogErrors      int
	FirstError     string
	Chunks         map[string]int
}

func (w wireSummary) Err() error {
	if w.ChecksumErrors == 0 && w.ShortPackets == 0 && w.ParseErrors == 0 && w.LogErrors == 0 {
		return nil
	}
	if w.FirstError != "" {
		return fmt.Errorf("wire: checksum_errors=%d parse_errors=%d short_packets=%d log_errors=%d first_error=%s", w.ChecksumErrors, w.ParseErrors, w.ShortPackets, w.LogErrors, w.FirstError)
	}

	return fmt.Errorf("wire: checksum_errors=%d parse_errors=%d short_packets=%d log_errors=%d", w.ChecksumErrors, w.ParseErrors, w.ShortPackets, w.LogErrors)
}

func newWireValidator(logger *packetLogger) *wireValidator {
	return &wireValidator{logger: logger, chunks: map[string]int{}}
}

// Filter is a vnet.ChunkFilter that never drops.
func (v *wireValidator) Filter(c vnet.Chunk) bool {
	if c == nil || c.Network() != "udp" {
		return true
	}
	v.inspect(c.UserData(), c.SourceAddr().String(), c.DestinationAddr().String())

	return true
}

func (v *wireValidator) inspect(data []byte, src, dst string) {
	index := v.incrementTotal()
	record := packetRecord{
		Timestamp:   time.Now().UTC(),
		PacketIndex: index,
		Source:      src,
		Destination: dst,
		Direction:   packetDirection(dst),
		Length:      len(data),
		DataHex:     hex.EncodeToString(data),
	}
	if len(data) < sctpHeaderSize {
		msg := fmt.Sprintf("short packet len=%d src=%s dst=%s", len(data), src, dst)
		v.recordShort(msg)
		record.ParseError = msg
		v.logPacket(record)

		return
	}

	their := binary.LittleEndian.Uint32(data[8:12])
	ours := computeSCTPChecksum(data)
	record.Checksum = their
	record.ChecksumExpected = ours
	record.ChecksumOK = their == ours
	if their != ours {
		v.recordChecksum(fmt.Sprintf("checksum mismatch src=%s dst=%s got=%d want=%d", src, dst, their, ours))
	}
	tag, types, parseErr := validateSCTP(data)
	record.VerificationTag = tag
	record.Chunks = make([]string, 0, len(types))
	for _, t := range types {
		record.Chunks = append(record.Chunks, chunkName(t))
	}
	v.recordChunks(record.Chunks)
	if parseErr != nil {
		v.recordParse(parseErr.Error())
		record.ParseError = parseErr.Error()
	}
	v.logPacket(record)
}

func (v *wireValidator) Summary() wireSummary {
	v.mu.Lock()
	defer v.mu.Unlock()

	chunks := make(map[string]int, len(v.chunks))
	for name, n := range v.chunks {
		chunks[name] = n
	}

	return wireSummary{
		TotalPackets:   v.totalPackets,
		ChecksumErrors: v.checksumErrors,
		ParseErrors:    v.parseErrors,
		ShortPackets:   v.shortPackets,
		LogErrors:      v.logErrors,
		FirstError:     v.firstError,
		Chunks:         chunks,
	}
}

func (v *wireValidator) incrementTotal() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.totalPackets++

	return v.totalPackets
}

func (v *wireValidator) recordChunks(names []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, name := range names {
		v.chunks[name]++
	}
}

func (v *wireValidator) recordChecksum(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.checksumErrors++
	v.firstLocked(msg)
}

func (v *wireValidator) recordShort(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.shortPackets++
	v.firstLocked(msg)
}

func (v *wireValidator) recordParse(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.parseErrors++
	v.firstLocked(msg)
}

func (v *wireValidator) recordLog(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.logErrors++
	v.firstLocked(msg)
}

func (v *wireValidator) firstLocked(msg string) {
	if v.firstError == "" {
		v.firstError = msg
	}
}

func (v *wireValidator) logPacket(record packetRecord) {
	if v.logger == nil {
		return
	}
	if err := v.logger.Log(record); err != nil {
		v.recordLog(fmt.Sprintf("packet log: %v", err))
	}
}

func computeSCTPChecksum(raw []byte) uint32 {
	sum := crc32.Update(0, wireChecksumTable, raw[0:8])
	sum = crc32.Update(sum, wireChecksumTable, wireZeroes[:])
	if len(raw) > sctpHeaderSize {
		sum = crc32.Update(sum, wireChecksumTable, raw[sctpHeaderSize:])
	}

	return sum
}

// validateSCTP parses raw and returns its verification tag and the types of
// the chunks read before the first error.
func validateSCTP(raw []byte) (uint32, []byte, error) {
	if len(raw) < sctpHeaderSize {
		return 0, nil, fmt.Errorf("short packet len=%d", len(raw))
	}

	tag := binary.BigEndian.Uint32(raw[4:8])
	offset := sctpHeaderSize
	foundInit := false
	seenTSN := map[uint32]struct{}{}
	var types []byte

	if offset == len(raw) {
		return tag, nil, fmt.Errorf("missing chunks len=%d", len(raw))
	}

	for offset < len(raw) {
		if len(raw[offset:]) < sctpChunkHeaderSize {
			return tag, types, fmt.Errorf("short chunk header len=%d offset=%d", len(raw[offset:]), offset)
		}

		chunkType := raw[offset]
		chunkLen := int(binary.BigEndian.Uint16(raw[offset+2 : offset+4]))
		if chunkLen < sctpChunkHeaderSize {
			return tag, types, fmt.Errorf("chunk too short type=%s len=%d offset=%d", chunkName(chunkType), chunkLen, offset)
		}
		if offset+chunkLen > len(raw) {
			return tag, types, fmt.Errorf("chunk overruns packet type=%s len=%d offset=%d packet_len=%d", chunkName(chunkType), chunkLen, offset, len(raw))
		}
		switch chunkType {
		case chunkData:
			if chunkLen < sctpDataHeaderSize {
				return tag, types, fmt.Errorf("data chunk too short len=%d offset=%d", chunkLen, offset)
			}
			tsn := binary.BigEndian.Uint32(raw[offset+4 : offset+8])
			if _, exists := seenTSN[tsn]; exists {
				return tag, types, fmt.Errorf("duplicate tsn=%d offset=%d", tsn, offset)
			}
			seenTSN[tsn] = struct{}{}
		case chunkInit, chunkInitAck:
			foundInit = true
		}
		types = append(types, chunkType)

		offset += chunkLen
		for offset%4 != 0 {
			if offset >= len(raw) {
				return tag, types, fmt.Errorf("padding overruns packet offset=%d packet_len=%d", offset, len(raw))
			}
			if raw[offset] != 0 {
				return tag, types, fmt.Errorf("non-zero padding offset=%d value=%d", offset, raw[offset])
			}
			offset++
		}
	}

	if tag == 0 && !foundInit {
		return tag, types, fmt.Errorf("invalid verification tag=0 without INIT")
	}

	return tag, types, nil
}
