// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package endpoint

import "encoding/binary"

const (
	commonHeaderSize = 12
	chunkHeaderSize  = 4

	chunkTypeInit             = 0x01
	chunkTypeAbort            = 0x06
	chunkTypeShutdown         = 0x07
	chunkTypeShutdownAck      = 0x08
	chunkTypeShutdownComplete = 0x0e
)

// chunkTypes lists the chunk types of an SCTP packet. Scanning stops at the
// first malformed chunk; pion/sctp reports those itself.
func chunkTypes(packet []byte) []byte {
	var types []byte
	offset := commonHeaderSize
	for offset+chunkHeaderSize <= len(packet) {
		length := int(binary.BigEndian.Uint16(packet[offset+2 : offset+4]))
		if length < chunkHeaderSize || offset+length > len(packet) {
			break
		}
		types = append(types, packet[offset])
		offset += (length + 3) &^ 3
	}

	return types
}

// startsWithInit reports whether the first chunk of packet is an INIT.
func startsWithInit(packet []byte) bool {
	types := chunkTypes(packet)

	return len(types) > 0 && types[0] == chunkTypeInit
}
