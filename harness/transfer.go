// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pion/sctpsock/socket"
	"go.uber.org/multierr"
)

const (
	minBurstPackets     = 64
	burstRange          = 512 - minBurstPackets + 1
	burstPayloadOctets  = 1200
	minPacketsPerSecond = 1.0
	// Each payload starts with the send time and a sequence number.
	payloadHeaderSize = 16
)

type receiveResult struct {
	count        int
	bytes        uint64
	latencies    []time.Duration
	reordered    int
	duplicates   int
	unexpected   int
	tailRecovery time.Duration
}

type transfer struct {
	forward receiveResult
	reverse receiveResult
}

// burst sends forward messages from the dialer and reverse messages from the
// listener, then waits until both sides read them all.
func (s *session) burst(ctx context.Context, forward, reverse int, payload []byte, unordered bool) (transfer, error) {
	if unordered {
		s.dialer.sock.SetDefaultSendParams(socket.Params{socket.ParamUnordered: true})
		s.listener.sock.SetDefaultSendParams(socket.Params{socket.ParamUnordered: true})
	}

	forwardCh := make(chan receiveResult, 1)
	reverseCh := make(chan receiveResult, 1)
	go func() {
		forwardCh <- receiveMessages(s.listener.sock, forward)
	}()
	go func() {
		reverseCh <- receiveMessages(s.dialer.sock, reverse)
	}()

	sendErr := transmitMessages(ctx, s.dialer.sock, forward, payload)
	sendErr = multierr.Append(sendErr, transmitMessages(ctx, s.listener.sock, reverse, payload))
	if sendErr != nil {
		s.abort()
	}

	tr := transfer{forward: <-forwardCh, reverse: <-reverseCh}
	if sendErr != nil {
		return tr, sendErr
	}
	if err := ctx.Err(); err != nil {
		return tr, err
	}
	if tr.forward.count < forward || tr.reverse.count < reverse {
		return tr, fmt.Errorf("%w: forward=%d/%d reverse=%d/%d", errUnexpectedClose, tr.forward.count, forward, tr.reverse.count, reverse)
	}

	return tr, nil
}

// receiveMessages reads until want messages arrived or the socket is done.
func receiveMessages(sock *socket.Socket, want int) receiveResult {
	res := receiveResult{latencies: make([]time.Duration, 0, want)}
	seen := make(map[uint64]int, want)
	expectedSeq := uint64(1)
	var lastSendTS int64
	var lastRecvTS time.Time
	for res.count < want {
		msg, err := sock.ReadMessage()
		if err != nil {
			break
		}
		res.count++
		res.bytes += uint64(len(msg))
		if len(msg) < payloadHeaderSize {
			continue
		}

		sendTS := int64(binary.LittleEndian.Uint64(msg[:8])) //nolint:gosec // written from UnixNano
		if sendTS > 0 {
			res.latencies = append(res.latencies, time.Since(time.Unix(0, sendTS)))
			if sendTS > lastSendTS {
				lastSendTS = sendTS
			}
			lastRecvTS = time.Now()
		}
		seq := binary.LittleEndian.Uint64(msg[8:16])
		if seq != expectedSeq {
			res.reordered++
		}
		if seen[seq] > 0 {
			res.duplicates++
		}
		seen[seq]++
		if seq == expectedSeq {
			expectedSeq++
		}
		if seq > uint64(want) { //nolint:gosec // want is positive
			res.unexpected++
		}
	}
	res.tailRecovery = recvTail(lastSendTS, lastRecvTS)

	return res
}

func recvTail(lastSendTS int64, lastRecvTS time.Time) time.Duration {
	if lastSendTS == 0 || lastRecvTS.IsZero() {
		return 0
	}

	return lastRecvTS.Sub(time.Unix(0, lastSendTS))
}

// transmitMessages writes packets copies of payload, stamping each with the
// send time and a sequence number starting at 1.
func transmitMessages(ctx context.Context, sock *socket.Socket, packets int, payload []byte) error {
	for seq := uint64(1); seq <= uint64(packets); seq++ { //nolint:gosec // packets is positive
		binary.LittleEndian.PutUint64(payload[:8], uint64(time.Now().UnixNano())) //nolint:gosec // positive
		binary.LittleEndian.PutUint64(payload[8:16], seq)
		if _, err := sock.Write(payload); err != nil {
			return fmt.Errorf("harness: write %d: %w", seq, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

func newPayload(rng *rand.Rand, size int) []byte {
	if size <= 0 {
		size = burstPayloadOctets
	}
	if size < payloadHeaderSize {
		size = payloadHeaderSize
	}
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(rng.IntN(256))
	}

	return payload
}

// deriveSeed gives every iteration its own seed.
func deriveSeed(base int64, idx int) int64 {
	payload := fmt.Sprintf("%d:%d", base, idx)
	sum := sha256.Sum256([]byte(payload))

	return int64(binary.LittleEndian.Uint64(sum[:8])) //nolint:gosec // not cryptographic purpose
}
