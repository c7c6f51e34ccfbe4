// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pion/sctpsock/endpoint"
	"github.com/stretchr/testify/require"
)

func TestNewPayload(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // test
	require.Len(t, newPayload(rng, 0), burstPayloadOctets)
	require.Len(t, newPayload(rng, 4), payloadHeaderSize)
	require.Len(t, newPayload(rng, 8192), 8192)
}

func TestDeriveSeedIsStable(t *testing.T) {
	t.Parallel()

	require.Equal(t, deriveSeed(1, 0), deriveSeed(1, 0))
	require.NotEqual(t, deriveSeed(1, 0), deriveSeed(1, 1))
	require.NotEqual(t, deriveSeed(1, 0), deriveSeed(2, 0))
}

func TestComputePercentiles(t *testing.T) {
	t.Parallel()

	p50, p90, p99 := computePercentiles(nil)
	require.Zero(t, p50+p90+p99)

	latencies := make([]time.Duration, 0, 100)
	for i := 100; i > 0; i-- {
		latencies = append(latencies, time.Duration(i)*time.Millisecond)
	}
	p50, p90, p99 = computePercentiles(latencies)
	require.Equal(t, 51*time.Millisecond, p50)
	require.Equal(t, 91*time.Millisecond, p90)
	require.Equal(t, 100*time.Millisecond, p99)
	require.Equal(t, 100*time.Millisecond, latencies[0], "input is not sorted in place")
}

func TestBuildMetrics(t *testing.T) {
	t.Parallel()

	tr := transfer{
		forward: receiveResult{count: 3, bytes: 300, reordered: 1, tailRecovery: time.Millisecond},
		reverse: receiveResult{count: 1, bytes: 100, duplicates: 2, tailRecovery: 2 * time.Millisecond},
	}
	wire := wireSummary{TotalPackets: 9, Chunks: map[string]int{"DATA": 4}}
	m := buildMetrics(tr, endpointStatsFixture(), wire, 2*time.Second, 3)

	require.InDelta(t, 2.0, m.PacketsPerSecond, 1e-9)
	require.Equal(t, uint64(400), m.PayloadBytes)
	require.InDelta(t, 1600.0, m.GoodputBps, 1e-9)
	require.Equal(t, 1, m.Reordered)
	require.Equal(t, 2, m.Duplicates)
	require.Equal(t, 2*time.Millisecond, m.TailRecovery)
	require.Equal(t, uint64(5), m.EndpointDropped)
	require.Equal(t, 9, m.WirePackets)
	require.Equal(t, 3, m.Target)
}

func endpointStatsFixture() endpoint.Stats {
	return endpoint.Stats{BytesSent: 1000, BytesReceived: 900, Dropped: 5}
}
