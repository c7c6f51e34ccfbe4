// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"fmt"
	"sort"
	"time"

	"github.com/pion/sctpsock/endpoint"
	"golang.org/x/sys/unix"
)

type resultMetrics struct {
	Duration         time.Duration
	PacketsPerSecond float64
	CPUSeconds       float64
	LatencyP50       time.Duration
	LatencyP90       time.Duration
	LatencyP99       time.Duration
	// BytesSent and BytesReceived are counted by the SCTP associations.
	BytesSent     uint64
	BytesReceived uint64
	// PayloadBytes is what the sockets handed to the application.
	PayloadBytes     uint64
	Reordered        int
	Duplicates       int
	Unexpected       int
	EndpointDropped  uint64
	WirePackets      int
	WireChecksumErrs int
	WireParseErrors  int
	WireShortPackets int
	WireLogErrors    int
	WireChunks       map[string]int
	FaultsInjected   int
	GoodputBps       float64
	TailRecovery     time.Duration
	Target           int
}

func buildMetrics(tr transfer, stats endpoint.Stats, wire wireSummary, duration time.Duration, target int) resultMetrics {
	packets := tr.forward.count + tr.reverse.count
	pps := 0.0
	if duration > 0 {
		pps = float64(packets) / duration.Seconds()
	}
	latencies := append(append([]time.Duration(nil), tr.forward.latencies...), tr.reverse.latencies...)
	p50, p90, p99 := computePercentiles(latencies)
	payloadBytes := tr.forward.bytes + tr.reverse.bytes

	return resultMetrics{
		Duration:         duration,
		PacketsPerSecond: pps,
		LatencyP50:       p50,
		LatencyP90:       p90,
		LatencyP99:       p99,
		BytesSent:        stats.BytesSent,
		BytesReceived:    stats.BytesReceived,
		PayloadBytes:     payloadBytes,
		Reordered:        tr.forward.reordered + tr.reverse.reordered,
		Duplicates:       tr.forward.duplicates + tr.reverse.duplicates,
		Unexpected:       tr.forward.unexpected + tr.reverse.unexpected,
		EndpointDropped:  stats.Dropped,
		WirePackets:      wire.TotalPackets,
		WireChecksumErrs: wire.ChecksumErrors,
		WireParseErrors:  wire.ParseErrors,
		WireShortPackets: wire.ShortPackets,
		WireLogErrors:    wire.LogErrors,
		WireChunks:       wire.Chunks,
		GoodputBps:       goodput(payloadBytes, duration),
		TailRecovery:     maxDuration(tr.forward.tailRecovery, tr.reverse.tailRecovery),
		Target:           target,
	}
}

func computePercentiles(latencies []time.Duration) (time.Duration, time.Duration, time.Duration) {
	if len(latencies) == 0 {
		return 0, 0, 0
	}
	values := make([]time.Duration, len(latencies))
	copy(values, latencies)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	p50 := values[len(values)*50/100]
	p90 := values[len(values)*90/100]
	p99 := values[len(values)*99/100]

	return p50, p90, p99
}

func readCPUSeconds() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}

	user := float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1_000_000
	sys := float64(ru.Stime.Sec) + float64(ru.Stime.Usec)/1_000_000

	return user + sys
}

func formatMetrics(m resultMetrics) string {
	return fmt.Sprintf("duration=%s pps=%.2f cpu=%.4fs p50=%s p90=%s p99=%s bytes_sent=%d bytes_recv=%d payload=%d reordered=%d dup=%d ep_dropped=%d wire_packets=%d wire_crc_errs=%d wire_parse_errs=%d wire_short=%d faults=%d goodput=%.2fbps tail=%s target=%d",
		m.Duration,
		m.PacketsPerSecond,
		m.CPUSeconds,
		m.LatencyP50,
		m.LatencyP90,
		m.LatencyP99,
		m.BytesSent,
		m.BytesReceived,
		m.PayloadBytes,
		m.Reordered,
		m.Duplicates,
		m.EndpointDropped,
		m.WirePackets,
		m.WireChecksumErrs,
		m.WireParseErrors,
		m.WireShortPackets,
		m.FaultsInjected,
		m.GoodputBps,
		m.TailRecovery,
		m.Target,
	)
}

func goodput(bytes uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}

	return float64(bytes) * 8 / d.Seconds()
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}

	return b
}
