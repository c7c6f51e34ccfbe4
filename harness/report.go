// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type runConfig struct {
	GeneratedAt  time.Time          `json:"generated_at"`
	Cases        []string           `json:"cases"`
	Timeout      string             `json:"timeout"`
	Repeat       int                `json:"repeat"`
	Seed         int64              `json:"seed"`
	Topology     topologyRecord     `json:"topology"`
	Parameters   runParameters      `json:"parameters"`
	Profiles     []profileEntry     `json:"profiles,omitempty"`
	CasePolicies []casePolicyRecord `json:"case_policies,omitempty"`
	Pprof        pprofRecord        `json:"pprof,omitempty"`
}

type topologyRecord struct {
	CIDR     string `json:"cidr"`
	Listener string `json:"listener"`
	Dialer   string `json:"dialer"`
}

type runParameters struct {
	MinBurstPackets     int     `json:"min_burst_packets"`
	BurstRange          int     `json:"burst_range"`
	BurstPayloadOctets  int     `json:"burst_payload_octets"`
	MinPacketsPerSecond float64 `json:"min_packets_per_second"`
}

type profileEntry struct {
	Case    string        `json:"case"`
	Profile profileRecord `json:"profile"`
}

type pprofRecord struct {
	CPU    string `json:"cpu,omitempty"`
	Heap   string `json:"heap,omitempty"`
	Allocs string `json:"allocs,omitempty"`
}

type casePolicyRecord struct {
	Case                  string   `json:"case"`
	Scenario              string   `json:"scenario"`
	MinForward            int      `json:"min_forward,omitempty"`
	MinReverse            int      `json:"min_reverse,omitempty"`
	MinPPS                float64  `json:"min_pps,omitempty"`
	AllowWireErrors       bool     `json:"allow_wire_errors,omitempty"`
	AllowRunError         bool     `json:"allow_run_error,omitempty"`
	RequireChecksumErrors bool     `json:"require_checksum_errors,omitempty"`
	RequireParseErrors    bool     `json:"require_parse_errors,omitempty"`
	ListenerOutcome       string   `json:"listener_outcome,omitempty"`
	DialerOutcome         string   `json:"dialer_outcome,omitempty"`
	RequireChunks         []string `json:"require_chunks,omitempty"`
	Messages              int      `json:"messages,omitempty"`
	PayloadSize           int      `json:"payload_size,omitempty"`
	MaxMessageSize        uint32   `json:"max_message_size,omitempty"`
	Fault                 string   `json:"fault,omitempty"`
	FaultEvery            int      `json:"fault_every,omitempty"`
}

type runResults struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Seed        int64          `json:"seed"`
	Results     []resultRecord `json:"results"`
}

type resultRecord struct {
	Case            string        `json:"case"`
	Profile         profileRecord `json:"profile"`
	Forward         int           `json:"forward"`
	Reverse         int           `json:"reverse"`
	ListenerOutcome string        `json:"listener_outcome"`
	DialerOutcome   string        `json:"dialer_outcome"`
	ListenerClose   string        `json:"listener_close,omitempty"`
	DialerClose     string        `json:"dialer_close,omitempty"`
	Passed          bool          `json:"passed"`
	Errored         bool          `json:"errored"`
	Details         string        `json:"details,omitempty"`
	WireLog         string        `json:"wire_log,omitempty"`
	Iteration       int           `json:"iteration"`
	Metrics         metricsRecord `json:"metrics"`
}

type profileRecord struct {
	Name        string  `json:"name,omitempty"`
	MinDelay    string  `json:"min_delay"`
	MaxJitter   string  `json:"max_jitter"`
	DropPercent float64 `json:"drop_percent"`
	Unordered   bool    `json:"unordered"`
}

type metricsRecord struct {
	DurationNs       int64          `json:"duration_ns"`
	Duration         string         `json:"duration"`
	PacketsPerSecond float64        `json:"packets_per_second"`
	CPUSeconds       float64        `json:"cpu_seconds"`
	LatencyP50Ns     int64          `json:"latency_p50_ns"`
	LatencyP50       string         `json:"latency_p50"`
	LatencyP90Ns     int64          `json:"latency_p90_ns"`
	LatencyP90       string         `json:"latency_p90"`
	LatencyP99Ns     int64          `json:"latency_p99_ns"`
	LatencyP99       string         `json:"latency_p99"`
	BytesSent        uint64         `json:"bytes_sent"`
	BytesReceived    uint64         `json:"bytes_received"`
	PayloadBytes     uint64         `json:"payload_bytes"`
	Reordered        int            `json:"reordered"`
	Duplicates       int            `json:"duplicates"`
	Unexpected       int            `json:"unexpected"`
	EndpointDropped  uint64         `json:"endpoint_dropped"`
	WirePackets      int            `json:"wire_packets"`
	WireChecksumErrs int            `json:"wire_checksum_errors"`
	WireParseErrors  int            `json:"wire_parse_errors"`
	WireShortPackets int            `json:"wire_short_packets"`
	WireLogErrors    int            `json:"wire_log_errors"`
	WireChunks       map[string]int `json:"wire_chunks,omitempty"`
	FaultsInjected   int            `json:"faults_injected"`
	GoodputBps       float64        `json:"goodput_bps"`
	TailRecoveryNs   int64          `json:"tail_recovery_ns"`
	TailRecovery     string         `json:"tail_recovery"`
	Target           int            `json:"target"`
}

// writeArtifacts stores config.json, results.json and seed.txt under
// opts.OutDir.
func writeArtifacts(opts Options, seed int64, cases []string, results []scenarioResult, timeout time.Duration) error {
	if opts.OutDir == "" {
		return nil
	}

	dir := filepath.Clean(opts.OutDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("harness: out-dir: %w", err)
	}

	generatedAt := time.Now().UTC()
	config := runConfig{
		GeneratedAt: generatedAt,
		Cases:       cases,
		Timeout:     timeout.String(),
		Repeat:      opts.Repeat,
		Seed:        seed,
		Topology: topologyRecord{
			CIDR:     routerCIDR,
			Listener: fmt.Sprintf("%s:%d", listenerIP, listenerPort),
			Dialer:   fmt.Sprintf("%s:%d", dialerIP, dialerPort),
		},
		Parameters: runParameters{
			MinBurstPackets:     minBurstPackets,
			BurstRange:          burstRange,
			BurstPayloadOctets:  burstPayloadOctets,
			MinPacketsPerSecond: minPacketsPerSecond,
		},
		Profiles:     collectProfiles(cases),
		CasePolicies: collectCasePolicies(cases),
		Pprof: pprofRecord{
			CPU:    opts.PprofCPU,
			Heap:   opts.PprofHeap,
			Allocs: opts.PprofAllocs,
		},
	}
	resultsDoc := runResults{
		GeneratedAt: generatedAt,
		Seed:        seed,
		Results:     convertResults(results),
	}

	if err := writeJSON(filepath.Join(dir, "config.json"), config); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "results.json"), resultsDoc); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "seed.txt"), []byte(fmt.Sprintf("%d\n", seed)), 0o600); err != nil {
		return fmt.Errorf("harness: write seed: %w", err)
	}

	return nil
}

func collectProfiles(cases []string) []profileEntry {
	if len(cases) == 0 {
		return nil
	}

	profiles := make([]profileEntry, 0, len(cases))
	for _, name := range cases {
		profiles = append(profiles, profileEntry{
			Case:    name,
			Profile: profileRecordFromProfile(profileForCase(name)),
		})
	}

	return profiles
}

func collectCasePolicies(cases []string) []casePolicyRecord {
	if len(cases) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(cases))
	policies := make([]casePolicyRecord, 0, len(cases))
	for _, name := range cases {
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		def, ok := lookupCaseDefinition(name)
		if !ok {
			policies = append(policies, casePolicyRecord{Case: name})
			continue
		}
		record := casePolicyRecord{
			Case:                  def.Name,
			Scenario:              def.Scenario.String(),
			MinForward:            def.Policy.MinForward,
			MinReverse:            def.Policy.MinReverse,
			MinPPS:                def.Policy.MinPPS,
			AllowWireErrors:       def.Policy.AllowWireErrors,
			AllowRunError:         def.Policy.AllowRunError,
			RequireChecksumErrors: def.Policy.RequireChecksumErrors,
			RequireParseErrors:    def.Policy.RequireParseErrors,
			ListenerOutcome:       string(def.Policy.ListenerOutcome),
			DialerOutcome:         string(def.Policy.DialerOutcome),
			RequireChunks:         def.Policy.RequireChunks,
			Messages:              def.Messages,
			PayloadSize:           def.PayloadSize,
			MaxMessageSize:        def.MaxMessageSize,
		}
		if def.Fault != nil {
			record.Fault = string(def.Fault.Mode)
			record.FaultEvery = def.Fault.Every
		}
		policies = append(policies, record)
	}

	return policies
}

func profileForCase(name string) networkProfile {
	if def, ok := lookupCaseDefinition(name); ok {
		return def.Profile
	}

	return networkProfile{Name: name}
}

func convertResults(results []scenarioResult) []resultRecord {
	out := make([]resultRecord, 0, len(results))
	for _, res := range results {
		out = append(out, resultRecord{
			Case:            res.CaseName,
			Profile:         profileRecordFromProfile(res.Profile),
			Forward:         res.Forward,
			Reverse:         res.Reverse,
			ListenerOutcome: string(res.ListenerOutcome),
			DialerOutcome:   string(res.DialerOutcome),
			ListenerClose:   res.ListenerClose,
			DialerClose:     res.DialerClose,
			Passed:          res.Passed,
			Errored:         res.Errored,
			Details:         res.Details,
			WireLog:         res.WireLog,
			Iteration:       res.Iteration,
			Metrics:         metricsRecordFromMetrics(res.Metrics),
		})
	}

	return out
}

func profileRecordFromProfile(profile networkProfile) profileRecord {
	return profileRecord{
		Name:        profile.Name,
		MinDelay:    profile.MinDelay.String(),
		MaxJitter:   profile.MaxJitter.String(),
		DropPercent: profile.DropPercent,
		Unordered:   profile.Unordered,
	}
}

func metricsRecordFromMetrics(metrics resultMetrics) metricsRecord {
	return metricsRecord{
		DurationNs:       metrics.Duration.Nanoseconds(),
		Duration:         metrics.Duration.String(),
		PacketsPerSecond: metrics.PacketsPerSecond,
		CPUSeconds:       metrics.CPUSeconds,
		LatencyP50Ns:     metrics.LatencyP50.Nanoseconds(),
		LatencyP50:       metrics.LatencyP50.String(),
		LatencyP90Ns:     metrics.LatencyP90.Nanoseconds(),
		LatencyP90:       metrics.LatencyP90.String(),
		LatencyP99Ns:     metrics.LatencyP99.Nanoseconds(),
		LatencyP99:       metrics.LatencyP99.String(),
		BytesSent:        metrics.BytesSent,
		BytesReceived:    metrics.BytesReceived,
		PayloadBytes:     metrics.PayloadBytes,
		Reordered:        metrics.Reordered,
		Duplicates:       metrics.Duplicates,
		Unexpected:       metrics.Unexpected,
		EndpointDropped:  metrics.EndpointDropped,
		WirePackets:      metrics.WirePackets,
		WireChecksumErrs: metrics.WireChecksumErrs,
		WireParseErrors:  metrics.WireParseErrors,
		WireShortPackets: metrics.WireShortPackets,
		WireLogErrors:    metrics.WireLogErrors,
		WireChunks:       metrics.WireChunks,
		FaultsInjected:   metrics.FaultsInjected,
		GoodputBps:       metrics.GoodputBps,
		TailRecoveryNs:   metrics.TailRecovery.Nanoseconds(),
		TailRecovery:     metrics.TailRecovery.String(),
		Target:           metrics.Target,
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("harness: marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	return os.WriteFile(filepath.Clean(path), data, 0o600)
}
