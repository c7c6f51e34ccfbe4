// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"context"
	"strings"
	"time"

	"github.com/pion/logging"
)

const (
	caseMaxBurst            = "max-burst"
	caseHandshake           = "handshake"
	caseGracefulClose       = "graceful-close"
	casePeerAbort           = "peer-abort"
	caseRejectMismatch      = "reject-mismatch"
	caseRetransmission      = "retransmission"
	caseReorder             = "reorder"
	caseHighRTT             = "high-rtt"
	caseFragmentation       = "fragmentation"
	caseFaultChecksum       = "fault-checksum"
	caseFaultBadChunkLen    = "fault-bad-chunk-len"
	caseFaultNonZeroPadding = "fault-nonzero-padding"
)

var caseOrder = []string{
	caseMaxBurst,
	caseHandshake,
	caseGracefulClose,
	casePeerAbort,
	caseRejectMismatch,
	caseRetransmission,
	caseReorder,
	caseHighRTT,
	caseFragmentation,
	caseFaultChecksum,
	caseFaultBadChunkLen,
	caseFaultNonZeroPadding,
}

type scenarioResult struct {
	CaseName        string
	Profile         networkProfile
	Forward         int
	Reverse         int
	ListenerOutcome outcome
	DialerOutcome   outcome
	ListenerClose   string
	DialerClose     string
	Passed          bool
	Errored         bool
	Details         string
	WireLog         string
	Iteration       int
	Metrics         resultMetrics
}

func runCases(ctx context.Context, caseNames []string, seed int64, repeat int, timeout time.Duration, outDir string, lf logging.LoggerFactory) ([]scenarioResult, error) {
	names := resolveCaseNames(caseNames)
	if len(names) == 0 {
		return nil, errNoCases
	}
	resolvedSeed := resolveSeed(seed)

	defs := make([]caseDefinition, 0, len(names))
	for _, name := range names {
		def, err := caseDefinitionFor(name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	var results []scenarioResult
	for _, def := range defs {
		res := runCase(ctx, resolvedSeed, repeat, timeout, outDir, def, lf)
		results = append(results, res...)
	}

	return results, nil
}

// resolveCaseNames accepts "all" for every case.
func resolveCaseNames(names []string) []string {
	normalized := normalizeCases(names)
	if len(normalized) == 0 {
		return []string{caseMaxBurst}
	}
	for _, name := range normalized {
		if name == "all" {
			return CaseNames()
		}
	}

	return normalized
}

// normalizeCases trims, splits comma separated entries and removes
// duplicates, keeping the first occurrence.
func normalizeCases(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var ordered []string
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			trimmed := strings.TrimSpace(name)
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			ordered = append(ordered, trimmed)
		}
	}

	return ordered
}
