// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pion/logging"
)

func runCase(ctx context.Context, seed int64, repeat int, timeout time.Duration, outDir string, def caseDefinition, lf logging.LoggerFactory) []scenarioResult {
	results := make([]scenarioResult, 0, repeat)
	for iter := range repeat {
		iterCtx, cancel := withTimeout(ctx, timeout)
		logPath := packetLogPath(outDir, def.Name, iter+1)
		run, err := runScenario(iterCtx, def, deriveSeed(seed, iter), logPath, lf)
		cancel()

		res := scenarioResult{
			CaseName:        def.Name,
			Profile:         def.Profile,
			Iteration:       iter + 1,
			Forward:         run.forward,
			Reverse:         run.reverse,
			ListenerOutcome: run.listener,
			DialerOutcome:   run.dialer,
			ListenerClose:   run.listenerClose,
			DialerClose:     run.dialerClose,
			Metrics:         run.metrics,
			WireLog:         logPath,
		}
		res.Details = fmt.Sprintf("run=%d scenario=%s forward=%d reverse=%d listener=%s dialer=%s",
			iter+1, def.Scenario, run.forward, run.reverse, run.listener, run.dialer,
		)
		res.Errored = err != nil || hasWireErrors(run.metrics)

		passed, failures := evaluateCase(res, err, def.Policy)
		res.Passed = passed
		if err != nil {
			res.Details += fmt.Sprintf(" err=%v", err)
		}
		if len(failures) > 0 {
			res.Details += " assert=" + strings.Join(failures, ",")
		}

		results = append(results, res)
	}

	return results
}

func evaluateCase(res scenarioResult, runErr error, policy casePolicy) (bool, []string) {
	var failures []string
	if runErr != nil && !policy.AllowRunError {
		failures = append(failures, "run_error")
	}
	if policy.MinForward > 0 && res.Forward < policy.MinForward {
		failures = append(failures, fmt.Sprintf("forward=%d<%d", res.Forward, policy.MinForward))
	}
	if policy.MinReverse > 0 && res.Reverse < policy.MinReverse {
		failures = append(failures, fmt.Sprintf("reverse=%d<%d", res.Reverse, policy.MinReverse))
	}
	if policy.MinPPS > 0 && res.Metrics.PacketsPerSecond < policy.MinPPS {
		failures = append(failures, fmt.Sprintf("pps=%.2f<%.2f", res.Metrics.PacketsPerSecond, policy.MinPPS))
	}
	if res.Metrics.WireLogErrors > 0 {
		failures = append(failures, fmt.Sprintf("wire_log_errors=%d", res.Metrics.WireLogErrors))
	}
	if !policy.AllowWireErrors {
		if res.Metrics.WireChecksumErrs > 0 || res.Metrics.WireParseErrors > 0 || res.Metrics.WireShortPackets > 0 {
			failures = append(failures, fmt.Sprintf("wire_errors=%d/%d/%d",
				res.Metrics.WireChecksumErrs,
				res.Metrics.WireParseErrors,
				res.Metrics.WireShortPackets,
			))
		}
	}
	if policy.RequireChecksumErrors && res.Metrics.WireChecksumErrs == 0 {
		failures = append(failures, "checksum_errors=0")
	}
	if policy.RequireParseErrors && res.Metrics.WireParseErrors == 0 {
		failures = append(failures, "parse_errors=0")
	}
	if policy.ListenerOutcome != outcomeAny && res.ListenerOutcome != policy.ListenerOutcome {
		failures = append(failures, fmt.Sprintf("listener=%s!=%s", res.ListenerOutcome, policy.ListenerOutcome))
	}
	if policy.DialerOutcome != outcomeAny && res.DialerOutcome != policy.DialerOutcome {
		failures = append(failures, fmt.Sprintf("dialer=%s!=%s", res.DialerOutcome, policy.DialerOutcome))
	}
	for _, name := range policy.RequireChunks {
		if res.Metrics.WireChunks[name] == 0 {
			failures = append(failures, fmt.Sprintf("missing_chunk=%s", name))
		}
	}

	return len(failures) == 0, failures
}

func hasWireErrors(metrics resultMetrics) bool {
	return metrics.WireChecksumErrs > 0 || metrics.WireParseErrors > 0 || metrics.WireShortPackets > 0 || metrics.WireLogErrors > 0
}
