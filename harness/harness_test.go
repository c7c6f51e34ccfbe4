//go:build harness_integration
// +build harness_integration

// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/require"
)

const integrationTimeout = 30 * time.Second

func quietLoggers() logging.LoggerFactory {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = logging.LogLevelError

	return lf
}

func TestLifecycleCases(t *testing.T) {
	t.Parallel()

	for _, name := range []string{caseHandshake, caseGracefulClose, casePeerAbort, caseRejectMismatch} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			results, err := runCases(context.Background(), []string{name}, 7, 1, integrationTimeout, "", quietLoggers())
			require.NoError(t, err)
			require.Len(t, results, 1)
			require.True(t, results[0].Passed, results[0].Details)
		})
	}
}

func TestMaxBurstDeterministicWithoutSeed(t *testing.T) {
	t.Parallel()

	first, err := runCases(context.Background(), []string{caseMaxBurst}, 0, 1, integrationTimeout, "", quietLoggers())
	require.NoError(t, err)
	second, err := runCases(context.Background(), []string{caseMaxBurst}, 0, 1, integrationTimeout, "", quietLoggers())
	require.NoError(t, err)
	require.Len(t, first, len(second))
	for i := range first {
		require.True(t, first[i].Passed, first[i].Details)
		require.Equal(t, first[i].Metrics.Target, second[i].Metrics.Target)
		require.Equal(t, first[i].Forward, second[i].Forward)
		require.Equal(t, first[i].Reverse, second[i].Reverse)
	}
}

func TestMaxBurstRepeat(t *testing.T) {
	t.Parallel()

	results, err := runCases(context.Background(), []string{caseMaxBurst}, 123, 2, integrationTimeout, "", quietLoggers())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Iteration)
	require.Equal(t, 2, results[1].Iteration)
	require.NotEqual(t, results[0].Metrics.Target, results[1].Metrics.Target)
	for _, res := range results {
		require.True(t, res.Passed, res.Details)
		require.Equal(t, res.Metrics.Target, res.Forward)
		require.Equal(t, res.Metrics.Target, res.Reverse)
	}
}

func TestFaultChecksumIsObserved(t *testing.T) {
	t.Parallel()

	results, err := runCases(context.Background(), []string{caseFaultChecksum}, 5, 1, integrationTimeout, "", quietLoggers())
	require.NoError(t, err)
	require.True(t, results[0].Passed, results[0].Details)
	require.Positive(t, results[0].Metrics.FaultsInjected)
}

func TestRunWritesReports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Cases = []string{caseHandshake}
	opts.Timeout = integrationTimeout.String()
	opts.OutDir = dir
	opts.JUnitPath = filepath.Join(dir, "junit.xml")
	opts.LoggerFactory = quietLoggers()

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, &out))
	require.Contains(t, out.String(), "[handshake] PASS")

	for _, name := range []string{"config.json", "results.json", "seed.txt", "junit.xml", filepath.Join("packets", caseHandshake, "iter_1.jsonl")} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
}
