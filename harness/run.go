// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pion/logging"
	"go.uber.org/multierr"
)

const defaultSeed int64 = 1

// Run executes the selected cases and writes the requested reports. It
// returns an error wrapping errScenarioFailed when a case did not pass.
func Run(ctx context.Context, opts Options) error {
	return run(ctx, opts, os.Stdout)
}

func run(ctx context.Context, opts Options, out io.Writer) (err error) {
	if opts.Repeat <= 0 {
		return errInvalidRepeat
	}
	timeout, err := parseTimeout(opts.Timeout)
	if err != nil {
		return err
	}
	names := resolveCaseNames(opts.Cases)
	for _, name := range names {
		if _, err := caseDefinitionFor(name); err != nil {
			return err
		}
	}
	lf := opts.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	prof, err := startProfiler(opts)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, prof.Stop())
	}()

	seed := resolveSeed(opts.Seed)
	results, err := runCases(ctx, names, seed, opts.Repeat, timeout, opts.OutDir, lf)
	if err != nil {
		return err
	}

	printResults(out, results)

	if err := writeArtifacts(opts, seed, names, results, timeout); err != nil {
		return err
	}
	if err := writeJUnitReport(opts.JUnitPath, results); err != nil {
		return err
	}

	if failures := countFailures(results); failures > 0 {
		return fmt.Errorf("%w: %d failing cases", errScenarioFailed, failures)
	}

	return nil
}

func printResults(out io.Writer, results []scenarioResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "harness: no cases executed")
		return
	}

	for _, res := range results {
		label := res.CaseName
		if res.Iteration > 1 {
			label = fmt.Sprintf("%s#%d", label, res.Iteration)
		}
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(out, "[%s] %s :: forward=%d reverse=%d listener=%s dialer=%s\n",
			label, status, res.Forward, res.Reverse, res.ListenerOutcome, res.DialerOutcome,
		)
		if !res.Passed {
			_, _ = fmt.Fprintf(out, "    %s\n", res.Details)
		}
	}
}

func countFailures(results []scenarioResult) int {
	failures := 0
	for _, res := range results {
		if !res.Passed {
			failures++
		}
	}

	return failures
}

func resolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}

	return defaultSeed
}

func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultTimeout
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("%w: %s", errInvalidTimeout, raw)
	}

	return parsed, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}
