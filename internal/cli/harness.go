// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package cli

import (
	"strings"

	"github.com/pion/sctpsock/harness"
	"github.com/spf13/cobra"
)

func newHarnessCmd(root *rootOptions) *cobra.Command {
	opts := harness.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "harness",
		Short: "Run loopback conformance cases over a virtual network",
		RunE: func(cmd *cobra.Command, args []string) error {
			lf, err := newLoggerFactory(root.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.LoggerFactory = lf

			return harness.Run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVar(
		&opts.Cases,
		"cases",
		opts.Cases,
		"cases to run (comma-separated, or all): "+strings.Join(harness.CaseNames(), ", "),
	)
	cmd.Flags().StringVar(&opts.Timeout, "timeout", opts.Timeout, "timeout for each case iteration")
	cmd.Flags().Int64Var(&opts.Seed, "seed", opts.Seed, "random seed (0=default)")
	cmd.Flags().StringVar(&opts.JUnitPath, "out", opts.JUnitPath, "path to write JUnit XML results")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", opts.OutDir, "directory for JSON reports and packet logs")
	cmd.Flags().StringVar(&opts.PprofCPU, "pprof-cpu", opts.PprofCPU, "write a CPU profile to this path")
	cmd.Flags().StringVar(&opts.PprofHeap, "pprof-heap", opts.PprofHeap, "write a heap profile to this path")
	cmd.Flags().StringVar(&opts.PprofAllocs, "pprof-allocs", opts.PprofAllocs, "write an allocs profile to this path")
	cmd.Flags().IntVar(&opts.Repeat, "repeat", opts.Repeat, "number of times to run each case (>=1)")

	return cmd
}
