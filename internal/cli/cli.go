// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func Execute(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		return err
	}

	return nil
}

func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

type rootOptions struct {
	LogLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{LogLevel: defaultLogLevel}
	cmd := &cobra.Command{
		Use:   "sctpsock",
		Short: "sctpsock pipes stdin and stdout over an SCTP association",
		Long: `sctpsock opens a byte-stream socket over an SCTP association carried in UDP,
either dialing a peer or listening for one, and runs loopback conformance
cases over a virtual network.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(
		&opts.LogLevel,
		"log-level",
		opts.LogLevel,
		"log level (disabled|error|warn|info|debug|trace)",
	)

	cmd.AddCommand(newConnectCmd(opts))
	cmd.AddCommand(newListenCmd(opts))
	cmd.AddCommand(newHarnessCmd(opts))

	return cmd
}
