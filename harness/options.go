// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package harness runs loopback conformance scenarios: pairs of sockets talking
// over a virtual network with wire validation and fault injection.
package harness

import "github.com/pion/logging"

const DefaultTimeout = "2m"

type Options struct {
	Cases       []string
	Timeout     string
	Seed        int64
	JUnitPath   string
	OutDir      string
	PprofCPU    string
	PprofHeap   string
	PprofAllocs string
	Repeat      int
	// LoggerFactory is used for the router, endpoints and sockets. Defaults
	// to logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory
}

func DefaultOptions() Options {
	return Options{
		Cases:   []string{caseMaxBurst},
		Timeout: DefaultTimeout,
		Repeat:  1,
	}
}

// CaseNames returns every known scenario case in a stable order.
func CaseNames() []string {
	return append([]string(nil), caseOrder...)
}
