// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunValidatesOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr error
	}{
		{"repeat", func(o *Options) { o.Repeat = 0 }, errInvalidRepeat},
		{"timeout", func(o *Options) { o.Timeout = "soon" }, errInvalidTimeout},
		{"negative timeout", func(o *Options) { o.Timeout = "-1s" }, errInvalidTimeout},
		{"unknown case", func(o *Options) { o.Cases = []string{"max-burst", "nope"} }, errUnknownCase},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts := DefaultOptions()
			tc.mutate(&opts)
			require.ErrorIs(t, run(context.Background(), opts, &bytes.Buffer{}), tc.wantErr)
		})
	}
}

func TestParseTimeout(t *testing.T) {
	t.Parallel()

	got, err := parseTimeout("")
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, got)

	got, err = parseTimeout(" 15s ")
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, got)
}

func TestResolveSeed(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultSeed, resolveSeed(0))
	require.Equal(t, int64(9), resolveSeed(9))
}

func TestPrintResults(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	printResults(&out, sampleResults())
	require.Contains(t, out.String(), "[handshake] PASS :: forward=1 reverse=1 listener=connected dialer=connected")
	require.Contains(t, out.String(), "[peer-abort#2] FAIL")
	require.Contains(t, out.String(), "assert=listener=connected!=lost")

	out.Reset()
	printResults(&out, nil)
	require.Equal(t, "harness: no cases executed\n", out.String())
}

func TestCountFailures(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, countFailures(sampleResults()))
}
