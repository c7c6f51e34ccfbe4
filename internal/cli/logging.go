// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pion/logging"
)

const defaultLogLevel = "error"

var errInvalidLogLevel = errors.New("cli: invalid log level")

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

// newLoggerFactory returns a factory writing to w at the named level.
func newLoggerFactory(level string, w io.Writer) (*logging.DefaultLoggerFactory, error) {
	lvl, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errInvalidLogLevel, level)
	}

	lf := logging.NewDefaultLoggerFactory()
	lf.Writer = w
	lf.DefaultLogLevel = lvl

	return lf, nil
}
