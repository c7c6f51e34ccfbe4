// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package config

import "errors"

var (
	errInvalidProfilePath = errors.New("config: invalid profile path")
	errUnknownSection     = errors.New("config: unknown section")
	errUnknownParam       = errors.New("config: unknown parameter")
)
