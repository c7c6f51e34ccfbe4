// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import (
	"fmt"
	"path/filepath"
)

func packetLogPath(outDir, caseName string, iteration int) string {
	if outDir == "" {
		return ""
	}

	filename := fmt.Sprintf("iter_%d.jsonl", iteration)

	return filepath.Join(outDir, "packets", caseName, filename)
}
