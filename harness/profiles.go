// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import "time"

// networkProfile shapes the virtual link. Unordered makes both sockets send
// with the unordered flag.
type networkProfile struct {
	MinDelay    time.Duration
	MaxJitter   time.Duration
	DropPercent float64
	Unordered   bool
	Name        string
}

func lossProfile() networkProfile {
	return networkProfile{
		MinDelay:    40 * time.Millisecond,
		MaxJitter:   20 * time.Millisecond,
		DropPercent: 2.0,
		Name:        "retransmission",
	}
}

func reorderProfile() networkProfile {
	return networkProfile{
		MinDelay:    15 * time.Millisecond,
		MaxJitter:   25 * time.Millisecond,
		DropPercent: 1.5, // light loss with reordering
		Unordered:   true,
		Name:        "reorder",
	}
}

func highRTTProfile() networkProfile {
	return networkProfile{
		MinDelay:  180 * time.Millisecond,
		MaxJitter: 60 * time.Millisecond,
		Unordered: true,
		Name:      "high-rtt",
	}
}
