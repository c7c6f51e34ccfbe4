// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import (
	"net"
	"strconv"
)

// Address families reported by Addr.
const (
	FamilyIPv4 = "IPv4"
	FamilyIPv6 = "IPv6"
)

// Addr is an SCTP transport address.
type Addr struct {
	IP     string
	Port   int
	Family string
}

// NewAddr builds an Addr and fills in the family from ip.
func NewAddr(ip string, port int) Addr {
	return Addr{IP: ip, Port: port, Family: familyOf(ip)}
}

// Network returns "sctp".
func (a Addr) Network() string { return "sctp" }

func (a Addr) String() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// IsZero reports whether the address was never populated.
func (a Addr) IsZero() bool {
	return a.IP == "" && a.Port == 0
}

func familyOf(ip string) string {
	parsed := net.ParseIP(ip)
	switch {
	case parsed == nil:
		return ""
	case parsed.To4() != nil:
		return FamilyIPv4
	default:
		return FamilyIPv6
	}
}

// filterIPv4 keeps the IPv4 literals of addrs. Anything else is dropped
// without an error.
func filterIPv4(addrs []string) (kept, dropped []string) {
	for _, addr := range addrs {
		if familyOf(addr) == FamilyIPv4 {
			kept = append(kept, addr)
			continue
		}
		dropped = append(dropped, addr)
	}

	return kept, dropped
}
