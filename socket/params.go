// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import (
	"maps"
	"strconv"
	"time"
)

// Recognized parameter keys.
const (
	ParamProtocol          = "protocol"
	ParamStream            = "stream"
	ParamUnordered         = "unordered"
	ParamContext           = "context"
	ParamCookieLife        = "cookie_life"
	ParamSackTimeout       = "sack_timeout"
	ParamSackFreq          = "sack_freq"
	ParamHeartbeatInterval = "hb_interval"
)

var (
	assocInfoKeys    = []string{ParamCookieLife}
	peerAddrInfoKeys = []string{ParamSackTimeout, ParamSackFreq, ParamHeartbeatInterval}
)

// Params is a bag of protocol parameters keyed by name.
type Params map[string]any

// Clone returns a shallow copy. A nil bag clones to an empty one.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)

	return out
}

// Merge copies every entry of other into p.
func (p Params) Merge(other Params) {
	maps.Copy(p, other)
}

// Pick returns the entries whose key is listed in keys.
func (p Params) Pick(keys ...string) Params {
	out := make(Params, len(keys))
	for _, key := range keys {
		if value, ok := p[key]; ok {
			out[key] = value
		}
	}

	return out
}

// Uint32 reads key as an unsigned integer.
func (p Params) Uint32(key string) (uint32, bool) {
	n, ok := toInt64(p[key])
	if !ok || n < 0 || n > int64(^uint32(0)) {
		return 0, false
	}

	return uint32(n), true
}

// Uint16 reads key as a 16 bit unsigned integer.
func (p Params) Uint16(key string) (uint16, bool) {
	n, ok := toInt64(p[key])
	if !ok || n < 0 || n > int64(^uint16(0)) {
		return 0, false
	}

	return uint16(n), true
}

// Bool reads key as a boolean.
func (p Params) Bool(key string) (bool, bool) {
	switch v := p[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

// Millis reads key as a duration expressed in milliseconds. A time.Duration
// value is taken as is.
func (p Params) Millis(key string) (time.Duration, bool) {
	if d, ok := p[key].(time.Duration); ok {
		return d, true
	}
	n, ok := toInt64(p[key])
	if !ok || n < 0 {
		return 0, false
	}

	return time.Duration(n) * time.Millisecond, true
}

// SetAssocInfo copies the cookie lifetime onto the bound endpoint. Other keys
// are ignored. Without an endpoint it does nothing.
func (s *Socket) SetAssocInfo(p Params) {
	s.mu.Lock()
	ep := s.endpoint.ep
	s.mu.Unlock()
	if ep == nil {
		return
	}

	ep.Configure(p.Pick(assocInfoKeys...))
}

// SetDefaultSendParams merges p into the parameters applied to every write.
func (s *Socket) SetDefaultSendParams(p Params) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendDefaults.Merge(p)
}

// DefaultSendParams returns a copy of the current per-write defaults.
func (s *Socket) DefaultSendParams() Params {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sendDefaults.Clone()
}

// SetPeerAddrParams copies the SACK and heartbeat settings onto the bound
// association. The values apply to the whole association, not to a single
// peer address. Without an association it does nothing.
func (s *Socket) SetPeerAddrParams(p Params) {
	s.mu.Lock()
	assoc := s.assoc
	s.mu.Unlock()
	if assoc == nil {
		return
	}

	assoc.Configure(p.Pick(peerAddrInfoKeys...))
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uint64ToInt64(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uint64ToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(n, 64)
			if ferr != nil {
				return 0, false
			}
			return floatToInt64(f)
		}
		return parsed, true
	default:
		return 0, false
	}
}

func uint64ToInt64(n uint64) (int64, bool) {
	if n > 1<<62 {
		return 0, false
	}

	return int64(n), true //nolint:gosec // bounded above
}

func floatToInt64(f float64) (int64, bool) {
	if f != f || f > 1<<62 || f < -(1<<62) { //nolint:gocritic // NaN check
		return 0, false
	}

	return int64(f), true
}
