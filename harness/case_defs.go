// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package harness

import "fmt"

// scenario is what a case does once both sockets exist.
type scenario int

const (
	// scenarioBurst sends a seeded number of messages in both directions.
	scenarioBurst scenario = iota
	// scenarioHandshake connects and exchanges one message each way.
	scenarioHandshake
	// scenarioGracefulClose sends, then ends the dialer's write side.
	scenarioGracefulClose
	// scenarioPeerAbort sends, then destroys the dialer.
	scenarioPeerAbort
	// scenarioReject points the listener at another peer port.
	scenarioReject
)

func (s scenario) String() string {
	switch s {
	case scenarioBurst:
		return "burst"
	case scenarioHandshake:
		return "handshake"
	case scenarioGracefulClose:
		return "graceful-close"
	case scenarioPeerAbort:
		return "peer-abort"
	case scenarioReject:
		return "reject"
	default:
		return fmt.Sprintf("scenario(%d)", int(s))
	}
}

type casePolicy struct {
	MinForward            int
	MinReverse            int
	MinPPS                float64
	AllowWireErrors       bool
	AllowRunError         bool
	RequireChecksumErrors bool
	RequireParseErrors    bool
	// ListenerOutcome and DialerOutcome are the socket states expected when
	// the scenario ends. Empty means any.
	ListenerOutcome outcome
	DialerOutcome   outcome
	// RequireChunks lists chunk types that must appear on the wire.
	RequireChunks []string
}

type caseDefinition struct {
	Name     string
	Scenario scenario
	Profile  networkProfile
	Policy   casePolicy
	Fault    *faultSpec
	// Messages fixes the per-direction message count; zero draws it from
	// the seed.
	Messages       int
	PayloadSize    int
	MaxMessageSize uint32
}

func defaultPolicy() casePolicy {
	return casePolicy{
		MinForward:      minBurstPackets,
		MinReverse:      minBurstPackets,
		MinPPS:          minPacketsPerSecond,
		ListenerOutcome: outcomeConnected,
		DialerOutcome:   outcomeConnected,
	}
}

func faultPolicy(requireChecksum, requireParse bool) casePolicy {
	return casePolicy{
		AllowWireErrors:       true,
		AllowRunError:         true,
		RequireChecksumErrors: requireChecksum,
		RequireParseErrors:    requireParse,
	}
}

var caseDefinitions = map[string]caseDefinition{
	caseMaxBurst: {
		Name:    caseMaxBurst,
		Profile: networkProfile{Name: caseMaxBurst},
		Policy:  defaultPolicy(),
	},
	caseHandshake: {
		Name:     caseHandshake,
		Scenario: scenarioHandshake,
		Profile:  networkProfile{Name: caseHandshake},
		Policy: casePolicy{
			MinForward:      1,
			MinReverse:      1,
			ListenerOutcome: outcomeConnected,
			DialerOutcome:   outcomeConnected,
			RequireChunks:   []string{"INIT", "INIT_ACK", "COOKIE_ECHO", "COOKIE_ACK"},
		},
		Messages: 1,
	},
	caseGracefulClose: {
		Name:     caseGracefulClose,
		Scenario: scenarioGracefulClose,
		Profile:  networkProfile{Name: caseGracefulClose},
		Policy: casePolicy{
			MinForward:      16,
			ListenerOutcome: outcomeEnded,
			DialerOutcome:   outcomeEnded,
			RequireChunks:   []string{"SHUTDOWN", "SHUTDOWN_ACK", "SHUTDOWN_COMPLETE"},
		},
		Messages: 16,
	},
	casePeerAbort: {
		Name:     casePeerAbort,
		Scenario: scenarioPeerAbort,
		Profile:  networkProfile{Name: casePeerAbort},
		Policy: casePolicy{
			MinForward:      16,
			ListenerOutcome: outcomeLost,
			DialerOutcome:   outcomeAborted,
			RequireChunks:   []string{"ABORT"},
		},
		Messages: 16,
	},
	caseRejectMismatch: {
		Name:     caseRejectMismatch,
		Scenario: scenarioReject,
		Profile:  networkProfile{Name: caseRejectMismatch},
		Policy: casePolicy{
			ListenerOutcome: outcomeWaiting,
			DialerOutcome:   outcomeLost,
			RequireChunks:   []string{"ABORT"},
		},
	},
	caseRetransmission: {
		Name:    caseRetransmission,
		Profile: lossProfile(),
		Policy:  defaultPolicy(),
	},
	caseReorder: {
		Name:    caseReorder,
		Profile: reorderProfile(),
		Policy:  defaultPolicy(),
	},
	caseHighRTT: {
		Name:    caseHighRTT,
		Profile: highRTTProfile(),
		Policy:  defaultPolicy(),
	},
	caseFragmentation: {
		Name:           caseFragmentation,
		Profile:        networkProfile{Name: caseFragmentation},
		Policy:         defaultPolicy(),
		PayloadSize:    8192,
		MaxMessageSize: 16384,
	},
	caseFaultChecksum: {
		Name:    caseFaultChecksum,
		Profile: networkProfile{Name: caseFaultChecksum},
		Policy:  faultPolicy(true, false),
		Fault:   &faultSpec{Mode: faultModeChecksum, Every: 7},
	},
	caseFaultBadChunkLen: {
		Name:    caseFaultBadChunkLen,
		Profile: networkProfile{Name: caseFaultBadChunkLen},
		Policy:  faultPolicy(false, true),
		Fault:   &faultSpec{Mode: faultModeBadChunkLen, Every: 7},
	},
	caseFaultNonZeroPadding: {
		Name:    caseFaultNonZeroPadding,
		Profile: networkProfile{Name: caseFaultNonZeroPadding},
		Policy:  faultPolicy(false, true),
		Fault:   &faultSpec{Mode: faultModeNonZeroPadding, Every: 7},
		// Force non-4-byte-aligned chunks so padding bytes exist to corrupt.
		PayloadSize: 1201,
	},
}

func caseDefinitionFor(name string) (caseDefinition, error) {
	if def, ok := caseDefinitions[name]; ok {
		return def, nil
	}

	return caseDefinition{}, fmt.Errorf("%w: %s", errUnknownCase, name)
}

func lookupCaseDefinition(name string) (caseDefinition, bool) {
	def, ok := caseDefinitions[name]

	return def, ok
}
