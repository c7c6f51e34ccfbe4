// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package socket

import "github.com/pion/logging"

// EndpointOptions describes the local binding requested by Connect.
type EndpointOptions struct {
	LocalAddress []string
	LocalPort    int
	MIS          uint16
	OS           uint16
}

// AssociateOptions describes an outbound association.
type AssociateOptions struct {
	RemoteAddress string
	RemotePort    int
	MIS           uint16
	OS            uint16
}

// EndpointFactory allocates an endpoint bound to the requested local address.
type EndpointFactory func(opts EndpointOptions, log logging.LeveledLogger) (Endpoint, error)

// Endpoint is a bound local address/port able to create or accept associations.
type Endpoint interface {
	// Associate starts an outbound association. It returns before the
	// handshake completes; completion is reported by the association.
	Associate(opts AssociateOptions) (Association, error)
	// OnAssociation registers fn for every inbound association whose
	// handshake completed. The returned func removes the registration.
	OnAssociation(fn func(Association)) (cancel func())
	// Configure applies endpoint level parameters such as cookie_life.
	Configure(p Params)
	// LocalAddr returns the bound address.
	LocalAddr() Addr
	// Destroy releases the binding and every association it owns.
	Destroy() error
}

// Association is one live connection to a peer.
type Association interface {
	// Send queues data with the given parameters. done is called once.
	Send(data []byte, params Params, done func(error))
	// Receive pops the next pending message for streamID, or nil.
	Receive(streamID uint16) []byte
	// Shutdown starts a graceful shutdown. done is called once.
	Shutdown(done func(error))
	// Abort tears the association down immediately.
	Abort(reason error) error
	// Configure applies association level parameters such as hb_interval.
	Configure(p Params)
	// RemoteAddr returns the primary peer address.
	RemoteAddr() Addr
	// Subscribe installs the notification sink. Notifications raised before
	// Subscribe are delivered once it is called.
	Subscribe(fn func(Notification))
}

// Notification is an event raised by an association.
type Notification interface {
	notification()
}

// CommUp reports that the handshake completed.
type CommUp struct{}

// DataArrived reports that a message is pending on a stream.
type DataArrived struct {
	StreamID uint16
}

// ShutdownComplete reports that the graceful shutdown finished.
type ShutdownComplete struct{}

// CommLost reports that the association was lost or aborted.
type CommLost struct {
	Event  LostEvent
	Reason string
}

// CommError reports a non fatal protocol error.
type CommError struct {
	Err error
}

func (CommUp) notification()           {}
func (DataArrived) notification()      {}
func (ShutdownComplete) notification() {}
func (CommLost) notification()         {}
func (CommError) notification()        {}

// LostEvent is the association change code carried by CommLost.
type LostEvent uint16

// Association change codes, values as in RFC 6458 sac_state.
const (
	EventCommLost     LostEvent = 1
	EventRestart      LostEvent = 2
	EventShutdownComp LostEvent = 3
	EventCantStrAssoc LostEvent = 4
)

func (e LostEvent) String() string {
	switch e {
	case EventCommLost:
		return "COMM_LOST"
	case EventRestart:
		return "RESTART"
	case EventShutdownComp:
		return "SHUTDOWN_COMP"
	case EventCantStrAssoc:
		return "CANT_STR_ASSOC"
	default:
		return "UNKNOWN"
	}
}
