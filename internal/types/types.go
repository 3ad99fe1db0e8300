// Package types holds the identifiers shared across the media-port engine:
// the four-tuple that keys a Transport, and the session/endpoint ids that
// key the server-wide state store.
package types

import (
	"fmt"
	"net"
)

// SessionID identifies a Session, unique per process.
type SessionID uint64

// EndpointID identifies an Endpoint, unique within its Session.
type EndpointID uint64

// FourTuple is the UDP-level identity of a client: (local_addr, peer_addr).
// It is the key a Transport is looked up and registered by.
type FourTuple struct {
	Local  *net.UDPAddr
	Remote *net.UDPAddr
}

// Key returns a comparable, map-safe representation of the four-tuple.
func (f FourTuple) Key() string {
	return f.Local.String() + "->" + f.Remote.String()
}

func (f FourTuple) String() string {
	return fmt.Sprintf("%s<-%s", f.Local, f.Remote)
}

// EndpointKey uniquely identifies an Endpoint within a process.
type EndpointKey struct {
	Session  SessionID
	Endpoint EndpointID
}

func (k EndpointKey) String() string {
	return fmt.Sprintf("%d/%d", k.Session, k.Endpoint)
}
