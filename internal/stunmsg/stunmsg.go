// Package stunmsg parses and builds the STUN messages the ICE admission
// path needs (spec §4.2): Binding Request validation, short-term
// MESSAGE-INTEGRITY, FINGERPRINT, and XOR-MAPPED-ADDRESS. It wraps
// github.com/pion/stun/v3 the way the teacher's go.mod pulls it in for
// pion/ice; the ICE-specific attributes (PRIORITY, USE-CANDIDATE,
// ICE-CONTROLLING/CONTROLLED) are raw RFC 8445 attribute types that
// pion/ice itself defines internally — declared here directly since this
// SFU hand-rolls ICE-lite admission rather than running a full ice.Agent
// (spec §6, SPEC_FULL domain-stack table).
package stunmsg

import (
	"errors"
	"net"

	"github.com/pion/stun/v3"
)

// RFC 8445 ICE attribute types, not exported by pion/stun's generic package.
const (
	attrPriority        stun.AttrType = 0x0024
	attrUseCandidate    stun.AttrType = 0x0025
	attrICEControlled   stun.AttrType = 0x8029
	attrICEControlling  stun.AttrType = 0x802a
)

// ErrTruncated is returned for a datagram that fails to decode as STUN
// (spec §7 InvalidPacket).
var ErrTruncated = errors.New("stunmsg: truncated or invalid encoding")

// Parse decodes a raw STUN datagram.
func Parse(raw []byte) (*stun.Message, error) {
	m := &stun.Message{Raw: append([]byte(nil), raw...)}
	if err := m.Decode(); err != nil {
		return nil, ErrTruncated
	}
	return m, nil
}

// IsBindingRequest reports whether m is a Binding Request.
func IsBindingRequest(m *stun.Message) bool {
	return m.Type == stun.BindingRequest
}

// Username extracts the USERNAME attribute, if present.
func Username(m *stun.Message) (string, bool) {
	var u stun.Username
	if err := u.GetFrom(m); err != nil {
		return "", false
	}
	return string(u), true
}

// HasUseCandidate reports whether the USE-CANDIDATE attribute is present.
func HasUseCandidate(m *stun.Message) bool {
	return m.Contains(attrUseCandidate)
}

// HasPriority reports whether the PRIORITY attribute is present (spec
// §4.3 step 1: requests lacking it are rejected).
func HasPriority(m *stun.Message) bool {
	return m.Contains(attrPriority)
}

// ControlRole reports which of ICE-CONTROLLING/ICE-CONTROLLED (if either)
// is present. Both being present, or neither, is the caller's job to reject.
func ControlRole(m *stun.Message) (controlling, controlled bool) {
	return m.Contains(attrICEControlling), m.Contains(attrICEControlled)
}

// CheckIntegrity verifies MESSAGE-INTEGRITY under the given short-term
// password (spec §4.3 step 2; §7 IntegrityFailure).
func CheckIntegrity(m *stun.Message, password string) error {
	return stun.NewShortTermIntegrity(password).Check(m)
}

// BuildBindingSuccess builds a Binding Success response carrying
// XOR-MAPPED-ADDRESS=peerAddr, MESSAGE-INTEGRITY under localPassword and
// FINGERPRINT (spec §4.3 step 4, §8 testable property 5).
func BuildBindingSuccess(txID [stun.TransactionIDSize]byte, peerAddr *net.UDPAddr, localPassword string) ([]byte, error) {
	m := new(stun.Message)
	m.TransactionID = txID
	if err := m.Build(
		stun.BindingSuccess,
		&stun.XORMappedAddress{IP: peerAddr.IP, Port: peerAddr.Port},
		stun.NewShortTermIntegrity(localPassword),
		stun.Fingerprint,
	); err != nil {
		return nil, err
	}
	return m.Raw, nil
}

// BuildReflexiveSuccess is the same response used for a server-reflexive
// probe that carries no USERNAME (spec §4.3 step 2): a Binding Success
// with XOR-MAPPED-ADDRESS but, per RFC 5389, still FINGERPRINT; there is
// no Candidate to sign MESSAGE-INTEGRITY with.
func BuildReflexiveSuccess(txID [stun.TransactionIDSize]byte, peerAddr *net.UDPAddr) ([]byte, error) {
	m := new(stun.Message)
	m.TransactionID = txID
	if err := m.Build(
		stun.BindingSuccess,
		&stun.XORMappedAddress{IP: peerAddr.IP, Port: peerAddr.Port},
		stun.Fingerprint,
	); err != nil {
		return nil, err
	}
	return m.Raw, nil
}
