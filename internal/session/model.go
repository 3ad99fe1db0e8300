// Package session holds the data model of spec §3: Session, Endpoint,
// Transceiver, Transport, Candidate, and the SDP offer/answer machinery
// of spec §4.8. Cyclic ownership (Endpoint <-> Transport <-> Candidate)
// is modeled as indices into maps, never as mutual pointers (spec §9):
// a Transport keeps a *Candidate it was admitted through, but nothing
// points back from Candidate or Transport to the Endpoint that owns it —
// callers resolve that via state.Store's four-tuple reverse index.
package session

import (
	"time"

	"github.com/pion/sfu/internal/config"
	"github.com/pion/sfu/internal/dtlsbridge"
	"github.com/pion/sfu/internal/interceptors"
	"github.com/pion/sfu/internal/sctpbridge"
	"github.com/pion/sfu/internal/srtpengine"
	"github.com/pion/sfu/internal/types"
)

// Kind is the media type of a Transceiver.
type Kind int

const (
	KindAudio Kind = iota
	KindVideo
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "application"
	}
}

// Direction is an RTP transceiver direction (spec §3).
type Direction int

const (
	DirectionUnspecified Direction = iota
	DirectionSendRecv
	DirectionSendOnly
	DirectionRecvOnly
	DirectionInactive
)

func (d Direction) String() string {
	switch d {
	case DirectionSendRecv:
		return "sendrecv"
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	case DirectionInactive:
		return "inactive"
	default:
		return "sendrecv"
	}
}

// Reverse swaps send/recv, per spec §3's invariant that a transceiver's
// local direction is the reverse of what the peer offered.
func (d Direction) Reverse() Direction {
	switch d {
	case DirectionSendOnly:
		return DirectionRecvOnly
	case DirectionRecvOnly:
		return DirectionSendOnly
	default:
		return d
	}
}

// canSendRecv decomposes a Direction into its send/recv capability bits,
// treating Unspecified as sendrecv (RFC 3264 §5.1 default).
func (d Direction) canSendRecv() (canSend, canRecv bool) {
	switch d {
	case DirectionSendOnly:
		return true, false
	case DirectionRecvOnly:
		return false, true
	case DirectionInactive:
		return false, false
	default:
		return true, true
	}
}

// Intersect ANDs two directions' send/recv capability bits (spec §4.8's
// "Answer-direction rule": `reverse(offered) ∩ local`).
func (d Direction) Intersect(other Direction) Direction {
	s1, r1 := d.canSendRecv()
	s2, r2 := other.canSendRecv()
	send, recv := s1 && s2, r1 && r2
	switch {
	case send && recv:
		return DirectionSendRecv
	case send:
		return DirectionSendOnly
	case recv:
		return DirectionRecvOnly
	default:
		return DirectionInactive
	}
}

// DTLSRole is the negotiated `a=setup:` role for a Transport.
type DTLSRole int

const (
	DTLSRoleAuto DTLSRole = iota
	DTLSRoleClient
	DTLSRoleServer
)

// Reverse chooses our role given the peer's declared role (spec §4.8 step
// 3). A peer declaring Server (`a=setup:passive`) forces us Client; a peer
// declaring Client (`a=setup:active`) forces us Server. A peer leaving it
// open (`a=setup:actpass`, DTLSRoleAuto) ties to the conventional
// answerer's choice of becoming the DTLS client (spec §8 scenario 2: "an
// answer whose a=setup: is active if offer is actpass").
func (r DTLSRole) Reverse() DTLSRole {
	if r == DTLSRoleClient {
		return DTLSRoleServer
	}
	return DTLSRoleClient
}

func (r DTLSRole) SetupAttr(isOffer bool) string {
	if isOffer {
		return "actpass"
	}
	if r == DTLSRoleClient {
		return "active"
	}
	return "passive"
}

// RTCPFeedback mirrors an `a=rtcp-fb:` line.
type RTCPFeedback struct {
	Type      string
	Parameter string
}

// RTPCodecParameters is the subset of a codec's SDP description the
// forwarding engine needs (spec §4.8, SPEC_FULL "rtp_params codec table").
type RTPCodecParameters struct {
	PayloadType  uint8
	MimeType     string
	ClockRate    uint32
	Channels     uint16
	SDPFmtpLine  string
	RTCPFeedback []RTCPFeedback
}

// ExtMap mirrors an `a=extmap:` line.
type ExtMap struct {
	ID  int
	URI string
}

// MediaStreamID is the (stream_id, track_id) pair carried in `a=msid`.
type MediaStreamID struct {
	StreamID string
	TrackID  string
}

// Sender is the per-transceiver sender state (spec §3).
type Sender struct {
	CNAME         string
	MediaStreamID MediaStreamID
	SSRCs         []uint32
	SSRCGroups    [][]uint32 // e.g. FID groups: [primary, rtx]
}

// Transceiver is a sender/receiver pair for one mid (spec §3).
type Transceiver struct {
	Mid              string
	Kind             Kind
	Direction        Direction
	CurrentDirection Direction
	RTPParams        []RTPCodecParameters
	ExtMaps          []ExtMap
	Sender           *Sender
}

// ConnectionCredentials is what's extracted from one side of an
// offer/answer (spec §4.8 step 1).
type ConnectionCredentials struct {
	Ufrag        string
	Password     string
	Fingerprints []config.Fingerprint
	Role         DTLSRole
}

// Candidate holds the admission credentials for a prospective Endpoint
// (spec §3). It is indexed by Username() for O(1) STUN lookup and is
// shared-by-reference with the Transport it admits; nothing points back
// from here to the Endpoint.
type Candidate struct {
	SessionID  types.SessionID
	EndpointID types.EndpointID

	RemoteCreds ConnectionCredentials
	LocalCreds  ConnectionCredentials

	Offer  SessionDescription
	Answer SessionDescription

	ExpiresAt time.Time
}

// Username is the STUN USERNAME / Candidate index key: "{local}:{remote}" (spec §3).
func (c *Candidate) Username() string {
	return c.LocalCreds.Ufrag + ":" + c.RemoteCreds.Ufrag
}

// SessionDescription is an SDP offer or answer plus its JSEP type tag,
// the same shape carried over HTTP and in-band DataChannel JSON (spec §6).
type SessionDescription struct {
	Type string `json:"type"` // "offer" or "answer"
	SDP  string `json:"sdp"`
}

// Transport is the per-four-tuple live state of one Endpoint (spec §3).
type Transport struct {
	FourTuple types.FourTuple
	Candidate *Candidate

	DTLS *dtlsbridge.Endpoint
	SCTP *sctpbridge.Endpoint

	AssociationHandle *uint32
	StreamID          *uint16

	LocalSRTP  *srtpengine.Context
	RemoteSRTP *srtpengine.Context

	// Receiver is this Transport's ReceiverReport bookkeeping (spec
	// §4.10/§8 scenario 5), one per peer four-tuple.
	Receiver *interceptors.ReceiverReport
}

// Ready reports whether this Transport can forward media (spec §3
// invariant: "SRTP contexts exist iff the DTLS handshake ... completed").
func (t *Transport) Ready() bool {
	return t.LocalSRTP != nil && t.RemoteSRTP != nil
}

// Endpoint is one peer's participation in one Session (spec §3).
type Endpoint struct {
	ID        types.EndpointID
	SessionID types.SessionID

	RemoteDescription SessionDescription
	LocalDescription  SessionDescription

	Mids         []string
	Transceivers map[string]*Transceiver

	// Transports is keyed by FourTuple.Key(); one is live, extras are
	// transient during ICE migration (spec §3).
	Transports map[string]*Transport

	RenegotiationNeeded bool

	// Origin tracks the stable session_id / non-decreasing session_version
	// of our own SDP origin line (spec §4.8, testable property #6).
	OriginID      uint64
	OriginVersion uint64

	// DataChannelOpen is set once the SFU's own DCEP handshake on this
	// Endpoint's DataChannel transceiver has completed (spec §4.3
	// forwarding: "whose DataChannel is established").
	DataChannelOpen bool
}

// ClockRateForPayloadType scans every transceiver's negotiated codec
// table for pt, returning 0 if it was never negotiated (spec §4.10
// jitter needs a clock rate per RFC 3550 §6.4.1).
func (e *Endpoint) ClockRateForPayloadType(pt uint8) uint32 {
	for _, t := range e.Transceivers {
		for _, c := range t.RTPParams {
			if c.PayloadType == pt {
				return c.ClockRate
			}
		}
	}
	return 0
}

// AddMid registers mid as a new transceiver key, preserving the
// invariant that mids and transceiver keys stay in lockstep (spec §3,
// testable property #2).
func (e *Endpoint) AddMid(mid string, t *Transceiver) {
	if _, exists := e.Transceivers[mid]; exists {
		return
	}
	e.Mids = append(e.Mids, mid)
	e.Transceivers[mid] = t
}

// Session is a logical multi-party room (spec §3).
type Session struct {
	ID        types.SessionID
	Endpoints map[types.EndpointID]*Endpoint
}

func NewSession(id types.SessionID) *Session {
	return &Session{ID: id, Endpoints: make(map[types.EndpointID]*Endpoint)}
}

func NewEndpoint(sessionID types.SessionID, id types.EndpointID) *Endpoint {
	return &Endpoint{
		SessionID:    sessionID,
		ID:           id,
		Transceivers: make(map[string]*Transceiver),
		Transports:   make(map[string]*Transport),
	}
}
