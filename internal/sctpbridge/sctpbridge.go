// Package sctpbridge maps one DTLS connection to one SCTP association
// and surfaces DataChannel stream traffic (spec §4.5). Like dtlsbridge,
// it wraps github.com/pion/sctp's connection-oriented Association/Stream
// API (not the sans-io handle()/poll_transmit() shape spec §4.5
// describes) behind a small goroutine-per-association bridge; see
// DESIGN.md for the rationale shared with dtlsbridge.
package sctpbridge

import (
	"fmt"
	"io"
	"time"

	"github.com/pion/logging"
	"github.com/pion/sctp"
)

// PPID mirrors the DCEP/DataChannel payload protocol identifiers
// (spec §4.5/§6).
type PPID uint32

const (
	PPIDDcep        PPID = 50
	PPIDString      PPID = 51
	PPIDBinary      PPID = 53
	PPIDStringEmpty PPID = 56
	PPIDBinaryEmpty PPID = 57
)

// MessageType is a DataChannel message's payload kind (spec §4.5).
type MessageType int

const (
	MessageControl MessageType = iota
	MessageText
	MessageBinary
	MessageNone
)

// PPIDFor implements the PPID table of spec §4.5:
//
//	msg type  len>0    len=0
//	Text      String   StringEmpty
//	Binary    Binary   BinaryEmpty
//	Control   Dcep     Dcep
func PPIDFor(t MessageType, length int) PPID {
	switch t {
	case MessageText:
		if length == 0 {
			return PPIDStringEmpty
		}
		return PPIDString
	case MessageBinary:
		if length == 0 {
			return PPIDBinaryEmpty
		}
		return PPIDBinary
	default:
		return PPIDDcep
	}
}

// ReliabilityParams mirrors a DataChannel's negotiated reliability
// (spec §4.5: Outbound{ordered, reliable, max_rtx_count, max_rtx_millis}).
type ReliabilityParams struct {
	Ordered      bool
	Reliable     bool
	MaxRtxCount  *uint32
	MaxRtxMillis *uint32
}

// EventKind tags a bridge event.
type EventKind int

const (
	EventAssociationEstablished EventKind = iota
	EventStreamMessage
	EventClosed
)

// Event is what Endpoint.Events delivers.
type Event struct {
	Kind     EventKind
	StreamID uint16
	PPID     PPID
	Data     []byte
	Err      error
}

// Role mirrors dtlsbridge.Role: whichever side dialed DTLS also dials SCTP.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Config bundles what an Endpoint needs from process-wide configuration.
type Config struct {
	MaxMessageSize uint32
	LoggerFactory  logging.LoggerFactory
}

// Endpoint is the per-Transport SCTP association state (spec §3
// "sctp_endpoint + association_handle?, stream_id?").
type Endpoint struct {
	cfg    *Config
	conn   *pipeConn
	assoc  *sctp.Association
	events chan Event

	streams map[uint16]*sctp.Stream
}

// NewEndpoint starts establishing an SCTP association over the DTLS
// connection's decrypted application-data stream (spec §4.5).
func NewEndpoint(cfg *Config, role Role) *Endpoint {
	e := &Endpoint{
		cfg:     cfg,
		conn:    newPipeConn(),
		events:  make(chan Event, 32),
		streams: make(map[uint16]*sctp.Stream),
	}

	go e.run(role)

	return e
}

func (e *Endpoint) run(role Role) {
	sctpCfg := sctp.Config{
		NetConn:              e.conn,
		MaxReceiveBufferSize: e.cfg.MaxMessageSize,
		LoggerFactory:        e.cfg.LoggerFactory,
	}

	var assoc *sctp.Association
	var err error
	if role == RoleClient {
		assoc, err = sctp.Client(sctpCfg)
	} else {
		assoc, err = sctp.Server(sctpCfg)
	}
	if err != nil {
		e.events <- Event{Kind: EventClosed, Err: fmt.Errorf("sctpbridge: associate: %w", err)}
		return
	}
	e.assoc = assoc
	e.events <- Event{Kind: EventAssociationEstablished}

	for {
		stream, err := assoc.AcceptStream()
		if err != nil {
			if err != io.EOF {
				e.events <- Event{Kind: EventClosed, Err: err}
			}
			return
		}
		e.streams[stream.StreamIdentifier()] = stream
		go e.readStream(stream)
	}
}

func (e *Endpoint) readStream(stream *sctp.Stream) {
	buf := make([]byte, e.cfg.MaxMessageSize)
	for {
		n, ppi, err := stream.ReadSCTP(buf)
		if err != nil {
			return
		}
		e.events <- Event{
			Kind:     EventStreamMessage,
			StreamID: stream.StreamIdentifier(),
			PPID:     PPID(ppi),
			Data:     append([]byte(nil), buf[:n]...),
		}
	}
}

// Feed delivers bytes decrypted from DTLS application data into the
// association's record layer (spec §4.5 "handle(now, peer_addr, ...)").
func (e *Endpoint) Feed(_ time.Time, data []byte) {
	e.conn.feedRead(data)
}

// PollTransmit drains bytes the association wants sent over DTLS,
// already chunked per-datagram by pion/sctp (spec §4.5 "split into
// per-datagram outbound raw DTLS writes").
func (e *Endpoint) PollTransmit() [][]byte {
	return e.conn.drainWrite()
}

// Events delivers association/stream notifications non-blockingly.
func (e *Endpoint) Events() <-chan Event {
	return e.events
}

// OpenStream opens (or returns the existing) bidirectional stream for
// one DataChannel (spec §6: "one bidirectional stream per DataChannel").
func (e *Endpoint) OpenStream(streamID uint16, reliability ReliabilityParams, ppid PPID) (*sctp.Stream, error) {
	if s, ok := e.streams[streamID]; ok {
		return s, nil
	}
	if e.assoc == nil {
		return nil, fmt.Errorf("sctpbridge: open stream before association established")
	}
	stream, err := e.assoc.OpenStream(streamID, sctp.PayloadProtocolIdentifier(ppid))
	if err != nil {
		return nil, fmt.Errorf("sctpbridge: open stream: %w", err)
	}
	applyReliability(stream, reliability)
	e.streams[streamID] = stream
	go e.readStream(stream)
	return stream, nil
}

func applyReliability(stream *sctp.Stream, r ReliabilityParams) {
	switch {
	case r.Reliable:
		stream.SetReliabilityParams(false, sctp.ReliabilityTypeReliable, 0)
	case r.MaxRtxMillis != nil:
		stream.SetReliabilityParams(!r.Ordered, sctp.ReliabilityTypeTimed, *r.MaxRtxMillis)
	default:
		var n uint32
		if r.MaxRtxCount != nil {
			n = *r.MaxRtxCount
		}
		stream.SetReliabilityParams(!r.Ordered, sctp.ReliabilityTypeRexmit, n)
	}
}

// Write sends a DataChannel message on streamID, rejecting payloads that
// exceed the configured max message size (spec §4.5 ResourceLimit,
// §8 scenario 6).
func (e *Endpoint) Write(streamID uint16, reliability ReliabilityParams, ppid PPID, payload []byte) error {
	if uint32(len(payload)) > e.cfg.MaxMessageSize {
		return fmt.Errorf("sctpbridge: payload %d exceeds max message size %d: %w", len(payload), e.cfg.MaxMessageSize, ErrResourceLimit)
	}
	stream, err := e.OpenStream(streamID, reliability, ppid)
	if err != nil {
		return err
	}
	_, err = stream.WriteSCTP(payload, sctp.PayloadProtocolIdentifier(ppid))
	return err
}

// ErrResourceLimit is spec §7's ResourceLimit kind for oversize SCTP writes.
var ErrResourceLimit = fmt.Errorf("sctpbridge: message exceeds max_message_size")

// Close tears the association down (spec §5 shutdown).
func (e *Endpoint) Close() error {
	if e.assoc != nil {
		return e.assoc.Close()
	}
	return e.conn.Close()
}
