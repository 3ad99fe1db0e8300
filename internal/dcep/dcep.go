// Package dcep implements the DataChannel handler of spec §4.6: parsing
// inbound DATA_CHANNEL_OPEN on an SCTP Control stream, synthesizing the
// ACK, and framing application messages for the gateway. It wraps
// github.com/pion/datachannel's DCEP message types directly rather than
// re-parsing the RFC 8832 wire format by hand.
package dcep

import (
	"fmt"

	"github.com/pion/datachannel"

	"github.com/pion/sfu/internal/sctpbridge"
)

// EventKind tags an ApplicationMessage event (spec §4.6).
type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
)

// ApplicationMessage is what the DataChannel handler hands to the
// gateway for in-band signaling (spec §4.6).
type ApplicationMessage struct {
	StreamID uint16
	Event    EventKind
	Payload  []byte
}

// HandleControl parses a DCEP message received on a Control stream
// (PPID=Dcep). If it is DATA_CHANNEL_OPEN, it returns the ACK bytes to
// send back on the same stream plus an Open ApplicationMessage; any
// other Control message is ignored and yields neither ACK bytes nor an
// ApplicationMessage.
func HandleControl(streamID uint16, raw []byte) (ackBytes []byte, msg *ApplicationMessage, err error) {
	parsed, err := datachannel.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("dcep: parse control message: %w", err)
	}

	switch parsed.(type) {
	case *datachannel.ChannelOpen:
		ack := &datachannel.ChannelAck{}
		ackRaw, err := ack.Marshal()
		if err != nil {
			return nil, nil, fmt.Errorf("dcep: marshal ack: %w", err)
		}
		return ackRaw, &ApplicationMessage{StreamID: streamID, Event: EventOpen}, nil
	default:
		// ChannelAck or an unrecognized control frame: non-destructive, no
		// ApplicationMessage emitted (spec §4.6).
		return nil, nil, nil
	}
}

// OpenReliability is the fixed DCEP ACK reliability: ordered and
// reliable (spec §4.6).
var OpenReliability = sctpbridge.ReliabilityParams{Ordered: true, Reliable: true}

// MessageReliability is the fixed reliability for outbound
// ApplicationMessage Text frames (spec §4.6).
var MessageReliability = sctpbridge.ReliabilityParams{Ordered: true, Reliable: true}

// PPIDForOutbound returns the PPID for an outbound app payload, applying
// the spec §4.5 table to Text frames per §4.6.
func PPIDForOutbound(payload []byte) sctpbridge.PPID {
	return sctpbridge.PPIDFor(sctpbridge.MessageText, len(payload))
}
