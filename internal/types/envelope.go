package types

import "time"

// Inbound is a tagged envelope for one UDP datagram read off a media port
// (spec §4.1), with Kind holding one of demux.Kind's string values.
// Nothing builds or reads it: the media port classifies each datagram with
// demux.Classify and dispatches on the returned demux.Kind directly.
type Inbound struct {
	Now       time.Time
	Transport FourTuple
	Kind      string
	Bytes     []byte
}

// Outbound is a raw UDP send collapsed back from any handler lane
// (spec §4.1: "raw bytes from any of the three lanes collapse back into
// untyped UDP sends").
type Outbound struct {
	Transport FourTuple
	Bytes     []byte
}
