// Package interceptors implements the chainable pipeline of spec §4.10:
// per-ssrc ReceiverReport bookkeeping, pass-through SenderReport, and
// NACK/TWCC extension points. The per-ssrc jitter/loss arithmetic here is
// grounded on github.com/pion/interceptor/pkg/report's ReceiverInterceptor
// (the teacher's go.mod dependency, used by n0remac-robot-webrtc and
// emiago-diago the same way), adapted from its io.Reader-chain shape to
// the spec's synchronous read/write/handle_timeout/poll_timeout calls
// the media port's cooperative loop drives directly.
package interceptors

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const maxDropoutBits = 24 // clamp per spec §4.10 "cumulative lost clamped to 24 bits"

// ReceiverStream is the per-ssrc bookkeeping a ReceiverReport interceptor
// keeps (spec §4.10): a set of every sequence number seen so far,
// a cycle counter for 16-bit seq wraparound, running jitter, and enough
// state to compute one RTCP ReceptionReport per interval.
type ReceiverStream struct {
	ssrc uint32

	received   map[uint16]bool
	firstSeq   uint16
	highestSeq uint16
	cycles     uint32
	packets    uint32

	lastTransit int64
	jitter      float64

	lastSRNTP     uint64
	lastSRRecvAt  time.Time
	started       bool
}

func newReceiverStream(ssrc uint32) *ReceiverStream {
	return &ReceiverStream{ssrc: ssrc, received: make(map[uint16]bool, 256)}
}

// Update folds one inbound RTP packet's sequence number and arrival time
// into the stream's running stats (RFC 3550 §6.4.1's jitter recursion,
// §A.8 cycle tracking).
func (r *ReceiverStream) Update(p *rtp.Packet, arrival time.Time, clockRate uint32) {
	seq := p.SequenceNumber
	if !r.started {
		r.started = true
		r.firstSeq = seq
		r.highestSeq = seq
	} else if seq < r.highestSeq && r.highestSeq-seq > 0x8000 {
		r.cycles += 0x10000 // sequence number wrapped
		r.highestSeq = seq
	} else if seq > r.highestSeq {
		r.highestSeq = seq
	}
	r.packets++
	r.received[seq] = true

	if clockRate > 0 {
		arrivalRTP := int64(arrival.Unix())*int64(clockRate) + int64(arrival.Nanosecond())*int64(clockRate)/1e9
		transit := arrivalRTP - int64(p.Timestamp)
		if r.lastTransit != 0 {
			d := transit - r.lastTransit
			if d < 0 {
				d = -d
			}
			r.jitter += (float64(d) - r.jitter) / 16
		}
		r.lastTransit = transit
	}
}

// OnSenderReport records the NTP middle-32 and local receipt time needed
// for the RR's LSR/DLSR fields (spec §4.10 "last SR + delay").
func (r *ReceiverStream) OnSenderReport(sr *rtcp.SenderReport, receivedAt time.Time) {
	r.lastSRNTP = sr.NTPTime
	r.lastSRRecvAt = receivedAt
}

// ReceptionReport builds one RTCP ReceptionReport for this ssrc (spec
// §4.10/§8 scenario 5).
func (r *ReceiverStream) ReceptionReport(now time.Time) rtcp.ReceptionReport {
	extHighest := r.cycles + uint32(r.highestSeq)
	expected := extHighest - uint32(r.firstSeq) + 1
	lost := int64(expected) - int64(r.packets)
	if lost < 0 {
		lost = 0
	}
	if lost > (1<<maxDropoutBits)-1 {
		lost = (1 << maxDropoutBits) - 1
	}

	var fractionLost uint8
	if expected > 0 && lost > 0 {
		fractionLost = uint8((lost * 256) / int64(expected))
	}

	var lsr, dlsr uint32
	if r.lastSRNTP != 0 {
		lsr = uint32(r.lastSRNTP >> 16)
		delay := now.Sub(r.lastSRRecvAt)
		if delay > 0 {
			dlsr = uint32(delay.Seconds() * 65536)
		}
	}

	return rtcp.ReceptionReport{
		SSRC:               r.ssrc,
		FractionLost:       fractionLost,
		TotalLost:          uint32(lost),
		LastSequenceNumber: extHighest,
		Jitter:             uint32(r.jitter),
		LastSenderReport:   lsr,
		Delay:              dlsr,
	}
}

// ReceiverReport is the spec §4.10 interceptor: one ReceiverStream per
// inbound ssrc, emitting an RTCP ReceiverReport to every peer four-tuple
// once per Interval.
type ReceiverReport struct {
	Interval time.Duration

	streams map[uint32]*ReceiverStream
	lastRun time.Time
}

// NewReceiverReport builds a ReceiverReport interceptor with the given
// emission interval (spec §5/§6 default 1s).
func NewReceiverReport(interval time.Duration) *ReceiverReport {
	return &ReceiverReport{Interval: interval, streams: make(map[uint32]*ReceiverStream)}
}

// ObserveRTP folds an inbound RTP packet into its ssrc's stream,
// creating the stream on first sight (spec §4.10 "Interceptor.read").
func (rr *ReceiverReport) ObserveRTP(p *rtp.Packet, arrival time.Time, clockRate uint32) {
	s, ok := rr.streams[p.SSRC]
	if !ok {
		s = newReceiverStream(p.SSRC)
		rr.streams[p.SSRC] = s
	}
	s.Update(p, arrival, clockRate)
}

// ObserveSenderReport records SR timing for later RR LSR/DLSR (spec
// §4.10 "Interceptor.read" on the RTCP lane).
func (rr *ReceiverReport) ObserveSenderReport(sr *rtcp.SenderReport, receivedAt time.Time) {
	if s, ok := rr.streams[sr.SSRC]; ok {
		s.OnSenderReport(sr, receivedAt)
	}
}

// PollTimeout reports the next emission deadline (spec §4.10
// "poll_timeout(eto)"; spec §5 "the earliest is the select deadline").
func (rr *ReceiverReport) PollTimeout() time.Time {
	if rr.lastRun.IsZero() {
		return time.Now()
	}
	return rr.lastRun.Add(rr.Interval)
}

// HandleTimeout emits one ReceiverReport carrying one ReceptionReport per
// live ssrc if Interval has elapsed since the last emission, else returns
// nil; it also returns nil when no ssrc has been seen yet (spec §4.10
// "handle_timeout(now, four_tuples) -> events").
func (rr *ReceiverReport) HandleTimeout(now time.Time) []rtcp.Packet {
	if !rr.lastRun.IsZero() && now.Sub(rr.lastRun) < rr.Interval {
		return nil
	}
	rr.lastRun = now

	if len(rr.streams) == 0 {
		return nil
	}
	reports := make([]rtcp.ReceptionReport, 0, len(rr.streams))
	for _, s := range rr.streams {
		reports = append(reports, s.ReceptionReport(now))
	}
	return []rtcp.Packet{&rtcp.ReceiverReport{Reports: reports}}
}
