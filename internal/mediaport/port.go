// Package mediaport is the single-threaded cooperative per-port runtime
// of spec §5: one Port owns exclusive mutable state (ServerStates,
// every Session/Endpoint/Transport) and drains UDP, signaling, and timer
// events through one cooperative select loop. It wraps the teacher's
// internal/network.Manager's per-agent-goroutine idea, generalized from
// "one goroutine per ICE agent" to "one goroutine per bound UDP port".
package mediaport

import (
	"net"
	"time"

	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/pion/sfu/internal/config"
	"github.com/pion/sfu/internal/demux"
	"github.com/pion/sfu/internal/dtlsbridge"
	"github.com/pion/sfu/internal/gateway"
	"github.com/pion/sfu/internal/interceptors"
	"github.com/pion/sfu/internal/rtpio"
	"github.com/pion/sfu/internal/sctpbridge"
	"github.com/pion/sfu/internal/session"
	"github.com/pion/sfu/internal/srtpengine"
	"github.com/pion/sfu/internal/state"
	"github.com/pion/sfu/internal/stunmsg"
	"github.com/pion/sfu/internal/types"
	"github.com/pion/sfu/internal/udpsocket"
)

// SignalingRequest is one HTTP-originated request handed across the
// signaling→media MPSC channel of spec §5.
type SignalingRequest struct {
	SessionID  types.SessionID
	EndpointID types.EndpointID
	OfferSDP   string
	Reply      chan SignalingResponse
}

// SignalingResponse is the one-shot reply sent back to the HTTP handler.
type SignalingResponse struct {
	AnswerSDP string
	Err       error
}

// Port is the per-media-port runtime (spec §5).
type Port struct {
	cfg    *config.Config
	sock   *udpsocket.Socket
	store  *state.Store
	logger logging.LeveledLogger

	dtlsCfg *dtlsbridge.Config
	sctpCfg *sctpbridge.Config

	signaling chan SignalingRequest
	shutdown  <-chan struct{}

	inbound chan *udpsocket.Packet

	receiverReportDue time.Time
}

// New binds a Port to one UDP port and wires its process-wide configs
// (spec §5 "Resource policy": certificate/SCTP config/RTP config shared
// by reference).
func New(cfg *config.Config, port uint16, signaling chan SignalingRequest, shutdown <-chan struct{}) (*Port, error) {
	sock, err := udpsocket.Bind(port)
	if err != nil {
		return nil, err
	}

	logger := cfg.LoggerFactory.NewLogger("mediaport")

	p := &Port{
		cfg:    cfg,
		sock:   sock,
		store:  state.New(cfg),
		logger: logger,
		dtlsCfg: &dtlsbridge.Config{
			Certificate:   cfg.Certificate,
			LoggerFactory: cfg.LoggerFactory,
		},
		sctpCfg: &sctpbridge.Config{
			MaxMessageSize: cfg.SCTPMaxMessageSize,
			LoggerFactory:  cfg.LoggerFactory,
		},
		signaling: signaling,
		shutdown:  shutdown,
		inbound:   make(chan *udpsocket.Packet, 256),
	}

	go p.readLoop()

	return p, nil
}

// readLoop bridges the blocking UDP socket into the cooperative select
// below, the same goroutine-per-blocking-resource pattern dtlsbridge and
// sctpbridge use (spec §5's "suspension point (a) UDP receive").
func (p *Port) readLoop() {
	buf := make([]byte, 1500)
	for {
		pkt, err := p.sock.ReadFrom(buf)
		if err != nil {
			return
		}
		select {
		case p.inbound <- pkt:
		case <-p.shutdown:
			return
		}
	}
}

// Run is the cooperative event loop (spec §5): select over UDP receive,
// signaling receive, the receiver-report/candidate-expiry timer, and
// shutdown. The DTLS and SCTP bridges keep their retransmit timers on
// their own goroutines, so no DTLS or SCTP deadline enters this select.
// Every branch runs to completion without blocking.
func (p *Port) Run() {
	for {
		timer := time.NewTimer(p.nextTimeout())
		select {
		case pkt := <-p.inbound:
			p.handlePacket(pkt)
		case req := <-p.signaling:
			p.handleSignaling(req)
		case now := <-timer.C:
			p.handleTimeout(now)
		case <-p.shutdown:
			timer.Stop()
			p.drainShutdown()
			return
		}
		timer.Stop()
	}
}

func (p *Port) nextTimeout() time.Duration {
	if p.receiverReportDue.IsZero() {
		return p.cfg.ReceiverReportInterval
	}
	d := time.Until(p.receiverReportDue)
	if d < 0 {
		return 0
	}
	return d
}

func (p *Port) handlePacket(pkt *udpsocket.Packet) {
	ft := types.FourTuple{Local: p.sock.LocalAddr(), Remote: pkt.Peer}

	switch demux.Classify(pkt.Data) {
	case demux.KindSTUN:
		p.handleSTUN(pkt.Peer, pkt.Data)
	case demux.KindDTLS:
		p.handleDTLS(ft, pkt.Data)
	case demux.KindSRTP:
		p.handleSRTP(ft, pkt.Data)
	default:
		p.logger.Trace("mediaport: dropping unclassifiable datagram")
	}
}

func (p *Port) handleSTUN(peer *net.UDPAddr, data []byte) {
	m, err := stunmsg.Parse(data)
	if err != nil {
		p.logger.Debugf("mediaport: stun parse: %v", err)
		return
	}
	if !stunmsg.IsBindingRequest(m) {
		return
	}
	resp, err := gateway.HandleBindingRequest(p.store, p.dtlsCfg, p.sctpCfg, p.sock.LocalAddr(), peer, m)
	if err != nil {
		p.logger.Debugf("mediaport: stun admission: %v", err)
		return
	}
	if resp == nil {
		return
	}
	if err := p.sock.WriteTo(resp, peer); err != nil {
		p.logger.Debugf("mediaport: stun write: %v", err)
	}
}

func (p *Port) handleDTLS(ft types.FourTuple, data []byte) {
	t, ok := p.store.GetMutTransport(ft)
	if !ok || t.DTLS == nil {
		return
	}
	t.DTLS.Feed(time.Now(), data)
	p.drainDTLS(ft, t)
}

func (p *Port) drainDTLS(ft types.FourTuple, t *session.Transport) {
	for {
		select {
		case ev := <-t.DTLS.Events():
			switch ev.Kind {
			case dtlsbridge.EventHandshakeComplete:
				p.updateSRTPContexts(t)
			case dtlsbridge.EventApplicationData:
				t.SCTP.Feed(time.Now(), ev.Data)
				p.drainSCTP(ft, t)
			case dtlsbridge.EventClosed:
				p.logger.Debugf("mediaport: dtls closed on %s: %v", ft, ev.Err)
			}
		default:
			for _, out := range t.DTLS.PollTransmit() {
				_ = p.sock.WriteTo(out, ft.Remote)
			}
			return
		}
	}
}

func (p *Port) updateSRTPContexts(t *session.Transport) {
	km := t.DTLS.Keying()
	if km == nil {
		return
	}
	profile, err := srtpengine.ProfileFromDTLS(km.Profile)
	if err != nil {
		p.logger.Errorf("mediaport: %v", err)
		return
	}
	local, err := srtpengine.NewContext(km.LocalKey, km.LocalSalt, profile)
	if err != nil {
		p.logger.Errorf("mediaport: local srtp context: %v", err)
		return
	}
	remote, err := srtpengine.NewContext(km.RemoteKey, km.RemoteSalt, profile)
	if err != nil {
		p.logger.Errorf("mediaport: remote srtp context: %v", err)
		return
	}
	t.LocalSRTP, t.RemoteSRTP = local, remote
}

func (p *Port) drainSCTP(ft types.FourTuple, t *session.Transport) {
	for {
		select {
		case ev := <-t.SCTP.Events():
			p.handleSCTPEvent(ft, t, ev)
		default:
			for _, out := range t.SCTP.PollTransmit() {
				if err := t.DTLS.WriteApplication(out); err != nil {
					p.logger.Debugf("mediaport: dtls write: %v", err)
				}
			}
			p.drainDTLS(ft, t)
			return
		}
	}
}

func (p *Port) handleSCTPEvent(ft types.FourTuple, t *session.Transport, ev sctpbridge.Event) {
	key, ok := p.store.FindEndpoint(ft)
	if !ok {
		return
	}
	sess, ok := p.store.Session(key.Session)
	if !ok {
		return
	}
	ep := sess.Endpoints[key.Endpoint]

	switch ev.Kind {
	case sctpbridge.EventStreamMessage:
		p.handleDataChannelMessage(sess, ep, t, ev)
	case sctpbridge.EventClosed:
		p.logger.Debugf("mediaport: sctp closed on %s: %v", ft, ev.Err)
	}
}

func (p *Port) handleDataChannelMessage(sess *session.Session, ep *session.Endpoint, t *session.Transport, ev sctpbridge.Event) {
	if ev.PPID == sctpbridge.PPIDDcep {
		ack, msg, err := dcepHandleControl(ev.StreamID, ev.Data)
		if err != nil {
			p.logger.Debugf("mediaport: dcep: %v", err)
			return
		}
		if ack != nil {
			_ = t.SCTP.Write(ev.StreamID, dcepOpenReliability(), sctpbridge.PPIDDcep, ack)
		}
		if msg != nil {
			ep.DataChannelOpen = true
		}
		return
	}

	reply, pushes, err := gateway.HandleDataChannelSDP(p.store, ep.SessionID, ep.ID, ev.Data, p.sock.LocalAddr())
	if err != nil {
		p.logger.Debugf("mediaport: datachannel sdp: %v", err)
		return
	}
	if reply != nil {
		_ = t.SCTP.Write(ev.StreamID, dcepMessageReliability(), sctpbridge.PPIDFor(sctpbridge.MessageText, len(reply)), reply)
	}
	for id, payload := range pushes {
		if other, ok := sess.Endpoints[id]; ok {
			p.pushOffer(other, payload)
		}
	}
}

func (p *Port) pushOffer(ep *session.Endpoint, payload []byte) {
	for _, t := range ep.Transports {
		if t.SCTP == nil {
			continue
		}
		_ = t.SCTP.Write(0, dcepMessageReliability(), sctpbridge.PPIDFor(sctpbridge.MessageText, len(payload)), payload)
		return
	}
}

func (p *Port) handleSRTP(ft types.FourTuple, data []byte) {
	t, ok := p.store.GetMutTransport(ft)
	if !ok {
		return
	}
	plaintext, isRTCP, err := gateway.DecryptInbound(t, data)
	if err != nil {
		p.logger.Tracef("mediaport: srtp decrypt: %v", err)
		return
	}

	key, ok := p.store.FindEndpoint(ft)
	if !ok {
		return
	}
	sess, ok := p.store.Session(key.Session)
	if !ok {
		return
	}
	ep := sess.Endpoints[key.Endpoint]

	if isRTCP {
		pkts, err := rtpio.UnmarshalRTCP(plaintext)
		if err == nil {
			p.observeRTCP(t, pkts)
		}
	} else if pkt, err := rtpio.UnmarshalRTP(plaintext); err == nil {
		p.observeRTP(ep, t, pkt)
	}

	for _, d := range gateway.FanOutRTP(sess, key.Endpoint, plaintext, isRTCP) {
		if dest, ok := p.transportByKey(sess, d.FourTupleKey); ok {
			_ = p.sock.WriteTo(d.Bytes, dest.FourTuple.Remote)
		}
	}
}

func (p *Port) transportByKey(sess *session.Session, key string) (*session.Transport, bool) {
	for _, ep := range sess.Endpoints {
		if t, ok := ep.Transports[key]; ok {
			return t, true
		}
	}
	return nil, false
}

// observeRTP folds one inbound RTP packet into this Transport's
// ReceiverReport bookkeeping (spec §4.10), creating the interceptor on
// first use.
func (p *Port) observeRTP(ep *session.Endpoint, t *session.Transport, pkt *rtp.Packet) {
	if t.Receiver == nil {
		t.Receiver = interceptors.NewReceiverReport(p.cfg.ReceiverReportInterval)
	}
	clockRate := ep.ClockRateForPayloadType(pkt.PayloadType)
	t.Receiver.ObserveRTP(pkt, time.Now(), clockRate)
}

// observeRTCP folds inbound Sender Reports into the matching ssrc's
// ReceiverReport timing state (spec §4.10 "last SR + delay").
func (p *Port) observeRTCP(t *session.Transport, pkts []rtcp.Packet) {
	if t.Receiver == nil {
		return
	}
	now := time.Now()
	for _, pkt := range pkts {
		if sr, ok := pkt.(*rtcp.SenderReport); ok {
			t.Receiver.ObserveSenderReport(sr, now)
		}
	}
}

func (p *Port) handleSignaling(req SignalingRequest) {
	answer, err := gateway.AcceptOffer(p.store, req.SessionID, req.EndpointID, nil, req.OfferSDP, p.sock.LocalAddr())
	req.Reply <- SignalingResponse{AnswerSDP: answer, Err: err}
}

func (p *Port) handleTimeout(now time.Time) {
	p.store.ExpireCandidates(now)
	p.emitReceiverReports(now)
	p.receiverReportDue = now.Add(p.cfg.ReceiverReportInterval)
}

// emitReceiverReports drives every live Transport's ReceiverReport
// interceptor and sends any emitted RTCP packet back to that peer's
// four-tuple (spec §4.10/§8 scenario 5: "after 1s a ReceiverReport...
// is emitted per peer four-tuple").
func (p *Port) emitReceiverReports(now time.Time) {
	for _, sess := range p.store.Sessions() {
		for _, ep := range sess.Endpoints {
			for _, t := range ep.Transports {
				if t.Receiver == nil || !t.Ready() {
					continue
				}
				pkts := t.Receiver.HandleTimeout(now)
				if len(pkts) == 0 {
					continue
				}
				raw, err := rtpio.MarshalRTCP(pkts)
				if err != nil {
					p.logger.Debugf("mediaport: marshal receiver report: %v", err)
					continue
				}
				ciphertext, err := t.LocalSRTP.EncryptRTCP(nil, raw)
				if err != nil {
					p.logger.Debugf("mediaport: encrypt receiver report: %v", err)
					continue
				}
				if err := p.sock.WriteTo(ciphertext, t.FourTuple.Remote); err != nil {
					p.logger.Debugf("mediaport: write receiver report: %v", err)
				}
			}
		}
	}
}

// drainShutdown tears DTLS and SCTP down gracefully for every live
// Transport before the loop exits (spec §5 "Shutdown: ... drains
// outbound, tears down DTLS and SCTP gracefully, then exits").
func (p *Port) drainShutdown() {
	for _, sess := range p.store.Sessions() {
		for _, ep := range sess.Endpoints {
			for _, t := range ep.Transports {
				if t.SCTP != nil {
					_ = t.SCTP.Close()
				}
				if t.DTLS != nil {
					_ = t.DTLS.Close()
				}
			}
		}
	}
	_ = p.sock.Close()
}
