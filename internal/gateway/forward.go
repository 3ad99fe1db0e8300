// Forwarding (data plane): spec §4.3 "Forwarding". RTP/RTCP fan-out to
// every other ready Transport in the Session, and SCTP/DataChannel
// in-band offer/answer exchange driving renegotiation pushes.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/pion/sfu/internal/session"
	"github.com/pion/sfu/internal/srtpengine"
	"github.com/pion/sfu/internal/state"
	"github.com/pion/sfu/internal/types"
)

// ErrNotNegotiated marks an in-band DataChannel JSON-SDP message whose
// `type` the negotiation state machine doesn't know how to apply (spec §6:
// only "offer" and "answer" are meaningful on this path).
var ErrNotNegotiated = errors.New("gateway: message does not advance negotiation")

// ErrRemoteSRTPNotSet is returned by DecryptInbound when the Transport's
// remote SRTP context has not been installed yet.
var ErrRemoteSRTPNotSet = errors.New("gateway: remote srtp context not set")

// FanOutRTP re-tags a decrypted RTP/RTCP packet for every other ready
// Endpoint in the Session (spec §4.3 "RTP"/"RTCP": "Transports whose SRTP
// context is not yet ready are silently skipped"). isRTCP selects the
// encrypt path; callers classify with srtpengine.IsRTCP before invoking.
func FanOutRTP(sess *session.Session, sourceEndpoint types.EndpointID, plaintext []byte, isRTCP bool) []Delivery {
	var out []Delivery
	for id, ep := range sess.Endpoints {
		if id == sourceEndpoint {
			continue
		}
		for _, t := range ep.Transports {
			if !t.Ready() {
				continue
			}
			var protected []byte
			var err error
			if isRTCP {
				protected, err = t.LocalSRTP.EncryptRTCP(nil, plaintext)
			} else {
				protected, err = t.LocalSRTP.EncryptRTP(nil, plaintext)
			}
			if err != nil {
				continue // skipped silently: the error is neither returned nor logged
			}
			out = append(out, Delivery{FourTupleKey: t.FourTuple.Key(), Bytes: protected})
		}
	}
	return out
}

// Delivery is one outbound UDP datagram the media port's loop should send.
type Delivery struct {
	FourTupleKey string
	Bytes        []byte
}

// DecryptInbound classifies and unprotects one inbound SRTP/SRTCP
// datagram for a Transport (spec §4.7): fails with a typed error if the
// remote context isn't installed yet.
func DecryptInbound(t *session.Transport, buf []byte) (plaintext []byte, isRTCP bool, err error) {
	isRTCP = srtpengine.IsRTCP(buf)
	if t.RemoteSRTP == nil {
		return nil, isRTCP, ErrRemoteSRTPNotSet
	}
	if isRTCP {
		plaintext, err = t.RemoteSRTP.DecryptRTCP(nil, buf)
	} else {
		plaintext, err = t.RemoteSRTP.DecryptRTP(nil, buf)
	}
	return plaintext, isRTCP, err
}

// offerEnvelope is the in-band JSON SDP message carried on the DataChannel
// control path (spec §6: "the payload is JSON SDP").
type offerEnvelope = session.SessionDescription

// HandleDataChannelSDP implements spec §4.3's "SCTP/DataChannel message"
// forwarding rule: an inbound JSON-SDP offer is accepted and answered
// in-band, and every other renegotiation-pending, DataChannel-open
// Endpoint in the Session is then pushed a fresh offer; an inbound
// JSON-SDP answer (the peer's reply to one of those pushes) is applied via
// AcceptAnswer with no reply or pushes of its own. Any other message type
// surfaces ErrNotNegotiated rather than being silently dropped.
func HandleDataChannelSDP(store *state.Store, sessionID types.SessionID, endpointID types.EndpointID, raw []byte, local *net.UDPAddr) (reply []byte, pushes map[types.EndpointID][]byte, err error) {
	var env offerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("gateway: unmarshal datachannel sdp: %w", err)
	}

	sess, ok := store.Session(sessionID)
	if !ok {
		return nil, nil, fmt.Errorf("gateway: unknown session %d", sessionID)
	}

	if env.Type == "answer" {
		ep, ok := sess.Endpoints[endpointID]
		if !ok {
			return nil, nil, fmt.Errorf("gateway: unknown endpoint %d", endpointID)
		}
		if err := AcceptAnswer(ep, env.SDP); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}

	if env.Type != "offer" {
		return nil, nil, fmt.Errorf("gateway: datachannel sdp type %q: %w", env.Type, ErrNotNegotiated)
	}

	answerSDP, err := AcceptOffer(store, sessionID, endpointID, nil, env.SDP, local)
	if err != nil {
		return nil, nil, err
	}
	reply, err = json.Marshal(offerEnvelope{Type: "answer", SDP: answerSDP})
	if err != nil {
		return nil, nil, err
	}

	pushes = map[types.EndpointID][]byte{}
	for id, ep := range sess.Endpoints {
		if id == endpointID {
			continue
		}
		if !ep.RenegotiationNeeded || !ep.DataChannelOpen {
			continue
		}
		var role session.DTLSRole
		var localCreds session.ConnectionCredentials
		for _, t := range ep.Transports {
			if t.Candidate != nil {
				role = t.Candidate.LocalCreds.Role
				localCreds = t.Candidate.LocalCreds
				break
			}
		}
		offer, cerr := CreateOffer(ep, localCreds, role, store.Config().SCTPMaxMessageSize, local)
		if cerr != nil {
			continue
		}
		payload, merr := json.Marshal(offerEnvelope{Type: "offer", SDP: offer})
		if merr != nil {
			continue
		}
		pushes[id] = payload
	}

	return reply, pushes, nil
}
