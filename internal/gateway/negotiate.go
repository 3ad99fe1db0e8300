// Negotiation: accept_offer/accept_answer/create_offer (spec §4.8),
// generalizing the teacher's SetRemoteDescription/SetLocalDescription
// transceiver reconciliation from one PeerConnection's tracks to a whole
// Session's cross-Endpoint mid mirroring.
package gateway

import (
	"fmt"
	"net"

	"github.com/pion/sdp/v3"

	"github.com/pion/sfu/internal/session"
	"github.com/pion/sfu/internal/state"
	"github.com/pion/sfu/internal/types"
)

// AcceptOffer implements spec §4.8 "Accept offer": parse, resolve the
// Session/Endpoint, reconcile transceivers, and produce the answer. local is
// the media port's own bound socket address, advertised in the answer's
// candidate line as the local socket address (spec §4.8/§6).
func AcceptOffer(store *state.Store, sessionID types.SessionID, endpointID types.EndpointID, ft *types.FourTuple, offerSDP string, local *net.UDPAddr) (answerSDP string, err error) {
	parsed, err := session.Parse(offerSDP)
	if err != nil {
		return "", err
	}
	creds, err := session.ExtractCredentials(parsed)
	if err != nil {
		return "", err
	}

	sess := store.CreateOrGetSession(sessionID)

	ep, existed := sess.Endpoints[endpointID]
	var localCreds session.ConnectionCredentials
	var role session.DTLSRole
	if existed {
		ep.RemoteDescription = session.SessionDescription{Type: "offer", SDP: offerSDP}
		if ft != nil {
			if t, ok := ep.Transports[ft.Key()]; ok && t.Candidate != nil {
				localCreds = t.Candidate.LocalCreds
				role = t.Candidate.LocalCreds.Role
			}
		}
	} else {
		ep = session.NewEndpoint(sessionID, endpointID)
		ep.RemoteDescription = session.SessionDescription{Type: "offer", SDP: offerSDP}
		sess.Endpoints[endpointID] = ep

		genCreds, genErr := store.NewLocalCredentials()
		if genErr != nil {
			return "", genErr
		}
		role = creds.Role.Reverse()
		genCreds.Role = role
		localCreds = genCreds
	}

	reconcileOfferedSections(sess, ep, parsed)

	ep.NewOrigin()
	answer, err := session.Build(ep, session.BuildParams{
		LocalCreds:   localCreds,
		LocalAddr:    local.IP.String(),
		LocalPort:    local.Port,
		DTLSRole:     role,
		IsOffer:      false,
		SCTPMaxMsgSz: store.Config().SCTPMaxMessageSize,
	})
	if err != nil {
		return "", err
	}
	ep.LocalDescription = session.SessionDescription{Type: "answer", SDP: answer}

	if !existed {
		cand := &session.Candidate{
			SessionID:   sessionID,
			EndpointID:  endpointID,
			RemoteCreds: creds,
			LocalCreds:  localCreds,
			Offer:       ep.RemoteDescription,
			Answer:      ep.LocalDescription,
		}
		store.RegisterCandidate(cand)
	}

	return answer, nil
}

// reconcileOfferedSections applies spec §4.8 step 4: for each non-application
// section of the offer, create the local transceiver if new (direction =
// reverse of what was offered), then mirror that mid into every other
// Endpoint of the Session as a sendonly transceiver (or update its
// direction if it already mirrors this mid), flagging those Endpoints for
// renegotiation.
func reconcileOfferedSections(sess *session.Session, ep *session.Endpoint, parsed *sdp.SessionDescription) {
	for _, sec := range session.ExtractMediaSections(parsed) {
		if sec.Kind == session.KindApplication {
			// The DataChannel transceiver belongs only to this Endpoint's
			// own SCTP association with the SFU; it is never mirrored into
			// other Endpoints the way media sections are.
			ep.AddMid(sec.Mid, &session.Transceiver{Mid: sec.Mid, Kind: session.KindApplication})
			continue
		}

		if _, ok := ep.Transceivers[sec.Mid]; !ok {
			t := &session.Transceiver{
				Mid:       sec.Mid,
				Kind:      sec.Kind,
				Direction: sec.Direction.Reverse(),
				RTPParams: sec.RTPParams,
			}
			if sec.Direction == session.DirectionSendRecv || sec.Direction == session.DirectionSendOnly {
				t.Sender = &session.Sender{SSRCs: sec.SSRCs}
			}
			ep.AddMid(sec.Mid, t)
		}

		for otherID, other := range sess.Endpoints {
			if otherID == ep.ID {
				continue
			}
			mirrorMid := fmt.Sprintf("%d-%s", ep.ID, sec.Mid)
			if existing, ok := other.Transceivers[mirrorMid]; ok {
				existing.Direction = sec.Direction.Reverse()
			} else {
				other.AddMid(mirrorMid, &session.Transceiver{
					Mid:       mirrorMid,
					Kind:      sec.Kind,
					Direction: session.DirectionSendOnly,
					RTPParams: sec.RTPParams,
				})
			}
			other.RenegotiationNeeded = true
		}
	}
}

// AcceptAnswer implements spec §4.8 "Accept answer": parse, set
// remote_description, and reconcile current_direction per mid — no
// transceiver creation.
func AcceptAnswer(ep *session.Endpoint, answerSDP string) error {
	parsed, err := session.Parse(answerSDP)
	if err != nil {
		return err
	}
	ep.RemoteDescription = session.SessionDescription{Type: "answer", SDP: answerSDP}

	for _, sec := range session.ExtractMediaSections(parsed) {
		if t, ok := ep.Transceivers[sec.Mid]; ok {
			t.CurrentDirection = answerDirection(sec.Direction, t.Direction)
		}
	}
	return nil
}

// answerDirection applies spec §4.8's "Answer-direction rule": intersect
// the peer's offered/answered direction with our own local direction.
func answerDirection(offered, local session.Direction) session.Direction {
	switch offered {
	case session.DirectionSendOnly, session.DirectionRecvOnly:
		return offered.Reverse().Intersect(local)
	case session.DirectionInactive:
		return session.DirectionInactive
	default:
		return local
	}
}

// CreateOffer implements spec §4.8 "Create offer": render an Endpoint's
// current transceivers into a fresh SDP offer, bumping the origin (used
// both for the renegotiation push in gateway's forwarding path and for
// tests that round-trip offer/answer/reparse). local is the media port's
// own bound socket address, advertised as the offer's candidate line.
func CreateOffer(ep *session.Endpoint, localCreds session.ConnectionCredentials, role session.DTLSRole, sctpMaxMsgSz uint32, local *net.UDPAddr) (string, error) {
	ep.NewOrigin()
	offer, err := session.Build(ep, session.BuildParams{
		LocalCreds:   localCreds,
		LocalAddr:    local.IP.String(),
		LocalPort:    local.Port,
		DTLSRole:     role,
		IsOffer:      true,
		SCTPMaxMsgSz: sctpMaxMsgSz,
	})
	if err != nil {
		return "", err
	}
	ep.LocalDescription = session.SessionDescription{Type: "offer", SDP: offer}
	ep.RenegotiationNeeded = false
	return offer, nil
}
