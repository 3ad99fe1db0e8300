// ICE admission (spec §4.3 "ICE admission (STUN Binding Request path)"),
// generalizing the teacher's ice.Agent connectivity-check responder to
// the SFU's ICE-lite, Candidate-table-driven admission rule.
package gateway

import (
	"fmt"
	"net"

	"github.com/pion/stun/v3"

	"github.com/pion/sfu/internal/dtlsbridge"
	"github.com/pion/sfu/internal/sctpbridge"
	"github.com/pion/sfu/internal/session"
	"github.com/pion/sfu/internal/state"
	"github.com/pion/sfu/internal/stunmsg"
	"github.com/pion/sfu/internal/types"
)

// ErrRejected wraps a MESSAGE-INTEGRITY check failure on a request whose
// USERNAME matched a Candidate. The step-1 rejections (missing PRIORITY,
// both or neither of ICE-CONTROLLING/ICE-CONTROLLED, USE-CANDIDATE paired
// with ICE-CONTROLLED) and an unknown USERNAME return no response and no
// error.
var ErrRejected = fmt.Errorf("gateway: stun binding request rejected")

// HandleBindingRequest implements spec §4.3 steps 1-4. local is the
// media port's own bound address (for XOR-MAPPED-ADDRESS framing isn't
// needed here — that's the peer's address — but local is used to seed a
// Transport's FourTuple). Returns the raw response bytes to send back to
// peerAddr, or nil if the request was silently rejected per step 1.
func HandleBindingRequest(store *state.Store, dtlsCfg *dtlsbridge.Config, sctpCfg *sctpbridge.Config, local, peerAddr *net.UDPAddr, m *stun.Message) ([]byte, error) {
	if !stunmsg.HasPriority(m) {
		return nil, nil
	}
	controlling, controlled := stunmsg.ControlRole(m)
	if controlling == controlled {
		return nil, nil // step 1: exactly one of CONTROLLING/CONTROLLED required
	}
	useCandidate := stunmsg.HasUseCandidate(m)
	if useCandidate && controlled {
		return nil, nil // step 1: USE-CANDIDATE paired with ICE-CONTROLLED is rejected
	}

	username, hasUsername := stunmsg.Username(m)
	if !hasUsername {
		return stunmsg.BuildReflexiveSuccess(m.TransactionID, peerAddr)
	}

	cand, ok := store.FindCandidate(username)
	if !ok {
		return nil, nil
	}
	if err := stunmsg.CheckIntegrity(m, cand.LocalCreds.Password); err != nil {
		return nil, fmt.Errorf("gateway: %w: %v", ErrRejected, err)
	}

	ft := types.FourTuple{Local: local, Remote: peerAddr}
	if useCandidate {
		if _, exists := store.GetMutTransport(ft); !exists {
			if err := installTransport(store, dtlsCfg, sctpCfg, cand, ft); err != nil {
				return nil, err
			}
		}
	}

	return stunmsg.BuildBindingSuccess(m.TransactionID, peerAddr, cand.LocalCreds.Password)
}

// installTransport creates the Endpoint if this is its first Transport,
// seeded from the Candidate's cached offer/answer, then delegates the
// DTLS/SCTP bridge allocation to the Store (spec §4.3 step 3).
func installTransport(store *state.Store, dtlsCfg *dtlsbridge.Config, sctpCfg *sctpbridge.Config, cand *session.Candidate, ft types.FourTuple) error {
	sess := store.CreateOrGetSession(cand.SessionID)
	ep, ok := sess.Endpoints[cand.EndpointID]
	if !ok {
		ep = session.NewEndpoint(cand.SessionID, cand.EndpointID)
		ep.RemoteDescription = cand.Offer
		ep.LocalDescription = cand.Answer
		sess.Endpoints[cand.EndpointID] = ep
	}

	store.InstallTransport(dtlsCfg, sctpCfg, ep, cand, ft)
	return nil
}
