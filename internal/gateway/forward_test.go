package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/sfu/internal/session"
	"github.com/pion/sfu/internal/types"
)

func TestFanOutRTP_SkipsSourceAndUnreadyTransports(t *testing.T) {
	sess := session.NewSession(1)

	source := session.NewEndpoint(1, 0)
	sess.Endpoints[0] = source

	notReady := session.NewEndpoint(1, 1)
	notReady.Transports["not-ready"] = &session.Transport{}
	sess.Endpoints[1] = notReady

	// No ready Transports anywhere: FanOutRTP must produce nothing, and
	// must never even consider the source Endpoint's own Transports.
	out := FanOutRTP(sess, 0, []byte("rtp"), false)
	assert.Empty(t, out)
}

func TestDecryptInbound_FailsWithoutRemoteSRTP(t *testing.T) {
	transport := &session.Transport{}
	_, _, err := DecryptInbound(transport, []byte{0x80, 0x00})
	assert.Error(t, err)
}

func TestHandleDataChannelSDP_AnswerSetsRemoteDescription(t *testing.T) {
	store := testStore(t)

	// Endpoint 0 joins with an offer so it has a Transceiver to reconcile,
	// then receives its own answer back in-band (spec §8 scenario 3: the
	// peer replies to a pushed renegotiation offer over the DataChannel).
	_, err := AcceptOffer(store, 1, 0, nil, applicationOnlyOffer, testLocalAddr)
	require.NoError(t, err)

	sess, ok := store.Session(1)
	require.True(t, ok)
	ep := sess.Endpoints[0]

	raw, err := json.Marshal(session.SessionDescription{Type: "answer", SDP: applicationOnlyOffer})
	require.NoError(t, err)

	reply, pushes, err := HandleDataChannelSDP(store, 1, 0, raw, testLocalAddr)
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Nil(t, pushes)
	assert.Equal(t, "answer", ep.RemoteDescription.Type)
}

func TestHandleDataChannelSDP_UnknownTypeSurfacesNotNegotiated(t *testing.T) {
	store := testStore(t)
	store.CreateOrGetSession(1)

	raw, err := json.Marshal(session.SessionDescription{Type: "pranswer", SDP: "x"})
	require.NoError(t, err)

	reply, pushes, err := HandleDataChannelSDP(store, 1, 0, raw, testLocalAddr)
	assert.ErrorIs(t, err, ErrNotNegotiated)
	assert.Nil(t, reply)
	assert.Nil(t, pushes)
}

func TestHandleDataChannelSDP_UnknownSessionErrors(t *testing.T) {
	store := testStore(t)

	raw, err := json.Marshal(session.SessionDescription{Type: "offer", SDP: applicationOnlyOffer})
	require.NoError(t, err)

	_, _, err = HandleDataChannelSDP(store, types.SessionID(999), 0, raw, testLocalAddr)
	assert.Error(t, err)
}

func TestHandleDataChannelSDP_AcceptsOfferAndPushesRenegotiation(t *testing.T) {
	store := testStore(t)

	// Endpoint 0 joins first over HTTP so the Session exists and has a
	// DataChannel-open peer to push a renegotiation to.
	_, err := AcceptOffer(store, 1, 0, nil, applicationOnlyOffer, testLocalAddr)
	require.NoError(t, err)

	sess, ok := store.Session(1)
	require.True(t, ok)
	ep0 := sess.Endpoints[0]
	ep0.DataChannelOpen = true
	ep0.RenegotiationNeeded = true
	// installTransport normally seeds this from an admitted Candidate;
	// a minimal Transport with a Candidate is enough for CreateOffer's
	// role/localCreds lookup.
	ep0.Transports["fake"] = &session.Transport{Candidate: &session.Candidate{
		LocalCreds: session.ConnectionCredentials{Ufrag: "u", Password: "p", Role: session.DTLSRoleClient},
	}}

	raw, err := json.Marshal(session.SessionDescription{Type: "offer", SDP: applicationOnlyOffer})
	require.NoError(t, err)

	reply, pushes, err := HandleDataChannelSDP(store, 1, 1, raw, testLocalAddr)
	require.NoError(t, err)
	require.NotNil(t, reply)

	var replyEnv session.SessionDescription
	require.NoError(t, json.Unmarshal(reply, &replyEnv))
	assert.Equal(t, "answer", replyEnv.Type)

	require.Contains(t, pushes, types.EndpointID(0))
	assert.False(t, ep0.RenegotiationNeeded)
}
