package gateway

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/sfu/internal/config"
	"github.com/pion/sfu/internal/session"
	"github.com/pion/sfu/internal/state"
	"github.com/pion/sfu/internal/types"
)

// testLocalAddr stands in for a media port's bound socket address.
var testLocalAddr = &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 3478}

// applicationOnlyOffer is the "single m=application section" offer of
// scenario 2: a DataChannel-only join with session-level ufrag/pwd/
// fingerprint/setup, no audio or video.
const applicationOnlyOffer = "v=0\r\n" +
	"o=- 12345 1 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=group:BUNDLE 0\r\n" +
	"a=ice-ufrag:remoteufrag\r\n" +
	"a=ice-pwd:remotepassword1234567\r\n" +
	"a=fingerprint:sha-256 AA:BB:CC:DD\r\n" +
	"a=setup:actpass\r\n" +
	"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=sctp-port:5000\r\n" +
	"a=max-message-size:262144\r\n"

func testStore(t *testing.T) *state.Store {
	t.Helper()
	cfg := config.Default(nil)
	cert, err := config.GenerateCertificate()
	require.NoError(t, err)
	cfg.Certificate = cert
	cfg.SCTPMaxMessageSize = 262144
	return state.New(cfg)
}

func TestAcceptOffer_ApplicationOnlyJoin(t *testing.T) {
	store := testStore(t)

	answer, err := AcceptOffer(store, types.SessionID(1), types.EndpointID(0), nil, applicationOnlyOffer, testLocalAddr)
	require.NoError(t, err)
	require.NotEmpty(t, answer)

	parsed, err := session.Parse(answer)
	require.NoError(t, err)

	// a=setup:actpass in the offer means we take the conventional
	// answerer's role of becoming the DTLS client (spec §8 scenario 2).
	setup, ok := parsed.MediaDescriptions[0].Attribute("setup")
	require.True(t, ok)
	assert.Equal(t, "active", setup)
	assert.True(t, session.HasApplicationSection(parsed))
	sections := session.ExtractMediaSections(parsed)
	require.Len(t, sections, 1)
	assert.Equal(t, "0", sections[0].Mid)

	sess := store.CreateOrGetSession(1)
	ep, ok := sess.Endpoints[0]
	require.True(t, ok)
	require.Contains(t, ep.Transceivers, "0")
	assert.Equal(t, session.KindApplication, ep.Transceivers["0"].Kind)

	// Candidate registration (spec §4.3) is keyed on
	// "{localUfrag}:{remoteUfrag}"; our generated local ufrag isn't known
	// to the test, so assert indirectly via the answer's own ufrag.
	parsedAnswer, err := session.Parse(answer)
	require.NoError(t, err)
	answerCreds, err := session.ExtractCredentials(parsedAnswer)
	require.NoError(t, err)
	_, ok = store.FindCandidate(answerCreds.Ufrag + ":remoteufrag")
	assert.True(t, ok)
}

func TestReconcileOfferedSections_MirrorsIntoOtherEndpoints(t *testing.T) {
	store := testStore(t)

	_, err := AcceptOffer(store, 1, 0, nil, applicationOnlyOffer, testLocalAddr)
	require.NoError(t, err)

	videoOffer := "v=0\r\n" +
		"o=- 99999 1 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"a=group:BUNDLE 0 1\r\n" +
		"a=ice-ufrag:remoteufrag2\r\n" +
		"a=ice-pwd:remotepassword7654321\r\n" +
		"a=fingerprint:sha-256 EE:FF:00:11\r\n" +
		"a=setup:actpass\r\n" +
		"m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:0\r\n" +
		"a=sctp-port:5000\r\n" +
		"a=max-message-size:262144\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:1\r\n" +
		"a=rtpmap:96 VP8/90000\r\n" +
		"a=sendrecv\r\n" +
		"a=ssrc:1111 cname:x\r\n"

	_, err = AcceptOffer(store, 1, 1, nil, videoOffer, testLocalAddr)
	require.NoError(t, err)

	sess := store.CreateOrGetSession(1)
	ep0 := sess.Endpoints[0]
	require.NotNil(t, ep0)

	mirrorMid := "1-1"
	require.Contains(t, ep0.Transceivers, mirrorMid)
	assert.Equal(t, session.DirectionSendOnly, ep0.Transceivers[mirrorMid].Direction)
	assert.True(t, ep0.RenegotiationNeeded)
}

func TestAnswerDirection(t *testing.T) {
	testCases := []struct {
		name     string
		offered  session.Direction
		local    session.Direction
		expected session.Direction
	}{
		{"inactive always wins", session.DirectionInactive, session.DirectionSendRecv, session.DirectionInactive},
		{"sendonly reversed then intersected", session.DirectionSendOnly, session.DirectionSendRecv, session.DirectionRecvOnly},
		{"recvonly reversed then intersected", session.DirectionRecvOnly, session.DirectionSendRecv, session.DirectionSendOnly},
		{"sendrecv defers to local", session.DirectionSendRecv, session.DirectionSendOnly, session.DirectionSendOnly},
		{"unspecified defers to local", session.DirectionUnspecified, session.DirectionRecvOnly, session.DirectionRecvOnly},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, answerDirection(tc.offered, tc.local), tc.name)
	}
}

func TestCreateOffer_BumpsOriginAndClearsRenegotiation(t *testing.T) {
	ep := session.NewEndpoint(1, 0)
	ep.AddMid("0", &session.Transceiver{Mid: "0", Kind: session.KindApplication})
	ep.RenegotiationNeeded = true

	creds := session.ConnectionCredentials{Ufrag: "u", Password: "p"}
	offer, err := CreateOffer(ep, creds, session.DTLSRoleClient, 262144, testLocalAddr)
	require.NoError(t, err)
	require.NotEmpty(t, offer)

	assert.False(t, ep.RenegotiationNeeded)
	assert.Equal(t, uint64(1), ep.OriginVersion)
	assert.NotZero(t, ep.OriginID)

	// A second CreateOffer keeps the session id stable and bumps the
	// version (spec §4.8 testable property #6).
	firstID := ep.OriginID
	time.Sleep(time.Millisecond)
	_, err = CreateOffer(ep, creds, session.DTLSRoleClient, 262144, testLocalAddr)
	require.NoError(t, err)
	assert.Equal(t, firstID, ep.OriginID)
	assert.Equal(t, uint64(2), ep.OriginVersion)
}

func TestAcceptAnswer_SetsCurrentDirection(t *testing.T) {
	ep := session.NewEndpoint(1, 0)
	ep.AddMid("1", &session.Transceiver{Mid: "1", Kind: session.KindVideo, Direction: session.DirectionSendRecv})

	answerSDP := "v=0\r\n" +
		"o=- 1 1 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:1\r\n" +
		"a=recvonly\r\n"

	require.NoError(t, AcceptAnswer(ep, answerSDP))
	assert.Equal(t, session.DirectionSendOnly, ep.Transceivers["1"].CurrentDirection)
}
