package state

import (
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/sfu/internal/config"
	"github.com/pion/sfu/internal/dtlsbridge"
	"github.com/pion/sfu/internal/sctpbridge"
	"github.com/pion/sfu/internal/session"
	"github.com/pion/sfu/internal/types"
)

func testConfig() *config.Config {
	cfg := config.Default(nil)
	cfg.CandidateIdleTimeout = 30 * time.Second
	cfg.Certificate = &config.Certificate{}
	return cfg
}

func TestStore_CreateOrGetSession(t *testing.T) {
	s := New(testConfig())

	sess := s.CreateOrGetSession(1)
	require.NotNil(t, sess)
	assert.Equal(t, types.SessionID(1), sess.ID)

	again := s.CreateOrGetSession(1)
	assert.Same(t, sess, again)
}

func TestStore_RegisterAndFindCandidate(t *testing.T) {
	s := New(testConfig())
	c := &session.Candidate{
		LocalCreds:  session.ConnectionCredentials{Ufrag: "local"},
		RemoteCreds: session.ConnectionCredentials{Ufrag: "remote"},
	}
	s.RegisterCandidate(c)

	found, ok := s.FindCandidate("local:remote")
	require.True(t, ok)
	assert.Same(t, c, found)

	assert.False(t, c.ExpiresAt.IsZero())
}

func TestStore_ExpireCandidates(t *testing.T) {
	s := New(testConfig())
	c := &session.Candidate{
		LocalCreds:  session.ConnectionCredentials{Ufrag: "l"},
		RemoteCreds: session.ConnectionCredentials{Ufrag: "r"},
	}
	s.RegisterCandidate(c)
	c.ExpiresAt = time.Now().Add(-time.Second) // force expiry

	s.ExpireCandidates(time.Now())

	_, ok := s.FindCandidate("l:r")
	assert.False(t, ok)
}

func TestStore_EndpointIndex(t *testing.T) {
	s := New(testConfig())
	ft := types.FourTuple{
		Local:  &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3478},
		Remote: &net.UDPAddr{IP: net.ParseIP("5.6.7.8"), Port: 50000},
	}
	key := types.EndpointKey{Session: 1, Endpoint: 0}

	s.AddEndpoint(ft, key)
	got, ok := s.FindEndpoint(ft)
	require.True(t, ok)
	assert.Equal(t, key, got)

	s.RemoveEndpoint(ft)
	_, ok = s.FindEndpoint(ft)
	assert.False(t, ok)
}

func TestStore_Sessions(t *testing.T) {
	s := New(testConfig())
	s.CreateOrGetSession(1)
	s.CreateOrGetSession(2)

	assert.Len(t, s.Sessions(), 2)
}

func TestStore_InstallTransportAndGetMutTransport(t *testing.T) {
	s := New(testConfig())
	sess := s.CreateOrGetSession(1)
	ep := session.NewEndpoint(1, 0)
	sess.Endpoints[0] = ep

	ft := types.FourTuple{
		Local:  &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3478},
		Remote: &net.UDPAddr{IP: net.ParseIP("9.9.9.9"), Port: 12345},
	}
	cand := &session.Candidate{
		SessionID:  1,
		EndpointID: 0,
		LocalCreds: session.ConnectionCredentials{Ufrag: "local", Password: "password", Role: session.DTLSRoleClient},
	}

	dtlsCfg := &dtlsbridge.Config{Certificate: &config.Certificate{}, LoggerFactory: logging.NewDefaultLoggerFactory()}
	sctpCfg := &sctpbridge.Config{MaxMessageSize: 262144, LoggerFactory: logging.NewDefaultLoggerFactory()}

	tr := s.InstallTransport(dtlsCfg, sctpCfg, ep, cand, ft)
	require.NotNil(t, tr)

	got, ok := s.GetMutTransport(ft)
	require.True(t, ok)
	assert.Same(t, tr, got)

	// InstallTransport also registers the four-tuple reverse index.
	key, ok := s.FindEndpoint(ft)
	require.True(t, ok)
	assert.Equal(t, types.EndpointKey{Session: 1, Endpoint: 0}, key)
}

func TestStore_AssociationHandles(t *testing.T) {
	s := New(testConfig())

	h1 := s.NewAssociationHandle(nil)
	h2 := s.NewAssociationHandle(nil)
	assert.NotEqual(t, h1, h2)

	_, ok := s.Association(h1)
	assert.True(t, ok)

	s.RemoveAssociation(h1)
	_, ok = s.Association(h1)
	assert.False(t, ok)
}

func TestStore_NewLocalCredentials(t *testing.T) {
	s := New(testConfig())
	creds, err := s.NewLocalCredentials()
	require.NoError(t, err)
	assert.NotEmpty(t, creds.Ufrag)
	assert.NotEmpty(t, creds.Password)
}
