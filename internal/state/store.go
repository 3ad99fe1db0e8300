// Package state is ServerStates (spec §3/§4.9): the per-media-port single
// owner of every Session, Candidate, Endpoint and Transport. It is never
// touched from more than one goroutine — the owning media port's
// cooperative loop is the sole caller (spec §5) — so it carries no locks,
// mirroring the teacher's network.Manager which is likewise confined to
// its ICE agent's single goroutine.
package state

import (
	"fmt"
	"time"

	"github.com/pion/sfu/internal/config"
	"github.com/pion/sfu/internal/dtlsbridge"
	"github.com/pion/sfu/internal/icecreds"
	"github.com/pion/sfu/internal/sctpbridge"
	"github.com/pion/sfu/internal/session"
	"github.com/pion/sfu/internal/types"
)

// Store is ServerStates (spec §3).
type Store struct {
	cfg *config.Config

	sessions   map[types.SessionID]*session.Session
	candidates map[string]*session.Candidate // keyed by Candidate.Username()
	endpoints  map[string]types.EndpointKey   // keyed by FourTuple.Key()

	sctpAssociations map[uint32]*sctpbridge.Endpoint
	nextAssocHandle  uint32
}

// New builds an empty Store for one media port.
func New(cfg *config.Config) *Store {
	return &Store{
		cfg:              cfg,
		sessions:         make(map[types.SessionID]*session.Session),
		candidates:       make(map[string]*session.Candidate),
		endpoints:        make(map[string]types.EndpointKey),
		sctpAssociations: make(map[uint32]*sctpbridge.Endpoint),
	}
}

// CreateOrGetSession resolves-or-creates a Session (spec §4.8 step 2).
func (s *Store) CreateOrGetSession(id types.SessionID) *session.Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := session.NewSession(id)
	s.sessions[id] = sess
	return sess
}

// FindCandidate looks up a Candidate by its admission username (spec §4.3 step 2).
func (s *Store) FindCandidate(username string) (*session.Candidate, bool) {
	c, ok := s.candidates[username]
	return c, ok
}

// RegisterCandidate indexes a new Candidate under its username with an
// idle-expiry deadline (spec §4.8 step 6).
func (s *Store) RegisterCandidate(c *session.Candidate) {
	c.ExpiresAt = time.Now().Add(s.cfg.CandidateIdleTimeout)
	s.candidates[c.Username()] = c
}

// ExpireCandidates drops every Candidate past its idle deadline (spec §5
// "Candidate idle timeout (default 30s) expires uninstalled Candidates").
func (s *Store) ExpireCandidates(now time.Time) {
	for k, c := range s.candidates {
		if now.After(c.ExpiresAt) {
			delete(s.candidates, k)
		}
	}
}

// AddEndpoint installs the four-tuple → (session, endpoint) reverse index
// (spec §3 invariant: "a four-tuple belongs to at most one Endpoint at a time").
func (s *Store) AddEndpoint(ft types.FourTuple, key types.EndpointKey) {
	s.endpoints[ft.Key()] = key
}

// RemoveEndpoint drops a four-tuple's reverse-index entry.
func (s *Store) RemoveEndpoint(ft types.FourTuple) {
	delete(s.endpoints, ft.Key())
}

// FindEndpoint resolves a four-tuple to its owning (session, endpoint) (spec §4.9).
func (s *Store) FindEndpoint(ft types.FourTuple) (types.EndpointKey, bool) {
	key, ok := s.endpoints[ft.Key()]
	return key, ok
}

// Session fetches a Session by ID without creating it.
func (s *Store) Session(id types.SessionID) (*session.Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// Sessions returns every live Session this Port owns, for shutdown
// teardown (spec §5).
func (s *Store) Sessions() []*session.Session {
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// GetMutTransport resolves a four-tuple to its live Transport (spec §4.9
// "get_mut_transport(four_tuple) -> Transport"). Go has no borrow
// checker, so "mut" here is just "the one shared instance": callers
// mutate the returned pointer directly, safe only because the owning
// media port's single goroutine is the sole caller (spec §5).
func (s *Store) GetMutTransport(ft types.FourTuple) (*session.Transport, bool) {
	key, ok := s.FindEndpoint(ft)
	if !ok {
		return nil, false
	}
	sess, ok := s.sessions[key.Session]
	if !ok {
		return nil, false
	}
	ep, ok := sess.Endpoints[key.Endpoint]
	if !ok {
		return nil, false
	}
	t, ok := ep.Transports[ft.Key()]
	return t, ok
}

// InstallTransport creates a Transport for a newly admitted four-tuple,
// allocating its DTLS and SCTP bridge endpoints from the admitted
// Candidate's negotiated role and registering the four-tuple reverse index
// (spec §4.3 step 3).
func (s *Store) InstallTransport(dtlsCfg *dtlsbridge.Config, sctpCfg *sctpbridge.Config, ep *session.Endpoint, cand *session.Candidate, ft types.FourTuple) *session.Transport {
	role := dtlsbridge.RoleServer
	if cand.LocalCreds.Role == session.DTLSRoleClient {
		role = dtlsbridge.RoleClient
	}

	t := &session.Transport{FourTuple: ft, Candidate: cand}
	t.DTLS = dtlsbridge.NewEndpoint(dtlsCfg, role, ft.Local, ft.Remote, cand.RemoteCreds.Fingerprints)
	t.SCTP = sctpbridge.NewEndpoint(sctpCfg, sctpRoleFor(role))

	ep.Transports[ft.Key()] = t
	s.AddEndpoint(ft, types.EndpointKey{Session: cand.SessionID, Endpoint: cand.EndpointID})
	return t
}

// sctpRoleFor mirrors the DTLS role into the SCTP association's client/
// server role: whichever side completed the DTLS handshake as client
// initiates the SCTP association too (spec §4.5).
func sctpRoleFor(r dtlsbridge.Role) sctpbridge.Role {
	if r == dtlsbridge.RoleClient {
		return sctpbridge.RoleClient
	}
	return sctpbridge.RoleServer
}

// NewAssociationHandle allocates a fresh SCTP association handle and
// registers its bridge endpoint (spec §4.5 "New associations register
// into ServerStates").
func (s *Store) NewAssociationHandle(ep *sctpbridge.Endpoint) uint32 {
	s.nextAssocHandle++
	h := s.nextAssocHandle
	s.sctpAssociations[h] = ep
	return h
}

// Association looks up a registered SCTP bridge endpoint by handle.
func (s *Store) Association(handle uint32) (*sctpbridge.Endpoint, bool) {
	ep, ok := s.sctpAssociations[handle]
	return ep, ok
}

// RemoveAssociation drops a handle once its association closes.
func (s *Store) RemoveAssociation(handle uint32) {
	delete(s.sctpAssociations, handle)
}

// NewLocalCredentials generates fresh ICE credentials for a brand-new
// Endpoint (spec §4.8 step 3).
func (s *Store) NewLocalCredentials() (session.ConnectionCredentials, error) {
	ufrag, pwd, err := icecreds.Generate()
	if err != nil {
		return session.ConnectionCredentials{}, fmt.Errorf("state: generate ice credentials: %w", err)
	}
	return session.ConnectionCredentials{
		Ufrag:        ufrag,
		Password:     pwd,
		Fingerprints: s.cfg.Certificate.Fingerprints,
	}, nil
}

// Config exposes the process-wide Config the media port shares by
// reference (spec §5 "Resource policy").
func (s *Store) Config() *config.Config {
	return s.cfg
}
