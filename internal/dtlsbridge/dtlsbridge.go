// Package dtlsbridge drives one DTLS handshake per remote (spec §4.4),
// extracting SRTP keying material on completion and bridging decrypted
// application data to/from the SCTP bridge. It wraps github.com/pion/dtls/v3,
// which — unlike the sans-io shape spec §4.4 describes (poll_transmit,
// handle_timeout) — is connection-oriented: the handshake and the
// retransmit timers it drives both live inside dtls.Conn's blocking
// Read/Write calls. The adaptation (documented in DESIGN.md) runs that
// blocking conversation on its own goroutine per remote, over a pktConn,
// and exposes only non-blocking Feed/PollTransmit/Events to the media
// port's single cooperative loop (spec §5) — so nothing the port thread
// itself does ever blocks, even though pion/dtls's own goroutine does.
package dtlsbridge

import (
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/pion/dtls/v3"
	"github.com/pion/logging"

	"github.com/pion/sfu/internal/config"
)

// Role is which side of the handshake this Endpoint plays.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// EventKind tags an Endpoint event.
type EventKind int

const (
	EventHandshakeComplete EventKind = iota
	EventApplicationData
	EventClosed
)

// Event is what Endpoint.Events delivers (spec §4.4).
type Event struct {
	Kind EventKind
	Data []byte // ApplicationData payload
	Err  error  // Closed reason, if any
}

// KeyingMaterial is the local/remote key+salt pair and negotiated profile
// extracted once the handshake completes (spec §4.4 update_srtp_contexts).
type KeyingMaterial struct {
	Profile            string
	LocalKey, LocalSalt   []byte
	RemoteKey, RemoteSalt []byte
}

// Endpoint is the per-Transport DTLS handshake/connection state.
type Endpoint struct {
	conn   *pktConn
	events chan Event

	dtlsConn *dtls.Conn
	keying   *KeyingMaterial
}

// Config bundles what every Endpoint needs from the immutable,
// process-wide server configuration (spec §5).
type Config struct {
	Certificate   *config.Certificate
	LoggerFactory logging.LoggerFactory
}

// srtpProfiles are the profiles offered/accepted, per spec §6:
// "Srtp_Aes128_Cm_Hmac_Sha1_80 (additional profiles permitted)".
var srtpProfiles = []dtls.SRTPProtectionProfile{
	dtls.SRTP_AES128_CM_HMAC_SHA1_80,
	dtls.SRTP_AEAD_AES_128_GCM,
}

// NewEndpoint starts a handshake for one Transport's four-tuple. local
// and remote are used only as pktConn's addressing (pion/dtls requires a
// net.Conn, it never dials out itself).
func NewEndpoint(cfg *Config, role Role, local, remote net.Addr, remoteFingerprints []config.Fingerprint) *Endpoint {
	e := &Endpoint{
		conn:   newPktConn(local, remote),
		events: make(chan Event, 16),
	}

	dtlsCfg := &dtls.Config{
		Certificates:           []dtls.Certificate{{Certificate: cfg.Certificate.TLS.Certificate, PrivateKey: cfg.Certificate.TLS.PrivateKey}},
		InsecureSkipVerify:     true, // we verify the peer fingerprint ourselves below, not a CA chain
		ExtendedMasterSecret:   dtls.RequireExtendedMasterSecret,
		SRTPProtectionProfiles: srtpProfiles,
		LoggerFactory:          cfg.LoggerFactory,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyFingerprint(rawCerts, remoteFingerprints)
		},
	}

	go e.run(role, dtlsCfg)

	return e
}

func (e *Endpoint) run(role Role, dtlsCfg *dtls.Config) {
	var conn *dtls.Conn
	var err error
	if role == RoleClient {
		conn, err = dtls.Client(e.conn, dtlsCfg)
	} else {
		conn, err = dtls.Server(e.conn, dtlsCfg)
	}
	if err != nil {
		e.events <- Event{Kind: EventClosed, Err: fmt.Errorf("dtlsbridge: handshake: %w", err)}
		return
	}
	e.dtlsConn = conn

	state := conn.ConnectionState()
	keying, err := extractKeyingMaterial(conn, state.SRTPProtectionProfile, role)
	if err != nil {
		e.events <- Event{Kind: EventClosed, Err: err}
		return
	}
	e.keying = keying
	e.events <- Event{Kind: EventHandshakeComplete}

	buf := make([]byte, 8192)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			e.events <- Event{Kind: EventClosed, Err: err}
			return
		}
		e.events <- Event{Kind: EventApplicationData, Data: append([]byte(nil), buf[:n]...)}
	}
}

// Feed delivers one inbound UDP datagram addressed to this Transport
// into the handshake/record layer (spec §4.4).
func (e *Endpoint) Feed(_ time.Time, data []byte) {
	e.conn.feed(data)
}

// PollTransmit drains outbound DTLS datagrams to be sent over UDP,
// called "after every read, timeout, and write" (spec §4.4).
func (e *Endpoint) PollTransmit() [][]byte {
	return e.conn.drain()
}

// WriteApplication sends application data (SCTP payload) over the
// established DTLS connection (spec §4.4 "outbound application write").
func (e *Endpoint) WriteApplication(data []byte) error {
	if e.dtlsConn == nil {
		return fmt.Errorf("dtlsbridge: write before handshake complete")
	}
	_, err := e.dtlsConn.Write(data)
	return err
}

// Events delivers HandshakeComplete/ApplicationData/Closed notifications
// for the media port's loop to drain non-blockingly.
func (e *Endpoint) Events() <-chan Event {
	return e.events
}

// Keying returns the keying material extracted at handshake completion,
// or nil if the handshake hasn't completed.
func (e *Endpoint) Keying() *KeyingMaterial {
	return e.keying
}

// PollTimeout and HandleTimeout are no-ops: pion/dtls drives its own
// retransmission timers inside the blocking conn.Read/Write calls run on
// Endpoint.run's own goroutine, so there is no separate deadline for the
// port's cooperative select to wait on (see the package doc and DESIGN.md).
func (e *Endpoint) PollTimeout() (time.Time, bool) { return time.Time{}, false }
func (e *Endpoint) HandleTimeout(time.Time)        {}

// Close tears the handshake/connection down (spec §5 shutdown).
func (e *Endpoint) Close() error {
	if e.dtlsConn != nil {
		return e.dtlsConn.Close()
	}
	return e.conn.Close()
}
