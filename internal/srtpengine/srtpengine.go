// Package srtpengine protects and unprotects RTP/RTCP under the per
// four-tuple, per-direction contexts installed once a Transport's DTLS
// handshake completes (spec §4.7, §4.4). It wraps github.com/pion/srtp/v3's
// packet-oriented Context directly — no net.Conn, no goroutine — which is
// exactly the shape the single-threaded cooperative media port needs
// (spec §5: "run-to-completion", "MUST NOT block").
package srtpengine

import (
	"errors"
	"fmt"

	"github.com/pion/srtp/v3"
)

// Profile names the negotiated SRTP protection profile (spec §4.4, §6).
type Profile int

const (
	ProfileAes128CmHmacSha1_80 Profile = iota
	ProfileAeadAes128Gcm
)

// ErrNoSuchProfile is returned when DTLS negotiates an SRTP profile this
// engine doesn't implement (spec §4.4: "NoSuchSrtpProfile").
var ErrNoSuchProfile = errors.New("srtpengine: no such srtp profile")

func (p Profile) protectionProfile() srtp.ProtectionProfile {
	switch p {
	case ProfileAeadAes128Gcm:
		return srtp.ProtectionProfileAeadAes128Gcm
	default:
		return srtp.ProtectionProfileAes128CmHmacSha1_80
	}
}

// ProfileFromDTLS maps a DTLS-negotiated SRTP protection profile name
// (as surfaced by pion/dtls's ConnectionState) to a Profile, or
// ErrNoSuchProfile (spec §4.4).
func ProfileFromDTLS(name string) (Profile, error) {
	switch name {
	case "SRTP_AES128_CM_HMAC_SHA1_80":
		return ProfileAes128CmHmacSha1_80, nil
	case "SRTP_AEAD_AES_128_GCM":
		return ProfileAeadAes128Gcm, nil
	default:
		return 0, ErrNoSuchProfile
	}
}

// RTP/RTCP replay windows, fixed at 64 per spec §4.4/§6.
const (
	RTPReplayWindow  = 64
	RTCPReplayWindow = 64
)

// Context is one direction (encrypt xor decrypt) of SRTP/SRTCP protection
// for one Transport (spec §3 "local_srtp_context?, remote_srtp_context?").
type Context struct {
	inner *srtp.Context
}

// NewContext builds a Context from the keying material DTLS exported for
// one direction (spec §4.4 update_srtp_contexts).
func NewContext(key, salt []byte, profile Profile) (*Context, error) {
	inner, err := srtp.CreateContext(key, salt, profile.protectionProfile(),
		srtp.SRTPReplayProtection(RTPReplayWindow),
		srtp.SRTCPReplayProtection(RTCPReplayWindow),
	)
	if err != nil {
		return nil, fmt.Errorf("srtpengine: create context: %w", err)
	}
	return &Context{inner: inner}, nil
}

// EncryptRTP protects a plaintext RTP packet into dst (a new buffer when
// dst is nil or too small), appending the auth tag, and returns the
// protected datagram; plaintext is left unchanged (spec §4.7).
func (c *Context) EncryptRTP(dst, plaintext []byte) ([]byte, error) {
	out, err := c.inner.EncryptRTP(dst, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("srtpengine: encrypt rtp: %w", err)
	}
	return out, nil
}

// DecryptRTP unprotects an SRTP datagram, verifying auth and replay
// (spec §4.7).
func (c *Context) DecryptRTP(dst, encrypted []byte) ([]byte, error) {
	out, err := c.inner.DecryptRTP(dst, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("srtpengine: decrypt rtp: %w", err)
	}
	return out, nil
}

// EncryptRTCP protects a plaintext RTCP compound packet (spec §4.7).
func (c *Context) EncryptRTCP(dst, plaintext []byte) ([]byte, error) {
	out, err := c.inner.EncryptRTCP(dst, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("srtpengine: encrypt rtcp: %w", err)
	}
	return out, nil
}

// DecryptRTCP unprotects an SRTCP datagram (spec §4.7).
func (c *Context) DecryptRTCP(dst, encrypted []byte) ([]byte, error) {
	out, err := c.inner.DecryptRTCP(dst, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("srtpengine: decrypt rtcp: %w", err)
	}
	return out, nil
}

// IsRTCP classifies a protected or unprotected RTP/RTCP datagram by its
// second byte, per spec §4.7: "RTCP iff byte[1] in [192,223]".
func IsRTCP(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	return buf[1] >= 192 && buf[1] <= 223
}
