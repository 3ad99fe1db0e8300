package dtlsbridge

import (
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/pion/dtls/v3"

	"github.com/pion/sfu/internal/config"
)

// verifyFingerprint checks the peer's leaf certificate against the
// fingerprint(s) carried in its SDP (spec §1: "no authentication of
// peers beyond ... DTLS fingerprints conveyed in SDP").
func verifyFingerprint(rawCerts [][]byte, expected []config.Fingerprint) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("dtlsbridge: peer presented no certificate")
	}
	leaf, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("dtlsbridge: parse peer certificate: %w", err)
	}

	sum := sha256.Sum256(leaf.Raw)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	got := strings.Join(parts, ":")

	for _, fp := range expected {
		if strings.EqualFold(fp.Algorithm, "sha-256") && strings.EqualFold(fp.Value, got) {
			return nil
		}
	}
	return fmt.Errorf("dtlsbridge: peer certificate fingerprint mismatch")
}

// profileKeySaltLen returns (key length, salt length) in bytes for a
// negotiated SRTP protection profile (spec §4.4).
func profileKeySaltLen(profile dtls.SRTPProtectionProfile) (keyLen, saltLen int, name string) {
	switch profile {
	case dtls.SRTP_AEAD_AES_128_GCM:
		return 16, 12, "SRTP_AEAD_AES_128_GCM"
	default:
		return 16, 14, "SRTP_AES128_CM_HMAC_SHA1_80"
	}
}

// extractKeyingMaterial derives the four SRTP key/salt segments via the
// RFC 5705 DTLS-SRTP exporter (RFC 5764 §4.2), then splits them into
// client/server halves, finally orienting local/remote by our role
// (spec §4.4 update_srtp_contexts).
func extractKeyingMaterial(conn *dtls.Conn, profile dtls.SRTPProtectionProfile, role Role) (*KeyingMaterial, error) {
	keyLen, saltLen, name := profileKeySaltLen(profile)

	material, err := conn.ExportKeyingMaterial("EXTRACTOR-dtls_srtp", nil, 2*(keyLen+saltLen))
	if err != nil {
		return nil, fmt.Errorf("dtlsbridge: export keying material: %w", err)
	}

	offset := 0
	clientKey := material[offset : offset+keyLen]
	offset += keyLen
	serverKey := material[offset : offset+keyLen]
	offset += keyLen
	clientSalt := material[offset : offset+saltLen]
	offset += saltLen
	serverSalt := material[offset : offset+saltLen]

	km := &KeyingMaterial{Profile: name}
	if role == RoleClient {
		km.LocalKey, km.LocalSalt = clientKey, clientSalt
		km.RemoteKey, km.RemoteSalt = serverKey, serverSalt
	} else {
		km.LocalKey, km.LocalSalt = serverKey, serverSalt
		km.RemoteKey, km.RemoteSalt = clientKey, clientSalt
	}
	return km, nil
}
