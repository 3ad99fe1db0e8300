package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Fingerprint is a DTLS certificate fingerprint as carried on the wire in
// SDP `a=fingerprint:` lines (spec §6).
type Fingerprint struct {
	Algorithm string
	Value     string
}

// Certificate is the server's long-lived DTLS identity: an ECDSA P-256
// self-signed certificate, generated once at startup (spec §6, §7 Fatal).
// Modeled on the teacher's certificate.go GenerateCertificate/GetFingerprints,
// adapted to a single server identity instead of a per-connection one.
type Certificate struct {
	TLS          tls.Certificate
	X509         *x509.Certificate
	Fingerprints []Fingerprint
}

// GenerateCertificate creates the server's self-signed ECDSA P-256/SHA-256
// certificate. Failure here is Fatal (spec §7): the caller should abort
// startup with a non-zero exit status.
func GenerateCertificate() (*Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("config: generate dtls key: %w", err)
	}

	origin := make([]byte, 16)
	if _, err := rand.Read(origin); err != nil {
		return nil, fmt.Errorf("config: generate serial origin: %w", err)
	}

	maxSerial := new(big.Int).Sub(new(big.Int).Exp(big.NewInt(2), big.NewInt(130), nil), big.NewInt(1))
	serial, err := rand.Int(rand.Reader, maxSerial)
	if err != nil {
		return nil, fmt.Errorf("config: generate serial: %w", err)
	}

	tpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hex.EncodeToString(origin)},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		SignatureAlgorithm:    x509.ECDSAWithSHA256,
	}

	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("config: create certificate: %w", err)
	}

	x509Cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("config: parse certificate: %w", err)
	}

	sum := sha256.Sum256(x509Cert.Raw)
	fp := make([]string, len(sum))
	for i, b := range sum {
		fp[i] = fmt.Sprintf("%02X", b)
	}

	return &Certificate{
		TLS: tls.Certificate{
			Certificate: [][]byte{der},
			PrivateKey:  priv,
		},
		X509: x509Cert,
		Fingerprints: []Fingerprint{
			{Algorithm: "sha-256", Value: strings.Join(fp, ":")},
		},
	}, nil
}
