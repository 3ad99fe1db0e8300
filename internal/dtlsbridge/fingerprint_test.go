package dtlsbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/sfu/internal/config"
)

func TestVerifyFingerprint_MatchAndMismatch(t *testing.T) {
	cert, err := config.GenerateCertificate()
	require.NoError(t, err)

	assert.NoError(t, verifyFingerprint(cert.TLS.Certificate, cert.Fingerprints))

	other, err := config.GenerateCertificate()
	require.NoError(t, err)
	assert.Error(t, verifyFingerprint(cert.TLS.Certificate, other.Fingerprints))
}

func TestVerifyFingerprint_NoCertificate(t *testing.T) {
	assert.Error(t, verifyFingerprint(nil, nil))
}
