package dtlsbridge

import (
	"net"
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/sfu/internal/config"
)

func TestWriteApplication_BeforeHandshakeComplete(t *testing.T) {
	cert, err := config.GenerateCertificate()
	require.NoError(t, err)

	cfg := &Config{Certificate: cert, LoggerFactory: logging.NewDefaultLoggerFactory()}
	local := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3478}
	remote := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 50000}

	e := NewEndpoint(cfg, RoleServer, local, remote, cert.Fingerprints)
	defer e.Close()

	err = e.WriteApplication([]byte("too early"))
	assert.Error(t, err)
}

func TestPollTimeout_AlwaysEmpty(t *testing.T) {
	cert, err := config.GenerateCertificate()
	require.NoError(t, err)
	cfg := &Config{Certificate: cert, LoggerFactory: logging.NewDefaultLoggerFactory()}
	local := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3478}
	remote := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 50000}

	e := NewEndpoint(cfg, RoleServer, local, remote, cert.Fingerprints)
	defer e.Close()

	_, ok := e.PollTimeout()
	assert.False(t, ok)
}
