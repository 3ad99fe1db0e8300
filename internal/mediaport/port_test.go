package mediaport

import (
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/sfu/internal/config"
	"github.com/pion/sfu/internal/session"
)

func testConfig() *config.Config {
	cfg := config.Default(logging.NewDefaultLoggerFactory())
	cfg.Certificate = &config.Certificate{}
	return cfg
}

func newTestPort(t *testing.T) *Port {
	t.Helper()
	shutdown := make(chan struct{})
	p, err := New(testConfig(), 0, make(chan SignalingRequest), shutdown)
	require.NoError(t, err)
	t.Cleanup(func() {
		close(shutdown)
		p.sock.Close() // unblocks readLoop's pending ReadFrom
	})
	return p
}

func TestNextTimeout_DefaultsToReceiverReportInterval(t *testing.T) {
	p := newTestPort(t)
	assert.Equal(t, p.cfg.ReceiverReportInterval, p.nextTimeout())
}

func TestNextTimeout_CountsDownToDueTime(t *testing.T) {
	p := newTestPort(t)
	p.receiverReportDue = time.Now().Add(50 * time.Millisecond)

	d := p.nextTimeout()
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, 50*time.Millisecond)
}

func TestNextTimeout_PastDueIsZero(t *testing.T) {
	p := newTestPort(t)
	p.receiverReportDue = time.Now().Add(-time.Second)
	assert.Equal(t, time.Duration(0), p.nextTimeout())
}

func TestTransportByKey(t *testing.T) {
	p := newTestPort(t)
	sess := session.NewSession(1)
	ep := session.NewEndpoint(1, 0)
	sess.Endpoints[0] = ep

	transport := &session.Transport{}
	ep.Transports["ft-key"] = transport

	got, ok := p.transportByKey(sess, "ft-key")
	require.True(t, ok)
	assert.Same(t, transport, got)

	_, ok = p.transportByKey(sess, "missing")
	assert.False(t, ok)
}
