package stunmsg

import (
	"net"
	"testing"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRequest(t *testing.T, username, password string) *stun.Message {
	t.Helper()
	m := new(stun.Message)
	m.TransactionID = stun.NewTransactionID()

	setters := []stun.Setter{stun.BindingRequest}
	if username != "" {
		setters = append(setters, stun.Username(username))
	}
	if password != "" {
		setters = append(setters, stun.NewShortTermIntegrity(password))
	}
	setters = append(setters, stun.Fingerprint)

	require.NoError(t, m.Build(setters...))
	return m
}

func TestParse_RoundTrip(t *testing.T) {
	req := buildRequest(t, "local:remote", "pass")
	parsed, err := Parse(req.Raw)
	require.NoError(t, err)
	assert.True(t, IsBindingRequest(parsed))

	username, ok := Username(parsed)
	require.True(t, ok)
	assert.Equal(t, "local:remote", username)
}

func TestParse_Truncated(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrTruncated)
}

// withRawAttrs constructs a decoded-looking Message carrying the given raw
// attributes directly, bypassing Build/Encode: Contains only inspects the
// in-memory Attributes slice, so this is a faithful stand-in for a message
// that actually decoded PRIORITY/ICE-CONTROLLING/ICE-CONTROLLED off the wire.
func withRawAttrs(msgType stun.MessageType, attrs ...stun.RawAttribute) *stun.Message {
	return &stun.Message{Type: msgType, Attributes: attrs}
}

func TestHasPriority_And_ControlRole(t *testing.T) {
	m := withRawAttrs(stun.BindingRequest,
		stun.RawAttribute{Type: attrPriority, Value: []byte{0x00, 0x00, 0x00, 0x01}},
		stun.RawAttribute{Type: attrICEControlling, Value: []byte{0, 0, 0, 0, 0, 0, 0, 1}},
	)

	assert.True(t, HasPriority(m))
	isControlling, isControlled := ControlRole(m)
	assert.True(t, isControlling)
	assert.False(t, isControlled)
	assert.False(t, HasUseCandidate(m))
}

func TestHasPriority_Absent(t *testing.T) {
	m := withRawAttrs(stun.BindingRequest)
	assert.False(t, HasPriority(m))
}

func TestCheckIntegrity(t *testing.T) {
	req := buildRequest(t, "u:r", "correct-horse")
	parsed, err := Parse(req.Raw)
	require.NoError(t, err)

	assert.NoError(t, CheckIntegrity(parsed, "correct-horse"))
	assert.Error(t, CheckIntegrity(parsed, "wrong-password"))
}

func TestBuildBindingSuccess(t *testing.T) {
	raw, err := BuildBindingSuccess(stun.NewTransactionID(), &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 54321}, "localpass")
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, stun.BindingSuccess, parsed.Type)

	var xorAddr stun.XORMappedAddress
	require.NoError(t, xorAddr.GetFrom(parsed))
	assert.Equal(t, 54321, xorAddr.Port)
	assert.True(t, xorAddr.IP.Equal(net.ParseIP("203.0.113.1")))
}

func TestBuildReflexiveSuccess(t *testing.T) {
	raw, err := BuildReflexiveSuccess(stun.NewTransactionID(), &net.UDPAddr{IP: net.ParseIP("198.51.100.2"), Port: 1234})
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, stun.BindingSuccess, parsed.Type)
}
