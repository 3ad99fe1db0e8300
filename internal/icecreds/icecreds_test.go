package icecreds

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	ufrag, pwd, err := Generate()
	require.NoError(t, err)

	ufragRaw, err := base64.RawStdEncoding.DecodeString(ufrag)
	require.NoError(t, err)
	assert.Len(t, ufragRaw, ufragLen)

	pwdRaw, err := base64.RawStdEncoding.DecodeString(pwd)
	require.NoError(t, err)
	assert.Len(t, pwdRaw, pwdLen)

	ufrag2, pwd2, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, ufrag, ufrag2)
	assert.NotEqual(t, pwd, pwd2)
}

func TestUsername(t *testing.T) {
	assert.Equal(t, "abc:xyz", Username("abc", "xyz"))
}

func TestParseUsername(t *testing.T) {
	local, remote, ok := ParseUsername("abc:xyz")
	assert.True(t, ok)
	assert.Equal(t, "abc", local)
	assert.Equal(t, "xyz", remote)

	_, _, ok = ParseUsername("no-colon-here")
	assert.False(t, ok)

	// A colon inside the remote ufrag must not split further (SplitN(2)).
	local, remote, ok = ParseUsername("a:b:c")
	assert.True(t, ok)
	assert.Equal(t, "a", local)
	assert.Equal(t, "b:c", remote)
}
