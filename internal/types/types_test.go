package types

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFourTuple_Key(t *testing.T) {
	a := FourTuple{
		Local:  &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3478},
		Remote: &net.UDPAddr{IP: net.ParseIP("1.2.3.4"), Port: 5000},
	}
	b := FourTuple{
		Local:  &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3478},
		Remote: &net.UDPAddr{IP: net.ParseIP("1.2.3.4"), Port: 5000},
	}
	c := FourTuple{
		Local:  &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3478},
		Remote: &net.UDPAddr{IP: net.ParseIP("1.2.3.4"), Port: 5001},
	}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestEndpointKey_String(t *testing.T) {
	k := EndpointKey{Session: 1, Endpoint: 2}
	assert.Equal(t, "1/2", k.String())
}
