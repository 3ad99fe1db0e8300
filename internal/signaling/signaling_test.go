package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pion/sfu/internal/mediaport"
	"github.com/pion/sfu/internal/types"
)

func TestParsePath(t *testing.T) {
	testCases := []struct {
		path           string
		prefix         string
		expectedOK     bool
		expectedSessID types.SessionID
		expectedEpID   types.EndpointID
	}{
		{"/offer/1/0", "/offer/", true, 1, 0},
		{"/offer/42/7", "/offer/", true, 42, 7},
		{"/leave/1/0", "/leave/", true, 1, 0},
		{"/offer/1", "/offer/", false, 0, 0},
		{"/offer/1/0/extra", "/offer/", false, 0, 0},
		{"/offer/abc/0", "/offer/", false, 0, 0},
	}

	for i, testCase := range testCases {
		sessID, epID, ok := parsePath(testCase.path, testCase.prefix)
		assert.Equal(t, testCase.expectedOK, ok, "testCase: %d %v", i, testCase)
		if testCase.expectedOK {
			assert.Equal(t, testCase.expectedSessID, sessID)
			assert.Equal(t, testCase.expectedEpID, epID)
		}
	}
}

func TestServer_PortFor(t *testing.T) {
	ports := []chan mediaport.SignalingRequest{
		make(chan mediaport.SignalingRequest),
		make(chan mediaport.SignalingRequest),
		make(chan mediaport.SignalingRequest),
	}
	s := &Server{ports: ports}

	// session_id mod num_ports (spec §6) picks the same port deterministically.
	assert.Equal(t, ports[0], s.portFor(0))
	assert.Equal(t, ports[1], s.portFor(1))
	assert.Equal(t, ports[0], s.portFor(3))
	assert.Equal(t, ports[2], s.portFor(5))
}
