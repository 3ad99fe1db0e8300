package sctpbridge

import (
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
)

func TestPPIDFor(t *testing.T) {
	assert.Equal(t, PPIDString, PPIDFor(MessageText, 5))
	assert.Equal(t, PPIDStringEmpty, PPIDFor(MessageText, 0))
	assert.Equal(t, PPIDBinary, PPIDFor(MessageBinary, 5))
	assert.Equal(t, PPIDBinaryEmpty, PPIDFor(MessageBinary, 0))
	assert.Equal(t, PPIDDcep, PPIDFor(MessageControl, 5))
	assert.Equal(t, PPIDDcep, PPIDFor(MessageNone, 0))
}

func TestWrite_RejectsOversizePayload(t *testing.T) {
	cfg := &Config{MaxMessageSize: 8, LoggerFactory: logging.NewDefaultLoggerFactory()}
	e := NewEndpoint(cfg, RoleClient)
	defer e.Close()

	err := e.Write(0, ReliabilityParams{Ordered: true, Reliable: true}, PPIDString, make([]byte, 9))
	assert.ErrorIs(t, err, ErrResourceLimit)
}
