package dcep

import (
	"testing"

	"github.com/pion/datachannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleControl_OpenProducesAckAndOpenEvent(t *testing.T) {
	open := &datachannel.ChannelOpen{
		ChannelType:          datachannel.ChannelTypeReliable,
		Priority:             0,
		ReliabilityParameter: 0,
		Label:                []byte("data"),
		Protocol:             []byte(""),
	}
	raw, err := open.Marshal()
	require.NoError(t, err)

	ackBytes, msg, err := HandleControl(3, raw)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, uint16(3), msg.StreamID)
	assert.Equal(t, EventOpen, msg.Event)
	require.NotEmpty(t, ackBytes)

	parsedAck, err := datachannel.Parse(ackBytes)
	require.NoError(t, err)
	_, ok := parsedAck.(*datachannel.ChannelAck)
	assert.True(t, ok)
}

func TestHandleControl_AckIsNonDestructive(t *testing.T) {
	ack := &datachannel.ChannelAck{}
	raw, err := ack.Marshal()
	require.NoError(t, err)

	ackBytes, msg, err := HandleControl(3, raw)
	require.NoError(t, err)
	assert.Nil(t, ackBytes)
	assert.Nil(t, msg)
}

func TestHandleControl_InvalidBytes(t *testing.T) {
	_, _, err := HandleControl(3, []byte{0xFF})
	assert.Error(t, err)
}

func TestPPIDForOutbound(t *testing.T) {
	ppid := PPIDForOutbound([]byte("hello"))
	assert.NotZero(t, ppid)
}
