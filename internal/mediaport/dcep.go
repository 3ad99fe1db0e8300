package mediaport

import (
	"github.com/pion/sfu/internal/dcep"
	"github.com/pion/sfu/internal/sctpbridge"
)

func dcepHandleControl(streamID uint16, raw []byte) ([]byte, *dcep.ApplicationMessage, error) {
	return dcep.HandleControl(streamID, raw)
}

func dcepOpenReliability() sctpbridge.ReliabilityParams {
	return dcep.OpenReliability
}

func dcepMessageReliability() sctpbridge.ReliabilityParams {
	return dcep.MessageReliability
}
