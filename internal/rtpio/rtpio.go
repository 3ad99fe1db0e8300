// Package rtpio turns raw bytes into typed RTP/RTCP packets and back
// (spec §4's "RTP/RTCP parse/marshal" component), wrapping
// github.com/pion/rtp and github.com/pion/rtcp directly.
package rtpio

import (
	"fmt"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// IsRTCP classifies a packet by its second byte (spec §4.7): RTCP iff
// byte[1] is in [192,223].
func IsRTCP(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	return buf[1] >= 192 && buf[1] <= 223
}

// UnmarshalRTP parses a plaintext RTP packet.
func UnmarshalRTP(buf []byte) (*rtp.Packet, error) {
	p := &rtp.Packet{}
	if err := p.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("rtpio: unmarshal rtp: %w", err)
	}
	return p, nil
}

// MarshalRTP serializes an RTP packet back to wire bytes.
func MarshalRTP(p *rtp.Packet) ([]byte, error) {
	buf, err := p.Marshal()
	if err != nil {
		return nil, fmt.Errorf("rtpio: marshal rtp: %w", err)
	}
	return buf, nil
}

// UnmarshalRTCP parses a plaintext RTCP compound packet.
func UnmarshalRTCP(buf []byte) ([]rtcp.Packet, error) {
	pkts, err := rtcp.Unmarshal(buf)
	if err != nil {
		return nil, fmt.Errorf("rtpio: unmarshal rtcp: %w", err)
	}
	return pkts, nil
}

// MarshalRTCP serializes an RTCP compound packet back to wire bytes.
func MarshalRTCP(pkts []rtcp.Packet) ([]byte, error) {
	buf, err := rtcp.Marshal(pkts)
	if err != nil {
		return nil, fmt.Errorf("rtpio: marshal rtcp: %w", err)
	}
	return buf, nil
}
