package interceptors

import "github.com/pion/rtcp"

// SenderReport is the spec §4.10 pass-through member: the SFU forwards a
// sender's SR+CNAME SDES untouched rather than generating its own, since
// it never originates media.
type SenderReport struct{}

// Observe is a no-op placeholder for future SR rewriting (e.g. NTP/RTP
// timestamp correction across a transcoding boundary); today the fan-out
// path in internal/gateway forwards SR/SDES packets byte-for-byte.
func (SenderReport) Observe(*rtcp.SenderReport) {}
