// SDP offer/answer parsing (spec §4.8 step 1), generalizing the teacher's
// extractFingerprint/extractICEDetails/getPeerDirection/getMidValue
// extraction helpers to a full ConnectionCredentials + per-mid transceiver
// walk over one parsed description.
package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"

	"github.com/pion/sfu/internal/config"
)

// Parse unmarshals a raw SDP string for downstream extraction.
func Parse(raw string) (*sdp.SessionDescription, error) {
	d := &sdp.SessionDescription{}
	if err := d.Unmarshal([]byte(raw)); err != nil {
		return nil, fmt.Errorf("session: unmarshal sdp: %w", err)
	}
	return d, nil
}

// ExtractCredentials pulls the session- or media-level ice-ufrag/ice-pwd
// and DTLS fingerprint/setup out of a parsed description (spec §4.8 step
// 1). A single ufrag/pwd/fingerprint is required to be consistent across
// every media section (teacher's extractICEDetails/extractFingerprint).
func ExtractCredentials(d *sdp.SessionDescription) (ConnectionCredentials, error) {
	var c ConnectionCredentials

	ufrag, ufragOK := d.Attribute("ice-ufrag")
	pwd, pwdOK := d.Attribute("ice-pwd")
	for _, m := range d.MediaDescriptions {
		if v, ok := m.Attribute("ice-ufrag"); ok {
			if ufragOK && v != ufrag {
				return c, fmt.Errorf("session: conflicting ice-ufrag across media sections")
			}
			ufrag, ufragOK = v, true
		}
		if v, ok := m.Attribute("ice-pwd"); ok {
			if pwdOK && v != pwd {
				return c, fmt.Errorf("session: conflicting ice-pwd across media sections")
			}
			pwd, pwdOK = v, true
		}
	}
	if !ufragOK {
		return c, fmt.Errorf("session: missing ice-ufrag")
	}
	if !pwdOK {
		return c, fmt.Errorf("session: missing ice-pwd")
	}
	c.Ufrag, c.Password = ufrag, pwd

	fp, fpOK := d.Attribute("fingerprint")
	for _, m := range d.MediaDescriptions {
		if v, ok := m.Attribute("fingerprint"); ok {
			if fpOK && v != fp {
				return c, fmt.Errorf("session: conflicting fingerprint across media sections")
			}
			fp, fpOK = v, true
		}
	}
	if !fpOK {
		return c, fmt.Errorf("session: missing fingerprint")
	}
	parts := strings.SplitN(fp, " ", 2)
	if len(parts) != 2 {
		return c, fmt.Errorf("session: malformed fingerprint attribute %q", fp)
	}
	c.Fingerprints = []config.Fingerprint{{Algorithm: parts[0], Value: parts[1]}}

	c.Role = roleFromSetup(setupAttrOf(d))
	return c, nil
}

func setupAttrOf(d *sdp.SessionDescription) string {
	if v, ok := d.Attribute(sdp.AttrKeyConnectionSetup); ok {
		return v
	}
	for _, m := range d.MediaDescriptions {
		if v, ok := m.Attribute(sdp.AttrKeyConnectionSetup); ok {
			return v
		}
	}
	return ""
}

func roleFromSetup(setupAttr string) DTLSRole {
	switch setupAttr {
	case "active":
		return DTLSRoleClient
	case "passive":
		return DTLSRoleServer
	default:
		return DTLSRoleAuto
	}
}

// MediaSection is one m= section's parsed identity (spec §4.8 step 2).
type MediaSection struct {
	Mid       string
	Kind      Kind
	Direction Direction
	RTPParams []RTPCodecParameters
	ExtMaps   []ExtMap
	SSRCs     []uint32
}

// MidValue returns the `a=mid:` value of a media section, or "" if absent
// (teacher's getMidValue).
func MidValue(m *sdp.MediaDescription) string {
	for _, a := range m.Attributes {
		if a.Key == sdp.AttrKeyMID {
			return a.Value
		}
	}
	return ""
}

// PeerDirection returns the offered/answered direction of a media section,
// defaulting to sendrecv per RFC 3264 §5.1 (teacher's getPeerDirection).
func PeerDirection(m *sdp.MediaDescription) Direction {
	for _, a := range m.Attributes {
		switch a.Key {
		case sdp.AttrKeySendRecv:
			return DirectionSendRecv
		case sdp.AttrKeySendOnly:
			return DirectionSendOnly
		case sdp.AttrKeyRecvOnly:
			return DirectionRecvOnly
		case sdp.AttrKeyInactive:
			return DirectionInactive
		}
	}
	return DirectionSendRecv
}

func kindFromMediaName(name string) Kind {
	switch name {
	case "audio":
		return KindAudio
	case "video":
		return KindVideo
	default:
		return KindApplication
	}
}

// ExtractMediaSections walks every m= section of a parsed description
// into the shape the gateway needs to build/update Transceivers (spec
// §4.8 step 2, generalizing trackDetailsFromSDP to whole sections rather
// than per-SSRC tracks since the SFU forwards by mid, not by track).
func ExtractMediaSections(d *sdp.SessionDescription) []MediaSection {
	sections := make([]MediaSection, 0, len(d.MediaDescriptions))
	for _, m := range d.MediaDescriptions {
		mid := MidValue(m)
		if mid == "" {
			continue
		}
		kind := kindFromMediaName(m.MediaName.Media)
		sec := MediaSection{
			Mid:       mid,
			Kind:      kind,
			Direction: PeerDirection(m),
		}
		if kind != KindApplication {
			sec.RTPParams = codecsFromMedia(m)
			sec.ExtMaps = extMapsFromMedia(m)
			sec.SSRCs = ssrcsFromMedia(m)
		}
		sections = append(sections, sec)
	}
	return sections
}

func codecsFromMedia(m *sdp.MediaDescription) []RTPCodecParameters {
	byPT := map[uint8]*RTPCodecParameters{}
	var order []uint8
	for _, fmtStr := range m.MediaName.Formats {
		pt64, err := strconv.ParseUint(fmtStr, 10, 8)
		if err != nil {
			continue
		}
		pt := uint8(pt64)
		byPT[pt] = &RTPCodecParameters{PayloadType: pt}
		order = append(order, pt)
	}

	for _, a := range m.Attributes {
		switch a.Key {
		case "rtpmap":
			pt, name, clock, channels, ok := parseRtpmap(a.Value)
			if !ok {
				continue
			}
			c, exists := byPT[pt]
			if !exists {
				continue
			}
			c.MimeType = m.MediaName.Media + "/" + name
			c.ClockRate = clock
			c.Channels = channels
		case "fmtp":
			fields := strings.SplitN(a.Value, " ", 2)
			if len(fields) != 2 {
				continue
			}
			pt64, err := strconv.ParseUint(fields[0], 10, 8)
			if err != nil {
				continue
			}
			if c, ok := byPT[uint8(pt64)]; ok {
				c.SDPFmtpLine = fields[1]
			}
		case "rtcp-fb":
			fields := strings.SplitN(a.Value, " ", 3)
			if len(fields) < 2 {
				continue
			}
			pt64, err := strconv.ParseUint(fields[0], 10, 8)
			if err != nil {
				continue
			}
			c, ok := byPT[uint8(pt64)]
			if !ok {
				continue
			}
			fb := RTCPFeedback{Type: fields[1]}
			if len(fields) == 3 {
				fb.Parameter = fields[2]
			}
			c.RTCPFeedback = append(c.RTCPFeedback, fb)
		}
	}

	out := make([]RTPCodecParameters, 0, len(order))
	for _, pt := range order {
		out = append(out, *byPT[pt])
	}
	return out
}

func parseRtpmap(value string) (pt uint8, name string, clockRate uint32, channels uint16, ok bool) {
	fields := strings.SplitN(value, " ", 2)
	if len(fields) != 2 {
		return 0, "", 0, 0, false
	}
	pt64, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return 0, "", 0, 0, false
	}
	parts := strings.Split(fields[1], "/")
	name = parts[0]
	if len(parts) > 1 {
		cr, err := strconv.ParseUint(parts[1], 10, 32)
		if err == nil {
			clockRate = uint32(cr)
		}
	}
	channels = 1
	if len(parts) > 2 {
		ch, err := strconv.ParseUint(parts[2], 10, 16)
		if err == nil {
			channels = uint16(ch)
		}
	}
	return uint8(pt64), name, clockRate, channels, true
}

func extMapsFromMedia(m *sdp.MediaDescription) []ExtMap {
	var out []ExtMap
	for _, a := range m.Attributes {
		if a.Key != "extmap" {
			continue
		}
		em := &sdp.ExtMap{}
		if err := em.Unmarshal("extmap:" + a.Value); err != nil {
			continue
		}
		uri := ""
		if em.URI != nil {
			uri = em.URI.String()
		}
		out = append(out, ExtMap{ID: em.Value, URI: uri})
	}
	return out
}

func ssrcsFromMedia(m *sdp.MediaDescription) []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, a := range m.Attributes {
		if a.Key != sdp.AttrKeySSRC {
			continue
		}
		fields := strings.SplitN(a.Value, " ", 2)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			continue
		}
		ssrc := uint32(v)
		if !seen[ssrc] {
			seen[ssrc] = true
			out = append(out, ssrc)
		}
	}
	return out
}

// HasApplicationSection reports whether a description carries a data
// media section (teacher's haveApplicationMediaSection).
func HasApplicationSection(d *sdp.SessionDescription) bool {
	for _, m := range d.MediaDescriptions {
		if m.MediaName.Media == mediaSectionApplication {
			return true
		}
	}
	return false
}
