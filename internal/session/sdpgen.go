// SDP offer/answer construction (spec §4.8), generalizing the teacher's
// populateSDP/addTransceiverSDP/addDataMediaSection builder pipeline from
// one PeerConnection's tracks to one Endpoint's Transceiver map.
package session

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"

	"github.com/pion/sfu/internal/config"
)

const mediaSectionApplication = "application"

// BuildParams bundles what SDP generation needs beyond the Endpoint itself.
type BuildParams struct {
	LocalCreds   ConnectionCredentials
	LocalAddr    string // candidate connection-address, e.g. a bound UDP port's public IP
	LocalPort    int
	DTLSRole     DTLSRole
	IsOffer      bool
	SCTPMaxMsgSz uint32
}

// Build renders an Endpoint's transceivers into one SDP offer or answer
// (spec §4.8 step 5/6). mids are emitted in Endpoint.Mids order, which is
// also the BUNDLE group order (teacher's populateSDP, same invariant).
func Build(e *Endpoint, p BuildParams) (string, error) {
	d := sdp.NewJSEPSessionDescription(false)
	d.Origin.SessionID = e.OriginID
	d.Origin.SessionVersion = e.OriginVersion

	connRole := connectionRoleFor(p.DTLSRole.SetupAttr(p.IsOffer))

	bundle := "BUNDLE"
	for i, mid := range e.Mids {
		t := e.Transceivers[mid]
		shouldAddCandidate := i == 0

		if t.Kind == KindApplication {
			if err := addDataMediaSection(d, shouldAddCandidate, p, mid, connRole); err != nil {
				return "", err
			}
			bundle += " " + mid
			continue
		}

		if err := addTransceiverSection(d, shouldAddCandidate, p, mid, connRole, t); err != nil {
			return "", err
		}
		bundle += " " + mid
	}

	d.WithValueAttribute(sdp.AttrKeyGroup, bundle)

	// ICE-lite: the SFU never performs connectivity checks of its own
	// (spec §4.2, RFC 5245 §15.3).
	d.WithValueAttribute(sdp.AttrKeyICELite, sdp.AttrKeyICELite)

	for _, fp := range p.LocalCreds.Fingerprints {
		d.WithFingerprint(fp.Algorithm, strings.ToUpper(fp.Value))
	}

	raw, err := d.Marshal()
	if err != nil {
		return "", fmt.Errorf("session: marshal sdp: %w", err)
	}
	return string(raw), nil
}

func addTransceiverSection(d *sdp.SessionDescription, shouldAddCandidate bool, p BuildParams, mid string, role sdp.ConnectionRole, t *Transceiver) error {
	media := sdp.NewJSEPMediaDescription(t.Kind.String(), []string{}).
		WithValueAttribute(sdp.AttrKeyConnectionSetup, role.String()).
		WithValueAttribute(sdp.AttrKeyMID, mid).
		WithICECredentials(p.LocalCreds.Ufrag, p.LocalCreds.Password).
		WithPropertyAttribute(sdp.AttrKeyRTCPMux).
		WithPropertyAttribute(sdp.AttrKeyRTCPRsize)

	for _, c := range t.RTPParams {
		media.WithCodec(c.PayloadType, strings.TrimPrefix(c.MimeType, t.Kind.String()+"/"), c.ClockRate, c.Channels, c.SDPFmtpLine)
		for _, fb := range c.RTCPFeedback {
			media.WithValueAttribute("rtcp-fb", fmt.Sprintf("%d %s %s", c.PayloadType, fb.Type, fb.Parameter))
		}
	}

	for _, em := range t.ExtMaps {
		if u, err := url.Parse(em.URI); err == nil {
			media.WithExtMap(sdp.ExtMap{Value: em.ID, URI: u})
		}
	}

	direction := t.Direction
	if !p.IsOffer {
		direction = t.CurrentDirection
	}

	if s := t.Sender; s != nil && len(s.SSRCs) > 0 {
		media = media.WithMediaSource(s.SSRCs[0], s.CNAME, s.MediaStreamID.StreamID, s.MediaStreamID.TrackID)
		media = media.WithPropertyAttribute("msid:" + s.MediaStreamID.StreamID + " " + s.MediaStreamID.TrackID)
		for _, group := range s.SSRCGroups {
			parts := make([]string, len(group))
			for i, ssrc := range group {
				parts[i] = fmt.Sprintf("%d", ssrc)
			}
			media.WithValueAttribute(sdp.AttrKeySSRCGroup, sdp.SemanticTokenFlowIdentification+" "+strings.Join(parts, " "))
		}
	}

	media = media.WithPropertyAttribute(direction.String())

	if shouldAddCandidate {
		addCandidate(media, p)
	}

	d.WithMedia(media)
	return nil
}

func addDataMediaSection(d *sdp.SessionDescription, shouldAddCandidate bool, p BuildParams, mid string, role sdp.ConnectionRole) error {
	media := (&sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   mediaSectionApplication,
			Port:    sdp.RangedPort{Value: 9},
			Protos:  []string{"UDP", "DTLS", "SCTP"},
			Formats: []string{"webrtc-datachannel"},
		},
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: "0.0.0.0"},
		},
	}).
		WithValueAttribute(sdp.AttrKeyConnectionSetup, role.String()).
		WithValueAttribute(sdp.AttrKeyMID, mid).
		WithICECredentials(p.LocalCreds.Ufrag, p.LocalCreds.Password).
		WithValueAttribute("sctp-port", "5000").
		WithValueAttribute("max-message-size", fmt.Sprintf("%d", p.SCTPMaxMsgSz))

	if shouldAddCandidate {
		addCandidate(media, p)
	}

	d.WithMedia(media)
	return nil
}

// connectionRoleFor maps an `a=setup:` token to the sdp package's enum
// (internal/sdp/util.go's ConnectionRole, generalized to the external
// module here).
func connectionRoleFor(setupAttr string) sdp.ConnectionRole {
	switch setupAttr {
	case "active":
		return sdp.ConnectionRoleActive
	case "passive":
		return sdp.ConnectionRolePassive
	case "actpass":
		return sdp.ConnectionRoleActpass
	default:
		return sdp.ConnectionRoleHoldconn
	}
}

// addCandidate emits the SFU's single host candidate: the bound media
// port's public address, component 1 only (rtcp-mux means there is no
// separate component 2) (spec §4.2/§4.8).
func addCandidate(media *sdp.MediaDescription, p BuildParams) {
	line := fmt.Sprintf("1 1 %s 2130706431 %s %d typ %s",
		ice.NetworkTypeUDP4.NetworkShort(), p.LocalAddr, p.LocalPort, ice.CandidateTypeHost)
	media.WithValueAttribute("candidate", line)
	media.WithPropertyAttribute("end-of-candidates")
}

// NewOrigin bumps the Endpoint's SDP origin (spec §4.8, testable
// property #6: "session_id stable across renegotiations, session_version
// non-decreasing").
func (e *Endpoint) NewOrigin() {
	if e.OriginID == 0 {
		e.OriginID = uint64(time.Now().UnixNano())
	}
	e.OriginVersion++
}

// FingerprintsFrom converts a config.Certificate's fingerprints into the
// shape ConnectionCredentials carries.
func FingerprintsFrom(cert *config.Certificate) []config.Fingerprint {
	return cert.Fingerprints
}
