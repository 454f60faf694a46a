package negotiator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// Media section direction attributes. The structured model treats these as
// plain property attributes, mutually exclusive within one section.
const (
	dirSendRecv = "sendrecv"
	dirSendOnly = "sendonly"
	dirRecvOnly = "recvonly"
	dirInactive = "inactive"
)

const (
	setupActive  = "active"
	setupPassive = "passive"
	setupActpass = "actpass"
)

// semanticSimulcast is the ssrc-group semantics tag for a simulcast layer
// set. The retransmission tag comes from sdp.SemanticTokenFlowIdentification.
const semanticSimulcast = "SIM"

// noneStreamID marks a receive-only synchronization source with no
// associated media stream.
const noneStreamID = "none"

// ssrcMedia represents an RFC 5576 ssrc media attribute.
type ssrcMedia struct {
	SSRC      webrtc.SSRC
	Attribute string
	Value     string
}

// parseSSRCMedia parses an RFC 5576 ssrc media attribute. Sample input:
// a=ssrc:<ssrc-id> <attribute>
// a=ssrc:<ssrc-id> <attribute>:<value>
func parseSSRCMedia(a sdp.Attribute) (ssrcMedia, error) {
	sp := strings.Index(a.Value, " ")
	if sp < 1 {
		return ssrcMedia{}, fmt.Errorf("ssrc media attribute too short: %s", a.Value)
	}
	ssrc, err := strconv.ParseUint(a.Value[:sp], 10, 32)
	if err != nil {
		return ssrcMedia{}, fmt.Errorf("failed to parse ssrc: %s", a.Value[:sp])
	}
	attribute, value, _ := strings.Cut(a.Value[sp+1:], ":")
	return ssrcMedia{
		SSRC:      webrtc.SSRC(ssrc),
		Attribute: attribute,
		Value:     value,
	}, nil
}

func (s ssrcMedia) marshal() string {
	if s.Value == "" {
		return fmt.Sprintf("%d %s", uint32(s.SSRC), s.Attribute)
	}
	return fmt.Sprintf("%d %s:%s", uint32(s.SSRC), s.Attribute, s.Value)
}

// parseSSRCGroup parses an RFC 5576 ssrc-group value, e.g.
// "FID 2231627014 632943048".
func parseSSRCGroup(value string) (SSRCGroup, error) {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return SSRCGroup{}, fmt.Errorf("ssrc-group attribute too short: %s", value)
	}
	group := SSRCGroup{Semantics: fields[0]}
	for _, f := range fields[1:] {
		ssrc, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return SSRCGroup{}, fmt.Errorf("failed to parse ssrc %q in group: %s", f, value)
		}
		group.SSRCs = append(group.SSRCs, webrtc.SSRC(ssrc))
	}
	return group, nil
}

func (g SSRCGroup) marshal() string {
	parts := make([]string, 0, len(g.SSRCs)+1)
	parts = append(parts, g.Semantics)
	for _, ssrc := range g.SSRCs {
		parts = append(parts, strconv.FormatUint(uint64(ssrc), 10))
	}
	return strings.Join(parts, " ")
}

func midValue(media *sdp.MediaDescription) string {
	for _, attr := range media.Attributes {
		if attr.Key == sdp.AttrKeyMID {
			return attr.Value
		}
	}
	return ""
}

// msidValue returns the section-level msid stream and track identifiers.
func msidValue(media *sdp.MediaDescription) (streamID, trackID string, ok bool) {
	val, ok := media.Attribute(sdp.AttrKeyMsid)
	if !ok {
		return "", "", false
	}
	streamID, trackID, _ = strings.Cut(val, " ")
	return streamID, trackID, true
}

func sectionDirection(media *sdp.MediaDescription) string {
	for _, a := range media.Attributes {
		switch a.Key {
		case dirSendRecv, dirSendOnly, dirRecvOnly, dirInactive:
			return a.Key
		}
	}
	return ""
}

// setSectionDirection replaces any existing direction attribute. A section
// without one gains the attribute at the end.
func setSectionDirection(media *sdp.MediaDescription, dir string) {
	for i, a := range media.Attributes {
		switch a.Key {
		case dirSendRecv, dirSendOnly, dirRecvOnly, dirInactive:
			media.Attributes[i] = sdp.Attribute{Key: dir}
			return
		}
	}
	media.Attributes = append(media.Attributes, sdp.Attribute{Key: dir})
}

var flatMidRegex = regexp.MustCompile(`(?i)^(audio|video|data)$`)

// isFlatDialect reports whether a parsed description uses the flat style,
// detected by its literal audio/video/data mid values.
func isFlatDialect(parsed *sdp.SessionDescription) bool {
	for _, media := range parsed.MediaDescriptions {
		if flatMidRegex.MatchString(midValue(media)) {
			return true
		}
	}
	return false
}

func isRTPKind(media *sdp.MediaDescription) bool {
	switch media.MediaName.Media {
	case "audio", "video":
		return true
	}
	return false
}

func firstSectionOfKind(parsed *sdp.SessionDescription, kind string) *sdp.MediaDescription {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media == kind {
			return media
		}
	}
	return nil
}

// iceUfrag returns the first ice-ufrag value found at session or media
// level, or "" when the description carries none.
func iceUfrag(parsed *sdp.SessionDescription) string {
	if val, ok := parsed.Attribute("ice-ufrag"); ok {
		return val
	}
	for _, media := range parsed.MediaDescriptions {
		if val, ok := media.Attribute("ice-ufrag"); ok {
			return val
		}
	}
	return ""
}

// removeMediaAttributes drops every attribute the predicate matches,
// preserving the order of the rest.
func removeMediaAttributes(media *sdp.MediaDescription, match func(sdp.Attribute) bool) {
	kept := media.Attributes[:0]
	for _, a := range media.Attributes {
		if !match(a) {
			kept = append(kept, a)
		}
	}
	media.Attributes = kept
}

// insertMediaAttribute places an attribute directly after index at, keeping
// later lines in their original order.
func insertMediaAttribute(media *sdp.MediaDescription, at int, attr sdp.Attribute) {
	attrs := append(media.Attributes, sdp.Attribute{})
	copy(attrs[at+2:], attrs[at+1:])
	attrs[at+1] = attr
	media.Attributes = attrs
}
