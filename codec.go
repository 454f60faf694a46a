package negotiator

import (
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// FallbackVideoCodec is synthesized into a video section that carries no
// commonly supported codec, so a strict remote endpoint does not reject the
// whole section.
type FallbackVideoCodec struct {
	Name      string
	ClockRate uint32
	Fmtp      string
}

func defaultFallbackVideoCodec() FallbackVideoCodec {
	return FallbackVideoCodec{
		Name:      "H264",
		ClockRate: 90000,
		Fmtp:      "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
	}
}

// restrictVideoCodec removes a named codec from every video section: its
// payload types leave the format list, and the matching rtpmap, fmtp and
// rtcp-fb lines go with them, retransmission payloads included.
func restrictVideoCodec(parsed *sdp.SessionDescription, name string) {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != "video" {
			continue
		}
		removed := payloadsForCodec(media, name)
		if len(removed) == 0 {
			continue
		}
		for pt := range rtxPayloadsFor(media, removed) {
			removed[pt] = struct{}{}
		}
		removePayloads(media, removed)
	}
}

// preferVideoCodec moves a named codec's payload types to the front of the
// format list so it wins codec selection, without touching anything else.
func preferVideoCodec(parsed *sdp.SessionDescription, name string) {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != "video" {
			continue
		}
		preferred := payloadsForCodec(media, name)
		if len(preferred) == 0 {
			continue
		}
		front := make([]string, 0, len(media.MediaName.Formats))
		rest := make([]string, 0, len(media.MediaName.Formats))
		for _, format := range media.MediaName.Formats {
			if _, ok := preferred[format]; ok {
				front = append(front, format)
			} else {
				rest = append(rest, format)
			}
		}
		media.MediaName.Formats = append(front, rest...)
	}
}

// injectFallbackVideoCodec adds the fallback codec to video sections that
// lack it, using the highest unused payload id found searching down
// from 127. Sections that already carry the codec are left alone.
func injectFallbackVideoCodec(parsed *sdp.SessionDescription, codec FallbackVideoCodec) {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != "video" {
			continue
		}
		if len(payloadsForCodec(media, codec.Name)) > 0 {
			continue
		}
		used := usedPayloads(media)
		pt := ""
		for id := 127; id >= 0; id-- {
			candidate := strconv.Itoa(id)
			if _, taken := used[candidate]; !taken {
				pt = candidate
				break
			}
		}
		if pt == "" {
			continue
		}
		media.MediaName.Formats = append(media.MediaName.Formats, pt)
		media.Attributes = append(media.Attributes,
			sdp.Attribute{Key: "rtpmap", Value: pt + " " + codec.Name + "/" + strconv.FormatUint(uint64(codec.ClockRate), 10)},
		)
		if codec.Fmtp != "" {
			media.Attributes = append(media.Attributes,
				sdp.Attribute{Key: "fmtp", Value: pt + " " + codec.Fmtp},
			)
		}
	}
}

// payloadsForCodec returns the payload types mapped to a codec name
// (case-insensitive) by the section's rtpmap lines.
func payloadsForCodec(media *sdp.MediaDescription, name string) map[string]struct{} {
	payloads := map[string]struct{}{}
	for _, attr := range media.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		pt, codec, ok := strings.Cut(attr.Value, " ")
		if !ok {
			continue
		}
		codecName, _, _ := strings.Cut(codec, "/")
		if strings.EqualFold(codecName, name) {
			payloads[pt] = struct{}{}
		}
	}
	return payloads
}

// rtxPayloadsFor returns retransmission payload types whose fmtp apt=
// parameter points at one of the given primary payloads.
func rtxPayloadsFor(media *sdp.MediaDescription, primaries map[string]struct{}) map[string]struct{} {
	payloads := map[string]struct{}{}
	for _, attr := range media.Attributes {
		if attr.Key != "fmtp" {
			continue
		}
		pt, params, ok := strings.Cut(attr.Value, " ")
		if !ok {
			continue
		}
		for _, param := range strings.Split(params, ";") {
			k, v, _ := strings.Cut(strings.TrimSpace(param), "=")
			if k != "apt" {
				continue
			}
			if _, hit := primaries[strings.TrimSpace(v)]; hit {
				payloads[pt] = struct{}{}
			}
		}
	}
	return payloads
}

func usedPayloads(media *sdp.MediaDescription) map[string]struct{} {
	used := map[string]struct{}{}
	for _, format := range media.MediaName.Formats {
		used[format] = struct{}{}
	}
	for _, attr := range media.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		if pt, _, ok := strings.Cut(attr.Value, " "); ok {
			used[pt] = struct{}{}
		}
	}
	return used
}

func removePayloads(media *sdp.MediaDescription, payloads map[string]struct{}) {
	formats := media.MediaName.Formats[:0]
	for _, format := range media.MediaName.Formats {
		if _, drop := payloads[format]; !drop {
			formats = append(formats, format)
		}
	}
	media.MediaName.Formats = formats

	removeMediaAttributes(media, func(a sdp.Attribute) bool {
		switch a.Key {
		case "rtpmap", "fmtp", "rtcp-fb":
		default:
			return false
		}
		pt, _, ok := strings.Cut(a.Value, " ")
		if !ok {
			return false
		}
		_, drop := payloads[pt]
		return drop
	})
}
