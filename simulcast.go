package negotiator

import (
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// ensureSimulcastGroup synthesizes a SIM group in per-transceiver video
// sections where two or more primary sources share the section's stream but
// no group declares the layer set. Without the explicit group the layering
// is implied only by layer-identifier attributes some peers ignore.
func ensureSimulcastGroup(parsed *sdp.SessionDescription) {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != "video" {
			continue
		}
		if hasSimulcastGroup(media) {
			continue
		}
		if _, _, ok := msidValue(media); !ok {
			continue
		}
		repair := map[webrtc.SSRC]struct{}{}
		for _, attr := range media.Attributes {
			if attr.Key != sdp.AttrKeySSRCGroup {
				continue
			}
			group, err := parseSSRCGroup(attr.Value)
			if err == nil && group.Semantics == sdp.SemanticTokenFlowIdentification && len(group.SSRCs) == 2 {
				repair[group.SSRCs[1]] = struct{}{}
			}
		}
		var layers []webrtc.SSRC
		for _, ssrc := range sectionSSRCs(media) {
			if _, isRepair := repair[ssrc]; !isRepair {
				layers = append(layers, ssrc)
			}
		}
		if len(layers) < 2 {
			continue
		}
		media.Attributes = append(media.Attributes, sdp.Attribute{
			Key:   sdp.AttrKeySSRCGroup,
			Value: SSRCGroup{Semantics: semanticSimulcast, SSRCs: layers}.marshal(),
		})
	}
}

// orderSimulcastGroupsLast moves SIM group lines behind every other
// ssrc-group line in their media section; layer negotiation on some
// transports requires this placement. Repeated application is a no-op.
func orderSimulcastGroupsLast(parsed *sdp.SessionDescription) {
	for _, media := range parsed.MediaDescriptions {
		var sims []sdp.Attribute
		kept := make([]sdp.Attribute, 0, len(media.Attributes))
		for _, attr := range media.Attributes {
			if attr.Key == sdp.AttrKeySSRCGroup && strings.HasPrefix(attr.Value, semanticSimulcast+" ") {
				sims = append(sims, attr)
				continue
			}
			kept = append(kept, attr)
		}
		if len(sims) == 0 {
			continue
		}
		at := -1
		for i, attr := range kept {
			if attr.Key == sdp.AttrKeySSRCGroup || attr.Key == sdp.AttrKeySSRC {
				at = i
			}
		}
		if at == -1 {
			media.Attributes = append(kept, sims...)
			continue
		}
		media.Attributes = kept
		for i := len(sims) - 1; i >= 0; i-- {
			insertMediaAttribute(media, at, sims[i])
		}
	}
}

// injectSimulcastRecvFlag marks video sections that carry a simulcast layer
// set with the conference flag, which layer-aware transports expect before
// a multi-layer remote description is committed.
func injectSimulcastRecvFlag(parsed *sdp.SessionDescription) {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != "video" || !hasSimulcastGroup(media) {
			continue
		}
		if val, ok := media.Attribute("x-google-flag"); ok && val == "conference" {
			continue
		}
		media.Attributes = append(media.Attributes, sdp.Attribute{Key: "x-google-flag", Value: "conference"})
	}
}

func hasSimulcastGroup(media *sdp.MediaDescription) bool {
	for _, attr := range media.Attributes {
		if attr.Key == sdp.AttrKeySSRCGroup && strings.HasPrefix(attr.Value, semanticSimulcast+" ") {
			return true
		}
	}
	return false
}
