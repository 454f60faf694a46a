package negotiator

import (
	"strings"

	"github.com/pion/logging"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// SSRCGroup is a declared relationship between synchronization sources.
// The first member is always the layer/primary source; for FID groups the
// second member is the retransmission source.
type SSRCGroup struct {
	Semantics string
	SSRCs     []webrtc.SSRC
}

// SSRCInfo is the full set of synchronization sources announced for one
// media stream, in announcement order, together with their groupings.
type SSRCInfo struct {
	SSRCs  []webrtc.SSRC
	Groups []SSRCGroup
}

// repairFlows returns the set of retransmission sources, i.e. the second
// member of every FID group.
func (i *SSRCInfo) repairFlows() map[webrtc.SSRC]struct{} {
	flows := map[webrtc.SSRC]struct{}{}
	for _, g := range i.Groups {
		if g.Semantics == sdp.SemanticTokenFlowIdentification && len(g.SSRCs) == 2 {
			flows[g.SSRCs[1]] = struct{}{}
		}
	}
	return flows
}

// Primary returns the first announced source that is not a repair flow.
func (i *SSRCInfo) Primary() (webrtc.SSRC, bool) {
	if i == nil {
		return 0, false
	}
	repair := i.repairFlows()
	for _, ssrc := range i.SSRCs {
		if _, isRepair := repair[ssrc]; !isRepair {
			return ssrc, true
		}
	}
	return 0, false
}

// RTXFor returns the retransmission source paired with primary, if any.
func (i *SSRCInfo) RTXFor(primary webrtc.SSRC) (webrtc.SSRC, bool) {
	for _, g := range i.Groups {
		if g.Semantics == sdp.SemanticTokenFlowIdentification && len(g.SSRCs) == 2 && g.SSRCs[0] == primary {
			return g.SSRCs[1], true
		}
	}
	return 0, false
}

// streamKey identifies one logical track's sources inside a description.
type streamKey struct {
	StreamID string
	Kind     webrtc.RTPCodecType
}

// streamSSRCInfo derives the stream→sources mapping from a parsed
// description. It understands both dialects: section-level msid attributes
// as well as per-source `a=ssrc:... msid:...` lines. Sources tied to the
// "none" sentinel stream are left out, as are malformed lines (logged,
// skipped).
func streamSSRCInfo(log logging.LeveledLogger, parsed *sdp.SessionDescription) map[streamKey]*SSRCInfo {
	infos := map[streamKey]*SSRCInfo{}

	for _, media := range parsed.MediaDescriptions {
		kind := webrtc.NewRTPCodecType(media.MediaName.Media)
		if kind == webrtc.RTPCodecType(0) {
			continue
		}
		sectionStream, _, _ := msidValue(media)

		// First pass: resolve each source's owning stream.
		streamOf := map[webrtc.SSRC]string{}
		order := []webrtc.SSRC{}
		for _, attr := range media.Attributes {
			if attr.Key != sdp.AttrKeySSRC {
				continue
			}
			sm, err := parseSSRCMedia(attr)
			if err != nil {
				log.Warnf("failed to parse ssrc line: %v", err)
				continue
			}
			if _, seen := streamOf[sm.SSRC]; !seen {
				streamOf[sm.SSRC] = sectionStream
				order = append(order, sm.SSRC)
			}
			if sm.Attribute == "msid" {
				stream, _, _ := strings.Cut(sm.Value, " ")
				streamOf[sm.SSRC] = stream
			}
		}

		infoFor := func(stream string) *SSRCInfo {
			key := streamKey{StreamID: stream, Kind: kind}
			info, ok := infos[key]
			if !ok {
				info = &SSRCInfo{}
				infos[key] = info
			}
			return info
		}

		for _, ssrc := range order {
			stream := streamOf[ssrc]
			if stream == "" || stream == noneStreamID {
				continue
			}
			infoFor(stream).SSRCs = append(infoFor(stream).SSRCs, ssrc)
		}

		// Second pass: groups belong to the stream of their first member.
		for _, attr := range media.Attributes {
			if attr.Key != sdp.AttrKeySSRCGroup {
				continue
			}
			group, err := parseSSRCGroup(attr.Value)
			if err != nil {
				log.Warnf("failed to parse ssrc-group line: %v", err)
				continue
			}
			stream, ok := streamOf[group.SSRCs[0]]
			if !ok || stream == "" || stream == noneStreamID {
				continue
			}
			info := infoFor(stream)
			info.Groups = append(info.Groups, group)
			// Repair flows announced only through the group still count as
			// announced sources.
			for _, member := range group.SSRCs {
				if _, known := streamOf[member]; !known {
					streamOf[member] = stream
					info.SSRCs = append(info.SSRCs, member)
				}
			}
		}
	}

	return infos
}
