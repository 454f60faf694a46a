package negotiator

import (
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// insertRTX pairs every unpaired primary video source with a synthesized
// retransmission source: the new source copies the primary's cname/msid
// lines and a FID group declares the pairing. Already-paired primaries are
// untouched, so the rewrite is safe to repeat.
func insertRTX(parsed *sdp.SessionDescription, cache *ssrcCache) {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != "video" {
			continue
		}
		insertSectionRTX(media, cache)
	}
}

func insertSectionRTX(media *sdp.MediaDescription, cache *ssrcCache) {
	paired := map[webrtc.SSRC]struct{}{}
	repair := map[webrtc.SSRC]struct{}{}
	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRCGroup {
			continue
		}
		group, err := parseSSRCGroup(attr.Value)
		if err != nil || group.Semantics != sdp.SemanticTokenFlowIdentification || len(group.SSRCs) != 2 {
			continue
		}
		paired[group.SSRCs[0]] = struct{}{}
		repair[group.SSRCs[1]] = struct{}{}
	}

	var primaries []webrtc.SSRC
	lastLine := map[webrtc.SSRC]int{}
	lines := map[webrtc.SSRC][]sdp.Attribute{}
	for i, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRC {
			continue
		}
		sm, err := parseSSRCMedia(attr)
		if err != nil {
			continue
		}
		if _, isRepair := repair[sm.SSRC]; isRepair {
			continue
		}
		if _, seen := lines[sm.SSRC]; !seen {
			primaries = append(primaries, sm.SSRC)
		}
		lines[sm.SSRC] = append(lines[sm.SSRC], attr)
		lastLine[sm.SSRC] = i
	}

	newGroups := make([]sdp.Attribute, 0, len(primaries))
	// Walk backwards so earlier insertion points stay valid.
	for i := len(primaries) - 1; i >= 0; i-- {
		primary := primaries[i]
		if _, alreadyPaired := paired[primary]; alreadyPaired {
			continue
		}
		rtx := cache.rtxFor(primary)
		at := lastLine[primary]
		for j := len(lines[primary]) - 1; j >= 0; j-- {
			sm, err := parseSSRCMedia(lines[primary][j])
			if err != nil {
				continue
			}
			sm.SSRC = rtx
			insertMediaAttribute(media, at, sdp.Attribute{Key: sdp.AttrKeySSRC, Value: sm.marshal()})
		}
		newGroups = append(newGroups, sdp.Attribute{
			Key:   sdp.AttrKeySSRCGroup,
			Value: SSRCGroup{Semantics: sdp.SemanticTokenFlowIdentification, SSRCs: []webrtc.SSRC{primary, rtx}}.marshal(),
		})
	}
	// Reverse-walk order above produced groups last-primary-first.
	for i := len(newGroups) - 1; i >= 0; i-- {
		media.Attributes = append(media.Attributes, newGroups[i])
	}
}

// stripRTX removes every retransmission source line and FID group from
// video sections, normalizing a remote description before dialect
// conversion.
func stripRTX(parsed *sdp.SessionDescription) {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media != "video" {
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
		removeMediaAttributes(media, func(a sdp.Attribute) bool {
			switch a.Key {
			case sdp.AttrKeySSRCGroup:
				group, err := parseSSRCGroup(a.Value)
				return err == nil && group.Semantics == sdp.SemanticTokenFlowIdentification
			case sdp.AttrKeySSRC:
				sm, err := parseSSRCMedia(a)
				if err != nil {
					return false
				}
				_, isRepair := repair[sm.SSRC]
				return isRepair
			}
			return false
		})
	}
}
