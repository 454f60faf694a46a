package negotiator

import (
	"strconv"
	"strings"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// ssrcCache keeps the primary video synchronization source and its
// retransmission pairing stable across repeated offer/answer rounds, even
// when the transport regenerates sources underneath. It is owned by a
// single Negotiator instance and is never shared.
type ssrcCache struct {
	rand         randutil.MathRandomGenerator
	primaryVideo webrtc.SSRC
	rtxByPrimary map[webrtc.SSRC]webrtc.SSRC
	used         map[webrtc.SSRC]struct{}
	log          logging.LeveledLogger
}

func newSSRCCache(log logging.LeveledLogger) *ssrcCache {
	return &ssrcCache{
		rand:         randutil.NewMathRandomGenerator(),
		rtxByPrimary: map[webrtc.SSRC]webrtc.SSRC{},
		used:         map[webrtc.SSRC]struct{}{},
		log:          log,
	}
}

// generateSSRC produces a fresh 32-bit identifier: never zero, never one
// this cache already handed out or recorded.
func (c *ssrcCache) generateSSRC() webrtc.SSRC {
	for {
		ssrc := webrtc.SSRC(c.rand.Uint32())
		if ssrc == 0 {
			continue
		}
		if _, taken := c.used[ssrc]; taken {
			continue
		}
		c.used[ssrc] = struct{}{}
		return ssrc
	}
}

func (c *ssrcCache) cachePrimary(ssrc webrtc.SSRC) {
	c.primaryVideo = ssrc
	c.used[ssrc] = struct{}{}
}

func (c *ssrcCache) cacheRTX(primary, rtx webrtc.SSRC) {
	c.rtxByPrimary[primary] = rtx
	c.used[rtx] = struct{}{}
}

// rtxFor returns the retransmission source paired with primary, minting and
// caching one on first use.
func (c *ssrcCache) rtxFor(primary webrtc.SSRC) webrtc.SSRC {
	if rtx, ok := c.rtxByPrimary[primary]; ok {
		return rtx
	}
	rtx := c.generateSSRC()
	c.cacheRTX(primary, rtx)
	return rtx
}

// clear drops all cached values. Called when a track is permanently
// removed, not on mute.
func (c *ssrcCache) clear() {
	c.primaryVideo = 0
	c.rtxByPrimary = map[webrtc.SSRC]webrtc.SSRC{}
	c.used = map[webrtc.SSRC]struct{}{}
}

// makeConsistent rewrites a freshly generated primary video source (and its
// retransmission partner) back to the cached values, so the value announced
// to the remote peer never changes between rounds. The first round seeds
// the cache instead.
func (c *ssrcCache) makeConsistent(parsed *sdp.SessionDescription) {
	media := firstSectionOfKind(parsed, "video")
	if media == nil {
		return
	}
	current, currentRTX, ok := primaryVideoSource(media)
	if !ok {
		return
	}

	if c.primaryVideo == 0 {
		c.cachePrimary(current)
		if currentRTX != 0 {
			c.cacheRTX(current, currentRTX)
		}
		return
	}
	if current == c.primaryVideo {
		return
	}

	c.log.Debugf("rewriting regenerated primary video ssrc %d back to %d", current, c.primaryVideo)
	replaceSSRC(media, current, c.primaryVideo)
	if currentRTX != 0 {
		if cachedRTX, ok := c.rtxByPrimary[c.primaryVideo]; ok && cachedRTX != currentRTX {
			replaceSSRC(media, currentRTX, cachedRTX)
		} else if !ok {
			c.cacheRTX(c.primaryVideo, currentRTX)
		}
	}
}

// primaryVideoSource finds the first non-repair source in a section and its
// FID partner (0 when unpaired).
func primaryVideoSource(media *sdp.MediaDescription) (primary, rtx webrtc.SSRC, ok bool) {
	repair := map[webrtc.SSRC]webrtc.SSRC{}
	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRCGroup {
			continue
		}
		group, err := parseSSRCGroup(attr.Value)
		if err != nil || group.Semantics != sdp.SemanticTokenFlowIdentification || len(group.SSRCs) != 2 {
			continue
		}
		repair[group.SSRCs[1]] = group.SSRCs[0]
	}
	for _, attr := range media.Attributes {
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
		for rtxSSRC, primarySSRC := range repair {
			if primarySSRC == sm.SSRC {
				return sm.SSRC, rtxSSRC, true
			}
		}
		return sm.SSRC, 0, true
	}
	return 0, 0, false
}

// replaceSSRC substitutes every occurrence of one source identifier inside
// a section's ssrc and ssrc-group lines.
func replaceSSRC(media *sdp.MediaDescription, from, to webrtc.SSRC) {
	fromStr := strconv.FormatUint(uint64(from), 10)
	toStr := strconv.FormatUint(uint64(to), 10)
	for i, attr := range media.Attributes {
		switch attr.Key {
		case sdp.AttrKeySSRC:
			if strings.HasPrefix(attr.Value, fromStr+" ") {
				media.Attributes[i].Value = toStr + attr.Value[len(fromStr):]
			}
		case sdp.AttrKeySSRCGroup:
			fields := strings.Fields(attr.Value)
			for j := 1; j < len(fields); j++ {
				if fields[j] == fromStr {
					fields[j] = toStr
				}
			}
			media.Attributes[i].Value = strings.Join(fields, " ")
		}
	}
}
