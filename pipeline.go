package negotiator

import (
	"github.com/pion/sdp/v3"
)

// enforceSendRecv forces every RTP section of a peer-visible description
// to the send-receive direction, so the remote peer is never told "I
// cannot send". The direction committed to the transport may still differ
// to reflect the actual transfer-active flags.
func enforceSendRecv(parsed *sdp.SessionDescription) {
	for _, media := range parsed.MediaDescriptions {
		if !isRTPKind(media) {
			continue
		}
		setSectionDirection(media, dirSendRecv)
	}
}

// applyTransferDirections sets the direction actually committed to the
// transport: receive-only when the kind's transfer is inactive locally.
func applyTransferDirections(parsed *sdp.SessionDescription, audioActive, videoActive bool) {
	for _, media := range parsed.MediaDescriptions {
		active := true
		switch media.MediaName.Media {
		case "audio":
			active = audioActive
		case "video":
			active = videoActive
		default:
			continue
		}
		if active {
			setSectionDirection(media, dirSendRecv)
		} else {
			setSectionDirection(media, dirRecvOnly)
		}
	}
}

// forcePassiveSetup rewrites the connection setup role of every media
// section to passive. Used on answers to offers with the ambiguous
// actpass role, for transports that would otherwise pick the
// latency-adding active role.
func forcePassiveSetup(parsed *sdp.SessionDescription) {
	rewrite := func(attrs []sdp.Attribute) {
		for i, attr := range attrs {
			if attr.Key == sdp.AttrKeyConnectionSetup && attr.Value == setupActive {
				attrs[i].Value = setupPassive
			}
		}
	}
	rewrite(parsed.Attributes)
	for _, media := range parsed.MediaDescriptions {
		rewrite(media.Attributes)
	}
}

// offersActpassSetup reports whether a remote offer leaves the setup role
// open.
func offersActpassSetup(parsed *sdp.SessionDescription) bool {
	if val, ok := parsed.Attribute(sdp.AttrKeyConnectionSetup); ok && val == setupActpass {
		return true
	}
	for _, media := range parsed.MediaDescriptions {
		if val, ok := media.Attribute(sdp.AttrKeyConnectionSetup); ok && val == setupActpass {
			return true
		}
	}
	return false
}

// normalizeFlatReceive tidies flat-dialect sections that only receive:
// sections announcing no local source are marked receive-only, and source
// lines are regrouped so each source's lines are contiguous in first
// announcement order. Some flat-dialect consumers misparse interleaved
// source lines.
func normalizeFlatReceive(parsed *sdp.SessionDescription) {
	for _, media := range parsed.MediaDescriptions {
		if !isRTPKind(media) {
			continue
		}
		ssrcs := sectionSSRCs(media)
		if len(ssrcs) == 0 {
			if sectionDirection(media) == "" {
				setSectionDirection(media, dirRecvOnly)
			}
			continue
		}
		groupSourceLines(media)
	}
}

// groupSourceLines rewrites a section's a=ssrc block so all lines of one
// source sit together, sources ordered by first announcement. Non-source
// lines keep their positions relative to the block start.
func groupSourceLines(media *sdp.MediaDescription) {
	var order []ssrcMedia
	lines := map[uint64][]sdp.Attribute{}
	first := -1
	for i, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRC {
			continue
		}
		sm, err := parseSSRCMedia(attr)
		if err != nil {
			continue
		}
		if first == -1 {
			first = i
		}
		key := uint64(sm.SSRC)
		if _, seen := lines[key]; !seen {
			order = append(order, sm)
		}
		lines[key] = append(lines[key], attr)
	}
	if first == -1 {
		return
	}

	removeMediaAttributes(media, func(a sdp.Attribute) bool {
		return a.Key == sdp.AttrKeySSRC
	})
	at := first - 1
	for _, sm := range order {
		for _, attr := range lines[uint64(sm.SSRC)] {
			insertMediaAttribute(media, at, attr)
			at++
		}
	}
}
