package negotiator

import (
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// Dialect conversion. Both directions preserve the SSRC-to-stream
// association, group membership and ordering, and the codec payload-type
// numbers of the surviving sections. Both are no-ops (modulo cloning) on a
// description already in the target dialect, so renegotiation may re-enter
// with previously converted input.

// toFlatDialect merges per-transceiver sections into one section per media
// kind, keyed by per-source msid lines.
func toFlatDialect(parsed *sdp.SessionDescription) (*sdp.SessionDescription, error) {
	src, err := cloneSession(parsed)
	if err != nil {
		return nil, err
	}
	if isFlatDialect(src) {
		return src, nil
	}

	out := *src
	out.MediaDescriptions = nil

	for _, kind := range []string{"audio", "video"} {
		var sections []*sdp.MediaDescription
		for _, media := range src.MediaDescriptions {
			if media.MediaName.Media == kind {
				sections = append(sections, media)
			}
		}
		if len(sections) == 0 {
			continue
		}

		merged := copySectionShell(sections[0])
		merged.Attributes = append(merged.Attributes, sdp.Attribute{Key: sdp.AttrKeyMID, Value: kind})

		anySend := false
		var sourceLines []sdp.Attribute
		var groupLines []sdp.Attribute
		for _, section := range sections {
			streamID, trackID, hasMsid := msidValue(section)
			switch sectionDirection(section) {
			case dirSendRecv, dirSendOnly:
				anySend = true
			}

			if !hasMsid || streamID == noneStreamID {
				// A receive-only source with no stream: keep a single
				// reference line so the numeric identifier is not forgotten,
				// but nothing that would enumerate as a stream.
				if line, ok := firstSSRCLine(section); ok {
					sourceLines = append(sourceLines, line)
				}
				continue
			}

			seenMsid := map[webrtc.SSRC]bool{}
			for _, attr := range section.Attributes {
				switch attr.Key {
				case sdp.AttrKeySSRC:
					sm, perr := parseSSRCMedia(attr)
					if perr != nil {
						continue
					}
					if sm.Attribute == "msid" {
						seenMsid[sm.SSRC] = true
					}
					sourceLines = append(sourceLines, attr)
				case sdp.AttrKeySSRCGroup:
					groupLines = append(groupLines, attr)
				}
			}
			// Sources described only by section-level msid gain explicit
			// per-source msid lines so the association survives the merge.
			for _, ssrc := range sectionSSRCs(section) {
				if !seenMsid[ssrc] {
					sourceLines = append(sourceLines, sdp.Attribute{
						Key:   sdp.AttrKeySSRC,
						Value: ssrcMedia{SSRC: ssrc, Attribute: "msid", Value: streamID + " " + trackID}.marshal(),
					})
				}
			}
		}

		dir := sectionDirection(sections[0])
		if anySend {
			dir = dirSendRecv
		}
		if dir != "" {
			setSectionDirection(merged, dir)
		}
		merged.Attributes = append(merged.Attributes, sourceLines...)
		merged.Attributes = append(merged.Attributes, groupLines...)
		out.MediaDescriptions = append(out.MediaDescriptions, merged)
	}

	for _, media := range src.MediaDescriptions {
		if !isRTPKind(media) {
			out.MediaDescriptions = append(out.MediaDescriptions, media)
		}
	}

	rewriteBundleGroup(&out)
	return &out, nil
}

// toTransceiverDialect splits flat sections into one section per stream.
// Sources owned by no stream become a receive-only section with the "none"
// sentinel identifier.
func toTransceiverDialect(parsed *sdp.SessionDescription) (*sdp.SessionDescription, error) {
	src, err := cloneSession(parsed)
	if err != nil {
		return nil, err
	}
	if !isFlatDialect(src) {
		return src, nil
	}

	out := *src
	out.MediaDescriptions = nil
	nextMid := 0

	for _, media := range src.MediaDescriptions {
		if !isRTPKind(media) {
			out.MediaDescriptions = append(out.MediaDescriptions, media)
			continue
		}

		streams, order := flatSectionStreams(media)
		if len(order) == 0 {
			section := copySectionShell(media)
			section.Attributes = append(section.Attributes, sdp.Attribute{Key: sdp.AttrKeyMID, Value: strconv.Itoa(nextMid)})
			if dir := sectionDirection(media); dir != "" {
				setSectionDirection(section, dir)
			}
			nextMid++
			out.MediaDescriptions = append(out.MediaDescriptions, section)
			continue
		}

		for _, streamID := range order {
			fs := streams[streamID]
			section := copySectionShell(media)
			section.Attributes = append(section.Attributes, sdp.Attribute{Key: sdp.AttrKeyMID, Value: strconv.Itoa(nextMid)})
			nextMid++

			if streamID == noneStreamID {
				setSectionDirection(section, dirRecvOnly)
			} else {
				section.Attributes = append(section.Attributes, sdp.Attribute{
					Key:   sdp.AttrKeyMsid,
					Value: streamID + " " + fs.trackID,
				})
				if dir := sectionDirection(media); dir != "" {
					setSectionDirection(section, dir)
				}
			}
			section.Attributes = append(section.Attributes, fs.sourceLines...)
			section.Attributes = append(section.Attributes, fs.groupLines...)
			out.MediaDescriptions = append(out.MediaDescriptions, section)
		}
	}

	rewriteBundleGroup(&out)
	return &out, nil
}

type flatStream struct {
	trackID     string
	ssrcs       []webrtc.SSRC
	sourceLines []sdp.Attribute
	groupLines  []sdp.Attribute
}

// flatSectionStreams splits one flat section's source lines by owning
// stream, in first-seen order. Sources without an msid line collapse into
// the "none" pseudo stream.
func flatSectionStreams(media *sdp.MediaDescription) (map[string]*flatStream, []string) {
	streamOf := map[webrtc.SSRC]string{}
	trackOf := map[webrtc.SSRC]string{}
	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRC {
			continue
		}
		sm, err := parseSSRCMedia(attr)
		if err != nil {
			continue
		}
		if _, known := streamOf[sm.SSRC]; !known {
			streamOf[sm.SSRC] = noneStreamID
		}
		if sm.Attribute == "msid" {
			stream, track, _ := strings.Cut(sm.Value, " ")
			streamOf[sm.SSRC] = stream
			trackOf[sm.SSRC] = track
		}
	}
	// Group members inherit their first member's stream.
	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRCGroup {
			continue
		}
		group, err := parseSSRCGroup(attr.Value)
		if err != nil {
			continue
		}
		for _, member := range group.SSRCs[1:] {
			if streamOf[member] == noneStreamID || streamOf[member] == "" {
				streamOf[member] = streamOf[group.SSRCs[0]]
			}
		}
	}

	streams := map[string]*flatStream{}
	var order []string
	streamFor := func(id string) *flatStream {
		fs, ok := streams[id]
		if !ok {
			fs = &flatStream{}
			streams[id] = fs
			order = append(order, id)
		}
		return fs
	}

	for _, attr := range media.Attributes {
		switch attr.Key {
		case sdp.AttrKeySSRC:
			sm, err := parseSSRCMedia(attr)
			if err != nil {
				continue
			}
			fs := streamFor(streamOf[sm.SSRC])
			fs.sourceLines = append(fs.sourceLines, attr)
			if !containsSSRC(fs.ssrcs, sm.SSRC) {
				fs.ssrcs = append(fs.ssrcs, sm.SSRC)
			}
			if track, ok := trackOf[sm.SSRC]; ok && fs.trackID == "" {
				fs.trackID = track
			}
		case sdp.AttrKeySSRCGroup:
			group, err := parseSSRCGroup(attr.Value)
			if err != nil {
				continue
			}
			fs := streamFor(streamOf[group.SSRCs[0]])
			fs.groupLines = append(fs.groupLines, attr)
		}
	}
	return streams, order
}

// copySectionShell duplicates a media section without its mid, msid, ssrc
// and ssrc-group lines. Codec and transport attributes carry over verbatim,
// payload types included.
func copySectionShell(media *sdp.MediaDescription) *sdp.MediaDescription {
	shell := &sdp.MediaDescription{
		MediaName:             media.MediaName,
		MediaTitle:            media.MediaTitle,
		ConnectionInformation: media.ConnectionInformation,
		EncryptionKey:         media.EncryptionKey,
	}
	shell.MediaName.Formats = append([]string(nil), media.MediaName.Formats...)
	shell.Bandwidth = append([]sdp.Bandwidth(nil), media.Bandwidth...)
	for _, attr := range media.Attributes {
		switch attr.Key {
		case sdp.AttrKeyMID, sdp.AttrKeyMsid, sdp.AttrKeySSRC, sdp.AttrKeySSRCGroup,
			dirSendRecv, dirSendOnly, dirRecvOnly, dirInactive:
			continue
		}
		shell.Attributes = append(shell.Attributes, attr)
	}
	return shell
}

func firstSSRCLine(media *sdp.MediaDescription) (sdp.Attribute, bool) {
	for _, attr := range media.Attributes {
		if attr.Key == sdp.AttrKeySSRC {
			return attr, true
		}
	}
	return sdp.Attribute{}, false
}

func sectionSSRCs(media *sdp.MediaDescription) []webrtc.SSRC {
	var ssrcs []webrtc.SSRC
	for _, attr := range media.Attributes {
		if attr.Key != sdp.AttrKeySSRC {
			continue
		}
		if sm, err := parseSSRCMedia(attr); err == nil && !containsSSRC(ssrcs, sm.SSRC) {
			ssrcs = append(ssrcs, sm.SSRC)
		}
	}
	return ssrcs
}

func containsSSRC(list []webrtc.SSRC, ssrc webrtc.SSRC) bool {
	for _, s := range list {
		if s == ssrc {
			return true
		}
	}
	return false
}

// rewriteBundleGroup makes the session-level BUNDLE group list the mids of
// the sections actually present.
func rewriteBundleGroup(parsed *sdp.SessionDescription) {
	mids := make([]string, 0, len(parsed.MediaDescriptions))
	for _, media := range parsed.MediaDescriptions {
		if mid := midValue(media); mid != "" {
			mids = append(mids, mid)
		}
	}
	for i, attr := range parsed.Attributes {
		if attr.Key == sdp.AttrKeyGroup && strings.HasPrefix(attr.Value, "BUNDLE") {
			parsed.Attributes[i].Value = strings.TrimSpace("BUNDLE " + strings.Join(mids, " "))
		}
	}
}
