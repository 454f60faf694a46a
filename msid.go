package negotiator

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pion/sdp/v3"
)

// streamIDAllocator maps transient stream identifiers to stable
// per-connection ones, so detach/re-attach and mute cycles do not present
// as brand-new streams to the remote peer. The mapping is keyed by the
// original identifier, which makes repeated normalization idempotent.
type streamIDAllocator struct {
	byOriginal map[string]string
	newID      func() string
}

func newStreamIDAllocator() *streamIDAllocator {
	return &streamIDAllocator{
		byOriginal: map[string]string{},
		newID:      uuid.NewString,
	}
}

func (a *streamIDAllocator) stable(original string) string {
	if !isTransientStreamID(original) {
		return original
	}
	id, ok := a.byOriginal[original]
	if !ok {
		id = a.newID()
		a.byOriginal[original] = id
	}
	return id
}

func isTransientStreamID(id string) bool {
	switch id {
	case "", "-", "default":
		return true
	case noneStreamID:
		return false
	}
	// Firefox-style generated labels.
	return strings.HasPrefix(id, "{") && strings.HasSuffix(id, "}")
}

// normalizeStreamIDs rewrites placeholder stream identifiers in both
// section-level msid attributes and per-source msid lines.
func normalizeStreamIDs(parsed *sdp.SessionDescription, alloc *streamIDAllocator) {
	for _, media := range parsed.MediaDescriptions {
		if !isRTPKind(media) {
			continue
		}
		for i, attr := range media.Attributes {
			switch attr.Key {
			case sdp.AttrKeyMsid:
				stream, track, _ := strings.Cut(attr.Value, " ")
				if stable := alloc.stable(stream); stable != stream {
					media.Attributes[i].Value = strings.TrimSpace(stable + " " + track)
				}
			case sdp.AttrKeySSRC:
				sm, err := parseSSRCMedia(attr)
				if err != nil || sm.Attribute != "msid" {
					continue
				}
				stream, track, _ := strings.Cut(sm.Value, " ")
				if stable := alloc.stable(stream); stable != stream {
					sm.Value = strings.TrimSpace(stable + " " + track)
					media.Attributes[i].Value = sm.marshal()
				}
			}
		}
	}
}
