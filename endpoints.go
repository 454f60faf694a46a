package negotiator

import "github.com/pion/webrtc/v4"

// VideoSubtype distinguishes the kind of video an endpoint publishes.
type VideoSubtype string

const (
	VideoSubtypeCamera VideoSubtype = "camera"
	VideoSubtypeScreen VideoSubtype = "screen"
)

// MediaState is the published state of one (endpoint, media kind) pair.
type MediaState struct {
	Muted        bool
	VideoSubtype VideoSubtype
}

// EndpointDirectory is the read-only view of the signaling layer's
// ownership records. Implementations are queried during remote track
// resolution and never mutated from here.
type EndpointDirectory interface {
	// OwnerOfSSRC returns the endpoint that announced the given
	// synchronization source, or ok=false when nobody did.
	OwnerOfSSRC(ssrc webrtc.SSRC) (endpointID string, ok bool)

	// MediaStateOf returns the current mute state and video subtype for
	// one endpoint and media kind.
	MediaStateOf(endpointID string, kind webrtc.RTPCodecType) MediaState
}
