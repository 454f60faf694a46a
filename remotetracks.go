package negotiator

import (
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is the resolved association between a remote media track and
// the endpoint that owns it. One entry exists per (endpoint, media kind);
// simulcast layers of one publication collapse into a single entry.
type RemoteTrack struct {
	EndpointID   string
	Kind         webrtc.RTPCodecType
	StreamID     string
	TrackID      string
	Track        *webrtc.TrackRemote
	SSRC         webrtc.SSRC
	Muted        bool
	VideoSubtype VideoSubtype
}

type endpointKindKey struct {
	endpointID string
	kind       webrtc.RTPCodecType
}

// remoteTable holds remote track entries, addressable both by owning
// endpoint and by synchronization source.
type remoteTable struct {
	byEndpoint map[endpointKindKey]*RemoteTrack
	bySSRC     map[webrtc.SSRC]*RemoteTrack
	log        logging.LeveledLogger
}

func newRemoteTable(log logging.LeveledLogger) *remoteTable {
	return &remoteTable{
		byEndpoint: map[endpointKindKey]*RemoteTrack{},
		bySSRC:     map[webrtc.SSRC]*RemoteTrack{},
		log:        log,
	}
}

// resolve records a remote track. Duplicate notifications for the
// already-resolved (stream, track) pair are ignored and return (nil,
// nil); simulcast layers of one publication share that pair and so
// collapse into a single entry. A differing track for an occupied
// (endpoint, kind) slot is an overwrite anomaly: logged, the old entry is
// returned as removed and the new one takes its place.
func (t *remoteTable) resolve(track *RemoteTrack) (added, removed *RemoteTrack) {
	key := endpointKindKey{endpointID: track.EndpointID, kind: track.Kind}
	if existing, ok := t.byEndpoint[key]; ok {
		if existing.StreamID == track.StreamID && existing.TrackID == track.TrackID {
			return nil, nil
		}
		t.log.Errorf("remote %s track for endpoint %s overwritten: ssrc %d replaces %d",
			track.Kind, track.EndpointID, track.SSRC, existing.SSRC)
		delete(t.bySSRC, existing.SSRC)
		removed = existing
	}
	t.byEndpoint[key] = track
	t.bySSRC[track.SSRC] = track
	return track, removed
}

func (t *remoteTable) lookupSSRC(ssrc webrtc.SSRC) (*RemoteTrack, bool) {
	track, ok := t.bySSRC[ssrc]
	return track, ok
}

// removeEndpoint disposes every entry owned by one endpoint and returns
// them.
func (t *remoteTable) removeEndpoint(endpointID string) []*RemoteTrack {
	var removed []*RemoteTrack
	for key, track := range t.byEndpoint {
		if key.endpointID != endpointID {
			continue
		}
		delete(t.byEndpoint, key)
		delete(t.bySSRC, track.SSRC)
		removed = append(removed, track)
	}
	return removed
}
