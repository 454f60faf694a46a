package negotiator

import (
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// localTrackRecord correlates one local track with the synchronization
// sources the peer-visible description announces for it.
type localTrackRecord struct {
	track   webrtc.TrackLocal
	sender  *webrtc.RTPSender
	primary webrtc.SSRC
	rtx     webrtc.SSRC
}

// trackTable holds the correlation entries for local tracks, keyed by the
// track's runtime identifier. Entries live for the lifetime of the owning
// track.
type trackTable struct {
	byID  map[string]*localTrackRecord
	order []string
	log   logging.LeveledLogger
}

func newTrackTable(log logging.LeveledLogger) *trackTable {
	return &trackTable{
		byID: map[string]*localTrackRecord{},
		log:  log,
	}
}

func (t *trackTable) add(track webrtc.TrackLocal, sender *webrtc.RTPSender) {
	id := track.ID()
	if _, ok := t.byID[id]; !ok {
		t.order = append(t.order, id)
	}
	t.byID[id] = &localTrackRecord{track: track, sender: sender}
}

func (t *trackTable) remove(trackID string) *localTrackRecord {
	rec, ok := t.byID[trackID]
	if !ok {
		return nil
	}
	delete(t.byID, trackID)
	for i, id := range t.order {
		if id == trackID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return rec
}

// replace swaps the track object behind an existing entry. The recorded
// sources are reset because a replaced track may legitimately change its
// primary.
func (t *trackTable) replace(oldID string, track webrtc.TrackLocal) *localTrackRecord {
	rec := t.remove(oldID)
	if rec == nil {
		return nil
	}
	rec.track = track
	rec.primary = 0
	rec.rtx = 0
	id := track.ID()
	t.byID[id] = rec
	t.order = append(t.order, id)
	return rec
}

func (t *trackTable) get(trackID string) (*localTrackRecord, bool) {
	rec, ok := t.byID[trackID]
	return rec, ok
}

// ssrcFor returns the primary source last recorded for a track.
func (t *trackTable) ssrcFor(trackID string) (webrtc.SSRC, bool) {
	rec, ok := t.byID[trackID]
	if !ok || rec.primary == 0 {
		return 0, false
	}
	return rec.primary, true
}

// reconcile walks every known local track after a successful description
// build and looks up its current sources in the freshly extracted map. A
// missing entry for an audio track, or for a video track while video
// transfer is active, is an anomaly. A changed primary on a track that
// was not replaced is an overwrite anomaly, recorded but accepted.
func (t *trackTable) reconcile(
	infos map[streamKey]*SSRCInfo,
	alloc *streamIDAllocator,
	videoActive bool,
) []LocalSSRCUpdate {
	var updates []LocalSSRCUpdate
	for _, id := range t.order {
		rec := t.byID[id]
		kind := rec.track.Kind()
		key := streamKey{StreamID: alloc.stable(rec.track.StreamID()), Kind: kind}
		info, ok := infos[key]
		if !ok || len(info.SSRCs) == 0 {
			if kind == webrtc.RTPCodecTypeAudio || videoActive {
				t.log.Errorf("%v: track %s stream %s", ErrNoSSRCForTrack, id, key.StreamID)
			}
			continue
		}
		primary, ok := info.Primary()
		if !ok {
			if kind == webrtc.RTPCodecTypeAudio || videoActive {
				t.log.Errorf("%v: track %s stream %s", ErrNoSSRCForTrack, id, key.StreamID)
			}
			continue
		}
		rtx, _ := info.RTXFor(primary)
		if rec.primary == primary && rec.rtx == rtx {
			continue
		}
		overwrite := rec.primary != 0 && rec.primary != primary
		if overwrite {
			t.log.Errorf("primary ssrc for track %s changed %d -> %d without track replacement", id, rec.primary, primary)
		}
		rec.primary = primary
		rec.rtx = rtx
		updates = append(updates, LocalSSRCUpdate{
			TrackID:   id,
			Kind:      kind,
			Primary:   primary,
			RTX:       rtx,
			Overwrite: overwrite,
		})
	}
	return updates
}
