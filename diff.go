package negotiator

import "github.com/pion/webrtc/v4"

// LocalSSRCUpdate records a change in the synchronization sources a local
// track will be announced with. First assignment for a track is a regular
// update; a later differing primary is additionally flagged as an
// overwrite anomaly.
type LocalSSRCUpdate struct {
	TrackID   string
	Kind      webrtc.RTPCodecType
	Primary   webrtc.SSRC
	RTX       webrtc.SSRC
	Overwrite bool
}

// DiffReport is the accumulated outcome of one mutating operation. The
// caller decides how to propagate it; nothing here notifies anyone.
type DiffReport struct {
	LocalSSRCUpdates    []LocalSSRCUpdate
	RemoteTracksAdded   []*RemoteTrack
	RemoteTracksRemoved []*RemoteTrack
	LocalUfragChanged   bool
	RemoteUfragChanged  bool
}

// Empty reports whether the operation changed nothing observable.
func (d *DiffReport) Empty() bool {
	return len(d.LocalSSRCUpdates) == 0 &&
		len(d.RemoteTracksAdded) == 0 &&
		len(d.RemoteTracksRemoved) == 0 &&
		!d.LocalUfragChanged &&
		!d.RemoteUfragChanged
}
