package negotiator

import "github.com/pion/webrtc/v4"

// Transport is the narrow surface consumed from the connection object.
// Every method is treated as an opaque operation that either returns a
// structured description or fails with a transport-defined error.
// *webrtc.PeerConnection satisfies it directly.
type Transport interface {
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	RemoteDescription() *webrtc.SessionDescription
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	RemoveTrack(sender *webrtc.RTPSender) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	GetSenders() []*webrtc.RTPSender
	Close() error
}
