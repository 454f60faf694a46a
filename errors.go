package negotiator

import "errors"

var (
	// ErrMalformedDescription indicates a session description that could not
	// be parsed. The negotiation round it belongs to is aborted.
	ErrMalformedDescription = errors.New("malformed session description")

	// ErrMissingMediaSection indicates a description without the media
	// section an operation expected to find.
	ErrMissingMediaSection = errors.New("media section not found")

	// ErrNoSSRCForTrack indicates a local track for which the freshly built
	// description announces no synchronization source.
	ErrNoSSRCForTrack = errors.New("no ssrc announced for track")

	// ErrUnknownSSRCOwner indicates a remote track whose SSRC is not owned by
	// any known endpoint. The track-added event is dropped.
	ErrUnknownSSRCOwner = errors.New("no endpoint owns ssrc")

	// ErrLocalDescriptionRejected indicates the transport refused to commit a
	// local description. The connection is left in its last good state.
	ErrLocalDescriptionRejected = errors.New("transport rejected local description")

	// ErrRemoteDescriptionRejected indicates the transport refused to commit
	// a remote description. The connection is left in its last good state.
	ErrRemoteDescriptionRejected = errors.New("transport rejected remote description")

	// ErrNoRemoteDescription indicates an answer was requested before any
	// remote offer was applied.
	ErrNoRemoteDescription = errors.New("remote description not set")

	// ErrConnectionClosed indicates an operation on a closed Negotiator.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSignalingStateMismatch indicates an offer/answer operation that is
	// not legal in the current signaling state, e.g. creating a second local
	// offer while one is still pending.
	ErrSignalingStateMismatch = errors.New("invalid signaling state transition")

	// ErrNoTransport indicates construction without a transport.
	ErrNoTransport = errors.New("no transport provided")
)
