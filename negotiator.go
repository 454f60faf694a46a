package negotiator

import (
	"fmt"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// Capabilities describes the peer and transport environment. It is
// supplied at construction so the rewrite pipeline stays pure: no
// environment detection happens mid-negotiation.
type Capabilities struct {
	// SupportsRTX enables retransmission source synthesis on locally
	// built descriptions.
	SupportsRTX bool

	// SupportsSimulcast enables simulcast layer parameters. Without it a
	// multi-layer remote publication collapses into a single track.
	SupportsSimulcast bool

	// CommitDialect is the description style the transport expects on
	// commit.
	CommitDialect Dialect

	// PreferPassiveSetupRole forces the passive setup role on answers to
	// actpass offers, for transports that would otherwise pick the
	// latency-adding active role.
	PreferPassiveSetupRole bool
}

// Config collects the collaborators and policies of one Negotiator.
type Config struct {
	Capabilities Capabilities

	// Directory resolves SSRC ownership and per-endpoint media state.
	// Required for remote track handling.
	Directory EndpointDirectory

	LoggerFactory logging.LoggerFactory

	// EnableSimulcast turns on simulcast group synthesis for local video,
	// effective only when the capabilities also allow it.
	EnableSimulcast bool

	// RestrictedVideoCodecs are removed from every outgoing video section
	// before commit.
	RestrictedVideoCodecs []string

	// PreferredVideoCodec, when set, is moved to the front of the format
	// list before commit.
	PreferredVideoCodec string

	// FallbackVideoCodec overrides the codec injected into remote video
	// sections that carry no commonly supported one. Defaults to H264
	// constrained baseline.
	FallbackVideoCodec *FallbackVideoCodec
}

// Negotiator sits between the signaling layer and a transport, rewriting
// session descriptions in both directions and correlating tracks with the
// synchronization sources announced for them.
//
// All methods are safe for concurrent use, but negotiation rounds must
// not overlap: the caller starts a new round only after the previous one
// has resumed with a result or a failure.
type Negotiator struct {
	mu        sync.Mutex
	transport Transport
	caps      Capabilities
	directory EndpointDirectory
	log       logging.LeveledLogger

	simulcast  bool
	restricted []string
	preferred  string
	fallback   FallbackVideoCodec

	state  SignalingState
	cache  *ssrcCache
	alloc  *streamIDAllocator
	tracks *trackTable
	remote *remoteTable
	tones  *ToneQueue

	audioActive bool
	videoActive bool
	localUfrag  string
	remoteUfrag string
	isClosed    bool
}

// New builds a Negotiator around a transport. *webrtc.PeerConnection
// satisfies Transport directly.
func New(transport Transport, config Config) (*Negotiator, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}
	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	log := loggerFactory.NewLogger("negotiator")

	fallback := defaultFallbackVideoCodec()
	if config.FallbackVideoCodec != nil {
		fallback = *config.FallbackVideoCodec
	}

	return &Negotiator{
		transport:   transport,
		caps:        config.Capabilities,
		directory:   config.Directory,
		log:         log,
		simulcast:   config.EnableSimulcast && config.Capabilities.SupportsSimulcast,
		restricted:  config.RestrictedVideoCodecs,
		preferred:   config.PreferredVideoCodec,
		fallback:    fallback,
		state:       SignalingStateStable,
		cache:       newSSRCCache(log),
		alloc:       newStreamIDAllocator(),
		tracks:      newTrackTable(log),
		remote:      newRemoteTable(log),
		tones:       newToneQueue(),
		audioActive: true,
		videoActive: true,
	}, nil
}

// SignalingState returns the current offer/answer state.
func (n *Negotiator) SignalingState() SignalingState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Tones returns the outbound tone queue.
func (n *Negotiator) Tones() *ToneQueue {
	return n.tones
}

// CreateOffer builds the peer-visible form of a fresh local offer. The
// returned report carries the source updates for local tracks.
func (n *Negotiator) CreateOffer() (Description, *DiffReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isClosed {
		return Description{}, nil, ErrConnectionClosed
	}
	if n.state != SignalingStateStable {
		return Description{}, nil, fmt.Errorf("%w: create offer in state %s", ErrSignalingStateMismatch, n.state)
	}

	raw, err := n.transport.CreateOffer(nil)
	if err != nil {
		return Description{}, nil, err
	}
	return n.buildLocal(webrtc.SDPTypeOffer, raw.SDP, false)
}

// CreateAnswer builds the peer-visible form of a local answer to the
// applied remote offer.
func (n *Negotiator) CreateAnswer() (Description, *DiffReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isClosed {
		return Description{}, nil, ErrConnectionClosed
	}
	remote := n.transport.RemoteDescription()
	if remote == nil {
		return Description{}, nil, ErrNoRemoteDescription
	}
	if n.state != SignalingStateHaveRemoteOffer && n.state != SignalingStateHaveLocalPranswer {
		return Description{}, nil, fmt.Errorf("%w: create answer in state %s", ErrSignalingStateMismatch, n.state)
	}

	forcePassive := false
	if n.caps.PreferPassiveSetupRole {
		rd := FromWebRTC(*remote)
		if parsed, perr := rd.Unmarshal(); perr == nil && offersActpassSetup(parsed) {
			forcePassive = true
		}
	}

	raw, err := n.transport.CreateAnswer(nil)
	if err != nil {
		return Description{}, nil, err
	}
	return n.buildLocal(webrtc.SDPTypeAnswer, raw.SDP, forcePassive)
}

// buildLocal runs the local-description half of the rewrite pipeline and
// records the sources the result announces. mu must be held.
func (n *Negotiator) buildLocal(t webrtc.SDPType, rawSDP string, forcePassive bool) (Description, *DiffReport, error) {
	in := Description{Type: t, SDP: rawSDP}
	parsed, err := in.Unmarshal()
	if err != nil {
		return Description{}, nil, err
	}
	clone, err := cloneSession(parsed)
	if err != nil {
		return Description{}, nil, err
	}

	normalizeStreamIDs(clone, n.alloc)
	if n.caps.SupportsRTX {
		insertRTX(clone, n.cache)
	}
	if n.simulcast {
		ensureSimulcastGroup(clone)
	}
	orderSimulcastGroupsLast(clone)
	n.cache.makeConsistent(clone)
	enforceSendRecv(clone)
	if forcePassive {
		forcePassiveSetup(clone)
	}

	out, err := newDescription(t, clone)
	if err != nil {
		return Description{}, nil, err
	}

	flat, err := toFlatDialect(clone)
	if err != nil {
		return Description{}, nil, err
	}
	infos := streamSSRCInfo(n.log, flat)
	report := &DiffReport{
		LocalSSRCUpdates: n.tracks.reconcile(infos, n.alloc, n.videoActive),
	}
	return out, report, nil
}

// SetLocalDescription commits a local description to the transport after
// applying codec policy, the actual transfer directions and the dialect
// the transport expects. On transport failure the signaling state is left
// unchanged.
func (n *Negotiator) SetLocalDescription(desc Description) (*DiffReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isClosed {
		return nil, ErrConnectionClosed
	}
	next, err := checkNextSignalingState(
		n.state, nextSignalingState(stateChangeOpSetLocal, desc.Type), stateChangeOpSetLocal, desc.Type)
	if err != nil {
		return nil, err
	}

	parsed, err := desc.Unmarshal()
	if err != nil {
		return nil, err
	}
	clone, err := cloneSession(parsed)
	if err != nil {
		return nil, err
	}

	for _, name := range n.restricted {
		restrictVideoCodec(clone, name)
	}
	if n.preferred != "" {
		preferVideoCodec(clone, n.preferred)
	}
	applyTransferDirections(clone, n.audioActive, n.videoActive)
	orderSimulcastGroupsLast(clone)
	clone, err = n.toCommitDialect(clone)
	if err != nil {
		return nil, err
	}

	out, err := newDescription(desc.Type, clone)
	if err != nil {
		return nil, err
	}
	if err := n.transport.SetLocalDescription(out.WebRTC()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalDescriptionRejected, err)
	}
	n.state = next

	report := &DiffReport{}
	if ufrag := iceUfrag(clone); ufrag != "" && ufrag != n.localUfrag {
		report.LocalUfragChanged = n.localUfrag != ""
		n.localUfrag = ufrag
	}
	return report, nil
}

// SetRemoteDescription normalizes a remote description and commits it to
// the transport. On transport failure the signaling state is left
// unchanged.
func (n *Negotiator) SetRemoteDescription(desc Description) (*DiffReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isClosed {
		return nil, ErrConnectionClosed
	}
	next, err := checkNextSignalingState(
		n.state, nextSignalingState(stateChangeOpSetRemote, desc.Type), stateChangeOpSetRemote, desc.Type)
	if err != nil {
		return nil, err
	}

	parsed, err := desc.Unmarshal()
	if err != nil {
		return nil, err
	}
	clone, err := cloneSession(parsed)
	if err != nil {
		return nil, err
	}

	stripRTX(clone)
	clone, err = n.toCommitDialect(clone)
	if err != nil {
		return nil, err
	}
	if n.simulcast {
		injectSimulcastRecvFlag(clone)
	}
	if n.caps.CommitDialect == DialectPlanB {
		normalizeFlatReceive(clone)
	}
	injectFallbackVideoCodec(clone, n.fallback)

	out, err := newDescription(desc.Type, clone)
	if err != nil {
		return nil, err
	}
	if err := n.transport.SetRemoteDescription(out.WebRTC()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteDescriptionRejected, err)
	}
	n.state = next

	report := &DiffReport{}
	if ufrag := iceUfrag(clone); ufrag != "" && ufrag != n.remoteUfrag {
		report.RemoteUfragChanged = n.remoteUfrag != ""
		n.remoteUfrag = ufrag
	}
	return report, nil
}

func (n *Negotiator) toCommitDialect(parsed *sdp.SessionDescription) (*sdp.SessionDescription, error) {
	if n.caps.CommitDialect == DialectPlanB {
		return toFlatDialect(parsed)
	}
	return toTransceiverDialect(parsed)
}

// AddTrack attaches a local track to the transport and starts correlating
// it.
func (n *Negotiator) AddTrack(track webrtc.TrackLocal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isClosed {
		return ErrConnectionClosed
	}
	sender, err := n.transport.AddTrack(track)
	if err != nil {
		return err
	}
	n.tracks.add(track, sender)
	return nil
}

// RemoveTrack permanently detaches a local track. For video this also
// clears the source cache, so the next round may announce a fresh
// primary.
func (n *Negotiator) RemoveTrack(trackID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isClosed {
		return ErrConnectionClosed
	}
	rec := n.tracks.remove(trackID)
	if rec == nil {
		return nil
	}
	if rec.track.Kind() == webrtc.RTPCodecTypeVideo {
		n.cache.clear()
	}
	if rec.sender == nil {
		return nil
	}
	return n.transport.RemoveTrack(rec.sender)
}

// ReplaceTrack swaps the media behind an existing sender. Replacing a
// video track legitimizes a new primary source, so the cache is cleared.
func (n *Negotiator) ReplaceTrack(oldTrackID string, track webrtc.TrackLocal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isClosed {
		return ErrConnectionClosed
	}
	rec, ok := n.tracks.get(oldTrackID)
	if !ok {
		return fmt.Errorf("no local track %q to replace", oldTrackID)
	}
	if rec.sender != nil {
		if err := rec.sender.ReplaceTrack(track); err != nil {
			return err
		}
	}
	n.tracks.replace(oldTrackID, track)
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		n.cache.clear()
	}
	return nil
}

// SetAudioActive flips the local audio transfer flag and reports whether
// it changed. The flag only affects directions committed to the
// transport, never the peer-visible ones.
func (n *Negotiator) SetAudioActive(active bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.audioActive == active {
		return false
	}
	n.audioActive = active
	return true
}

// SetVideoActive flips the local video transfer flag and reports whether
// it changed. Deactivating does not clear the source cache; only removal
// does.
func (n *Negotiator) SetVideoActive(active bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.videoActive == active {
		return false
	}
	n.videoActive = active
	return true
}

// GetLocalSSRC returns the primary source last announced for a local
// track.
func (n *Negotiator) GetLocalSSRC(trackID string) (webrtc.SSRC, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tracks.ssrcFor(trackID)
}

// GetTrackBySSRC returns the resolved remote track a source belongs to.
func (n *Negotiator) GetTrackBySSRC(ssrc webrtc.SSRC) (*RemoteTrack, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.remote.lookupSSRC(ssrc)
}

// HandleRemoteTrack resolves an incoming remote track against the
// endpoint directory. A source no endpoint owns drops the event with an
// error; duplicates produce an empty report.
func (n *Negotiator) HandleRemoteTrack(track *webrtc.TrackRemote) (*DiffReport, error) {
	return n.resolveRemote(track.SSRC(), track.Kind(), track.StreamID(), track.ID(), track)
}

func (n *Negotiator) resolveRemote(
	ssrc webrtc.SSRC,
	kind webrtc.RTPCodecType,
	streamID, trackID string,
	track *webrtc.TrackRemote,
) (*DiffReport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isClosed {
		return nil, ErrConnectionClosed
	}

	endpointID, ok := n.directory.OwnerOfSSRC(ssrc)
	if !ok {
		n.log.Errorf("%v: ssrc %d, dropping track event", ErrUnknownSSRCOwner, uint32(ssrc))
		return nil, fmt.Errorf("%w: %d", ErrUnknownSSRCOwner, uint32(ssrc))
	}
	state := n.directory.MediaStateOf(endpointID, kind)

	added, removed := n.remote.resolve(&RemoteTrack{
		EndpointID:   endpointID,
		Kind:         kind,
		StreamID:     streamID,
		TrackID:      trackID,
		Track:        track,
		SSRC:         ssrc,
		Muted:        state.Muted,
		VideoSubtype: state.VideoSubtype,
	})
	report := &DiffReport{}
	if added != nil {
		report.RemoteTracksAdded = append(report.RemoteTracksAdded, added)
	}
	if removed != nil {
		report.RemoteTracksRemoved = append(report.RemoteTracksRemoved, removed)
	}
	return report, nil
}

// RemoveEndpoint disposes every remote track owned by an endpoint that
// left.
func (n *Negotiator) RemoveEndpoint(endpointID string) *DiffReport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &DiffReport{
		RemoteTracksRemoved: n.remote.removeEndpoint(endpointID),
	}
}

// AddICECandidate forwards a remote candidate to the transport.
func (n *Negotiator) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	n.mu.Lock()
	if n.isClosed {
		n.mu.Unlock()
		return ErrConnectionClosed
	}
	n.mu.Unlock()
	return n.transport.AddICECandidate(candidate)
}

// Senders enumerates the transport's current senders.
func (n *Negotiator) Senders() []*webrtc.RTPSender {
	return n.transport.GetSenders()
}

// Close drains the tone queue, then closes the transport. Subsequent
// operations fail with ErrConnectionClosed.
func (n *Negotiator) Close() error {
	n.mu.Lock()
	if n.isClosed {
		n.mu.Unlock()
		return nil
	}
	n.isClosed = true
	n.state = SignalingStateClosed
	n.mu.Unlock()

	n.tones.GracefulClose()
	return n.transport.Close()
}
