package negotiator

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalingStateString(t *testing.T) {
	testCases := []struct {
		state    SignalingState
		expected string
	}{
		{SignalingState(0), "unknown"},
		{SignalingStateStable, "stable"},
		{SignalingStateHaveLocalOffer, "have-local-offer"},
		{SignalingStateHaveRemoteOffer, "have-remote-offer"},
		{SignalingStateHaveLocalPranswer, "have-local-pranswer"},
		{SignalingStateHaveRemotePranswer, "have-remote-pranswer"},
		{SignalingStateClosed, "closed"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.state.String())
	}
}

func TestCheckNextSignalingState(t *testing.T) {
	valid := []struct {
		cur     SignalingState
		op      stateChangeOp
		sdpType webrtc.SDPType
		next    SignalingState
	}{
		{SignalingStateStable, stateChangeOpSetLocal, webrtc.SDPTypeOffer, SignalingStateHaveLocalOffer},
		{SignalingStateStable, stateChangeOpSetRemote, webrtc.SDPTypeOffer, SignalingStateHaveRemoteOffer},
		{SignalingStateHaveLocalOffer, stateChangeOpSetRemote, webrtc.SDPTypeAnswer, SignalingStateStable},
		{SignalingStateHaveLocalOffer, stateChangeOpSetRemote, webrtc.SDPTypePranswer, SignalingStateHaveRemotePranswer},
		{SignalingStateHaveRemotePranswer, stateChangeOpSetRemote, webrtc.SDPTypeAnswer, SignalingStateStable},
		{SignalingStateHaveRemoteOffer, stateChangeOpSetLocal, webrtc.SDPTypeAnswer, SignalingStateStable},
		{SignalingStateHaveRemoteOffer, stateChangeOpSetLocal, webrtc.SDPTypePranswer, SignalingStateHaveLocalPranswer},
		{SignalingStateHaveLocalPranswer, stateChangeOpSetLocal, webrtc.SDPTypeAnswer, SignalingStateStable},
	}
	for _, tc := range valid {
		next, err := checkNextSignalingState(
			tc.cur, nextSignalingState(tc.op, tc.sdpType), tc.op, tc.sdpType)
		require.NoError(t, err, "%s -> %s(%s)", tc.cur, tc.op, tc.sdpType)
		assert.Equal(t, tc.next, next)
	}

	invalid := []struct {
		cur     SignalingState
		op      stateChangeOp
		sdpType webrtc.SDPType
	}{
		// A second local offer while one is pending.
		{SignalingStateHaveLocalOffer, stateChangeOpSetLocal, webrtc.SDPTypeOffer},
		// An answer with no offer in flight.
		{SignalingStateStable, stateChangeOpSetRemote, webrtc.SDPTypeAnswer},
		{SignalingStateStable, stateChangeOpSetLocal, webrtc.SDPTypeAnswer},
		// Crossed roles.
		{SignalingStateHaveLocalOffer, stateChangeOpSetLocal, webrtc.SDPTypeAnswer},
		{SignalingStateHaveRemoteOffer, stateChangeOpSetRemote, webrtc.SDPTypeAnswer},
	}
	for _, tc := range invalid {
		cur, err := checkNextSignalingState(
			tc.cur, nextSignalingState(tc.op, tc.sdpType), tc.op, tc.sdpType)
		assert.ErrorIs(t, err, ErrSignalingStateMismatch, "%s -> %s(%s)", tc.cur, tc.op, tc.sdpType)
		assert.Equal(t, tc.cur, cur)
	}
}

func TestCheckNextSignalingStateRollbackFromStable(t *testing.T) {
	_, err := checkNextSignalingState(
		SignalingStateStable,
		nextSignalingState(stateChangeOpSetLocal, webrtc.SDPTypeRollback),
		stateChangeOpSetLocal, webrtc.SDPTypeRollback)
	assert.ErrorIs(t, err, ErrSignalingStateMismatch)
}
