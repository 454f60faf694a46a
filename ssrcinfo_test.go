package negotiator

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSSRCInfoPerTransceiver(t *testing.T) {
	parsed := mustParse(t, perTransceiverFixture())

	infos := streamSSRCInfo(testLogger(), parsed)
	require.Len(t, infos, 2)

	audio := infos[streamKey{StreamID: "stream-one", Kind: webrtc.RTPCodecTypeAudio}]
	require.NotNil(t, audio)
	assert.Equal(t, []webrtc.SSRC{1111}, audio.SSRCs)

	video := infos[streamKey{StreamID: "stream-one", Kind: webrtc.RTPCodecTypeVideo}]
	require.NotNil(t, video)
	assert.Equal(t, []webrtc.SSRC{3001, 3002, 3003, 4001, 4002, 4003}, video.SSRCs)
	require.Len(t, video.Groups, 4)

	primary, ok := video.Primary()
	require.True(t, ok)
	assert.Equal(t, webrtc.SSRC(3001), primary)

	rtx, ok := video.RTXFor(3001)
	require.True(t, ok)
	assert.Equal(t, webrtc.SSRC(4001), rtx)

	_, ok = video.RTXFor(4001)
	assert.False(t, ok)
}

func TestStreamSSRCInfoFlat(t *testing.T) {
	raw := joinSDP(append(sessionHeader(),
		"m=video 9 UDP/TLS/RTP/SAVPF 96",
		"c=IN IP4 0.0.0.0",
		"a=mid:video",
		"a=sendrecv",
		"a=rtpmap:96 VP8/90000",
		"a=ssrc:3001 cname:host",
		"a=ssrc:3001 msid:stream-one video-one",
		"a=ssrc:6001 cname:peer",
		"a=ssrc:6001 msid:stream-two video-two",
		"a=ssrc-group:FID 3001 4001",
	)...)
	parsed := mustParse(t, raw)

	infos := streamSSRCInfo(testLogger(), parsed)
	require.Len(t, infos, 2)

	one := infos[streamKey{StreamID: "stream-one", Kind: webrtc.RTPCodecTypeVideo}]
	require.NotNil(t, one)
	// The repair source is announced only through the group and still
	// counts for its stream.
	assert.Equal(t, []webrtc.SSRC{3001, 4001}, one.SSRCs)
	require.Len(t, one.Groups, 1)

	two := infos[streamKey{StreamID: "stream-two", Kind: webrtc.RTPCodecTypeVideo}]
	require.NotNil(t, two)
	assert.Equal(t, []webrtc.SSRC{6001}, two.SSRCs)
	assert.Empty(t, two.Groups)
}

func TestStreamSSRCInfoSkipsStreamlessSources(t *testing.T) {
	raw := joinSDP(append(sessionHeader(),
		"m=video 9 UDP/TLS/RTP/SAVPF 96",
		"c=IN IP4 0.0.0.0",
		"a=mid:video",
		"a=recvonly",
		"a=rtpmap:96 VP8/90000",
		"a=ssrc:5555 cname:host",
	)...)
	infos := streamSSRCInfo(testLogger(), mustParse(t, raw))
	assert.Empty(t, infos)
}

func TestStreamSSRCInfoNilPrimary(t *testing.T) {
	var info *SSRCInfo
	_, ok := info.Primary()
	assert.False(t, ok)
}
