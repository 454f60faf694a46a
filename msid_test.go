package negotiator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStreamIDs(t *testing.T) {
	raw := joinSDP(append(sessionHeader(),
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=msid:default audio-one",
		"a=rtpmap:111 opus/48000/2",
		"a=ssrc:1111 cname:host",
		"a=ssrc:1111 msid:default audio-one",
		"m=video 9 UDP/TLS/RTP/SAVPF 96",
		"c=IN IP4 0.0.0.0",
		"a=mid:1",
		"a=msid:{63f19c0d-bc19-4a5c-a101-7efb3b1d1b93} video-one",
		"a=rtpmap:96 VP8/90000",
		"a=ssrc:2222 cname:host",
	)...)
	parsed := mustParse(t, raw)
	alloc := newStreamIDAllocator()

	normalizeStreamIDs(parsed, alloc)

	audioStream, audioTrack, ok := msidValue(parsed.MediaDescriptions[0])
	require.True(t, ok)
	assert.NotEqual(t, "default", audioStream)
	assert.Equal(t, "audio-one", audioTrack)

	videoStream, _, ok := msidValue(parsed.MediaDescriptions[1])
	require.True(t, ok)
	assert.NotContains(t, videoStream, "{")
	assert.NotEqual(t, audioStream, videoStream)

	// The per-source msid line follows the section-level rewrite.
	for _, attr := range parsed.MediaDescriptions[0].Attributes {
		if attr.Key == "ssrc" {
			sm, err := parseSSRCMedia(attr)
			require.NoError(t, err)
			if sm.Attribute == "msid" {
				assert.Equal(t, audioStream+" audio-one", sm.Value)
			}
		}
	}
}

func TestNormalizeStreamIDsIsStable(t *testing.T) {
	raw := joinSDP(append(sessionHeader(),
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=msid:default audio-one",
		"a=rtpmap:111 opus/48000/2",
	)...)
	alloc := newStreamIDAllocator()

	first := mustParse(t, raw)
	normalizeStreamIDs(first, alloc)
	once := mustMarshal(t, first)

	// Same allocator, same original id, same stable id.
	second := mustParse(t, raw)
	normalizeStreamIDs(second, alloc)
	assert.Equal(t, once, mustMarshal(t, second))

	// Repeated application does not rewrite further.
	normalizeStreamIDs(first, alloc)
	assert.Equal(t, once, mustMarshal(t, first))
}

func TestNormalizeStreamIDsKeepsRealIDs(t *testing.T) {
	raw := joinSDP(append(sessionHeader(),
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=msid:stream-one audio-one",
		"a=rtpmap:111 opus/48000/2",
	)...)
	parsed := mustParse(t, raw)
	before := mustMarshal(t, parsed)

	normalizeStreamIDs(parsed, newStreamIDAllocator())
	assert.Equal(t, before, mustMarshal(t, parsed))
}

func TestIsTransientStreamID(t *testing.T) {
	assert.True(t, isTransientStreamID(""))
	assert.True(t, isTransientStreamID("-"))
	assert.True(t, isTransientStreamID("default"))
	assert.True(t, isTransientStreamID("{63f19c0d-bc19-4a5c-a101-7efb3b1d1b93}"))
	assert.False(t, isTransientStreamID("none"))
	assert.False(t, isTransientStreamID("stream-one"))
}
