package negotiator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vp8OnlyVideoFixture() string {
	return joinSDP(append(sessionHeader(),
		"m=video 9 UDP/TLS/RTP/SAVPF 96 97 98 99 100",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=sendrecv",
		"a=rtpmap:96 VP8/90000",
		"a=rtpmap:97 rtx/90000",
		"a=fmtp:97 apt=96",
		"a=rtcp-fb:96 nack",
		"a=rtpmap:98 VP9/90000",
		"a=rtpmap:99 rtx/90000",
		"a=fmtp:99 apt=98",
		"a=rtpmap:100 red/90000",
	)...)
}

func TestInjectFallbackVideoCodec(t *testing.T) {
	parsed := mustParse(t, vp8OnlyVideoFixture())

	injectFallbackVideoCodec(parsed, defaultFallbackVideoCodec())

	video := firstSectionOfKind(parsed, "video")
	require.NotNil(t, video)
	assert.Equal(t, []string{"96", "97", "98", "99", "100", "127"}, video.MediaName.Formats)

	var rtpmap, fmtp string
	for _, attr := range video.Attributes {
		switch attr.Key {
		case "rtpmap":
			if attr.Value[:4] == "127 " {
				rtpmap = attr.Value
			}
		case "fmtp":
			if attr.Value[:4] == "127 " {
				fmtp = attr.Value
			}
		}
	}
	assert.Equal(t, "127 H264/90000", rtpmap)
	assert.Equal(t, "127 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f", fmtp)
}

func TestInjectFallbackVideoCodecPicksHighestUnused(t *testing.T) {
	raw := joinSDP(append(sessionHeader(),
		"m=video 9 UDP/TLS/RTP/SAVPF 96 126 127",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=rtpmap:96 VP8/90000",
		"a=rtpmap:126 red/90000",
		"a=rtpmap:127 ulpfec/90000",
	)...)
	parsed := mustParse(t, raw)

	injectFallbackVideoCodec(parsed, defaultFallbackVideoCodec())

	video := firstSectionOfKind(parsed, "video")
	assert.Contains(t, video.MediaName.Formats, "125")
}

func TestInjectFallbackVideoCodecAlreadyPresent(t *testing.T) {
	raw := joinSDP(append(sessionHeader(),
		"m=video 9 UDP/TLS/RTP/SAVPF 102",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=rtpmap:102 H264/90000",
		"a=fmtp:102 level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
	)...)
	parsed := mustParse(t, raw)
	before := mustMarshal(t, parsed)

	injectFallbackVideoCodec(parsed, defaultFallbackVideoCodec())
	assert.Equal(t, before, mustMarshal(t, parsed))
}

func TestRestrictVideoCodec(t *testing.T) {
	parsed := mustParse(t, vp8OnlyVideoFixture())

	restrictVideoCodec(parsed, "VP8")

	video := firstSectionOfKind(parsed, "video")
	assert.Equal(t, []string{"98", "99", "100"}, video.MediaName.Formats)
	for _, attr := range video.Attributes {
		switch attr.Key {
		case "rtpmap", "fmtp", "rtcp-fb":
			pt, _, _ := strings.Cut(attr.Value, " ")
			assert.NotEqual(t, "96", pt, "stray line %q", attr.Value)
			assert.NotEqual(t, "97", pt, "stray line %q", attr.Value)
		}
	}
}

func TestPreferVideoCodec(t *testing.T) {
	parsed := mustParse(t, vp8OnlyVideoFixture())

	preferVideoCodec(parsed, "VP9")

	video := firstSectionOfKind(parsed, "video")
	assert.Equal(t, []string{"98", "96", "97", "99", "100"}, video.MediaName.Formats)
}
