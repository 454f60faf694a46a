package negotiator

import (
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPrimaryVideoFixture() string {
	return joinSDP(append(sessionHeader(),
		"m=video 9 UDP/TLS/RTP/SAVPF 96 97",
		"c=IN IP4 0.0.0.0",
		"a=mid:0",
		"a=sendrecv",
		"a=msid:stream-one video-one",
		"a=rtpmap:96 VP8/90000",
		"a=rtpmap:97 rtx/90000",
		"a=fmtp:97 apt=96",
		"a=ssrc:3001 cname:host",
		"a=ssrc:3001 msid:stream-one video-one",
		"a=ssrc:3002 cname:host",
		"a=ssrc:3002 msid:stream-one video-one",
	)...)
}

func TestInsertRTXPairsEveryPrimary(t *testing.T) {
	parsed := mustParse(t, twoPrimaryVideoFixture())
	cache := newSSRCCache(testLogger())

	insertRTX(parsed, cache)

	video := firstSectionOfKind(parsed, "video")
	require.NotNil(t, video)

	groups := groupValues(video)
	require.Len(t, groups, 2)
	first, err := parseSSRCGroup(groups[0])
	require.NoError(t, err)
	second, err := parseSSRCGroup(groups[1])
	require.NoError(t, err)

	assert.Equal(t, sdp.SemanticTokenFlowIdentification, first.Semantics)
	assert.Equal(t, sdp.SemanticTokenFlowIdentification, second.Semantics)
	assert.Equal(t, webrtc.SSRC(3001), first.SSRCs[0])
	assert.Equal(t, webrtc.SSRC(3002), second.SSRCs[0])
	assert.NotZero(t, first.SSRCs[1])
	assert.NotZero(t, second.SSRCs[1])
	assert.NotEqual(t, first.SSRCs[1], second.SSRCs[1])

	// The repair source copies the primary's descriptive lines.
	repairLines := 0
	for _, attr := range video.Attributes {
		if attr.Key != sdp.AttrKeySSRC {
			continue
		}
		sm, perr := parseSSRCMedia(attr)
		require.NoError(t, perr)
		if sm.SSRC == first.SSRCs[1] {
			repairLines++
			switch sm.Attribute {
			case "cname":
				assert.Equal(t, "host", sm.Value)
			case "msid":
				assert.Equal(t, "stream-one video-one", sm.Value)
			default:
				t.Errorf("unexpected repair line %s", sm.Attribute)
			}
		}
	}
	assert.Equal(t, 2, repairLines)
}

func TestInsertRTXIsIdempotent(t *testing.T) {
	parsed := mustParse(t, twoPrimaryVideoFixture())
	cache := newSSRCCache(testLogger())

	insertRTX(parsed, cache)
	once := mustMarshal(t, parsed)
	insertRTX(parsed, cache)
	assert.Equal(t, once, mustMarshal(t, parsed))
}

func TestInsertRTXReusesCachedPairing(t *testing.T) {
	cache := newSSRCCache(testLogger())
	cache.cacheRTX(3001, 9191)

	parsed := mustParse(t, twoPrimaryVideoFixture())
	insertRTX(parsed, cache)

	video := firstSectionOfKind(parsed, "video")
	groups := groupValues(video)
	require.NotEmpty(t, groups)
	assert.Equal(t, "FID 3001 9191", groups[0])
}

func TestStripRTX(t *testing.T) {
	parsed := mustParse(t, twoPrimaryVideoFixture())
	cache := newSSRCCache(testLogger())
	insertRTX(parsed, cache)

	stripRTX(parsed)

	video := firstSectionOfKind(parsed, "video")
	assert.Empty(t, groupValues(video))
	assert.ElementsMatch(t, []webrtc.SSRC{3001, 3002}, sectionSSRCs(video))
}
