package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kptv-catalog/work/types"
)

func TestParseEXTINF(t *testing.T) {
	attrs, name := ParseEXTINF(`#EXTINF:-1 tvg-id="tf1.fr" tvg-logo="http://x/logo.png" group-title="News",FR | TF1`)
	assert.Equal(t, "FR | TF1", name)
	assert.Equal(t, "tf1.fr", attrs["tvg-id"])
	assert.Equal(t, "http://x/logo.png", attrs["tvg-logo"])
	assert.Equal(t, "News", attrs["group-title"])
	assert.Equal(t, "-1", attrs["duration"])
}

func TestParseEXTINFCommaInsideQuotes(t *testing.T) {
	attrs, name := ParseEXTINF(`#EXTINF:-1 group-title="News, Weather",Channel One`)
	assert.Equal(t, "Channel One", name)
	assert.Equal(t, "News, Weather", attrs["group-title"])
}

func TestParseEXTINFNoComma(t *testing.T) {
	attrs, name := ParseEXTINF(`#EXTINF:-1 tvg-id="x"`)
	assert.Empty(t, name)
	assert.Empty(t, attrs)
}

func TestParseM3UPlaylist(t *testing.T) {
	playlist := `#EXTM3U
#EXTINF:-1 tvg-logo="x.png" group-title="News",FR | TF1
http://server/live/1.ts
#EXTINF:-1 group-title="Movies",Inception (2010) [FHD]
http://server/movie/2.mp4
#EXTINF:-1 group-title="Series",Vikings S03 E05
http://server/series/3.ts
`
	records := ParseM3U([]byte(playlist), "http://server/playlist.m3u")
	require.Len(t, records, 3)

	assert.Equal(t, "FR | TF1", records[0].Name)
	assert.Equal(t, "News", records[0].Group)
	assert.Equal(t, "x.png", records[0].Logo)
	assert.True(t, records[0].IsLive)
	assert.Equal(t, types.StreamTypeLive, records[0].StreamType)

	assert.Equal(t, types.StreamTypeVod, records[1].StreamType)
	assert.False(t, records[1].IsLive)

	assert.Equal(t, types.StreamTypeSeries, records[2].StreamType)
}

func TestParseM3UMalformedLines(t *testing.T) {
	playlist := `#EXTM3U
#EXTINF:-1,Orphaned Entry
#EXTINF:-1,Good Entry
http://server/live/1.ts
not a url at all
http://server/live/orphan.ts
#EXTINF:-1,Trailing Orphan
`
	records := ParseM3U([]byte(playlist), "")
	require.Len(t, records, 1)
	assert.Equal(t, "Good Entry", records[0].Name)
}

func TestParseM3UNameFallsBackToTvgName(t *testing.T) {
	playlist := "#EXTM3U\n" +
		`#EXTINF:-1 tvg-name="Fallback Name",` + "\n" +
		"http://server/live/1.ts\n"
	records := ParseM3U([]byte(playlist), "")
	require.Len(t, records, 1)
	assert.Equal(t, "Fallback Name", records[0].Name)
}

func TestParseM3UHLSMaster(t *testing.T) {
	master := `#EXTM3U
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=5000000,RESOLUTION=1920x1080
http://server/hls/high.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1000000,RESOLUTION=1280x720
http://server/hls/low.m3u8
`
	records := ParseM3U([]byte(master), "http://server/hls/master.m3u8")
	require.Len(t, records, 2)
	assert.Equal(t, "http://server/hls/high.m3u8", records[0].URL)
	assert.Equal(t, "1920x1080", records[0].Attributes["resolution"])
	assert.Equal(t, "5000000", records[0].Attributes["bandwidth"])
	assert.True(t, records[0].IsLive)
}

func TestParseM3UHLSMedia(t *testing.T) {
	media := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:9.009,
segment0.ts
#EXTINF:9.009,
segment1.ts
#EXT-X-ENDLIST
`
	records := ParseM3U([]byte(media), "http://server/hls/chunks.m3u8")
	require.Len(t, records, 1)
	assert.Equal(t, "http://server/hls/chunks.m3u8", records[0].URL)
	assert.True(t, records[0].IsLive)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want types.StreamType
	}{
		{"TF1", "http://server/live/1.ts", types.StreamTypeLive},
		{"Some Movie", "http://server/movie/9.mp4", types.StreamTypeVod},
		{"Container wins", "http://server/whatever/9.mkv", types.StreamTypeVod},
		{"Vikings S03 E05", "http://server/live/3.ts", types.StreamTypeSeries},
		{"Anything", "http://server/series/44.ts", types.StreamTypeSeries},
		{"Plain", "http://server/vod/44.ts", types.StreamTypeVod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name, tt.url))
		})
	}
}
