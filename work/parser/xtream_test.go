package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kptv-catalog/work/client"
	"kptv-catalog/work/config"
	"kptv-catalog/work/types"
)

func testClient(serverURL string) *XtreamClient {
	cfg := &config.Config{}
	src := &config.SourceConfig{
		Name:     "test",
		Type:     config.SourceTypeXtream,
		URL:      serverURL,
		Username: "user",
		Password: "pass",
	}
	return NewXtreamClient(client.NewHeaderSettingClient(), cfg, src)
}

// xcServer fakes an Xtream Codes endpoint, serving canned JSON per action.
func xcServer(t *testing.T, responses map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/player_api.php", r.URL.Path)
		require.Equal(t, "user", r.URL.Query().Get("username"))
		require.Equal(t, "pass", r.URL.Query().Get("password"))

		action := r.URL.Query().Get("action")
		resp, ok := responses[action]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func authOK() map[string]any {
	return map[string]any{"user_info": map[string]any{"auth": 1, "username": "user", "status": "Active"}}
}

func TestAuthenticate(t *testing.T) {
	srv := xcServer(t, map[string]any{"": authOK()})
	defer srv.Close()

	xc := testClient(srv.URL)
	assert.NoError(t, xc.Authenticate(context.Background()))
}

func TestAuthenticateRejected(t *testing.T) {
	srv := xcServer(t, map[string]any{
		"": map[string]any{"user_info": map[string]any{"auth": 0, "status": "Expired"}},
	})
	defer srv.Close()

	xc := testClient(srv.URL)
	err := xc.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestAuthenticateStringAuthValue(t *testing.T) {
	// Some panels quote the auth flag.
	srv := xcServer(t, map[string]any{
		"": map[string]any{"user_info": map[string]any{"auth": "1"}},
	})
	defer srv.Close()

	assert.NoError(t, testClient(srv.URL).Authenticate(context.Background()))
}

func TestFetchAllBuildsRecords(t *testing.T) {
	responses := map[string]any{
		"":                    authOK(),
		"get_live_categories": []map[string]any{{"category_id": "1", "category_name": "News"}},
		"get_live_streams": []map[string]any{
			{"stream_id": 100, "name": "FR | TF1", "category_id": "1", "stream_icon": "tf1.png", "epg_channel_id": "tf1.fr"},
		},
		"get_vod_categories": []map[string]any{{"category_id": "2", "category_name": "Movies"}},
		"get_vod_streams": []map[string]any{
			{"stream_id": 200, "name": "Inception (2010)", "category_id": "2", "container_extension": "mkv", "rating": "8.8"},
		},
		"get_series_categories": []map[string]any{{"category_id": "3", "category_name": "Series"}},
		"get_series": []map[string]any{
			{"series_id": 300, "name": "Vikings", "category_id": "3", "cover": "vikings.png"},
		},
	}
	srv := xcServer(t, responses)
	defer srv.Close()

	xc := testClient(srv.URL)
	records, categories, err := xc.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Len(t, categories, 3)

	live := records[0]
	assert.Equal(t, "FR | TF1", live.Name)
	assert.Equal(t, srv.URL+"/live/user/pass/100.ts", live.URL)
	assert.Equal(t, "News", live.Group)
	assert.True(t, live.IsLive)
	assert.Equal(t, "tf1.fr", live.Attributes["tvg-id"])
	assert.Equal(t, "100", live.Attributes["stream-id"])

	vod := records[1]
	assert.Equal(t, srv.URL+"/movie/user/pass/200.mkv", vod.URL)
	assert.Equal(t, types.StreamTypeVod, vod.StreamType)
	assert.InDelta(t, 8.8, vod.Rating, 0.001)

	series := records[2]
	assert.Equal(t, types.StreamTypeSeries, series.StreamType)
	assert.Equal(t, "300", series.Attributes["series-id"])
}

func TestFetchAllClassIsolation(t *testing.T) {
	// VOD endpoints are broken; live and series still come through.
	responses := map[string]any{
		"":                    authOK(),
		"get_live_categories": []map[string]any{},
		"get_live_streams": []map[string]any{
			{"stream_id": 100, "name": "TF1"},
		},
		"get_series_categories": []map[string]any{},
		"get_series":            []map[string]any{},
	}
	srv := xcServer(t, responses)
	defer srv.Close()

	xc := testClient(srv.URL)
	records, _, err := xc.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TF1", records[0].Name)
}

func TestFetchAllAuthFailureIsFatal(t *testing.T) {
	srv := xcServer(t, map[string]any{
		"": map[string]any{"user_info": map[string]any{"auth": 0}},
	})
	defer srv.Close()

	_, _, err := testClient(srv.URL).FetchAll(context.Background())
	assert.Error(t, err)
}

func TestGetSeriesInfo(t *testing.T) {
	responses := map[string]any{
		"get_series_info": map[string]any{
			"info": map[string]any{"name": "Vikings"},
			"episodes": map[string]any{
				"2": []map[string]any{
					{"id": "9002", "title": "S02 E01", "episode_num": 1, "season": 2, "container_extension": "mkv"},
				},
				"1": []map[string]any{
					{"id": "9000", "title": "S01 E01", "episode_num": "1", "season": 1},
					{"id": "9001", "title": "S01 E02", "episode_num": 2, "season": 1},
				},
			},
		},
	}
	srv := xcServer(t, responses)
	defer srv.Close()

	detail := testClient(srv.URL).GetSeriesInfo(context.Background(), 300)
	assert.Equal(t, "Vikings", detail.Name)
	assert.Equal(t, 3, detail.TotalEpisodes)
	require.Len(t, detail.Seasons, 2)
	assert.Equal(t, 1, detail.Seasons[0].Number)
	assert.Equal(t, 2, detail.Seasons[1].Number)
	require.Len(t, detail.Seasons[0].Episodes, 2)
	assert.Equal(t, srv.URL+"/series/user/pass/9000.mp4", detail.Seasons[0].Episodes[0].URL)
	assert.Equal(t, srv.URL+"/series/user/pass/9002.mkv", detail.Seasons[1].Episodes[0].URL)
}

func TestGetSeriesInfoDegradesToPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	detail := testClient(srv.URL).GetSeriesInfo(context.Background(), 42)
	assert.Equal(t, "Series 42", detail.Name)
	assert.Empty(t, detail.Seasons)
	assert.Zero(t, detail.TotalEpisodes)
}

func TestGetVodInfoDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Zero(t, testClient(srv.URL).GetVodInfo(context.Background(), 1))
}

func TestShortEPG(t *testing.T) {
	responses := map[string]any{
		"get_short_epg": map[string]any{
			"epg_listings": []map[string]any{
				{"id": "1", "title": "TGUgSm91cm5hbA==", "start_timestamp": "1709323200", "stop_timestamp": "1709326800", "now_playing": 1},
				{"id": "2", "title": "Next", "start_timestamp": "1709326800", "stop_timestamp": "1709330400", "now_playing": "0"},
				{"id": "3", "title": "Bad", "start_timestamp": "oops", "stop_timestamp": "1709330400"},
			},
		},
	}
	srv := xcServer(t, responses)
	defer srv.Close()

	programs, err := testClient(srv.URL).ShortEPG(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, programs, 2)

	// Base64 is passed through untouched; decoding is the cache's job.
	assert.Equal(t, "TGUgSm91cm5hbA==", programs[0].Title)
	assert.Equal(t, 100, programs[0].ChannelID)
	assert.Equal(t, int64(1709323200), programs[0].Start.Unix())
	assert.Equal(t, int64(1709326800), programs[0].End.Unix())
	assert.True(t, programs[0].IsLive)
	assert.False(t, programs[1].IsLive)
}

func TestShortEPGRequestLimit(t *testing.T) {
	var gotLimit, gotStream string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		gotStream = r.URL.Query().Get("stream_id")
		json.NewEncoder(w).Encode(map[string]any{"epg_listings": []any{}})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ShortEPG(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, "3", gotLimit)
	assert.Equal(t, "77", gotStream)
}
