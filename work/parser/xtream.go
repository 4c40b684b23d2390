package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/ratelimit"

	"kptv-catalog/work/client"
	"kptv-catalog/work/config"
	"kptv-catalog/work/logger"
	"kptv-catalog/work/types"
	"kptv-catalog/work/utils"
)

// Per-call deadlines. Series detail responses can be enormous (every
// episode of every season), so they get the longest budget; listing calls
// share the default.
const (
	defaultCallTimeout = 30 * time.Second
	seriesInfoTimeout  = 30 * time.Second
	vodInfoTimeout     = 15 * time.Second
)

// flexInt tolerates the Xtream API's habit of returning numbers as either
// JSON numbers or quoted strings, and treats anything unparsable as absent.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// flexFloat is flexInt for fractional values (ratings).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// API response shapes. These stay inside this package: the rest of the
// catalog only ever sees ContentRecord and friends.

type xcAuthResponse struct {
	UserInfo struct {
		Auth     flexInt `json:"auth"`
		Username string  `json:"username"`
		Status   string  `json:"status"`
	} `json:"user_info"`
}

type xcCategory struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
}

type xcLiveStream struct {
	StreamID     flexInt `json:"stream_id"`
	Name         string  `json:"name"`
	CategoryID   string  `json:"category_id"`
	StreamIcon   string  `json:"stream_icon"`
	EpgChannelID string  `json:"epg_channel_id"`
}

type xcVodStream struct {
	StreamID           flexInt   `json:"stream_id"`
	Name               string    `json:"name"`
	CategoryID         string    `json:"category_id"`
	StreamIcon         string    `json:"stream_icon"`
	ContainerExtension string    `json:"container_extension"`
	Rating             flexFloat `json:"rating"`
}

type xcSeries struct {
	SeriesID   flexInt `json:"series_id"`
	Name       string  `json:"name"`
	CategoryID string  `json:"category_id"`
	Cover      string  `json:"cover"`
}

type xcEpisode struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	EpisodeNum         flexInt `json:"episode_num"`
	Season             flexInt `json:"season"`
	ContainerExtension string  `json:"container_extension"`
}

type xcSeriesInfo struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Episodes map[string][]xcEpisode `json:"episodes"`
}

type xcVodInfo struct {
	Info struct {
		Plot     string    `json:"plot"`
		Cast     string    `json:"cast"`
		Genre    string    `json:"genre"`
		Rating   flexFloat `json:"rating"`
		Duration flexInt   `json:"duration_secs"`
	} `json:"info"`
}

type xcEpgListing struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	StartTimestamp string  `json:"start_timestamp"`
	StopTimestamp  string  `json:"stop_timestamp"`
	NowPlaying     flexInt `json:"now_playing"`
}

type xcShortEpg struct {
	EpgListings []xcEpgListing `json:"epg_listings"`
}

// Episode is one playable episode of a series season.
type Episode struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// Season groups the episodes of one series season.
type Season struct {
	Number   int       `json:"number"`
	Episodes []Episode `json:"episodes"`
}

// SeriesDetail is the season/episode structure of one series. A failed or
// timed-out detail call degrades to empty seasons with a placeholder name
// rather than an error: partial playlists beat total failure.
type SeriesDetail struct {
	Name          string   `json:"name"`
	Seasons       []Season `json:"seasons"`
	TotalEpisodes int      `json:"totalEpisodes"`
}

// VodDetail carries the enrichable fields of one VOD entry.
type VodDetail struct {
	Plot    string  `json:"plot,omitempty"`
	Cast    string  `json:"cast,omitempty"`
	Genre   string  `json:"genre,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	Runtime int     `json:"runtime,omitempty"` // minutes
}

// XtreamClient talks to one Xtream Codes account. All calls are rate
// limited and bounded by per-call timeouts; only authentication failures
// are fatal to an ingest, everything else degrades per content class.
type XtreamClient struct {
	hsc       *client.HeaderSettingClient
	cfg       *config.Config
	source    *config.SourceConfig
	limiter   ratelimit.Limiter
	obfuscate bool
}

// NewXtreamClient builds a client for source. The rate limiter caps API
// calls at 10/s so category+stream+detail bursts do not trip provider
// flood protection.
func NewXtreamClient(hsc *client.HeaderSettingClient, cfg *config.Config, source *config.SourceConfig) *XtreamClient {
	return &XtreamClient{
		hsc:       hsc,
		cfg:       cfg,
		source:    source,
		limiter:   ratelimit.New(10),
		obfuscate: cfg.ObfuscateUrls,
	}
}

func (xc *XtreamClient) apiURL(action string) string {
	u := fmt.Sprintf("%s/player_api.php?username=%s&password=%s", xc.source.URL, xc.source.Username, xc.source.Password)
	if action != "" {
		u += "&action=" + action
	}
	return u
}

// Authenticate probes the account. The API signals success with
// user_info.auth == 1; anything else is a rejected credential and fatal
// for the whole ingest of this source.
func (xc *XtreamClient) Authenticate(ctx context.Context) error {
	resp, err := fetchXC[xcAuthResponse](ctx, xc, xc.apiURL(""), defaultCallTimeout)
	if err != nil {
		return fmt.Errorf("xtream auth request failed: %w", err)
	}
	if resp.UserInfo.Auth != 1 {
		return fmt.Errorf("xtream authentication rejected for user %q (status %q)", xc.source.Username, resp.UserInfo.Status)
	}
	return nil
}

// FetchAll ingests the three content classes of the account. A failure in
// one class (say the VOD listing) is logged and skipped without aborting
// the others; only the auth probe is fatal.
func (xc *XtreamClient) FetchAll(ctx context.Context) ([]*types.ContentRecord, []types.Category, error) {
	if err := xc.Authenticate(ctx); err != nil {
		return nil, nil, err
	}

	var records []*types.ContentRecord
	var categories []types.Category

	live, liveCats, err := xc.fetchLive(ctx)
	if err != nil {
		logger.Warn("xtream live listing failed for %s: %v", xc.source.Name, err)
	} else {
		records = append(records, live...)
		categories = append(categories, liveCats...)
	}

	vod, vodCats, err := xc.fetchVod(ctx)
	if err != nil {
		logger.Warn("xtream vod listing failed for %s: %v", xc.source.Name, err)
	} else {
		records = append(records, vod...)
		categories = append(categories, vodCats...)
	}

	series, seriesCats, err := xc.fetchSeries(ctx)
	if err != nil {
		logger.Warn("xtream series listing failed for %s: %v", xc.source.Name, err)
	} else {
		records = append(records, series...)
		categories = append(categories, seriesCats...)
	}

	return records, categories, nil
}

func (xc *XtreamClient) fetchCategories(ctx context.Context, action string) (map[string]string, []types.Category, error) {
	cats, err := fetchXC[[]xcCategory](ctx, xc, xc.apiURL(action), defaultCallTimeout)
	if err != nil {
		return nil, nil, err
	}
	lookup := make(map[string]string, len(cats))
	list := make([]types.Category, 0, len(cats))
	for _, c := range cats {
		lookup[c.CategoryID] = c.CategoryName
		list = append(list, types.Category{ID: c.CategoryID, Name: c.CategoryName})
	}
	return lookup, list, nil
}

func (xc *XtreamClient) fetchLive(ctx context.Context) ([]*types.ContentRecord, []types.Category, error) {
	catNames, cats, err := xc.fetchCategories(ctx, "get_live_categories")
	if err != nil {
		return nil, nil, fmt.Errorf("live categories: %w", err)
	}
	streams, err := fetchXC[[]xcLiveStream](ctx, xc, xc.apiURL("get_live_streams"), defaultCallTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("live streams: %w", err)
	}

	records := make([]*types.ContentRecord, 0, len(streams))
	for _, s := range streams {
		streamURL := fmt.Sprintf("%s/live/%s/%s/%d.ts", xc.source.URL, xc.source.Username, xc.source.Password, int(s.StreamID))
		rec := &types.ContentRecord{
			ID:         utils.ContentID(s.Name, streamURL),
			Name:       s.Name,
			URL:        streamURL,
			Logo:       s.StreamIcon,
			Group:      catNames[s.CategoryID],
			IsLive:     true,
			StreamType: types.StreamTypeLive,
			Attributes: map[string]string{
				"stream-id":   strconv.Itoa(int(s.StreamID)),
				"category-id": s.CategoryID,
			},
		}
		if s.EpgChannelID != "" {
			rec.Attributes["tvg-id"] = s.EpgChannelID
		}
		records = append(records, rec)
	}
	if xc.cfg.Debug {
		logger.Debug("fetched %d live streams from %s", len(records), utils.LogURL(xc.obfuscate, xc.source.URL))
	}
	return records, cats, nil
}

func (xc *XtreamClient) fetchVod(ctx context.Context) ([]*types.ContentRecord, []types.Category, error) {
	catNames, cats, err := xc.fetchCategories(ctx, "get_vod_categories")
	if err != nil {
		return nil, nil, fmt.Errorf("vod categories: %w", err)
	}
	streams, err := fetchXC[[]xcVodStream](ctx, xc, xc.apiURL("get_vod_streams"), defaultCallTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("vod streams: %w", err)
	}

	records := make([]*types.ContentRecord, 0, len(streams))
	for _, s := range streams {
		ext := s.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		streamURL := fmt.Sprintf("%s/movie/%s/%s/%d.%s", xc.source.URL, xc.source.Username, xc.source.Password, int(s.StreamID), ext)
		records = append(records, &types.ContentRecord{
			ID:         utils.ContentID(s.Name, streamURL),
			Name:       s.Name,
			URL:        streamURL,
			Logo:       s.StreamIcon,
			Group:      catNames[s.CategoryID],
			StreamType: types.StreamTypeVod,
			Rating:     float64(s.Rating),
			Attributes: map[string]string{
				"stream-id":   strconv.Itoa(int(s.StreamID)),
				"category-id": s.CategoryID,
			},
		})
	}
	if xc.cfg.Debug {
		logger.Debug("fetched %d vod streams from %s", len(records), utils.LogURL(xc.obfuscate, xc.source.URL))
	}
	return records, cats, nil
}

func (xc *XtreamClient) fetchSeries(ctx context.Context) ([]*types.ContentRecord, []types.Category, error) {
	catNames, cats, err := xc.fetchCategories(ctx, "get_series_categories")
	if err != nil {
		return nil, nil, fmt.Errorf("series categories: %w", err)
	}
	series, err := fetchXC[[]xcSeries](ctx, xc, xc.apiURL("get_series"), defaultCallTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("series listing: %w", err)
	}

	records := make([]*types.ContentRecord, 0, len(series))
	for _, s := range series {
		streamURL := fmt.Sprintf("%s/series/%s/%s/%d.ts", xc.source.URL, xc.source.Username, xc.source.Password, int(s.SeriesID))
		records = append(records, &types.ContentRecord{
			ID:         utils.ContentID(s.Name, streamURL),
			Name:       s.Name,
			URL:        streamURL,
			Logo:       s.Cover,
			Group:      catNames[s.CategoryID],
			StreamType: types.StreamTypeSeries,
			Attributes: map[string]string{
				"series-id":   strconv.Itoa(int(s.SeriesID)),
				"category-id": s.CategoryID,
			},
		})
	}
	if xc.cfg.Debug {
		logger.Debug("fetched %d series from %s", len(records), utils.LogURL(xc.obfuscate, xc.source.URL))
	}
	return records, cats, nil
}

// GetSeriesInfo fetches the season/episode structure of one series. It
// never returns an error: timeouts and malformed responses degrade to an
// empty-seasons result with a placeholder name.
func (xc *XtreamClient) GetSeriesInfo(ctx context.Context, seriesID int) SeriesDetail {
	u := xc.apiURL("get_series_info") + "&series_id=" + strconv.Itoa(seriesID)
	info, err := fetchXC[xcSeriesInfo](ctx, xc, u, seriesInfoTimeout)
	if err != nil {
		logger.Warn("series info for %d failed, using placeholder: %v", seriesID, err)
		return SeriesDetail{Name: fmt.Sprintf("Series %d", seriesID)}
	}

	name := info.Info.Name
	if name == "" {
		name = fmt.Sprintf("Series %d", seriesID)
	}

	detail := SeriesDetail{Name: name}
	for seasonKey, episodes := range info.Episodes {
		seasonNum, _ := strconv.Atoi(seasonKey)
		season := Season{Number: seasonNum}
		for _, ep := range episodes {
			ext := ep.ContainerExtension
			if ext == "" {
				ext = "mp4"
			}
			season.Episodes = append(season.Episodes, Episode{
				ID:     ep.ID,
				Title:  ep.Title,
				Number: int(ep.EpisodeNum),
				URL:    fmt.Sprintf("%s/series/%s/%s/%s.%s", xc.source.URL, xc.source.Username, xc.source.Password, ep.ID, ext),
			})
			detail.TotalEpisodes++
		}
		detail.Seasons = append(detail.Seasons, season)
	}

	// Map iteration order is random; present seasons in ascending order.
	sort.Slice(detail.Seasons, func(i, j int) bool {
		return detail.Seasons[i].Number < detail.Seasons[j].Number
	})
	return detail
}

// GetVodInfo fetches enrichment details for one VOD entry, degrading to an
// empty detail on any failure.
func (xc *XtreamClient) GetVodInfo(ctx context.Context, vodID int) VodDetail {
	u := xc.apiURL("get_vod_info") + "&vod_id=" + strconv.Itoa(vodID)
	info, err := fetchXC[xcVodInfo](ctx, xc, u, vodInfoTimeout)
	if err != nil {
		logger.Warn("vod info for %d failed: %v", vodID, err)
		return VodDetail{}
	}
	return VodDetail{
		Plot:    info.Info.Plot,
		Cast:    info.Info.Cast,
		Genre:   info.Info.Genre,
		Rating:  float64(info.Info.Rating),
		Runtime: int(info.Info.Duration) / 60,
	}
}

// ShortEPG fetches the next few guide entries for one live stream. Titles
// and descriptions are returned exactly as the API sent them; the EPG
// cache layer owns base64 detection.
func (xc *XtreamClient) ShortEPG(ctx context.Context, streamID int) ([]types.EpgProgram, error) {
	u := xc.apiURL("get_short_epg") + "&stream_id=" + strconv.Itoa(streamID) + "&limit=3"
	resp, err := fetchXC[xcShortEpg](ctx, xc, u, defaultCallTimeout)
	if err != nil {
		return nil, fmt.Errorf("short epg for stream %d: %w", streamID, err)
	}

	programs := make([]types.EpgProgram, 0, len(resp.EpgListings))
	for _, l := range resp.EpgListings {
		start, err1 := strconv.ParseInt(l.StartTimestamp, 10, 64)
		stop, err2 := strconv.ParseInt(l.StopTimestamp, 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		programs = append(programs, types.EpgProgram{
			ID:          l.ID,
			ChannelID:   streamID,
			Title:       l.Title,
			Description: l.Description,
			Start:       time.Unix(start, 0),
			End:         time.Unix(stop, 0),
			IsLive:      l.NowPlaying == 1,
		})
	}
	return programs, nil
}

// fetchXC is the shared HTTP+JSON plumbing for every API call: rate limit,
// per-call deadline, source headers, status check, decode.
func fetchXC[T any](ctx context.Context, xc *XtreamClient, url string, timeout time.Duration) (T, error) {
	var zero T

	xc.limiter.Take()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := xc.hsc.DoWithHeaders(req, xc.source.UserAgent, xc.source.ReqOrigin, xc.source.ReqReferrer)
	if err != nil {
		return zero, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("failed to read response body: %w", err)
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		logger.Debug("unparsable API response from %s: %s", utils.LogURL(xc.obfuscate, url), preview)
		return zero, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return data, nil
}
