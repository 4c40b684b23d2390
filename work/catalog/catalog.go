// Package catalog orchestrates the aggregation pipeline: ingest every
// configured source, filter, deduplicate, select variants and keep the
// results queryable while refreshes happen in the background.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"kptv-catalog/work/cache"
	"kptv-catalog/work/client"
	"kptv-catalog/work/config"
	"kptv-catalog/work/database"
	"kptv-catalog/work/dedup"
	"kptv-catalog/work/enrich"
	"kptv-catalog/work/epg"
	"kptv-catalog/work/extract"
	"kptv-catalog/work/filter"
	"kptv-catalog/work/logger"
	"kptv-catalog/work/metrics"
	"kptv-catalog/work/parser"
	"kptv-catalog/work/types"
	"kptv-catalog/work/utils"
)

// IngestResult reports one source's contribution to a refresh pass.
type IngestResult struct {
	Source  string `json:"source"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// Entry is one catalog row: deduplicated content plus the variant chosen
// for the current preferences.
type Entry struct {
	*types.DeduplicatedContent
	Selected types.ContentVariant `json:"selected"`
}

// Aggregator owns the ingest pipeline and the deduplicated views built
// from it. Views are replaced wholesale under a write lock at the end of
// each pass, so readers always see a consistent catalog.
type Aggregator struct {
	cfg      *config.Config
	hsc      *client.HeaderSettingClient
	pool     *ants.Pool
	plCache  *cache.PlaylistCache
	filters  *filter.Manager
	enricher *enrich.Enricher
	epg      *epg.Manager
	db       *database.DB

	mu           sync.RWMutex
	prefs        types.Preferences
	byType       map[types.StreamType][]*types.DeduplicatedContent
	liveIDs      []int
	seriesOwners map[int]*parser.XtreamClient
	vodOwners    map[int]*parser.XtreamClient
	xcClients    map[string]*parser.XtreamClient

	refreshStop chan struct{}
	refreshOnce sync.Once
}

// New wires an aggregator from config. db may be nil when persistence is
// disabled.
func New(cfg *config.Config, hsc *client.HeaderSettingClient, db *database.DB) (*Aggregator, error) {
	pool, err := ants.NewPool(cfg.WorkerThreads)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	plCache, err := cache.NewPlaylistCache(cfg.CacheDuration)
	if err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to create playlist cache: %w", err)
	}

	agg := &Aggregator{
		cfg:          cfg,
		hsc:          hsc,
		pool:         pool,
		plCache:      plCache,
		filters:      filter.NewManager(),
		enricher:     enrich.New(cfg.Metadata),
		db:           db,
		prefs:        cfg.Preferences,
		byType:       make(map[types.StreamType][]*types.DeduplicatedContent),
		seriesOwners: make(map[int]*parser.XtreamClient),
		vodOwners:    make(map[int]*parser.XtreamClient),
		xcClients:    make(map[string]*parser.XtreamClient),
		refreshStop:  make(chan struct{}),
	}

	epgMgr, err := epg.NewManager(agg, cfg.EpgCacheTTL, cfg.WorkerThreads)
	if err != nil {
		pool.Release()
		plCache.Close()
		return nil, fmt.Errorf("failed to create epg manager: %w", err)
	}
	agg.epg = epgMgr
	return agg, nil
}

// EPG exposes the guide cache for the HTTP layer.
func (a *Aggregator) EPG() *epg.Manager { return a.epg }

// ShortEPG routes a guide fetch to whichever Xtream account owns the
// channel, making the aggregator the epg.Source for its own cache.
func (a *Aggregator) ShortEPG(ctx context.Context, channelID int) ([]types.EpgProgram, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, xc := range a.xcClients {
		programs, err := xc.ShortEPG(ctx, channelID)
		if err == nil && len(programs) > 0 {
			return programs, nil
		}
	}
	return nil, fmt.Errorf("no epg source for channel %d", channelID)
}

// Close stops background work and releases pools and caches.
func (a *Aggregator) Close() {
	a.StopRefresh()
	a.epg.Close()
	a.pool.Release()
	a.plCache.Close()
}

// IngestAll runs one full refresh pass: every source is ingested
// concurrently, per-source failures are reported without aborting the
// pass, and the deduplicated views are swapped in at the end.
func (a *Aggregator) IngestAll(ctx context.Context) []IngestResult {
	started := time.Now()
	sources := a.cfg.SourcesByOrder()

	var (
		resMu   sync.Mutex
		results = make([]IngestResult, 0, len(sources))
		all     []*types.ContentRecord
		wg      sync.WaitGroup
	)

	for i := range sources {
		src := sources[i]
		wg.Add(1)
		task := func() {
			defer wg.Done()
			records, err := a.ingestSource(ctx, &src)

			resMu.Lock()
			defer resMu.Unlock()
			res := IngestResult{Source: src.Name, Records: len(records)}
			if err != nil {
				res.Error = err.Error()
				metrics.IngestErrors.WithLabelValues(src.Name, "fetch").Inc()
				logger.Error("ingest of %s failed: %v", src.Name, err)
			}
			results = append(results, res)
			all = append(all, records...)
		}
		if err := a.pool.Submit(task); err != nil {
			// Pool saturated or released: run inline rather than drop the source.
			task()
		}
	}
	wg.Wait()

	a.rebuild(all)

	if a.db != nil {
		a.persist(ctx, sources, all)
	}

	metrics.RefreshDuration.Observe(time.Since(started).Seconds())
	logger.Info("refresh pass done: %d records from %d sources in %s", len(all), len(sources), time.Since(started).Round(time.Millisecond))
	return results
}

func (a *Aggregator) ingestSource(ctx context.Context, src *config.SourceConfig) ([]*types.ContentRecord, error) {
	var records []*types.ContentRecord

	switch src.Type {
	case config.SourceTypeXtream:
		xc := a.xtreamFor(src)
		recs, _, err := xc.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		records = recs
	default:
		payload, err := a.playlistPayload(ctx, src)
		if err != nil {
			return nil, err
		}
		records = parser.ParseM3U([]byte(payload), src.URL)
	}

	for _, rec := range records {
		metrics.RecordsIngested.WithLabelValues(src.Name, rec.StreamType.String()).Inc()
		if rec.Attributes == nil {
			rec.Attributes = map[string]string{}
		}
		rec.Attributes["source"] = src.Name
	}

	records = a.filters.FilterRecords(src, records)

	if a.enricher != nil {
		for _, rec := range records {
			if rec.StreamType == types.StreamTypeVod {
				a.enricher.Apply(ctx, rec, extract.Extract(rec.Name))
			}
		}
	}
	return records, nil
}

func (a *Aggregator) xtreamFor(src *config.SourceConfig) *parser.XtreamClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	if xc, ok := a.xcClients[src.Name]; ok {
		return xc
	}
	xc := parser.NewXtreamClient(a.hsc, a.cfg, src)
	a.xcClients[src.Name] = xc
	return xc
}

// playlistPayload fetches raw playlist text for file and URL sources,
// serving repeat ingests within the cache window from memory.
func (a *Aggregator) playlistPayload(ctx context.Context, src *config.SourceConfig) (string, error) {
	if src.FilePath != "" {
		data, err := os.ReadFile(src.FilePath)
		if err != nil {
			return "", fmt.Errorf("failed to read playlist file: %w", err)
		}
		return string(data), nil
	}

	if payload, ok := a.plCache.Get(src.URL); ok {
		logger.Debug("playlist cache hit for %s", utils.LogURL(a.cfg.ObfuscateUrls, src.URL))
		return payload, nil
	}

	payload, err := a.hsc.FetchBody(ctx, src.URL, src.UserAgent, src.ReqOrigin, src.ReqReferrer)
	if err != nil {
		return "", err
	}
	a.plCache.Set(src.URL, payload)
	return payload, nil
}

// rebuild replaces the deduplicated views and derived indexes.
func (a *Aggregator) rebuild(records []*types.ContentRecord) {
	byType := map[types.StreamType][]*types.DeduplicatedContent{
		types.StreamTypeLive:   dedup.Group(records, types.StreamTypeLive),
		types.StreamTypeVod:    dedup.Group(records, types.StreamTypeVod),
		types.StreamTypeSeries: dedup.Group(records, types.StreamTypeSeries),
	}

	var liveIDs []int
	owners := make(map[int]*parser.XtreamClient)
	vodOwners := make(map[int]*parser.XtreamClient)
	a.mu.RLock()
	clients := make(map[string]*parser.XtreamClient, len(a.xcClients))
	for name, xc := range a.xcClients {
		clients[name] = xc
	}
	a.mu.RUnlock()

	for _, rec := range records {
		if rec.IsLive {
			if idStr, ok := rec.Attributes["stream-id"]; ok {
				if id, err := strconv.Atoi(idStr); err == nil {
					liveIDs = append(liveIDs, id)
				}
			}
		}
		if rec.StreamType == types.StreamTypeVod {
			if idStr, ok := rec.Attributes["stream-id"]; ok {
				if id, err := strconv.Atoi(idStr); err == nil {
					if _, seen := vodOwners[id]; !seen {
						if xc, ok := clients[rec.Attributes["source"]]; ok {
							vodOwners[id] = xc
						}
					}
				}
			}
		}
		if rec.StreamType == types.StreamTypeSeries {
			if idStr, ok := rec.Attributes["series-id"]; ok {
				if id, err := strconv.Atoi(idStr); err == nil {
					// A series can appear in several accounts; first wins.
					if _, seen := owners[id]; !seen {
						if xc, ok := clients[rec.Attributes["source"]]; ok {
							owners[id] = xc
						}
					}
				}
			}
		}
	}

	a.mu.Lock()
	a.byType = byType
	a.liveIDs = liveIDs
	a.seriesOwners = owners
	a.vodOwners = vodOwners
	a.mu.Unlock()

	for t, contents := range byType {
		metrics.CatalogSize.WithLabelValues(t.String()).Set(float64(len(contents)))
	}
}

func (a *Aggregator) persist(ctx context.Context, sources []config.SourceConfig, records []*types.ContentRecord) {
	now := time.Now()
	bySource := make(map[string][]*types.ContentRecord)
	for _, rec := range records {
		bySource[rec.Attributes["source"]] = append(bySource[rec.Attributes["source"]], rec)
	}
	for i := range sources {
		src := &sources[i]
		p := &types.Playlist{
			ID:          utils.ContentID(src.Name, src.URL),
			Name:        src.Name,
			Source:      playlistSource(src),
			Records:     bySource[src.Name],
			AddedAt:     now,
			LastUpdated: now,
		}
		if err := a.db.SavePlaylist(ctx, p); err != nil {
			logger.Warn("failed to persist playlist %s: %v", src.Name, err)
		}
	}
}

func playlistSource(src *config.SourceConfig) types.PlaylistSource {
	switch {
	case src.Type == config.SourceTypeXtream:
		return types.SourceXtream
	case src.FilePath != "":
		return types.SourceFile
	default:
		return types.SourceURL
	}
}

// Catalog returns the deduplicated view for one stream type, narrowed by
// the current preferences, each entry carrying its selected variant.
func (a *Aggregator) Catalog(streamType types.StreamType) []Entry {
	a.mu.RLock()
	contents := a.byType[streamType]
	prefs := a.prefs
	a.mu.RUnlock()

	filtered := filter.Apply(contents, prefs)
	entries := make([]Entry, 0, len(filtered))
	for _, c := range filtered {
		entries = append(entries, Entry{
			DeduplicatedContent: c,
			Selected:            dedup.SelectBestVariant(c, prefs),
		})
	}
	return entries
}

// LiveChannelIDs returns the EPG-capable channel IDs of the current
// catalog, used to warm the guide cache.
func (a *Aggregator) LiveChannelIDs() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]int, len(a.liveIDs))
	copy(ids, a.liveIDs)
	return ids
}

// Preferences returns the active viewer preferences.
func (a *Aggregator) Preferences() types.Preferences {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prefs
}

// SetPreferences swaps the active preferences. Views are not rebuilt:
// filtering and variant selection happen at read time.
func (a *Aggregator) SetPreferences(prefs types.Preferences) {
	if prefs.PreferredQuality == types.QualityUnknown {
		prefs.PreferredQuality = types.QualityFHD
	}
	a.mu.Lock()
	a.prefs = prefs
	a.mu.Unlock()
}

// SeriesDetail fetches the season/episode breakdown for one series from
// the account that listed it.
func (a *Aggregator) SeriesDetail(ctx context.Context, seriesID int) (parser.SeriesDetail, error) {
	a.mu.RLock()
	xc, ok := a.seriesOwners[seriesID]
	a.mu.RUnlock()
	if !ok {
		return parser.SeriesDetail{}, fmt.Errorf("series %d not in catalog", seriesID)
	}
	return xc.GetSeriesInfo(ctx, seriesID), nil
}

// VodDetail fetches plot/cast/runtime details for one VOD entry from the
// account that listed it.
func (a *Aggregator) VodDetail(ctx context.Context, vodID int) (parser.VodDetail, error) {
	a.mu.RLock()
	xc, ok := a.vodOwners[vodID]
	a.mu.RUnlock()
	if !ok {
		return parser.VodDetail{}, fmt.Errorf("vod %d not in catalog", vodID)
	}
	return xc.GetVodInfo(ctx, vodID), nil
}

// Playlists lists the persisted playlists, without records.
func (a *Aggregator) Playlists(ctx context.Context) ([]*types.Playlist, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.ListPlaylists(ctx)
}

// DeletePlaylist removes one persisted playlist.
func (a *Aggregator) DeletePlaylist(ctx context.Context, id string) error {
	if a.db == nil {
		return fmt.Errorf("persistence disabled")
	}
	return a.db.DeletePlaylist(ctx, id)
}

// StartRefresh runs ingest passes and guide warm-ups on the configured
// interval until StopRefresh or ctx cancellation.
func (a *Aggregator) StartRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(a.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.refreshStop:
				return
			case <-ticker.C:
				a.IngestAll(ctx)
				a.epg.FetchBatch(ctx, a.LiveChannelIDs())
			}
		}
	}()
}

// StopRefresh halts the background refresh loop. Safe to call twice.
func (a *Aggregator) StopRefresh() {
	a.refreshOnce.Do(func() { close(a.refreshStop) })
}
