package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kptv-catalog/work/client"
	"kptv-catalog/work/config"
	"kptv-catalog/work/types"
)

func writePlaylistFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.m3u")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestAggregator(t *testing.T, sources ...config.SourceConfig) *Aggregator {
	t.Helper()
	cfg := &config.Config{
		LogLevel:        "ERROR",
		CacheDuration:   time.Minute,
		EpgCacheTTL:     5 * time.Minute,
		RefreshInterval: time.Hour,
		WorkerThreads:   4,
		Preferences:     types.Preferences{PreferredQuality: types.QualityFHD},
		Sources:         sources,
	}
	agg, err := New(cfg, client.NewHeaderSettingClient(), nil)
	require.NoError(t, err)
	t.Cleanup(agg.Close)
	return agg
}

func TestIngestAllFromFile(t *testing.T) {
	path := writePlaylistFile(t, `#EXTM3U
#EXTINF:-1 group-title="News",FR | TF1 SD
http://host/live/1.ts
#EXTINF:-1 group-title="News",FR | TF1 FHD
http://host/live/2.ts
#EXTINF:-1 group-title="Series",Vikings S03 E01
http://host/series/3.ts
`)
	agg := newTestAggregator(t, config.SourceConfig{
		Name: "local", Type: config.SourceTypeM3U, FilePath: path, Order: 1,
	})

	results := agg.IngestAll(context.Background())
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, 3, results[0].Records)

	live := agg.Catalog(types.StreamTypeLive)
	require.Len(t, live, 1)
	assert.Equal(t, "TF1", live[0].Name)
	assert.Len(t, live[0].Variants, 2)
	assert.Equal(t, "http://host/live/2.ts", live[0].Selected.URL)

	series := agg.Catalog(types.StreamTypeSeries)
	require.Len(t, series, 1)
	assert.Equal(t, "Vikings", series[0].Name)
	assert.Equal(t, 3, series[0].Metadata.Season)
}

func TestIngestAllMissingFileIsolated(t *testing.T) {
	good := writePlaylistFile(t, "#EXTM3U\n#EXTINF:-1,TF1\nhttp://host/1.ts\n")
	agg := newTestAggregator(t,
		config.SourceConfig{Name: "bad", Type: config.SourceTypeM3U, FilePath: "/nonexistent/list.m3u", Order: 1},
		config.SourceConfig{Name: "good", Type: config.SourceTypeM3U, FilePath: good, Order: 2},
	)

	results := agg.IngestAll(context.Background())
	require.Len(t, results, 2)

	byName := map[string]IngestResult{}
	for _, r := range results {
		byName[r.Source] = r
	}
	assert.NotEmpty(t, byName["bad"].Error)
	assert.Empty(t, byName["good"].Error)
	assert.Equal(t, 1, byName["good"].Records)

	assert.Len(t, agg.Catalog(types.StreamTypeLive), 1)
}

func TestSourceFiltersAppliedAtIngest(t *testing.T) {
	path := writePlaylistFile(t, `#EXTM3U
#EXTINF:-1,FR | TF1
http://host/1.ts
#EXTINF:-1,UK | BBC One
http://host/2.ts
`)
	agg := newTestAggregator(t, config.SourceConfig{
		Name: "local", Type: config.SourceTypeM3U, FilePath: path, Order: 1,
		LiveIncludeRegex: `(?i)^FR`,
	})

	agg.IngestAll(context.Background())
	live := agg.Catalog(types.StreamTypeLive)
	require.Len(t, live, 1)
	assert.Equal(t, "TF1", live[0].Name)
}

func TestPreferencesFilterView(t *testing.T) {
	path := writePlaylistFile(t, `#EXTM3U
#EXTINF:-1,FR | TF1
http://host/1.ts
#EXTINF:-1,UK | BBC One
http://host/2.ts
`)
	agg := newTestAggregator(t, config.SourceConfig{
		Name: "local", Type: config.SourceTypeM3U, FilePath: path, Order: 1,
	})
	agg.IngestAll(context.Background())

	assert.Len(t, agg.Catalog(types.StreamTypeLive), 2)

	agg.SetPreferences(types.Preferences{Countries: []string{"FR"}})
	live := agg.Catalog(types.StreamTypeLive)
	require.Len(t, live, 1)
	assert.Equal(t, "TF1", live[0].Name)
}

func TestSetPreferencesDefaultsQuality(t *testing.T) {
	agg := newTestAggregator(t)
	agg.SetPreferences(types.Preferences{PreferredLanguage: "VF"})
	assert.Equal(t, types.QualityFHD, agg.Preferences().PreferredQuality)
}

func TestSeriesDetailUnknownSeries(t *testing.T) {
	agg := newTestAggregator(t)
	_, err := agg.SeriesDetail(context.Background(), 12345)
	assert.Error(t, err)
}
