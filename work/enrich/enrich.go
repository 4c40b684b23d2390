// Package enrich fills in movie metadata (plot, cast, genre, ratings,
// awards) from external lookup services. Enrichment only ever fills
// fields the provider left blank; provider data wins when present.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maypok86/otter/v2"

	"kptv-catalog/work/config"
	"kptv-catalog/work/logger"
	"kptv-catalog/work/metrics"
	"kptv-catalog/work/types"
)

// MovieDetails is the merged result of the metadata and awards lookups
// for one title.
type MovieDetails struct {
	Plot    string  `json:"plot,omitempty"`
	Cast    string  `json:"cast,omitempty"`
	Genre   string  `json:"genre,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	Runtime int     `json:"runtime,omitempty"`
	Awards  string  `json:"awards,omitempty"`
}

type metadataResponse struct {
	Results []struct {
		Overview    string  `json:"overview"`
		VoteAverage float64 `json:"vote_average"`
		GenreNames  string  `json:"genre_names"`
		Cast        string  `json:"cast"`
		Runtime     int     `json:"runtime"`
	} `json:"results"`
}

type awardsResponse struct {
	Awards   string `json:"Awards"`
	Response string `json:"Response"`
}

// Enricher queries the configured metadata services and caches lookups so
// a catalog refresh does not re-query every movie. Lookup failures return
// empty details; enrichment is strictly best-effort.
type Enricher struct {
	cfg    config.MetadataConfig
	client *http.Client
	cache  *otter.Cache[string, MovieDetails]
}

// New returns an enricher, or nil when enrichment is disabled. Callers
// treat a nil enricher as a no-op.
func New(cfg config.MetadataConfig) *Enricher {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return nil
	}
	cache := otter.Must(&otter.Options[string, MovieDetails]{
		MaximumSize:      10_000,
		ExpiryCalculator: otter.ExpiryWriting[string, MovieDetails](24 * time.Hour),
	})
	return &Enricher{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		cache:  cache,
	}
}

func cacheKey(title string, year int) string {
	return strings.ToLower(title) + "_" + strconv.Itoa(year)
}

// Lookup fetches details for a title, consulting the cache first.
// Negative results are cached too, so unknown titles are not re-queried
// every refresh.
func (e *Enricher) Lookup(ctx context.Context, title string, year int) MovieDetails {
	key := cacheKey(title, year)
	if d, ok := e.cache.GetIfPresent(key); ok {
		metrics.EnrichLookups.WithLabelValues("hit").Inc()
		return d
	}
	metrics.EnrichLookups.WithLabelValues("miss").Inc()

	details := e.fetchMetadata(ctx, title, year)
	if e.cfg.AwardsBaseURL != "" {
		details.Awards = e.fetchAwards(ctx, title, year)
	}
	e.cache.Set(key, details)
	return details
}

func (e *Enricher) fetchMetadata(ctx context.Context, title string, year int) MovieDetails {
	q := url.Values{}
	q.Set("api_key", e.cfg.APIKey)
	q.Set("query", title)
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var resp metadataResponse
	if err := e.getJSON(ctx, e.cfg.BaseURL+"/search/movie?"+q.Encode(), &resp); err != nil {
		logger.Debug("metadata lookup for %q failed: %v", title, err)
		metrics.EnrichLookups.WithLabelValues("error").Inc()
		return MovieDetails{}
	}
	if len(resp.Results) == 0 {
		return MovieDetails{}
	}

	r := resp.Results[0]
	return MovieDetails{
		Plot:    r.Overview,
		Cast:    r.Cast,
		Genre:   r.GenreNames,
		Rating:  r.VoteAverage,
		Runtime: r.Runtime,
	}
}

func (e *Enricher) fetchAwards(ctx context.Context, title string, year int) string {
	q := url.Values{}
	q.Set("apikey", e.cfg.AwardsAPIKey)
	q.Set("t", title)
	if year > 0 {
		q.Set("y", strconv.Itoa(year))
	}

	var resp awardsResponse
	if err := e.getJSON(ctx, e.cfg.AwardsBaseURL+"/?"+q.Encode(), &resp); err != nil {
		logger.Debug("awards lookup for %q failed: %v", title, err)
		return ""
	}
	if !strings.EqualFold(resp.Response, "True") || resp.Awards == "N/A" {
		return ""
	}
	return resp.Awards
}

func (e *Enricher) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lookup returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// Apply enriches rec in place, filling only fields the provider left
// blank. Safe to call on a nil enricher.
func (e *Enricher) Apply(ctx context.Context, rec *types.ContentRecord, md types.ContentMetadata) {
	if e == nil || rec.StreamType != types.StreamTypeVod {
		return
	}
	details := e.Lookup(ctx, md.CleanName, md.Year)

	if rec.Plot == "" {
		rec.Plot = details.Plot
	}
	if rec.Cast == "" {
		rec.Cast = details.Cast
	}
	if rec.Genre == "" {
		rec.Genre = details.Genre
	}
	if rec.Rating == 0 {
		rec.Rating = details.Rating
	}
	if rec.Runtime == 0 {
		rec.Runtime = details.Runtime
	}
	if rec.Awards == "" {
		rec.Awards = details.Awards
	}
}
