// Package epg caches short-form programme guide data per live channel.
//
// Guide data is only useful for a few minutes, so entries carry a short
// TTL and the whole cache is rebuilt in batches rather than per request:
// one viewer scrolling a channel list would otherwise fan out into
// hundreds of provider calls.
package epg

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"kptv-catalog/work/logger"
	"kptv-catalog/work/metrics"
	"kptv-catalog/work/types"
)

// DefaultTTL is how long a channel's guide entries stay fresh.
const DefaultTTL = 5 * time.Minute

const (
	microBatchSize = 5
	chunkSize      = 50
	chunkPause     = 250 * time.Millisecond
)

// Source fetches the upcoming programmes of one channel. The Xtream
// client implements this.
type Source interface {
	ShortEPG(ctx context.Context, channelID int) ([]types.EpgProgram, error)
}

type entry struct {
	programs []types.EpgProgram
	fetched  time.Time
}

// Manager is the guide cache. All maps are lock-free; the refresh guard
// keeps overlapping batch runs from stampeding the provider.
type Manager struct {
	source  Source
	ttl     time.Duration
	pool    *ants.Pool
	entries *xsync.MapOf[int, *entry]

	refreshing atomic.Bool

	// now is wall clock by default; tests inject a fake.
	now func() time.Time
}

// NewManager builds a guide cache over source. workers bounds the
// concurrency of batch fetches; zero picks a small default.
func NewManager(source Source, ttl time.Duration, workers int) (*Manager, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if workers <= 0 {
		workers = microBatchSize
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Manager{
		source:  source,
		ttl:     ttl,
		pool:    pool,
		entries: xsync.NewMapOf[int, *entry](),
		now:     time.Now,
	}, nil
}

// Close releases the worker pool.
func (m *Manager) Close() {
	m.pool.Release()
}

// getOrFetch returns the cached programmes for channelID, fetching on a
// miss or expiry. Fetch failures cache an empty list so a dead channel is
// not re-probed on every request within the TTL window.
func (m *Manager) getOrFetch(ctx context.Context, channelID int) []types.EpgProgram {
	if e, ok := m.entries.Load(channelID); ok && m.now().Sub(e.fetched) < m.ttl {
		metrics.EpgFetches.WithLabelValues("hit").Inc()
		return e.programs
	}

	programs, err := m.source.ShortEPG(ctx, channelID)
	if err != nil {
		logger.Debug("epg fetch for channel %d failed: %v", channelID, err)
		metrics.EpgFetches.WithLabelValues("error").Inc()
		programs = nil
	} else {
		metrics.EpgFetches.WithLabelValues("miss").Inc()
	}
	for i := range programs {
		programs[i].Title = DecodeText(programs[i].Title)
		programs[i].Description = DecodeText(programs[i].Description)
	}
	m.entries.Store(channelID, &entry{programs: programs, fetched: m.now()})
	return programs
}

// CurrentProgram returns the programme airing now on channelID, with
// IsLive set and Progress computed against the clock. The second return
// is false when no programme covers the current instant.
func (m *Manager) CurrentProgram(ctx context.Context, channelID int) (types.EpgProgram, bool) {
	now := m.now()
	for _, p := range m.getOrFetch(ctx, channelID) {
		if now.Before(p.Start) || !now.Before(p.End) {
			continue
		}
		p.IsLive = true
		if d := p.End.Sub(p.Start); d > 0 {
			p.Progress = int(now.Sub(p.Start) * 100 / d)
		}
		return p, true
	}
	return types.EpgProgram{}, false
}

// NextProgram returns the first programme starting strictly after now.
func (m *Manager) NextProgram(ctx context.Context, channelID int) (types.EpgProgram, bool) {
	now := m.now()
	var next types.EpgProgram
	found := false
	for _, p := range m.getOrFetch(ctx, channelID) {
		if !p.Start.After(now) {
			continue
		}
		if !found || p.Start.Before(next.Start) {
			next = p
			found = true
		}
	}
	return next, found
}

// FetchBatch warms the cache for channelIDs. Channels still fresh are
// skipped. Work runs in micro-batches over the pool, in chunks with a
// pause between them so a full catalog warm-up does not look like a
// flood to the provider. Results accumulate off to the side and commit
// to the cache only after the whole batch completes, so readers never
// see a half-refreshed run. A second batch while one is running is a
// no-op.
func (m *Manager) FetchBatch(ctx context.Context, channelIDs []int) {
	if !m.refreshing.CompareAndSwap(false, true) {
		logger.Debug("epg batch already in flight, skipping")
		return
	}
	defer m.refreshing.Store(false)

	now := m.now()
	var stale []int
	for _, id := range channelIDs {
		if e, ok := m.entries.Load(id); ok && now.Sub(e.fetched) < m.ttl {
			continue
		}
		stale = append(stale, id)
	}
	if len(stale) == 0 {
		return
	}
	logger.Info("epg batch: fetching %d of %d channels", len(stale), len(channelIDs))

	staged := xsync.NewMapOf[int, *entry]()

	for chunkStart := 0; chunkStart < len(stale); chunkStart += chunkSize {
		if ctx.Err() != nil {
			break
		}
		chunkEnd := min(chunkStart+chunkSize, len(stale))
		chunk := stale[chunkStart:chunkEnd]

		for i := 0; i < len(chunk); i += microBatchSize {
			batch := chunk[i:min(i+microBatchSize, len(chunk))]
			done := make(chan struct{}, len(batch))
			for _, id := range batch {
				id := id
				err := m.pool.Submit(func() {
					defer func() { done <- struct{}{} }()
					programs, err := m.source.ShortEPG(ctx, id)
					if err != nil {
						logger.Debug("epg fetch for channel %d failed: %v", id, err)
						programs = nil
					}
					for j := range programs {
						programs[j].Title = DecodeText(programs[j].Title)
						programs[j].Description = DecodeText(programs[j].Description)
					}
					staged.Store(id, &entry{programs: programs, fetched: m.now()})
				})
				if err != nil {
					done <- struct{}{}
				}
			}
			for range batch {
				<-done
			}
		}

		if chunkEnd < len(stale) {
			time.Sleep(chunkPause)
		}
	}

	staged.Range(func(id int, e *entry) bool {
		m.entries.Store(id, e)
		return true
	})
	metrics.EpgCacheSize.Set(float64(m.entries.Size()))
}

// Refresh empties the cache and re-fetches every given channel.
func (m *Manager) Refresh(ctx context.Context, channelIDs []int) {
	m.entries.Clear()
	m.FetchBatch(ctx, channelIDs)
}

// Size reports how many channels currently have cached guide data.
func (m *Manager) Size() int {
	return m.entries.Size()
}

// StartAutoRefresh re-warms the cache every interval until ctx is done.
// channels supplies the current live channel set on each tick, so newly
// ingested channels join the refresh without a restart.
func (m *Manager) StartAutoRefresh(ctx context.Context, interval time.Duration, channels func() []int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.FetchBatch(ctx, channels())
			}
		}
	}()
}

// DecodeText undoes the base64 encoding some providers apply to guide
// titles and descriptions. Plain text is passed through: a candidate is
// only decoded when it looks like base64 (alphabet-only, long enough)
// and the decoded bytes are printable text.
func DecodeText(s string) string {
	if len(s) <= 4 || !base64Shaped(s) {
		return s
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	for _, b := range decoded {
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			return s
		}
	}
	return string(decoded)
}

func base64Shaped(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/', r == '=':
		default:
			return false
		}
	}
	return true
}
