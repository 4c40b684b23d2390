// Package cache holds raw playlist payloads between refresh cycles so
// repeated ingests of the same source hit the provider at most once per
// cache window.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"kptv-catalog/work/logger"
)

// PlaylistCache is a TTL cache of raw playlist text keyed by source URL.
type PlaylistCache struct {
	store *ristretto.Cache[string, string]
	ttl   time.Duration
}

// NewPlaylistCache sizes the cache for a handful of providers whose
// playlists can each run to tens of megabytes.
func NewPlaylistCache(ttl time.Duration) (*PlaylistCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1e4,
		MaxCost:     256 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &PlaylistCache{store: store, ttl: ttl}, nil
}

// Get returns the cached payload for key, if still live.
func (pc *PlaylistCache) Get(key string) (string, bool) {
	return pc.store.Get(key)
}

// Set stores payload under key for the cache TTL and waits for the write
// to become visible, so a refresh immediately followed by a read sees the
// fresh payload.
func (pc *PlaylistCache) Set(key, payload string) {
	if ok := pc.store.SetWithTTL(key, payload, int64(len(payload)), pc.ttl); !ok {
		logger.Debug("playlist cache rejected entry for %s (%d bytes)", key, len(payload))
		return
	}
	pc.store.Wait()
}

// Invalidate drops one source's payload, forcing the next ingest to fetch.
func (pc *PlaylistCache) Invalidate(key string) {
	pc.store.Del(key)
}

// Clear empties the cache.
func (pc *PlaylistCache) Clear() {
	pc.store.Clear()
}

// Close releases the cache's background resources.
func (pc *PlaylistCache) Close() {
	pc.store.Close()
}
