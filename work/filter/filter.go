// Package filter narrows content two ways: per-source regex filters
// applied at ingestion time, and viewer preference filters applied to the
// deduplicated catalog.
package filter

import (
	"strings"
	"sync"

	regexp "github.com/grafana/regexp"

	"kptv-catalog/work/config"
	"kptv-catalog/work/logger"
	"kptv-catalog/work/types"
)

// compiledFilters holds the per-class include/exclude patterns of one
// source. A nil pattern means "no constraint".
type compiledFilters struct {
	liveInclude   *regexp.Regexp
	liveExclude   *regexp.Regexp
	seriesInclude *regexp.Regexp
	seriesExclude *regexp.Regexp
	vodInclude    *regexp.Regexp
	vodExclude    *regexp.Regexp
}

// Manager compiles and caches the regex filters of every configured
// source. Compilation failures are logged and the broken pattern is
// skipped, never fatal.
type Manager struct {
	mu    sync.RWMutex
	bySrc map[string]*compiledFilters
}

func NewManager() *Manager {
	return &Manager{bySrc: make(map[string]*compiledFilters)}
}

func compile(pattern, sourceName, which string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		logger.Warn("invalid %s filter for source %s, ignoring: %v", which, sourceName, err)
		return nil
	}
	return re
}

func (m *Manager) filtersFor(src *config.SourceConfig) *compiledFilters {
	m.mu.RLock()
	f, ok := m.bySrc[src.Name]
	m.mu.RUnlock()
	if ok {
		return f
	}

	f = &compiledFilters{
		liveInclude:   compile(src.LiveIncludeRegex, src.Name, "live include"),
		liveExclude:   compile(src.LiveExcludeRegex, src.Name, "live exclude"),
		seriesInclude: compile(src.SeriesIncludeRegex, src.Name, "series include"),
		seriesExclude: compile(src.SeriesExcludeRegex, src.Name, "series exclude"),
		vodInclude:    compile(src.VodIncludeRegex, src.Name, "vod include"),
		vodExclude:    compile(src.VodExcludeRegex, src.Name, "vod exclude"),
	}

	m.mu.Lock()
	m.bySrc[src.Name] = f
	m.mu.Unlock()
	return f
}

// Invalidate drops the compiled filters of every source, forcing a
// recompile on next use. Called after config reloads.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.bySrc = make(map[string]*compiledFilters)
	m.mu.Unlock()
}

// FilterRecords applies the source's include/exclude patterns to freshly
// ingested records. Include patterns, when present, must match; exclude
// patterns, when present, must not.
func (m *Manager) FilterRecords(src *config.SourceConfig, records []*types.ContentRecord) []*types.ContentRecord {
	f := m.filtersFor(src)
	kept := records[:0]
	for _, rec := range records {
		var inc, exc *regexp.Regexp
		switch {
		case rec.IsLive || rec.StreamType == types.StreamTypeLive:
			inc, exc = f.liveInclude, f.liveExclude
		case rec.StreamType == types.StreamTypeSeries:
			inc, exc = f.seriesInclude, f.seriesExclude
		default:
			inc, exc = f.vodInclude, f.vodExclude
		}
		if inc != nil && !inc.MatchString(rec.Name) {
			continue
		}
		if exc != nil && exc.MatchString(rec.Name) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// Apply narrows a deduplicated catalog view by viewer preferences:
// country list, group list, and preferred language. Empty preference
// fields mean "no constraint". Content with no language-tagged variants
// survives a language filter; only content whose variants all carry a
// different language is dropped.
func Apply(contents []*types.DeduplicatedContent, prefs types.Preferences) []*types.DeduplicatedContent {
	kept := make([]*types.DeduplicatedContent, 0, len(contents))
	for _, c := range contents {
		if len(prefs.Countries) > 0 && !containsFold(prefs.Countries, c.Metadata.Country) {
			continue
		}
		if len(prefs.Groups) > 0 && !containsFold(prefs.Groups, c.Group) {
			continue
		}
		if prefs.PreferredLanguage != "" && !hasLanguage(c, prefs.PreferredLanguage) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func hasLanguage(c *types.DeduplicatedContent, lang string) bool {
	tagged := false
	for _, v := range c.Variants {
		if v.Language == "" {
			continue
		}
		tagged = true
		if strings.EqualFold(v.Language, lang) {
			return true
		}
	}
	// Untagged content is kept: absence of a language marker is not
	// evidence of a mismatch.
	return !tagged
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
