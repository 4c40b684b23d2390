// Package dedup groups raw playlist records that describe the same logical
// content and picks the best playable variant for a viewer's preferences.
//
// Grouping keys are built from extracted metadata, never from raw names,
// so "FR| TF1 HD" and "TF1 FHD [FR]" land in the same group. Each stream
// type has its own key shape: channels key on name+country, series on
// name+season, movies on name+year.
package dedup

import (
	"fmt"
	"sort"
	"strings"

	"kptv-catalog/work/extract"
	"kptv-catalog/work/types"
)

// ContentKey derives the grouping key for one record given its extracted
// metadata. Missing discriminators use stable placeholders ("unknown", 0)
// so records with absent metadata still group deterministically.
//
// Series keys carry the season but not the episode, so every episode of a
// season collapses into one group and surfaces as variants of it. Episode
// granularity comes from the on-demand series detail lookup instead.
func ContentKey(md types.ContentMetadata, streamType types.StreamType) string {
	name := strings.ToLower(md.CleanName)
	switch streamType {
	case types.StreamTypeSeries:
		return fmt.Sprintf("%s_s%d", name, md.Season)
	case types.StreamTypeVod:
		return fmt.Sprintf("%s_%d", name, md.Year)
	default:
		country := md.Country
		if country == "" {
			country = "unknown"
		}
		return name + "_" + strings.ToLower(country)
	}
}

// Group deduplicates the records of one stream type. Records of other
// types are ignored, so callers can pass a mixed ingest result once per
// type. Groups keep first-encounter order; within a group, the first
// record donates the display fields (name, logo, group) and every record
// contributes a variant.
func Group(records []*types.ContentRecord, streamType types.StreamType) []*types.DeduplicatedContent {
	var contents []*types.DeduplicatedContent
	index := make(map[string]int)

	for _, rec := range records {
		if !matchesType(rec, streamType) {
			continue
		}

		md := extract.Extract(rec.Name)
		key := ContentKey(md, streamType)

		variant := types.ContentVariant{
			ID:       rec.ID,
			URL:      rec.URL,
			Quality:  md.Quality,
			Language: md.Language,
		}

		if i, ok := index[key]; ok {
			contents[i].Variants = append(contents[i].Variants, variant)
			continue
		}

		index[key] = len(contents)
		contents = append(contents, &types.DeduplicatedContent{
			ID:       key,
			Name:     md.CleanName,
			Logo:     rec.Logo,
			Group:    rec.Group,
			Type:     streamType,
			Metadata: md,
			Variants: []types.ContentVariant{variant},
		})
	}
	return contents
}

func matchesType(rec *types.ContentRecord, streamType types.StreamType) bool {
	if streamType == types.StreamTypeLive {
		return rec.IsLive || rec.StreamType == types.StreamTypeLive
	}
	return rec.StreamType == streamType
}

// SelectBestVariant picks the variant to play for content under prefs.
// Single-variant groups short-circuit. Channels pick by quality proximity:
// the closest tier at or above the preferred one, falling back to the best
// below it. Movies and series prefer an exact language match first, then
// fall back to quality ranking.
func SelectBestVariant(content *types.DeduplicatedContent, prefs types.Preferences) types.ContentVariant {
	variants := content.Variants
	if len(variants) == 0 {
		return types.ContentVariant{}
	}
	if len(variants) == 1 {
		return variants[0]
	}

	if content.Type == types.StreamTypeLive {
		return bestByQuality(variants, prefs.PreferredQuality)
	}

	if prefs.PreferredLanguage != "" {
		var matched []types.ContentVariant
		for _, v := range variants {
			if strings.EqualFold(v.Language, prefs.PreferredLanguage) {
				matched = append(matched, v)
			}
		}
		if len(matched) > 0 {
			return bestByQuality(matched, prefs.PreferredQuality)
		}
	}
	// Language miss: rank by the viewer's quality preference instead of a
	// fixed FHD target, so the fallback honors whatever tier they asked
	// for. FHD only kicks in when no preference is set.
	target := prefs.PreferredQuality
	if target == types.QualityUnknown {
		target = types.QualityFHD
	}
	return bestByQuality(variants, target)
}

// bestByQuality orders candidates by distance to the preferred tier,
// favoring at-or-above matches over lower ones, with unknown quality
// sorting last. Ties keep input order.
func bestByQuality(variants []types.ContentVariant, preferred types.QualityTier) types.ContentVariant {
	ranked := make([]types.ContentVariant, len(variants))
	copy(ranked, variants)
	sort.SliceStable(ranked, func(i, j int) bool {
		return qualityScore(ranked[i].Quality, preferred) < qualityScore(ranked[j].Quality, preferred)
	})
	return ranked[0]
}

func qualityScore(q, preferred types.QualityTier) int {
	if q == types.QualityUnknown {
		return 1000
	}
	if preferred == types.QualityUnknown {
		// No stated preference: highest tier wins.
		return int(types.Quality4K) - int(q)
	}
	d := int(q) - int(preferred)
	if d >= 0 {
		// At or above preference: closer tiers first.
		return d
	}
	// Below preference: only used when nothing at or above exists.
	return 100 - d
}
