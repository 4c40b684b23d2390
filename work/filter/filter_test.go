package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kptv-catalog/work/config"
	"kptv-catalog/work/types"
)

func TestFilterRecordsIncludeExclude(t *testing.T) {
	src := &config.SourceConfig{
		Name:             "s1",
		LiveIncludeRegex: `(?i)^FR`,
		LiveExcludeRegex: `(?i)XXX`,
	}
	records := []*types.ContentRecord{
		{Name: "FR | TF1", IsLive: true},
		{Name: "UK | BBC", IsLive: true},
		{Name: "FR | XXX Adult", IsLive: true},
	}

	m := NewManager()
	kept := m.FilterRecords(src, records)
	require.Len(t, kept, 1)
	assert.Equal(t, "FR | TF1", kept[0].Name)
}

func TestFilterRecordsPerClass(t *testing.T) {
	src := &config.SourceConfig{
		Name:            "s1",
		VodExcludeRegex: `CAM`,
	}
	records := []*types.ContentRecord{
		{Name: "Movie CAM", StreamType: types.StreamTypeVod},
		{Name: "Movie", StreamType: types.StreamTypeVod},
		{Name: "Channel CAM", IsLive: true},
	}

	kept := NewManager().FilterRecords(src, records)
	require.Len(t, kept, 2)
	assert.Equal(t, "Movie", kept[0].Name)
	assert.Equal(t, "Channel CAM", kept[1].Name)
}

func TestFilterRecordsInvalidPatternIgnored(t *testing.T) {
	src := &config.SourceConfig{Name: "s1", LiveIncludeRegex: `([`}
	records := []*types.ContentRecord{{Name: "TF1", IsLive: true}}
	assert.Len(t, NewManager().FilterRecords(src, records), 1)
}

func TestFilterRecordsNoFilters(t *testing.T) {
	src := &config.SourceConfig{Name: "s1"}
	records := []*types.ContentRecord{
		{Name: "A", IsLive: true},
		{Name: "B", StreamType: types.StreamTypeVod},
	}
	assert.Len(t, NewManager().FilterRecords(src, records), 2)
}

func content(name, country, group string, variants ...types.ContentVariant) *types.DeduplicatedContent {
	return &types.DeduplicatedContent{
		Name:     name,
		Group:    group,
		Metadata: types.ContentMetadata{CleanName: name, Country: country},
		Variants: variants,
	}
}

func TestApplyCountryFilter(t *testing.T) {
	contents := []*types.DeduplicatedContent{
		content("TF1", "FR", "News"),
		content("BBC One", "UK", "News"),
		content("Local", "", "News"),
	}
	kept := Apply(contents, types.Preferences{Countries: []string{"fr"}})
	require.Len(t, kept, 1)
	assert.Equal(t, "TF1", kept[0].Name)
}

func TestApplyGroupFilter(t *testing.T) {
	contents := []*types.DeduplicatedContent{
		content("TF1", "FR", "News"),
		content("Canal+", "FR", "Movies"),
	}
	kept := Apply(contents, types.Preferences{Groups: []string{"Movies"}})
	require.Len(t, kept, 1)
	assert.Equal(t, "Canal+", kept[0].Name)
}

func TestApplyLanguageFilter(t *testing.T) {
	contents := []*types.DeduplicatedContent{
		content("Film A", "", "", types.ContentVariant{Language: "VFF"}),
		content("Film B", "", "", types.ContentVariant{Language: "VO"}),
		content("Film C", "", "", types.ContentVariant{}),
	}
	kept := Apply(contents, types.Preferences{PreferredLanguage: "VFF"})
	require.Len(t, kept, 2)
	assert.Equal(t, "Film A", kept[0].Name)
	// Untagged content survives a language filter.
	assert.Equal(t, "Film C", kept[1].Name)
}

func TestApplyNoPreferences(t *testing.T) {
	contents := []*types.DeduplicatedContent{
		content("A", "FR", "News"),
		content("B", "UK", "Sports"),
	}
	assert.Len(t, Apply(contents, types.Preferences{}), 2)
}
