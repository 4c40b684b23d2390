package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kptv-catalog/work/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePlaylist() *types.Playlist {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.Playlist{
		ID:          "pl1",
		Name:        "Primary",
		Source:      types.SourceXtream,
		AddedAt:     now,
		LastUpdated: now,
		Records: []*types.ContentRecord{
			{
				ID:         "r1",
				Name:       "FR | TF1",
				URL:        "http://host/live/1.ts",
				Logo:       "tf1.png",
				Group:      "News",
				IsLive:     true,
				StreamType: types.StreamTypeLive,
				Attributes: map[string]string{"tvg-id": "tf1.fr"},
			},
			{
				ID:         "r2",
				Name:       "Inception (2010)",
				URL:        "http://host/movie/2.mp4",
				StreamType: types.StreamTypeVod,
			},
		},
	}
}

func TestSaveAndLoadPlaylist(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SavePlaylist(ctx, samplePlaylist()))

	got, err := db.LoadPlaylist(ctx, "pl1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Primary", got.Name)
	assert.Equal(t, types.SourceXtream, got.Source)
	require.Len(t, got.Records, 2)

	var live *types.ContentRecord
	for _, r := range got.Records {
		if r.ID == "r1" {
			live = r
		}
	}
	require.NotNil(t, live)
	assert.Equal(t, "FR | TF1", live.Name)
	assert.True(t, live.IsLive)
	assert.Equal(t, types.StreamTypeLive, live.StreamType)
	assert.Equal(t, "tf1.fr", live.Attributes["tvg-id"])
}

func TestSavePlaylistReplacesRecords(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := samplePlaylist()
	require.NoError(t, db.SavePlaylist(ctx, p))

	p.Records = p.Records[:1]
	require.NoError(t, db.SavePlaylist(ctx, p))

	got, err := db.LoadPlaylist(ctx, "pl1")
	require.NoError(t, err)
	assert.Len(t, got.Records, 1)
}

func TestLoadPlaylistAbsent(t *testing.T) {
	db := openTestDB(t)
	got, err := db.LoadPlaylist(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListPlaylists(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SavePlaylist(ctx, samplePlaylist()))
	second := samplePlaylist()
	second.ID = "pl2"
	second.Name = "Backup"
	require.NoError(t, db.SavePlaylist(ctx, second))

	playlists, err := db.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	// Listing skips records.
	assert.Empty(t, playlists[0].Records)
}

func TestDeletePlaylist(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SavePlaylist(ctx, samplePlaylist()))
	require.NoError(t, db.DeletePlaylist(ctx, "pl1"))

	got, err := db.LoadPlaylist(ctx, "pl1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, db.DeletePlaylist(ctx, "pl1"))
}
