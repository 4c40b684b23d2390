// Package database persists ingested playlists so the catalog survives a
// restart without re-fetching every provider.
package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"kptv-catalog/work/logger"
	"kptv-catalog/work/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps the SQLite handle with playlist-shaped operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// WAL mode keeps refresh writes from blocking catalog reads.
func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		script, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := db.conn.Exec(string(script)); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
	}
	return nil
}

// Close closes the underlying handle.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SavePlaylist upserts one playlist and replaces its records in a single
// transaction.
func (db *DB) SavePlaylist(ctx context.Context, p *types.Playlist) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlists (id, name, source, added_at, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, source = excluded.source, last_updated = excluded.last_updated`,
		p.ID, p.Name, p.Source, p.AddedAt, p.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save playlist %s: %w", p.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_records WHERE playlist_id = ?`, p.ID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_records (id, playlist_id, name, url, logo, grp, is_live, stream_type, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range p.Records {
		attrs, err := json.Marshal(rec.Attributes)
		if err != nil {
			attrs = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, p.ID, rec.Name, rec.URL, rec.Logo, rec.Group,
			boolToInt(rec.IsLive), rec.StreamType.String(), string(attrs)); err != nil {
			return fmt.Errorf("failed to save record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// ListPlaylists returns every stored playlist without its records.
func (db *DB) ListPlaylists(ctx context.Context) ([]*types.Playlist, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, source, added_at, last_updated FROM playlists ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []*types.Playlist
	for rows.Next() {
		p := &types.Playlist{}
		var added, updated time.Time
		if err := rows.Scan(&p.ID, &p.Name, &p.Source, &added, &updated); err != nil {
			return nil, err
		}
		p.AddedAt = added
		p.LastUpdated = updated
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// LoadPlaylist returns one playlist with its records, or nil when absent.
func (db *DB) LoadPlaylist(ctx context.Context, id string) (*types.Playlist, error) {
	p := &types.Playlist{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, source, added_at, last_updated FROM playlists WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Source, &p.AddedAt, &p.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, url, logo, grp, is_live, stream_type, attributes
		FROM playlist_records WHERE playlist_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec := &types.ContentRecord{}
		var isLive int
		var streamType, attrs string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.URL, &rec.Logo, &rec.Group, &isLive, &streamType, &attrs); err != nil {
			return nil, err
		}
		rec.IsLive = isLive != 0
		rec.StreamType = types.ParseStreamType(streamType)
		if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
			rec.Attributes = map[string]string{}
		}
		p.Records = append(p.Records, rec)
	}
	return p, rows.Err()
}

// DeletePlaylist removes one playlist and, via cascade, its records.
func (db *DB) DeletePlaylist(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("playlist %s not found", id)
	}
	logger.Info("deleted playlist %s", id)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
