// Package registry issues persistent ids for spawned entities and keeps them
// in SQLite, so regenerated chunks reuse the ids clients already know.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/OCharnyshevich/abyss/internal/server/entities"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// SQLite is an entity registry backed by a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens the registry at path. ":memory:" is accepted.
func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty registry path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registry pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registry schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			orientation INTEGER NOT NULL,
			chunk_x INTEGER NOT NULL,
			chunk_y INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(type, x, y)
		);`,
		`CREATE INDEX IF NOT EXISTS entities_chunk ON entities(chunk_x, chunk_y);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Register stores spawns for a chunk and returns their ids in spawn order.
// A spawn already registered at the same type and position keeps its id.
func (s *SQLite) Register(coord world.ChunkCoord, spawns []entities.SpawnInfo) ([]uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	ids := make([]uint64, 0, len(spawns))
	for _, sp := range spawns {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entities(type, x, y, orientation, chunk_x, chunk_y, created_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(type, x, y) DO NOTHING`,
			sp.Type, sp.Position.X, sp.Position.Y, int(sp.Orientation), coord.X, coord.Y, now)
		if err != nil {
			return nil, fmt.Errorf("insert %s at %v: %w", sp.Type, sp.Position, err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM entities WHERE type=? AND x=? AND y=?`,
			sp.Type, sp.Position.X, sp.Position.Y).Scan(&id); err != nil {
			return nil, fmt.Errorf("lookup %s at %v: %w", sp.Type, sp.Position, err)
		}
		ids = append(ids, uint64(id))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// InChunk lists the entities registered for a chunk, ordered by id. The
// returned slices are parallel.
func (s *SQLite) InChunk(coord world.ChunkCoord) ([]uint64, []entities.SpawnInfo, error) {
	rows, err := s.db.Query(
		`SELECT id, type, x, y, orientation FROM entities WHERE chunk_x=? AND chunk_y=? ORDER BY id`,
		coord.X, coord.Y)
	if err != nil {
		return nil, nil, fmt.Errorf("query chunk %s: %w", coord, err)
	}
	defer rows.Close()

	var (
		ids    []uint64
		spawns []entities.SpawnInfo
	)
	for rows.Next() {
		var sp entities.SpawnInfo
		var id int64
		var o int
		if err := rows.Scan(&id, &sp.Type, &sp.Position.X, &sp.Position.Y, &o); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		sp.Orientation = entities.Orientation(o)
		ids = append(ids, uint64(id))
		spawns = append(spawns, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate chunk %s: %w", coord, err)
	}
	return ids, spawns, nil
}

// Count returns the number of registered entities.
func (s *SQLite) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
