// Package catalog keeps a SQLite index of the artifacts a tickflow run
// produced: compiled binaries, BTKS containers and extraction reports.
package catalog

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("tickflow.catalog")

// ErrArtifactNotFound indicates the requested artifact doesn't exist
var ErrArtifactNotFound = errors.New("artifact not found")

// Kind is the type of an artifact.
type Kind string

const (
	KindBinary    Kind = "bin"
	KindContainer Kind = "btk"
	KindReport    Kind = "report"
)

// NoIndex marks artifacts that do not belong to a single unit.
const NoIndex = -1

// Artifact is one recorded output file.
type Artifact struct {
	ID      string
	Kind    Kind
	Source  string // input the artifact was produced from
	Index   int64  // unit index, or NoIndex
	Name    string // output path
	Size    int64
	SHA256  string
	Created time.Time
}

// Catalog handles SQLite storage for artifacts
type Catalog struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		source TEXT NOT NULL,
		unit INTEGER NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		sha256 TEXT NOT NULL,
		created TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened catalog %s", path)
	return &Catalog{db: db, path: path}, nil
}

// Close closes the database connection
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Record stores an artifact whose content is data.
func (c *Catalog) Record(kind Kind, source string, index int64, name string, data []byte) (*Artifact, error) {
	sum := sha256.Sum256(data)
	a := &Artifact{
		ID:      uuid.New().String(),
		Kind:    kind,
		Source:  source,
		Index:   index,
		Name:    name,
		Size:    int64(len(data)),
		SHA256:  hex.EncodeToString(sum[:]),
		Created: time.Now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		"INSERT INTO artifacts (id, kind, source, unit, name, size, sha256, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		a.ID, string(a.Kind), a.Source, a.Index, a.Name, a.Size, a.SHA256, a.Created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("recording artifact: %w", err)
	}
	log.Debugf("recorded %s %s (%d bytes)", a.Kind, a.Name, a.Size)
	return a, nil
}

// Get returns the artifact with the given id.
func (c *Catalog) Get(id string) (*Artifact, error) {
	row := c.db.QueryRow(
		"SELECT id, kind, source, unit, name, size, sha256, created FROM artifacts WHERE id = ?", id)
	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	return a, nil
}

// List returns artifacts of the given kind in the order they were recorded.
// An empty kind lists everything.
func (c *Catalog) List(kind Kind) ([]*Artifact, error) {
	query := "SELECT id, kind, source, unit, name, size, sha256, created FROM artifacts"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY rowid"

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("listing artifacts: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(s scanner) (*Artifact, error) {
	var a Artifact
	var kind, created string
	if err := s.Scan(&a.ID, &kind, &a.Source, &a.Index, &a.Name, &a.Size, &a.SHA256, &created); err != nil {
		return nil, err
	}
	a.Kind = Kind(kind)
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: bad timestamp %q", a.ID, created)
	}
	a.Created = t
	return &a, nil
}
