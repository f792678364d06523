// Package library stores exchange documents and kernel definitions in a
// SQLite database. A kernel referenced by any stored design is frozen: its
// id can no longer be saved with different content.
package library

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/pulsegrid/internal/exchange"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite"
)

var (
	// ErrKernelFrozen is returned when a frozen kernel would change.
	ErrKernelFrozen = errors.New("kernel is referenced by a stored design and cannot change")
	// ErrNotFound is returned for unknown design ids.
	ErrNotFound = errors.New("not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS kernels (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	version  INTEGER NOT NULL,
	content  TEXT NOT NULL,
	saved_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS designs (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	comment  TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL,
	saved_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS design_kernels (
	design_id TEXT NOT NULL REFERENCES designs(id) ON DELETE CASCADE,
	kernel_id TEXT NOT NULL REFERENCES kernels(id),
	PRIMARY KEY (design_id, kernel_id)
);
CREATE INDEX IF NOT EXISTS idx_design_kernels_kernel ON design_kernels(kernel_id);
`

// Library is a design and kernel store backed by one SQLite file.
type Library struct {
	db  *sql.DB
	now func() time.Time
}

// DesignSummary is one row of ListDesigns.
type DesignSummary struct {
	ID      string
	Name    string
	Comment string
	Kernels int
	SavedAt time.Time
}

// Open opens or creates the library at path. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*Library, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	// One connection keeps an in-memory database alive and serialises
	// writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise library: %w", err)
		}
	}
	return &Library{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.db.Close()
}

// execer is the subset of *sql.DB and *sql.Tx the library writes through.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveKernel stores a kernel definition. Saving identical content again is
// a no-op; changing a frozen kernel returns ErrKernelFrozen.
func (l *Library) SaveKernel(ctx context.Context, kd exchange.KernelDoc) error {
	return saveKernel(ctx, l.db, kd, l.now())
}

func saveKernel(ctx context.Context, db execer, kd exchange.KernelDoc, now time.Time) error {
	if _, err := uuid.Parse(kd.ID); err != nil {
		return fmt.Errorf("kernel %q: id %q is not a UUID: %w", kd.Name, kd.ID, err)
	}
	content, err := yaml.Marshal(kd)
	if err != nil {
		return fmt.Errorf("kernel %q: %w", kd.Name, err)
	}

	var stored string
	err = db.QueryRowContext(ctx, `SELECT content FROM kernels WHERE id = ?`, kd.ID).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.ExecContext(ctx,
			`INSERT INTO kernels (id, name, version, content, saved_at) VALUES (?, ?, ?, ?, ?)`,
			kd.ID, kd.Name, kd.Version, string(content), now.UTC().Format(time.RFC3339Nano))
		return err
	case err != nil:
		return err
	case stored == string(content):
		return nil
	}

	frozen, err := isFrozen(ctx, db, kd.ID)
	if err != nil {
		return err
	}
	if frozen {
		return fmt.Errorf("kernel %q (%s): %w", kd.Name, kd.ID, ErrKernelFrozen)
	}
	_, err = db.ExecContext(ctx,
		`UPDATE kernels SET name = ?, version = ?, content = ?, saved_at = ? WHERE id = ?`,
		kd.Name, kd.Version, string(content), now.UTC().Format(time.RFC3339Nano), kd.ID)
	return err
}

// SaveDesign stores doc with every kernel it carries and returns the design
// id. A design without an id receives a random one, written back to doc.
func (l *Library) SaveDesign(ctx context.Context, doc *exchange.Document) (string, error) {
	if doc.Design.ID == "" {
		doc.Design.ID = uuid.NewString()
	}
	var buf bytes.Buffer
	if err := exchange.Write(&buf, doc); err != nil {
		return "", err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	now := l.now()
	// Refs are dropped first so a design does not freeze its own kernels
	// against an update.
	if _, err := tx.ExecContext(ctx, `DELETE FROM design_kernels WHERE design_id = ?`, doc.Design.ID); err != nil {
		return "", err
	}
	for _, kd := range doc.Kernels {
		if err := saveKernel(ctx, tx, kd, now); err != nil {
			return "", err
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO designs (id, name, comment, document, saved_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, comment = excluded.comment,
			document = excluded.document, saved_at = excluded.saved_at`,
		doc.Design.ID, doc.Design.Name, doc.Design.Comment, buf.String(), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", err
	}
	for _, kd := range doc.Kernels {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO design_kernels (design_id, kernel_id) VALUES (?, ?)`,
			doc.Design.ID, kd.ID); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return doc.Design.ID, nil
}

// LoadDesign returns the stored document for id.
func (l *Library) LoadDesign(ctx context.Context, id string) (*exchange.Document, error) {
	var text string
	err := l.db.QueryRowContext(ctx, `SELECT document FROM designs WHERE id = ?`, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("design %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return exchange.Read(bytes.NewReader([]byte(text)))
}

// ListDesigns returns every stored design ordered by name.
func (l *Library) ListDesigns(ctx context.Context) ([]DesignSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.comment, d.saved_at, COUNT(dk.kernel_id)
		FROM designs d LEFT JOIN design_kernels dk ON dk.design_id = d.id
		GROUP BY d.id ORDER BY d.name, d.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DesignSummary
	for rows.Next() {
		var s DesignSummary
		var saved string
		if err := rows.Scan(&s.ID, &s.Name, &s.Comment, &saved, &s.Kernels); err != nil {
			return nil, err
		}
		if s.SavedAt, err = time.Parse(time.RFC3339Nano, saved); err != nil {
			return nil, fmt.Errorf("design %s: bad saved_at %q: %w", s.ID, saved, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// KernelReferrers returns the ids of the designs that use kernelID.
func (l *Library) KernelReferrers(ctx context.Context, kernelID string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT design_id FROM design_kernels WHERE kernel_id = ? ORDER BY design_id`, kernelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsFrozen reports whether any stored design references kernelID.
func (l *Library) IsFrozen(ctx context.Context, kernelID string) (bool, error) {
	return isFrozen(ctx, l.db, kernelID)
}

func isFrozen(ctx context.Context, db execer, kernelID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM design_kernels WHERE kernel_id = ?`, kernelID).Scan(&n)
	return n > 0, err
}
