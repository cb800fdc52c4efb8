package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/term-linker/internal/jobs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// GetDocumentState returns nil without error when path has no state.
func (s *SQLiteStore) GetDocumentState(ctx context.Context, docPath string) (*DocumentState, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT path, content_hash, rules_hash, output_path, link_count, linked_at, source, fragments
		 FROM document_states
		 WHERE path = ?`,
		docPath,
	)

	var (
		ret       DocumentState
		fragments string
	)
	if err := row.Scan(
		&ret.Path,
		&ret.ContentHash,
		&ret.RulesHash,
		&ret.OutputPath,
		&ret.LinkCount,
		&ret.LinkedAt,
		&ret.Source,
		&fragments,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if fragments != "" {
		if err := json.Unmarshal([]byte(fragments), &ret.Fragments); err != nil {
			return nil, fmt.Errorf("decode fragments of %s: %w", docPath, err)
		}
	}
	return &ret, nil
}

func (s *SQLiteStore) UpsertDocumentState(ctx context.Context, state DocumentState) error {
	if strings.TrimSpace(state.Path) == "" {
		return fmt.Errorf("document path is required")
	}
	linkedAt := state.LinkedAt.UTC()
	if linkedAt.IsZero() {
		linkedAt = time.Now().UTC()
	}
	var fragments string
	if len(state.Fragments) > 0 {
		data, err := json.Marshal(state.Fragments)
		if err != nil {
			return fmt.Errorf("encode fragments: %w", err)
		}
		fragments = string(data)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO document_states (
			path, content_hash, rules_hash, output_path, link_count, linked_at, source, fragments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash=excluded.content_hash,
			rules_hash=excluded.rules_hash,
			output_path=excluded.output_path,
			link_count=excluded.link_count,
			linked_at=excluded.linked_at,
			source=excluded.source,
			fragments=excluded.fragments`,
		state.Path,
		state.ContentHash,
		state.RulesHash,
		state.OutputPath,
		state.LinkCount,
		linkedAt,
		state.Source,
		fragments,
	)
	return err
}

// ListDocumentStates returns every state ordered by path, without Source and
// Fragments.
func (s *SQLiteStore) ListDocumentStates(ctx context.Context) ([]DocumentState, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT path, content_hash, rules_hash, output_path, link_count, linked_at
		 FROM document_states
		 ORDER BY path ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]DocumentState, 0)
	for rows.Next() {
		var item DocumentState
		if err := rows.Scan(
			&item.Path,
			&item.ContentHash,
			&item.RulesHash,
			&item.OutputPath,
			&item.LinkCount,
			&item.LinkedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteDocumentState(ctx context.Context, docPath string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_states WHERE path = ?`, docPath)
	return err
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, kind, document_id, status, error, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		var item jobs.Job
		var kind, status string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&kind,
			&item.Payload.DocumentID,
			&status,
			&item.Error,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Payload.Kind = jobs.Kind(kind)
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, kind, document_id, status, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			kind=excluded.kind,
			document_id=excluded.document_id,
			status=excluded.status,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		string(job.Payload.Kind),
		job.Payload.DocumentID,
		string(job.Status),
		job.Error,
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}
