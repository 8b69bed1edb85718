package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"hammer/internal/domain/entity"
)

const schema = `
	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		last_sync TEXT,
		last_id INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS entities (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		id INTEGER NOT NULL,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		hash TEXT NOT NULL,
		synced_hash TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (project, id)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(project, type);

	CREATE TABLE IF NOT EXISTS pending_deletions (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		id INTEGER NOT NULL,
		type TEXT NOT NULL,
		PRIMARY KEY (project, id)
	);
`

// SQLite - хранилище проектов в файле sqlite
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// sqlite не любит параллельных писателей
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) CreateProject(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO projects (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectExists, name)
	}
	return nil
}

func (s *SQLite) GetProject(ctx context.Context, name string) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`SELECT name, last_sync, last_id FROM projects WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return p, nil
}

func (s *SQLite) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, last_sync, last_id FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var (
		p        Project
		lastSync sql.NullString
	)
	if err := row.Scan(&p.Name, &lastSync, &p.LastID); err != nil {
		return nil, err
	}
	if lastSync.Valid {
		ts, err := time.Parse(time.RFC3339Nano, lastSync.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_sync %q: %w", lastSync.String, err)
		}
		p.LastSync = &ts
	}
	return &p, nil
}

func (s *SQLite) ensureProject(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, name string) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE name = ?)`, name).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки существования проекта: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return nil
}

func (s *SQLite) ListEntities(ctx context.Context, project string, t entity.Type) ([]Record, error) {
	if err := s.ensureProject(ctx, s.db, project); err != nil {
		return nil, err
	}

	query := `SELECT type, payload, hash, synced_hash, updated_at FROM entities WHERE project = ?`
	args := []any{project}
	if t != "" {
		query += ` AND type = ?`
		args = append(args, string(t))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRecord(row scanner) (*Record, error) {
	var (
		typ, payload, updatedAt string
		r                       Record
	)
	if err := row.Scan(&typ, &payload, &r.Hash, &r.SyncedHash, &updatedAt); err != nil {
		return nil, err
	}

	e, err := entity.Decode(entity.Type(typ), []byte(payload))
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора сущности: %w", err)
	}
	r.Entity = e
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &r, nil
}

func (s *SQLite) LoadEntity(ctx context.Context, project string, id int) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT type, payload, hash, synced_hash, updated_at FROM entities WHERE project = ? AND id = ?`,
		project, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сущности: %w", err)
	}
	return r, nil
}

func (s *SQLite) PutEntity(ctx context.Context, project string, e entity.Entity) (*Record, error) {
	payload, err := entity.Encode(e)
	if err != nil {
		return nil, err
	}
	r := &Record{Entity: e, Hash: entity.Hash(e), UpdatedAt: s.now().UTC()}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureProject(ctx, tx, project); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (project, id, type, payload, hash, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(project, id) DO UPDATE
			SET type = excluded.type, payload = excluded.payload,
			    hash = excluded.hash, updated_at = excluded.updated_at
		`, project, e.GetID(), string(e.GetType()), string(payload), r.Hash, r.UpdatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("ошибка сохранения сущности: %w", err)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT synced_hash FROM entities WHERE project = ? AND id = ?`, project, e.GetID()).Scan(&r.SyncedHash); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pending_deletions WHERE project = ? AND id = ?`, project, e.GetID()); err != nil {
			return err
		}
		return bumpLastID(ctx, tx, project, e.GetID())
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLite) MarkSynced(ctx context.Context, project string, e entity.Entity, syncedHash string) error {
	payload, err := entity.Encode(e)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (project, id, type, payload, hash, synced_hash, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project, id) DO UPDATE
			SET type = excluded.type, payload = excluded.payload, hash = excluded.hash,
			    synced_hash = excluded.synced_hash, updated_at = excluded.updated_at
		`, project, e.GetID(), string(e.GetType()), string(payload), entity.Hash(e), syncedHash,
			s.now().UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("ошибка сохранения сущности: %w", err)
		}
		return bumpLastID(ctx, tx, project, e.GetID())
	})
}

func bumpLastID(ctx context.Context, tx *sql.Tx, project string, id int) error {
	_, err := tx.ExecContext(ctx, `UPDATE projects SET last_id = MAX(last_id, ?) WHERE name = ?`, id, project)
	if err != nil {
		return fmt.Errorf("failed to update last id: %w", err)
	}
	return nil
}

func (s *SQLite) RemoveEntity(ctx context.Context, project string, id int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE project = ? AND id = ?`, project, id); err != nil {
		return fmt.Errorf("ошибка удаления сущности: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteEntity(ctx context.Context, project string, id int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var typ, synced string
		err := tx.QueryRowContext(ctx,
			`SELECT type, synced_hash FROM entities WHERE project = ? AND id = ?`, project, id).Scan(&typ, &synced)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrEntityNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("ошибка получения сущности: %w", err)
		}

		if synced != "" {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pending_deletions (project, id, type) VALUES (?, ?, ?)
				ON CONFLICT(project, id) DO UPDATE SET type = excluded.type
			`, project, id, typ); err != nil {
				return fmt.Errorf("failed to queue deletion: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE project = ? AND id = ?`, project, id); err != nil {
			return fmt.Errorf("ошибка удаления сущности: %w", err)
		}
		return nil
	})
}

func (s *SQLite) PendingDeletions(ctx context.Context, project string) (map[entity.Type][]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type FROM pending_deletions WHERE project = ? ORDER BY id`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletions: %w", err)
	}
	defer rows.Close()

	out := make(map[entity.Type][]int)
	for rows.Next() {
		var (
			id  int
			typ string
		)
		if err := rows.Scan(&id, &typ); err != nil {
			return nil, err
		}
		out[entity.Type(typ)] = append(out[entity.Type(typ)], id)
	}
	for _, ids := range out {
		sort.Ints(ids)
	}
	return out, rows.Err()
}

func (s *SQLite) ClearPendingDeletion(ctx context.Context, project string, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_deletions WHERE project = ? AND id = ?`, project, id)
	if err != nil {
		return fmt.Errorf("failed to clear pending deletion: %w", err)
	}
	return nil
}

func (s *SQLite) NextID(ctx context.Context, project string) (int, error) {
	var id int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureProject(ctx, tx, project); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE projects SET last_id = last_id + 1 WHERE name = ?`, project); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT last_id FROM projects WHERE name = ?`, project).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}
	return id, nil
}

func (s *SQLite) SaveSyncData(ctx context.Context, project string, lastSync time.Time, lastID int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET last_sync = ?, last_id = MAX(last_id, ?) WHERE name = ?`,
		lastSync.UTC().Format(time.RFC3339Nano), lastID, project)
	if err != nil {
		return fmt.Errorf("failed to save sync data: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	return nil
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
