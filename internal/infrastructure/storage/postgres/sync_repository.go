package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"hammer/internal/domain/entity"
	"hammer/internal/domain/sync"
)

// SyncRepository хранит сущности проектов, baseline и данные синхронизации
type SyncRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSyncRepository(db *Storage, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		db:  db,
		log: log.With(slog.String("component", "sync_repository")),
	}
}

func (r *SyncRepository) ListEntityHashes(ctx context.Context, userID int, project string) ([]entity.EntityHash, error) {
	const query = `
		SELECT entity_id, entity_type, hash
		FROM project_entities
		WHERE user_id = $1 AND project_name = $2
		ORDER BY entity_id`

	rows, err := r.db.Pool().Query(ctx, query, userID, project)
	if err != nil {
		r.log.Error("failed to list entity hashes", "user_id", userID, "project", project, "error", err)
		return nil, fmt.Errorf("list entity hashes: %w", err)
	}

	hashes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.EntityHash, error) {
		var h entity.EntityHash
		err := row.Scan(&h.ID, &h.Type, &h.Hash)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan entity hashes: %w", err)
	}
	return hashes, nil
}

func (r *SyncRepository) LoadEntity(ctx context.Context, userID int, project string, id int) (*sync.StoredEntity, error) {
	const query = `
		SELECT entity_id, entity_type, hash, payload, updated_at
		FROM project_entities
		WHERE user_id = $1 AND project_name = $2 AND entity_id = $3`

	var e sync.StoredEntity
	err := r.db.Pool().QueryRow(ctx, query, userID, project, id).
		Scan(&e.ID, &e.Type, &e.Hash, &e.Payload, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrEntityNotFound
		}
		r.log.Error("failed to load entity", "entity_id", id, "project", project, "error", err)
		return nil, fmt.Errorf("load entity: %w", err)
	}
	return &e, nil
}

func (r *SyncRepository) InsertEntity(ctx context.Context, userID int, project string, e *sync.StoredEntity) (bool, error) {
	const query = `
		INSERT INTO project_entities (user_id, project_name, entity_id, entity_type, hash, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, project_name, entity_id) DO NOTHING`

	var inserted bool
	err := pgx.BeginFunc(ctx, r.db.Pool(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, userID, project, e.ID, e.Type, e.Hash, e.Payload, updatedAt(e))
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() == 1
		if !inserted {
			return nil
		}
		return forgetDeleted(ctx, tx, userID, project, e.ID)
	})
	if err != nil {
		r.log.Error("failed to insert entity", "entity_id", e.ID, "project", project, "error", err)
		return false, fmt.Errorf("insert entity: %w", err)
	}
	return inserted, nil
}

func (r *SyncRepository) UpdateEntity(ctx context.Context, userID int, project string, e *sync.StoredEntity, expectedHash string) (bool, error) {
	const query = `
		UPDATE project_entities
		SET entity_type = $4, hash = $5, payload = $6, updated_at = $7
		WHERE user_id = $1 AND project_name = $2 AND entity_id = $3 AND hash = $8`

	tag, err := r.db.Pool().Exec(ctx, query, userID, project, e.ID, e.Type, e.Hash, e.Payload, updatedAt(e), expectedHash)
	if err != nil {
		r.log.Error("failed to update entity", "entity_id", e.ID, "project", project, "error", err)
		return false, fmt.Errorf("update entity: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SyncRepository) UpsertEntity(ctx context.Context, userID int, project string, e *sync.StoredEntity) error {
	const query = `
		INSERT INTO project_entities (user_id, project_name, entity_id, entity_type, hash, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, project_name, entity_id) DO UPDATE
		SET entity_type = EXCLUDED.entity_type,
		    hash = EXCLUDED.hash,
		    payload = EXCLUDED.payload,
		    updated_at = EXCLUDED.updated_at`

	err := pgx.BeginFunc(ctx, r.db.Pool(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, userID, project, e.ID, e.Type, e.Hash, e.Payload, updatedAt(e)); err != nil {
			return err
		}
		return forgetDeleted(ctx, tx, userID, project, e.ID)
	})
	if err != nil {
		r.log.Error("failed to upsert entity", "entity_id", e.ID, "project", project, "error", err)
		return fmt.Errorf("upsert entity: %w", err)
	}
	return nil
}

func (r *SyncRepository) DeleteEntity(ctx context.Context, userID int, project string, id int) (bool, error) {
	var deleted bool
	err := pgx.BeginFunc(ctx, r.db.Pool(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM project_entities WHERE user_id = $1 AND project_name = $2 AND entity_id = $3`,
			userID, project, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() == 1
		if !deleted {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO deleted_entities (user_id, project_name, entity_id, deleted_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id, project_name, entity_id) DO UPDATE SET deleted_at = NOW()`,
			userID, project, id)
		return err
	})
	if err != nil {
		r.log.Error("failed to delete entity", "entity_id", id, "project", project, "error", err)
		return false, fmt.Errorf("delete entity: %w", err)
	}
	return deleted, nil
}

func (r *SyncRepository) ListDeletedIDs(ctx context.Context, userID int, project string) ([]int, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT entity_id FROM deleted_entities WHERE user_id = $1 AND project_name = $2 ORDER BY entity_id`,
		userID, project)
	if err != nil {
		return nil, fmt.Errorf("list deleted ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("scan deleted ids: %w", err)
	}
	return ids, nil
}

func (r *SyncRepository) LoadSyncData(ctx context.Context, userID int, project string) (*sync.SyncData, error) {
	var data sync.SyncData
	err := r.db.Pool().QueryRow(ctx,
		`SELECT last_sync, last_id FROM project_sync_data WHERE user_id = $1 AND project_name = $2`,
		userID, project).Scan(&data.LastSync, &data.LastID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &sync.SyncData{}, nil
		}
		return nil, fmt.Errorf("load sync data: %w", err)
	}
	return &data, nil
}

func (r *SyncRepository) SaveSyncData(ctx context.Context, userID int, project string, data *sync.SyncData, baseline []entity.EntityHash) error {
	err := pgx.BeginFunc(ctx, r.db.Pool(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO project_sync_data (user_id, project_name, last_sync, last_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, project_name) DO UPDATE
			SET last_sync = EXCLUDED.last_sync, last_id = EXCLUDED.last_id`,
			userID, project, data.LastSync, data.LastID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM project_baselines WHERE user_id = $1 AND project_name = $2`,
			userID, project)
		if err != nil {
			return err
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"project_baselines"},
			[]string{"user_id", "project_name", "entity_id", "hash"},
			pgx.CopyFromSlice(len(baseline), func(i int) ([]any, error) {
				return []any{userID, project, baseline[i].ID, baseline[i].Hash}, nil
			}),
		)
		return err
	})
	if err != nil {
		r.log.Error("failed to save sync data", "user_id", userID, "project", project, "error", err)
		return fmt.Errorf("save sync data: %w", err)
	}
	return nil
}

// LoadBaseline возвращает хэши, зафиксированные последним end_sync
func (r *SyncRepository) LoadBaseline(ctx context.Context, userID int, project string) (map[int]string, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT entity_id, hash FROM project_baselines WHERE user_id = $1 AND project_name = $2`,
		userID, project)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var (
			id   int
			hash string
		)
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		out[id] = hash
	}
	return out, rows.Err()
}

func forgetDeleted(ctx context.Context, tx pgx.Tx, userID int, project string, id int) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM deleted_entities WHERE user_id = $1 AND project_name = $2 AND entity_id = $3`,
		userID, project, id)
	return err
}

func updatedAt(e *sync.StoredEntity) time.Time {
	if e.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return e.UpdatedAt
}
