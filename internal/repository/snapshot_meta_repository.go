package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corpwatch/corpwatch/internal/domain"
)

type snapshotMetaRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotMetaRepository wires a repository backed by pgxpool.
func NewSnapshotMetaRepository(pool *pgxpool.Pool) SnapshotMetaRepository {
	return &snapshotMetaRepository{pool: pool}
}

// createSnapshotSQL reclaims the existing row when a capture date is retried
// after a failed run; snapshot_date is unique, so the retry must update in
// place rather than leave the old FAILED row behind.
const createSnapshotSQL = `
INSERT INTO snapshots (snapshot_date, file_path, total_records, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (snapshot_date) DO UPDATE
SET file_path = EXCLUDED.file_path,
    total_records = EXCLUDED.total_records,
    status = EXCLUDED.status,
    error_message = NULL,
    completed_at = NULL
RETURNING id`

func (r *snapshotMetaRepository) Create(ctx context.Context, meta domain.SnapshotMeta) (int64, error) {
	var id int64
	err := r.pool.QueryRow(
		ctx,
		createSnapshotSQL,
		meta.SnapshotDate,
		meta.FilePath,
		meta.TotalRecords,
		string(meta.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create snapshot record: %w", err)
	}
	return id, nil
}

func (r *snapshotMetaRepository) Finish(ctx context.Context, id int64, status domain.SnapshotStatus, filePath string, totalRecords int, errorMessage string) error {
	_, err := r.pool.Exec(
		ctx,
		`UPDATE snapshots
		 SET status = $2, file_path = $3, total_records = $4, error_message = NULLIF($5, ''), completed_at = now()
		 WHERE id = $1`,
		id,
		string(status),
		filePath,
		totalRecords,
		errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to finish snapshot record: %w", err)
	}
	return nil
}

func (r *snapshotMetaRepository) List(ctx context.Context, limit int) ([]domain.SnapshotMeta, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, snapshot_date, file_path, total_records, status, error_message, created_at, completed_at
		 FROM snapshots
		 ORDER BY snapshot_date DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot records: %w", err)
	}
	defer rows.Close()

	metas := []domain.SnapshotMeta{}
	for rows.Next() {
		var (
			meta         domain.SnapshotMeta
			snapshotDate pgtype.Date
			filePath     pgtype.Text
			status       string
			errorMessage pgtype.Text
			createdAt    pgtype.Timestamptz
			completedAt  pgtype.Timestamptz
		)
		if err := rows.Scan(
			&meta.ID,
			&snapshotDate,
			&filePath,
			&meta.TotalRecords,
			&status,
			&errorMessage,
			&createdAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot record: %w", err)
		}

		if snapshotDate.Valid {
			meta.SnapshotDate = domain.DateOnly(snapshotDate.Time)
		}
		meta.FilePath = filePath.String
		meta.Status = domain.SnapshotStatus(status)
		meta.ErrorMessage = errorMessage.String
		if createdAt.Valid {
			meta.CreatedAt = createdAt.Time
		}
		if completedAt.Valid {
			completed := completedAt.Time
			meta.CompletedAt = &completed
		}

		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot records: %w", err)
	}

	return metas, nil
}
