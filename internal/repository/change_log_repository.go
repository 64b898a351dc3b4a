package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"

	"github.com/corpwatch/corpwatch/internal/domain"
)

const changeLogTable = "change_logs"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// changeLogRepository implements ChangeLogRepository on Postgres.
type changeLogRepository struct {
	pool    *pgxpool.Pool
	dialect goqu.DialectWrapper
}

// NewChangeLogRepository wires a repository backed by pgxpool.
func NewChangeLogRepository(pool *pgxpool.Pool) ChangeLogRepository {
	return &changeLogRepository{
		pool:    pool,
		dialect: goqu.Dialect("postgres"),
	}
}

// Record persists every change record of the set in a single transaction.
// An empty set is a successful no-op.
func (r *changeLogRepository) Record(ctx context.Context, changeSet domain.ChangeSet) error {
	if changeSet.Empty() {
		return nil
	}

	rows := make([]any, 0, len(changeSet.Records))
	for _, record := range changeSet.Records {
		changedFields, oldValues, newValues, err := marshalChangePayload(record)
		if err != nil {
			return err
		}
		rows = append(rows, goqu.Record{
			"cin":            record.CIN,
			"company_name":   record.CompanyName,
			"change_type":    string(record.Type),
			"change_date":    record.ChangeDate,
			"changed_fields": changedFields,
			"old_values":     oldValues,
			"new_values":     newValues,
		})
	}

	sql, args, err := r.dialect.Insert(changeLogTable).Rows(rows...).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build change insert: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin change log transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert change records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit change records: %w", err)
	}
	return nil
}

// Query returns change records within the inclusive date range, ordered by
// change date ascending then CIN, for reproducible pagination.
func (r *changeLogRepository) Query(ctx context.Context, start, end time.Time, typeFilter *domain.ChangeType) ([]domain.ChangeRecord, error) {
	stmt := buildChangeQuery(r.dialect, start, end, typeFilter)

	sql, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build change query: %w", err)
	}
	return r.scanChanges(ctx, sql, args)
}

// QueryByCIN returns the full change history of one company, oldest first.
func (r *changeLogRepository) QueryByCIN(ctx context.Context, cin string) ([]domain.ChangeRecord, error) {
	stmt := r.dialect.From(changeLogTable).
		Select(changeColumns()...).
		Where(goqu.C("cin").Eq(domain.NormalizeCIN(cin))).
		Order(goqu.C("change_date").Asc(), goqu.C("id").Asc())

	sql, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build change history query: %w", err)
	}
	return r.scanChanges(ctx, sql, args)
}

// Recent returns the most recently detected changes, newest first.
func (r *changeLogRepository) Recent(ctx context.Context, limit int) ([]domain.ChangeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	stmt := r.dialect.From(changeLogTable).
		Select(changeColumns()...).
		Order(goqu.C("change_date").Desc(), goqu.C("id").Desc()).
		Limit(uint(limit))

	sql, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build recent changes query: %w", err)
	}
	return r.scanChanges(ctx, sql, args)
}

// CountByType tallies changes per type within the inclusive date range.
// Types with no changes report zero.
func (r *changeLogRepository) CountByType(ctx context.Context, start, end time.Time) (map[domain.ChangeType]int, error) {
	stmt := r.dialect.From(changeLogTable).
		Select(goqu.C("change_type"), goqu.COUNT("*").As("total")).
		Where(
			goqu.C("change_date").Gte(domain.DateOnly(start)),
			goqu.C("change_date").Lte(domain.DateOnly(end)),
		).
		GroupBy(goqu.C("change_type"))

	sql, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build change count query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count changes: %w", err)
	}
	defer rows.Close()

	counts := map[domain.ChangeType]int{
		domain.ChangeTypeNew:      0,
		domain.ChangeTypeModified: 0,
		domain.ChangeTypeDeleted:  0,
	}
	for rows.Next() {
		var (
			changeType string
			total      int64
		)
		if err := rows.Scan(&changeType, &total); err != nil {
			return nil, fmt.Errorf("failed to scan change count: %w", err)
		}
		counts[domain.ChangeType(changeType)] = int(total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change counts: %w", err)
	}

	return counts, nil
}

// buildChangeQuery assembles the windowed change query. Kept separate from
// execution so the generated SQL is testable without a database.
func buildChangeQuery(dialect goqu.DialectWrapper, start, end time.Time, typeFilter *domain.ChangeType) *goqu.SelectDataset {
	stmt := dialect.From(changeLogTable).
		Select(changeColumns()...).
		Where(
			goqu.C("change_date").Gte(domain.DateOnly(start)),
			goqu.C("change_date").Lte(domain.DateOnly(end)),
		)

	if typeFilter != nil {
		stmt = stmt.Where(goqu.C("change_type").Eq(string(*typeFilter)))
	}

	return stmt.Order(goqu.C("change_date").Asc(), goqu.C("cin").Asc())
}

func changeColumns() []any {
	return []any{
		goqu.C("cin"),
		goqu.C("company_name"),
		goqu.C("change_type"),
		goqu.C("change_date"),
		goqu.C("changed_fields"),
		goqu.C("old_values"),
		goqu.C("new_values"),
	}
}

func (r *changeLogRepository) scanChanges(ctx context.Context, sql string, args []any) ([]domain.ChangeRecord, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	records := []domain.ChangeRecord{}
	for rows.Next() {
		var (
			record        domain.ChangeRecord
			changeType    string
			changeDate    pgtype.Date
			changedFields []byte
			oldValues     []byte
			newValues     []byte
		)
		if err := rows.Scan(
			&record.CIN,
			&record.CompanyName,
			&changeType,
			&changeDate,
			&changedFields,
			&oldValues,
			&newValues,
		); err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}

		record.Type = domain.ChangeType(changeType)
		if changeDate.Valid {
			record.ChangeDate = domain.DateOnly(changeDate.Time)
		}
		if err := unmarshalChangePayload(changedFields, oldValues, newValues, &record); err != nil {
			return nil, err
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate changes: %w", err)
	}

	return records, nil
}

// marshalChangePayload renders the JSONB columns. Empty payloads become empty
// JSON literals, never NULL.
func marshalChangePayload(record domain.ChangeRecord) (changedFields, oldValues, newValues []byte, err error) {
	changedFields, oldValues, newValues = []byte("[]"), []byte("{}"), []byte("{}")

	if len(record.ChangedFields) > 0 {
		if changedFields, err = json.Marshal(record.ChangedFields); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal changed fields for %s: %w", record.CIN, err)
		}
	}
	if len(record.OldValues) > 0 {
		if oldValues, err = json.Marshal(record.OldValues); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal old values for %s: %w", record.CIN, err)
		}
	}
	if len(record.NewValues) > 0 {
		if newValues, err = json.Marshal(record.NewValues); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal new values for %s: %w", record.CIN, err)
		}
	}
	return changedFields, oldValues, newValues, nil
}

func unmarshalChangePayload(changedFields, oldValues, newValues []byte, record *domain.ChangeRecord) error {
	if len(changedFields) > 0 && string(changedFields) != "[]" {
		if err := json.Unmarshal(changedFields, &record.ChangedFields); err != nil {
			return fmt.Errorf("failed to decode changed fields for %s: %w", record.CIN, err)
		}
	}
	if len(oldValues) > 0 && string(oldValues) != "{}" {
		if err := json.Unmarshal(oldValues, &record.OldValues); err != nil {
			return fmt.Errorf("failed to decode old values for %s: %w", record.CIN, err)
		}
	}
	if len(newValues) > 0 && string(newValues) != "{}" {
		if err := json.Unmarshal(newValues, &record.NewValues); err != nil {
			return fmt.Errorf("failed to decode new values for %s: %w", record.CIN, err)
		}
	}
	return nil
}
