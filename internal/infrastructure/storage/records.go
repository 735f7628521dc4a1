package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// timeLayout is the stored timestamp format. UTC without fractional
// seconds, so lexicographic comparison in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05Z"

// RecordRepository persists tender records and dashboard projections.
type RecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.RecordStore = (*RecordRepository)(nil)

// NewRecordRepository wires a sql.DB implementation.
func NewRecordRepository(db *sql.DB, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger.With("component", "records")}
}

// Put upserts the record snapshot keyed by (source, id).
func (r *RecordRepository) Put(ctx context.Context, rec domain.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}

	var dept any
	if rec.DepartmentCode != nil {
		dept = *rec.DepartmentCode
	}

	query, args, err := sq.Insert("records").
		Columns("source", "id", "department_code", "status", "fields", "created_at").
		Values(string(rec.Source), rec.ID, dept, string(rec.Status), string(fields), rec.CreatedAt.UTC().Format(timeLayout)).
		Suffix(`ON CONFLICT (source, id) DO UPDATE SET
			department_code = excluded.department_code,
			status = excluded.status,
			fields = excluded.fields`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Exists reports whether a record is already stored.
func (r *RecordRepository) Exists(ctx context.Context, source domain.Source, id string) (bool, error) {
	query, args, err := sq.Select("1").
		From("records").
		Where(sq.Eq{"source": string(source), "id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query exists: %w", err)
	}
	return true, nil
}

// Get loads one record by key.
func (r *RecordRepository) Get(ctx context.Context, source domain.Source, id string) (domain.Record, error) {
	query, args, err := recordSelect().
		Where(sq.Eq{"source": string(source), "id": id}).
		ToSql()
	if err != nil {
		return domain.Record{}, fmt.Errorf("build get: %w", err)
	}

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Record{}, fmt.Errorf("get record %s/%s: %w", source, id, err)
	}
	return rec, nil
}

// NewerThan returns records of a source created strictly after ts, oldest
// first. Rows whose stored timestamp does not parse are skipped.
func (r *RecordRepository) NewerThan(ctx context.Context, source domain.Source, ts time.Time) ([]domain.Record, error) {
	query, args, err := recordSelect().
		Where(sq.Eq{"source": string(source)}).
		Where(sq.Gt{"created_at": ts.UTC().Format(timeLayout)}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build newer-than: %w", err)
	}
	return r.queryRecords(ctx, query, args)
}

// Unprojected lists records of a source without a dashboard projection.
func (r *RecordRepository) Unprojected(ctx context.Context, source domain.Source) ([]domain.Record, error) {
	query, args, err := recordSelect().
		Where(sq.Eq{"r.source": string(source)}).
		LeftJoin("dashboard_records d ON d.source = r.source AND d.record_id = r.id").
		Where("d.record_id IS NULL").
		OrderBy("r.created_at ASC", "r.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unprojected: %w", err)
	}
	return r.queryRecords(ctx, query, args)
}

// PutProjection upserts the dashboard row derived from a classified record.
func (r *RecordRepository) PutProjection(ctx context.Context, p domain.Projection) error {
	query, args, err := sq.Insert("dashboard_records").
		Columns("source", "record_id", "process_number", "process_name", "category", "general_category", "created_at").
		Values(string(p.Source), p.RecordID, p.ProcessNumber, p.ProcessName,
			p.Classification.Category, p.Classification.GeneralCategory,
			time.Now().UTC().Format(timeLayout)).
		Suffix(`ON CONFLICT (source, record_id) DO UPDATE SET
			process_number = excluded.process_number,
			process_name = excluded.process_name,
			category = excluded.category,
			general_category = excluded.general_category`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build projection insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert projection: %w", err)
	}
	return nil
}

// BackfillDepartmentCodes derives the numeric id prefix for stored records
// missing a department code. Returns the number of rows updated.
func (r *RecordRepository) BackfillDepartmentCodes(ctx context.Context, source domain.Source) (int, error) {
	query, args, err := sq.Select("id").
		From("records").
		Where(sq.Eq{"source": string(source), "department_code": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build backfill select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("query uncoded records: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate uncoded records: %w", err)
	}
	rows.Close()

	updated := 0
	for _, id := range ids {
		code := domain.DepartmentCodeFromID(id)
		if code == nil {
			continue
		}
		query, args, err := sq.Update("records").
			Set("department_code", *code).
			Where(sq.Eq{"source": string(source), "id": id}).
			ToSql()
		if err != nil {
			return updated, fmt.Errorf("build backfill update: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return updated, fmt.Errorf("backfill %s: %w", id, err)
		}
		updated++
	}
	return updated, nil
}

func recordSelect() sq.SelectBuilder {
	return sq.Select("r.source", "r.id", "r.department_code", "r.status", "r.fields", "r.created_at").
		From("records r")
}

func (r *RecordRepository) queryRecords(ctx context.Context, query string, args []any) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if errors.Is(err, errBadTimestamp) {
			r.logger.Warn("skipping record with unparsable created_at",
				"source", rec.Source, "record", rec.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

var errBadTimestamp = errors.New("unparseable created_at")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		rec       domain.Record
		source    string
		status    string
		dept      sql.NullInt64
		fields    string
		createdAt string
	)
	if err := row.Scan(&source, &rec.ID, &dept, &status, &fields, &createdAt); err != nil {
		return domain.Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Source = domain.Source(source)
	rec.Status = domain.Status(status)
	if dept.Valid {
		code := int(dept.Int64)
		rec.DepartmentCode = &code
	}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return domain.Record{}, fmt.Errorf("unmarshal record fields: %w", err)
	}
	// The partially scanned record is returned so callers can name the
	// offending row in their log.
	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return rec, errBadTimestamp
	}
	rec.CreatedAt = ts
	return rec, nil
}
