package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/goccy/go-json"
)

var tableName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const columns = `id, account_id, fields, field_clocks, created_at, updated_at, deleted_at`

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db    dbx.DBTX
	table string
}

// NewPostgresRepository binds a repository to one entity table. The table name
// is interpolated into SQL, so it must be a plain lower-case identifier.
func NewPostgresRepository(db dbx.DBTX, table string) *PostgresRepository {
	if !tableName.MatchString(table) {
		panic(fmt.Sprintf("records: invalid table name %q", table))
	}
	return &PostgresRepository{db: db, table: table}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrorStorage, op, err)
}

func (r *PostgresRepository) Get(ctx context.Context, accountID, id string, forUpdate bool) (*models.Record, error) {
	query := `SELECT ` + columns + ` FROM ` + r.table + ` WHERE account_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, accountID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, storageErr("get "+r.table, err)
	}
	return rec, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.Record) (bool, error) {
	fields, clocks, err := encode(rec)
	if err != nil {
		return false, err
	}

	query := `INSERT INTO ` + r.table + ` (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.AccountID, fields, clocks, rec.CreatedAt, rec.UpdatedAt, nullTime(rec.DeletedAt))
	if err != nil {
		return false, storageErr("insert "+r.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("rows affected", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record, prevUpdatedAt time.Time) error {
	fields, clocks, err := encode(rec)
	if err != nil {
		return err
	}

	query := `UPDATE ` + r.table + `
		SET fields = $3, field_clocks = $4, updated_at = $5, deleted_at = $6
		WHERE account_id = $1 AND id = $2 AND updated_at = $7`

	res, err := r.db.ExecContext(ctx, query,
		rec.AccountID, rec.ID, fields, clocks, rec.UpdatedAt, nullTime(rec.DeletedAt), prevUpdatedAt)
	if err != nil {
		return storageErr("update "+r.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) Page(ctx context.Context, q models.PageQuery) ([]*models.Record, error) {
	where, args := buildWhere(q, true)
	args = append(args, q.Limit)
	query := `SELECT ` + columns + ` FROM ` + r.table + ` WHERE ` + where +
		fmt.Sprintf(` ORDER BY updated_at ASC, id ASC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("select "+r.table, err)
	}
	defer rows.Close()

	result := make([]*models.Record, 0, q.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr("scan "+r.table, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate "+r.table, err)
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, q models.PageQuery) (int64, error) {
	where, args := buildWhere(q, false)
	query := `SELECT count(*) FROM ` + r.table + ` WHERE ` + where

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storageErr("count "+r.table, err)
	}
	return n, nil
}

func (r *PostgresRepository) CountReferences(ctx context.Context, accountID string, ref Reference) (int64, error) {
	args := []any{accountID, ref.Field, ref.Value}
	query := `SELECT count(*) FROM ` + r.table + `
		WHERE account_id = $1 AND deleted_at IS NULL AND fields ->> $2 = $3`
	if ref.Active != nil {
		var clause string
		clause, args = activeClause(ref.Active, args)
		query += ` AND ` + clause
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storageErr("count references in "+r.table, err)
	}
	return n, nil
}

func (r *PostgresRepository) PurgeTombstones(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM ` + r.table + ` WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, storageErr("purge "+r.table, err)
	}
	return res.RowsAffected()
}

// buildWhere renders q as a WHERE clause with positional arguments.
// withCursor adds the (updated_at, id) > (...) keyset condition.
func buildWhere(q models.PageQuery, withCursor bool) (string, []any) {
	args := []any{q.AccountID}
	conds := []string{"account_id = $1"}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Since != nil {
		conds = append(conds, "updated_at > "+next(*q.Since))
	}
	if q.UpdatedFrom != nil {
		conds = append(conds, "updated_at >= "+next(*q.UpdatedFrom))
	}
	if q.LiveOnly {
		conds = append(conds, "deleted_at IS NULL")
	}
	if q.Active != nil {
		var clause string
		clause, args = activeClause(q.Active, args)
		conds = append(conds, clause)
	}
	if withCursor && q.After != nil {
		ts := next(q.After.UpdatedAt)
		id := next(q.After.ID)
		conds = append(conds, fmt.Sprintf("(updated_at, id) > (%s, %s)", ts, id))
	}

	return strings.Join(conds, " AND "), args
}

// activeClause renders "field not in inactive values"; a missing field is
// compared as JSON null, which no rule lists, so it counts as active.
func activeClause(rule *models.ActiveRule, args []any) (string, []any) {
	args = append(args, rule.Field)
	field := len(args)

	placeholders := make([]string, 0, len(rule.Inactive))
	for _, v := range rule.Inactive {
		b, _ := json.Marshal(v)
		args = append(args, string(b))
		placeholders = append(placeholders, fmt.Sprintf("$%d::jsonb", len(args)))
	}
	if len(placeholders) == 0 {
		return "TRUE", args[:field-1]
	}
	clause := fmt.Sprintf("COALESCE(fields -> $%d, 'null'::jsonb) NOT IN (%s)", field, strings.Join(placeholders, ", "))
	return clause, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.Record, error) {
	var (
		rec       models.Record
		fields    []byte
		clocks    []byte
		deletedAt sql.NullTime
	)
	if err := s.Scan(&rec.ID, &rec.AccountID, &fields, &clocks, &rec.CreatedAt, &rec.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}

	rec.Fields = models.Fields{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
		}
	}
	rec.FieldClocks = map[string]time.Time{}
	if len(clocks) > 0 {
		if err := json.Unmarshal(clocks, &rec.FieldClocks); err != nil {
			return nil, fmt.Errorf("decode field clocks of %s: %w", rec.ID, err)
		}
		for k, v := range rec.FieldClocks {
			rec.FieldClocks[k] = timex.Normalize(v)
		}
	}

	rec.CreatedAt = timex.Normalize(rec.CreatedAt)
	rec.UpdatedAt = timex.Normalize(rec.UpdatedAt)
	if deletedAt.Valid {
		d := timex.Normalize(deletedAt.Time)
		rec.DeletedAt = &d
	}
	return &rec, nil
}

func encode(rec *models.Record) ([]byte, []byte, error) {
	fields := rec.Fields
	if fields == nil {
		fields = models.Fields{}
	}
	f, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, common.Invalid("record", "fields are not JSON-serializable: %v", err)
	}
	clocks := rec.FieldClocks
	if clocks == nil {
		clocks = map[string]time.Time{}
	}
	c, err := json.Marshal(clocks)
	if err != nil {
		return nil, nil, err
	}
	return f, c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
