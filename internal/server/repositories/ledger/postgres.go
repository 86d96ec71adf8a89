package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/goccy/go-json"
)

// PostgresRepository implements the ledger over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `account_id, mutation_id, entity, record_id, outcome, result, applied_at`

func (r *PostgresRepository) Get(ctx context.Context, accountID, mutationID string) (*models.ProcessedMutation, error) {
	query := `SELECT ` + columns + ` FROM processed_mutations WHERE account_id = $1 AND mutation_id = $2`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, accountID, mutationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorStorage, err)
	}
	return e, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, e *models.ProcessedMutation) (bool, error) {
	result, err := json.Marshal(e.Result)
	if err != nil {
		return false, fmt.Errorf("encode result: %w", err)
	}

	query := `INSERT INTO processed_mutations (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, mutation_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		e.AccountID, e.MutationID, e.Entity, e.RecordID, string(e.Outcome), result, e.AppliedAt)
	if err != nil {
		return false, fmt.Errorf("%w: db error: %w", common.ErrorStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected error: %w", common.ErrorStorage, err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) ListExpired(ctx context.Context, before time.Time, after *Key, limit int) ([]*models.ProcessedMutation, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		query := `SELECT ` + columns + ` FROM processed_mutations
			WHERE applied_at < $1
			ORDER BY applied_at, account_id, mutation_id LIMIT $2`
		rows, err = r.db.QueryContext(ctx, query, before, limit)
	} else {
		query := `SELECT ` + columns + ` FROM processed_mutations
			WHERE applied_at < $1 AND (applied_at, account_id, mutation_id) > ($2, $3, $4)
			ORDER BY applied_at, account_id, mutation_id LIMIT $5`
		rows, err = r.db.QueryContext(ctx, query, before, after.AppliedAt, after.AccountID, after.MutationID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorStorage, err)
	}
	defer rows.Close()

	var result []*models.ProcessedMutation
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan error: %w", common.ErrorStorage, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows error: %w", common.ErrorStorage, err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time, through Key) (int64, error) {
	query := `DELETE FROM processed_mutations
		WHERE applied_at < $1 AND (applied_at, account_id, mutation_id) <= ($2, $3, $4)`

	res, err := r.db.ExecContext(ctx, query, before, through.AppliedAt, through.AccountID, through.MutationID)
	if err != nil {
		return 0, fmt.Errorf("%w: db error: %w", common.ErrorStorage, err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.ProcessedMutation, error) {
	var (
		e       models.ProcessedMutation
		outcome string
		result  []byte
	)
	if err := s.Scan(&e.AccountID, &e.MutationID, &e.Entity, &e.RecordID, &outcome, &result, &e.AppliedAt); err != nil {
		return nil, err
	}
	e.Outcome = models.Outcome(outcome)
	e.AppliedAt = timex.Normalize(e.AppliedAt)
	if err := json.Unmarshal(result, &e.Result); err != nil {
		return nil, fmt.Errorf("decode result of %s: %w", e.MutationID, err)
	}
	return &e, nil
}
