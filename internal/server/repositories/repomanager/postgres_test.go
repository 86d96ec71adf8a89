package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/server/repositories/records"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)
	var _ RepositoryManager = m

	_, err = NewPostgresRepositoryManager(nil)
	require.Error(t, err)
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := &PostgresRepositoryManager{db: db}
	repos := m.Repositories()

	var _ records.Repository = repos.Records("clients")
	var _ ledger.Repository = repos.Ledger()
	assert.IsType(t, &records.PostgresRepository{}, repos.Records("invoices"))
	assert.IsType(t, &ledger.PostgresRepository{}, repos.Ledger())
}

func TestWithTx_CommitsAndUsesTransaction(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM\s+processed_mutations`).WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	m := &PostgresRepositoryManager{db: db}
	err := m.WithTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		_, err := repos.Ledger().Get(ctx, "acc", "m1")
		require.ErrorIs(t, err, common.ErrorNotFound)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RetriesVersionConflict(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	for i := 0; i < txAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	m := &PostgresRepositoryManager{db: db}
	calls := 0
	err := m.WithTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		calls++
		return common.ErrVersionConflict
	})
	require.ErrorIs(t, err, common.ErrVersionConflict)
	assert.Equal(t, txAttempts, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_DoesNotRetryOtherErrors(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	m := &PostgresRepositoryManager{db: db}
	boom := errors.New("boom")
	calls := 0
	err := m.WithTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{db: db}
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestOpenPostgres_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("refused"))
	mock.ExpectClose()

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driver)
		return db, nil
	}
	defer func() { sqlOpen = orig }()

	_, err = OpenPostgres(context.Background(), "postgres://x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db ping error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenPostgres_OK(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) { return db, nil }
	defer func() { sqlOpen = orig }()

	m, err := OpenPostgres(context.Background(), "postgres://x")
	require.NoError(t, err)
	assert.IsType(t, &PostgresRepositoryManager{}, m)

	mock.ExpectClose()
	require.NoError(t, m.Close())
}

