package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestRunInTx_Commit(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE keg_installs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := RunInTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE keg_installs SET is_current = false WHERE tap_id = $1", 1)
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	boom := errors.New("insert failed")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE keg_installs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO keg_installs").WillReturnError(boom)
	mock.ExpectRollback()

	err := RunInTx(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("UPDATE keg_installs SET is_current = false WHERE tap_id = $1", 1); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO keg_installs (tap_id) VALUES ($1)", 1)
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_BeginFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no connections"))

	err := RunInTx(context.Background(), db, func(tx *sql.Tx) error {
		t.Fatal("fn must not run when begin fails")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		RunInTx(context.Background(), db, func(tx *sql.Tx) error {
			panic("handler bug")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}
