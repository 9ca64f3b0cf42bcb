package auth

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidintel/taplist/pkg/fault"
	"github.com/liquidintel/taplist/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestAPIKeyVerifier_Verify(t *testing.T) {
	query := "SELECT client_id, api_key FROM authorized_clients"

	t.Run("valid credentials", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(query).
			WithArgs("kiosk", "s3cret").
			WillReturnRows(sqlmock.NewRows([]string{"client_id", "api_key"}).
				AddRow("kiosk", "s3cret"))

		v := NewAPIKeyVerifier(db, testLogger(), nil)
		assert.NoError(t, v.Verify(context.Background(), "kiosk", "s3cret"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no matching row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(query).
			WithArgs("kiosk", "wrong").
			WillReturnRows(sqlmock.NewRows([]string{"client_id", "api_key"}))

		v := NewAPIKeyVerifier(db, testLogger(), nil)
		err := v.Verify(context.Background(), "kiosk", "wrong")
		assert.True(t, fault.IsUnauthorized(err))
	})

	t.Run("multiple rows fail closed", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(query).
			WithArgs("kiosk", "s3cret").
			WillReturnRows(sqlmock.NewRows([]string{"client_id", "api_key"}).
				AddRow("kiosk", "s3cret").
				AddRow("kiosk", "s3cret"))

		v := NewAPIKeyVerifier(db, testLogger(), nil)
		err := v.Verify(context.Background(), "kiosk", "s3cret")
		assert.True(t, fault.IsUnauthorized(err))
	})

	t.Run("lookup error fails closed", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(query).
			WithArgs("kiosk", "s3cret").
			WillReturnError(errors.New("connection reset"))

		v := NewAPIKeyVerifier(db, testLogger(), nil)
		err := v.Verify(context.Background(), "kiosk", "s3cret")
		assert.True(t, fault.IsUnauthorized(err))
	})

	t.Run("missing credentials", func(t *testing.T) {
		db, _ := setupMockDB(t)
		defer db.Close()

		v := NewAPIKeyVerifier(db, testLogger(), nil)
		assert.True(t, fault.IsUnauthorized(v.Verify(context.Background(), "", "")))
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(query).
			WithArgs("kiosk", "wrong").
			WillReturnRows(sqlmock.NewRows([]string{"client_id", "api_key"}))
		mock.ExpectQuery(query).
			WithArgs("ghost", "whatever").
			WillReturnRows(sqlmock.NewRows([]string{"client_id", "api_key"}))

		v := NewAPIKeyVerifier(db, testLogger(), nil)
		errMismatch := v.Verify(context.Background(), "kiosk", "wrong")
		errNoRow := v.Verify(context.Background(), "ghost", "whatever")
		assert.Equal(t, errMismatch.Error(), errNoRow.Error())
	})
}
