package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidintel/taplist/pkg/observability"
)

func TestReconcileVolumes(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	t.Run("updates current installations", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE keg_installs ki").
			WillReturnResult(sqlmock.NewResult(0, 3))

		m := NewMaintenance(db, logger, nil)
		assert.NoError(t, m.ReconcileVolumes(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates statement failures", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE keg_installs ki").
			WillReturnError(errors.New("deadlock detected"))

		m := NewMaintenance(db, logger, nil)
		assert.Error(t, m.ReconcileVolumes(context.Background()))
	})
}
