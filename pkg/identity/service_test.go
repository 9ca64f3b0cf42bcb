package identity

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

type fakeMembership struct {
	isMember  bool
	err       error
	principal string
}

func (f *fakeMembership) IsMember(ctx context.Context, principal string) (bool, error) {
	f.principal = principal
	return f.isMember, f.err
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newService(t *testing.T, membership MembershipChecker) (*Service, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewService(db, membership, "example.com", testLogger(), nil), mock, db
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"personnel_number", "user_principal_name", "untappd_access_token",
		"checkin_facebook", "checkin_twitter", "checkin_foursquare",
		"full_name", "first_name", "last_name",
	})
}

func TestResolvePersonByCardID(t *testing.T) {
	t.Run("member of an authorized group", func(t *testing.T) {
		membership := &fakeMembership{isMember: true}
		svc, mock, db := newService(t, membership)
		defer db.Close()

		mock.ExpectQuery("FROM card_mappings c").
			WithArgs(int64(12345)).
			WillReturnRows(sqlmock.NewRows([]string{"personnel_number", "email_name", "full_name"}).
				AddRow(1001, "jdoe", "Jordan Doe"))

		person, err := svc.ResolvePersonByCardID(context.Background(), 12345)
		require.NoError(t, err)

		assert.Equal(t, int64(1001), person.PersonnelNumber)
		assert.True(t, person.Valid)
		assert.Equal(t, "Jordan Doe", person.FullName)
		assert.Equal(t, "jdoe@example.com", membership.principal)
	})

	t.Run("known badge outside the groups is invalid but found", func(t *testing.T) {
		membership := &fakeMembership{isMember: false}
		svc, mock, db := newService(t, membership)
		defer db.Close()

		mock.ExpectQuery("FROM card_mappings c").
			WithArgs(int64(12345)).
			WillReturnRows(sqlmock.NewRows([]string{"personnel_number", "email_name", "full_name"}).
				AddRow(1001, "jdoe", "Jordan Doe"))

		person, err := svc.ResolvePersonByCardID(context.Background(), 12345)
		require.NoError(t, err)
		assert.False(t, person.Valid)
	})

	t.Run("unknown badge is not found", func(t *testing.T) {
		svc, mock, db := newService(t, &fakeMembership{})
		defer db.Close()

		mock.ExpectQuery("FROM card_mappings c").
			WithArgs(int64(999)).
			WillReturnRows(sqlmock.NewRows([]string{"personnel_number", "email_name", "full_name"}))

		_, err := svc.ResolvePersonByCardID(context.Background(), 999)
		assert.True(t, fault.IsNotFound(err))
	})

	t.Run("duplicate mappings are not found", func(t *testing.T) {
		svc, mock, db := newService(t, &fakeMembership{})
		defer db.Close()

		mock.ExpectQuery("FROM card_mappings c").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"personnel_number", "email_name", "full_name"}).
				AddRow(1001, "jdoe", "Jordan Doe").
				AddRow(1002, "asmith", "Alex Smith"))

		_, err := svc.ResolvePersonByCardID(context.Background(), 7)
		assert.True(t, fault.IsNotFound(err))
	})

	t.Run("directory failure is upstream", func(t *testing.T) {
		membership := &fakeMembership{err: errors.New("graph timeout")}
		svc, mock, db := newService(t, membership)
		defer db.Close()

		mock.ExpectQuery("FROM card_mappings c").
			WithArgs(int64(12345)).
			WillReturnRows(sqlmock.NewRows([]string{"personnel_number", "email_name", "full_name"}).
				AddRow(1001, "jdoe", "Jordan Doe"))

		_, err := svc.ResolvePersonByCardID(context.Background(), 12345)
		assert.True(t, fault.IsUpstream(err))
	})
}

func TestGetUserDetails(t *testing.T) {
	t.Run("all users", func(t *testing.T) {
		svc, mock, db := newService(t, nil)
		defer db.Close()

		mock.ExpectQuery("FROM users u").
			WillReturnRows(userRows().
				AddRow(1001, "jdoe@example.com", "token-1", true, false, false, "Jordan Doe", "Jordan", "Doe").
				AddRow(1002, "asmith@example.com", nil, false, false, true, "Alex Smith", "Alex", "Smith"))

		users, err := svc.GetUserDetails(context.Background(), "")
		require.NoError(t, err)
		require.Len(t, users, 2)

		require.NotNil(t, users[0].UntappdAccessToken)
		assert.Equal(t, "token-1", *users[0].UntappdAccessToken)
		assert.Nil(t, users[1].UntappdAccessToken)
	})

	t.Run("by principal name", func(t *testing.T) {
		svc, mock, db := newService(t, nil)
		defer db.Close()

		mock.ExpectQuery("FROM users u").
			WithArgs("jdoe@example.com").
			WillReturnRows(userRows().
				AddRow(1001, "jdoe@example.com", nil, false, false, false, "Jordan Doe", "Jordan", "Doe"))

		users, err := svc.GetUserDetails(context.Background(), "jdoe@example.com")
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "Jordan Doe", users[0].FullName)
	})

	t.Run("falls back to the person table with default preferences", func(t *testing.T) {
		svc, mock, db := newService(t, nil)
		defer db.Close()

		mock.ExpectQuery("FROM users u").
			WithArgs("jdoe@example.com").
			WillReturnRows(userRows())
		mock.ExpectQuery("FROM people").
			WithArgs("jdoe").
			WillReturnRows(sqlmock.NewRows([]string{"personnel_number", "email_name", "full_name", "first_name", "last_name"}).
				AddRow(1001, "jdoe", "Jordan Doe", "Jordan", "Doe"))

		users, err := svc.GetUserDetails(context.Background(), "jdoe@example.com")
		require.NoError(t, err)
		require.Len(t, users, 1)

		assert.Equal(t, int64(1001), users[0].PersonnelNumber)
		assert.Nil(t, users[0].UntappdAccessToken)
		assert.False(t, users[0].CheckinFacebook)
		assert.False(t, users[0].CheckinTwitter)
		assert.False(t, users[0].CheckinFoursquare)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		svc, mock, db := newService(t, nil)
		defer db.Close()

		mock.ExpectQuery("FROM users u").
			WithArgs("ghost@example.com").
			WillReturnRows(userRows())
		mock.ExpectQuery("FROM people").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := svc.GetUserDetails(context.Background(), "ghost@example.com")
		assert.True(t, fault.IsNotFound(err))
	})
}

func TestUpsertUserDetails(t *testing.T) {
	t.Run("merge then read back", func(t *testing.T) {
		svc, mock, db := newService(t, nil)
		defer db.Close()

		token := "new-token"
		mock.ExpectExec("INSERT INTO users").
			WithArgs(int64(1001), "jdoe@example.com", &token, true, false, false).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM users u").
			WithArgs("jdoe@example.com").
			WillReturnRows(userRows().
				AddRow(1001, "jdoe@example.com", "new-token", true, false, false, "Jordan Doe", "Jordan", "Doe"))

		users, err := svc.UpsertUserDetails(context.Background(), "jdoe@example.com", UserUpdate{
			PersonnelNumber:    1001,
			UntappdAccessToken: &token,
			CheckinFacebook:    true,
		})
		require.NoError(t, err)
		require.Len(t, users, 1)
		require.NotNil(t, users[0].UntappdAccessToken)
		assert.Equal(t, "new-token", *users[0].UntappdAccessToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects missing personnel number", func(t *testing.T) {
		svc, _, db := newService(t, nil)
		defer db.Close()

		_, err := svc.UpsertUserDetails(context.Background(), "jdoe@example.com", UserUpdate{})
		require.Error(t, err)
	})
}
