package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAPIKey(t *testing.T) {
	query := "SELECT client_id, api_key FROM authorized_clients"

	t.Run("passes through with valid credentials", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(query).
			WithArgs("kiosk", "s3cret").
			WillReturnRows(sqlmock.NewRows([]string{"client_id", "api_key"}).
				AddRow("kiosk", "s3cret"))

		verifier := NewAPIKeyVerifier(db, testLogger(), nil)
		handler := RequireAPIKey(verifier, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/kegs", nil)
		req.SetBasicAuth("kiosk", "s3cret")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing credentials get a challenge", func(t *testing.T) {
		db, _ := setupMockDB(t)
		defer db.Close()

		verifier := NewAPIKeyVerifier(db, testLogger(), nil)
		handler := RequireAPIKey(verifier, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/kegs", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("bad credentials rejected", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectQuery(query).
			WithArgs("kiosk", "wrong").
			WillReturnRows(sqlmock.NewRows([]string{"client_id", "api_key"}))

		verifier := NewAPIKeyVerifier(db, testLogger(), nil)
		handler := RequireAPIKey(verifier, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/kegs", nil)
		req.SetBasicAuth("kiosk", "wrong")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireBearer(t *testing.T) {
	t.Run("principal lands in context", func(t *testing.T) {
		validator := &fakeValidator{claims: &Claims{ObjectID: "oid-1", UPN: "admin@example.com"}}
		verifier := NewBearerVerifier(validator, &fakeAdminChecker{isAdmin: true}, testLogger(), nil)

		var seen *Principal
		handler := RequireBearer(verifier, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/kegs", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "admin@example.com", seen.UPN)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		verifier := NewBearerVerifier(&fakeValidator{}, &fakeAdminChecker{}, testLogger(), nil)
		handler := RequireBearer(verifier, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/kegs", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("basic header is not a bearer token", func(t *testing.T) {
		verifier := NewBearerVerifier(&fakeValidator{}, &fakeAdminChecker{}, testLogger(), nil)
		handler := RequireBearer(verifier, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/kegs", nil)
		req.SetBasicAuth("kiosk", "s3cret")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		validator := &fakeValidator{claims: &Claims{ObjectID: "oid-2"}}
		verifier := NewBearerVerifier(validator, &fakeAdminChecker{isAdmin: false}, testLogger(), nil)
		handler := RequireBearer(verifier, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/kegs", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPrincipalFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, PrincipalFromContext(req.Context()))
}
