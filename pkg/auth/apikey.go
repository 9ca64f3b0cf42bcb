// Package auth implements the two credential verifiers used by the API:
// static client-id/api-key pairs for general clients and directory-backed
// bearer tokens for administrative operations.
package auth

import (
	"context"
	"database/sql"

	"github.com/liquidintel/taplist/pkg/fault"
	"github.com/liquidintel/taplist/pkg/observability"
)

// APIKeyVerifier checks client-id/api-key pairs against the
// authorized_clients table. It fails closed: zero rows, multiple rows, a
// field mismatch and a lookup error all produce the same Unauthorized result.
type APIKeyVerifier struct {
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAPIKeyVerifier creates an API key verifier backed by the database
func NewAPIKeyVerifier(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *APIKeyVerifier {
	return &APIKeyVerifier{
		db:      db,
		logger:  logger.WithField("component", "apikey-verifier"),
		metrics: metrics,
	}
}

// Verify checks the supplied credentials. A nil return means authenticated.
func (v *APIKeyVerifier) Verify(ctx context.Context, clientID, apiKey string) error {
	err := v.verify(ctx, clientID, apiKey)
	if v.metrics != nil {
		v.metrics.RecordAuthAttempt("basic", err == nil)
	}
	return err
}

func (v *APIKeyVerifier) verify(ctx context.Context, clientID, apiKey string) error {
	if clientID == "" || apiKey == "" {
		return fault.Unauthorized("missing credentials")
	}

	query := `
		SELECT client_id, api_key
		FROM authorized_clients
		WHERE client_id = $1 AND api_key = $2
	`

	rows, err := v.db.QueryContext(ctx, query, clientID, apiKey)
	if err != nil {
		v.logger.WithError(err).Warn("api key lookup failed")
		return fault.Unauthorized("credential lookup failed")
	}
	defer rows.Close()

	var storedID, storedKey string
	count := 0
	for rows.Next() {
		if err := rows.Scan(&storedID, &storedKey); err != nil {
			v.logger.WithError(err).Warn("api key row scan failed")
			return fault.Unauthorized("credential lookup failed")
		}
		count++
	}
	if err := rows.Err(); err != nil {
		v.logger.WithError(err).Warn("api key row iteration failed")
		return fault.Unauthorized("credential lookup failed")
	}

	// Exactly one row, and both fields must compare equal. A row returned
	// for the right client but a different key never authenticates.
	if count != 1 || storedID != clientID || storedKey != apiKey {
		return fault.Unauthorized("invalid client_id or api_key")
	}

	return nil
}
