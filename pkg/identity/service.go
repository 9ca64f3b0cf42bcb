// Package identity resolves badge card ids to people and manages user
// preference records.
package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/liquidintel/taplist/pkg/fault"
	"github.com/liquidintel/taplist/pkg/observability"
)

// PersonValidation is the badge-swipe answer sent to kiosks
type PersonValidation struct {
	PersonnelNumber int64  `json:"PersonnelNumber"`
	Valid           bool   `json:"Valid"`
	FullName        string `json:"FullName"`
}

// UserDetail is a user preference record joined with person data
type UserDetail struct {
	PersonnelNumber    int64   `json:"PersonnelNumber"`
	UserPrincipalName  string  `json:"UserPrincipalName"`
	UntappdAccessToken *string `json:"UntappdAccessToken"`
	CheckinFacebook    bool    `json:"CheckinFacebook"`
	CheckinTwitter     bool    `json:"CheckinTwitter"`
	CheckinFoursquare  bool    `json:"CheckinFoursquare"`
	FullName           string  `json:"FullName"`
	FirstName          string  `json:"FirstName"`
	LastName           string  `json:"LastName"`
}

// UserUpdate is the writable subset of a user record
type UserUpdate struct {
	PersonnelNumber    int64   `json:"PersonnelNumber"`
	UntappdAccessToken *string `json:"UntappdAccessToken"`
	CheckinFacebook    bool    `json:"CheckinFacebook"`
	CheckinTwitter     bool    `json:"CheckinTwitter"`
	CheckinFoursquare  bool    `json:"CheckinFoursquare"`
}

// MembershipChecker answers directory group-membership questions
type MembershipChecker interface {
	IsMember(ctx context.Context, principal string) (bool, error)
}

// Service implements identity operations
type Service struct {
	db         *sql.DB
	membership MembershipChecker
	tenant     string
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewService creates an identity service. tenant is the directory domain used
// to build a principal name from a person's mail alias.
func NewService(db *sql.DB, membership MembershipChecker, tenant string, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		db:         db,
		membership: membership,
		tenant:     tenant,
		logger:     logger.WithField("component", "identity"),
		metrics:    metrics,
	}
}

// ResolvePersonByCardID maps a badge card id to a person and checks their
// directory membership. Anything other than exactly one mapping row is
// NotFound.
func (s *Service) ResolvePersonByCardID(ctx context.Context, cardID int64) (*PersonValidation, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.personnel_number, p.email_name, p.full_name
		FROM card_mappings c
		JOIN people p ON p.personnel_number = c.personnel_number
		WHERE c.card_key = $1`, cardID)
	s.recordQuery("resolve_card", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query card mapping: %w", err)
	}
	defer rows.Close()

	var (
		personnelNumber int64
		emailName       string
		fullName        string
		count           int
	)
	for rows.Next() {
		if err := rows.Scan(&personnelNumber, &emailName, &fullName); err != nil {
			return nil, fmt.Errorf("failed to scan card mapping: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card mappings: %w", err)
	}
	if count != 1 {
		return nil, fault.NotFound("person", "no person found having card id %d", cardID)
	}

	principal := fmt.Sprintf("%s@%s", emailName, s.tenant)
	valid, err := s.membership.IsMember(ctx, principal)
	if err != nil {
		return nil, fault.Upstream("directory", err)
	}

	return &PersonValidation{
		PersonnelNumber: personnelNumber,
		Valid:           valid,
		FullName:        fullName,
	}, nil
}

const userDetailQuery = `
	SELECT u.personnel_number, u.user_principal_name, u.untappd_access_token,
		u.checkin_facebook, u.checkin_twitter, u.checkin_foursquare,
		p.full_name, p.first_name, p.last_name
	FROM users u
	JOIN people p ON p.personnel_number = u.personnel_number`

// GetUserDetails returns all users when upn is empty, otherwise the single
// matching user. A UPN with no user record falls back to the bare person row
// looked up by mail alias, with preferences at their defaults.
func (s *Service) GetUserDetails(ctx context.Context, upn string) ([]UserDetail, error) {
	query := userDetailQuery
	args := []interface{}{}
	if upn != "" {
		query += ` WHERE u.user_principal_name = $1`
		args = append(args, upn)
	}
	query += ` ORDER BY p.full_name`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.recordQuery("get_user_details", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users, err := scanUserDetails(rows)
	if err != nil {
		return nil, err
	}

	if upn == "" {
		return users, nil
	}
	if len(users) > 0 {
		return users[:1], nil
	}

	fallback, err := s.personFallback(ctx, upn)
	if err != nil {
		return nil, err
	}
	return []UserDetail{*fallback}, nil
}

// personFallback projects a bare person row as a user with default
// preferences, keyed by the local part of the principal name.
func (s *Service) personFallback(ctx context.Context, upn string) (*UserDetail, error) {
	alias := strings.SplitN(upn, "@", 2)[0]

	start := time.Now()
	row := s.db.QueryRowContext(ctx, `
		SELECT personnel_number, email_name, full_name, first_name, last_name
		FROM people
		WHERE email_name = $1`, alias)

	var detail UserDetail
	var emailName string
	err := row.Scan(&detail.PersonnelNumber, &emailName, &detail.FullName,
		&detail.FirstName, &detail.LastName)
	s.recordQuery("person_fallback", err, start)
	if err == sql.ErrNoRows {
		return nil, fault.NotFound("user", "user %s does not exist", upn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load person %s: %w", alias, err)
	}

	detail.UserPrincipalName = emailName
	return &detail, nil
}

// UpsertUserDetails merges the update by personnel number and returns the
// stored record.
func (s *Service) UpsertUserDetails(ctx context.Context, upn string, update UserUpdate) ([]UserDetail, error) {
	if update.PersonnelNumber <= 0 {
		return nil, fmt.Errorf("user update requires a personnel number")
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (personnel_number, user_principal_name, untappd_access_token,
			checkin_facebook, checkin_twitter, checkin_foursquare)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (personnel_number) DO UPDATE SET
			untappd_access_token = EXCLUDED.untappd_access_token,
			checkin_facebook = EXCLUDED.checkin_facebook,
			checkin_twitter = EXCLUDED.checkin_twitter,
			checkin_foursquare = EXCLUDED.checkin_foursquare`,
		update.PersonnelNumber, upn, update.UntappdAccessToken,
		update.CheckinFacebook, update.CheckinTwitter, update.CheckinFoursquare)
	s.recordQuery("upsert_user", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", upn, err)
	}

	s.logger.WithField("upn", upn).Info("user preferences updated")
	return s.GetUserDetails(ctx, upn)
}

func (s *Service) recordQuery(operation string, err error, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, err, time.Since(start))
	}
}

func scanUserDetails(rows *sql.Rows) ([]UserDetail, error) {
	users := []UserDetail{}
	for rows.Next() {
		var detail UserDetail
		var token sql.NullString
		if err := rows.Scan(&detail.PersonnelNumber, &detail.UserPrincipalName, &token,
			&detail.CheckinFacebook, &detail.CheckinTwitter, &detail.CheckinFoursquare,
			&detail.FullName, &detail.FirstName, &detail.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		if token.Valid {
			detail.UntappdAccessToken = &token.String
		}
		users = append(users, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}
