// Package activity reports pour sessions joined with keg and person metadata.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/liquidintel/taplist/pkg/observability"
)

// Record is a pour session joined with its keg and drinker
type Record struct {
	SessionID       int64     `json:"SessionId"`
	PourTime        time.Time `json:"PourTime"`
	PourAmount      float64   `json:"PourAmount"`
	BeerName        string    `json:"BeerName"`
	Brewery         string    `json:"Brewery"`
	BeerType        string    `json:"BeerType"`
	ABV             float64   `json:"ABV"`
	IBU             float64   `json:"IBU"`
	BeerDescription string    `json:"BeerDescription"`
	UntappdID       *int64    `json:"UntappdId"`
	BeerImagePath   *string   `json:"BeerImagePath"`
	PersonnelNumber int64     `json:"PersonnelNumber"`
	Alias           string    `json:"Alias"`
	FullName        string    `json:"FullName"`
}

// NewSession is a pour event to record
type NewSession struct {
	TapID           int64      `json:"TapId"`
	KegID           int64      `json:"KegId"`
	PersonnelNumber int64      `json:"PersonnelNumber"`
	PourAmount      float64    `json:"PourAmount"`
	PourTime        *time.Time `json:"PourTime"`
}

// Filter narrows an activity listing. Only the fields here are filterable;
// request parameters outside this set are rejected at the edge rather than
// translated into SQL.
type Filter struct {
	SessionID       *int64
	PersonnelNumber *int64
	TapID           *int64
	Since           *time.Time
	Until           *time.Time
	Limit           int
}

// Service implements activity reporting
type Service struct {
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates an activity service
func NewService(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		db:      db,
		logger:  logger.WithField("component", "activity"),
		metrics: metrics,
	}
}

const recordColumns = `
	po.id, po.pour_time, po.pour_amount,
	k.name, k.brewery, k.beer_type, k.abv, k.ibu, k.beer_description,
	k.untappd_id, k.image_path,
	p.personnel_number, p.email_name, p.full_name`

// ListActivity returns pour records matching the filter, newest first. A
// session-id filter that matches nothing yields an empty list, not an error.
func (s *Service) ListActivity(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
		SELECT` + recordColumns + `
		FROM pours po
		JOIN kegs k ON k.id = po.keg_id
		JOIN people p ON p.personnel_number = po.personnel_number`

	var (
		conditions []string
		args       []interface{}
	)
	appendCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, clause+" $"+strconv.Itoa(len(args)))
	}

	if filter.SessionID != nil {
		appendCondition("po.id =", *filter.SessionID)
	}
	if filter.PersonnelNumber != nil {
		appendCondition("po.personnel_number =", *filter.PersonnelNumber)
	}
	if filter.TapID != nil {
		appendCondition("po.tap_id =", *filter.TapID)
	}
	if filter.Since != nil {
		appendCondition("po.pour_time >=", *filter.Since)
	}
	if filter.Until != nil {
		appendCondition("po.pour_time <=", *filter.Until)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY po.pour_time DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.recordQuery("list_activity", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CreateSession records a pour event and returns the stored record
func (s *Service) CreateSession(ctx context.Context, session NewSession) (*Record, error) {
	if session.TapID <= 0 || session.KegID <= 0 {
		return nil, fmt.Errorf("session requires a tap and keg id")
	}
	if session.PersonnelNumber <= 0 {
		return nil, fmt.Errorf("session requires a personnel number")
	}

	pourTime := time.Now().UTC()
	if session.PourTime != nil {
		pourTime = *session.PourTime
	}

	start := time.Now()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pours (tap_id, keg_id, personnel_number, pour_amount, pour_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		session.TapID, session.KegID, session.PersonnelNumber,
		session.PourAmount, pourTime,
	).Scan(&id)
	s.recordQuery("create_session", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to record pour session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.PoursTotal.Inc()
	}
	s.logger.WithFields(map[string]interface{}{
		"session_id": id,
		"tap_id":     session.TapID,
	}).Info("pour session recorded")

	records, err := s.ListActivity(ctx, Filter{SessionID: &id})
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("failed to read back session %d", id)
	}
	return &records[0], nil
}

func (s *Service) recordQuery(operation string, err error, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, err, time.Since(start))
	}
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		var (
			rec         Record
			abv, ibu    sql.NullFloat64
			description sql.NullString
			untappdID   sql.NullInt64
			imagePath   sql.NullString
		)
		if err := rows.Scan(&rec.SessionID, &rec.PourTime, &rec.PourAmount,
			&rec.BeerName, &rec.Brewery, &rec.BeerType, &abv, &ibu, &description,
			&untappdID, &imagePath,
			&rec.PersonnelNumber, &rec.Alias, &rec.FullName); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		rec.ABV = abv.Float64
		rec.IBU = ibu.Float64
		rec.BeerDescription = description.String
		if untappdID.Valid {
			rec.UntappdID = &untappdID.Int64
		}
		if imagePath.Valid {
			rec.BeerImagePath = &imagePath.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity rows: %w", err)
	}
	return records, nil
}
