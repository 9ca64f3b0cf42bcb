package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liquidintel/taplist/pkg/fault"
	"github.com/liquidintel/taplist/pkg/observability"
	"github.com/liquidintel/taplist/pkg/storage"
	"github.com/liquidintel/taplist/pkg/untappd"
)

// BeerCatalog enriches keg metadata from an external catalog
type BeerCatalog interface {
	GetBeerInfo(ctx context.Context, beerID int) (*untappd.BeerInfo, error)
}

// Service implements keg inventory operations
type Service struct {
	db      *sql.DB
	catalog BeerCatalog
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates an inventory service. catalog may be nil when the
// external beer catalog is not configured.
func NewService(db *sql.DB, catalog BeerCatalog, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		db:      db,
		catalog: catalog,
		logger:  logger.WithField("component", "inventory"),
		metrics: metrics,
	}
}

const currentKegColumns = `
	ki.tap_id, ki.keg_id, ki.install_date, ki.keg_size, ki.current_volume,
	k.name, k.brewery, k.beer_type, k.abv, k.ibu, k.beer_description,
	k.untappd_id, k.image_path`

// ListCurrentKegs returns the joined current-installation view. A tap-scoped
// query with no current keg is NotFound; the unscoped form returns an empty
// list when no taps are active.
func (s *Service) ListCurrentKegs(ctx context.Context, tapID *int64) ([]CurrentKeg, error) {
	query := `
		SELECT` + currentKegColumns + `
		FROM keg_installs ki
		JOIN kegs k ON k.id = ki.keg_id
		WHERE ki.is_current = true`
	args := []interface{}{}
	if tapID != nil {
		query += ` AND ki.tap_id = $1`
		args = append(args, *tapID)
	}
	query += ` ORDER BY ki.tap_id`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.recordQuery("list_current_kegs", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query current kegs: %w", err)
	}
	defer rows.Close()

	kegs, err := scanCurrentKegs(rows)
	if err != nil {
		return nil, err
	}

	if tapID != nil && len(kegs) == 0 {
		return nil, fault.NotFound("tap", "no current keg on tap %d", *tapID)
	}

	return kegs, nil
}

// InstallKeg retires whatever is current on the tap and installs the keg in
// one transaction, then returns the tap's fresh current view.
func (s *Service) InstallKeg(ctx context.Context, tapID int64, req InstallRequest) ([]CurrentKeg, error) {
	if req.KegID <= 0 {
		return nil, fmt.Errorf("install requires a keg id")
	}
	if req.KegSize <= 0 {
		return nil, fmt.Errorf("install requires a positive keg size")
	}

	start := time.Now()
	err := storage.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE keg_installs
			SET is_current = false
			WHERE tap_id = $1 AND is_current = true`, tapID); err != nil {
			return fmt.Errorf("failed to retire current keg on tap %d: %w", tapID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO keg_installs (tap_id, keg_id, install_date, keg_size, current_volume, is_current)
			VALUES ($1, $2, NOW(), $3, $3, true)`, tapID, req.KegID, req.KegSize); err != nil {
			return fmt.Errorf("failed to install keg %d on tap %d: %w", req.KegID, tapID, err)
		}

		return nil
	})
	s.recordQuery("install_keg", err, start)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.KegInstallsTotal.Inc()
	}
	s.logger.WithFields(map[string]interface{}{
		"tap_id": tapID,
		"keg_id": req.KegID,
	}).Info("keg installed")

	return s.ListCurrentKegs(ctx, &tapID)
}

// FinishKeg retires the tap's current installation without a replacement.
// Zero affected rows means the tap had nothing current.
func (s *Service) FinishKeg(ctx context.Context, tapID int64) error {
	start := time.Now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE keg_installs
		SET is_current = false
		WHERE tap_id = $1 AND is_current = true`, tapID)
	s.recordQuery("finish_keg", err, start)
	if err != nil {
		return fmt.Errorf("failed to finish keg on tap %d: %w", tapID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read finish result for tap %d: %w", tapID, err)
	}
	if affected == 0 {
		return fault.NotFound("tap", "no current keg on tap %d", tapID)
	}

	s.logger.WithField("tap_id", tapID).Info("keg finished")
	return nil
}

// CreateKeg registers a new keg. When the external catalog is configured and
// the keg carries a catalog id, catalog data overrides the submitted fields.
func (s *Service) CreateKeg(ctx context.Context, keg Keg) (*Keg, error) {
	if s.catalog != nil && keg.UntappdID != nil {
		info, err := s.catalog.GetBeerInfo(ctx, int(*keg.UntappdID))
		if err != nil {
			return nil, fault.Upstream("beer catalog", err)
		}
		applyCatalogInfo(&keg, info)
	}

	if keg.Name == "" {
		return nil, fmt.Errorf("keg requires a name")
	}

	start := time.Now()
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO kegs (name, brewery, beer_type, abv, ibu, beer_description, untappd_id, image_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		keg.Name, keg.Brewery, keg.BeerType, keg.ABV, keg.IBU,
		keg.Description, keg.UntappdID, keg.ImagePath,
	).Scan(&id)
	s.recordQuery("create_keg", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to create keg: %w", err)
	}

	created, err := s.getKeg(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("keg_id", id).Info("keg created")
	return created, nil
}

// GetKegs returns one keg by id, or every registered keg when id is nil
func (s *Service) GetKegs(ctx context.Context, kegID *int64) ([]Keg, error) {
	if kegID != nil {
		keg, err := s.getKeg(ctx, *kegID)
		if err != nil {
			return nil, err
		}
		return []Keg{*keg}, nil
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, brewery, beer_type, abv, ibu, beer_description, untappd_id, image_path
		FROM kegs
		ORDER BY id`)
	s.recordQuery("list_kegs", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query kegs: %w", err)
	}
	defer rows.Close()

	var kegs []Keg
	for rows.Next() {
		keg, err := scanKeg(rows)
		if err != nil {
			return nil, err
		}
		kegs = append(kegs, *keg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kegs: %w", err)
	}

	if kegs == nil {
		kegs = []Keg{}
	}
	return kegs, nil
}

func (s *Service) getKeg(ctx context.Context, id int64) (*Keg, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, brewery, beer_type, abv, ibu, beer_description, untappd_id, image_path
		FROM kegs
		WHERE id = $1`, id)

	keg, err := scanKeg(row)
	s.recordQuery("get_keg", err, start)
	if err == sql.ErrNoRows {
		return nil, fault.NotFound("keg", "no keg with id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load keg %d: %w", id, err)
	}
	return keg, nil
}

func (s *Service) recordQuery(operation string, err error, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, err, time.Since(start))
	}
}

// applyCatalogInfo replaces keg metadata with the catalog record. Every
// overlapping field takes the catalog value, zeros and empty strings
// included; the catalog is authoritative once a catalog id is supplied.
func applyCatalogInfo(keg *Keg, info *untappd.BeerInfo) {
	keg.Name = info.Name
	keg.Brewery = info.Brewery
	keg.BeerType = info.Style
	keg.ABV = info.ABV
	keg.IBU = info.IBU
	keg.Description = info.Description
	keg.ImagePath = &info.LabelImage
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanKeg(row rowScanner) (*Keg, error) {
	var (
		keg         Keg
		abv, ibu    sql.NullFloat64
		description sql.NullString
		untappdID   sql.NullInt64
		imagePath   sql.NullString
	)
	err := row.Scan(&keg.ID, &keg.Name, &keg.Brewery, &keg.BeerType,
		&abv, &ibu, &description, &untappdID, &imagePath)
	if err != nil {
		return nil, err
	}

	keg.ABV = abv.Float64
	keg.IBU = ibu.Float64
	keg.Description = description.String
	if untappdID.Valid {
		keg.UntappdID = &untappdID.Int64
	}
	if imagePath.Valid {
		keg.ImagePath = &imagePath.String
	}
	return &keg, nil
}

func scanCurrentKegs(rows *sql.Rows) ([]CurrentKeg, error) {
	kegs := []CurrentKeg{}
	for rows.Next() {
		var (
			ck          CurrentKeg
			abv, ibu    sql.NullFloat64
			description sql.NullString
			untappdID   sql.NullInt64
			imagePath   sql.NullString
		)
		if err := rows.Scan(&ck.TapID, &ck.KegID, &ck.InstallDate, &ck.KegSize, &ck.CurrentVolume,
			&ck.Name, &ck.Brewery, &ck.BeerType, &abv, &ibu, &description,
			&untappdID, &imagePath); err != nil {
			return nil, fmt.Errorf("failed to scan current keg row: %w", err)
		}
		ck.ABV = abv.Float64
		ck.IBU = ibu.Float64
		ck.Description = description.String
		if untappdID.Valid {
			ck.UntappdID = &untappdID.Int64
		}
		if imagePath.Valid {
			ck.ImagePath = &imagePath.String
		}
		kegs = append(kegs, ck)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate current kegs: %w", err)
	}
	return kegs, nil
}
