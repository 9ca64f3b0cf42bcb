package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/liquidintel/taplist/pkg/observability"
)

// Maintenance runs background upkeep: it keeps the pool gauges fresh and
// periodically reconciles each current keg's volume against its recorded
// pours.
type Maintenance struct {
	db      *sql.DB
	cron    *cron.Cron
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewMaintenance creates the background maintenance scheduler
func NewMaintenance(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *Maintenance {
	return &Maintenance{
		db:      db,
		cron:    cron.New(),
		logger:  logger.WithField("component", "maintenance"),
		metrics: metrics,
	}
}

// Start schedules the maintenance jobs and starts the scheduler
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("@every 30s", m.collectPoolStats); err != nil {
		return fmt.Errorf("failed to schedule pool stats job: %w", err)
	}

	if _, err := m.cron.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := m.ReconcileVolumes(ctx); err != nil {
			m.logger.WithError(err).Error("volume reconciliation failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}

	m.cron.Start()
	m.logger.Info("maintenance scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("maintenance scheduler stopped")
}

// collectPoolStats publishes connection pool statistics
func (m *Maintenance) collectPoolStats() {
	if m.metrics == nil {
		return
	}
	stats := m.db.Stats()
	m.metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.metrics.DBConnectionsIdle.Set(float64(stats.Idle))
}

// ReconcileVolumes recomputes current_volume for every current installation
// from the pours recorded since its install date. Flow meters drift and pour
// rows can arrive late, so the stored volume is treated as a cache of this
// derivation.
func (m *Maintenance) ReconcileVolumes(ctx context.Context) error {
	start := time.Now()
	result, err := m.db.ExecContext(ctx, `
		UPDATE keg_installs ki
		SET current_volume = GREATEST(ki.keg_size - COALESCE((
			SELECT SUM(po.pour_amount)
			FROM pours po
			WHERE po.tap_id = ki.tap_id
			  AND po.keg_id = ki.keg_id
			  AND po.pour_time >= ki.install_date
		), 0), 0)
		WHERE ki.is_current = true`)
	if m.metrics != nil {
		m.metrics.RecordDBQuery("reconcile_volumes", err, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("failed to reconcile keg volumes: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil {
		m.logger.WithField("taps", affected).Debug("keg volumes reconciled")
	}
	return nil
}
