package zone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/db"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const zoneColumns = `id, source, category, location_name, lat, lon,
	priority_score, last_scraped_at, is_locked, locked_at,
	times_scraped, total_records_found, is_active, created_at`

// LeaseNext locks and returns the best zone in one statement. The inner
// SELECT picks the winner under FOR UPDATE SKIP LOCKED, so two concurrent
// callers race on row locks rather than on the is_locked flag and can
// never lease the same zone.
func (s *PostgresStore) LeaseNext(ctx context.Context) (*model.Zone, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE zones SET is_locked = true, locked_at = now()
		WHERE id = (
			SELECT id FROM zones
			WHERE is_active AND NOT is_locked
			ORDER BY priority_score DESC, last_scraped_at ASC NULLS FIRST
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+zoneColumns)

	zone, err := scanZone(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "zone: lease next")
	}
	return zone, nil
}

// Release unlocks the zone and applies the outcome bookkeeping.
func (s *PostgresStore) Release(ctx context.Context, zoneID int64, newScore int, recordsFound int, scraped bool) error {
	var err error
	if scraped {
		_, err = s.pool.Exec(ctx, `
			UPDATE zones SET
				is_locked = false,
				locked_at = NULL,
				priority_score = $2,
				last_scraped_at = now(),
				times_scraped = times_scraped + 1,
				total_records_found = total_records_found + $3
			WHERE id = $1`,
			zoneID, newScore, recordsFound)
	} else {
		_, err = s.pool.Exec(ctx, `
			UPDATE zones SET
				is_locked = false,
				locked_at = NULL,
				priority_score = $2
			WHERE id = $1`,
			zoneID, newScore)
	}
	if err != nil {
		return eris.Wrapf(err, "zone: release %d", zoneID)
	}
	return nil
}

// Unlock clears a lease without touching scores or counters.
func (s *PostgresStore) Unlock(ctx context.Context, zoneID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE zones SET is_locked = false, locked_at = NULL WHERE id = $1`,
		zoneID)
	if err != nil {
		return eris.Wrapf(err, "zone: unlock %d", zoneID)
	}
	return nil
}

// SweepStaleLeases frees zones whose lock outlived the grace period. Covers
// workers that crashed between lease and release.
func (s *PostgresStore) SweepStaleLeases(ctx context.Context, grace time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE zones SET is_locked = false, locked_at = NULL
		WHERE is_locked AND locked_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(grace.Seconds())))
	if err != nil {
		return 0, eris.Wrap(err, "zone: sweep stale leases")
	}
	return tag.RowsAffected(), nil
}

// SeedZones bulk-inserts zone definitions. Re-seeding the same definitions
// is a no-op on the (source, category, location_name) key.
func (s *PostgresStore) SeedZones(ctx context.Context, seeds []SeedZone) (int64, error) {
	if len(seeds) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(seeds))
	for i, seed := range seeds {
		if !seed.Source.Valid() {
			return 0, eris.Errorf("zone: seed %d: unknown source %q", i, seed.Source)
		}
		if seed.Category == "" || seed.LocationName == "" {
			return 0, eris.Errorf("zone: seed %d: category and location_name are required", i)
		}
		priority := seed.Priority
		if priority <= 0 {
			priority = 50
		}
		rows[i] = []any{
			string(seed.Source), seed.Category, seed.LocationName,
			seed.Lat, seed.Lon, priority,
		}
	}

	cfg := db.UpsertConfig{
		Table: "zones",
		Columns: []string{
			"source", "category", "location_name", "lat", "lon", "priority_score",
		},
		ConflictKeys: []string{"source", "category", "location_name"},
		// nil UpdateCols: existing zones keep their earned scores.
	}
	return db.BulkUpsert(ctx, s.pool, cfg, rows)
}

// ListZones returns zones matching the filter, best first.
func (s *PostgresStore) ListZones(ctx context.Context, opts ListOpts) ([]model.Zone, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if opts.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIdx))
		args = append(args, string(opts.Source))
		argIdx++
	}
	if opts.OnlyActive {
		conditions = append(conditions, "is_active")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(
		`SELECT %s FROM zones %s
		ORDER BY priority_score DESC, last_scraped_at ASC NULLS FIRST
		LIMIT $%d`,
		zoneColumns, where, argIdx,
	)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "zone: list zones")
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, eris.Wrap(err, "zone: scan zone")
		}
		zones = append(zones, *zone)
	}
	return zones, rows.Err()
}

// DeactivateZone takes a zone out of scheduling without deleting its history.
func (s *PostgresStore) DeactivateZone(ctx context.Context, zoneID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE zones SET is_active = false WHERE id = $1`, zoneID)
	if err != nil {
		return eris.Wrapf(err, "zone: deactivate %d", zoneID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("zone: deactivate %d: no such zone", zoneID)
	}
	return nil
}

// CreateAttempt inserts the attempt row at the start of an executor run.
func (s *PostgresStore) CreateAttempt(ctx context.Context, attempt *model.ScrapeAttempt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_attempts (id, zone_id, status, started_at)
		VALUES ($1, $2, $3, $4)`,
		attempt.ID, attempt.ZoneID, string(attempt.Status), attempt.StartedAt)
	if err != nil {
		return eris.Wrapf(err, "zone: create attempt for zone %d", attempt.ZoneID)
	}
	return nil
}

// CompleteAttempt records the terminal state of an attempt.
func (s *PostgresStore) CompleteAttempt(ctx context.Context, attempt *model.ScrapeAttempt) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE scrape_attempts SET
			status = $2,
			completed_at = now(),
			records_found = $3,
			records_new = $4,
			records_merged = $5,
			error_message = $6
		WHERE id = $1`,
		attempt.ID, string(attempt.Status),
		attempt.RecordsFound, attempt.RecordsNew, attempt.RecordsMerged,
		nullIfEmpty(attempt.ErrorMessage))
	if err != nil {
		return eris.Wrapf(err, "zone: complete attempt %s", attempt.ID)
	}
	return nil
}

func scanZone(row pgx.Row) (*model.Zone, error) {
	var (
		zone     model.Zone
		source   string
		lockedAt *time.Time
	)
	err := row.Scan(
		&zone.ID, &source, &zone.Category, &zone.LocationName,
		&zone.Lat, &zone.Lon, &zone.PriorityScore, &zone.LastScrapedAt,
		&zone.IsLocked, &lockedAt, &zone.TimesScraped, &zone.TotalRecords,
		&zone.IsActive, &zone.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	zone.Source = model.Source(source)
	zone.LockedAt = lockedAt
	return &zone, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
