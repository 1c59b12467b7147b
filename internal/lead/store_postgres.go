package lead

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/db"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/normalize"
)

// PostgresStore implements Store using pgx. The leads table carries three
// derived lookup columns (domain, phone_digits, city_key) that the store
// computes from the raw fields on every write, so the resolver's indexed
// lookups never re-normalize in SQL.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const leadColumns = `id, unique_key, content_hash, business_name, website_url,
	phone, address, city, category, score, sources, analysis,
	superseded_by, created_at, last_seen_at`

// GetByUniqueKey returns the lead with the given unique key, or (nil, nil).
func (s *PostgresStore) GetByUniqueKey(ctx context.Context, key string) (*model.CanonicalLead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE unique_key = $1 AND superseded_by IS NULL`,
		key,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, eris.Wrap(err, "lead: get by unique key")
	}
	return lead, nil
}

// GetByDomain returns the lead with the given normalized domain, or (nil, nil).
func (s *PostgresStore) GetByDomain(ctx context.Context, domain string) (*model.CanonicalLead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE domain = $1 AND superseded_by IS NULL
		ORDER BY id LIMIT 1`,
		domain,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, eris.Wrap(err, "lead: get by domain")
	}
	return lead, nil
}

// GetByPhone returns the lead with the given normalized phone digits, or (nil, nil).
func (s *PostgresStore) GetByPhone(ctx context.Context, phoneDigits string) (*model.CanonicalLead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE phone_digits = $1 AND superseded_by IS NULL
		ORDER BY id LIMIT 1`,
		phoneDigits,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, eris.Wrap(err, "lead: get by phone")
	}
	return lead, nil
}

// ListByCityKey returns up to limit leads in the given normalized city.
func (s *PostgresStore) ListByCityKey(ctx context.Context, cityKey string, limit int) ([]model.CanonicalLead, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE city_key = $1 AND superseded_by IS NULL
		ORDER BY id
		LIMIT $2`,
		cityKey, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "lead: list by city key")
	}
	defer rows.Close()

	var leads []model.CanonicalLead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "lead: scan city lead")
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

// Insert creates a new lead row. On a unique-key conflict nothing is written
// and conflict=true is returned; the caller re-resolves against the winner.
func (s *PostgresStore) Insert(ctx context.Context, lead *model.CanonicalLead) (bool, error) {
	analysisJSON, err := marshalAnalysis(lead.Analysis)
	if err != nil {
		return false, err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO leads (
			unique_key, content_hash, business_name, website_url, domain,
			phone, phone_digits, address, city, city_key, category,
			score, sources, analysis, created_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (unique_key) DO NOTHING
		RETURNING id`,
		lead.UniqueKey, lead.ContentHash, lead.BusinessName, lead.WebsiteURL,
		nullIfEmpty(DomainOf(lead)),
		lead.Phone, nullIfEmpty(PhoneDigitsOf(lead)),
		lead.Address, lead.City, normalize.CityKey(lead.City), lead.Category,
		lead.Score, lead.Sources, analysisJSON,
		lead.CreatedAt, lead.LastSeenAt,
	).Scan(&lead.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// DO NOTHING suppressed the insert: unique_key already taken.
		return true, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "lead: insert")
	}
	return false, nil
}

// Update rewrites the merged lead row, keeping the derived lookup columns in
// step with the raw fields.
func (s *PostgresStore) Update(ctx context.Context, lead *model.CanonicalLead) error {
	analysisJSON, err := marshalAnalysis(lead.Analysis)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE leads SET
			content_hash = $2,
			business_name = $3,
			website_url = $4,
			domain = $5,
			phone = $6,
			phone_digits = $7,
			address = $8,
			city = $9,
			city_key = $10,
			category = $11,
			score = $12,
			sources = $13,
			analysis = $14,
			last_seen_at = $15
		WHERE id = $1`,
		lead.ID, lead.ContentHash, lead.BusinessName, lead.WebsiteURL,
		nullIfEmpty(DomainOf(lead)),
		lead.Phone, nullIfEmpty(PhoneDigitsOf(lead)),
		lead.Address, lead.City, normalize.CityKey(lead.City), lead.Category,
		lead.Score, lead.Sources, analysisJSON,
		lead.LastSeenAt,
	)
	if err != nil {
		return eris.Wrapf(err, "lead: update %d", lead.ID)
	}
	return nil
}

// AppendMergeLog records a merge event in the audit log.
func (s *PostgresStore) AppendMergeLog(ctx context.Context, entry *model.MergeLogEntry) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO lead_merge_log (lead_id, source, matched_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		entry.LeadID, string(entry.Source), string(entry.MatchedBy),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "lead: append merge log for %d", entry.LeadID)
	}
	return nil
}

// RecentMergeLog returns the newest merge events, newest first.
func (s *PostgresStore) RecentMergeLog(ctx context.Context, limit int) ([]model.MergeLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, source, matched_by, created_at
		FROM lead_merge_log
		ORDER BY id DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "lead: recent merge log")
	}
	defer rows.Close()

	var entries []model.MergeLogEntry
	for rows.Next() {
		var e model.MergeLogEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Source, &e.MatchedBy, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "lead: scan merge log entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanLead reads one lead row. Returns (nil, nil) on pgx.ErrNoRows.
func scanLead(row pgx.Row) (*model.CanonicalLead, error) {
	var (
		lead         model.CanonicalLead
		contentHash  *string
		websiteURL   *string
		phone        *string
		address      *string
		city         *string
		category     *string
		analysisJSON []byte
	)

	err := row.Scan(
		&lead.ID, &lead.UniqueKey, &contentHash, &lead.BusinessName, &websiteURL,
		&phone, &address, &city, &category, &lead.Score, &lead.Sources, &analysisJSON,
		&lead.SupersededBy, &lead.CreatedAt, &lead.LastSeenAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lead.ContentHash = deref(contentHash)
	lead.WebsiteURL = deref(websiteURL)
	lead.Phone = deref(phone)
	lead.Address = deref(address)
	lead.City = deref(city)
	lead.Category = deref(category)

	if len(analysisJSON) > 0 {
		var analysis model.PageAnalysis
		if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
			return nil, eris.Wrap(err, "lead: unmarshal analysis")
		}
		lead.Analysis = &analysis
	}
	return &lead, nil
}

func marshalAnalysis(a *model.PageAnalysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, eris.Wrap(err, "lead: marshal analysis")
	}
	return data, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
