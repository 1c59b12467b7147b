package lead

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

func leadRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "unique_key", "content_hash", "business_name", "website_url",
		"phone", "address", "city", "category", "score", "sources", "analysis",
		"superseded_by", "created_at", "last_seen_at",
	})
}

func TestPostgresStore_GetByUniqueKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM leads\s+WHERE unique_key = \$1`).
		WithArgs("pizzeria-mario_milano").
		WillReturnRows(leadRows().AddRow(
			int64(7), "pizzeria-mario_milano", strPtr("abc123"), "Pizzeria Mario",
			strPtr("https://pizzeriamario.it"), strPtr("+39 02 1234567"),
			strPtr("Via Roma 1"), strPtr("Milano"), strPtr("restaurant"),
			42.5, []string{"maps"}, []byte(`{"issues":["no_ssl"],"score":35}`),
			(*int64)(nil), now, now,
		))

	lead, err := store.GetByUniqueKey(context.Background(), "pizzeria-mario_milano")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, int64(7), lead.ID)
	assert.Equal(t, "Pizzeria Mario", lead.BusinessName)
	assert.Equal(t, "Milano", lead.City)
	assert.Equal(t, []string{"maps"}, lead.Sources)
	require.NotNil(t, lead.Analysis)
	assert.Equal(t, []string{"no_ssl"}, lead.Analysis.Issues)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByUniqueKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectQuery(`SELECT .+ FROM leads\s+WHERE unique_key = \$1`).
		WithArgs("missing_key").
		WillReturnError(pgx.ErrNoRows)

	lead, err := store.GetByUniqueKey(context.Background(), "missing_key")
	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(
			"pizzeria-mario_milano", "hash1", "Pizzeria Mario",
			"https://www.pizzeriamario.it", strPtr("pizzeriamario.it"),
			"+39 02 1234567", strPtr("39021234567"),
			"Via Roma 1", "Milano", "milano", "restaurant",
			42.5, []string{"maps"}, ([]byte)(nil), now, now,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	lead := &model.CanonicalLead{
		UniqueKey:    "pizzeria-mario_milano",
		ContentHash:  "hash1",
		BusinessName: "Pizzeria Mario",
		WebsiteURL:   "https://www.pizzeriamario.it",
		Phone:        "+39 02 1234567",
		Address:      "Via Roma 1",
		City:         "Milano",
		Category:     "restaurant",
		Score:        42.5,
		Sources:      []string{"maps"},
		CreatedAt:    now,
		LastSeenAt:   now,
	}
	conflict, err := store.Insert(context.Background(), lead)
	require.NoError(t, err)
	assert.False(t, conflict)
	assert.Equal(t, int64(11), lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Insert_Conflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(pgx.ErrNoRows)

	conflict, err := store.Insert(context.Background(), &model.CanonicalLead{
		UniqueKey:    "pizzeria-mario_milano",
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
	})
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)

	mock.ExpectExec(`UPDATE leads SET`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.Update(context.Background(), &model.CanonicalLead{
		ID:           7,
		UniqueKey:    "pizzeria-mario_milano",
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		Sources:      []string{"maps", "directory"},
		LastSeenAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendMergeLog(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO lead_merge_log`).
		WithArgs(int64(7), "directory", "domain").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

	entry := &model.MergeLogEntry{
		LeadID:    7,
		Source:    model.SourceDirectory,
		MatchedBy: model.MatchDomain,
	}
	err = store.AppendMergeLog(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, int64(3), entry.ID)
	assert.Equal(t, now, entry.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByCityKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM leads\s+WHERE city_key = \$1`).
		WithArgs("milano", 50).
		WillReturnRows(leadRows().
			AddRow(int64(1), "pizzeria-mario_milano", (*string)(nil), "Pizzeria Mario",
				(*string)(nil), (*string)(nil), (*string)(nil), strPtr("Milano"),
				(*string)(nil), 10.0, []string{"maps"}, ([]byte)(nil),
				(*int64)(nil), now, now).
			AddRow(int64(2), "bar-duomo_milano", (*string)(nil), "Bar Duomo",
				(*string)(nil), (*string)(nil), (*string)(nil), strPtr("Milano"),
				(*string)(nil), 20.0, []string{"directory"}, ([]byte)(nil),
				(*int64)(nil), now, now))

	leads, err := store.ListByCityKey(context.Background(), "milano", 50)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Pizzeria Mario", leads[0].BusinessName)
	assert.Equal(t, "Bar Duomo", leads[1].BusinessName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
