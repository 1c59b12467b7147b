package lead

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

func newTestMerger(store *mockStore) *Merger {
	return NewMerger(store, NewResolver(store, 0.6, 200))
}

func TestMergeOrCreate_CreatesNewLead(t *testing.T) {
	store := newMockStore()
	m := newTestMerger(store)

	cand := model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		WebsiteURL:   "https://pizzeriamario.it",
		Phone:        "+39 02 1234567",
		Score:        42,
	}
	out, err := m.MergeOrCreate(context.Background(), cand)
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.False(t, out.Merged)
	require.NotNil(t, out.Lead)
	assert.Equal(t, "pizzeria-mario_milano", out.Lead.UniqueKey)
	assert.Equal(t, []string{"maps"}, out.Lead.Sources)
	assert.Equal(t, cand.ContentHash(), out.Lead.ContentHash)
	assert.NotZero(t, out.Lead.ID)
}

func TestMergeOrCreate_IdenticalRepeatIsNoOp(t *testing.T) {
	store := newMockStore()
	m := newTestMerger(store)
	cand := model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
	}

	first, err := m.MergeOrCreate(context.Background(), cand)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := m.MergeOrCreate(context.Background(), cand)
	require.NoError(t, err)
	assert.True(t, second.NoOp)
	assert.False(t, second.Merged)
	assert.Empty(t, store.mergeLog)
}

func TestMergeOrCreate_GapFillNeverOverwrites(t *testing.T) {
	store := newMockStore()
	m := newTestMerger(store)

	_, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		Phone:        "+39 02 1234567",
		Score:        60,
	})
	require.NoError(t, err)

	out, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceDirectory,
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		Phone:        "+39 333 0000000",
		WebsiteURL:   "https://pizzeriamario.it",
		Address:      "Via Roma 1",
		Score:        40,
	})
	require.NoError(t, err)
	assert.True(t, out.Merged)

	lead := out.Lead
	// Populated canonical values win; gaps are filled.
	assert.Equal(t, "+39 02 1234567", lead.Phone)
	assert.Equal(t, "https://pizzeriamario.it", lead.WebsiteURL)
	assert.Equal(t, "Via Roma 1", lead.Address)
	// Score is the max across sources.
	assert.InDelta(t, 60, lead.Score, 0.001)
	assert.ElementsMatch(t, []string{"maps", "directory"}, lead.Sources)
}

func TestMergeOrCreate_ScoreTakesCandidateWhenHigher(t *testing.T) {
	store := newMockStore()
	m := newTestMerger(store)

	_, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Bar Centrale",
		City:         "Torino",
		Score:        20,
	})
	require.NoError(t, err)

	out, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceDirectory,
		BusinessName: "Bar Centrale",
		City:         "Torino",
		Score:        55,
	})
	require.NoError(t, err)
	assert.InDelta(t, 55, out.Lead.Score, 0.001)
}

func TestMergeOrCreate_SourceUnionIsIdempotent(t *testing.T) {
	store := newMockStore()
	m := newTestMerger(store)

	_, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Bar Centrale",
		City:         "Torino",
	})
	require.NoError(t, err)

	out, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Bar Centrale",
		City:         "Torino",
		Address:      "Piazza Castello 10",
	})
	require.NoError(t, err)
	assert.True(t, out.Merged)
	assert.Equal(t, []string{"maps"}, out.Lead.Sources)
}

func TestMergeOrCreate_WritesMergeLog(t *testing.T) {
	store := newMockStore()
	m := newTestMerger(store)

	_, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		WebsiteURL:   "https://pizzeriamario.it",
	})
	require.NoError(t, err)

	out, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceDirectory,
		BusinessName: "Da Mario",
		City:         "Milano",
		WebsiteURL:   "www.pizzeriamario.it",
	})
	require.NoError(t, err)
	assert.True(t, out.Merged)
	assert.Equal(t, model.MatchDomain, out.MatchedBy)

	require.Len(t, store.mergeLog, 1)
	assert.Equal(t, out.Lead.ID, store.mergeLog[0].LeadID)
	assert.Equal(t, model.SourceDirectory, store.mergeLog[0].Source)
	assert.Equal(t, model.MatchDomain, store.mergeLog[0].MatchedBy)
}

func TestMergeOrCreate_ConflictReResolves(t *testing.T) {
	store := newMockStore()
	winner := store.seed(model.CanonicalLead{
		UniqueKey:    "pizzeria-mario_milano",
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		Sources:      []string{"maps"},
		CreatedAt:    time.Now().UTC(),
		LastSeenAt:   time.Now().UTC(),
	})
	// The winner stays invisible to lookups until Insert loses the race,
	// mimicking a concurrent writer committing between resolve and insert.
	store.forceConflict = 1
	m := newTestMerger(store)

	out, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       model.SourceDirectory,
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		Address:      "Via Roma 1",
	})
	require.NoError(t, err)
	assert.True(t, out.Merged)
	assert.Equal(t, winner.ID, out.Lead.ID)
	assert.ElementsMatch(t, []string{"maps", "directory"}, out.Lead.Sources)
}

func TestMergeOrCreate_RejectsInvalidSource(t *testing.T) {
	m := newTestMerger(newMockStore())
	_, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source:       "facebook",
		BusinessName: "Bar Sport",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestMergeOrCreate_RejectsEmptyName(t *testing.T) {
	m := newTestMerger(newMockStore())
	_, err := m.MergeOrCreate(context.Background(), model.CandidateRecord{
		Source: model.SourceMaps,
	})
	require.Error(t, err)
}
