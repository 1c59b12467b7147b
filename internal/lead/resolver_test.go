package lead

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

func TestResolve_ExactKeyWinsOverEverything(t *testing.T) {
	store := newMockStore()
	store.seed(model.CanonicalLead{
		UniqueKey:    "pizzeria-mario_milano",
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		WebsiteURL:   "https://pizzeriamario.it",
		Phone:        "+39 02 1234567",
	})

	r := NewResolver(store, 0.6, 200)
	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceDirectory,
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
		WebsiteURL:   "https://other-site.it",
	})
	require.NoError(t, err)
	require.False(t, res.New())
	assert.Equal(t, model.MatchExactKey, res.MatchedBy)
	assert.Equal(t, "pizzeria-mario_milano", res.Key)
}

func TestResolve_AccentsFoldIntoSameKey(t *testing.T) {
	store := newMockStore()
	store.seed(model.CanonicalLead{
		UniqueKey:    "pizzeria-mario_milano",
		BusinessName: "Pizzeria Mario",
		City:         "Milano",
	})

	r := NewResolver(store, 0.6, 200)
	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Pizzería Marió",
		City:         "Milano",
	})
	require.NoError(t, err)
	assert.Equal(t, model.MatchExactKey, res.MatchedBy)
}

func TestResolve_DomainMatch(t *testing.T) {
	store := newMockStore()
	store.seed(model.CanonicalLead{
		UniqueKey:    "mario-s-pizza_milano",
		BusinessName: "Mario's Pizza",
		City:         "Milano",
		WebsiteURL:   "https://www.pizzeriamario.it/menu",
	})

	r := NewResolver(store, 0.6, 200)
	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceDirectory,
		BusinessName: "Pizzeria Da Mario",
		City:         "Roma",
		WebsiteURL:   "pizzeriamario.it",
	})
	require.NoError(t, err)
	require.False(t, res.New())
	assert.Equal(t, model.MatchDomain, res.MatchedBy)
	// Key stays candidate-derived even when matched on domain.
	assert.Equal(t, "pizzeria-da-mario_roma", res.Key)
}

func TestResolve_PhoneMatch(t *testing.T) {
	store := newMockStore()
	store.seed(model.CanonicalLead{
		UniqueKey:    "bar-centrale_torino",
		BusinessName: "Bar Centrale",
		City:         "Torino",
		Phone:        "+39 011 555-0100",
	})

	r := NewResolver(store, 0.6, 200)
	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Centrale Caffe",
		City:         "Torino",
		Phone:        "011 5550100",
	})
	require.NoError(t, err)
	require.False(t, res.New())
	assert.Equal(t, model.MatchPhone, res.MatchedBy)
}

func TestResolve_NameSimilaritySameCity(t *testing.T) {
	store := newMockStore()
	store.seed(model.CanonicalLead{
		UniqueKey:    "ristorante-da-luigi_napoli",
		BusinessName: "Ristorante Da Luigi",
		City:         "Napoli",
	})

	r := NewResolver(store, 0.6, 200)
	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceDirectory,
		BusinessName: "Da Luigi Ristorante Pizzeria",
		City:         "Napoli",
	})
	require.NoError(t, err)
	require.False(t, res.New())
	assert.Equal(t, model.MatchNameSimilarity, res.MatchedBy)
}

func TestResolve_NameSimilarityRequiresSameCity(t *testing.T) {
	store := newMockStore()
	store.seed(model.CanonicalLead{
		UniqueKey:    "ristorante-da-luigi_napoli",
		BusinessName: "Ristorante Da Luigi",
		City:         "Napoli",
	})

	r := NewResolver(store, 0.6, 200)
	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceDirectory,
		BusinessName: "Ristorante Da Luigi",
		City:         "Salerno",
	})
	require.NoError(t, err)
	assert.True(t, res.New())
}

func TestResolve_BelowThresholdIsNew(t *testing.T) {
	store := newMockStore()
	store.seed(model.CanonicalLead{
		UniqueKey:    "antica-osteria-del-ponte_milano",
		BusinessName: "Antica Osteria Del Ponte",
		City:         "Milano",
	})

	r := NewResolver(store, 0.6, 200)
	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Trattoria Moderna",
		City:         "Milano",
	})
	require.NoError(t, err)
	assert.True(t, res.New())
	assert.Equal(t, "trattoria-moderna_milano", res.Key)
}

func TestResolve_MissingCityFallsBackToUnknown(t *testing.T) {
	store := newMockStore()
	r := NewResolver(store, 0.6, 200)

	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceManual,
		BusinessName: "Ghost Kitchen",
	})
	require.NoError(t, err)
	assert.True(t, res.New())
	assert.Equal(t, "ghost-kitchen_unknown", res.Key)
}

func TestResolve_CityScanFailureIsNotFatal(t *testing.T) {
	store := newMockStore()
	store.errOnCityScan = errors.New("query timeout")

	r := NewResolver(store, 0.6, 200)
	res, err := r.Resolve(context.Background(), model.CandidateRecord{
		Source:       model.SourceMaps,
		BusinessName: "Bar Sport",
		City:         "Milano",
	})
	require.NoError(t, err)
	assert.True(t, res.New())
}
