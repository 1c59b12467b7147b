package lead

import (
	"context"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

// mockStore wraps MemStore with failure-injection hooks for resolver and
// merger tests.
type mockStore struct {
	*MemStore

	// forceConflict makes Insert report a unique-key conflict the given
	// number of times without writing. While it is positive every lookup
	// returns empty, mimicking a concurrent writer whose row becomes
	// visible only after the caller's insert loses the race.
	forceConflict int

	errOnCityScan error
}

func newMockStore() *mockStore {
	return &mockStore{MemStore: NewMemStore()}
}

func (m *mockStore) GetByUniqueKey(ctx context.Context, key string) (*model.CanonicalLead, error) {
	if m.forceConflict > 0 {
		return nil, nil
	}
	return m.MemStore.GetByUniqueKey(ctx, key)
}

func (m *mockStore) GetByDomain(ctx context.Context, domain string) (*model.CanonicalLead, error) {
	if m.forceConflict > 0 {
		return nil, nil
	}
	return m.MemStore.GetByDomain(ctx, domain)
}

func (m *mockStore) GetByPhone(ctx context.Context, phoneDigits string) (*model.CanonicalLead, error) {
	if m.forceConflict > 0 {
		return nil, nil
	}
	return m.MemStore.GetByPhone(ctx, phoneDigits)
}

func (m *mockStore) ListByCityKey(ctx context.Context, cityKey string, limit int) ([]model.CanonicalLead, error) {
	if m.errOnCityScan != nil {
		return nil, m.errOnCityScan
	}
	if m.forceConflict > 0 {
		return nil, nil
	}
	return m.MemStore.ListByCityKey(ctx, cityKey, limit)
}

func (m *mockStore) Insert(ctx context.Context, lead *model.CanonicalLead) (bool, error) {
	if m.forceConflict > 0 {
		m.forceConflict--
		return true, nil
	}
	return m.MemStore.Insert(ctx, lead)
}

// seed inserts a lead directly, bypassing conflict handling.
func (m *mockStore) seed(lead model.CanonicalLead) *model.CanonicalLead {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead.ID = m.nextID
	m.nextID++
	m.leads[lead.ID] = cloneLead(&lead)
	return m.leads[lead.ID]
}
