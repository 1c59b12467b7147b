package lead

import (
	"context"
	"sync"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/normalize"
)

// MemStore is an in-memory Store. It backs dry-run mode, where records flow
// through the full resolve/merge path without touching Postgres, and doubles
// as the test store.
type MemStore struct {
	mu       sync.Mutex
	nextID   int64
	leads    map[int64]*model.CanonicalLead
	mergeLog []model.MergeLogEntry
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1, leads: make(map[int64]*model.CanonicalLead)}
}

func (m *MemStore) GetByUniqueKey(_ context.Context, key string) (*model.CanonicalLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.UniqueKey == key && l.SupersededBy == nil {
			return cloneLead(l), nil
		}
	}
	return nil, nil
}

func (m *MemStore) GetByDomain(_ context.Context, domain string) (*model.CanonicalLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		d, ok := normalize.Domain(l.WebsiteURL)
		if ok && d == domain && l.SupersededBy == nil {
			return cloneLead(l), nil
		}
	}
	return nil, nil
}

func (m *MemStore) GetByPhone(_ context.Context, phoneDigits string) (*model.CanonicalLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		p, ok := normalize.Phone(l.Phone)
		if ok && p == phoneDigits && l.SupersededBy == nil {
			return cloneLead(l), nil
		}
	}
	return nil, nil
}

func (m *MemStore) ListByCityKey(_ context.Context, cityKey string, limit int) ([]model.CanonicalLead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CanonicalLead
	for _, l := range m.leads {
		if normalize.CityKey(l.City) == cityKey && l.SupersededBy == nil {
			out = append(out, *cloneLead(l))
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) Insert(_ context.Context, lead *model.CanonicalLead) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.UniqueKey == lead.UniqueKey {
			return true, nil
		}
	}
	lead.ID = m.nextID
	m.nextID++
	m.leads[lead.ID] = cloneLead(lead)
	return false, nil
}

func (m *MemStore) Update(_ context.Context, lead *model.CanonicalLead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = cloneLead(lead)
	return nil
}

func (m *MemStore) AppendMergeLog(_ context.Context, entry *model.MergeLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.mergeLog) + 1)
	m.mergeLog = append(m.mergeLog, *entry)
	return nil
}

func (m *MemStore) RecentMergeLog(_ context.Context, limit int) ([]model.MergeLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MergeLogEntry
	for i := len(m.mergeLog) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.mergeLog[i])
	}
	return out, nil
}

// Count returns the number of live leads, for dry-run summaries.
func (m *MemStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads)
}

func cloneLead(l *model.CanonicalLead) *model.CanonicalLead {
	cp := *l
	cp.Sources = append([]string(nil), l.Sources...)
	return &cp
}
