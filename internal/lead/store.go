// Package lead implements identity resolution and merging of candidate
// records into canonical leads.
package lead

import (
	"context"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

// Store defines persistence operations for canonical leads. Lookups return
// (nil, nil) when no row matches.
type Store interface {
	GetByUniqueKey(ctx context.Context, key string) (*model.CanonicalLead, error)
	GetByDomain(ctx context.Context, domain string) (*model.CanonicalLead, error)
	GetByPhone(ctx context.Context, phoneDigits string) (*model.CanonicalLead, error)
	// ListByCityKey returns active leads in the given normalized city,
	// bounded by limit, for the pairwise name-similarity scan.
	ListByCityKey(ctx context.Context, cityKey string, limit int) ([]model.CanonicalLead, error)

	// Insert creates a lead with ON CONFLICT (unique_key) DO NOTHING
	// semantics. It reports conflict=true when another writer won the
	// unique-key race, so the caller can re-resolve against the winning
	// row instead of failing.
	Insert(ctx context.Context, lead *model.CanonicalLead) (conflict bool, err error)
	Update(ctx context.Context, lead *model.CanonicalLead) error

	AppendMergeLog(ctx context.Context, entry *model.MergeLogEntry) error
	// RecentMergeLog returns the newest merge events, newest first.
	RecentMergeLog(ctx context.Context, limit int) ([]model.MergeLogEntry, error)
}
