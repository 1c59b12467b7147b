package lead

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/normalize"
)

// Resolution is the outcome of resolving a candidate against the canonical
// store. Lead is nil when the candidate is new; Key always carries the
// derived unique key.
type Resolution struct {
	Lead      *model.CanonicalLead
	Key       string
	MatchedBy model.MatchReason
}

// New reports whether the candidate matched no existing lead.
func (r Resolution) New() bool {
	return r.Lead == nil
}

// Resolver finds the existing canonical lead for a candidate record, or
// declares it new.
type Resolver struct {
	store               Store
	similarityThreshold float64
	citySearchLimit     int
}

// NewResolver creates a resolver. threshold is the minimum token-set name
// similarity for a fuzzy match; searchLimit bounds the per-city scan.
func NewResolver(store Store, threshold float64, searchLimit int) *Resolver {
	if threshold <= 0 {
		threshold = 0.6
	}
	if searchLimit <= 0 {
		searchLimit = 200
	}
	return &Resolver{
		store:               store,
		similarityThreshold: threshold,
		citySearchLimit:     searchLimit,
	}
}

// Resolve runs the matching cascade. Structural identifiers are checked
// before fuzzy name matching, strongest signal first, and the cascade
// short-circuits on the first hit:
//  1. Exact unique-key match (name+city)
//  2. Domain match
//  3. Phone match
//  4. Token-set name similarity within the same city
func (r *Resolver) Resolve(ctx context.Context, cand model.CandidateRecord) (Resolution, error) {
	key := normalize.NameCityKey(cand.BusinessName, cand.City)

	// Pass 1: exact key.
	existing, err := r.store.GetByUniqueKey(ctx, key)
	if err != nil {
		return Resolution{}, eris.Wrap(err, "lead: resolve by unique key")
	}
	if existing != nil {
		zap.L().Debug("resolve: matched by unique key",
			zap.String("key", key),
			zap.Int64("lead_id", existing.ID),
		)
		return Resolution{Lead: existing, Key: key, MatchedBy: model.MatchExactKey}, nil
	}

	// Pass 2: domain. Requires a non-null normalized domain on both sides;
	// the store only indexes leads that have one.
	if domain, ok := normalize.Domain(cand.WebsiteURL); ok {
		existing, err = r.store.GetByDomain(ctx, domain)
		if err != nil {
			return Resolution{}, eris.Wrap(err, "lead: resolve by domain")
		}
		if existing != nil {
			zap.L().Debug("resolve: matched by domain",
				zap.String("domain", domain),
				zap.Int64("lead_id", existing.ID),
			)
			return Resolution{Lead: existing, Key: key, MatchedBy: model.MatchDomain}, nil
		}
	}

	// Pass 3: phone.
	if digits, ok := normalize.Phone(cand.Phone); ok {
		existing, err = r.store.GetByPhone(ctx, digits)
		if err != nil {
			return Resolution{}, eris.Wrap(err, "lead: resolve by phone")
		}
		if existing != nil {
			zap.L().Debug("resolve: matched by phone",
				zap.String("phone", digits),
				zap.Int64("lead_id", existing.ID),
			)
			return Resolution{Lead: existing, Key: key, MatchedBy: model.MatchPhone}, nil
		}
	}

	// Pass 4: name similarity within the same city. The scan stops at the
	// first lead that clears the threshold.
	if cand.City != "" && cand.BusinessName != "" {
		cityKey := normalize.CityKey(cand.City)
		leads, err := r.store.ListByCityKey(ctx, cityKey, r.citySearchLimit)
		if err != nil {
			zap.L().Warn("resolve: city scan failed", zap.Error(err))
		} else {
			for i := range leads {
				sim := normalize.TokenSetSimilarity(cand.BusinessName, leads[i].BusinessName)
				if sim >= r.similarityThreshold {
					zap.L().Debug("resolve: matched by name similarity",
						zap.String("name", cand.BusinessName),
						zap.Float64("similarity", sim),
						zap.Int64("lead_id", leads[i].ID),
					)
					return Resolution{Lead: &leads[i], Key: key, MatchedBy: model.MatchNameSimilarity}, nil
				}
			}
		}
	}

	// No signal qualified: new lead.
	return Resolution{Key: key}, nil
}
