package lead

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/normalize"
)

// maxConflictRetries bounds the re-resolve loop when concurrent workers race
// to create the same lead. One retry is normally enough; the bound guards
// against a store that keeps reporting conflicts without exposing the row.
const maxConflictRetries = 3

// MergeOutcome reports what MergeOrCreate did, for attempt statistics.
type MergeOutcome struct {
	Lead      *model.CanonicalLead
	Created   bool
	Merged    bool
	NoOp      bool
	MatchedBy model.MatchReason
}

// Merger combines candidate records into canonical leads.
type Merger struct {
	store    Store
	resolver *Resolver
}

// NewMerger creates a merge engine over the given store and resolver.
func NewMerger(store Store, resolver *Resolver) *Merger {
	return &Merger{store: store, resolver: resolver}
}

// MergeOrCreate resolves the candidate and either creates a new canonical
// lead or merges into the matched one. The create path uses the store's
// unique-key conflict reporting: losing the creation race re-resolves
// against the winning row and merges instead, so two workers finding the
// same business simultaneously end up with one lead carrying both sources.
func (m *Merger) MergeOrCreate(ctx context.Context, cand model.CandidateRecord) (MergeOutcome, error) {
	if !cand.Source.Valid() {
		return MergeOutcome{}, eris.Errorf("lead: unknown source %q", cand.Source)
	}
	if cand.BusinessName == "" {
		return MergeOutcome{}, eris.New("lead: candidate business name is required")
	}

	for attempt := 0; ; attempt++ {
		res, err := m.resolver.Resolve(ctx, cand)
		if err != nil {
			return MergeOutcome{}, err
		}

		if !res.New() {
			return m.merge(ctx, res, cand)
		}

		created, err := m.create(ctx, res.Key, cand)
		if err != nil {
			return MergeOutcome{}, err
		}
		if created != nil {
			return MergeOutcome{Lead: created, Created: true}, nil
		}

		// Another writer won the unique-key race. Re-resolve: the winning
		// row must now be visible, so the next pass takes the merge path.
		if attempt >= maxConflictRetries {
			return MergeOutcome{}, eris.Errorf("lead: unresolved unique-key conflict for %q", res.Key)
		}
		zap.L().Debug("merge: lost creation race, re-resolving",
			zap.String("key", res.Key),
			zap.Int("attempt", attempt+1),
		)
	}
}

// create inserts a fresh lead. Returns (nil, nil) on a unique-key conflict.
func (m *Merger) create(ctx context.Context, key string, cand model.CandidateRecord) (*model.CanonicalLead, error) {
	now := time.Now().UTC()
	lead := &model.CanonicalLead{
		UniqueKey:    key,
		ContentHash:  cand.ContentHash(),
		BusinessName: cand.BusinessName,
		WebsiteURL:   cand.WebsiteURL,
		Phone:        cand.Phone,
		Address:      cand.Address,
		City:         cand.City,
		Category:     cand.Category,
		Score:        cand.Score,
		Sources:      []string{string(cand.Source)},
		Analysis:     cand.Analysis,
		CreatedAt:    now,
		LastSeenAt:   now,
	}

	conflict, err := m.store.Insert(ctx, lead)
	if err != nil {
		return nil, eris.Wrap(err, "lead: create")
	}
	if conflict {
		return nil, nil
	}

	zap.L().Info("merge: created new lead",
		zap.String("key", key),
		zap.String("name", cand.BusinessName),
		zap.String("source", string(cand.Source)),
		zap.Int64("lead_id", lead.ID),
	)
	return lead, nil
}

// merge absorbs the candidate into an existing lead: fill gaps, never
// overwrite populated fields, take the max score, union the source set.
// A candidate byte-identical to the last one absorbed is a no-op.
func (m *Merger) merge(ctx context.Context, res Resolution, cand model.CandidateRecord) (MergeOutcome, error) {
	lead := res.Lead

	hash := cand.ContentHash()
	if lead.ContentHash == hash {
		zap.L().Debug("merge: identical content hash, skipping",
			zap.Int64("lead_id", lead.ID),
			zap.String("source", string(cand.Source)),
		)
		return MergeOutcome{Lead: lead, NoOp: true, MatchedBy: res.MatchedBy}, nil
	}

	fillGaps(lead, cand)
	if cand.Score > lead.Score {
		lead.Score = cand.Score
	}
	if !lead.HasSource(cand.Source) {
		lead.Sources = append(lead.Sources, string(cand.Source))
	}
	lead.ContentHash = hash
	lead.LastSeenAt = time.Now().UTC()

	if err := m.store.Update(ctx, lead); err != nil {
		return MergeOutcome{}, eris.Wrapf(err, "lead: merge into %d", lead.ID)
	}

	entry := &model.MergeLogEntry{
		LeadID:    lead.ID,
		Source:    cand.Source,
		MatchedBy: res.MatchedBy,
	}
	if err := m.store.AppendMergeLog(ctx, entry); err != nil {
		return MergeOutcome{}, eris.Wrapf(err, "lead: append merge log for %d", lead.ID)
	}

	zap.L().Info("merge: absorbed candidate",
		zap.Int64("lead_id", lead.ID),
		zap.String("source", string(cand.Source)),
		zap.String("matched_by", string(res.MatchedBy)),
	)
	return MergeOutcome{Lead: lead, Merged: true, MatchedBy: res.MatchedBy}, nil
}

// fillGaps copies candidate values into fields the lead has empty. Populated
// canonical values always win.
func fillGaps(lead *model.CanonicalLead, cand model.CandidateRecord) {
	if lead.WebsiteURL == "" {
		lead.WebsiteURL = cand.WebsiteURL
	}
	if lead.Phone == "" {
		lead.Phone = cand.Phone
	}
	if lead.Address == "" {
		lead.Address = cand.Address
	}
	if lead.City == "" {
		lead.City = cand.City
	}
	if lead.Category == "" {
		lead.Category = cand.Category
	}
	if lead.Analysis == nil {
		lead.Analysis = cand.Analysis
	}
}

// DomainOf exposes the normalized domain the store indexes for a lead.
func DomainOf(lead *model.CanonicalLead) string {
	d, _ := normalize.Domain(lead.WebsiteURL)
	return d
}

// PhoneDigitsOf exposes the normalized phone digits the store indexes.
func PhoneDigitsOf(lead *model.CanonicalLead) string {
	p, _ := normalize.Phone(lead.Phone)
	return p
}
