package model

import "time"

// MatchReason records which resolver signal linked a candidate to a lead.
type MatchReason string

const (
	MatchExactKey       MatchReason = "exact_key"
	MatchDomain         MatchReason = "domain"
	MatchPhone          MatchReason = "phone"
	MatchNameSimilarity MatchReason = "name_similarity"
)

// CanonicalLead is the deduplicated business-of-record. Exactly one lead
// exists per real-world business within the resolver's matching tolerance.
// Leads are never hard-deleted, only superseded.
type CanonicalLead struct {
	ID           int64         `json:"id"`
	UniqueKey    string        `json:"unique_key"`
	ContentHash  string        `json:"content_hash,omitempty"`
	BusinessName string        `json:"business_name"`
	WebsiteURL   string        `json:"website_url,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Address      string        `json:"address,omitempty"`
	City         string        `json:"city,omitempty"`
	Category     string        `json:"category,omitempty"`
	Score        float64       `json:"score"`
	Sources      []string      `json:"sources"`
	Analysis     *PageAnalysis `json:"analysis,omitempty"`
	SupersededBy *int64        `json:"superseded_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	LastSeenAt   time.Time     `json:"last_seen_at"`
}

// HasSource reports whether the lead already lists the given source.
func (l *CanonicalLead) HasSource(source Source) bool {
	for _, s := range l.Sources {
		if s == string(source) {
			return true
		}
	}
	return false
}

// MergeLogEntry is the audit record written when a candidate is absorbed
// into an existing canonical lead.
type MergeLogEntry struct {
	ID        int64       `json:"id"`
	LeadID    int64       `json:"lead_id"`
	Source    Source      `json:"source"`
	MatchedBy MatchReason `json:"matched_by"`
	CreatedAt time.Time   `json:"created_at"`
}
