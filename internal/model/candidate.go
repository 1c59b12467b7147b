package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PageAnalysis is the opaque blob returned by the external page analyzer.
// It is carried through to the canonical lead untouched.
type PageAnalysis struct {
	Issues []string `json:"issues"`
	Score  float64  `json:"score"`
}

// CandidateRecord is a business record as extracted from one crawl, before
// identity resolution. All sources (maps, directory, manual) normalize into
// this one shape before entering the resolver.
type CandidateRecord struct {
	Source       Source        `json:"source"`
	BusinessName string        `json:"business_name"`
	WebsiteURL   string        `json:"website_url,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Address      string        `json:"address,omitempty"`
	City         string        `json:"city,omitempty"`
	Category     string        `json:"category,omitempty"`
	Score        float64       `json:"score,omitempty"`
	Analysis     *PageAnalysis `json:"analysis,omitempty"`
	RawPayload   []byte        `json:"raw_payload,omitempty"`
}

// ContentHash fingerprints the candidate's extracted fields. Two candidates
// with the same hash are byte-identical repeats; re-merging one is a no-op.
func (c CandidateRecord) ContentHash() string {
	h := sha256.New()
	fields := []string{
		string(c.Source),
		c.BusinessName,
		c.WebsiteURL,
		c.Phone,
		c.Address,
		c.City,
		c.Category,
	}
	h.Write([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}
