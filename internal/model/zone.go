package model

import "time"

// Source identifies where a candidate record was extracted from.
type Source string

const (
	SourceMaps      Source = "maps"      // maps listing crawl
	SourceDirectory Source = "directory" // business directory crawl
	SourceManual    Source = "manual"    // manual single-URL scan
)

// Valid reports whether s is a recognized acquisition source.
func (s Source) Valid() bool {
	switch s {
	case SourceMaps, SourceDirectory, SourceManual:
		return true
	default:
		return false
	}
}

// Zone is a (source, category, location) crawl target. Zones are created by
// seeding, re-prioritized after every scrape attempt, and deactivated rather
// than deleted.
type Zone struct {
	ID            int64      `json:"id"`
	Source        Source     `json:"source"`
	Category      string     `json:"category"`
	LocationName  string     `json:"location_name"`
	Lat           *float64   `json:"lat,omitempty"`
	Lon           *float64   `json:"lon,omitempty"`
	PriorityScore int        `json:"priority_score"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	IsLocked      bool       `json:"is_locked"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	TimesScraped  int        `json:"times_scraped"`
	TotalRecords  int        `json:"total_records_found"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
}
