// Package normalize turns raw strings (URL, phone, business name) into
// canonical comparison keys. All functions are pure and deterministic.
package normalize

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// unknownCity is the city slug used when no city is available.
const unknownCity = "unknown"

// accentFolder decomposes characters and drops combining marks, so
// "Pizzería Marió" keys the same as "Pizzeria Mario".
var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Domain extracts the canonical domain from a raw URL: lowercased host with
// any leading "www." stripped. Returns false when the input has no parsable
// host.
func Domain(rawURL string) (string, bool) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	return host, true
}

// Phone reduces a phone number to its digits. Returns false when the input
// contains no digits at all.
func Phone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// NameCityKey derives the stable identity key for a business. The same
// (name, city) pair always yields the same key, which is what makes lead
// upserts idempotent across re-runs. City falls back to "unknown" when
// absent.
func NameCityKey(name, city string) string {
	citySlug := slugify(city)
	if citySlug == "" {
		citySlug = unknownCity
	}
	return slugify(name) + "_" + citySlug
}

// CityKey returns the normalized city slug on its own, with the same
// "unknown" fallback NameCityKey uses. It is what same-city scans index on.
func CityKey(city string) string {
	s := slugify(city)
	if s == "" {
		return unknownCity
	}
	return s
}

// TokenSetSimilarity computes intersection-over-union of the lowercased
// whitespace-split token sets of a and b. Returns 0 when either side has no
// tokens.
func TokenSetSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// slugify lowercases, folds accents, and replaces every non-alphanumeric run
// with a single separator.
func slugify(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}
