package scraper

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

// TargetURL builds the search URL an executor attempt navigates to. Only
// crawl sources have one; manual records enter through the scan command and
// never go through the scheduler.
func TargetURL(zone *model.Zone) (string, error) {
	switch zone.Source {
	case model.SourceMaps:
		query := url.QueryEscape(zone.Category + " " + zone.LocationName)
		return "https://www.google.com/maps/search/" + query, nil
	case model.SourceDirectory:
		return "https://www.paginegialle.it/ricerca/" +
			url.PathEscape(strings.ToLower(zone.Category)) + "/" +
			url.PathEscape(strings.ToLower(zone.LocationName)), nil
	default:
		return "", eris.Errorf("scraper: source %q has no crawl target", zone.Source)
	}
}
