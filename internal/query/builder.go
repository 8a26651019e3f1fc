// Package query translates structured filter criteria into the backend's
// search query grammar.
package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/jsean662/MailFlowAI/internal/model"
)

const dateLayout = "2006/01/02"

// Build renders the filter criteria as a provider search query string.
// Clauses are appended in a fixed order and joined with single spaces; an
// empty result means the criteria carry no active filter.
//
// The keyword clause is passed through verbatim, so users may embed raw
// provider operators there.
func Build(f model.FilterCriteria) string {
	var parts []string

	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		parts = append(parts, kw)
	}

	if sender := strings.TrimSpace(f.Sender); sender != "" {
		parts = append(parts, "from:"+sender)
	}

	if f.DateRange != "" && f.DateRange != model.DateRangeAll {
		if center, ok := parseDate(f.DateCenter); ok {
			if days := rangeInDays(f.DateRange); days > 0 {
				after := center.AddDate(0, 0, -days)
				before := center.AddDate(0, 0, days)
				parts = append(parts,
					"after:"+after.Format(dateLayout),
					"before:"+before.Format(dateLayout),
				)
			}
		} else {
			// No usable anchor date; fall back to the provider's
			// native relative syntax.
			parts = append(parts, "newer_than:"+f.DateRange)
		}
	}

	switch f.ReadStatus {
	case model.ReadStatusUnread:
		parts = append(parts, "is:unread")
	case model.ReadStatusRead:
		parts = append(parts, "is:read")
	}

	if f.HasAttachment {
		parts = append(parts, "has:attachment")
	}

	return strings.Join(parts, " ")
}

// parseDate accepts YYYY/MM/DD and YYYY-MM-DD anchor dates.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// rangeInDays converts a range token such as "7d", "2m", or "1y" into a
// day count. An unknown unit suffix assumes days; an unparseable numeric
// part yields -1, which suppresses the date clause.
func rangeInDays(r string) int {
	if len(r) < 2 {
		return -1
	}

	value, err := strconv.Atoi(r[:len(r)-1])
	if err != nil {
		return -1
	}

	switch r[len(r)-1] {
	case 'd':
		return value
	case 'm':
		return value * 30
	case 'y':
		return value * 365
	default:
		return value
	}
}
