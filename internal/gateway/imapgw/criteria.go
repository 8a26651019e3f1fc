package imapgw

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// queryCriteria translates a Gmail-style query string into IMAP search
// criteria. The builder emits a fixed clause vocabulary, so only those
// operators need handling; anything unrecognized joins the free-text
// match.
func queryCriteria(query string) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	var text []string

	for _, tok := range strings.Fields(query) {
		switch {
		case strings.HasPrefix(tok, "from:"):
			criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
				Key:   "From",
				Value: strings.TrimPrefix(tok, "from:"),
			})

		case strings.HasPrefix(tok, "to:"):
			criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
				Key:   "To",
				Value: strings.TrimPrefix(tok, "to:"),
			})

		case tok == "is:unread":
			criteria.NotFlag = append(criteria.NotFlag, imap.FlagSeen)

		case tok == "is:read":
			criteria.Flag = append(criteria.Flag, imap.FlagSeen)

		case strings.HasPrefix(tok, "after:"):
			if t, err := time.Parse("2006/01/02", strings.TrimPrefix(tok, "after:")); err == nil {
				criteria.Since = t
			}

		case strings.HasPrefix(tok, "before:"):
			if t, err := time.Parse("2006/01/02", strings.TrimPrefix(tok, "before:")); err == nil {
				criteria.Before = t
			}

		case strings.HasPrefix(tok, "newer_than:"):
			if t, ok := newerThanTime(strings.TrimPrefix(tok, "newer_than:")); ok {
				criteria.Since = t
			}

		case tok == "has:attachment":
			// No portable IMAP criterion for attachments; matched
			// client-side would cost a body fetch per candidate, so
			// the clause is dropped here.

		default:
			text = append(text, tok)
		}
	}

	if len(text) > 0 {
		criteria.Text = []string{strings.Join(text, " ")}
	}
	return criteria
}

// newerThanTime resolves a relative range like 7d, 1m or 1y against now.
func newerThanTime(s string) (time.Time, bool) {
	if len(s) < 2 {
		return time.Time{}, false
	}
	n := 0
	for _, r := range s[:len(s)-1] {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
		n = n*10 + int(r-'0')
	}

	now := time.Now()
	switch s[len(s)-1] {
	case 'd':
		return now.AddDate(0, 0, -n), true
	case 'm':
		return now.AddDate(0, -n, 0), true
	case 'y':
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}
