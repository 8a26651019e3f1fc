package model

import "time"

// ReadStatus narrows a search to read or unread messages.
type ReadStatus string

const (
	ReadStatusAll    ReadStatus = "all"
	ReadStatusUnread ReadStatus = "unread"
	ReadStatusRead   ReadStatus = "read"
)

// DateRangeAll disables the date clause entirely.
const DateRangeAll = "all"

// DateRanges lists the fixed durations offered by the filter UI. The value
// is a count plus a unit suffix: d (days), m (months of 30 days),
// y (years of 365 days).
var DateRanges = []string{
	DateRangeAll, "1d", "3d", "7d", "14d", "1m", "2m", "6m", "1y",
}

// FilterCriteria is the mutable working state of the search filter form.
// Editing criteria has no effect on displayed results until they are
// explicitly applied.
type FilterCriteria struct {
	// Keyword is passed through verbatim, so raw provider query syntax
	// is allowed.
	Keyword string

	// Sender becomes a from: clause when non-empty.
	Sender string

	// DateRange is one of DateRanges.
	DateRange string

	// DateCenter anchors the date window, formatted YYYY/MM/DD.
	DateCenter string

	// ReadStatus is all, unread, or read.
	ReadStatus ReadStatus

	// HasAttachment adds a has:attachment clause when true.
	HasAttachment bool
}

// DefaultFilterCriteria returns the all-default criteria set: no keyword,
// no sender, no date restriction anchored at today, any read status, no
// attachment requirement.
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{
		DateRange:  DateRangeAll,
		DateCenter: time.Now().Format("2006/01/02"),
		ReadStatus: ReadStatusAll,
	}
}

// IsDefault reports whether the criteria carry no effective restriction.
// DateCenter is ignored: it only anchors a window and means nothing while
// DateRange is "all".
func (f FilterCriteria) IsDefault() bool {
	return f.Keyword == "" &&
		f.Sender == "" &&
		(f.DateRange == "" || f.DateRange == DateRangeAll) &&
		(f.ReadStatus == "" || f.ReadStatus == ReadStatusAll) &&
		!f.HasAttachment
}
