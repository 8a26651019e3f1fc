package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jsean662/MailFlowAI/internal/model"
)

func baseCriteria() model.FilterCriteria {
	return model.FilterCriteria{
		DateRange:  model.DateRangeAll,
		DateCenter: "2024/01/10",
		ReadStatus: model.ReadStatusAll,
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*model.FilterCriteria)
		want string
	}{
		{
			name: "all defaults is empty",
			mod:  func(*model.FilterCriteria) {},
			want: "",
		},
		{
			name: "keyword passed through verbatim",
			mod: func(f *model.FilterCriteria) {
				f.Keyword = "  invoice OR receipt  "
			},
			want: "invoice OR receipt",
		},
		{
			name: "sender becomes from clause",
			mod: func(f *model.FilterCriteria) {
				f.Sender = " alice@example.com "
			},
			want: "from:alice@example.com",
		},
		{
			name: "seven day window around anchor",
			mod: func(f *model.FilterCriteria) {
				f.DateRange = "7d"
			},
			want: "after:2024/01/03 before:2024/01/17",
		},
		{
			name: "one month window",
			mod: func(f *model.FilterCriteria) {
				f.DateRange = "1m"
			},
			want: "after:2023/12/11 before:2024/02/09",
		},
		{
			name: "one year window",
			mod: func(f *model.FilterCriteria) {
				f.DateRange = "1y"
			},
			want: "after:2023/01/10 before:2025/01/09",
		},
		{
			name: "unknown unit assumes days",
			mod: func(f *model.FilterCriteria) {
				f.DateRange = "3x"
			},
			want: "after:2024/01/07 before:2024/01/13",
		},
		{
			name: "unparseable numeric part skips the date clause",
			mod: func(f *model.FilterCriteria) {
				f.DateRange = "xd"
			},
			want: "",
		},
		{
			name: "invalid anchor falls back to newer_than",
			mod: func(f *model.FilterCriteria) {
				f.DateRange = "7d"
				f.DateCenter = "not a date"
			},
			want: "newer_than:7d",
		},
		{
			name: "dash separated anchor accepted",
			mod: func(f *model.FilterCriteria) {
				f.DateRange = "1d"
				f.DateCenter = "2024-01-10"
			},
			want: "after:2024/01/09 before:2024/01/11",
		},
		{
			name: "unread status",
			mod: func(f *model.FilterCriteria) {
				f.ReadStatus = model.ReadStatusUnread
			},
			want: "is:unread",
		},
		{
			name: "read status",
			mod: func(f *model.FilterCriteria) {
				f.ReadStatus = model.ReadStatusRead
			},
			want: "is:read",
		},
		{
			name: "attachment flag",
			mod: func(f *model.FilterCriteria) {
				f.HasAttachment = true
			},
			want: "has:attachment",
		},
		{
			name: "all clauses combined in order",
			mod: func(f *model.FilterCriteria) {
				f.Sender = "alice"
				f.DateRange = "1d"
				f.DateCenter = "2024/01/10"
				f.ReadStatus = model.ReadStatusUnread
				f.HasAttachment = true
			},
			want: "from:alice after:2024/01/09 before:2024/01/11 is:unread has:attachment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := baseCriteria()
			tt.mod(&f)
			assert.Equal(t, tt.want, Build(f))
		})
	}
}

func TestBuildDateRangeAllEmitsNoDateClause(t *testing.T) {
	f := baseCriteria()
	f.Keyword = "report"

	got := Build(f)

	assert.NotContains(t, got, "after:")
	assert.NotContains(t, got, "before:")
	assert.NotContains(t, got, "newer_than:")
}

func TestRangeInDays(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1d", 1},
		{"14d", 14},
		{"2m", 60},
		{"1y", 365},
		{"3x", 3},
		{"xd", -1},
		{"d", -1},
		{"", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, rangeInDays(tt.in), "rangeInDays(%q)", tt.in)
	}
}
