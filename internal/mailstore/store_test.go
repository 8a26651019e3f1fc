package mailstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/model"
)

// fakeGateway serves scripted pages and search results and records every
// call it receives.
type fakeGateway struct {
	mu sync.Mutex

	// pages maps mailbox then token to the page served for it.
	pages   map[model.Mailbox]map[string]model.PaginatedEmails
	details map[string]model.EmailDetail
	search  map[string][]model.EmailPreview

	listCalls   []string
	searchCalls []string
	deleted     []string
	replies     []string
	forwards    []string

	failList   error
	failSearch error
	failDelete error
	failReply  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pages:   map[model.Mailbox]map[string]model.PaginatedEmails{},
		details: map[string]model.EmailDetail{},
		search:  map[string][]model.EmailPreview{},
	}
}

func (f *fakeGateway) setPage(box model.Mailbox, token string, page model.PaginatedEmails) {
	if f.pages[box] == nil {
		f.pages[box] = map[string]model.PaginatedEmails{}
	}
	f.pages[box][token] = page
}

func (f *fakeGateway) ListMessages(_ context.Context, box model.Mailbox, token string) (model.PaginatedEmails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, string(box)+"|"+token)
	if f.failList != nil {
		return model.PaginatedEmails{}, f.failList
	}
	return f.pages[box][token], nil
}

func (f *fakeGateway) GetMessage(_ context.Context, id string) (*model.EmailDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &d, nil
}

func (f *fakeGateway) SendMessage(_ context.Context, _ model.SendEmailPayload) error {
	return nil
}

func (f *fakeGateway) ReplyToMessage(_ context.Context, id string, _ model.ReplyEmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReply != nil {
		return f.failReply
	}
	f.replies = append(f.replies, id)
	return nil
}

func (f *fakeGateway) ForwardMessage(_ context.Context, id string, _ model.ForwardEmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwards = append(f.forwards, id)
	return nil
}

func (f *fakeGateway) DeleteMessage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeGateway) SearchMessages(_ context.Context, q string) ([]model.EmailPreview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, q)
	if f.failSearch != nil {
		return nil, f.failSearch
	}
	return f.search[q], nil
}

type recordingSink struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (r *recordingSink) Publish(n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingSink) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

func previews(ids ...string) []model.EmailPreview {
	out := make([]model.EmailPreview, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.EmailPreview{
			ID:      id,
			Sender:  "alice@example.com",
			Subject: "subject " + id,
			Date:    time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func TestFetchPageReplacesListAndRecordsToken(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{
		Messages:      previews("m1", "m2"),
		NextPageToken: "tok2",
	})
	s := New(gw, nil)

	s.FetchPage(context.Background(), model.MailboxInbox, "", false)

	require.Len(t, s.Emails(model.MailboxInbox), 2)
	assert.True(t, s.HasNextPage(model.MailboxInbox))
	assert.Equal(t, 1, s.Page(model.MailboxInbox))
	assert.False(t, s.Loading())
	assert.Empty(t, s.Err())
}

func TestFetchPageFailureKeepsPreviousList(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	s := New(gw, nil)
	s.FetchPage(context.Background(), model.MailboxInbox, "", false)

	gw.failList = errors.New("boom")
	s.FetchPage(context.Background(), model.MailboxInbox, "", false)

	assert.Equal(t, "Failed to fetch inbox", s.Err())
	assert.Len(t, s.Emails(model.MailboxInbox), 1)
	assert.False(t, s.Loading())
}

func TestPaginationRoundTrip(t *testing.T) {
	gw := newFakeGateway()
	page1 := model.PaginatedEmails{Messages: previews("m1", "m2"), NextPageToken: "tok2"}
	page2 := model.PaginatedEmails{Messages: previews("m3", "m4"), NextPageToken: "tok3"}
	gw.setPage(model.MailboxInbox, "", page1)
	gw.setPage(model.MailboxInbox, "tok2", page2)
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.GoToNextPage(ctx, model.MailboxInbox)

	require.Equal(t, 2, s.Page(model.MailboxInbox))
	require.Equal(t, previews("m3", "m4"), s.Emails(model.MailboxInbox))

	s.GoToPrevPage(ctx, model.MailboxInbox)

	assert.Equal(t, 1, s.Page(model.MailboxInbox))
	assert.Equal(t, previews("m1", "m2"), s.Emails(model.MailboxInbox))
	// Page 1 is always re-fetched with the empty token from the ledger.
	assert.Equal(t, []string{"inbox|", "inbox|tok2", "inbox|"}, gw.listCalls)
}

func TestGoToNextPageWithoutTokenIsNoOp(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.GoToNextPage(ctx, model.MailboxInbox)

	assert.Equal(t, 1, s.Page(model.MailboxInbox))
	assert.Len(t, gw.listCalls, 1)
}

func TestGoToPrevPageOnFirstPageIsNoOp(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, nil)

	s.GoToPrevPage(context.Background(), model.MailboxInbox)

	assert.Equal(t, 1, s.Page(model.MailboxInbox))
	assert.Empty(t, gw.listCalls)
}

func TestMailboxLedgersAreIndependent(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("i1"), NextPageToken: "itok"})
	gw.setPage(model.MailboxInbox, "itok", model.PaginatedEmails{Messages: previews("i2")})
	gw.setPage(model.MailboxSent, "", model.PaginatedEmails{Messages: previews("s1")})
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.FetchPage(ctx, model.MailboxSent, "", false)
	s.GoToNextPage(ctx, model.MailboxInbox)

	assert.Equal(t, 2, s.Page(model.MailboxInbox))
	assert.Equal(t, 1, s.Page(model.MailboxSent))
	assert.Equal(t, previews("s1"), s.Emails(model.MailboxSent))
}

func TestSearchOverlayLeavesCanonicalListIntact(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1", "m2")})
	gw.search["report"] = previews("m9")
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.Search(ctx, "report")

	results, q, active := s.SearchResults()
	require.True(t, active)
	assert.Equal(t, "report", q)
	assert.Equal(t, previews("m9"), results)
	assert.Equal(t, previews("m1", "m2"), s.Emails(model.MailboxInbox))

	s.ClearSearch()

	_, _, active = s.SearchResults()
	assert.False(t, active)
	assert.Equal(t, previews("m1", "m2"), s.Emails(model.MailboxInbox))
}

func TestSearchBlankQueryClearsOverlayWithoutGatewayCall(t *testing.T) {
	gw := newFakeGateway()
	gw.search["x"] = previews("m1")
	s := New(gw, nil)
	ctx := context.Background()

	s.Search(ctx, "x")
	s.Search(ctx, "   ")

	_, _, active := s.SearchResults()
	assert.False(t, active)
	assert.Equal(t, []string{"x"}, gw.searchCalls)
}

func TestSearchFailureKeepsPreviousOverlay(t *testing.T) {
	gw := newFakeGateway()
	gw.search["ok"] = previews("m1")
	s := New(gw, nil)
	ctx := context.Background()

	s.Search(ctx, "ok")
	gw.failSearch = errors.New("boom")
	s.Search(ctx, "bad")

	assert.Equal(t, "Failed to search emails", s.Err())
	results, q, active := s.SearchResults()
	require.True(t, active)
	assert.Equal(t, "ok", q)
	assert.Equal(t, previews("m1"), results)
}

func TestApplyFiltersBuildsQueryAndSetsOverlay(t *testing.T) {
	gw := newFakeGateway()
	gw.search["from:alice is:unread"] = previews("m7")
	s := New(gw, nil)

	f := model.DefaultFilterCriteria()
	f.Sender = "alice"
	f.ReadStatus = model.ReadStatusUnread
	s.SetFilters(f)
	s.ApplyFilters(context.Background())

	results, q, active := s.SearchResults()
	require.True(t, active)
	assert.Equal(t, "from:alice is:unread", q)
	assert.Equal(t, previews("m7"), results)
}

func TestApplyFiltersAllDefaultActsAsClear(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	gw.search["x"] = previews("m2")
	s := New(gw, nil)
	ctx := context.Background()

	s.Search(ctx, "x")
	s.ApplyFilters(ctx)

	_, _, active := s.SearchResults()
	assert.False(t, active)
	assert.Empty(t, gw.searchCalls[1:])
	assert.Equal(t, previews("m1"), s.Emails(model.MailboxInbox))
	assert.Equal(t, model.DefaultFilterCriteria(), s.Filters())
}

func TestClearFiltersResetsToPageOne(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1"), NextPageToken: "tok2"})
	gw.setPage(model.MailboxInbox, "tok2", model.PaginatedEmails{Messages: previews("m2")})
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.GoToNextPage(ctx, model.MailboxInbox)
	s.ClearFilters(ctx)

	assert.Equal(t, 1, s.Page(model.MailboxInbox))
	assert.Equal(t, previews("m1"), s.Emails(model.MailboxInbox))
}

func TestOpenMessage(t *testing.T) {
	gw := newFakeGateway()
	gw.details["m1"] = model.EmailDetail{
		EmailPreview: model.EmailPreview{ID: "m1", Subject: "hello"},
		Body:         "body",
	}
	s := New(gw, nil)

	s.OpenMessage(context.Background(), "m1")

	sel := s.Selected()
	require.NotNil(t, sel)
	assert.Equal(t, "hello", sel.Subject)
	assert.Equal(t, "body", sel.Body)
}

func TestOpenMessageNotFound(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, nil)

	s.OpenMessage(context.Background(), "missing")

	assert.Nil(t, s.Selected())
	assert.Equal(t, "Email not found", s.Err())
}

func TestDeleteMessageRemovesFromBothListsAndSelection(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1", "m2")})
	gw.setPage(model.MailboxSent, "", model.PaginatedEmails{Messages: previews("m2", "m3")})
	gw.details["m2"] = model.EmailDetail{EmailPreview: model.EmailPreview{ID: "m2"}}
	gw.search["q"] = previews("m2")
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.FetchPage(ctx, model.MailboxSent, "", false)
	s.OpenMessage(ctx, "m2")
	s.Search(ctx, "q")

	s.DeleteMessage(ctx, "m2")

	assert.Equal(t, previews("m1"), s.Emails(model.MailboxInbox))
	assert.Equal(t, previews("m3"), s.Emails(model.MailboxSent))
	assert.Nil(t, s.Selected())
	// Stale by design: the overlay is not reconciled on delete.
	results, _, active := s.SearchResults()
	require.True(t, active)
	assert.Equal(t, previews("m2"), results)
}

func TestDeleteMessageKeepsUnrelatedSelection(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1", "m2")})
	gw.details["m1"] = model.EmailDetail{EmailPreview: model.EmailPreview{ID: "m1"}}
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.OpenMessage(ctx, "m1")
	s.DeleteMessage(ctx, "m2")

	require.NotNil(t, s.Selected())
	assert.Equal(t, "m1", s.Selected().ID)
}

func TestReplyToReturnsAndRecordsError(t *testing.T) {
	gw := newFakeGateway()
	cause := errors.New("smtp down")
	gw.failReply = cause
	s := New(gw, nil)

	err := s.ReplyTo(context.Background(), "m1", "thanks")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to reply to email", s.Err())
}

func TestDeleteFailureSwallowsError(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	gw.failDelete = errors.New("boom")
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.DeleteMessage(ctx, "m1")

	assert.Equal(t, "Failed to delete email", s.Err())
	assert.Equal(t, previews("m1"), s.Emails(model.MailboxInbox))
}

func TestFetchPageSilentReplacesListAndCounts(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	sink := &recordingSink{}
	s := New(gw, sink)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m0", "m1")})

	s.FetchPage(ctx, model.MailboxInbox, "", true)

	assert.Equal(t, previews("m0", "m1"), s.Emails(model.MailboxInbox))
	assert.Equal(t, 1, s.NewEmailsCount())
	require.Len(t, sink.all(), 1)
}

func TestCheckNewMailFirstRunPopulatesSnapshotSilently(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	sink := &recordingSink{}
	s := New(gw, sink)

	s.CheckNewMail(context.Background())

	assert.Equal(t, 0, s.NewEmailsCount())
	assert.Empty(t, sink.all())
	assert.Equal(t, previews("m1"), s.Emails(model.MailboxInbox))
}

func TestCheckNewMailWhileViewingInboxPageOneReplacesList(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	sink := &recordingSink{}
	s := New(gw, sink)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m0", "m1")})

	s.CheckNewMail(ctx)

	assert.Equal(t, previews("m0", "m1"), s.Emails(model.MailboxInbox))
	assert.Equal(t, 0, s.NewEmailsCount())
	assert.Empty(t, sink.all())
}

func TestCheckNewMailElsewhereCountsAndBanners(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	sink := &recordingSink{}
	s := New(gw, sink)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.SetActiveMailbox(model.MailboxSent)
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m0", "m1")})

	s.CheckNewMail(ctx)

	assert.Equal(t, 1, s.NewEmailsCount())
	// The displayed inbox list is left as the user saw it.
	assert.Equal(t, previews("m1"), s.Emails(model.MailboxInbox))
	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "You have 1 new email", notes[0].Message)
	assert.Equal(t, model.NotificationInfo, notes[0].Level)
}

func TestCheckNewMailDoesNotDoubleCount(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	sink := &recordingSink{}
	s := New(gw, sink)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.SetActiveMailbox(model.MailboxSent)
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m0", "m1")})

	s.CheckNewMail(ctx)
	s.CheckNewMail(ctx)

	assert.Equal(t, 1, s.NewEmailsCount())
	assert.Len(t, sink.all(), 1)
}

func TestCheckNewMailWithSearchActiveDoesNotTouchList(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	gw.search["q"] = previews("m1")
	sink := &recordingSink{}
	s := New(gw, sink)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.Search(ctx, "q")
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m0", "m1")})

	s.CheckNewMail(ctx)

	assert.Equal(t, 1, s.NewEmailsCount())
	assert.Equal(t, previews("m1"), s.Emails(model.MailboxInbox))
	assert.Len(t, sink.all(), 1)
}

func TestCheckNewMailSilentFailureChangesNothing(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	s := New(gw, nil)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	gw.failList = errors.New("boom")

	err := s.CheckNewMail(ctx)

	require.Error(t, err)
	assert.Empty(t, s.Err())
	assert.Equal(t, 0, s.NewEmailsCount())
	assert.Equal(t, previews("m1"), s.Emails(model.MailboxInbox))
}

func TestResetNewEmailsCount(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	s := New(gw, &recordingSink{})
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.SetActiveMailbox(model.MailboxSent)
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m0", "m1")})
	s.CheckNewMail(ctx)
	require.Equal(t, 1, s.NewEmailsCount())

	s.ResetNewEmailsCount()

	assert.Equal(t, 0, s.NewEmailsCount())
}

func TestViewInboxAcknowledgesPendingNewMail(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	sink := &recordingSink{}
	s := New(gw, sink)
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.SetActiveMailbox(model.MailboxSent)
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m0", "m1")})
	s.CheckNewMail(ctx)
	require.Equal(t, 1, s.NewEmailsCount())

	s.ViewInbox(ctx)

	// Returning to the inbox shows the arrivals and clears the count,
	// even though the poll snapshot has already advanced past them.
	assert.Equal(t, model.MailboxInbox, s.ActiveMailbox())
	assert.Equal(t, 0, s.NewEmailsCount())
	assert.Equal(t, previews("m0", "m1"), s.Emails(model.MailboxInbox))

	s.CheckNewMail(ctx)
	assert.Equal(t, 0, s.NewEmailsCount())
}

func TestViewInboxBeyondPageOneKeepsPage(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{
		Messages:      previews("m1"),
		NextPageToken: "t2",
	})
	gw.setPage(model.MailboxInbox, "t2", model.PaginatedEmails{Messages: previews("m2")})
	s := New(gw, &recordingSink{})
	ctx := context.Background()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
	s.GoToNextPage(ctx, model.MailboxInbox)
	s.SetActiveMailbox(model.MailboxSent)
	calls := len(gw.listCalls)

	s.ViewInbox(ctx)

	assert.Equal(t, 2, s.Page(model.MailboxInbox))
	assert.Equal(t, previews("m2"), s.Emails(model.MailboxInbox))
	assert.Len(t, gw.listCalls, calls)
}

func TestListenersFireOnCommit(t *testing.T) {
	gw := newFakeGateway()
	gw.setPage(model.MailboxInbox, "", model.PaginatedEmails{Messages: previews("m1")})
	s := New(gw, nil)

	fired := 0
	s.AddListener(func() { fired++ })

	s.FetchPage(context.Background(), model.MailboxInbox, "", false)

	// Once for loading on, once for the committed result.
	assert.Equal(t, 2, fired)
}
