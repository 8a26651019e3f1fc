// Package mailstore owns the client-side mail state: the canonical inbox
// and sent lists, their pagination ledgers, the search overlay, the
// selected message, and the new-mail detection snapshot. All mutations go
// through Store operations; the UI and the AI assistant are both plain
// callers.
package mailstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/model"
	"github.com/jsean662/MailFlowAI/internal/query"
)

// Sink receives fire-and-forget banner notifications from the store. It
// has no feedback effect on the store.
type Sink interface {
	Publish(n model.Notification)
}

// NopSink discards all notifications.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(model.Notification) {}

// Listener is invoked synchronously after every committed state change.
// Listeners must not mutate the store from within the callback.
type Listener func()

// viewState is the per-mailbox slice of store state: the displayed page,
// the pagination ledger, and the latest continuation token.
type viewState struct {
	emails []model.EmailPreview
	page   int
	// tokens maps page number to the token that fetches it. Page 1 is
	// always the empty token. Entries are never evicted, so backward
	// navigation never has to re-derive a token.
	tokens        map[int]string
	nextPageToken string
}

func newViewState() viewState {
	return viewState{
		page:   1,
		tokens: map[int]string{1: ""},
	}
}

// Store is the mail state store. One asynchronous gateway call backs each
// mutating operation; state reads and writes on either side of that call
// are atomic. Two concurrently triggered operations on the same view are
// not serialized: the response that resolves last wins.
type Store struct {
	mu sync.Mutex

	gw   gateway.Gateway
	sink Sink

	inbox viewState
	sent  viewState

	// Search overlay. When searchQuery is non-empty the overlay is
	// displayed instead of the canonical list, which stays untouched
	// underneath.
	searchResults []model.EmailPreview
	searchQuery   string

	selected *model.EmailDetail
	filters  model.FilterCriteria

	// snapshot is the set of inbox page-1 ids as of the last successful
	// poll or view; nil until first populated.
	snapshot       map[string]struct{}
	newEmailsCount int

	// active is the mailbox the user is currently looking at, reported
	// by the UI so background reconciliation knows whether a fresh
	// page 1 may be shown directly.
	active model.Mailbox

	loading bool
	errMsg  string

	profile *model.UserProfile

	listeners []Listener
}

// New creates a store over the given gateway. A nil sink discards
// notifications.
func New(gw gateway.Gateway, sink Sink) *Store {
	if sink == nil {
		sink = NopSink{}
	}
	return &Store{
		gw:      gw,
		sink:    sink,
		inbox:   newViewState(),
		sent:    newViewState(),
		filters: model.DefaultFilterCriteria(),
		active:  model.MailboxInbox,
	}
}

// AddListener registers a change listener.
func (s *Store) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// notifyListeners invokes listeners outside the lock so they may read
// store state through the accessors.
func (s *Store) notifyListeners() {
	s.mu.Lock()
	ls := make([]Listener, len(s.listeners))
	copy(ls, s.listeners)
	s.mu.Unlock()

	for _, l := range ls {
		l()
	}
}

func (s *Store) view(box model.Mailbox) *viewState {
	if box == model.MailboxSent {
		return &s.sent
	}
	return &s.inbox
}

// --- Accessors ---

// Emails returns a copy of the canonical list for the given mailbox.
func (s *Store) Emails(box model.Mailbox) []model.EmailPreview {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view(box)
	out := make([]model.EmailPreview, len(v.emails))
	copy(out, v.emails)
	return out
}

// Page returns the current page number for the given mailbox.
func (s *Store) Page(box model.Mailbox) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(box).page
}

// HasNextPage reports whether the latest fetch for the mailbox returned a
// continuation token.
func (s *Store) HasNextPage(box model.Mailbox) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(box).nextPageToken != ""
}

// SearchActive reports whether the search overlay is currently applied.
func (s *Store) SearchActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchQuery != ""
}

// SearchResults returns the overlay result list and its query string.
// The boolean is false when no search is active.
func (s *Store) SearchResults() ([]model.EmailPreview, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchQuery == "" {
		return nil, "", false
	}
	out := make([]model.EmailPreview, len(s.searchResults))
	copy(out, s.searchResults)
	return out, s.searchQuery, true
}

// Selected returns the currently opened message, or nil.
func (s *Store) Selected() *model.EmailDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	d := *s.selected
	return &d
}

// ClearSelected drops the selected message, e.g. on navigating away from
// the detail view.
func (s *Store) ClearSelected() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.notifyListeners()
}

// Filters returns the current filter working state.
func (s *Store) Filters() model.FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SetFilters replaces the filter working state. Displayed results do not
// change until ApplyFilters runs.
func (s *Store) SetFilters(f model.FilterCriteria) {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	s.notifyListeners()
}

// SetKeyword updates only the keyword of the filter working state.
func (s *Store) SetKeyword(keyword string) {
	s.mu.Lock()
	s.filters.Keyword = keyword
	s.mu.Unlock()
	s.notifyListeners()
}

// NewEmailsCount returns the number of unacknowledged new-mail arrivals.
func (s *Store) NewEmailsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newEmailsCount
}

// ResetNewEmailsCount acknowledges pending new mail, e.g. when the user
// navigates to the inbox.
func (s *Store) ResetNewEmailsCount() {
	s.mu.Lock()
	s.newEmailsCount = 0
	s.mu.Unlock()
	s.notifyListeners()
}

// SetActiveMailbox records which mailbox the user is looking at.
func (s *Store) SetActiveMailbox(box model.Mailbox) {
	s.mu.Lock()
	s.active = box
	s.mu.Unlock()
	s.notifyListeners()
}

// ViewInbox activates the inbox and acknowledges pending new mail. When
// the user is on page 1 the page is re-fetched in the foreground so
// arrivals detected by background polling become visible instead of
// lingering as a stale count.
func (s *Store) ViewInbox(ctx context.Context) {
	s.SetActiveMailbox(model.MailboxInbox)
	s.ResetNewEmailsCount()
	if s.Page(model.MailboxInbox) == 1 {
		s.FetchPage(ctx, model.MailboxInbox, "", false)
	}
}

// ActiveMailbox returns the mailbox the user is looking at.
func (s *Store) ActiveMailbox() model.Mailbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Loading reports whether a non-silent operation is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the error message of the last failed operation, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Profile returns the cached user profile, or nil.
func (s *Store) Profile() *model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// SetProfile caches the authenticated user's profile.
func (s *Store) SetProfile(p *model.UserProfile) {
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	s.notifyListeners()
}

// --- Operations ---

func fetchErrMessage(box model.Mailbox) string {
	if box == model.MailboxSent {
		return "Failed to fetch sent emails"
	}
	return "Failed to fetch inbox"
}

// beginOp marks a non-silent operation as started: loading on, previous
// error cleared.
func (s *Store) beginOp() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.notifyListeners()
}

// failOp records the fixed per-operation error message and leaves every
// entity from before the call unchanged.
func (s *Store) failOp(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.loading = false
	s.mu.Unlock()
	s.notifyListeners()
}

// FetchPage fetches one page of a mailbox and replaces that view's
// displayed list wholesale. The continuation token returned by the
// backend is recorded in the ledger for the following page.
//
// Fetching inbox page 1 with no token additionally reconciles the
// new-mail snapshot: a foreground fetch acknowledges pending arrivals,
// while a silent fetch skips the loading indicator, counts them, and
// raises a banner. The silent form is the page-fetch twin of
// CheckNewMail for callers that want the list replaced as well; the
// poller itself goes through CheckNewMail so a failure reaches its
// status line instead of the store's error field.
func (s *Store) FetchPage(ctx context.Context, box model.Mailbox, token string, silent bool) {
	if !silent {
		s.beginOp()
	}

	data, err := s.gw.ListMessages(ctx, box, token)
	if err != nil {
		s.failOp(fetchErrMessage(box))
		return
	}

	s.mu.Lock()
	v := s.view(box)
	v.emails = data.Messages
	v.nextPageToken = data.NextPageToken
	v.tokens[v.page+1] = data.NextPageToken

	if box == model.MailboxInbox && token == "" && v.page == 1 {
		fetched := idSet(data.Messages)
		switch {
		case s.snapshot == nil:
			// First population; nothing to compare against yet.
			s.snapshot = fetched
		case silent:
			newCount := countMissing(data.Messages, s.snapshot)
			if newCount > 0 {
				s.newEmailsCount += newCount
				s.snapshot = fetched
				s.publishNewMail(newCount)
			}
		default:
			// Foreground refresh: the user sees the fresh list,
			// so pending arrivals are acknowledged.
			s.snapshot = fetched
			s.newEmailsCount = 0
		}
	}

	s.loading = false
	s.mu.Unlock()
	s.notifyListeners()
}

// GoToNextPage advances the mailbox one page forward using the latest
// continuation token. It is a no-op when the backend reported no further
// page.
func (s *Store) GoToNextPage(ctx context.Context, box model.Mailbox) {
	s.mu.Lock()
	v := s.view(box)
	next := v.nextPageToken
	if next == "" {
		s.mu.Unlock()
		return
	}
	v.page++
	v.tokens[v.page] = next
	s.mu.Unlock()

	s.FetchPage(ctx, box, next, false)
}

// GoToPrevPage steps the mailbox one page back using the ledger. It is a
// no-op on page 1. The ledger invariant guarantees the token for every
// previously visited page is still present.
func (s *Store) GoToPrevPage(ctx context.Context, box model.Mailbox) {
	s.mu.Lock()
	v := s.view(box)
	if v.page <= 1 {
		s.mu.Unlock()
		return
	}
	v.page--
	token := v.tokens[v.page]
	s.mu.Unlock()

	s.FetchPage(ctx, box, token, false)
}

// OpenMessage clears the selection, fetches the full message, and stores
// it as the selected message.
func (s *Store) OpenMessage(ctx context.Context, id string) {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.selected = nil
	s.mu.Unlock()
	s.notifyListeners()

	detail, err := s.gw.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			s.failOp("Email not found")
		} else {
			s.failOp("Failed to open email")
		}
		return
	}

	s.mu.Lock()
	s.selected = detail
	s.loading = false
	s.mu.Unlock()
	s.notifyListeners()
}

// Search applies the search overlay for the given query. A blank query
// clears the overlay and returns without touching anything else; the
// canonical lists are never modified either way.
func (s *Store) Search(ctx context.Context, q string) {
	if strings.TrimSpace(q) == "" {
		s.mu.Lock()
		s.searchResults = nil
		s.searchQuery = ""
		s.mu.Unlock()
		s.notifyListeners()
		return
	}

	s.beginOp()

	results, err := s.gw.SearchMessages(ctx, q)
	if err != nil {
		s.failOp("Failed to search emails")
		return
	}

	s.mu.Lock()
	s.searchResults = results
	s.searchQuery = q
	s.loading = false
	s.mu.Unlock()
	s.notifyListeners()
}

// ClearSearch drops the search overlay, revealing the canonical list.
func (s *Store) ClearSearch() {
	s.mu.Lock()
	s.searchResults = nil
	s.searchQuery = ""
	s.mu.Unlock()
	s.notifyListeners()
}

// ApplyFilters builds a query from the filter working state and applies
// it as the search overlay. An all-default criteria set builds an empty
// query and is treated exactly like ClearFilters: overlay cleared, inbox
// page 1 re-fetched.
func (s *Store) ApplyFilters(ctx context.Context) {
	s.mu.Lock()
	q := query.Build(s.filters)
	s.mu.Unlock()

	if strings.TrimSpace(q) == "" {
		s.ClearFilters(ctx)
		return
	}

	s.beginOp()

	results, err := s.gw.SearchMessages(ctx, q)
	if err != nil {
		s.failOp("Failed to apply filters")
		return
	}

	s.mu.Lock()
	s.searchResults = results
	s.searchQuery = q
	s.loading = false
	s.mu.Unlock()
	s.notifyListeners()
}

// ClearFilters resets the filter working state to defaults, clears the
// overlay, and re-fetches inbox page 1 in the foreground, which also
// acknowledges pending new mail.
func (s *Store) ClearFilters(ctx context.Context) {
	s.mu.Lock()
	s.filters = model.DefaultFilterCriteria()
	s.searchResults = nil
	s.searchQuery = ""
	s.inbox.page = 1
	s.mu.Unlock()
	s.notifyListeners()

	s.FetchPage(ctx, model.MailboxInbox, "", false)
}

// DeleteMessage deletes the message and removes it from both canonical
// lists; the selection is cleared iff it held the deleted id. The search
// overlay is deliberately left alone: a deleted message may linger in
// stale search results until the next search.
func (s *Store) DeleteMessage(ctx context.Context, id string) {
	s.beginOp()

	if err := s.gw.DeleteMessage(ctx, id); err != nil {
		s.failOp("Failed to delete email")
		return
	}

	s.mu.Lock()
	s.inbox.emails = removeID(s.inbox.emails, id)
	s.sent.emails = removeID(s.sent.emails, id)
	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
	}
	s.loading = false
	s.mu.Unlock()
	s.notifyListeners()
}

// ReplyTo sends a reply on the given message's thread. Unlike the other
// mutating operations, a failure is both recorded in the error field and
// returned, so compound callers such as the assistant can react.
func (s *Store) ReplyTo(ctx context.Context, id, body string) error {
	s.beginOp()

	if err := s.gw.ReplyToMessage(ctx, id, model.ReplyEmailPayload{Body: body}); err != nil {
		s.failOp("Failed to reply to email")
		return fmt.Errorf("replying to %s: %w", id, err)
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.notifyListeners()
	return nil
}

// Forward forwards the given message. Failures are recorded and returned,
// matching ReplyTo.
func (s *Store) Forward(ctx context.Context, id string, to []string, body string) error {
	s.beginOp()

	if err := s.gw.ForwardMessage(ctx, id, model.ForwardEmailPayload{To: to, Body: body}); err != nil {
		s.failOp("Failed to forward email")
		return fmt.Errorf("forwarding %s: %w", id, err)
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.notifyListeners()
	return nil
}

// CheckNewMail performs the silent new-mail reconciliation driven by the
// background poll. It fetches inbox page 1 without touching the loading
// indicator and diffs the result against the snapshot. New arrivals are
// shown directly when the user is looking at inbox page 1 with no search
// active; otherwise the count is bumped and a banner raised while the
// displayed list stays exactly as the user left it. The
// snapshot always advances, so the same arrival is never counted twice.
//
// A failure is returned for the poller's status line but leaves every
// piece of store state, the error field included, untouched.
func (s *Store) CheckNewMail(ctx context.Context) error {
	data, err := s.gw.ListMessages(ctx, model.MailboxInbox, "")
	if err != nil {
		return fmt.Errorf("checking new mail: %w", err)
	}

	s.mu.Lock()
	if s.snapshot == nil {
		// No baseline yet: this fetch becomes it. Populate the inbox
		// view too if nothing has been fetched into it so far.
		s.snapshot = idSet(data.Messages)
		if s.inbox.emails == nil {
			s.inbox.emails = data.Messages
			s.inbox.nextPageToken = data.NextPageToken
			s.inbox.tokens[2] = data.NextPageToken
		}
		s.mu.Unlock()
		s.notifyListeners()
		return nil
	}

	newCount := countMissing(data.Messages, s.snapshot)
	if newCount == 0 {
		s.snapshot = idSet(data.Messages)
		s.mu.Unlock()
		s.notifyListeners()
		return nil
	}

	viewingFreshInbox := s.active == model.MailboxInbox &&
		s.inbox.page == 1 &&
		s.searchQuery == ""

	if viewingFreshInbox {
		s.inbox.emails = data.Messages
		s.inbox.nextPageToken = data.NextPageToken
		s.inbox.tokens[2] = data.NextPageToken
		s.snapshot = idSet(data.Messages)
		s.newEmailsCount = 0
		s.mu.Unlock()
		s.notifyListeners()
		return nil
	}

	s.newEmailsCount += newCount
	s.snapshot = idSet(data.Messages)
	s.publishNewMail(newCount)
	s.mu.Unlock()
	s.notifyListeners()
	return nil
}

// publishNewMail emits the new-mail banner. Callers hold the lock; the
// sink must not call back into the store.
func (s *Store) publishNewMail(count int) {
	plural := ""
	if count > 1 {
		plural = "s"
	}
	s.sink.Publish(model.Notification{
		ID:        uuid.NewString(),
		Level:     model.NotificationInfo,
		Message:   fmt.Sprintf("You have %d new email%s", count, plural),
		CreatedAt: time.Now(),
	})
}

func idSet(emails []model.EmailPreview) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		set[e.ID] = struct{}{}
	}
	return set
}

func countMissing(emails []model.EmailPreview, set map[string]struct{}) int {
	n := 0
	for _, e := range emails {
		if _, ok := set[e.ID]; !ok {
			n++
		}
	}
	return n
}

func removeID(emails []model.EmailPreview, id string) []model.EmailPreview {
	out := emails[:0:0]
	for _, e := range emails {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
