package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/mailstore"
	"github.com/jsean662/MailFlowAI/internal/model"
)

// listGateway serves a fixed inbox page and counts list calls.
type listGateway struct {
	mu    sync.Mutex
	page  model.PaginatedEmails
	err   error
	calls int
}

func (g *listGateway) set(page model.PaginatedEmails, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.page = page
	g.err = err
}

func (g *listGateway) ListMessages(context.Context, model.Mailbox, string) (model.PaginatedEmails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.page, g.err
}

func (g *listGateway) GetMessage(context.Context, string) (*model.EmailDetail, error) {
	return nil, gateway.ErrNotFound
}

func (g *listGateway) SendMessage(context.Context, model.SendEmailPayload) error { return nil }

func (g *listGateway) ReplyToMessage(context.Context, string, model.ReplyEmailPayload) error {
	return nil
}

func (g *listGateway) ForwardMessage(context.Context, string, model.ForwardEmailPayload) error {
	return nil
}

func (g *listGateway) DeleteMessage(context.Context, string) error { return nil }

func (g *listGateway) SearchMessages(context.Context, string) ([]model.EmailPreview, error) {
	return nil, nil
}

func TestPollerInitialRoundAndResult(t *testing.T) {
	gw := &listGateway{}
	gw.set(model.PaginatedEmails{Messages: []model.EmailPreview{{ID: "m1"}}}, nil)
	store := mailstore.New(gw, nil)
	p := New(store, time.Hour)
	defer p.Stop()

	sub := p.Start()
	require.NotNil(t, sub)

	msg := sub()
	result, ok := msg.(PollResultMsg)
	require.True(t, ok)
	assert.NoError(t, result.Error)
	assert.Equal(t, 0, result.NewEmailCount)
	assert.Equal(t, []model.EmailPreview{{ID: "m1"}}, store.Emails(model.MailboxInbox))
}

func TestPollerRefreshDetectsNewMail(t *testing.T) {
	gw := &listGateway{}
	gw.set(model.PaginatedEmails{Messages: []model.EmailPreview{{ID: "m1"}}}, nil)
	store := mailstore.New(gw, nil)
	store.SetActiveMailbox(model.MailboxSent)
	p := New(store, time.Hour)
	defer p.Stop()

	sub := p.Start()
	sub()

	gw.set(model.PaginatedEmails{Messages: []model.EmailPreview{{ID: "m0"}, {ID: "m1"}}}, nil)
	p.Refresh()

	msg := p.WaitForResult()()
	result, ok := msg.(PollResultMsg)
	require.True(t, ok)
	assert.Equal(t, 1, result.NewEmailCount)
	assert.Equal(t, 1, store.NewEmailsCount())
}

func TestPollerReportsAuthExpiry(t *testing.T) {
	gw := &listGateway{}
	gw.set(model.PaginatedEmails{}, &gateway.AuthError{Message: "session expired"})
	store := mailstore.New(gw, nil)
	p := New(store, time.Hour)
	defer p.Stop()

	msg := p.Start()()
	result, ok := msg.(PollResultMsg)
	require.True(t, ok)
	require.Error(t, result.Error)
	assert.True(t, result.AuthExpired)

	status := p.Status()
	assert.Equal(t, PollError, status.State)
}

func TestPollerStartTwiceReturnsNil(t *testing.T) {
	gw := &listGateway{}
	store := mailstore.New(gw, nil)
	p := New(store, time.Hour)
	defer p.Stop()

	require.NotNil(t, p.Start())
	assert.Nil(t, p.Start())
}
