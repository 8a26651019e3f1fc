package cache

import (
	"context"
	"time"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/model"
)

const (
	// DefaultListTTL matches the backend's list and search cache window.
	DefaultListTTL = 5 * time.Minute
	// DefaultDetailTTL is longer since message bodies never change.
	DefaultDetailTTL = 10 * time.Minute
)

const (
	listPrefix   = "list:"
	detailPrefix = "detail:"
	searchPrefix = "search:"
)

// Gateway decorates another gateway with the read-through cache. Cache
// failures are treated as misses, so a broken cache degrades to direct
// backend calls instead of breaking mail operations.
type Gateway struct {
	inner gateway.Gateway
	store *Store

	listTTL   time.Duration
	detailTTL time.Duration
}

var _ gateway.Gateway = (*Gateway)(nil)

// Wrap decorates inner with the given cache store. Non-positive TTLs
// fall back to the defaults.
func Wrap(inner gateway.Gateway, store *Store, listTTL, detailTTL time.Duration) *Gateway {
	if listTTL <= 0 {
		listTTL = DefaultListTTL
	}
	if detailTTL <= 0 {
		detailTTL = DefaultDetailTTL
	}
	return &Gateway{
		inner:     inner,
		store:     store,
		listTTL:   listTTL,
		detailTTL: detailTTL,
	}
}

// ListMessages implements gateway.Gateway with a read-through on the
// mailbox page.
func (g *Gateway) ListMessages(ctx context.Context, box model.Mailbox, pageToken string) (model.PaginatedEmails, error) {
	key := listPrefix + string(box) + ":" + pageToken

	var cached model.PaginatedEmails
	if hit, err := g.store.Get(key, &cached); err == nil && hit {
		return cached, nil
	}

	page, err := g.inner.ListMessages(ctx, box, pageToken)
	if err != nil {
		return model.PaginatedEmails{}, err
	}

	g.store.Set(key, page, g.listTTL)
	return page, nil
}

// GetMessage implements gateway.Gateway with a read-through on the
// message body.
func (g *Gateway) GetMessage(ctx context.Context, id string) (*model.EmailDetail, error) {
	key := detailPrefix + id

	var cached model.EmailDetail
	if hit, err := g.store.Get(key, &cached); err == nil && hit {
		return &cached, nil
	}

	detail, err := g.inner.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	g.store.Set(key, detail, g.detailTTL)
	return detail, nil
}

// SendMessage implements gateway.Gateway. A successful send invalidates
// list and search entries since the sent mailbox changed.
func (g *Gateway) SendMessage(ctx context.Context, payload model.SendEmailPayload) error {
	if err := g.inner.SendMessage(ctx, payload); err != nil {
		return err
	}
	g.invalidateLists()
	return nil
}

// ReplyToMessage implements gateway.Gateway.
func (g *Gateway) ReplyToMessage(ctx context.Context, id string, payload model.ReplyEmailPayload) error {
	if err := g.inner.ReplyToMessage(ctx, id, payload); err != nil {
		return err
	}
	g.invalidateLists()
	return nil
}

// ForwardMessage implements gateway.Gateway.
func (g *Gateway) ForwardMessage(ctx context.Context, id string, payload model.ForwardEmailPayload) error {
	if err := g.inner.ForwardMessage(ctx, id, payload); err != nil {
		return err
	}
	g.invalidateLists()
	return nil
}

// DeleteMessage implements gateway.Gateway. A successful delete drops
// the message's cached body as well as the list and search entries.
func (g *Gateway) DeleteMessage(ctx context.Context, id string) error {
	if err := g.inner.DeleteMessage(ctx, id); err != nil {
		return err
	}
	g.store.DeleteByPrefix(detailPrefix + id)
	g.invalidateLists()
	return nil
}

// SearchMessages implements gateway.Gateway with a read-through keyed on
// the query string.
func (g *Gateway) SearchMessages(ctx context.Context, query string) ([]model.EmailPreview, error) {
	key := searchPrefix + query

	var cached []model.EmailPreview
	if hit, err := g.store.Get(key, &cached); err == nil && hit {
		return cached, nil
	}

	results, err := g.inner.SearchMessages(ctx, query)
	if err != nil {
		return nil, err
	}

	g.store.Set(key, results, g.listTTL)
	return results, nil
}

func (g *Gateway) invalidateLists() {
	g.store.DeleteByPrefix(listPrefix)
	g.store.DeleteByPrefix(searchPrefix)
}
