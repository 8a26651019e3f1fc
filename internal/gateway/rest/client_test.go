package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "sess-token")
	require.NoError(t, err)
	return c
}

func TestListMessagesInbox(t *testing.T) {
	var gotPath, gotToken, gotCookie string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("page_token")
		if cookie, err := r.Cookie("session"); err == nil {
			gotCookie = cookie.Value
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]interface{}{{
				"id":      "m1",
				"sender":  "alice@example.com",
				"subject": "weekly report",
				"snippet": "attached is",
				"date":    "2024-01-10T09:30:00Z",
				"unread":  true,
			}},
			"nextPageToken": "tok2",
		})
	}))

	page, err := c.ListMessages(context.Background(), model.MailboxInbox, "tok1")

	require.NoError(t, err)
	assert.Equal(t, "/gmail/inbox", gotPath)
	assert.Equal(t, "tok1", gotToken)
	assert.Equal(t, "sess-token", gotCookie)
	assert.Equal(t, "tok2", page.NextPageToken)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "m1", page.Messages[0].ID)
	assert.True(t, page.Messages[0].Unread)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC), page.Messages[0].Date)
}

func TestListMessagesSentPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{"messages": []interface{}{}})
	}))

	_, err := c.ListMessages(context.Background(), model.MailboxSent, "")

	require.NoError(t, err)
	assert.Equal(t, "/gmail/sent", gotPath)
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detail": map[string]string{
				"error":   "AUTH_REQUIRED",
				"message": "User must login again",
			},
		})
	}))

	_, err := c.ListMessages(context.Background(), model.MailboxInbox, "")

	require.Error(t, err)
	assert.True(t, gateway.IsAuthError(err))
	assert.Contains(t, err.Error(), "User must login again")
}

func TestGetMessageNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.GetMessage(context.Background(), "missing")

	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestGetMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/messages/m1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "m1",
			"sender":  "alice@example.com",
			"subject": "hello",
			"date":    "2024-01-10T09:30:00",
			"body":    "full body",
			"unread":  false,
		})
	}))

	detail, err := c.GetMessage(context.Background(), "m1")

	require.NoError(t, err)
	assert.Equal(t, "hello", detail.Subject)
	assert.Equal(t, "full body", detail.Body)
	assert.Equal(t, 2024, detail.Date.Year())
}

func TestSendReplyForwardDeletePayloads(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]interface{}
	}
	var calls []call
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.Path, body})
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	ctx := context.Background()

	require.NoError(t, c.SendMessage(ctx, model.SendEmailPayload{
		To:      []string{"bob@example.com"},
		Subject: "hi",
		Body:    "text",
	}))
	require.NoError(t, c.ReplyToMessage(ctx, "m1", model.ReplyEmailPayload{Body: "re"}))
	require.NoError(t, c.ForwardMessage(ctx, "m1", model.ForwardEmailPayload{
		To:   []string{"carol@example.com"},
		Body: "fwd",
	}))
	require.NoError(t, c.DeleteMessage(ctx, "m1"))

	require.Len(t, calls, 4)
	assert.Equal(t, call{"POST", "/gmail/send", map[string]interface{}{
		"to": []interface{}{"bob@example.com"}, "subject": "hi", "body": "text",
	}}, calls[0])
	assert.Equal(t, "/gmail/messages/m1/reply", calls[1].path)
	assert.Equal(t, "re", calls[1].body["body"])
	assert.Equal(t, "/gmail/messages/m1/forward", calls[2].path)
	assert.Equal(t, "DELETE", calls[3].method)
	assert.Equal(t, "/gmail/messages/m1", calls[3].path)
}

func TestSearchMessages(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "m1", "sender": "a@b.c", "subject": "s", "snippet": "", "date": "2024-01-10T09:30:00Z", "unread": false},
		})
	}))

	results, err := c.SearchMessages(context.Background(), "from:alice is:unread")

	require.NoError(t, err)
	assert.Equal(t, "from:alice is:unread", gotQuery)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestCheckAuthenticated(t *testing.T) {
	authed := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]bool{"authenticated": authed})
	}))
	ctx := context.Background()

	assert.False(t, c.CheckAuthenticated(ctx))
	authed = true
	assert.True(t, c.CheckAuthenticated(ctx))
}

func TestCurrentUserProfile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"email":   "me@example.com",
			"name":    "Me",
			"picture": "https://example.com/p.png",
		})
	}))

	profile, err := c.CurrentUserProfile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "me@example.com", profile.Email)
	assert.Equal(t, "Me", profile.Name)
}
