// Package rest implements the mail gateway against the MailFlow HTTP
// backend. Authentication rides on an HTTP session cookie; a 401 from
// any endpoint surfaces as a gateway.AuthError so the shell can force
// re-login.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/model"
)

// sessionCookieName is the backend's session cookie.
const sessionCookieName = "session"

// Client is a thin HTTP client for the MailFlow backend REST API. It
// handles cookie session authentication and JSON (de)serialization.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL. The session
// argument is an existing session cookie value, usually loaded from the
// credential store; pass "" when no session exists yet.
func NewClient(baseURL, session string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	if session != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
		}
		jar.SetCookies(u, []*http.Cookie{{
			Name:  sessionCookieName,
			Value: session,
		}})
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}, nil
}

// LoginURL returns the browser URL that starts the OAuth login flow.
func (c *Client) LoginURL() string {
	return c.baseURL + "/auth/login"
}

// apiError is the backend's error envelope, e.g.
// {"detail": {"error": "AUTH_REQUIRED", "message": "..."}}.
type apiError struct {
	Detail struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"detail"`
}

// do performs one request against the backend and unmarshals the JSON
// response into result when result is non-nil.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body interface{},
	result interface{},
) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		var apiErr apiError
		msg := "session expired"
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Detail.Message != "" {
			msg = apiErr.Detail.Message
		}
		return &gateway.AuthError{Message: msg}

	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, gateway.ErrNotFound)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Detail.Message != "" {
			return fmt.Errorf(
				"backend error (%d) on %s %s: %s",
				resp.StatusCode, method, path, apiErr.Detail.Message,
			)
		}
		return fmt.Errorf(
			"backend error (%d) on %s %s", resp.StatusCode, method, path,
		)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s: %w", path, err)
		}
	}

	return nil
}

// --- Wire types ---

// The backend serializes dates as ISO 8601, with or without a timezone
// offset depending on the upstream header.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseWireDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type wirePreview struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
	Unread  bool   `json:"unread"`
}

func (w wirePreview) toModel() model.EmailPreview {
	return model.EmailPreview{
		ID:      w.ID,
		Sender:  w.Sender,
		Subject: w.Subject,
		Snippet: w.Snippet,
		Date:    parseWireDate(w.Date),
		Unread:  w.Unread,
	}
}

type wireDetail struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Body    string `json:"body"`
	Unread  bool   `json:"unread"`
}

type wirePage struct {
	Messages      []wirePreview `json:"messages"`
	NextPageToken string        `json:"nextPageToken"`
}

func toPreviews(wire []wirePreview) []model.EmailPreview {
	out := make([]model.EmailPreview, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toModel())
	}
	return out
}

// --- Gateway ---

// ListMessages implements gateway.Gateway.
func (c *Client) ListMessages(ctx context.Context, box model.Mailbox, pageToken string) (model.PaginatedEmails, error) {
	path := "/gmail/inbox"
	if box == model.MailboxSent {
		path = "/gmail/sent"
	}

	query := url.Values{}
	if pageToken != "" {
		query.Set("page_token", pageToken)
	}

	var page wirePage
	if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
		return model.PaginatedEmails{}, err
	}

	return model.PaginatedEmails{
		Messages:      toPreviews(page.Messages),
		NextPageToken: page.NextPageToken,
	}, nil
}

// GetMessage implements gateway.Gateway.
func (c *Client) GetMessage(ctx context.Context, id string) (*model.EmailDetail, error) {
	var detail wireDetail
	err := c.do(ctx, http.MethodGet, "/gmail/messages/"+url.PathEscape(id), nil, nil, &detail)
	if err != nil {
		return nil, err
	}

	return &model.EmailDetail{
		EmailPreview: model.EmailPreview{
			ID:      detail.ID,
			Sender:  detail.Sender,
			Subject: detail.Subject,
			Date:    parseWireDate(detail.Date),
			Unread:  detail.Unread,
		},
		Body: detail.Body,
	}, nil
}

// SendMessage implements gateway.Gateway.
func (c *Client) SendMessage(ctx context.Context, payload model.SendEmailPayload) error {
	body := map[string]interface{}{
		"to":      payload.To,
		"subject": payload.Subject,
		"body":    payload.Body,
	}
	return c.do(ctx, http.MethodPost, "/gmail/send", nil, body, nil)
}

// ReplyToMessage implements gateway.Gateway.
func (c *Client) ReplyToMessage(ctx context.Context, id string, payload model.ReplyEmailPayload) error {
	body := map[string]interface{}{"body": payload.Body}
	path := "/gmail/messages/" + url.PathEscape(id) + "/reply"
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// ForwardMessage implements gateway.Gateway.
func (c *Client) ForwardMessage(ctx context.Context, id string, payload model.ForwardEmailPayload) error {
	body := map[string]interface{}{
		"to":   payload.To,
		"body": payload.Body,
	}
	path := "/gmail/messages/" + url.PathEscape(id) + "/forward"
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

// DeleteMessage implements gateway.Gateway.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/gmail/messages/"+url.PathEscape(id), nil, nil, nil)
}

// SearchMessages implements gateway.Gateway.
func (c *Client) SearchMessages(ctx context.Context, query string) ([]model.EmailPreview, error) {
	q := url.Values{}
	q.Set("q", query)

	var wire []wirePreview
	if err := c.do(ctx, http.MethodGet, "/gmail/search", q, nil, &wire); err != nil {
		return nil, err
	}
	return toPreviews(wire), nil
}

// --- Authenticator ---

// CheckAuthenticated implements gateway.Authenticator. Any transport or
// decode failure counts as not authenticated.
func (c *Client) CheckAuthenticated(ctx context.Context) bool {
	var status struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/status", nil, nil, &status); err != nil {
		return false
	}
	return status.Authenticated
}

// CurrentUserProfile implements gateway.Authenticator.
func (c *Client) CurrentUserProfile(ctx context.Context) (*model.UserProfile, error) {
	var profile struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &model.UserProfile{
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
	}, nil
}

// Logout implements gateway.Authenticator.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/logout", nil, nil, nil)
}
