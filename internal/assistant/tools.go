package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jsean662/MailFlowAI/internal/model"
)

// executeToolUse runs a tool requested by the AI and returns the result
// string fed back into the conversation.
func (a *Assistant) executeToolUse(ctx context.Context, tu apiToolUse) string {
	switch tu.Name {
	case "compose_email":
		return a.handleComposeEmail(tu.Input)
	case "send_email":
		return a.handleSendEmail(ctx)
	case "search_emails":
		return a.handleSearchEmails(ctx, tu.Input)
	case "open_email":
		return a.handleOpenEmail(ctx, tu.Input)
	case "reply_to_email":
		return a.handleReplyToEmail(tu.Input)
	case "forward_email":
		return a.handleForwardEmail(tu.Input)
	case "filter_inbox":
		return a.handleFilterInbox(ctx, tu.Input)
	default:
		return fmt.Sprintf(`{"error": "Unknown tool: %s"}`, tu.Name)
	}
}

func (a *Assistant) goTo(view string) {
	if a.navigate != nil {
		a.navigate(view)
	}
}

// handleComposeEmail seeds the compose draft and opens the compose view.
func (a *Assistant) handleComposeEmail(input json.RawMessage) string {
	var params struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fmt.Sprintf(`{"error": "Invalid parameters: %v"}`, err)
	}

	a.drafts.Set(Draft{
		To:      params.To,
		Subject: params.Subject,
		Body:    params.Body,
	})
	a.goTo("compose")
	return "Compose window opened with draft."
}

// handleSendEmail sends the active draft after user confirmation.
func (a *Assistant) handleSendEmail(ctx context.Context) string {
	draft := a.drafts.Current()
	if draft.To == "" || draft.Subject == "" {
		return "Error: Draft incomplete."
	}

	if a.confirmSend == nil || !a.confirmSend(draft) {
		return "Email sending cancelled by user."
	}

	err := a.gw.SendMessage(ctx, model.SendEmailPayload{
		To:      draft.Recipients(),
		Subject: draft.Subject,
		Body:    draft.Body,
	})
	if err != nil {
		return "Failed to send email. Please try again."
	}

	a.drafts.Clear()
	a.goTo("sent")
	return "Email sent successfully."
}

// handleSearchEmails applies the search overlay and shows the inbox.
func (a *Assistant) handleSearchEmails(ctx context.Context, input json.RawMessage) string {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fmt.Sprintf(`{"error": "Invalid parameters: %v"}`, err)
	}
	if params.Query == "" {
		return `{"error": "query is required"}`
	}

	a.store.Search(ctx, params.Query)
	a.goTo("inbox")
	return fmt.Sprintf("Search completed for '%s'. Results shown in Inbox.", params.Query)
}

// handleOpenEmail finds the best-matching email for the given criteria
// and opens it.
func (a *Assistant) handleOpenEmail(ctx context.Context, input json.RawMessage) string {
	var params struct {
		SearchCriteria string `json:"searchCriteria"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fmt.Sprintf(`{"error": "Invalid parameters: %v"}`, err)
	}
	if params.SearchCriteria == "" {
		return `{"error": "searchCriteria is required"}`
	}

	results, err := a.gw.SearchMessages(ctx, params.SearchCriteria)
	if err != nil || len(results) == 0 {
		return "No matching email found."
	}

	bestMatch := results[0]
	a.store.OpenMessage(ctx, bestMatch.ID)
	a.goTo("detail")
	return fmt.Sprintf("Opened email from %s: %s", bestMatch.Sender, bestMatch.Subject)
}

// handleReplyToEmail drafts a reply to the currently opened email.
func (a *Assistant) handleReplyToEmail(input json.RawMessage) string {
	var params struct {
		ResponseContent string `json:"responseContent"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fmt.Sprintf(`{"error": "Invalid parameters: %v"}`, err)
	}

	current := a.store.Selected()
	if current == nil {
		return "No email is currently open to reply to."
	}

	a.drafts.SetReply(current, params.ResponseContent)
	a.goTo("compose")
	return "Reply draft created."
}

// handleForwardEmail drafts a forward of the currently opened email.
func (a *Assistant) handleForwardEmail(input json.RawMessage) string {
	var params struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fmt.Sprintf(`{"error": "Invalid parameters: %v"}`, err)
	}
	if params.To == "" {
		return `{"error": "to is required"}`
	}

	current := a.store.Selected()
	if current == nil {
		return "No email is currently open to forward."
	}

	a.drafts.SetForward(current, params.Message, params.To)
	a.goTo("compose")
	return "Forward draft created."
}

// handleFilterInbox merges the given criteria into the filter working
// state and applies it.
func (a *Assistant) handleFilterInbox(ctx context.Context, input json.RawMessage) string {
	var params struct {
		ReadStatus    string `json:"readStatus"`
		DateRange     string `json:"dateRange"`
		StartDate     string `json:"startDate"`
		Sender        string `json:"sender"`
		Keyword       string `json:"keyword"`
		HasAttachment *bool  `json:"hasAttachment"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fmt.Sprintf(`{"error": "Invalid parameters: %v"}`, err)
	}

	filters := a.store.Filters()
	if params.ReadStatus != "" {
		filters.ReadStatus = model.ReadStatus(params.ReadStatus)
	}
	if params.DateRange != "" {
		filters.DateRange = params.DateRange
	}
	if params.StartDate != "" {
		filters.DateCenter = params.StartDate
	}
	if params.Sender != "" {
		filters.Sender = params.Sender
	}
	if params.Keyword != "" {
		filters.Keyword = params.Keyword
	}
	if params.HasAttachment != nil {
		filters.HasAttachment = *params.HasAttachment
	}

	a.store.SetFilters(filters)
	a.store.ApplyFilters(ctx)
	a.goTo("inbox")
	return "Inbox filtered and displayed."
}

// toolDefinitions returns the tool specifications for the Claude API.
func toolDefinitions() []apiTool {
	return []apiTool{
		{
			Name: "compose_email",
			Description: "Open the compose window with pre-filled details. " +
				"Use this when the user wants to write an email.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"to": {
						"type": "string",
						"description": "Comma-separated list of recipients or single email"
					},
					"subject": {
						"type": "string",
						"description": "Subject of the email"
					},
					"body": {
						"type": "string",
						"description": "Body content of the email"
					}
				},
				"required": ["to", "subject", "body"]
			}`),
		},
		{
			Name: "send_email",
			Description: "Send the email currently in the compose draft. " +
				"ONLY use this if there is an active draft. The user is " +
				"asked to confirm before anything is sent.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
		{
			Name:        "search_emails",
			Description: "Search for emails in the inbox using a query string.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "The search query (e.g., 'from:john', 'subject:meeting')"
					}
				},
				"required": ["query"]
			}`),
		},
		{
			Name: "open_email",
			Description: "Open a specific email by searching for it first. " +
				"Providing a search criteria helps find the right email.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"searchCriteria": {
						"type": "string",
						"description": "Description or query to find the email (e.g., 'latest from Google', 'invoice from hopeful')"
					}
				},
				"required": ["searchCriteria"]
			}`),
		},
		{
			Name: "reply_to_email",
			Description: "Reply to the email currently being viewed. You can " +
				"provide specific content for the reply to be pre-filled.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"responseContent": {
						"type": "string",
						"description": "The content of the reply message."
					}
				}
			}`),
		},
		{
			Name: "forward_email",
			Description: "Forward the email currently being viewed to " +
				"another recipient.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"to": {
						"type": "string",
						"description": "The email address to forward to."
					},
					"message": {
						"type": "string",
						"description": "Optional message to include above the forwarded content."
					}
				},
				"required": ["to"]
			}`),
		},
		{
			Name: "filter_inbox",
			Description: "Filter the inbox view. The user can specify a " +
				"duration and optionally a start date. If the user gives a " +
				"duration NOT in {1d, 3d, 7d, 14d, 1m, 2m, 6m, 1y}, explain " +
				"that only those durations are allowed and ask them to " +
				"choose one; do NOT guess.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"readStatus": {
						"type": "string",
						"enum": ["read", "unread", "all"],
						"description": "Read status filter"
					},
					"dateRange": {
						"type": "string",
						"description": "Duration of the filter window centered on startDate, e.g. '1d', '3d', '7d', '1m'. Defaults to '1d'."
					},
					"startDate": {
						"type": "string",
						"description": "The center date for the filter in YYYY/MM/DD format. Defaults to today."
					},
					"sender": {
						"type": "string",
						"description": "Sender email address or name"
					},
					"keyword": {
						"type": "string",
						"description": "Keyword to search for"
					},
					"hasAttachment": {
						"type": "boolean",
						"description": "Filter by having attachment"
					}
				}
			}`),
		},
	}
}
