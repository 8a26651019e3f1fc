// Package assistant is the AI layer of the mail client. It talks to the
// Claude Messages API, carries the conversation, and exposes mail
// operations as tools so the model can drive the same store the UI does.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jsean662/MailFlowAI/internal/gateway"
	"github.com/jsean662/MailFlowAI/internal/mailstore"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
)

// StreamChunk represents a piece of the AI response being streamed back.
type StreamChunk struct {
	Text string
	Done bool
}

// NavigateFunc is invoked when a tool wants the UI to show a particular
// view, e.g. "inbox", "sent", "compose" or "detail".
type NavigateFunc func(view string)

// ConfirmSendFunc asks the user to approve sending the current draft.
// Returning false cancels the send.
type ConfirmSendFunc func(d Draft) bool

// Assistant is the AI assistant service that communicates with the
// Claude API, manages conversation context, and handles tool use for
// mail operations.
type Assistant struct {
	apiKey    string
	store     *mailstore.Store
	gw        gateway.Gateway
	drafts    *DraftManager
	context   *ConversationContext
	model     string
	maxTokens int
	client    *http.Client

	navigate    NavigateFunc
	confirmSend ConfirmSendFunc
}

// New creates a new AI assistant over the given store and gateway.
func New(
	apiKey string,
	s *mailstore.Store,
	gw gateway.Gateway,
	drafts *DraftManager,
	modelName string,
	maxTokens int,
) *Assistant {
	if modelName == "" {
		modelName = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Assistant{
		apiKey:    apiKey,
		store:     s,
		gw:        gw,
		drafts:    drafts,
		context:   NewConversationContext(),
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{},
	}
}

// SetNavigate wires the UI navigation callback.
func (a *Assistant) SetNavigate(f NavigateFunc) {
	a.navigate = f
}

// SetConfirmSend wires the send confirmation prompt. Without it the
// send_email tool refuses to send.
func (a *Assistant) SetConfirmSend(f ConfirmSendFunc) {
	a.confirmSend = f
}

// Reset clears the conversation history.
func (a *Assistant) Reset() {
	a.context.Reset()
}

// SendMessage sends a user message to the Claude API and returns a
// channel that receives response chunks. The channel is closed when the
// response is complete.
func (a *Assistant) SendMessage(
	ctx context.Context,
	userMsg string,
) (<-chan StreamChunk, error) {
	a.context.AddMessage(RoleUser, userMsg)

	ch := make(chan StreamChunk, 16)

	go func() {
		defer close(ch)
		a.processMessage(ctx, ch)
	}()

	return ch, nil
}

// processMessage handles the API call loop, including tool use iterations.
func (a *Assistant) processMessage(ctx context.Context, ch chan<- StreamChunk) {
	maxToolIterations := 5

	for i := 0; i < maxToolIterations; i++ {
		resp, err := a.callAPI(ctx)
		if err != nil {
			ch <- StreamChunk{
				Text: fmt.Sprintf("Error: %v", err),
				Done: true,
			}
			return
		}

		var textParts []string
		var toolUseBlocks []apiToolUse
		hasToolUse := false

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textParts = append(textParts, block.Text)
			case "tool_use":
				hasToolUse = true
				toolUseBlocks = append(toolUseBlocks, apiToolUse{
					ID:    block.ID,
					Name:  block.Name,
					Input: block.Input,
				})
			}
		}

		if len(textParts) > 0 {
			combined := strings.Join(textParts, "")
			ch <- StreamChunk{Text: combined, Done: !hasToolUse}

			if !hasToolUse {
				a.context.AddMessage(RoleAssistant, combined)
				return
			}
		}

		if !hasToolUse {
			if len(textParts) == 0 {
				ch <- StreamChunk{Text: "", Done: true}
			}
			return
		}

		assistantContent, err := json.Marshal(resp.Content)
		if err != nil {
			ch <- StreamChunk{
				Text: fmt.Sprintf("Error encoding response: %v", err),
				Done: true,
			}
			return
		}
		a.context.AddMessage(RoleAssistant, string(assistantContent))

		var toolResults []apiContentBlock
		for _, tu := range toolUseBlocks {
			result := a.executeToolUse(ctx, tu)
			toolResults = append(toolResults, apiContentBlock{
				Type:      "tool_result",
				ToolUseID: tu.ID,
				Content:   result,
			})
		}

		toolResultsJSON, err := json.Marshal(toolResults)
		if err != nil {
			ch <- StreamChunk{
				Text: fmt.Sprintf("Error encoding tool results: %v", err),
				Done: true,
			}
			return
		}
		a.context.AddMessage(RoleUser, string(toolResultsJSON))
	}

	ch <- StreamChunk{
		Text: "\n\n(Reached maximum tool use iterations)",
		Done: true,
	}
}

// callAPI makes a single request to the Claude Messages API.
func (a *Assistant) callAPI(ctx context.Context) (*apiResponse, error) {
	reqBody := apiRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    a.buildSystemPrompt(),
		Messages:  a.buildAPIMessages(),
		Tools:     toolDefinitions(),
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, apiURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &result, nil
}

// buildSystemPrompt constructs the system prompt with the user's profile
// and the currently opened email as readable context.
func (a *Assistant) buildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are an email assistant inside a mail client. ")
	sb.WriteString("You can search, open, filter, compose, reply to and ")
	sb.WriteString("forward emails on the user's behalf.\n\n")

	if profile := a.store.Profile(); profile != nil {
		fmt.Fprintf(&sb,
			"The logged-in user is %s <%s>. Sign emails with this name.\n\n",
			profile.Name, profile.Email,
		)
	}

	if selected := a.store.Selected(); selected != nil {
		sb.WriteString("The user is currently viewing this email; use it ")
		sb.WriteString("when asked to reply to or forward the current email:\n")
		fmt.Fprintf(&sb, "From: %s\nSubject: %s\nDate: %s\n\n",
			selected.Sender, selected.Subject,
			selected.Date.Format("2006-01-02 15:04"),
		)
	}

	if draft := a.drafts.Current(); !draft.Empty() {
		fmt.Fprintf(&sb,
			"There is an active compose draft to %q with subject %q.\n\n",
			draft.To, draft.Subject,
		)
	}

	sb.WriteString("Search queries use Gmail operators such as from:, ")
	sb.WriteString("is:unread, has:attachment, after:YYYY/MM/DD.\n")
	sb.WriteString("For filter_inbox, only the durations 1d, 3d, 7d, 14d, ")
	sb.WriteString("1m, 2m, 6m and 1y are allowed. If the user asks for a ")
	sb.WriteString("different duration, explain the allowed set and ask ")
	sb.WriteString("them to choose one; do not guess.\n")
	sb.WriteString("Sending always happens through send_email, which asks ")
	sb.WriteString("the user to confirm first. Keep responses concise.")

	return sb.String()
}

// buildAPIMessages converts the conversation context into the Claude API
// message format. Messages with JSON content blocks (from tool use) are
// sent as structured content; plain text messages are sent as-is.
func (a *Assistant) buildAPIMessages() []apiMessage {
	contextMsgs := a.context.GetMessages()
	var messages []apiMessage

	for _, msg := range contextMsgs {
		if isJSONArray(msg.Content) {
			var blocks []apiContentBlock
			if err := json.Unmarshal([]byte(msg.Content), &blocks); err == nil {
				messages = append(messages, apiMessage{
					Role:    string(msg.Role),
					Content: blocks,
				})
				continue
			}
		}

		messages = append(messages, apiMessage{
			Role: string(msg.Role),
			Content: []apiContentBlock{
				{Type: "text", Text: msg.Content},
			},
		})
	}

	return messages
}

// isJSONArray returns true if the string starts with '['.
func isJSONArray(s string) bool {
	trimmed := strings.TrimSpace(s)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// --- Claude API types ---

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system"`
	Messages  []apiMessage `json:"messages"`
	Tools     []apiTool    `json:"tools,omitempty"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`

	// For text blocks
	Text string `json:"text,omitempty"`

	// For tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// For tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type apiToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}
