// Package gateway defines the contract between the mail state store and
// whatever backend actually holds the mailbox.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/jsean662/MailFlowAI/internal/model"
)

// ErrNotFound is returned when a message id is unknown to the backend.
var ErrNotFound = errors.New("email not found")

// AuthError indicates that authentication has failed or expired. It is
// returned by gateway implementations when a 401-class response is
// received; the store treats it like any other fetch failure, but the
// application shell uses it to force re-login.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Gateway is the mail operation surface the store consumes. Page tokens
// are opaque; the empty string requests the first page.
type Gateway interface {
	// ListMessages fetches one page of the given mailbox.
	ListMessages(ctx context.Context, box model.Mailbox, pageToken string) (model.PaginatedEmails, error)

	// GetMessage fetches a single message with its full body. Returns
	// ErrNotFound for unknown ids.
	GetMessage(ctx context.Context, id string) (*model.EmailDetail, error)

	// SendMessage sends a new message.
	SendMessage(ctx context.Context, payload model.SendEmailPayload) error

	// ReplyToMessage sends a reply on the thread of an existing message.
	ReplyToMessage(ctx context.Context, id string, payload model.ReplyEmailPayload) error

	// ForwardMessage forwards an existing message to new recipients.
	ForwardMessage(ctx context.Context, id string, payload model.ForwardEmailPayload) error

	// DeleteMessage removes (trashes) a message.
	DeleteMessage(ctx context.Context, id string) error

	// SearchMessages runs a free-text search. Results are not paginated.
	SearchMessages(ctx context.Context, query string) ([]model.EmailPreview, error)
}

// Authenticator is the session collaborator consumed by the application
// shell rather than by the store itself.
type Authenticator interface {
	// CheckAuthenticated never returns an error; any failure to verify
	// the session maps to false.
	CheckAuthenticated(ctx context.Context) bool

	// CurrentUserProfile returns the account owner's profile.
	CurrentUserProfile(ctx context.Context) (*model.UserProfile, error)

	// Logout tears down the session.
	Logout(ctx context.Context) error
}
