package ports

import (
	"context"

	"github.com/docflow/ingest-console/internal/core/domain"
)

// SessionService is the session surface exposed to the console and the CLI.
type SessionService interface {
	Authenticate(ctx context.Context, username, password string) (*domain.Token, error)
	SignOut(ctx context.Context)
	IsAuthenticated() bool
	// Identity returns the currently held identity, or nil.
	Identity() *domain.Identity
}

// Authorizer decides whether the current session may enter a screen that
// requires one of the given roles.
type Authorizer interface {
	CanEnter(ctx context.Context, required ...domain.Role) (domain.Decision, error)
}
