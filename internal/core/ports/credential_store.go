package ports

import "context"

// CredentialStore persists the single active access token across restarts.
// Get returns "" with a nil error when no token is stored.
type CredentialStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, accessToken string) error
	Clear(ctx context.Context) error
}
