package ports

import (
	"context"
	"io"

	"github.com/docflow/ingest-console/internal/core/domain"
)

// RemoteService is the backend facade. Every call except Authenticate,
// FetchIdentity and Signup authenticates with the active session credential.
type RemoteService interface {
	Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Token, error)
	// FetchIdentity resolves "who am I" for the given access token.
	FetchIdentity(ctx context.Context, accessToken string) (*domain.Identity, error)
	FetchDocuments(ctx context.Context) ([]domain.Document, error)
	FetchStatusMap(ctx context.Context) (domain.StatusMap, error)

	Signup(ctx context.Context, in SignupInput) (*domain.User, error)
	UploadDocument(ctx context.Context, filename string, body io.Reader) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id domain.EntityID) error
	TriggerIngestion(ctx context.Context, id domain.EntityID) error
	// DownloadDocument streams the document body. The caller closes it.
	DownloadDocument(ctx context.Context, id domain.EntityID) (io.ReadCloser, error)

	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUserRole(ctx context.Context, id domain.EntityID, role domain.Role) (*domain.User, error)
	DeleteUser(ctx context.Context, id domain.EntityID) error

	Ask(ctx context.Context, question string) (*domain.QAAnswer, error)
}

// SignupInput carries the fields of a new account.
type SignupInput struct {
	Username string
	Email    string
	Password string
}
