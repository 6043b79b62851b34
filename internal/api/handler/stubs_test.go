package handler

import (
	"context"
	"io"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
)

// stubRemote implements ports.RemoteService. Calling a method whose func is
// unset panics through the nil embedded interface.
type stubRemote struct {
	ports.RemoteService

	documents  func(ctx context.Context) ([]domain.Document, error)
	statusMap  func(ctx context.Context) (domain.StatusMap, error)
	trigger    func(ctx context.Context, id domain.EntityID) error
	del        func(ctx context.Context, id domain.EntityID) error
	upload     func(ctx context.Context, filename string, body io.Reader) (*domain.Document, error)
	download   func(ctx context.Context, id domain.EntityID) (io.ReadCloser, error)
	listUsers  func(ctx context.Context) ([]domain.User, error)
	updateRole func(ctx context.Context, id domain.EntityID, role domain.Role) (*domain.User, error)
	ask        func(ctx context.Context, question string) (*domain.QAAnswer, error)
	signup     func(ctx context.Context, in ports.SignupInput) (*domain.User, error)
}

func (s *stubRemote) FetchDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.documents(ctx)
}

func (s *stubRemote) FetchStatusMap(ctx context.Context) (domain.StatusMap, error) {
	return s.statusMap(ctx)
}

func (s *stubRemote) TriggerIngestion(ctx context.Context, id domain.EntityID) error {
	return s.trigger(ctx, id)
}

func (s *stubRemote) DeleteDocument(ctx context.Context, id domain.EntityID) error {
	return s.del(ctx, id)
}

func (s *stubRemote) UploadDocument(ctx context.Context, filename string, body io.Reader) (*domain.Document, error) {
	return s.upload(ctx, filename, body)
}

func (s *stubRemote) DownloadDocument(ctx context.Context, id domain.EntityID) (io.ReadCloser, error) {
	return s.download(ctx, id)
}

func (s *stubRemote) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.listUsers(ctx)
}

func (s *stubRemote) UpdateUserRole(ctx context.Context, id domain.EntityID, role domain.Role) (*domain.User, error) {
	return s.updateRole(ctx, id, role)
}

func (s *stubRemote) Ask(ctx context.Context, question string) (*domain.QAAnswer, error) {
	return s.ask(ctx, question)
}

func (s *stubRemote) Signup(ctx context.Context, in ports.SignupInput) (*domain.User, error) {
	return s.signup(ctx, in)
}

type stubSession struct {
	mu        sync.Mutex
	identity  *domain.Identity
	authed    bool
	signOuts  int
	authFn    func(ctx context.Context, username, password string) (*domain.Token, error)
	afterAuth *domain.Identity
}

func (s *stubSession) Authenticate(ctx context.Context, username, password string) (*domain.Token, error) {
	tok, err := s.authFn(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.authed = true
	s.identity = s.afterAuth
	s.mu.Unlock()
	return tok, nil
}

func (s *stubSession) SignOut(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authed = false
	s.identity = nil
	s.signOuts++
}

func (s *stubSession) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

func (s *stubSession) Identity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

type stubAuthorizer struct {
	decision domain.Decision
	err      error
}

func (s stubAuthorizer) CanEnter(context.Context, ...domain.Role) (domain.Decision, error) {
	return s.decision, s.err
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}
