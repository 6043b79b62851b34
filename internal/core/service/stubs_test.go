package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
)

var errStubUnset = errors.New("stub: not configured")

// stubRemote answers each call through an optional func field.
type stubRemote struct {
	authenticate  func(ctx context.Context, creds domain.Credentials) (*domain.Token, error)
	fetchIdentity func(ctx context.Context, token string) (*domain.Identity, error)
	documents     func(ctx context.Context) ([]domain.Document, error)
	statusMap     func(ctx context.Context) (domain.StatusMap, error)
	trigger       func(ctx context.Context, id domain.EntityID) error

	mu       sync.Mutex
	triggers []domain.EntityID
}

var _ ports.RemoteService = (*stubRemote)(nil)

func (r *stubRemote) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Token, error) {
	if r.authenticate == nil {
		return nil, errStubUnset
	}
	return r.authenticate(ctx, creds)
}

func (r *stubRemote) FetchIdentity(ctx context.Context, token string) (*domain.Identity, error) {
	if r.fetchIdentity == nil {
		return nil, errStubUnset
	}
	return r.fetchIdentity(ctx, token)
}

func (r *stubRemote) FetchDocuments(ctx context.Context) ([]domain.Document, error) {
	if r.documents == nil {
		return nil, errStubUnset
	}
	return r.documents(ctx)
}

func (r *stubRemote) FetchStatusMap(ctx context.Context) (domain.StatusMap, error) {
	if r.statusMap == nil {
		return nil, errStubUnset
	}
	return r.statusMap(ctx)
}

func (r *stubRemote) Signup(context.Context, ports.SignupInput) (*domain.User, error) {
	return nil, errStubUnset
}

func (r *stubRemote) UploadDocument(_ context.Context, filename string, _ io.Reader) (*domain.Document, error) {
	return &domain.Document{ID: "new", Filename: filename}, nil
}

func (r *stubRemote) DeleteDocument(context.Context, domain.EntityID) error { return nil }

func (r *stubRemote) TriggerIngestion(ctx context.Context, id domain.EntityID) error {
	r.mu.Lock()
	r.triggers = append(r.triggers, id)
	r.mu.Unlock()
	if r.trigger != nil {
		return r.trigger(ctx, id)
	}
	return nil
}

func (r *stubRemote) DownloadDocument(context.Context, domain.EntityID) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (r *stubRemote) ListUsers(context.Context) ([]domain.User, error) { return nil, nil }

func (r *stubRemote) UpdateUserRole(_ context.Context, id domain.EntityID, role domain.Role) (*domain.User, error) {
	return &domain.User{ID: id, Role: role}, nil
}

func (r *stubRemote) DeleteUser(context.Context, domain.EntityID) error { return nil }

func (r *stubRemote) Ask(context.Context, string) (*domain.QAAnswer, error) {
	return &domain.QAAnswer{}, nil
}

type memStore struct {
	mu     sync.Mutex
	token  string
	setErr error
	sets   int
	clears int
}

var _ ports.CredentialStore = (*memStore)(nil)

func (s *memStore) Get(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *memStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.token = token
	return nil
}

func (s *memStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.token = ""
	return nil
}

func (s *memStore) stored() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}
