package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
)

func tokenFor(access string) func(context.Context, domain.Credentials) (*domain.Token, error) {
	return func(context.Context, domain.Credentials) (*domain.Token, error) {
		return &domain.Token{AccessToken: access, TokenType: "bearer"}, nil
	}
}

func identityWithRole(role domain.Role) func(context.Context, string) (*domain.Identity, error) {
	return func(context.Context, string) (*domain.Identity, error) {
		return &domain.Identity{ID: "1", Username: "alice", Role: role, Active: true}, nil
	}
}

func newTestSession(remote *stubRemote, store *memStore) *SessionService {
	return NewSessionService(remote, store, zerolog.Nop(), time.Second)
}

func TestSessionService_Authenticate_Success(t *testing.T) {
	remote := &stubRemote{authenticate: tokenFor("tok-1"), fetchIdentity: identityWithRole(domain.RoleAdmin)}
	store := &memStore{}
	svc := newTestSession(remote, store)

	tok, err := svc.Authenticate(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if tok.AccessToken != "tok-1" {
		t.Fatalf("unexpected token: %q", tok.AccessToken)
	}
	if !svc.IsAuthenticated() {
		t.Fatalf("expected authenticated session")
	}
	if got := domain.RoleOf(svc.Identity()); got != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %q", got)
	}
	if store.stored() != "tok-1" {
		t.Fatalf("expected token persisted, got %q", store.stored())
	}
	src, err := svc.Token()
	if err != nil || src.AccessToken != "tok-1" {
		t.Fatalf("token source returned %v, %v", src, err)
	}
}

func TestSessionService_Authenticate_IdentityFailureIsLenient(t *testing.T) {
	remote := &stubRemote{
		authenticate: tokenFor("tok-1"),
		fetchIdentity: func(context.Context, string) (*domain.Identity, error) {
			return nil, domain.ErrUnauthorized
		},
	}
	store := &memStore{}
	svc := newTestSession(remote, store)

	tok, err := svc.Authenticate(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("expected lenient login, got error: %v", err)
	}
	if tok == nil || tok.AccessToken != "tok-1" {
		t.Fatalf("expected token payload to be returned, got %+v", tok)
	}
	if svc.IsAuthenticated() {
		t.Fatalf("expected session to be signed out after identity failure")
	}
	if svc.Identity() != nil {
		t.Fatalf("expected no identity")
	}
	if store.stored() != "" {
		t.Fatalf("expected stored credential to be cleared")
	}
}

func TestSessionService_Authenticate_FailureClearsState(t *testing.T) {
	remote := &stubRemote{authenticate: tokenFor("tok-1"), fetchIdentity: identityWithRole(domain.RoleEditor)}
	store := &memStore{}
	svc := newTestSession(remote, store)

	if _, err := svc.Authenticate(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	remote.authenticate = func(context.Context, domain.Credentials) (*domain.Token, error) {
		return nil, domain.ErrInvalidCredentials
	}
	_, err := svc.Authenticate(context.Background(), "alice", "wrong")

	var authErr *domain.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected wrapped ErrInvalidCredentials, got %v", err)
	}
	if svc.IsAuthenticated() || svc.Identity() != nil || store.stored() != "" {
		t.Fatalf("expected all session state cleared")
	}
}

func TestSessionService_Authenticate_EmptyToken(t *testing.T) {
	remote := &stubRemote{authenticate: tokenFor("")}
	svc := newTestSession(remote, &memStore{})

	_, err := svc.Authenticate(context.Background(), "alice", "secret")
	if !errors.Is(err, domain.ErrNoAccessToken) {
		t.Fatalf("expected ErrNoAccessToken, got %v", err)
	}
	if svc.IsAuthenticated() {
		t.Fatalf("expected unauthenticated session")
	}
}

func TestSessionService_Authenticate_PersistFailure(t *testing.T) {
	remote := &stubRemote{authenticate: tokenFor("tok-1"), fetchIdentity: identityWithRole(domain.RoleAdmin)}
	store := &memStore{setErr: errors.New("disk full")}
	svc := newTestSession(remote, store)

	_, err := svc.Authenticate(context.Background(), "alice", "secret")
	var authErr *domain.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if svc.IsAuthenticated() {
		t.Fatalf("expected unauthenticated session")
	}
}

func TestSessionService_SignOut_Idempotent(t *testing.T) {
	remote := &stubRemote{authenticate: tokenFor("tok-1"), fetchIdentity: identityWithRole(domain.RoleViewer)}
	store := &memStore{}
	svc := newTestSession(remote, store)

	svc.SignOut(context.Background())
	if _, err := svc.Authenticate(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	svc.SignOut(context.Background())
	svc.SignOut(context.Background())

	if svc.IsAuthenticated() || svc.Identity() != nil || store.stored() != "" {
		t.Fatalf("expected signed-out session")
	}
	if _, err := svc.Token(); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated from token source, got %v", err)
	}
}

func TestSessionService_Restore_RevalidatesInBackground(t *testing.T) {
	release := make(chan struct{})
	remote := &stubRemote{
		fetchIdentity: func(ctx context.Context, token string) (*domain.Identity, error) {
			if token != "stored" {
				t.Errorf("unexpected token %q", token)
			}
			<-release
			return &domain.Identity{ID: "2", Username: "bob", Role: domain.RoleEditor}, nil
		},
	}
	store := &memStore{token: "stored"}
	svc := newTestSession(remote, store)

	if err := svc.Restore(context.Background()); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if !svc.IsAuthenticated() {
		t.Fatalf("expected credential restored")
	}

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.CurrentRole().Latest(shortCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected role to be pending, got %v", err)
	}

	close(release)
	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	role, err := svc.CurrentRole().Latest(ctx)
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if role != domain.RoleEditor {
		t.Fatalf("expected editor, got %q", role)
	}
}

func TestSessionService_Restore_RejectedCredential(t *testing.T) {
	remote := &stubRemote{
		fetchIdentity: func(context.Context, string) (*domain.Identity, error) {
			return nil, domain.ErrUnauthorized
		},
	}
	store := &memStore{token: "stale"}
	svc := newTestSession(remote, store)

	if err := svc.Restore(context.Background()); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	role, err := svc.CurrentRole().Latest(ctx)
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if role != domain.RoleNone {
		t.Fatalf("expected no role, got %q", role)
	}
	if svc.IsAuthenticated() || store.stored() != "" {
		t.Fatalf("expected rejected credential to be cleared")
	}
}

func TestSessionService_Restore_ExpiredJWT(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	called := false
	remote := &stubRemote{
		fetchIdentity: func(context.Context, string) (*domain.Identity, error) {
			called = true
			return nil, nil
		},
	}
	store := &memStore{token: expired}
	svc := newTestSession(remote, store)

	if err := svc.Restore(context.Background()); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if svc.IsAuthenticated() {
		t.Fatalf("expected expired credential to be dropped")
	}
	if store.stored() != "" {
		t.Fatalf("expected store cleared")
	}
	if called {
		t.Fatalf("expected no identity fetch for expired credential")
	}
}

func TestSessionService_Restore_Empty(t *testing.T) {
	svc := newTestSession(&stubRemote{}, &memStore{})
	if err := svc.Restore(context.Background()); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if svc.IsAuthenticated() {
		t.Fatalf("expected unauthenticated session")
	}
}

func TestSessionService_FetchIdentity_FailureSignsOut(t *testing.T) {
	remote := &stubRemote{authenticate: tokenFor("tok-1"), fetchIdentity: identityWithRole(domain.RoleAdmin)}
	store := &memStore{}
	svc := newTestSession(remote, store)
	if _, err := svc.Authenticate(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	remote.fetchIdentity = func(context.Context, string) (*domain.Identity, error) {
		return nil, errors.New("boom")
	}
	_, err := svc.FetchIdentity(context.Background())

	var invalid *domain.SessionInvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected SessionInvalidError, got %v", err)
	}
	if svc.IsAuthenticated() || svc.Identity() != nil {
		t.Fatalf("expected session signed out")
	}
}

func TestSessionService_FetchIdentity_WithoutCredential(t *testing.T) {
	svc := newTestSession(&stubRemote{}, &memStore{})
	_, err := svc.FetchIdentity(context.Background())
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSessionService_SignOutDuringFetchDiscardsIdentity(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	remote := &stubRemote{
		authenticate: tokenFor("tok-1"),
		fetchIdentity: func(context.Context, string) (*domain.Identity, error) {
			close(started)
			<-release
			return &domain.Identity{ID: "1", Username: "alice", Role: domain.RoleAdmin}, nil
		},
	}
	svc := newTestSession(remote, &memStore{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Authenticate(context.Background(), "alice", "secret")
		done <- err
	}()

	<-started
	svc.SignOut(context.Background())
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if svc.IsAuthenticated() {
		t.Fatalf("expected session to stay signed out")
	}
	if svc.Identity() != nil {
		t.Fatalf("expected late identity to be discarded")
	}
}

func TestSessionService_ObserversSeeIdentityChanges(t *testing.T) {
	remote := &stubRemote{authenticate: tokenFor("tok-1"), fetchIdentity: identityWithRole(domain.RoleViewer)}
	svc := newTestSession(remote, &memStore{})

	var roles []domain.Role
	cancel := svc.CurrentRole().Observe(func(r domain.Role) { roles = append(roles, r) })
	defer cancel()

	if _, err := svc.Authenticate(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	svc.SignOut(context.Background())

	want := []domain.Role{domain.RoleNone, domain.RoleViewer, domain.RoleNone}
	if len(roles) != len(want) {
		t.Fatalf("expected roles %v, got %v", want, roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("expected roles %v, got %v", want, roles)
		}
	}
}
