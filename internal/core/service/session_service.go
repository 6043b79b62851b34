package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/oauth2"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
	"github.com/docflow/ingest-console/internal/core/stream"
	"github.com/docflow/ingest-console/internal/pkg/metrics"
)

const defaultRequestTimeout = 10 * time.Second

var errEmptyIdentity = errors.New("empty identity response")

// SessionService owns the access token and the identity derived from it.
//
// The credential and the identity change together under mu, so an observer
// never sees an identity without the credential it was resolved for.
type SessionService struct {
	remote  ports.RemoteService
	store   ports.CredentialStore
	log     zerolog.Logger
	timeout time.Duration
	now     func() time.Time

	mu         sync.Mutex
	credential atomic.String

	identity *stream.Subject[*domain.Identity]
	role     stream.Stream[domain.Role]
}

// NewSessionService returns a signed-out session. Call Restore once at
// process start to pick up a stored credential.
func NewSessionService(remote ports.RemoteService, store ports.CredentialStore, log zerolog.Logger, requestTimeout time.Duration) *SessionService {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	identity := stream.NewSubject[*domain.Identity](nil)
	return &SessionService{
		remote:   remote,
		store:    store,
		log:      log,
		timeout:  requestTimeout,
		now:      time.Now,
		identity: identity,
		role:     stream.Map[*domain.Identity, domain.Role](identity, domain.RoleOf),
	}
}

// Authenticate exchanges username and password for an access token, persists
// it and resolves the identity.
//
// A failed identity fetch does not fail the login: the token payload is still
// returned, but the session is signed out by the fetch failure and no identity
// is published.
func (s *SessionService) Authenticate(ctx context.Context, username, password string) (*domain.Token, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	tok, err := s.remote.Authenticate(callCtx, domain.Credentials{Username: username, Password: password})
	cancel()
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = domain.ErrNoAccessToken
	}
	if err != nil {
		s.reset(ctx)
		metrics.SessionEventsTotal.WithLabelValues("login_failed").Inc()
		s.log.Info().Err(err).Str("username", username).Msg("login failed")
		return nil, &domain.AuthenticationError{Err: err}
	}

	s.mu.Lock()
	if err := s.store.Set(ctx, tok.AccessToken); err != nil {
		s.mu.Unlock()
		s.reset(ctx)
		metrics.SessionEventsTotal.WithLabelValues("login_failed").Inc()
		return nil, &domain.AuthenticationError{Err: fmt.Errorf("persist credential: %w", err)}
	}
	s.adopt(tok.AccessToken)
	s.mu.Unlock()

	metrics.SessionEventsTotal.WithLabelValues("login").Inc()
	s.log.Info().Str("username", username).Msg("login succeeded")

	if _, err := s.resolveIdentity(ctx, tok.AccessToken); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("identity fetch after login failed")
	}
	return tok, nil
}

// SignOut clears the credential and the identity. It never calls the backend
// and is safe to call any number of times.
func (s *SessionService) SignOut(ctx context.Context) {
	if s.reset(ctx) {
		metrics.SessionEventsTotal.WithLabelValues("sign_out").Inc()
		s.log.Info().Msg("signed out")
	}
}

// IsAuthenticated reports whether a credential is held.
func (s *SessionService) IsAuthenticated() bool {
	return s.credential.Load() != ""
}

// Identity returns the held identity without waiting for a pending fetch.
func (s *SessionService) Identity() *domain.Identity {
	return s.identity.Value()
}

// CurrentIdentity is the identity stream. It replays the latest value and
// never completes.
func (s *SessionService) CurrentIdentity() stream.Stream[*domain.Identity] {
	return s.identity
}

// CurrentRole projects CurrentIdentity onto the role.
func (s *SessionService) CurrentRole() stream.Stream[domain.Role] {
	return s.role
}

// Token implements oauth2.TokenSource so every authenticated call reads the
// credential at request time.
func (s *SessionService) Token() (*oauth2.Token, error) {
	tok := s.credential.Load()
	if tok == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// FetchIdentity re-resolves the identity for the held credential. On failure
// the session is signed out and a *domain.SessionInvalidError is returned.
func (s *SessionService) FetchIdentity(ctx context.Context) (*domain.Identity, error) {
	s.mu.Lock()
	token := s.credential.Load()
	if token != "" {
		s.identity.MarkPending()
	}
	s.mu.Unlock()

	if token == "" {
		return nil, &domain.SessionInvalidError{Err: domain.ErrNotAuthenticated}
	}
	return s.resolveIdentity(ctx, token)
}

// Restore loads a stored credential and revalidates it in the background.
// Until the revalidation settles the role is pending, so guards wait for it.
// A JWT whose exp is already past is dropped without contacting the backend.
func (s *SessionService) Restore(ctx context.Context) error {
	token, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if token == "" {
		s.log.Debug().Msg("no stored credential")
		return nil
	}
	if domain.TokenExpired(token, s.now()) {
		s.reset(ctx)
		metrics.SessionEventsTotal.WithLabelValues("expired").Inc()
		s.log.Info().Msg("stored credential expired, cleared")
		return nil
	}

	s.mu.Lock()
	s.adopt(token)
	s.mu.Unlock()
	metrics.SessionEventsTotal.WithLabelValues("restored").Inc()

	go func() {
		if _, err := s.resolveIdentity(ctx, token); err != nil {
			s.log.Warn().Err(err).Msg("stored credential rejected")
		}
	}()
	return nil
}

// adopt installs token as the active credential. The identity goes pending
// before the credential becomes visible. Callers hold mu.
func (s *SessionService) adopt(token string) {
	s.identity.MarkPending()
	s.credential.Store(token)
}

// reset clears credential, durable store and identity. It reports whether a
// credential was held.
func (s *SessionService) reset(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked(ctx)
}

// invalidate resets the session only if token is still the active credential.
func (s *SessionService) invalidate(ctx context.Context, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential.Load() != token {
		return false
	}
	return s.resetLocked(ctx)
}

func (s *SessionService) resetLocked(ctx context.Context) bool {
	had := s.credential.Swap("") != ""
	if err := s.store.Clear(ctx); err != nil {
		s.log.Error().Err(err).Msg("failed to clear stored credential")
	}
	s.identity.Publish(nil)
	return had
}

// resolveIdentity fetches the identity for token. The result is applied only
// if token is still the active credential; a login or sign-out that happened
// meanwhile wins.
func (s *SessionService) resolveIdentity(ctx context.Context, token string) (*domain.Identity, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	id, err := s.remote.FetchIdentity(callCtx, token)
	cancel()
	if err == nil && id == nil {
		err = errEmptyIdentity
	}

	if err != nil {
		metrics.SessionEventsTotal.WithLabelValues("identity_failed").Inc()
		if s.invalidate(ctx, token) {
			metrics.SessionEventsTotal.WithLabelValues("sign_out").Inc()
			s.log.Info().Err(err).Msg("signed out after identity fetch failure")
		}
		return nil, &domain.SessionInvalidError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential.Load() != token {
		s.log.Debug().Str("username", id.Username).Msg("discarding identity for replaced credential")
		return id, nil
	}
	s.identity.Publish(id)
	metrics.SessionEventsTotal.WithLabelValues("identity_fetched").Inc()
	s.log.Info().Str("username", id.Username).Str("role", string(id.Role)).Msg("identity resolved")
	return id, nil
}
