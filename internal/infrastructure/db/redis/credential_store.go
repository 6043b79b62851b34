package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
)

const DefaultCredentialKey = "ingest:credential"

var errTokenExpired = errors.New("access token already expired")

// CredentialStore keeps the access token under a single key, so several
// console replicas share one session. The key expires with the token.
type CredentialStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore(client *redis.Client, key string) *CredentialStore {
	if key == "" {
		key = DefaultCredentialKey
	}
	return &CredentialStore{client: client, key: key, now: time.Now}
}

func (s *CredentialStore) Get(ctx context.Context) (string, error) {
	tok, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return tok, nil
}

func (s *CredentialStore) Set(ctx context.Context, accessToken string) error {
	ttl, err := credentialTTL(accessToken, s.now())
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, accessToken, ttl).Err(); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// credentialTTL derives the key lifetime from the token's exp claim.
// Zero means no expiry.
func credentialTTL(accessToken string, now time.Time) (time.Duration, error) {
	exp, ok := domain.TokenExpiry(accessToken)
	if !ok {
		return 0, nil
	}
	ttl := exp.Sub(now)
	if ttl <= 0 {
		return 0, errTokenExpired
	}
	return ttl, nil
}
