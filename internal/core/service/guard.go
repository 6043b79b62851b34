package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/stream"
	"github.com/docflow/ingest-console/internal/pkg/metrics"
)

const defaultResolveTimeout = 10 * time.Second

// RoleSource is the part of the session the guard depends on.
type RoleSource interface {
	IsAuthenticated() bool
	CurrentRole() stream.Stream[domain.Role]
}

// Guard decides whether navigation into a role-gated screen is allowed.
type Guard struct {
	session RoleSource
	timeout time.Duration
	log     zerolog.Logger
}

// NewGuard returns a Guard reading roles from session. resolveTimeout bounds
// how long an evaluation waits for a pending identity fetch.
func NewGuard(session RoleSource, resolveTimeout time.Duration, log zerolog.Logger) *Guard {
	if resolveTimeout <= 0 {
		resolveTimeout = defaultResolveTimeout
	}
	return &Guard{session: session, timeout: resolveTimeout, log: log}
}

// CanEnter evaluates in two steps. Without a credential it denies at once,
// since an absent role would otherwise look like one that is still loading.
// With a credential it waits for the role to settle and checks membership.
//
// A non-nil error means the role could not be resolved in time; the returned
// decision is then a denial.
func (g *Guard) CanEnter(ctx context.Context, required ...domain.Role) (domain.Decision, error) {
	if !g.session.IsAuthenticated() {
		return g.record(domain.Deny(domain.DenyUnauthenticated, domain.RoleNone)), nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	role, err := g.session.CurrentRole().Latest(ctx)
	if err != nil {
		return g.record(domain.Deny(domain.DenyRoleUnresolved, domain.RoleNone)), fmt.Errorf("resolve role: %w", err)
	}

	switch {
	case role != domain.RoleNone && slices.Contains(required, role):
		return g.record(domain.Allow(role)), nil
	case role != domain.RoleNone:
		return g.record(domain.Deny(domain.DenyRoleMismatch, role)), nil
	case !g.session.IsAuthenticated():
		// the identity fetch failed and signed the session out
		return g.record(domain.Deny(domain.DenyUnauthenticated, domain.RoleNone)), nil
	default:
		return g.record(domain.Deny(domain.DenyRoleUnresolved, domain.RoleNone)), nil
	}
}

func (g *Guard) record(d domain.Decision) domain.Decision {
	outcome := "allow"
	if !d.Allowed {
		outcome = "deny"
	}
	metrics.GuardDecisionsTotal.WithLabelValues(outcome, string(d.Reason)).Inc()
	g.log.Debug().
		Bool("allowed", d.Allowed).
		Str("reason", string(d.Reason)).
		Str("role", string(d.Role)).
		Msg("guard decision")
	return d
}
