package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

// DefaultMembershipTTL bounds how stale an authorization decision can be
// when an invalidation is lost (crashed process between the database
// write and the cache delete).
const DefaultMembershipTTL = 5 * time.Minute

// PermissionCache is a read-through cache of membership records keyed
// per (organization, user). Misses and backend outages both answer
// "not cached"; the resolver then falls back to the database, so the
// cache can only ever make authorization faster, not wrong for longer
// than the TTL.
type PermissionCache struct {
	client Client
	ttl    time.Duration
}

// cachedMembership is the wire form of a membership entry. Only the
// fields that feed authorization decisions are kept.
type cachedMembership struct {
	ID             string                  `json:"id"`
	UserID         string                  `json:"user_id"`
	OrganizationID string                  `json:"organization_id"`
	Role           domain.Role             `json:"role"`
	Status         domain.MembershipStatus `json:"status"`
}

func NewPermissionCache(client Client, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultMembershipTTL
	}
	return &PermissionCache{client: client, ttl: ttl}
}

// Get returns the cached membership for a user in an organization.
func (c *PermissionCache) Get(ctx context.Context, orgID, userID string) (domain.Membership, bool) {
	key := membershipKey(orgID, userID)

	data, err := c.client.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return domain.Membership{}, false
	}
	if err != nil {
		c.degraded(ctx, "get", err)
		return domain.Membership{}, false
	}

	var entry cachedMembership
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		// Corrupt entry, drop it and fall back to the database.
		_ = c.client.Del(ctx, key)
		return domain.Membership{}, false
	}

	return domain.Membership{
		ID:             entry.ID,
		UserID:         entry.UserID,
		OrganizationID: entry.OrganizationID,
		Role:           entry.Role,
		Status:         entry.Status,
	}, true
}

// Put stores a membership after a database read. Failures are logged
// and swallowed; the next read just misses again.
func (c *PermissionCache) Put(ctx context.Context, m domain.Membership) {
	entry := cachedMembership{
		ID:             m.ID,
		UserID:         m.UserID,
		OrganizationID: m.OrganizationID,
		Role:           m.Role,
		Status:         m.Status,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, membershipKey(m.OrganizationID, m.UserID), string(data), c.ttl); err != nil {
		c.degraded(ctx, "put", err)
	}
}

// Invalidate drops the entry for one (organization, user) pair. Called
// after every membership write, once the database commit has succeeded.
func (c *PermissionCache) Invalidate(ctx context.Context, orgID, userID string) {
	if err := c.client.Del(ctx, membershipKey(orgID, userID)); err != nil {
		c.degraded(ctx, "invalidate", err)
	}
}

// InvalidateOrganization drops every cached membership in an
// organization, e.g. after an organization-wide role policy change.
func (c *PermissionCache) InvalidateOrganization(ctx context.Context, orgID string) int {
	return c.invalidatePattern(ctx, "invalidate_organization", membershipOrgPattern(orgID))
}

// InvalidateUser drops a user's cached memberships, e.g. on account
// deactivation. Callers that already know the user's organizations pass
// them so the entries are deleted by exact key; with no organizations
// given it falls back to a pattern scan across all of them.
func (c *PermissionCache) InvalidateUser(ctx context.Context, userID string, orgIDs ...string) int {
	if len(orgIDs) == 0 {
		return c.invalidatePattern(ctx, "invalidate_user", membershipUserPattern(userID))
	}

	keys := make([]string, len(orgIDs))
	for i, orgID := range orgIDs {
		keys[i] = membershipKey(orgID, userID)
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		c.degraded(ctx, "invalidate_user", err)
		return 0
	}
	return len(keys)
}

func (c *PermissionCache) invalidatePattern(ctx context.Context, op, pattern string) int {
	keys, err := c.client.Keys(ctx, pattern)
	if err != nil {
		c.degraded(ctx, op, err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		c.degraded(ctx, op, err)
		return 0
	}
	return len(keys)
}

func (c *PermissionCache) degraded(ctx context.Context, op string, err error) {
	slogx.FromContext(ctx).Warn("permission cache degraded",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
