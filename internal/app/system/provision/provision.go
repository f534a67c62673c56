// internal/app/system/provision/provision.go
//
// Package provision ensures the platform resources for a resource key
// exist exactly once and grants members the roles that key implies.
//
// The handle cache is the single source of truth consulted before any
// external create call. Concurrent ensures for the same resource name are
// collapsed through a singleflight group, so when fifty members of a new
// cohort verify at once, exactly one create call per unique name reaches
// the platform and everyone else waits and reads the cache.
package provision

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindmatrix/cohorthub/internal/app/system/platform"
	"github.com/mindmatrix/cohorthub/internal/app/system/reskey"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Handles are the platform handles of one fully provisioned resource key.
type Handles struct {
	Category      platform.Handle
	Announcements platform.Handle
	Discussion    platform.Handle
	CohortChannel platform.Handle
	CourseRole    platform.Handle
	CohortRole    platform.Handle
}

// Provisioner owns the handle cache and the per-name flight group.
type Provisioner struct {
	client platform.Client
	log    *zap.Logger

	mu     sync.RWMutex
	cache  map[string]platform.Handle
	flight singleflight.Group
}

// New returns a Provisioner backed by client. The client is expected to
// already carry retry behavior (see platform.NewRetrier).
func New(client platform.Client, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		client: client,
		log:    logger,
		cache:  make(map[string]platform.Handle),
	}
}

// EnsureAll makes all six resources of key exist and returns their
// handles. Roles come first (channel overwrites reference them), then the
// category, then the channels inside it. Partially provisioned keys are
// safe: every step is create-or-fetch, so a retry resumes where the
// previous attempt failed.
func (p *Provisioner) EnsureAll(ctx context.Context, key reskey.Key) (Handles, error) {
	var h Handles
	var err error

	if h.CourseRole, err = p.ensure("role:"+key.CourseRole, func() (platform.Handle, error) {
		return p.client.EnsureRole(ctx, key.CourseRole)
	}); err != nil {
		return h, fmt.Errorf("ensure course role: %w", err)
	}
	if h.CohortRole, err = p.ensure("role:"+key.CohortRole, func() (platform.Handle, error) {
		return p.client.EnsureRole(ctx, key.CohortRole)
	}); err != nil {
		return h, fmt.Errorf("ensure cohort role: %w", err)
	}
	if h.Category, err = p.ensure("category:"+key.Category, func() (platform.Handle, error) {
		return p.client.EnsureCategory(ctx, key.Category)
	}); err != nil {
		return h, fmt.Errorf("ensure category: %w", err)
	}

	if h.Announcements, err = p.ensure("channel:"+key.AnnouncementsChannel, func() (platform.Handle, error) {
		return p.client.EnsureChannel(ctx, platform.ChannelSpec{
			Name:            key.AnnouncementsChannel,
			CategoryID:      h.Category.ID,
			Topic:           fmt.Sprintf("Official announcements for %s. Only admins can post.", key.Category),
			ReadOnlyRoleIDs: []string{h.CourseRole.ID},
		})
	}); err != nil {
		return h, fmt.Errorf("ensure announcements channel: %w", err)
	}
	if h.Discussion, err = p.ensure("channel:"+key.DiscussionChannel, func() (platform.Handle, error) {
		return p.client.EnsureChannel(ctx, platform.ChannelSpec{
			Name:        key.DiscussionChannel,
			CategoryID:  h.Category.ID,
			Topic:       fmt.Sprintf("Discussion forum for all %s students.", key.Category),
			ChatRoleIDs: []string{h.CourseRole.ID},
		})
	}); err != nil {
		return h, fmt.Errorf("ensure discussion channel: %w", err)
	}
	if h.CohortChannel, err = p.ensure("channel:"+key.CohortChannel, func() (platform.Handle, error) {
		return p.client.EnsureChannel(ctx, platform.ChannelSpec{
			Name:        key.CohortChannel,
			CategoryID:  h.Category.ID,
			Topic:       fmt.Sprintf("Private channel for the %s cohort.", key.CohortRole),
			ChatRoleIDs: []string{h.CohortRole.ID},
		})
	}); err != nil {
		return h, fmt.Errorf("ensure cohort channel: %w", err)
	}

	return h, nil
}

// ensure returns the cached handle for cacheKey or runs create exactly
// once across concurrent callers. External calls happen inside the flight,
// never under the cache lock.
func (p *Provisioner) ensure(cacheKey string, create func() (platform.Handle, error)) (platform.Handle, error) {
	p.mu.RLock()
	h, ok := p.cache[cacheKey]
	p.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, _ := p.flight.Do(cacheKey, func() (any, error) {
		// Another caller may have populated the cache while this one
		// waited for the flight slot.
		p.mu.RLock()
		h, ok := p.cache[cacheKey]
		p.mu.RUnlock()
		if ok {
			return h, nil
		}

		h, err := create()
		if err != nil {
			return platform.Handle{}, err
		}

		p.mu.Lock()
		p.cache[cacheKey] = h
		p.mu.Unlock()
		p.log.Info("provisioned platform resource",
			zap.String("resource", cacheKey),
			zap.String("handle_id", h.ID))
		return h, nil
	})
	if err != nil {
		return platform.Handle{}, err
	}
	return v.(platform.Handle), nil
}

// Grant assigns the member the course and cohort roles. Channel access
// follows from the role-keyed overwrites, so no per-channel call is
// needed.
func (p *Provisioner) Grant(ctx context.Context, memberID string, h Handles) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.client.GrantRole(ctx, memberID, h.CourseRole.ID) })
	g.Go(func() error { return p.client.GrantRole(ctx, memberID, h.CohortRole.ID) })
	return g.Wait()
}

// Revoke removes the member's course and cohort roles. Shared resources
// are left untouched; they belong to the whole cohort.
func (p *Provisioner) Revoke(ctx context.Context, memberID string, h Handles) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.client.RevokeRole(ctx, memberID, h.CourseRole.ID) })
	g.Go(func() error { return p.client.RevokeRole(ctx, memberID, h.CohortRole.ID) })
	return g.Wait()
}

// Invalidate drops one cached handle, forcing the next ensure to hit the
// platform again. Used when an operator deletes a resource out of band.
func (p *Provisioner) Invalidate(cacheKey string) {
	p.mu.Lock()
	delete(p.cache, cacheKey)
	p.mu.Unlock()
}

// Reset clears the whole cache.
func (p *Provisioner) Reset() {
	p.mu.Lock()
	p.cache = make(map[string]platform.Handle)
	p.mu.Unlock()
}

// CacheSize reports how many handles are cached. Exposed for the admin
// stats surface.
func (p *Provisioner) CacheSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}
