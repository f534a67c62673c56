// internal/app/system/platform/platform.go
//
// Package platform defines the interface the core needs from the chat
// platform. Implementations live with the bot gateway; the core only ever
// sees create-or-fetch primitives and role grants, which keeps it testable
// against the call-counting fake in internal/testutil.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied means the bot lacks a platform permission it
	// needs (e.g. manage roles or channels). Retrying cannot help; the
	// condition requires operator intervention and is surfaced to the
	// admin channel.
	ErrPermissionDenied = errors.New("platform permission denied")

	// ErrUnavailable means the platform could not be reached or returned
	// a transient failure after the retry budget was exhausted.
	ErrUnavailable = errors.New("platform unavailable")
)

// Handle identifies a resource that exists on the platform.
type Handle struct {
	ID   string
	Name string
}

// ChannelSpec describes a text channel to create or fetch. Visibility is
// expressed entirely through role-keyed permission overwrites: roles in
// ReadOnlyRoleIDs can view but not post, roles in ChatRoleIDs can view and
// post, everyone else sees nothing. Membership therefore follows from role
// grants alone; no per-member overwrites exist.
type ChannelSpec struct {
	Name            string
	CategoryID      string
	Topic           string
	ReadOnlyRoleIDs []string
	ChatRoleIDs     []string
}

// Client is the chat-platform contract. Every method is create-or-fetch
// (idempotent on the platform side for a given name) or an idempotent
// grant/revoke. Implementations must return ErrPermissionDenied for
// permission failures; any other error is treated as transient.
type Client interface {
	EnsureCategory(ctx context.Context, name string) (Handle, error)
	EnsureChannel(ctx context.Context, spec ChannelSpec) (Handle, error)
	EnsureRole(ctx context.Context, name string) (Handle, error)
	GrantRole(ctx context.Context, memberID, roleID string) error
	RevokeRole(ctx context.Context, memberID, roleID string) error
	PostMessage(ctx context.Context, channelID, text string) error
}
