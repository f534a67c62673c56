// internal/testutil/fakeplatform.go
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindmatrix/cohorthub/internal/app/system/platform"
)

// Post records one PostMessage call.
type Post struct {
	ChannelID string
	Text      string
}

// FakePlatform is an in-memory platform.Client that counts create calls,
// so tests can assert that provisioning is idempotent under concurrency.
// It is safe for concurrent use.
type FakePlatform struct {
	mu sync.Mutex

	nextID     int
	categories map[string]platform.Handle
	channels   map[string]platform.Handle
	roles      map[string]platform.Handle

	// creates counts how many times a resource with the given name was
	// actually created (not merely fetched).
	creates map[string]int
	// calls counts every Ensure* invocation per name, fetches included.
	calls map[string]int

	memberRoles map[string]map[string]bool // member id → role id set
	posts       []Post

	// Err, when set, makes every call fail with that error.
	Err error
}

// NewFakePlatform returns an empty fake.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		categories:  make(map[string]platform.Handle),
		channels:    make(map[string]platform.Handle),
		roles:       make(map[string]platform.Handle),
		creates:     make(map[string]int),
		calls:       make(map[string]int),
		memberRoles: make(map[string]map[string]bool),
	}
}

func (f *FakePlatform) ensure(kind string, m map[string]platform.Handle, name string) (platform.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return platform.Handle{}, f.Err
	}
	f.calls[name]++
	if h, ok := m[name]; ok {
		return h, nil
	}
	f.nextID++
	h := platform.Handle{ID: fmt.Sprintf("%s-%d", kind, f.nextID), Name: name}
	m[name] = h
	f.creates[name]++
	return h, nil
}

func (f *FakePlatform) EnsureCategory(ctx context.Context, name string) (platform.Handle, error) {
	return f.ensure("category", f.categories, name)
}

func (f *FakePlatform) EnsureChannel(ctx context.Context, spec platform.ChannelSpec) (platform.Handle, error) {
	return f.ensure("channel", f.channels, spec.Name)
}

func (f *FakePlatform) EnsureRole(ctx context.Context, name string) (platform.Handle, error) {
	return f.ensure("role", f.roles, name)
}

func (f *FakePlatform) GrantRole(ctx context.Context, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.memberRoles[memberID] == nil {
		f.memberRoles[memberID] = make(map[string]bool)
	}
	f.memberRoles[memberID][roleID] = true
	return nil
}

func (f *FakePlatform) RevokeRole(ctx context.Context, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.memberRoles[memberID], roleID)
	return nil
}

func (f *FakePlatform) PostMessage(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.posts = append(f.posts, Post{ChannelID: channelID, Text: text})
	return nil
}

// Creates reports how many times name was created.
func (f *FakePlatform) Creates(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates[name]
}

// Calls reports how many Ensure* calls were made for name.
func (f *FakePlatform) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCreates reports how many resources exist.
func (f *FakePlatform) TotalCreates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.creates {
		n += c
	}
	return n
}

// HasRole reports whether the member currently holds roleID.
func (f *FakePlatform) HasRole(memberID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memberRoles[memberID][roleID]
}

// RoleByName returns the handle of a role created under name.
func (f *FakePlatform) RoleByName(name string) (platform.Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.roles[name]
	return h, ok
}

// ChannelByName returns the handle of a channel created under name.
func (f *FakePlatform) ChannelByName(name string) (platform.Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.channels[name]
	return h, ok
}

// Posts returns a copy of all recorded posts.
func (f *FakePlatform) Posts() []Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Post, len(f.posts))
	copy(out, f.posts)
	return out
}
