package provision_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mindmatrix/cohorthub/internal/app/system/provision"
	"github.com/mindmatrix/cohorthub/internal/app/system/reskey"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
	"github.com/mindmatrix/cohorthub/internal/testutil"
	"go.uber.org/zap"
)

func testKey() reskey.Key {
	return reskey.Derive(models.Identity{
		Organization: "VTU",
		Program:      "Android App Development",
		Cohort:       "Nomads",
	})
}

func TestEnsureAll_CreatesAllSixResources(t *testing.T) {
	fake := testutil.NewFakePlatform()
	p := provision.New(fake, zap.NewNop())

	h, err := p.EnsureAll(context.Background(), testKey())
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	if fake.TotalCreates() != 6 {
		t.Errorf("expected 6 resources created, got %d", fake.TotalCreates())
	}
	for _, handle := range []string{
		h.Category.ID, h.Announcements.ID, h.Discussion.ID,
		h.CohortChannel.ID, h.CourseRole.ID, h.CohortRole.ID,
	} {
		if handle == "" {
			t.Error("expected every handle to be populated")
		}
	}
}

func TestEnsureAll_SecondCallHitsCacheOnly(t *testing.T) {
	fake := testutil.NewFakePlatform()
	p := provision.New(fake, zap.NewNop())
	key := testKey()

	if _, err := p.EnsureAll(context.Background(), key); err != nil {
		t.Fatalf("first EnsureAll failed: %v", err)
	}
	if _, err := p.EnsureAll(context.Background(), key); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}

	// The cache absorbs the second pass; the platform sees each name once.
	for _, name := range key.Names() {
		if calls := fake.Calls(name); calls != 1 {
			t.Errorf("resource %q: expected 1 platform call, got %d", name, calls)
		}
	}
}

func TestEnsureAll_ConcurrentCohortCreatesOnce(t *testing.T) {
	fake := testutil.NewFakePlatform()
	p := provision.New(fake, zap.NewNop())
	key := testKey()

	const members = 50
	var wg sync.WaitGroup
	errs := make(chan error, members)

	for i := 0; i < members; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.EnsureAll(context.Background(), key); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent EnsureAll failed: %v", err)
	}

	// Exactly one category, two shared channels, one cohort channel, one
	// course role, and one cohort role, not 50 of each.
	for _, name := range key.Names() {
		if creates := fake.Creates(name); creates != 1 {
			t.Errorf("resource %q: expected exactly 1 create, got %d", name, creates)
		}
	}
	if fake.TotalCreates() != 6 {
		t.Errorf("expected 6 total creates, got %d", fake.TotalCreates())
	}
}

func TestEnsureAll_FailureIsRetriable(t *testing.T) {
	fake := testutil.NewFakePlatform()
	p := provision.New(fake, zap.NewNop())
	key := testKey()

	fake.Err = context.DeadlineExceeded
	if _, err := p.EnsureAll(context.Background(), key); err == nil {
		t.Fatal("expected EnsureAll to fail while platform is down")
	}

	// Nothing was cached for the failed names, so recovery provisions
	// everything.
	fake.Err = nil
	if _, err := p.EnsureAll(context.Background(), key); err != nil {
		t.Fatalf("EnsureAll after recovery failed: %v", err)
	}
	if fake.TotalCreates() != 6 {
		t.Errorf("expected 6 creates after recovery, got %d", fake.TotalCreates())
	}
}

func TestGrantAndRevoke(t *testing.T) {
	fake := testutil.NewFakePlatform()
	p := provision.New(fake, zap.NewNop())

	h, err := p.EnsureAll(context.Background(), testKey())
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	if err := p.Grant(context.Background(), "member-1", h); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if !fake.HasRole("member-1", h.CourseRole.ID) {
		t.Error("expected member to hold course role")
	}
	if !fake.HasRole("member-1", h.CohortRole.ID) {
		t.Error("expected member to hold cohort role")
	}

	if err := p.Revoke(context.Background(), "member-1", h); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if fake.HasRole("member-1", h.CourseRole.ID) || fake.HasRole("member-1", h.CohortRole.ID) {
		t.Error("expected roles to be revoked")
	}
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	fake := testutil.NewFakePlatform()
	p := provision.New(fake, zap.NewNop())
	key := testKey()

	if _, err := p.EnsureAll(context.Background(), key); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	p.Invalidate("category:" + key.Category)
	if _, err := p.EnsureAll(context.Background(), key); err != nil {
		t.Fatalf("EnsureAll after invalidate failed: %v", err)
	}

	if calls := fake.Calls(key.Category); calls != 2 {
		t.Errorf("expected 2 platform calls for invalidated category, got %d", calls)
	}
	// Create-or-fetch found the existing category, so no duplicate.
	if creates := fake.Creates(key.Category); creates != 1 {
		t.Errorf("expected 1 create despite refetch, got %d", creates)
	}
}
