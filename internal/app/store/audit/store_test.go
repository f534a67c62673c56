package audit_test

import (
	"testing"
	"time"

	"github.com/mindmatrix/cohorthub/internal/app/store/audit"
	"github.com/mindmatrix/cohorthub/internal/testutil"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryVerify,
		EventType: audit.EventCodeSent,
		MemberID:  "member-1",
		Email:     "A@X.edu",
		Actor:     "member",
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByMember(ctx, "member-1", 10)
	if err != nil {
		t.Fatalf("GetByMember failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Error("expected a generated uuid id")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if e.Email != "a@x.edu" {
		t.Errorf("expected normalized email, got %q", e.Email)
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seed := []audit.Event{
		{Category: audit.CategoryVerify, EventType: audit.EventCodeSent, MemberID: "m1", Email: "a@x.edu", Success: true},
		{Category: audit.CategoryVerify, EventType: audit.EventCodeFailed, MemberID: "m1", Email: "a@x.edu", Success: false, FailureReason: "code mismatch"},
		{Category: audit.CategoryVerify, EventType: audit.EventVerified, MemberID: "m2", Email: "b@x.edu", Success: true},
		{Category: audit.CategoryAdmin, EventType: audit.EventUnverified, MemberID: "m2", Email: "b@x.edu", Actor: "admin", Success: true},
	}
	for _, e := range seed {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	byMember, err := store.Query(ctx, audit.QueryFilter{MemberID: "m1"})
	if err != nil {
		t.Fatalf("Query by member failed: %v", err)
	}
	if len(byMember) != 2 {
		t.Errorf("expected 2 events for m1, got %d", len(byMember))
	}

	byEmail, err := store.Query(ctx, audit.QueryFilter{Email: "B@X.edu"})
	if err != nil {
		t.Fatalf("Query by email failed: %v", err)
	}
	if len(byEmail) != 2 {
		t.Errorf("expected 2 events for b@x.edu, got %d", len(byEmail))
	}

	admin, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryAdmin})
	if err != nil {
		t.Fatalf("Query by category failed: %v", err)
	}
	if len(admin) != 1 || admin[0].EventType != audit.EventUnverified {
		t.Errorf("unexpected admin events: %+v", admin)
	}

	n, err := store.CountByFilter(ctx, audit.QueryFilter{Category: audit.CategoryVerify})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 verify events, got %d", n)
	}
}

func TestStore_GetFailedCodes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryVerify,
		EventType: audit.EventCodeFailed,
		MemberID:  "m1",
		Success:   false,
	}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryVerify,
		EventType: audit.EventCodeSent,
		MemberID:  "m1",
		Success:   true,
	}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	failed, err := store.GetFailedCodes(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("GetFailedCodes failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed code event, got %d", len(failed))
	}
	if failed[0].EventType != audit.EventCodeFailed {
		t.Errorf("unexpected event type %q", failed[0].EventType)
	}
}
