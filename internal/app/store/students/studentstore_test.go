package studentstore_test

import (
	"errors"
	"testing"

	studentstore "github.com/mindmatrix/cohorthub/internal/app/store/students"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
	"github.com/mindmatrix/cohorthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setup(t *testing.T) *studentstore.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := studentstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	return store
}

func TestStore_Add(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	st, err := store.Add(ctx, models.Student{
		Email:        "  Jane.Doe@Example.COM ",
		FullName:     " Jane Doe ",
		Organization: "vtu",
		Program:      "Android App Development",
		Cohort:       "Nomads",
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if st.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if st.Email != "jane.doe@example.com" {
		t.Errorf("expected normalized email, got %q", st.Email)
	}
	if st.FullName != "Jane Doe" {
		t.Errorf("expected trimmed name, got %q", st.FullName)
	}
	if st.Organization != "VTU" {
		t.Errorf("expected upper-cased org code, got %q", st.Organization)
	}
	if st.FullNameCI == "" {
		t.Error("expected FullNameCI to be set")
	}
	if st.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_Add_DuplicateEmail(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	st := models.Student{
		Email:        "dup@example.com",
		FullName:     "First In",
		Organization: "VTU",
		Program:      "Android App Development",
		Cohort:       "Nomads",
	}
	if _, err := store.Add(ctx, st); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}

	// Same email under any casing is the same student.
	st.Email = "DUP@example.com"
	_, err := store.Add(ctx, st)
	if !errors.Is(err, studentstore.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestStore_ResolveIdentity(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Add(ctx, models.Student{
		Email:        "resolve@example.com",
		FullName:     "Resolve Me",
		Organization: "VTU",
		Program:      "Android App Development",
		Cohort:       "Nomads",
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	st, err := store.ResolveIdentity(ctx, "Resolve@Example.com")
	if err != nil {
		t.Fatalf("ResolveIdentity failed: %v", err)
	}
	want := models.Identity{Organization: "VTU", Program: "Android App Development", Cohort: "Nomads"}
	if st.Identity() != want {
		t.Errorf("expected identity %+v, got %+v", want, st.Identity())
	}
}

func TestStore_ResolveIdentity_NotFound(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.ResolveIdentity(ctx, "unknown@example.com")
	if !errors.Is(err, studentstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_BulkImport(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Add(ctx, models.Student{
		Email:        "existing@example.com",
		FullName:     "Already Here",
		Organization: "VTU",
		Program:      "Android App Development",
		Cohort:       "Nomads",
	}); err != nil {
		t.Fatalf("seed Add failed: %v", err)
	}

	res, err := store.BulkImport(ctx, []models.Student{
		{Email: "new1@example.com", FullName: "New One", Organization: "VTU", Program: "Android App Development", Cohort: "Nomads"},
		{Email: "new2@example.com", FullName: "New Two", Organization: "GTU", Program: "Web Development", Cohort: "Pioneers"},
		// Same email, same identity: silently skipped.
		{Email: "existing@example.com", FullName: "Already Here", Organization: "VTU", Program: "Android App Development", Cohort: "Nomads"},
		// Same email, different identity: skipped and reported.
		{Email: "existing@example.com", FullName: "Already Here", Organization: "GTU", Program: "Web Development", Cohort: "Pioneers"},
	})
	if err != nil {
		t.Fatalf("BulkImport failed: %v", err)
	}

	if res.Added != 2 {
		t.Errorf("expected 2 added, got %d", res.Added)
	}
	if res.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", res.Skipped)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(res.Conflicts))
	}
	c := res.Conflicts[0]
	if c.Email != "existing@example.com" {
		t.Errorf("unexpected conflict email %q", c.Email)
	}
	if c.Existing.Organization != "VTU" || c.Incoming.Organization != "GTU" {
		t.Errorf("unexpected conflict identities: %+v", c)
	}

	// The original record is untouched.
	st, err := store.GetByEmail(ctx, "existing@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if st.Organization != "VTU" {
		t.Errorf("expected existing record to keep VTU, got %q", st.Organization)
	}
}

func TestStore_ListAndCount(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, st := range []models.Student{
		{Email: "a@example.com", FullName: "A", Organization: "VTU", Program: "P", Cohort: "C"},
		{Email: "b@example.com", FullName: "B", Organization: "VTU", Program: "P", Cohort: "C"},
		{Email: "c@example.com", FullName: "C", Organization: "GTU", Program: "P", Cohort: "C"},
	} {
		if _, err := store.Add(ctx, st); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	all, err := store.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 students, got %d", len(all))
	}

	vtu, err := store.List(ctx, "vtu", 0, 0)
	if err != nil {
		t.Fatalf("List(vtu) failed: %v", err)
	}
	if len(vtu) != 2 {
		t.Errorf("expected 2 VTU students, got %d", len(vtu))
	}

	n, err := store.Count(ctx, "GTU")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 GTU student, got %d", n)
	}

	byOrg, err := store.CountByOrganization(ctx)
	if err != nil {
		t.Fatalf("CountByOrganization failed: %v", err)
	}
	if byOrg["VTU"] != 2 || byOrg["GTU"] != 1 {
		t.Errorf("unexpected per-org counts: %v", byOrg)
	}
}
