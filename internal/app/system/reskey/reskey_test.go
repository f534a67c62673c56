package reskey

import (
	"strings"
	"testing"

	"github.com/mindmatrix/cohorthub/internal/domain/models"
)

func TestDerive_CanonicalNames(t *testing.T) {
	key := Derive(models.Identity{
		Organization: "vtu",
		Program:      "Android App Development",
		Cohort:       "Nomads",
	})

	if key.Category != "VTU - Android App Development" {
		t.Errorf("Category = %q", key.Category)
	}
	if key.AnnouncementsChannel != "vtu-android-app-development-announcements" {
		t.Errorf("AnnouncementsChannel = %q", key.AnnouncementsChannel)
	}
	if key.DiscussionChannel != "vtu-android-app-development-discussion" {
		t.Errorf("DiscussionChannel = %q", key.DiscussionChannel)
	}
	if key.CohortChannel != "vtu-nomads-official" {
		t.Errorf("CohortChannel = %q", key.CohortChannel)
	}
	if key.CourseRole != "VTU-Android App Development Intern" {
		t.Errorf("CourseRole = %q", key.CourseRole)
	}
	if key.CohortRole != "VTU-Nomads" {
		t.Errorf("CohortRole = %q", key.CohortRole)
	}
}

func TestDerive_Deterministic(t *testing.T) {
	id := models.Identity{Organization: "GTU", Program: "Data Analytics", Cohort: "Pioneers"}

	first := Derive(id)
	second := Derive(id)

	for i, name := range first.Names() {
		if name != second.Names()[i] {
			t.Errorf("derivation not deterministic: %q vs %q", name, second.Names()[i])
		}
	}
}

func TestDerive_CaseInsensitiveOrg(t *testing.T) {
	lower := Derive(models.Identity{Organization: "vtu", Program: "P", Cohort: "C"})
	upper := Derive(models.Identity{Organization: "VTU", Program: "P", Cohort: "C"})

	for i, name := range lower.Names() {
		if name != upper.Names()[i] {
			t.Errorf("org casing changed derived name: %q vs %q", name, upper.Names()[i])
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Android App Development", "android-app-development"},
		{"Data  Analytics", "data-analytics"},
		{"C++ & Systems", "c-systems"},
		{"  edge  ", "edge"},
		{"Nomads", "nomads"},
		{"Déjà Vu", "deja-vu"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slug(tt.input); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDerive_TruncationKeepsLimit(t *testing.T) {
	long := strings.Repeat("Very Long Program Name ", 10)
	key := Derive(models.Identity{Organization: "VTU", Program: long, Cohort: "Nomads"})

	for _, name := range key.Names() {
		if len(name) > MaxNameLen {
			t.Errorf("name exceeds limit (%d): %q", len(name), name)
		}
	}
}

func TestDerive_NoCollisionAfterTruncation(t *testing.T) {
	// Two programs that agree on the first 150 characters and differ only
	// past the truncation point must still derive distinct names.
	base := strings.Repeat("Industrial Automation and Robotics ", 5)
	a := Derive(models.Identity{Organization: "VTU", Program: base + "Alpha", Cohort: "X"})
	b := Derive(models.Identity{Organization: "VTU", Program: base + "Omega", Cohort: "X"})

	if a.Category == b.Category {
		t.Errorf("category names collide after truncation: %q", a.Category)
	}
	if a.AnnouncementsChannel == b.AnnouncementsChannel {
		t.Errorf("announcement channels collide after truncation: %q", a.AnnouncementsChannel)
	}
	if a.CourseRole == b.CourseRole {
		t.Errorf("course roles collide after truncation: %q", a.CourseRole)
	}
}
