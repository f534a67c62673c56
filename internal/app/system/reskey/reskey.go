// internal/app/system/reskey/reskey.go
//
// Package reskey derives the canonical set of platform resource names for
// an organizational identity. Derivation is pure and deterministic: the
// same identity always yields byte-identical names, and two distinct
// identities never yield the same name, even after truncation to the
// platform's length limit.
package reskey

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mindmatrix/cohorthub/internal/app/system/normalize"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
)

// MaxNameLen is the platform limit for category, channel, and role names.
const MaxNameLen = 100

// Key is the full derived name set for one identity. Category and roles
// keep display casing; channel names are lowercase slugs.
type Key struct {
	Identity models.Identity

	Category             string // "VTU - Android App Development"
	AnnouncementsChannel string // "vtu-android-app-development-announcements"
	DiscussionChannel    string // "vtu-android-app-development-discussion"
	CohortChannel        string // "vtu-nomads-official"
	CourseRole           string // "VTU-Android App Development Intern"
	CohortRole           string // "VTU-Nomads"
}

// Names returns all six derived names. Useful for iterating in tests.
func (k Key) Names() []string {
	return []string{
		k.Category,
		k.AnnouncementsChannel,
		k.DiscussionChannel,
		k.CohortChannel,
		k.CourseRole,
		k.CohortRole,
	}
}

// Derive maps an identity to its resource key. The organization code is
// rendered uppercase; program and cohort keep their display casing in
// category/role names and are slugged for channel names.
func Derive(id models.Identity) Key {
	org := normalize.OrgCode(id.Organization)
	program := normalize.Program(id.Program)
	cohort := normalize.Cohort(id.Cohort)

	orgSlug := strings.ToLower(org)
	programSlug := Slug(program)
	cohortSlug := Slug(cohort)

	return Key{
		Identity: models.Identity{Organization: org, Program: program, Cohort: cohort},

		Category:             clamp(fmt.Sprintf("%s - %s", org, program)),
		AnnouncementsChannel: clamp(orgSlug + "-" + programSlug + "-announcements"),
		DiscussionChannel:    clamp(orgSlug + "-" + programSlug + "-discussion"),
		CohortChannel:        clamp(orgSlug + "-" + cohortSlug + "-official"),
		CourseRole:           clamp(fmt.Sprintf("%s-%s Intern", org, program)),
		CohortRole:           clamp(fmt.Sprintf("%s-%s", org, cohort)),
	}
}

// Slug lowercases s, strips diacritics, and collapses every run of
// characters outside [a-z0-9] into a single hyphen.
func Slug(s string) string {
	folded := text.Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// clamp enforces MaxNameLen. When a name must be cut, the tail is replaced
// with an fnv-1a digest of the full untruncated name, so two identities
// whose names differ only past the limit still end up distinct.
func clamp(name string) string {
	if len(name) <= MaxNameLen {
		return name
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("-%08x", h.Sum64()&0xffffffff)
	return name[:MaxNameLen-len(suffix)] + suffix
}
