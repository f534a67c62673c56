// internal/app/system/orgs/orgs.go
//
// Package orgs holds the typed set of supported organizations. The set is
// parsed from configuration at startup and validated there, so an unknown
// organization code is rejected at identity-resolution time instead of
// surfacing deep inside provisioning.
package orgs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mindmatrix/cohorthub/internal/app/system/normalize"
)

// Set is an immutable mapping of organization code → display name.
type Set struct {
	byCode map[string]string
}

// Parse builds a Set from a config string of the form
// "VTU=Visvesvaraya Technological University,GTU=Gujarat Technological University".
// Codes are compared case-insensitively and stored uppercase. A code
// without "=display" uses the code itself as display name.
func Parse(spec string) (*Set, error) {
	byCode := make(map[string]string)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, display, _ := strings.Cut(part, "=")
		code = normalize.OrgCode(code)
		if code == "" {
			return nil, fmt.Errorf("organizations entry %q has an empty code", part)
		}
		display = strings.TrimSpace(display)
		if display == "" {
			display = code
		}
		if _, dup := byCode[code]; dup {
			return nil, fmt.Errorf("organization code %q listed twice", code)
		}
		byCode[code] = display
	}
	if len(byCode) == 0 {
		return nil, fmt.Errorf("no supported organizations configured")
	}
	return &Set{byCode: byCode}, nil
}

// Supported reports whether code is in the set. Comparison is
// case-insensitive.
func (s *Set) Supported(code string) bool {
	_, ok := s.byCode[normalize.OrgCode(code)]
	return ok
}

// DisplayName returns the display name for a code.
func (s *Set) DisplayName(code string) (string, bool) {
	name, ok := s.byCode[normalize.OrgCode(code)]
	return name, ok
}

// Codes returns the supported codes in sorted order.
func (s *Set) Codes() []string {
	codes := make([]string, 0, len(s.byCode))
	for c := range s.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
