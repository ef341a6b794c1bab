package domain

import (
	"sort"
	"strings"
)

// VisitorContext carries everything about the requesting visitor that
// influences a navigation build. It is passed explicitly into every call.
type VisitorContext struct {
	Groups    []string `json:"groups"`
	Host      string   `json:"host"`
	Language  string   `json:"language"`
	NoCache   bool     `json:"no_cache"`
	SessionID string   `json:"session_id,omitempty"`
}

// HasGroups reports whether the visitor belongs to at least one group.
func (v VisitorContext) HasGroups() bool {
	return len(v.NormalizedGroups()) > 0
}

// NormalizedGroups returns the group set sorted and without blanks or duplicates.
func (v VisitorContext) NormalizedGroups() []string {
	seen := make(map[string]struct{}, len(v.Groups))
	groups := make([]string, 0, len(v.Groups))
	for _, g := range v.Groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// InGroup reports whether the visitor belongs to group.
func (v VisitorContext) InGroup(group string) bool {
	group = strings.TrimSpace(group)
	for _, g := range v.Groups {
		if strings.TrimSpace(g) == group {
			return true
		}
	}
	return false
}
