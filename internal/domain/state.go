package domain

import (
	"fmt"
	"strings"
)

// ItemState is the navigation status of a node relative to the current selection.
type ItemState string

const (
	StateUserDef2 ItemState = "USERDEF2"
	StateUserDef1 ItemState = "USERDEF1"
	StateSpc      ItemState = "SPC"
	StateUsr      ItemState = "USR"
	StateCurIfSub ItemState = "CURIFSUB"
	StateCur      ItemState = "CUR"
	StateActIfSub ItemState = "ACTIFSUB"
	StateAct      ItemState = "ACT"
	StateIfSub    ItemState = "IFSUB"
	StateNo       ItemState = "NO"
)

// StatePriority lists every state from highest to lowest priority.
// When several states are eligible the first one in this order wins.
var StatePriority = []ItemState{
	StateUserDef2,
	StateUserDef1,
	StateSpc,
	StateUsr,
	StateCurIfSub,
	StateCur,
	StateActIfSub,
	StateAct,
	StateIfSub,
	StateNo,
}

func (s ItemState) String() string {
	return string(s)
}

// IsCurrent reports whether s marks the current node.
func (s ItemState) IsCurrent() bool {
	return s == StateCur || s == StateCurIfSub
}

// IsActive reports whether s marks a node on the active path above the current one.
func (s ItemState) IsActive() bool {
	return s == StateAct || s == StateActIfSub || s == StateIfSub
}

// ParseItemState parses a state name, case-insensitive.
func ParseItemState(v string) (ItemState, error) {
	s := ItemState(strings.ToUpper(strings.TrimSpace(v)))
	for _, known := range StatePriority {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown item state %q", v)
}

// StateSet is an unordered set of item states.
type StateSet map[ItemState]struct{}

// NewStateSet builds a set from the given states.
func NewStateSet(states ...ItemState) StateSet {
	set := make(StateSet, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}
	return set
}

// ParseStateSet parses state names into a set.
func ParseStateSet(names []string) (StateSet, error) {
	set := make(StateSet, len(names))
	for _, name := range names {
		s, err := ParseItemState(name)
		if err != nil {
			return nil, err
		}
		set[s] = struct{}{}
	}
	return set, nil
}

func (s StateSet) Has(state ItemState) bool {
	_, ok := s[state]
	return ok
}

// Pick returns the highest-priority state among candidates that the set enables.
// It falls back to StateNo when nothing matches.
func (s StateSet) Pick(candidates []ItemState) ItemState {
	for _, state := range StatePriority {
		if !s.Has(state) {
			continue
		}
		for _, c := range candidates {
			if c == state {
				return state
			}
		}
	}
	return StateNo
}
