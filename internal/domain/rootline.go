package domain

// RootlineEntry is one breadcrumb element, ordered display root first.
type RootlineEntry struct {
	ID              int64       `json:"id"`
	Kind            NodeKind    `json:"kind"`
	Title           string      `json:"title"`
	NavTitle        string      `json:"nav_title"`
	ItemState       ItemState   `json:"item_state"`
	CandidateStates []ItemState `json:"item_states_list,omitempty"`
	Depth           int         `json:"depth"`
	Params          Params      `json:"params"`
}
