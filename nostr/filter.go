package nostr

// Filter constrains a subscription as specified: every set field narrows the
// match (AND); absent fields are wildcards. Across a Filters list, any filter
// matching is sufficient (OR), which Filters.MatchesAny implements.
type Filter struct {
	IDs        []string `json:"ids,omitempty"`
	Authors    []string `json:"authors,omitempty"`
	Kinds      []int    `json:"kinds,omitempty"`
	Events     []string `json:"#e,omitempty"`
	PubKeys    []string `json:"#p,omitempty"`
	Hashtags   []string `json:"#t,omitempty"`
	References []string `json:"#r,omitempty"`
	Search     string   `json:"search,omitempty"`
	Since      *Timestamp `json:"since,omitempty"`
	Until      *Timestamp `json:"until,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Filters is a disjunction of Filter: a REQ carries one or more, and an event
// matches the subscription if it matches any of them.
type Filters []Filter

// Matches reports whether e satisfies every set constraint of f. Search is
// not evaluated, and Limit does not constrain a single event, so both are
// ignored here.
func (f Filter) Matches(e *Event) bool {
	if len(f.IDs) > 0 && !hasPrefixMatch(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !hasPrefixMatch(f.Authors, e.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsInt(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Events) > 0 && !e.Tags.ContainsAny("e", f.Events) {
		return false
	}
	if len(f.PubKeys) > 0 && !e.Tags.ContainsAny("p", f.PubKeys) {
		return false
	}
	if len(f.Hashtags) > 0 && !e.Tags.ContainsAny("t", f.Hashtags) {
		return false
	}
	if len(f.References) > 0 && !e.Tags.ContainsAny("r", f.References) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	return true
}

// MatchesAny reports whether e satisfies at least one filter in fs.
func (fs Filters) MatchesAny(e *Event) bool {
	for _, f := range fs {
		if f.Matches(e) {
			return true
		}
	}
	return false
}

func hasPrefixMatch(prefixes []string, value string) bool {
	for _, p := range prefixes {
		if len(value) >= len(p) && value[:len(p)] == p {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
