package nostr

// Tag is an ordered sequence of strings, e.g. ["e", <event-id>, <relay-url>].
type Tag []string

// Key returns the tag's first element, the tag letter/name, or "" if empty.
func (t Tag) Key() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the tag's second element, or "" if absent.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Tags is the ordered sequence of a event's tags.
type Tags []Tag

// Find returns the first tag whose key matches name, or nil.
func (t Tags) Find(name string) Tag {
	for _, tag := range t {
		if tag.Key() == name {
			return tag
		}
	}
	return nil
}

// Values returns the Value() of every tag whose key matches name, in order.
func (t Tags) Values(name string) []string {
	var out []string
	for _, tag := range t {
		if tag.Key() == name && len(tag) >= 2 {
			out = append(out, tag[1])
		}
	}
	return out
}

// ContainsAny reports whether any tag named `name` has one of `values` as its
// second element.
func (t Tags) ContainsAny(name string, values []string) bool {
	for _, tag := range t {
		if tag.Key() != name || len(tag) < 2 {
			continue
		}
		for _, v := range values {
			if tag[1] == v {
				return true
			}
		}
	}
	return false
}

// AppendUnique appends tag unless an identical tag is already present.
func (t Tags) AppendUnique(tag Tag) Tags {
	for _, existing := range t {
		if tagsEqual(existing, tag) {
			return t
		}
	}
	return append(t, tag)
}

func tagsEqual(a, b Tag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
