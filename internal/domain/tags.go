package domain

import (
	"slices"
	"strings"
)

// Tags is an ordered set of free-form tags. The zero value is an empty set.
type Tags []string

// ParseTags splits the newline-joined storage form into a set, dropping
// blanks and duplicates.
func ParseTags(s string) Tags {
	var t Tags
	for _, line := range strings.Split(s, "\n") {
		t = t.Add(strings.TrimSpace(line))
	}
	return t
}

// String returns the newline-joined storage form.
func (t Tags) String() string {
	return strings.Join(t, "\n")
}

// Has reports whether tag is in the set.
func (t Tags) Has(tag string) bool {
	return slices.Contains(t, tag)
}

// Add returns the set with tag appended if it was absent. Blank tags are ignored.
func (t Tags) Add(tag string) Tags {
	if tag == "" || t.Has(tag) {
		return t
	}
	return append(t, tag)
}

// Remove returns a copy of the set without tag.
func (t Tags) Remove(tag string) Tags {
	out := make(Tags, 0, len(t))
	for _, x := range t {
		if x != tag {
			out = append(out, x)
		}
	}
	return out
}

// Union returns a new set holding t followed by the members of others not
// already present.
func (t Tags) Union(others ...Tags) Tags {
	out := slices.Clone(t)
	for _, o := range others {
		for _, x := range o {
			out = out.Add(x)
		}
	}
	return out
}

// ContainsSubstring reports whether any tag contains sub.
func (t Tags) ContainsSubstring(sub string) bool {
	for _, x := range t {
		if strings.Contains(x, sub) {
			return true
		}
	}
	return false
}

// MatchAny reports whether any tag contains any of the given substrings.
func (t Tags) MatchAny(subs []string) bool {
	for _, s := range subs {
		if t.ContainsSubstring(s) {
			return true
		}
	}
	return false
}

// MatchAll reports whether every given substring is contained in some tag.
func (t Tags) MatchAll(subs []string) bool {
	for _, s := range subs {
		if !t.ContainsSubstring(s) {
			return false
		}
	}
	return true
}
