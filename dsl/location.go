package dsl

import "strings"

// AllowedLocations is the set of compute locations at which a task may run.
// It starts as the universe and only ever narrows by intersection as
// restrictions accumulate around a call site.
type AllowedLocations struct {
	// All marks the unrestricted universe. When All is set, Locs is empty.
	All bool `json:"all,omitempty"`
	// Locs is the explicit allow-list when All is unset.
	Locs []string `json:"locs,omitempty"`
}

// AllLocations returns the unrestricted location set.
func AllLocations() AllowedLocations { return AllowedLocations{All: true} }

// RestrictedTo returns a set containing exactly the given locations.
func RestrictedTo(locs ...string) AllowedLocations {
	return AllowedLocations{Locs: append([]string(nil), locs...)}
}

// IsEmpty reports whether no location is allowed. An empty set means no
// valid placement exists for the task, which is a compile error.
func (l AllowedLocations) IsEmpty() bool { return !l.All && len(l.Locs) == 0 }

// Exact returns the single allowed location, if there is exactly one.
func (l AllowedLocations) Exact() (string, bool) {
	if !l.All && len(l.Locs) == 1 {
		return l.Locs[0], true
	}
	return "", false
}

// Intersect narrows l to the locations also present in o.
func (l AllowedLocations) Intersect(o AllowedLocations) AllowedLocations {
	if l.All {
		return o
	}
	if o.All {
		return l
	}
	keep := make(map[string]bool, len(o.Locs))
	for _, loc := range o.Locs {
		keep[loc] = true
	}
	var locs []string
	for _, loc := range l.Locs {
		if keep[loc] {
			locs = append(locs, loc)
		}
	}
	return AllowedLocations{Locs: locs}
}

func (l AllowedLocations) String() string {
	if l.All {
		return "*"
	}
	return "[" + strings.Join(l.Locs, ", ") + "]"
}
