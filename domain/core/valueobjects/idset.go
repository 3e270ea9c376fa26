package valueobjects

// UserIDSet is an unordered set of user IDs kept as a slice so it
// serializes as a JSON array. Insertion order is preserved for display but
// carries no meaning.
type UserIDSet []UserID

// Contains reports whether id is a member of the set.
func (s UserIDSet) Contains(id UserID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// With returns the set with id added. Adding an existing member is a no-op.
func (s UserIDSet) With(id UserID) UserIDSet {
	if s.Contains(id) {
		return s
	}
	return append(s, id)
}

// Without returns the set with id removed. Removing a missing member is a no-op.
func (s UserIDSet) Without(id UserID) UserIDSet {
	out := make(UserIDSet, 0, len(s))
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s UserIDSet) Clone() UserIDSet {
	if s == nil {
		return UserIDSet{}
	}
	out := make(UserIDSet, len(s))
	copy(out, s)
	return out
}

// Strings converts the set for storage drivers.
func (s UserIDSet) Strings() []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}

// UserIDSetFromStrings builds a set, dropping duplicates and empty values.
func UserIDSetFromStrings(values []string) UserIDSet {
	out := make(UserIDSet, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out = out.With(UserID(v))
	}
	return out
}
