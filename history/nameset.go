package history

import "strings"

// nameSet is an insertion-ordered set of condition or allergy names with
// case-insensitive membership. The first spelling seen for a name is the one
// that survives.
type nameSet struct {
	seen  map[string]bool
	names []string
}

func newNameSet(names ...string) *nameSet {
	s := &nameSet{seen: make(map[string]bool)}
	s.AddAll(names)
	return s
}

func foldKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *nameSet) Add(name string) {
	key := foldKey(name)
	if key == "" || s.seen[key] {
		return
	}
	s.seen[key] = true
	s.names = append(s.names, strings.TrimSpace(name))
}

func (s *nameSet) AddAll(names []string) {
	for _, name := range names {
		s.Add(name)
	}
}

func (s *nameSet) Contains(name string) bool {
	return s.seen[foldKey(name)]
}

func (s *nameSet) Remove(name string) {
	key := foldKey(name)
	if !s.seen[key] {
		return
	}
	delete(s.seen, key)
	for i, v := range s.names {
		if foldKey(v) == key {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
}

// Values returns the canonical names in insertion order. The returned slice
// is never nil.
func (s *nameSet) Values() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
