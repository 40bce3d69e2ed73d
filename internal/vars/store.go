package vars

import "sort"

// Store holds the variables of a batch. It is not safe for concurrent use;
// the engine only touches it from the goroutine running the batch.
type Store struct {
	values map[string]any
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: map[string]any{}}
}

// Set assigns name.
func (s *Store) Set(name string, v any) {
	if s.values == nil {
		s.values = map[string]any{}
	}
	s.values[name] = v
}

// Get returns the value of name.
func (s *Store) Get(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[name]
	return v, ok
}

// Delete removes name.
func (s *Store) Delete(name string) {
	delete(s.values, name)
}

// Merge assigns every entry of m.
func (s *Store) Merge(m map[string]any) {
	for k, v := range m {
		s.Set(k, v)
	}
}

// Clear removes every variable.
func (s *Store) Clear() {
	s.values = map[string]any{}
}

// Len returns the number of variables.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Names returns the variable names in sorted order.
func (s *Store) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all variables.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
