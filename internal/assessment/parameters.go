package assessment

import "sync"

// ParameterStore holds the current WeatherParameters snapshot. Every Set
// replaces the snapshot as a whole, so readers never observe a partial update.
type ParameterStore struct {
	mu      sync.RWMutex
	current WeatherParameters
}

// NewParameterStore creates a store seeded with initial, clamped into range.
func NewParameterStore(initial WeatherParameters) *ParameterStore {
	return &ParameterStore{current: initial.Clamped()}
}

// Get returns the current snapshot.
func (s *ParameterStore) Get() WeatherParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set clamps value into the field's domain and stores the resulting snapshot.
// Out-of-range values are never rejected; only an unknown field is an error.
func (s *ParameterStore) Set(f Field, value float64) (WeatherParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.current.With(f, value)
	if err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

// Update applies several field edits as one snapshot replacement.
func (s *ParameterStore) Update(values map[Field]float64) (WeatherParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	for f, v := range values {
		var err error
		next, err = next.With(f, v)
		if err != nil {
			return s.current, err
		}
	}
	s.current = next
	return next, nil
}
