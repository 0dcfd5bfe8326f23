package memoryhints

import (
	"context"
	"strings"
	"sync"
)

// Store es el repositorio de hints en memoria (dev/tests).
type Store struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

func NewStore() *Store {
	return &Store{sets: make(map[string]map[string]struct{})}
}

func (s *Store) Load(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.sets[key]))
	for v := range s.sets[key] {
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return nil
}
