package redishints

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "hints:"

// Store persiste los hints de autocompletado como sets de Redis.
// La semántica de set (sin duplicados, sin tope explícito) es
// exactamente el contrato del repositorio de sugerencias.
type Store struct {
	client *redis.Client
}

func NewStore(addr, password string) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
	}
}

// Ping verifica la conexión al arrancar.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Load(ctx context.Context, key string) ([]string, error) {
	vals, err := s.client.SMembers(ctx, keyPrefix+key).Result()
	if err != nil {
		return nil, err
	}
	return vals, nil
}

func (s *Store) Append(ctx context.Context, key string, values ...string) error {
	members := make([]any, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			members = append(members, v)
		}
	}
	if len(members) == 0 {
		return nil
	}
	return s.client.SAdd(ctx, keyPrefix+key, members...).Err()
}
