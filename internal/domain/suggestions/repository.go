package suggestions

import "context"

// Claves usadas en el key-value store de hints de autocompletado.
const (
	KeyAnimals = "animalSuggestions"
	KeyTutors  = "tutorSuggestions"
)

// Store persiste conjuntos de strings por clave. Append agrega valores
// de forma idempotente (semántica de set, sin tope explícito).
type Store interface {
	Load(ctx context.Context, key string) ([]string, error)
	Append(ctx context.Context, key string, values ...string) error
}
