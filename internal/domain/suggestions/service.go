package suggestions

import (
	"context"
	"sort"
	"strings"
)

// Service mantiene los hints de autocompletado de la ficha de examen:
// nombres de animales y tutores usados recientemente. Son solo hints
// para el formulario; nunca afectan la validación ni la persistencia
// del examen.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Remember agrega el animal y el tutor de un envío exitoso.
// Valores vacíos se ignoran; los duplicados los absorbe el set.
func (s *Service) Remember(ctx context.Context, animalName, tutor string) error {
	if v := strings.TrimSpace(animalName); v != "" {
		if err := s.store.Append(ctx, KeyAnimals, v); err != nil {
			return err
		}
	}
	if v := strings.TrimSpace(tutor); v != "" {
		if err := s.store.Append(ctx, KeyTutors, v); err != nil {
			return err
		}
	}
	return nil
}

// Hints devuelve ambos conjuntos ordenados para salida estable.
func (s *Service) Hints(ctx context.Context) (animals, tutors []string, err error) {
	animals, err = s.store.Load(ctx, KeyAnimals)
	if err != nil {
		return nil, nil, err
	}
	tutors, err = s.store.Load(ctx, KeyTutors)
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(animals)
	sort.Strings(tutors)
	return animals, tutors, nil
}
