package memory

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"vet-exam-orders/internal/domain/exams"
	"vet-exam-orders/internal/ports/files"
)

// Store guarda los adjuntos en memoria. Para dev sin MinIO y para
// tests; imita el efecto del store real seteando pdf_path cuando entre
// los adjuntos viene un PDF.
type Store struct {
	mu   sync.Mutex
	data map[string][]byte
	repo exams.Repository

	// FailUploads fuerza el fallo de Upload en tests.
	FailUploads bool
}

func NewStore(repo exams.Repository) *Store {
	return &Store{
		data: make(map[string][]byte),
		repo: repo,
	}
}

func (s *Store) Upload(ctx context.Context, examID int64, uploads []files.Upload) error {
	s.mu.Lock()
	if s.FailUploads {
		s.mu.Unlock()
		return fmt.Errorf("upload rejected")
	}

	var artifactKey string
	for _, u := range uploads {
		key := fmt.Sprintf("exams/%d/%s", examID, path.Base(u.Name))
		s.data[key] = append([]byte(nil), u.Data...)

		if artifactKey == "" && strings.EqualFold(path.Ext(u.Name), ".pdf") {
			artifactKey = key
		}
	}
	s.mu.Unlock()

	if artifactKey == "" {
		return nil
	}
	return s.repo.SetPDFPath(ctx, examID, artifactKey)
}

// Object expone lo subido, para asserts en tests.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[key]
	return b, ok
}

// Count devuelve cuántos objetos hay guardados.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
