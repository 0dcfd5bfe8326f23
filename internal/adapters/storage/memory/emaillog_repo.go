package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"vet-exam-orders/internal/domain/emaillog"
)

type emailLogRepo struct {
	mu     sync.RWMutex
	byID   map[int64]emaillog.Entry
	nextID int64
}

func NewEmailLogRepo() emaillog.Repository {
	return &emailLogRepo{
		byID:   make(map[int64]emaillog.Entry),
		nextID: 1,
	}
}

func (r *emailLogRepo) Append(ctx context.Context, e emaillog.Entry) (emaillog.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = r.nextID
	r.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	r.byID[e.ID] = e
	return e, nil
}

func (r *emailLogRepo) ListByExam(ctx context.Context, examID int64) ([]emaillog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Sin historial => lista vacía, nunca error
	out := make([]emaillog.Entry, 0)
	for _, e := range r.byID {
		if e.ExamID == examID {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out, nil
}
