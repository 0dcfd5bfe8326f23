package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"vet-exam-orders/internal/domain/exams"
)

var (
	ErrNotFound = exams.ErrNotFound
)

type examsRepo struct {
	mu     sync.RWMutex
	byID   map[int64]exams.Exam
	nextID int64
}

func NewExamsRepo() exams.Repository {
	return &examsRepo{
		byID:   make(map[int64]exams.Exam),
		nextID: 1,
	}
}

func (r *examsRepo) Create(ctx context.Context, e exams.Exam) (exams.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID != 0 {
		return exams.Exam{}, errors.New("exam already has an id")
	}

	now := time.Now()
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = now
	e.UpdatedAt = now

	r.byID[e.ID] = e
	return e, nil
}

func (r *examsRepo) GetByID(ctx context.Context, id int64) (exams.Exam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return exams.Exam{}, ErrNotFound
	}
	return e, nil
}

func (r *examsRepo) Update(ctx context.Context, e exams.Exam) (exams.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[e.ID]
	if !ok {
		return exams.Exam{}, ErrNotFound
	}

	// pdf_path y created_at no los pisa el formulario
	e.PDFPath = prev.PDFPath
	e.CreatedAt = prev.CreatedAt
	e.UpdatedAt = time.Now()

	r.byID[e.ID] = e
	return e, nil
}

func (r *examsRepo) UpdatePayment(ctx context.Context, id int64, p exams.PaymentPatch) (exams.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return exams.Exam{}, ErrNotFound
	}

	e.Paid = p.Paid
	e.PaymentTypeID = p.PaymentTypeID
	e.PaymentNote = p.PaymentNote
	e.UpdatedAt = time.Now()

	r.byID[id] = e
	return e, nil
}

func (r *examsRepo) UpdateStatus(ctx context.Context, id int64, s exams.Status) (exams.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return exams.Exam{}, ErrNotFound
	}

	e.Status = s
	e.UpdatedAt = time.Now()

	r.byID[id] = e
	return e, nil
}

func (r *examsRepo) SetPDFPath(ctx context.Context, id int64, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}

	e.PDFPath = &path
	e.UpdatedAt = time.Now()

	r.byID[id] = e
	return nil
}

func (r *examsRepo) List(ctx context.Context, filter exams.ListFilter) ([]exams.Exam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	out := make([]exams.Exam, 0)

	for _, e := range r.byID {
		if filter.ClinicID != nil && e.ClinicID != *filter.ClinicID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.Paid != nil && e.Paid != *filter.Paid {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		if q := strings.TrimSpace(filter.Query); q != "" {
			hay := strings.ToLower(e.AnimalName + " " + e.Tutor + " " + e.Veterinarian)
			if !strings.Contains(hay, strings.ToLower(q)) {
				continue
			}
		}

		out = append(out, e)
	}

	// Orden por date desc (más reciente primero)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *examsRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
