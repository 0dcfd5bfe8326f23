package exams

import (
	"context"
	"time"
)

// PaymentPatch es la actualización parcial que emite el toggle de pago:
// siempre viaja el trío completo. PaymentTypeID nil anula la columna.
type PaymentPatch struct {
	Paid          bool
	PaymentTypeID *int64
	PaymentNote   string
}

type Repository interface {
	// Create persiste un examen nuevo y devuelve el registro con el id
	// asignado por el store.
	Create(ctx context.Context, e Exam) (Exam, error)

	GetByID(ctx context.Context, id int64) (Exam, error)

	// Update reemplaza los campos del formulario completo (no toca
	// pdf_path ni created_at) y devuelve el registro resultante.
	Update(ctx context.Context, e Exam) (Exam, error)

	// UpdatePayment y UpdateStatus son actualizaciones parciales.
	UpdatePayment(ctx context.Context, id int64, p PaymentPatch) (Exam, error)
	UpdateStatus(ctx context.Context, id int64, s Status) (Exam, error)

	// SetPDFPath lo usa el almacenamiento de archivos al terminar de
	// generar el artefacto.
	SetPDFPath(ctx context.Context, id int64, path string) error

	List(ctx context.Context, filter ListFilter) ([]Exam, error)
	Delete(ctx context.Context, id int64) error
}

type ListFilter struct {
	ClinicID *int64
	Status   *Status
	Paid     *bool
	From     *time.Time
	To       *time.Time
	Query    string
	Limit    int
}
