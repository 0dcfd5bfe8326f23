package exams

import "time"

// Status define el estado de un examen.
// @Enum Pending, Completed
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

// ValidStatus valida el enum antes de persistir.
func ValidStatus(s Status) bool {
	return s == StatusPending || s == StatusCompleted
}

// Exam representa una orden de examen veterinario.
//
// Invariante: PaymentTypeID no puede ser nil cuando Paid es true.
// Se chequea antes de enviar y antes de togglear el pago.
// PDFPath lo setea el almacenamiento de archivos cuando el artefacto
// PDF queda generado; el core solo lo lee.
type Exam struct {
	ID int64

	AnimalName   string
	Tutor        string
	Veterinarian string
	Date         time.Time

	ExamTypeID int64
	ClinicID   int64

	Value         float64
	PaymentTypeID *int64
	Paid          bool
	PaymentNote   string

	Status  Status
	PDFPath *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
