package emaillog

import "time"

// Status define los estados posibles de un envío de correo.
// @Enum Sent, Pending, Failed
type Status string

const (
	StatusSent    Status = "Sent"
	StatusPending Status = "Pending"
	StatusFailed  Status = "Failed"
)

// Entry es una entrada del log de correos de un examen.
// El log es append-only: reenviar crea una entrada nueva, nunca se
// modifica una existente.
type Entry struct {
	ID     int64
	ExamID int64

	Status       Status
	SentTo       string
	ErrorMessage *string

	CreatedAt time.Time
}
