package exams

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"vet-exam-orders/internal/domain/emaillog"
	"vet-exam-orders/internal/domain/suggestions"
	"vet-exam-orders/internal/platform/logger"
	"vet-exam-orders/internal/platform/metrics"
	"vet-exam-orders/internal/ports/auth"
	"vet-exam-orders/internal/ports/files"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	// ErrSubmissionInFlight: ya hay un Submit corriendo en esta
	// instancia. El segundo intento se rechaza sin efectos (doble click).
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// FieldErrors son errores de campo devueltos por el store (p.ej.
// violaciones de constraint). El handler los muestra tal cual.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "invalid fields"
	}
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}

// Service es el orquestador de envíos de examen. Coordina la
// persistencia del registro, los hints de autocompletado y el handoff
// al pipeline de notificaciones en background.
type Service struct {
	repo     Repository
	pipeline *Pipeline
	hints    *suggestions.Service
	log      logger.Logger

	guard *submissionGuard
	now   func() time.Time

	// spawn arranca una tarea en background. En producción es `go fn()`;
	// los tests lo reemplazan para correr el pipeline en forma síncrona.
	spawn func(fn func())
}

func NewService(repo Repository, pipeline *Pipeline, hints *suggestions.Service, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		hints:    hints,
		log:      log,
		guard:    newSubmissionGuard(),
		now:      time.Now,
		spawn:    func(fn func()) { go fn() },
	}
}

// SubmitInput es el formulario completo de examen. ExamID nil => alta.
type SubmitInput struct {
	ExamID *int64

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

	Status Status

	// Adjuntos y texto del correo automático (opcional).
	Files   []files.Upload
	Message string
}

type SubmitResult struct {
	ExamID int64
	Exam   Exam

	// Sending indica que el pipeline de notificaciones quedó corriendo
	// en background; su progreso llega por el sink, no por acá.
	Sending bool
}

// Submit valida, normaliza y persiste el examen. Si el actor es admin y
// hay adjuntos, dispara el pipeline de notificaciones sin esperar su
// resultado: el retorno de Submit no depende del correo.
//
// A lo sumo un Submit en vuelo por instancia; el resto rebota con
// ErrSubmissionInFlight sin tocar el store.
func (s *Service) Submit(ctx context.Context, actor auth.Claims, in SubmitInput, sink ProgressSink) (SubmitResult, error) {
	if !s.guard.tryAcquire() {
		return SubmitResult{}, ErrSubmissionInFlight
	}
	defer s.guard.release()

	norm, err := s.normalize(in)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("rejected").Inc()
		return SubmitResult{}, err
	}

	var exam Exam
	created := false

	if in.ExamID != nil && *in.ExamID > 0 {
		norm.ID = *in.ExamID
		if _, err := s.repo.Update(ctx, norm); err != nil {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			return SubmitResult{}, fmt.Errorf("update exam: %w", err)
		}
		// Relectura: levanta campos calculados por el server (pdf_path,
		// updated_at) para que el caller redibuje estado autoritativo.
		exam, err = s.repo.GetByID(ctx, norm.ID)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			return SubmitResult{}, fmt.Errorf("re-read exam: %w", err)
		}
	} else {
		exam, err = s.repo.Create(ctx, norm)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			return SubmitResult{}, fmt.Errorf("create exam: %w", err)
		}
		created = true
	}

	// Hints de autocompletado: best-effort, nunca voltea el envío.
	if s.hints != nil {
		if err := s.hints.Remember(ctx, exam.AnimalName, exam.Tutor); err != nil {
			s.log.Warn("suggestion hints not persisted", map[string]any{"err": err.Error()})
		}
	}

	if created {
		metrics.SubmissionsTotal.WithLabelValues("created").Inc()
	} else {
		metrics.SubmissionsTotal.WithLabelValues("updated").Inc()
	}

	res := SubmitResult{ExamID: exam.ID, Exam: exam}

	// Handoff al pipeline: solo admins con adjuntos. Inputs capturados
	// por valor; el pipeline corre hasta el final aunque el caller se
	// haya ido (el sink desacoplado absorbe el progreso).
	if actor.IsAdmin() && len(in.Files) > 0 {
		res.Sending = true

		examID := exam.ID
		uploads := in.Files
		message := in.Message
		s.spawn(func() {
			s.pipeline.Run(context.Background(), examID, uploads, message, sink)
		})
	}

	return res, nil
}

// normalize aplica las reglas del formulario antes de tocar el store:
// trims, nota de pago vacía cuando paid=false, status por defecto, y
// las precondiciones que nunca deben llegar al Record Store.
func (s *Service) normalize(in SubmitInput) (Exam, error) {
	animal := strings.TrimSpace(in.AnimalName)
	if animal == "" {
		return Exam{}, fmt.Errorf("animal_name is required: %w", ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return Exam{}, fmt.Errorf("date is required: %w", ErrInvalidInput)
	}
	if in.ExamTypeID <= 0 {
		return Exam{}, fmt.Errorf("exam_type_id is required: %w", ErrInvalidInput)
	}
	if in.ClinicID <= 0 {
		return Exam{}, fmt.Errorf("clinic_id is required: %w", ErrInvalidInput)
	}
	if in.Value < 0 {
		return Exam{}, fmt.Errorf("value must be non-negative: %w", ErrInvalidInput)
	}
	if in.Paid && in.PaymentTypeID == nil {
		return Exam{}, fmt.Errorf("payment_type_id is required when paid: %w", ErrInvalidInput)
	}

	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if !ValidStatus(status) {
		return Exam{}, fmt.Errorf("invalid status %q: %w", status, ErrInvalidInput)
	}

	note := strings.TrimSpace(in.PaymentNote)
	if !in.Paid {
		note = ""
	}

	return Exam{
		AnimalName:    animal,
		Tutor:         strings.TrimSpace(in.Tutor),
		Veterinarian:  strings.TrimSpace(in.Veterinarian),
		Date:          in.Date,
		ExamTypeID:    in.ExamTypeID,
		ClinicID:      in.ClinicID,
		Value:         in.Value,
		PaymentTypeID: in.PaymentTypeID,
		Paid:          in.Paid,
		PaymentNote:   note,
		Status:        status,
	}, nil
}

// SetPaid es el toggle optimista de pago.
//
// Sin examID (examen todavía no persistido) solo valida: el cambio real
// viaja con el próximo Submit completo; no hay llamada al store.
// Con examID emite la actualización parcial y relee para devolver los
// valores autoritativos del server. Ante error, el rollback de la UI es
// responsabilidad del caller (disparado por el error devuelto).
func (s *Service) SetPaid(ctx context.Context, examID *int64, paid bool, paymentTypeID *int64, note string) (*Exam, error) {
	if paid && paymentTypeID == nil {
		return nil, fmt.Errorf("payment_type_id is required when paid: %w", ErrInvalidInput)
	}
	if !paid {
		note = ""
		paymentTypeID = nil
	}

	if examID == nil || *examID <= 0 {
		// Validado y diferido al próximo Submit.
		return nil, nil
	}

	if _, err := s.repo.UpdatePayment(ctx, *examID, PaymentPatch{
		Paid:          paid,
		PaymentTypeID: paymentTypeID,
		PaymentNote:   strings.TrimSpace(note),
	}); err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	exam, err := s.repo.GetByID(ctx, *examID)
	if err != nil {
		return nil, fmt.Errorf("re-read exam: %w", err)
	}
	return &exam, nil
}

// SetStatus togglea Pending/Completed. Con examID persiste de inmediato;
// sin examID el valor queda aceptado localmente y viaja con el próximo
// Submit (como el pago diferido, pero sin campo acompañante requerido).
func (s *Service) SetStatus(ctx context.Context, examID *int64, status Status) (*Exam, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status %q: %w", status, ErrInvalidInput)
	}

	if examID == nil || *examID <= 0 {
		return nil, nil
	}

	exam, err := s.repo.UpdateStatus(ctx, *examID, status)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return &exam, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (Exam, error) {
	if id <= 0 {
		return Exam{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Exam, error) {
	return s.repo.List(ctx, filter)
}

// Delete es un pass-through al Record Store; el core no agrega reglas.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

// EmailLog expone la vista del historial de correos de un examen.
func (s *Service) EmailLog(ctx context.Context, examID int64) ([]emaillog.Entry, error) {
	if examID <= 0 {
		return nil, ErrInvalidInput
	}
	return s.pipeline.gateway.Log(ctx, examID)
}

// Resend delega en el pipeline; acá solo para no exponer dos servicios
// al handler.
func (s *Service) Resend(ctx context.Context, examID, entryID int64, message string) ([]emaillog.Entry, error) {
	return s.pipeline.Resend(ctx, examID, entryID, message)
}
