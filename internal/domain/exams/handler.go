package exams

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vet-exam-orders/internal/domain/emaillog"
	"vet-exam-orders/internal/middleware"
	"vet-exam-orders/internal/platform/logger"
	"vet-exam-orders/internal/ports/files"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 32 << 20 // 32MB por request multipart

func RegisterRoutes(r chi.Router, svc *Service, log logger.Logger) {
	r.Route("/exams", func(er chi.Router) {
		er.Post("/", submitExamHandler(svc, log, false))
		er.Get("/", listExamsHandler(svc))

		er.Route("/{examID}", func(ir chi.Router) {
			ir.Put("/", submitExamHandler(svc, log, true))
			ir.Get("/", getExamHandler(svc))
			ir.Delete("/", deleteExamHandler(svc))

			ir.Patch("/payment", setPaymentHandler(svc))
			ir.Patch("/status", setStatusHandler(svc))

			ir.Get("/emails", emailLogHandler(svc))
			ir.Post("/emails/{entryID}/resend", resendHandler(svc))
		})
	})
}

// examResponse representa un examen devuelto por la API.
type examResponse struct {
	ID            int64   `json:"id"`
	AnimalName    string  `json:"animal_name"`
	Tutor         string  `json:"tutor"`
	Veterinarian  string  `json:"veterinarian"`
	Date          string  `json:"date"` // YYYY-MM-DD
	ExamTypeID    int64   `json:"exam_type_id"`
	ClinicID      int64   `json:"clinic_id"`
	Value         float64 `json:"value"`
	PaymentTypeID *int64  `json:"payment_type_id"`
	Paid          bool    `json:"paid"`
	PaymentNote   string  `json:"payment_note"`
	Status        Status  `json:"status"`
	PDFPath       *string `json:"pdf_path"`
}

// submitResponse es el resultado de un envío del formulario.
type submitResponse struct {
	Success bool         `json:"success"`
	ExamID  int64        `json:"exam_id"`
	Sending bool         `json:"sending"`
	Exam    examResponse `json:"exam"`
}

// emailLogEntryResponse es una entrada del historial de correos.
type emailLogEntryResponse struct {
	ID           int64           `json:"id"`
	ExamID       int64           `json:"exam_id"`
	Status       emaillog.Status `json:"status"`
	SentTo       string          `json:"sent_to"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
}

// resendResponse es el resultado de un reenvío manual.
type resendResponse struct {
	Success   bool                    `json:"success"`
	EmailLogs []emailLogEntryResponse `json:"email_logs"`
	Message   string                  `json:"message,omitempty"`
}

// submitExamHandler godoc
// @Summary Enviar formulario de examen
// @Description Crea o actualiza un examen. Acepta multipart/form-data (campos + files) o JSON sin adjuntos. Si el usuario es admin y adjuntó archivos, dispara en background la subida y el correo de notificación; la respuesta no espera ese pipeline (sending=true indica que quedó corriendo).
// @Tags exams
// @Accept mpfd
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param X-Debug-User-Role header string false "Solo en modo dev, rol (admin dispara correos)"
// @Param examID path int false "ID del examen (solo en PUT)"
// @Success 201 {object} submitResponse
// @Failure 400 {string} string "validación: animal_name requerido, paid sin payment_type_id, etc."
// @Failure 401 {string} string "unauthorized"
// @Failure 409 {string} string "ya hay un envío en vuelo"
// @Router /exams [post]
func submitExamHandler(svc *Service, log logger.Logger, update bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		in, err := parseSubmitRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if update {
			id, err := examIDParam(r)
			if err != nil {
				http.Error(w, "invalid exam id", http.StatusBadRequest)
				return
			}
			in.ExamID = &id
		}

		// El sink se desengancha al devolver la respuesta: el progreso
		// posterior del pipeline queda en su propio logger, no en el del
		// request que ya se fue.
		sink := NewDetachableSink(logSink{log: log})
		defer sink.Detach()

		res, err := svc.Submit(r.Context(), claims, in, sink)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		status := http.StatusCreated
		if update {
			status = http.StatusOK
		}
		writeJSON(w, status, submitResponse{
			Success: true,
			ExamID:  res.ExamID,
			Sending: res.Sending,
			Exam:    toExamResponse(res.Exam),
		})
	}
}

// getExamHandler godoc
// @Summary Obtener un examen
// @Tags exams
// @Produce json
// @Param examID path int true "ID del examen"
// @Success 200 {object} examResponse
// @Failure 404 {string} string "exam not found"
// @Router /exams/{examID} [get]
func getExamHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := examIDParam(r)
		if err != nil {
			http.Error(w, "invalid exam id", http.StatusBadRequest)
			return
		}

		e, err := svc.GetByID(r.Context(), id)
		if err != nil {
			http.Error(w, "exam not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toExamResponse(e))
	}
}

// listExamsHandler godoc
// @Summary Listar exámenes
// @Description Lista exámenes para las tablas. Filtros: clinic_id, status, paid, rango de fechas y texto libre en animal/tutor/veterinario.
// @Tags exams
// @Produce json
// @Param clinic_id query int false "Filtrar por clínica"
// @Param status query string false "Pending o Completed"
// @Param paid query bool false "Filtrar por pagado"
// @Param from query string false "Fecha mínima (YYYY-MM-DD)"
// @Param to query string false "Fecha máxima (YYYY-MM-DD)"
// @Param q query string false "Texto libre"
// @Param limit query int false "Máximo a devolver (1-200). Por defecto 50"
// @Success 200 {array} examResponse
// @Failure 400 {string} string "filtros inválidos"
// @Router /exams [get]
func listExamsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]examResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toExamResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// deleteExamHandler godoc
// @Summary Borrar un examen
// @Description Pass-through al Record Store; no hay soft-delete en el core.
// @Tags exams
// @Param examID path int true "ID del examen"
// @Success 204 {string} string ""
// @Failure 404 {string} string "exam not found"
// @Router /exams/{examID} [delete]
func deleteExamHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := examIDParam(r)
		if err != nil {
			http.Error(w, "invalid exam id", http.StatusBadRequest)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// setPaymentRequest es el toggle de pago.
type setPaymentRequest struct {
	Paid          bool   `json:"paid"`
	PaymentTypeID *int64 `json:"payment_type_id"`
	PaymentNote   string `json:"payment_note"`
}

// setPaymentHandler godoc
// @Summary Togglear pago de un examen
// @Description Actualización parcial optimista: aplica paid/payment_type_id/payment_note y devuelve los valores autoritativos del server para resincronizar el formulario. Ante failure la UI debe restaurar el snapshot previo.
// @Tags exams
// @Accept json
// @Produce json
// @Param examID path int true "ID del examen"
// @Param payload body setPaymentRequest true "paid=true requiere payment_type_id"
// @Success 200 {object} examResponse
// @Failure 400 {string} string "paid=true sin payment_type_id"
// @Failure 404 {string} string "exam not found"
// @Router /exams/{examID}/payment [patch]
func setPaymentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := examIDParam(r)
		if err != nil {
			http.Error(w, "invalid exam id", http.StatusBadRequest)
			return
		}

		var req setPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		exam, err := svc.SetPaid(r.Context(), &id, req.Paid, req.PaymentTypeID, req.PaymentNote)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toExamResponse(*exam))
	}
}

// setStatusRequest es el toggle Pending/Completed.
type setStatusRequest struct {
	Status Status `json:"status" enums:"Pending,Completed"`
}

// setStatusHandler godoc
// @Summary Togglear estado de un examen
// @Tags exams
// @Accept json
// @Produce json
// @Param examID path int true "ID del examen"
// @Param payload body setStatusRequest true "Nuevo status"
// @Success 200 {object} examResponse
// @Failure 400 {string} string "status inválido"
// @Failure 404 {string} string "exam not found"
// @Router /exams/{examID}/status [patch]
func setStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := examIDParam(r)
		if err != nil {
			http.Error(w, "invalid exam id", http.StatusBadRequest)
			return
		}

		var req setStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		exam, err := svc.SetStatus(r.Context(), &id, req.Status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toExamResponse(*exam))
	}
}

// emailLogHandler godoc
// @Summary Historial de correos de un examen
// @Description Devuelve el log append-only de notificaciones. Un examen sin correos devuelve lista vacía, no 404.
// @Tags emails
// @Produce json
// @Param examID path int true "ID del examen"
// @Success 200 {array} emailLogEntryResponse
// @Router /exams/{examID}/emails [get]
func emailLogHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := examIDParam(r)
		if err != nil {
			http.Error(w, "invalid exam id", http.StatusBadRequest)
			return
		}

		entries, err := svc.EmailLog(r.Context(), id)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toEmailLogResponses(entries))
	}
}

// resendRequest permite personalizar el texto del reenvío.
type resendRequest struct {
	Message string `json:"message"`
}

// resendHandler godoc
// @Summary Reenviar notificación
// @Description Reenvío manual: agrega una entrada nueva al log (nunca muta la referida) y saltea la ventana de deduplicación. Si el gateway falla devuelve la lista previa con success=false.
// @Tags emails
// @Accept json
// @Produce json
// @Param examID path int true "ID del examen"
// @Param entryID path int true "ID de la entrada fallida que se reintenta"
// @Param payload body resendRequest false "Texto opcional del correo"
// @Success 200 {object} resendResponse
// @Failure 400 {string} string "examen no persistido"
// @Failure 404 {string} string "entrada de log inexistente"
// @Failure 502 {object} resendResponse "gateway caído; email_logs trae la vista previa"
// @Router /exams/{examID}/emails/{entryID}/resend [post]
func resendHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := examIDParam(r)
		if err != nil {
			http.Error(w, "invalid exam id", http.StatusBadRequest)
			return
		}
		entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid entry id", http.StatusBadRequest)
			return
		}

		var req resendRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		logs, err := svc.Resend(r.Context(), id, entryID, req.Message)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrNotFound):
				http.Error(w, "email log entry not found", http.StatusNotFound)
			default:
				// Falla del gateway: la vista previa viaja igual.
				writeJSON(w, http.StatusBadGateway, resendResponse{
					Success:   false,
					EmailLogs: toEmailLogResponses(logs),
					Message:   err.Error(),
				})
			}
			return
		}

		writeJSON(w, http.StatusOK, resendResponse{
			Success:   true,
			EmailLogs: toEmailLogResponses(logs),
		})
	}
}

// -------------------------
// Parsing / helpers
// -------------------------

func parseSubmitRequest(r *http.Request) (SubmitInput, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		return parseMultipartSubmit(r)
	}
	return parseJSONSubmit(r)
}

type submitJSONRequest struct {
	AnimalName    string  `json:"animal_name"`
	Tutor         string  `json:"tutor"`
	Veterinarian  string  `json:"veterinarian"`
	Date          string  `json:"date"` // YYYY-MM-DD
	ExamTypeID    int64   `json:"exam_type_id"`
	ClinicID      int64   `json:"clinic_id"`
	Value         float64 `json:"value"`
	PaymentTypeID *int64  `json:"payment_type_id"`
	Paid          bool    `json:"paid"`
	PaymentNote   string  `json:"payment_note"`
	Status        Status  `json:"status"`
	Message       string  `json:"message"`
}

func parseJSONSubmit(r *http.Request) (SubmitInput, error) {
	var req submitJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return SubmitInput{}, errors.New("invalid json")
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return SubmitInput{}, err
	}

	return SubmitInput{
		AnimalName:    req.AnimalName,
		Tutor:         req.Tutor,
		Veterinarian:  req.Veterinarian,
		Date:          date,
		ExamTypeID:    req.ExamTypeID,
		ClinicID:      req.ClinicID,
		Value:         req.Value,
		PaymentTypeID: req.PaymentTypeID,
		Paid:          req.Paid,
		PaymentNote:   req.PaymentNote,
		Status:        req.Status,
		Message:       req.Message,
	}, nil
}

func parseMultipartSubmit(r *http.Request) (SubmitInput, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return SubmitInput{}, errors.New("invalid multipart form")
	}

	date, err := parseDate(r.FormValue("date"))
	if err != nil {
		return SubmitInput{}, err
	}

	in := SubmitInput{
		AnimalName:   r.FormValue("animal_name"),
		Tutor:        r.FormValue("tutor"),
		Veterinarian: r.FormValue("veterinarian"),
		Date:         date,
		PaymentNote:  r.FormValue("payment_note"),
		Status:       Status(r.FormValue("status")),
		Message:      r.FormValue("message"),
	}

	in.ExamTypeID, _ = strconv.ParseInt(r.FormValue("exam_type_id"), 10, 64)
	in.ClinicID, _ = strconv.ParseInt(r.FormValue("clinic_id"), 10, 64)
	in.Value, _ = strconv.ParseFloat(r.FormValue("value"), 64)
	in.Paid, _ = strconv.ParseBool(r.FormValue("paid"))

	if v := strings.TrimSpace(r.FormValue("payment_type_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return SubmitInput{}, errors.New("payment_type_id must be numeric")
		}
		in.PaymentTypeID = &id
	}

	// Adjuntos capturados por valor: el pipeline corre después de que
	// este request ya cerró su body.
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if err != nil {
				return SubmitInput{}, errors.New("cannot read uploaded file")
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return SubmitInput{}, errors.New("cannot read uploaded file")
			}
			in.Files = append(in.Files, files.Upload{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}

	return in, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil // lo rechaza el servicio con mensaje propio
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("date must be YYYY-MM-DD")
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var f ListFilter
	q := r.URL.Query()

	if v := q.Get("clinic_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errors.New("clinic_id must be numeric")
		}
		f.ClinicID = &id
	}
	if v := q.Get("status"); v != "" {
		st := Status(v)
		if !ValidStatus(st) {
			return f, errors.New("status must be Pending or Completed")
		}
		f.Status = &st
	}
	if v := q.Get("paid"); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("paid must be a boolean")
		}
		f.Paid = &paid
	}
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return f, errors.New("from must be YYYY-MM-DD")
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return f, errors.New("to must be YYYY-MM-DD")
		}
		f.To = &t
	}
	f.Query = q.Get("q")

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return f, errors.New("limit must be between 1 and 200")
		}
		f.Limit = n
	}

	return f, nil
}

func examIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "examID"), 10, 64)
	if err != nil {
		return 0, err
	}
	// Los ids persistidos arrancan en 1; cero o negativo nunca es un
	// examen válido en la URL.
	if id <= 0 {
		return 0, errors.New("exam id must be positive")
	}
	return id, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	var fe FieldErrors
	switch {
	case errors.Is(err, ErrSubmissionInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &fe):
		http.Error(w, fe.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "exam not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toExamResponse(e Exam) examResponse {
	return examResponse{
		ID:            e.ID,
		AnimalName:    e.AnimalName,
		Tutor:         e.Tutor,
		Veterinarian:  e.Veterinarian,
		Date:          e.Date.Format("2006-01-02"),
		ExamTypeID:    e.ExamTypeID,
		ClinicID:      e.ClinicID,
		Value:         e.Value,
		PaymentTypeID: e.PaymentTypeID,
		Paid:          e.Paid,
		PaymentNote:   e.PaymentNote,
		Status:        e.Status,
		PDFPath:       e.PDFPath,
	}
}

func toEmailLogResponses(entries []emaillog.Entry) []emailLogEntryResponse {
	out := make([]emailLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, emailLogEntryResponse{
			ID:           e.ID,
			ExamID:       e.ExamID,
			Status:       e.Status,
			SentTo:       e.SentTo,
			ErrorMessage: e.ErrorMessage,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

// logSink manda el progreso del pipeline al logger del servicio. Va
// envuelto en un DetachableSink que se corta al cerrar la respuesta.
type logSink struct {
	log logger.Logger
}

func (s logSink) SendingTick(seconds int) {
	if seconds%10 == 0 {
		s.log.Debug("notification pipeline running", map[string]any{"seconds": seconds})
	}
}

func (s logSink) EmailLogs(entries []emaillog.Entry) {
	s.log.Info("email log refreshed", map[string]any{"entries": len(entries)})
}

func (s logSink) Warn(msg string) {
	s.log.Warn("notification pipeline warning", map[string]any{"msg": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
