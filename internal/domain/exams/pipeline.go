package exams

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vet-exam-orders/internal/domain/emaillog"
	"vet-exam-orders/internal/platform/logger"
	"vet-exam-orders/internal/platform/metrics"
	"vet-exam-orders/internal/ports/files"
)

// DefaultMessage es el texto del correo cuando el caller no manda uno.
const DefaultMessage = "Su examen veterinario está listo. Adjuntamos el resultado en PDF."

// Pipeline es la secuencia de notificación en background:
// subir adjuntos -> releer el examen por pdf_path -> chequear la
// ventana de deduplicación -> enviar condicionalmente -> refrescar la
// vista del log. Cada paso puede fallar sin deshacer los anteriores:
// el examen ya persistido y los archivos ya subidos no se revierten.
//
// No hay retry automático; un reenvío es siempre una acción manual
// (Resend). Tampoco hay exclusión entre corridas del mismo examen:
// la política de deduplicación es el único resguardo contra dobles
// envíos.
type Pipeline struct {
	repo    Repository
	files   files.Store
	gateway emaillog.Gateway
	log     logger.Logger

	now  func() time.Time
	tick time.Duration // intervalo del contador de progreso
}

func NewPipeline(repo Repository, fs files.Store, gw emaillog.Gateway, log logger.Logger) *Pipeline {
	return &Pipeline{
		repo:    repo,
		files:   fs,
		gateway: gw,
		log:     log,
		now:     time.Now,
		tick:    time.Second,
	}
}

// Run ejecuta la secuencia completa para un examen ya persistido.
// Fire-and-forget desde el punto de vista del orquestador; acá adentro
// es secuencial. Los inputs llegan capturados por valor.
func (p *Pipeline) Run(ctx context.Context, examID int64, uploads []files.Upload, message string, sink ProgressSink) {
	if sink == nil {
		sink = NopSink{}
	}
	if message == "" {
		message = DefaultMessage
	}

	timer := startSendingTimer(p.tick, sink)
	defer timer.stop()

	// 1) Subir adjuntos. Si falla, no se intenta ningún correo.
	if err := p.files.Upload(ctx, examID, uploads); err != nil {
		metrics.UploadFailuresTotal.Inc()
		p.log.Warn("file upload failed", map[string]any{"exam_id": examID, "err": err.Error()})
		sink.Warn(fmt.Sprintf("no se pudieron subir los archivos: %v", err))
		return
	}

	// 2) Releer el examen: el store de archivos deja pdf_path seteado
	// cuando el artefacto quedó generado.
	exam, err := p.repo.GetByID(ctx, examID)
	if err != nil {
		p.log.Warn("re-read after upload failed", map[string]any{"exam_id": examID, "err": err.Error()})
		sink.Warn("no se pudo verificar el PDF del examen")
		return
	}
	if exam.PDFPath == nil {
		// Sin artefacto no hay nada que mandar; no es un error.
		return
	}

	// 3) Ventana de deduplicación contra el historial del examen.
	entries, err := p.gateway.Log(ctx, examID)
	if err != nil {
		// Conservador: sin historial legible no se arriesga un duplicado.
		p.log.Warn("email log read failed", map[string]any{"exam_id": examID, "err": err.Error()})
		sink.Warn("no se pudo leer el historial de correos")
		return
	}
	if !ShouldSend(entries, p.now()) {
		metrics.EmailsSuppressedTotal.Inc()
		p.log.Info("automatic send suppressed by dedup window", map[string]any{"exam_id": examID})
		sink.EmailLogs(entries)
		return
	}

	// 4) Enviar. Un solo envío por corrida.
	sent, err := p.gateway.Send(ctx, examID, message)
	if err != nil {
		metrics.EmailSendFailuresTotal.Inc()
		p.log.Warn("notification send failed", map[string]any{"exam_id": examID, "err": err.Error()})
		sink.Warn(fmt.Sprintf("no se pudo enviar el correo: %v", err))
		return
	}
	metrics.EmailsSentTotal.Inc()
	p.log.Info("notification sent", map[string]any{"exam_id": examID, "entry_id": sent.ID})

	// 5) Refrescar la vista del log para el caller. Si la relectura
	// falla, al menos se entrega lo que ya sabemos.
	refreshed, err := p.gateway.Log(ctx, examID)
	if err != nil {
		refreshed = append(entries, sent)
	}
	sink.EmailLogs(refreshed)
}

// Resend reenvía manualmente la notificación de un examen. Siempre
// agrega una entrada nueva al log (nunca muta la entrada referida) y
// saltea la ventana de deduplicación: es una acción explícita del
// usuario. Devuelve la lista refrescada; si el gateway falla, devuelve
// la lista previa sin cambios junto con el error.
func (p *Pipeline) Resend(ctx context.Context, examID, entryID int64, message string) ([]emaillog.Entry, error) {
	if examID <= 0 {
		// Sin examen persistido no hay a quién reenviar.
		return nil, fmt.Errorf("exam not persisted yet: %w", ErrInvalidInput)
	}
	if message == "" {
		message = DefaultMessage
	}

	prev, err := p.gateway.Log(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("read email log: %w", err)
	}
	if entryID > 0 && !containsEntry(prev, entryID) {
		return prev, fmt.Errorf("email log entry %d: %w", entryID, ErrNotFound)
	}

	if _, err := p.gateway.Send(ctx, examID, message); err != nil {
		metrics.EmailSendFailuresTotal.Inc()
		p.log.Warn("manual resend failed", map[string]any{"exam_id": examID, "err": err.Error()})
		return prev, fmt.Errorf("resend: %w", errors.Join(emaillog.ErrGateway, err))
	}
	metrics.ResendsTotal.Inc()

	refreshed, err := p.gateway.Log(ctx, examID)
	if err != nil {
		// El envío salió; la vista vieja es lo mejor disponible.
		return prev, nil
	}
	return refreshed, nil
}

func containsEntry(entries []emaillog.Entry, id int64) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}
