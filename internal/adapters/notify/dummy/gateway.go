package dummynotify

import (
	"context"

	"vet-exam-orders/internal/domain/emaillog"
	"vet-exam-orders/internal/platform/logger"
)

// Gateway es el gateway de notificaciones para dev: no envía nada,
// solo loguea y deja la entrada Sent en el log para que el resto del
// flujo (dedup, reenvío, vista) se comporte como en producción.
type Gateway struct {
	repo emaillog.Repository
	log  logger.Logger
}

func NewGateway(repo emaillog.Repository, log logger.Logger) *Gateway {
	return &Gateway{repo: repo, log: log}
}

func (g *Gateway) Send(ctx context.Context, examID int64, text string) (emaillog.Entry, error) {
	g.log.Info("dummy notification", map[string]any{"exam_id": examID, "text": text})
	return g.repo.Append(ctx, emaillog.Entry{
		ExamID: examID,
		Status: emaillog.StatusSent,
		SentTo: "dev@localhost",
	})
}

func (g *Gateway) Log(ctx context.Context, examID int64) ([]emaillog.Entry, error) {
	return g.repo.ListByExam(ctx, examID)
}
