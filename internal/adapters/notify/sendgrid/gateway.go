package sendgridnotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"vet-exam-orders/internal/domain/emaillog"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	ErrNotConfigured = errors.New("sendgrid gateway not configured")
)

// Config del gateway de notificaciones sobre SendGrid.
type Config struct {
	APIKey    string
	FromName  string
	FromEmail string

	// To es el destinatario de las notificaciones de exámenes
	// (la casilla de la clínica).
	To string

	SubjectPrefix string
}

// Gateway implementa emaillog.Gateway: envía el correo del examen por
// SendGrid y deja constancia en el log append-only. Un envío fallido
// también queda registrado (status Failed con el mensaje de error);
// reenviar crea siempre una entrada nueva.
type Gateway struct {
	cfg  Config
	repo emaillog.Repository
}

func NewGateway(cfg Config, repo emaillog.Repository) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.To) == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		cfg.FromEmail = "no-reply@vet-exam-orders.local"
	}
	if strings.TrimSpace(cfg.SubjectPrefix) == "" {
		cfg.SubjectPrefix = "[vet-exam-orders] "
	}
	return &Gateway{cfg: cfg, repo: repo}, nil
}

func (g *Gateway) Send(ctx context.Context, examID int64, text string) (emaillog.Entry, error) {
	subject := fmt.Sprintf("%sResultado de examen #%d", g.cfg.SubjectPrefix, examID)

	from := sgmail.NewEmail(g.cfg.FromName, g.cfg.FromEmail)
	to := sgmail.NewEmail("", g.cfg.To)
	msg := sgmail.NewSingleEmail(from, subject, to, text, "")

	req := sendgrid.GetRequest(g.cfg.APIKey, "/v3/mail/send", "https://api.sendgrid.com")
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(msg)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil || res.StatusCode >= http.StatusBadRequest {
		if err == nil {
			err = fmt.Errorf("sendgrid status %d", res.StatusCode)
		}

		// Best-effort: la falla también queda en el log.
		errMsg := err.Error()
		_, _ = g.repo.Append(ctx, emaillog.Entry{
			ExamID:       examID,
			Status:       emaillog.StatusFailed,
			SentTo:       g.cfg.To,
			ErrorMessage: &errMsg,
		})
		return emaillog.Entry{}, fmt.Errorf("send notification: %w", errors.Join(emaillog.ErrGateway, err))
	}

	return g.repo.Append(ctx, emaillog.Entry{
		ExamID: examID,
		Status: emaillog.StatusSent,
		SentTo: g.cfg.To,
	})
}

func (g *Gateway) Log(ctx context.Context, examID int64) ([]emaillog.Entry, error) {
	return g.repo.ListByExam(ctx, examID)
}
