package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal cuenta los envíos del formulario de examen.
	// Labels: result = created | updated | rejected | error
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_submissions_total",
		Help: "Total number of exam form submissions",
	}, []string{"result"})

	// EmailsSentTotal cuenta correos enviados por el pipeline automático.
	EmailsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exam_emails_sent_total",
		Help: "Total number of exam notification emails sent",
	})

	// EmailsSuppressedTotal cuenta envíos suprimidos por la ventana de
	// deduplicación (no son errores).
	EmailsSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exam_emails_suppressed_total",
		Help: "Total number of notification sends suppressed by the dedup window",
	})

	// EmailSendFailuresTotal cuenta fallas del gateway de notificaciones
	// (incluye reenvíos manuales fallidos).
	EmailSendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exam_email_send_failures_total",
		Help: "Total number of failed notification sends",
	})

	// UploadFailuresTotal cuenta fallas al subir adjuntos de un examen.
	UploadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exam_upload_failures_total",
		Help: "Total number of failed exam file uploads",
	})

	// ResendsTotal cuenta reenvíos manuales disparados por usuarios.
	ResendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exam_email_resends_total",
		Help: "Total number of manual notification resends",
	})
)
