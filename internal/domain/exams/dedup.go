package exams

import (
	"time"

	"vet-exam-orders/internal/domain/emaillog"
)

// dedupWindow es la ventana dentro de la cual se suprime un segundo
// envío automático. Constante de diseño, no configurable por llamada.
const dedupWindow = 300 * time.Second

// ShouldSend decide si corresponde enviar el correo automático dado el
// historial del examen. Función pura sobre log + reloj.
//
// Reglas:
//   - log vacío => enviar
//   - solo cuentan entradas con status Sent; Pending/Failed se ignoran
//   - si existe una entrada Sent con antigüedad menor a la ventana,
//     se suprime (no es un error, es política)
//
// No se compensa skew de reloj: los created_at del log se asumen
// comparables con now.
func ShouldSend(log []emaillog.Entry, now time.Time) bool {
	for _, e := range log {
		if e.Status != emaillog.StatusSent {
			continue
		}
		if now.Sub(e.CreatedAt) < dedupWindow {
			return false
		}
	}
	return true
}
