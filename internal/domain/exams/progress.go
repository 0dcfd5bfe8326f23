package exams

import (
	"sync/atomic"
	"time"

	"vet-exam-orders/internal/domain/emaillog"
)

// ProgressSink recibe el progreso del pipeline de notificaciones.
// El caller (UI/handler) lo provee; el pipeline nunca asume que sigue
// vivo: un sink desacoplado descarta las escrituras en silencio.
type ProgressSink interface {
	// SendingTick se llama una vez por segundo mientras el pipeline
	// está activo, con los segundos transcurridos.
	SendingTick(seconds int)

	// EmailLogs entrega la vista refrescada del log de correos.
	EmailLogs(entries []emaillog.Entry)

	// Warn reporta fallas best-effort (subida o envío); no son fatales
	// para el examen ya persistido.
	Warn(msg string)
}

// NopSink descarta todo el progreso.
type NopSink struct{}

func (NopSink) SendingTick(int)            {}
func (NopSink) EmailLogs([]emaillog.Entry) {}
func (NopSink) Warn(string)                {}

// DetachableSink envuelve un sink real y permite desengancharlo cuando
// la superficie que lo mostraba ya no existe. Después de Detach, cada
// escritura es un no-op (descartar, no error).
type DetachableSink struct {
	inner    ProgressSink
	detached atomic.Bool
}

func NewDetachableSink(inner ProgressSink) *DetachableSink {
	return &DetachableSink{inner: inner}
}

func (d *DetachableSink) Detach() {
	d.detached.Store(true)
}

func (d *DetachableSink) SendingTick(seconds int) {
	if d.detached.Load() {
		return
	}
	d.inner.SendingTick(seconds)
}

func (d *DetachableSink) EmailLogs(entries []emaillog.Entry) {
	if d.detached.Load() {
		return
	}
	d.inner.EmailLogs(entries)
}

func (d *DetachableSink) Warn(msg string) {
	if d.detached.Load() {
		return
	}
	d.inner.Warn(msg)
}

// sendingTimer es el contador de progreso "enviando correo...": un
// tick por intervalo hacia el sink. Es solo display, no un deadline:
// si el gateway se cuelga, el contador sigue subiendo.
type sendingTimer struct {
	interval time.Duration
	done     chan struct{}
}

func startSendingTimer(interval time.Duration, sink ProgressSink) *sendingTimer {
	if interval <= 0 {
		interval = time.Second
	}
	t := &sendingTimer{
		interval: interval,
		done:     make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		seconds := 0
		for {
			select {
			case <-ticker.C:
				seconds++
				sink.SendingTick(seconds)
			case <-t.done:
				return
			}
		}
	}()

	return t
}

func (t *sendingTimer) stop() {
	close(t.done)
}
