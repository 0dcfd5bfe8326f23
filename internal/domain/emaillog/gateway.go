package emaillog

import (
	"context"
	"errors"
)

var (
	ErrGateway = errors.New("notification gateway error")
)

// Gateway es el puerto hacia el servicio de notificaciones.
// Send envía el correo del examen y agrega la entrada resultante al log.
// Log devuelve el historial de un examen; si no hay historial todavía,
// devuelve lista vacía (no es un error).
type Gateway interface {
	Send(ctx context.Context, examID int64, text string) (Entry, error)
	Log(ctx context.Context, examID int64) ([]Entry, error)
}

// Repository persiste las entradas del log. Lo usan los adapters del
// Gateway; el core no escribe entradas directamente.
type Repository interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	ListByExam(ctx context.Context, examID int64) ([]Entry, error)
}
