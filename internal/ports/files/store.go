package files

import "context"

// Upload es un archivo adjunto capturado por valor: el pipeline de
// notificaciones corre en background y no puede compartir buffers con
// el request que lo originó.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store es el puerto hacia el almacenamiento de archivos/PDF.
// Upload sube los adjuntos de un examen; como efecto, el registro del
// examen puede quedar con pdf_path seteado (el artefacto PDF se produce
// como parte del procesamiento de la subida).
type Store interface {
	Upload(ctx context.Context, examID int64, uploads []Upload) error
}
