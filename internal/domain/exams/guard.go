package exams

// submissionGuard es la exclusión de envíos: a lo sumo un Submit en
// vuelo por instancia del servicio. Un canal de un slot en vez de un
// booleano suelto, para que release sea seguro en cualquier path de
// salida (incluido panic vía defer).
type submissionGuard struct {
	slot chan struct{}
}

func newSubmissionGuard() *submissionGuard {
	return &submissionGuard{slot: make(chan struct{}, 1)}
}

// tryAcquire toma el slot sin bloquear. false => ya hay un envío en vuelo.
func (g *submissionGuard) tryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (g *submissionGuard) release() {
	select {
	case <-g.slot:
	default:
	}
}
