package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrTransicionInvalida marks a status change the transition table forbids.
var ErrTransicionInvalida = errors.New("transición de estado no permitida")

// Estado of an order (persisted as a string).
type Estado string

const (
	EstadoPendiente  Estado = "pendiente"
	EstadoEnProgreso Estado = "en_progreso"
	EstadoCompletada Estado = "completada"
	EstadoCancelada  Estado = "cancelada"
)

func (e Estado) EsValido() bool {
	switch e {
	case EstadoPendiente, EstadoEnProgreso, EstadoCompletada, EstadoCancelada:
		return true
	}
	return false
}

// transicionesPermitidas defines the allowed status graph. An order can be
// completed or cancelled straight from pendiente; completada and cancelada
// are terminal.
var transicionesPermitidas = map[Estado][]Estado{
	EstadoPendiente:  {EstadoEnProgreso, EstadoCompletada, EstadoCancelada},
	EstadoEnProgreso: {EstadoPendiente, EstadoCompletada, EstadoCancelada},
	EstadoCompletada: {},
	EstadoCancelada:  {},
}

// PuedeTransicionar reports whether from -> to is an allowed change.
func PuedeTransicionar(from, to Estado) bool {
	if from == to {
		return true
	}
	allowed, ok := transicionesPermitidas[from]
	if !ok {
		return false
	}
	for _, e := range allowed {
		if e == to {
			return true
		}
	}
	return false
}

// AplicarTransicion moves an order to a new status and maintains the
// completion timestamp. The caller persists the order afterwards.
func AplicarTransicion(o *Orden, to Estado, ahora time.Time) error {
	if o == nil {
		return fmt.Errorf("orden is nil")
	}
	if !to.EsValido() {
		return fmt.Errorf("estado desconocido: %q", to)
	}
	if !PuedeTransicionar(o.Estado, to) {
		return fmt.Errorf("%w: %s -> %s", ErrTransicionInvalida, o.Estado, to)
	}

	o.Estado = to
	if to == EstadoCompletada && o.FechaCompletada == nil {
		t := ahora
		o.FechaCompletada = &t
	}
	return nil
}
