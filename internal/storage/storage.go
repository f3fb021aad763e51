// Package storage defines the workshop data model and the contract both
// persistence backends implement. Callers hold a Store selected once at
// startup and never learn which backend is behind it.
package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNoExiste is returned by lookups and updates on a missing key. It is an
// expected condition; callers branch on it instead of treating it as a fault.
var ErrNoExiste = errors.New("registro no encontrado")

// Authentication results, with the user-facing messages the UI shows as-is.
var (
	ErrUsuarioNoEncontrado   = errors.New("Usuario no encontrado")
	ErrUsuarioDesactivado    = errors.New("Usuario desactivado")
	ErrCredencialesInvalidas = errors.New("Credenciales incorrectas")
	ErrEmailRegistrado       = errors.New("El email ya está registrado")
)

// CrearVehiculoInput carries the caller-supplied vehicle fields. The plate is
// normalized and the creation timestamp stamped by the store.
type CrearVehiculoInput struct {
	Patente string `json:"patente"`
	Marca   string `json:"marca"`
	Modelo  string `json:"modelo"`
	Anio    string `json:"anio"`
	Motor   string `json:"motor"`
	Color   string `json:"color"`
}

// CrearOrdenInput carries the intake fields for a new order. Estado defaults
// to pendiente and AsignadoA to CreadoPor when empty.
type CrearOrdenInput struct {
	PatenteVehiculo    string   `json:"patente_vehiculo"`
	DescripcionIngreso string   `json:"descripcion_ingreso"`
	CreadoPor          string   `json:"creado_por"`
	Estado             Estado   `json:"estado"`
	AsignadoA          string   `json:"asignado_a"`
	Fotos              []string `json:"fotos"`
	ClienteNombre      string   `json:"cliente_nombre"`
	ClienteTelefono    string   `json:"cliente_telefono"`
	PrecioTotal        int64    `json:"precio_total"`
	MetodoPago         string   `json:"metodo_pago"`
	DetallesVehiculo   string   `json:"detalles_vehiculo"`
}

// OrdenPatch is a partial order update. Nil fields are left untouched; id and
// fecha_ingreso cannot be patched.
type OrdenPatch struct {
	Estado             *Estado    `json:"estado,omitempty"`
	AsignadoA          *string    `json:"asignado_a,omitempty"`
	DescripcionIngreso *string    `json:"descripcion_ingreso,omitempty"`
	Fotos              *[]string  `json:"fotos,omitempty"`
	ClienteNombre      *string    `json:"cliente_nombre,omitempty"`
	ClienteTelefono    *string    `json:"cliente_telefono,omitempty"`
	PrecioTotal        *int64     `json:"precio_total,omitempty"`
	DetallesVehiculo   *string    `json:"detalles_vehiculo,omitempty"`
	DetalleTrabajos    *string    `json:"detalle_trabajos,omitempty"`
	FechaLista         *time.Time `json:"fecha_lista,omitempty"`
	FechaCompletada    *time.Time `json:"fecha_completada,omitempty"`
	CC                 *string    `json:"cc,omitempty"`
	MetodoPago         *string    `json:"metodo_pago,omitempty"`
}

// PerfilPatch is a partial profile update.
type PerfilPatch struct {
	NombreCompleto *string `json:"nombre_completo,omitempty"`
	Rol            *Rol    `json:"rol,omitempty"`
	Activo         *bool   `json:"activo,omitempty"`
	Email          *string `json:"email,omitempty"`
}

// Store is the uniform surface both backends expose. Every call is a complete
// read-modify-write; implementations hold no cache between calls.
type Store interface {
	BuscarVehiculoPorPatente(ctx context.Context, patente string) (*Vehiculo, error)
	CrearVehiculo(ctx context.Context, in CrearVehiculoInput) (*Vehiculo, error)
	ObtenerVehiculos(ctx context.Context) ([]Vehiculo, error)

	ObtenerOrdenes(ctx context.Context) ([]Orden, error)
	ObtenerOrdenesHoy(ctx context.Context) ([]Orden, error)
	ObtenerOrdenPorId(ctx context.Context, id int64) (*Orden, error)
	CrearOrden(ctx context.Context, in CrearOrdenInput) (*Orden, error)
	ActualizarOrden(ctx context.Context, id int64, patch OrdenPatch) (*Orden, error)
	EliminarOrden(ctx context.Context, id int64) (bool, error)
	OrdenesPorUsuario(ctx context.Context, usuarioID string) (creadas, asignadas []Orden, err error)

	ObtenerPerfiles(ctx context.Context) ([]Perfil, error)
	ObtenerPerfilPorId(ctx context.Context, id string) (*Perfil, error)
	ActualizarPerfil(ctx context.Context, id string, patch PerfilPatch) (*Perfil, error)
	CrearUsuario(ctx context.Context, email, secreto, nombreCompleto string, rol Rol) (*Perfil, error)

	// IniciarSesion verifies credentials case-insensitively on the email and
	// persists the current-session record. SesionActual returns (nil, nil)
	// when no session is stored.
	IniciarSesion(ctx context.Context, email, secreto string) (*Sesion, error)
	CerrarSesion(ctx context.Context) error
	SesionActual(ctx context.Context) (*Sesion, error)
}

// AplicarPatch merges a patch over an existing order and re-stamps
// fecha_actualizacion. Both backends share this so a status change obeys the
// same transition rules everywhere.
func AplicarPatch(o *Orden, patch OrdenPatch, ahora time.Time) error {
	if patch.Estado != nil && *patch.Estado != o.Estado {
		if err := AplicarTransicion(o, *patch.Estado, ahora); err != nil {
			return err
		}
	}
	if patch.AsignadoA != nil {
		o.AsignadoA = *patch.AsignadoA
	}
	if patch.DescripcionIngreso != nil {
		o.DescripcionIngreso = *patch.DescripcionIngreso
	}
	if patch.Fotos != nil {
		o.Fotos = *patch.Fotos
	}
	if patch.ClienteNombre != nil {
		o.ClienteNombre = *patch.ClienteNombre
	}
	if patch.ClienteTelefono != nil {
		o.ClienteTelefono = *patch.ClienteTelefono
	}
	if patch.PrecioTotal != nil {
		o.PrecioTotal = *patch.PrecioTotal
	}
	if patch.DetallesVehiculo != nil {
		o.DetallesVehiculo = *patch.DetallesVehiculo
	}
	if patch.DetalleTrabajos != nil {
		o.DetalleTrabajos = *patch.DetalleTrabajos
	}
	if patch.FechaLista != nil {
		o.FechaLista = patch.FechaLista
	}
	if patch.FechaCompletada != nil {
		o.FechaCompletada = patch.FechaCompletada
	}
	if patch.CC != nil {
		o.CC = *patch.CC
	}
	if patch.MetodoPago != nil {
		o.MetodoPago = *patch.MetodoPago
	}
	o.FechaActualizacion = ahora
	return nil
}

// NuevaOrden builds an order from intake input, applying the creation
// defaults. The id is assigned by the backend.
func NuevaOrden(in CrearOrdenInput, ahora time.Time) Orden {
	estado := in.Estado
	if estado == "" {
		estado = EstadoPendiente
	}
	asignado := strings.TrimSpace(in.AsignadoA)
	if asignado == "" {
		asignado = in.CreadoPor
	}
	fotos := in.Fotos
	if fotos == nil {
		fotos = []string{}
	}
	return Orden{
		PatenteVehiculo:    NormalizarPatente(in.PatenteVehiculo),
		DescripcionIngreso: in.DescripcionIngreso,
		Estado:             estado,
		CreadoPor:          in.CreadoPor,
		AsignadoA:          asignado,
		FechaIngreso:       ahora,
		FechaActualizacion: ahora,
		Fotos:              fotos,
		ClienteNombre:      in.ClienteNombre,
		ClienteTelefono:    in.ClienteTelefono,
		PrecioTotal:        in.PrecioTotal,
		MetodoPago:         in.MetodoPago,
		DetallesVehiculo:   in.DetallesVehiculo,
	}
}

// VehiculoStub is the placeholder record created when an order arrives for a
// plate the store has never seen.
func VehiculoStub(patente string, ahora time.Time) Vehiculo {
	return Vehiculo{
		Patente:       NormalizarPatente(patente),
		Marca:         "Por definir",
		Modelo:        "Por definir",
		Anio:          strconv.Itoa(ahora.Year()),
		FechaCreacion: ahora,
	}
}
