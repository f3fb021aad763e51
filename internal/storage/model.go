package storage

import "time"

// Vehiculo is keyed by its normalized plate. The JSON tags are the wire
// shape persisted by the local backend; the gorm tags drive the remote one.
type Vehiculo struct {
	Patente       string    `json:"patente" gorm:"primaryKey;size:6"`
	Marca         string    `json:"marca" gorm:"size:64"`
	Modelo        string    `json:"modelo" gorm:"size:64"`
	Anio          string    `json:"anio" gorm:"size:8"`
	Motor         string    `json:"motor,omitempty" gorm:"size:64"`
	Color         string    `json:"color,omitempty" gorm:"size:32"`
	FechaCreacion time.Time `json:"fecha_creacion"`
}

// Orden is a work ticket for one vehicle's service visit.
type Orden struct {
	ID                 int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	PatenteVehiculo    string     `json:"patente_vehiculo" gorm:"index;size:6;not null"`
	DescripcionIngreso string     `json:"descripcion_ingreso" gorm:"type:text"`
	Estado             Estado     `json:"estado" gorm:"type:varchar(16);index;not null"`
	CreadoPor          string     `json:"creado_por" gorm:"index;size:64;not null"`
	AsignadoA          string     `json:"asignado_a" gorm:"index;size:64"`
	FechaIngreso       time.Time  `json:"fecha_ingreso"`
	FechaActualizacion time.Time  `json:"fecha_actualizacion"`
	Fotos              []string   `json:"fotos,omitempty" gorm:"serializer:json"`
	ClienteNombre      string     `json:"cliente_nombre,omitempty" gorm:"size:128"`
	ClienteTelefono    string     `json:"cliente_telefono,omitempty" gorm:"size:32"`
	PrecioTotal        int64      `json:"precio_total,omitempty"`
	DetallesVehiculo   string     `json:"detalles_vehiculo,omitempty" gorm:"type:text"`
	DetalleTrabajos    string     `json:"detalle_trabajos,omitempty" gorm:"type:text"`
	FechaLista         *time.Time `json:"fecha_lista,omitempty"`
	FechaCompletada    *time.Time `json:"fecha_completada,omitempty"`
	CC                 string     `json:"cc,omitempty" gorm:"size:32"`
	MetodoPago         string     `json:"metodo_pago,omitempty" gorm:"size:32"`
}

func (Vehiculo) TableName() string { return "vehiculos" }

// Rol of an application user.
type Rol string

const (
	RolMecanico Rol = "mecanico"
	RolAdmin    Rol = "admin"
)

func (r Rol) EsValido() bool {
	return r == RolMecanico || r == RolAdmin
}

func (Orden) TableName() string { return "ordenes" }

// Perfil is an application user, distinct from raw login credentials.
type Perfil struct {
	ID             string `json:"id" gorm:"primaryKey;size:64"`
	NombreCompleto string `json:"nombre_completo" gorm:"size:128;not null"`
	Rol            Rol    `json:"rol" gorm:"type:varchar(16);not null"`
	Activo         bool   `json:"activo" gorm:"not null;default:true"`
	Email          string `json:"email,omitempty" gorm:"size:128;index"`
}

func (Perfil) TableName() string { return "perfiles" }

// Cliente is present in the data model but has no dedicated flows yet.
type Cliente struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Nombre        string    `json:"nombre" gorm:"size:128"`
	Telefono      string    `json:"telefono" gorm:"size:32"`
	Email         string    `json:"email" gorm:"size:128"`
	FechaCreacion time.Time `json:"fecha_creacion"`
}

func (Cliente) TableName() string { return "clientes" }

// Usuario is the login identity half of a session.
type Usuario struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Sesion is the single current-session record.
type Sesion struct {
	Usuario Usuario `json:"user"`
	Perfil  Perfil  `json:"perfil"`
}
