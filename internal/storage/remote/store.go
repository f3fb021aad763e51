// Package remote implements the workshop store against a hosted MySQL
// database through GORM. It holds the same semantics as the local backend;
// the two stores are disjoint and no data migrates between them.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TallerLink/TallerLink/internal/common/logger"
	"github.com/TallerLink/TallerLink/internal/common/middleware"
	"github.com/TallerLink/TallerLink/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// credencial is the login table; emails are stored lowercased.
type credencial struct {
	Email string `gorm:"primaryKey;size:128"`
	Salt  string `gorm:"size:64;not null"`
	Hash  string `gorm:"size:128;not null"`
}

func (credencial) TableName() string { return "credenciales" }

// sesion is the single current-session row (fixed id 1).
type sesion struct {
	ID        int64  `gorm:"primaryKey"`
	UsuarioID string `gorm:"size:64;not null"`
	Email     string `gorm:"size:128;not null"`
	PerfilID  string `gorm:"size:64;not null"`
}

func (sesion) TableName() string { return "sesiones" }

const sesionRowID = 1

// Store implements storage.Store on MySQL. Every database call goes through
// a circuit breaker so a failing backend degrades to fast errors.
type Store struct {
	db  *gorm.DB
	cb  *middleware.CircuitBreaker
	log logger.Logger
}

// Abrir migrates the schema, seeds the default accounts, and returns the
// remote store.
func Abrir(db *gorm.DB, log logger.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := db.AutoMigrate(
		&storage.Vehiculo{},
		&storage.Orden{},
		&storage.Perfil{},
		&storage.Cliente{},
		&credencial{},
		&sesion{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	s := &Store{
		db:  db,
		cb:  middleware.NewCircuitBreaker("mysql", 5, 30*time.Second),
		log: log,
	}
	if err := s.sembrar(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// call funnels a database operation through the breaker. A missing row is an
// answer, not a backend failure, so it must not count toward opening the
// circuit.
func (s *Store) call(ctx context.Context, fn func() error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store db is nil")
	}
	var notFound bool
	err := s.cb.Call(ctx, func() error {
		if err := fn(); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				notFound = true
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if notFound {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Store) sembrar(ctx context.Context) error {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.Perfil{}).Count(&total).Error; err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	defaults := []struct {
		perfil  storage.Perfil
		secreto string
	}{
		{storage.Perfil{ID: "admin-001", NombreCompleto: "Administrador", Rol: storage.RolAdmin, Activo: true, Email: "admin@gmail.com"}, "admin123"},
		{storage.Perfil{ID: "mecanico-001", NombreCompleto: "Mecánico Principal", Rol: storage.RolMecanico, Activo: true, Email: "mecanico@gmail.com"}, "mecanico123"},
	}
	for _, d := range defaults {
		if err := s.db.WithContext(ctx).Create(&d.perfil).Error; err != nil {
			return err
		}
		cred, err := nuevaCredencial(d.perfil.Email, d.secreto)
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Create(&cred).Error; err != nil {
			return err
		}
	}
	if s.log != nil {
		s.log.Info("perfiles por defecto creados")
	}
	return nil
}

func nuevaCredencial(email, secreto string) (credencial, error) {
	salt, err := GenerateSaltHex()
	if err != nil {
		return credencial{}, err
	}
	hash, err := HashPassword(secreto, salt)
	if err != nil {
		return credencial{}, err
	}
	return credencial{Email: strings.ToLower(email), Salt: salt, Hash: hash}, nil
}

// ---- Vehículos ----

func (s *Store) BuscarVehiculoPorPatente(ctx context.Context, patente string) (*storage.Vehiculo, error) {
	normalizada := storage.NormalizarPatente(patente)
	var v storage.Vehiculo
	err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Where("patente = ?", normalizada).First(&v).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNoExiste
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) CrearVehiculo(ctx context.Context, in storage.CrearVehiculoInput) (*storage.Vehiculo, error) {
	patente := storage.NormalizarPatente(in.Patente)
	if patente == "" {
		return nil, fmt.Errorf("patente requerida")
	}
	v := storage.Vehiculo{
		Patente:       patente,
		Marca:         in.Marca,
		Modelo:        in.Modelo,
		Anio:          in.Anio,
		Motor:         in.Motor,
		Color:         in.Color,
		FechaCreacion: time.Now(),
	}
	// Save upserts by primary key, giving the same last-write-wins
	// semantics as the local backend.
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Save(&v).Error
	}); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) ObtenerVehiculos(ctx context.Context) ([]storage.Vehiculo, error) {
	vehiculos := []storage.Vehiculo{}
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Find(&vehiculos).Error
	}); err != nil {
		return nil, err
	}
	return vehiculos, nil
}

// ---- Órdenes ----

func (s *Store) ObtenerOrdenes(ctx context.Context) ([]storage.Orden, error) {
	ordenes := []storage.Orden{}
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Order("fecha_ingreso DESC").Find(&ordenes).Error
	}); err != nil {
		return nil, err
	}
	return ordenes, nil
}

func (s *Store) ObtenerOrdenesHoy(ctx context.Context) ([]storage.Orden, error) {
	ahora := time.Now()
	inicio := time.Date(ahora.Year(), ahora.Month(), ahora.Day(), 0, 0, 0, 0, ahora.Location())
	fin := inicio.AddDate(0, 0, 1)

	ordenes := []storage.Orden{}
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).
			Where("fecha_ingreso >= ? AND fecha_ingreso < ?", inicio, fin).
			Order("fecha_ingreso DESC").
			Find(&ordenes).Error
	}); err != nil {
		return nil, err
	}
	return ordenes, nil
}

func (s *Store) ObtenerOrdenPorId(ctx context.Context, id int64) (*storage.Orden, error) {
	var o storage.Orden
	err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNoExiste
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) CrearOrden(ctx context.Context, in storage.CrearOrdenInput) (*storage.Orden, error) {
	if strings.TrimSpace(in.CreadoPor) == "" {
		return nil, fmt.Errorf("creado_por requerido")
	}
	patente := storage.NormalizarPatente(in.PatenteVehiculo)
	if patente == "" {
		return nil, fmt.Errorf("patente_vehiculo requerida")
	}

	ahora := time.Now()

	if _, err := s.BuscarVehiculoPorPatente(ctx, patente); errors.Is(err, storage.ErrNoExiste) {
		stub := storage.VehiculoStub(patente, ahora)
		if err := s.call(ctx, func() error {
			return s.db.WithContext(ctx).Create(&stub).Error
		}); err != nil {
			return nil, err
		}
		if s.log != nil {
			s.log.Infof("vehículo %s creado automáticamente", patente)
		}
	} else if err != nil {
		return nil, err
	}

	o := storage.NuevaOrden(in, ahora)
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Create(&o).Error
	}); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("orden creada id=%d patente=%s", o.ID, patente)
	}
	return &o, nil
}

func (s *Store) ActualizarOrden(ctx context.Context, id int64, patch storage.OrdenPatch) (*storage.Orden, error) {
	o, err := s.ObtenerOrdenPorId(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := storage.AplicarPatch(o, patch, time.Now()); err != nil {
		return nil, err
	}
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Save(o).Error
	}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) EliminarOrden(ctx context.Context, id int64) (bool, error) {
	var affected int64
	err := s.call(ctx, func() error {
		res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&storage.Orden{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) OrdenesPorUsuario(ctx context.Context, usuarioID string) (creadas, asignadas []storage.Orden, err error) {
	creadas = []storage.Orden{}
	asignadas = []storage.Orden{}
	err = s.call(ctx, func() error {
		if err := s.db.WithContext(ctx).Where("creado_por = ?", usuarioID).Find(&creadas).Error; err != nil {
			return err
		}
		return s.db.WithContext(ctx).Where("asignado_a = ?", usuarioID).Find(&asignadas).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return creadas, asignadas, nil
}

// ---- Perfiles ----

func (s *Store) ObtenerPerfiles(ctx context.Context) ([]storage.Perfil, error) {
	perfiles := []storage.Perfil{}
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Find(&perfiles).Error
	}); err != nil {
		return nil, err
	}
	return perfiles, nil
}

func (s *Store) ObtenerPerfilPorId(ctx context.Context, id string) (*storage.Perfil, error) {
	var p storage.Perfil
	err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNoExiste
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ActualizarPerfil(ctx context.Context, id string, patch storage.PerfilPatch) (*storage.Perfil, error) {
	p, err := s.ObtenerPerfilPorId(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.NombreCompleto != nil {
		p.NombreCompleto = *patch.NombreCompleto
	}
	if patch.Rol != nil {
		if !patch.Rol.EsValido() {
			return nil, fmt.Errorf("rol desconocido: %q", *patch.Rol)
		}
		p.Rol = *patch.Rol
	}
	if patch.Activo != nil {
		p.Activo = *patch.Activo
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Save(p).Error
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) CrearUsuario(ctx context.Context, email, secreto, nombreCompleto string, rol storage.Rol) (*storage.Perfil, error) {
	email = strings.TrimSpace(email)
	if email == "" || secreto == "" {
		return nil, fmt.Errorf("email y contraseña requeridos")
	}
	if !rol.EsValido() {
		return nil, fmt.Errorf("rol desconocido: %q", rol)
	}

	var existentes int64
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Model(&storage.Perfil{}).
			Where("LOWER(email) = ?", strings.ToLower(email)).Count(&existentes).Error
	}); err != nil {
		return nil, err
	}
	if existentes > 0 {
		return nil, storage.ErrEmailRegistrado
	}

	nuevo := storage.Perfil{
		ID:             "user-" + uuid.NewString(),
		NombreCompleto: nombreCompleto,
		Rol:            rol,
		Activo:         true,
		Email:          email,
	}
	cred, err := nuevaCredencial(email, secreto)
	if err != nil {
		return nil, err
	}
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&nuevo).Error; err != nil {
				return err
			}
			return tx.Create(&cred).Error
		})
	}); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("usuario creado email=%s rol=%s", email, rol)
	}
	return &nuevo, nil
}

// ---- Sesión ----

func (s *Store) IniciarSesion(ctx context.Context, email, secreto string) (*storage.Sesion, error) {
	email = strings.TrimSpace(email)

	var cred credencial
	err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&cred).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrUsuarioNoEncontrado
	}
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(secreto, cred.Salt, cred.Hash) {
		return nil, storage.ErrCredencialesInvalidas
	}

	var perfil storage.Perfil
	err = s.call(ctx, func() error {
		return s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&perfil).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrUsuarioNoEncontrado
	}
	if err != nil {
		return nil, err
	}
	if !perfil.Activo {
		return nil, storage.ErrUsuarioDesactivado
	}

	row := sesion{ID: sesionRowID, UsuarioID: perfil.ID, Email: email, PerfilID: perfil.ID}
	if err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Save(&row).Error
	}); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("login exitoso email=%s", email)
	}
	return &storage.Sesion{
		Usuario: storage.Usuario{ID: perfil.ID, Email: email},
		Perfil:  perfil,
	}, nil
}

func (s *Store) CerrarSesion(ctx context.Context) error {
	return s.call(ctx, func() error {
		return s.db.WithContext(ctx).Where("id = ?", sesionRowID).Delete(&sesion{}).Error
	})
}

func (s *Store) SesionActual(ctx context.Context) (*storage.Sesion, error) {
	var row sesion
	err := s.call(ctx, func() error {
		return s.db.WithContext(ctx).Where("id = ?", sesionRowID).First(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	perfil, err := s.ObtenerPerfilPorId(ctx, row.PerfilID)
	if errors.Is(err, storage.ErrNoExiste) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &storage.Sesion{
		Usuario: storage.Usuario{ID: row.UsuarioID, Email: row.Email},
		Perfil:  *perfil,
	}, nil
}
