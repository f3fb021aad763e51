package local

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TallerLink/TallerLink/internal/common/logger"
	"github.com/TallerLink/TallerLink/internal/storage"
	"github.com/google/uuid"
)

// Storage keys. One JSON-encoded value per key, the whole collection each.
const (
	claveVehiculos     = "vehicles"
	claveOrdenes       = "orders"
	clavePerfiles      = "profiles"
	claveClientes      = "clients"
	claveSesion        = "current_session"
	claveContadorOrden = "order_counter"
	claveCredenciales  = "credentials"
)

// Store implements storage.Store against the embedded KV database. Every
// operation re-reads the full collection, mutates it, and writes it back.
type Store struct {
	kv  *KV
	log logger.Logger
}

// Abrir opens the local store and seeds the default profiles and credential
// table on first use.
func Abrir(path string, log logger.Logger) (*Store, error) {
	kv, err := AbrirKV(path)
	if err != nil {
		return nil, err
	}
	s := &Store{kv: kv, log: log}
	if err := s.sembrar(context.Background()); err != nil {
		_ = kv.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the backing database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.kv.Close()
}

// sembrar creates the default admin and mechanic accounts when the profile
// collection is empty, mirroring a fresh deployment of the original tool.
func (s *Store) sembrar(ctx context.Context) error {
	var perfiles []storage.Perfil
	if _, err := s.kv.Get(ctx, clavePerfiles, &perfiles); err != nil {
		return err
	}
	if len(perfiles) > 0 {
		return nil
	}

	perfiles = []storage.Perfil{
		{ID: "admin-001", NombreCompleto: "Administrador", Rol: storage.RolAdmin, Activo: true, Email: "admin@gmail.com"},
		{ID: "mecanico-001", NombreCompleto: "Mecánico Principal", Rol: storage.RolMecanico, Activo: true, Email: "mecanico@gmail.com"},
	}
	if err := s.kv.Set(ctx, clavePerfiles, perfiles); err != nil {
		return err
	}

	creds := map[string]string{
		"admin@gmail.com":    "admin123",
		"mecanico@gmail.com": "mecanico123",
	}
	if err := s.kv.Set(ctx, claveCredenciales, creds); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Info("perfiles por defecto creados")
	}
	return nil
}

// ---- Vehículos ----

func (s *Store) BuscarVehiculoPorPatente(ctx context.Context, patente string) (*storage.Vehiculo, error) {
	normalizada := storage.NormalizarPatente(patente)
	var vehiculos []storage.Vehiculo
	if _, err := s.kv.Get(ctx, claveVehiculos, &vehiculos); err != nil {
		return nil, err
	}
	for i := range vehiculos {
		if vehiculos[i].Patente == normalizada {
			v := vehiculos[i]
			return &v, nil
		}
	}
	return nil, storage.ErrNoExiste
}

// CrearVehiculo upserts by normalized plate: a second create for the same
// plate replaces the stored record.
func (s *Store) CrearVehiculo(ctx context.Context, in storage.CrearVehiculoInput) (*storage.Vehiculo, error) {
	patente := storage.NormalizarPatente(in.Patente)
	if patente == "" {
		return nil, fmt.Errorf("patente requerida")
	}

	var vehiculos []storage.Vehiculo
	if _, err := s.kv.Get(ctx, claveVehiculos, &vehiculos); err != nil {
		return nil, err
	}

	nuevo := storage.Vehiculo{
		Patente:       patente,
		Marca:         in.Marca,
		Modelo:        in.Modelo,
		Anio:          in.Anio,
		Motor:         in.Motor,
		Color:         in.Color,
		FechaCreacion: time.Now(),
	}

	reemplazado := false
	for i := range vehiculos {
		if vehiculos[i].Patente == patente {
			vehiculos[i] = nuevo
			reemplazado = true
			break
		}
	}
	if !reemplazado {
		vehiculos = append(vehiculos, nuevo)
	}
	if err := s.kv.Set(ctx, claveVehiculos, vehiculos); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("vehículo guardado patente=%s", patente)
	}
	return &nuevo, nil
}

func (s *Store) ObtenerVehiculos(ctx context.Context) ([]storage.Vehiculo, error) {
	vehiculos := []storage.Vehiculo{}
	if _, err := s.kv.Get(ctx, claveVehiculos, &vehiculos); err != nil {
		return nil, err
	}
	return vehiculos, nil
}

// ---- Órdenes ----

func (s *Store) ObtenerOrdenes(ctx context.Context) ([]storage.Orden, error) {
	ordenes := []storage.Orden{}
	if _, err := s.kv.Get(ctx, claveOrdenes, &ordenes); err != nil {
		return nil, err
	}
	sort.Slice(ordenes, func(i, j int) bool {
		return ordenes[i].FechaIngreso.After(ordenes[j].FechaIngreso)
	})
	return ordenes, nil
}

func (s *Store) ObtenerOrdenesHoy(ctx context.Context) ([]storage.Orden, error) {
	ordenes, err := s.ObtenerOrdenes(ctx)
	if err != nil {
		return nil, err
	}
	ahora := time.Now()
	inicio := time.Date(ahora.Year(), ahora.Month(), ahora.Day(), 0, 0, 0, 0, ahora.Location())
	fin := inicio.AddDate(0, 0, 1)

	hoy := make([]storage.Orden, 0, len(ordenes))
	for _, o := range ordenes {
		if !o.FechaIngreso.Before(inicio) && o.FechaIngreso.Before(fin) {
			hoy = append(hoy, o)
		}
	}
	return hoy, nil
}

func (s *Store) ObtenerOrdenPorId(ctx context.Context, id int64) (*storage.Orden, error) {
	var ordenes []storage.Orden
	if _, err := s.kv.Get(ctx, claveOrdenes, &ordenes); err != nil {
		return nil, err
	}
	for i := range ordenes {
		if ordenes[i].ID == id {
			o := ordenes[i]
			return &o, nil
		}
	}
	return nil, storage.ErrNoExiste
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

	// An order for an unknown plate creates a stub vehicle first so the
	// foreign reference always points at something.
	if _, err := s.BuscarVehiculoPorPatente(ctx, patente); errors.Is(err, storage.ErrNoExiste) {
		var vehiculos []storage.Vehiculo
		if _, err := s.kv.Get(ctx, claveVehiculos, &vehiculos); err != nil {
			return nil, err
		}
		vehiculos = append(vehiculos, storage.VehiculoStub(patente, ahora))
		if err := s.kv.Set(ctx, claveVehiculos, vehiculos); err != nil {
			return nil, err
		}
		if s.log != nil {
			s.log.Infof("vehículo %s creado automáticamente", patente)
		}
	} else if err != nil {
		return nil, err
	}

	var ordenes []storage.Orden
	if _, err := s.kv.Get(ctx, claveOrdenes, &ordenes); err != nil {
		return nil, err
	}

	id, err := s.kv.NextID(ctx, claveContadorOrden)
	if err != nil {
		return nil, err
	}

	nueva := storage.NuevaOrden(in, ahora)
	nueva.ID = id
	ordenes = append(ordenes, nueva)
	if err := s.kv.Set(ctx, claveOrdenes, ordenes); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("orden creada id=%d patente=%s", id, patente)
	}
	return &nueva, nil
}

func (s *Store) ActualizarOrden(ctx context.Context, id int64, patch storage.OrdenPatch) (*storage.Orden, error) {
	var ordenes []storage.Orden
	if _, err := s.kv.Get(ctx, claveOrdenes, &ordenes); err != nil {
		return nil, err
	}
	for i := range ordenes {
		if ordenes[i].ID != id {
			continue
		}
		if err := storage.AplicarPatch(&ordenes[i], patch, time.Now()); err != nil {
			return nil, err
		}
		if err := s.kv.Set(ctx, claveOrdenes, ordenes); err != nil {
			return nil, err
		}
		o := ordenes[i]
		return &o, nil
	}
	if s.log != nil {
		s.log.Warnf("orden no encontrada id=%d", id)
	}
	return nil, storage.ErrNoExiste
}

func (s *Store) EliminarOrden(ctx context.Context, id int64) (bool, error) {
	var ordenes []storage.Orden
	if _, err := s.kv.Get(ctx, claveOrdenes, &ordenes); err != nil {
		return false, err
	}
	resto := ordenes[:0]
	eliminada := false
	for _, o := range ordenes {
		if o.ID == id {
			eliminada = true
			continue
		}
		resto = append(resto, o)
	}
	if !eliminada {
		return false, nil
	}
	if err := s.kv.Set(ctx, claveOrdenes, resto); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) OrdenesPorUsuario(ctx context.Context, usuarioID string) (creadas, asignadas []storage.Orden, err error) {
	var ordenes []storage.Orden
	if _, err := s.kv.Get(ctx, claveOrdenes, &ordenes); err != nil {
		return nil, nil, err
	}
	creadas = []storage.Orden{}
	asignadas = []storage.Orden{}
	for _, o := range ordenes {
		if o.CreadoPor == usuarioID {
			creadas = append(creadas, o)
		}
		if o.AsignadoA == usuarioID {
			asignadas = append(asignadas, o)
		}
	}
	return creadas, asignadas, nil
}

// ---- Perfiles ----

func (s *Store) ObtenerPerfiles(ctx context.Context) ([]storage.Perfil, error) {
	perfiles := []storage.Perfil{}
	if _, err := s.kv.Get(ctx, clavePerfiles, &perfiles); err != nil {
		return nil, err
	}
	return perfiles, nil
}

func (s *Store) ObtenerPerfilPorId(ctx context.Context, id string) (*storage.Perfil, error) {
	var perfiles []storage.Perfil
	if _, err := s.kv.Get(ctx, clavePerfiles, &perfiles); err != nil {
		return nil, err
	}
	for i := range perfiles {
		if perfiles[i].ID == id {
			p := perfiles[i]
			return &p, nil
		}
	}
	return nil, storage.ErrNoExiste
}

func (s *Store) ActualizarPerfil(ctx context.Context, id string, patch storage.PerfilPatch) (*storage.Perfil, error) {
	var perfiles []storage.Perfil
	if _, err := s.kv.Get(ctx, clavePerfiles, &perfiles); err != nil {
		return nil, err
	}
	for i := range perfiles {
		if perfiles[i].ID != id {
			continue
		}
		if patch.NombreCompleto != nil {
			perfiles[i].NombreCompleto = *patch.NombreCompleto
		}
		if patch.Rol != nil {
			if !patch.Rol.EsValido() {
				return nil, fmt.Errorf("rol desconocido: %q", *patch.Rol)
			}
			perfiles[i].Rol = *patch.Rol
		}
		if patch.Activo != nil {
			perfiles[i].Activo = *patch.Activo
		}
		if patch.Email != nil {
			perfiles[i].Email = *patch.Email
		}
		if err := s.kv.Set(ctx, clavePerfiles, perfiles); err != nil {
			return nil, err
		}
		p := perfiles[i]
		return &p, nil
	}
	return nil, storage.ErrNoExiste
}

func (s *Store) CrearUsuario(ctx context.Context, email, secreto, nombreCompleto string, rol storage.Rol) (*storage.Perfil, error) {
	email = strings.TrimSpace(email)
	if email == "" || secreto == "" {
		return nil, fmt.Errorf("email y contraseña requeridos")
	}
	if !rol.EsValido() {
		return nil, fmt.Errorf("rol desconocido: %q", rol)
	}

	var perfiles []storage.Perfil
	if _, err := s.kv.Get(ctx, clavePerfiles, &perfiles); err != nil {
		return nil, err
	}
	for _, p := range perfiles {
		if strings.EqualFold(p.Email, email) {
			return nil, storage.ErrEmailRegistrado
		}
	}

	nuevo := storage.Perfil{
		ID:             "user-" + uuid.NewString(),
		NombreCompleto: nombreCompleto,
		Rol:            rol,
		Activo:         true,
		Email:          email,
	}
	perfiles = append(perfiles, nuevo)
	if err := s.kv.Set(ctx, clavePerfiles, perfiles); err != nil {
		return nil, err
	}

	creds := map[string]string{}
	if _, err := s.kv.Get(ctx, claveCredenciales, &creds); err != nil {
		return nil, err
	}
	creds[strings.ToLower(email)] = secreto
	if err := s.kv.Set(ctx, claveCredenciales, creds); err != nil {
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

	creds := map[string]string{}
	if _, err := s.kv.Get(ctx, claveCredenciales, &creds); err != nil {
		return nil, err
	}
	esperado, ok := creds[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrUsuarioNoEncontrado
	}
	if esperado != secreto {
		return nil, storage.ErrCredencialesInvalidas
	}

	var perfiles []storage.Perfil
	if _, err := s.kv.Get(ctx, clavePerfiles, &perfiles); err != nil {
		return nil, err
	}
	var perfil *storage.Perfil
	for i := range perfiles {
		if strings.EqualFold(perfiles[i].Email, email) {
			perfil = &perfiles[i]
			break
		}
	}
	if perfil == nil {
		return nil, storage.ErrUsuarioNoEncontrado
	}
	if !perfil.Activo {
		return nil, storage.ErrUsuarioDesactivado
	}

	sesion := storage.Sesion{
		Usuario: storage.Usuario{ID: perfil.ID, Email: email},
		Perfil:  *perfil,
	}
	if err := s.kv.Set(ctx, claveSesion, sesion); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("login exitoso email=%s", email)
	}
	return &sesion, nil
}

func (s *Store) CerrarSesion(ctx context.Context) error {
	return s.kv.Delete(ctx, claveSesion)
}

func (s *Store) SesionActual(ctx context.Context) (*storage.Sesion, error) {
	var sesion storage.Sesion
	ok, err := s.kv.Get(ctx, claveSesion, &sesion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &sesion, nil
}
