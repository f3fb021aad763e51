package local

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TallerLink/TallerLink/internal/storage"
)

func abrirStoreTest(t *testing.T) *Store {
	t.Helper()
	s, err := Abrir(filepath.Join(t.TempDir(), "taller.db"), nil)
	if err != nil {
		t.Fatalf("Abrir: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSembradoInicial(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	perfiles, err := s.ObtenerPerfiles(ctx)
	if err != nil {
		t.Fatalf("ObtenerPerfiles: %v", err)
	}
	if len(perfiles) != 2 {
		t.Fatalf("expected 2 seeded profiles, got %d", len(perfiles))
	}
	admin, err := s.ObtenerPerfilPorId(ctx, "admin-001")
	if err != nil {
		t.Fatalf("ObtenerPerfilPorId: %v", err)
	}
	if admin.Rol != storage.RolAdmin || !admin.Activo {
		t.Fatalf("unexpected admin profile: %+v", admin)
	}
}

func TestCrearOrdenAplicaDefaults(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	orden, err := s.CrearOrden(ctx, storage.CrearOrdenInput{
		PatenteVehiculo:    "ab-12 cd",
		DescripcionIngreso: "ruido en el motor",
		CreadoPor:          "admin-001",
	})
	if err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}
	if orden.ID != 1 {
		t.Fatalf("expected first id 1, got %d", orden.ID)
	}
	if orden.Estado != storage.EstadoPendiente {
		t.Fatalf("expected estado pendiente, got %s", orden.Estado)
	}
	if orden.AsignadoA != "admin-001" {
		t.Fatalf("expected asignado_a to default to creado_por, got %q", orden.AsignadoA)
	}
	if orden.PatenteVehiculo != "AB12CD" {
		t.Fatalf("expected normalized plate AB12CD, got %q", orden.PatenteVehiculo)
	}

	// The unknown plate must have produced a stub vehicle.
	v, err := s.BuscarVehiculoPorPatente(ctx, "AB12CD")
	if err != nil {
		t.Fatalf("BuscarVehiculoPorPatente: %v", err)
	}
	if v.Marca != "Por definir" || v.Modelo != "Por definir" {
		t.Fatalf("expected stub vehicle, got %+v", v)
	}

	segunda, err := s.CrearOrden(ctx, storage.CrearOrdenInput{
		PatenteVehiculo: "AB12CD",
		CreadoPor:       "mecanico-001",
	})
	if err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}
	if segunda.ID != 2 {
		t.Fatalf("expected second id 2, got %d", segunda.ID)
	}
}

func TestIdsNoSeReutilizan(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	in := storage.CrearOrdenInput{PatenteVehiculo: "XY99ZZ", CreadoPor: "admin-001"}
	primera, err := s.CrearOrden(ctx, in)
	if err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}
	if ok, err := s.EliminarOrden(ctx, primera.ID); err != nil || !ok {
		t.Fatalf("EliminarOrden: ok=%v err=%v", ok, err)
	}
	segunda, err := s.CrearOrden(ctx, in)
	if err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}
	if segunda.ID <= primera.ID {
		t.Fatalf("expected fresh id after delete, got %d after %d", segunda.ID, primera.ID)
	}
}

func TestActualizarOrden(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	orden, err := s.CrearOrden(ctx, storage.CrearOrdenInput{PatenteVehiculo: "AA11BB", CreadoPor: "admin-001"})
	if err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}

	estado := storage.EstadoCompletada
	actualizada, err := s.ActualizarOrden(ctx, orden.ID, storage.OrdenPatch{Estado: &estado})
	if err != nil {
		t.Fatalf("ActualizarOrden: %v", err)
	}
	if actualizada.Estado != storage.EstadoCompletada {
		t.Fatalf("expected estado completada, got %s", actualizada.Estado)
	}
	if actualizada.FechaCompletada == nil {
		t.Fatalf("expected fecha_completada to be stamped")
	}
	if !actualizada.FechaActualizacion.After(orden.FechaActualizacion) {
		t.Fatalf("expected fecha_actualizacion strictly after %v, got %v",
			orden.FechaActualizacion, actualizada.FechaActualizacion)
	}

	// Completed orders are terminal.
	regreso := storage.EstadoPendiente
	if _, err := s.ActualizarOrden(ctx, orden.ID, storage.OrdenPatch{Estado: &regreso}); !errors.Is(err, storage.ErrTransicionInvalida) {
		t.Fatalf("expected ErrTransicionInvalida, got %v", err)
	}

	if _, err := s.ActualizarOrden(ctx, 9999, storage.OrdenPatch{Estado: &estado}); !errors.Is(err, storage.ErrNoExiste) {
		t.Fatalf("expected ErrNoExiste for missing id, got %v", err)
	}
}

func TestEliminarOrdenDosVeces(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	orden, err := s.CrearOrden(ctx, storage.CrearOrdenInput{PatenteVehiculo: "CC33DD", CreadoPor: "admin-001"})
	if err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}
	ok, err := s.EliminarOrden(ctx, orden.ID)
	if err != nil || !ok {
		t.Fatalf("first delete: ok=%v err=%v", ok, err)
	}
	ok, err = s.EliminarOrden(ctx, orden.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if ok {
		t.Fatalf("second delete should report nothing removed")
	}
}

func TestCrearVehiculoUpsert(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	if _, err := s.CrearVehiculo(ctx, storage.CrearVehiculoInput{Patente: "gh56ij", Marca: "Toyota"}); err != nil {
		t.Fatalf("CrearVehiculo: %v", err)
	}
	v, err := s.CrearVehiculo(ctx, storage.CrearVehiculoInput{Patente: "GH56IJ", Marca: "Nissan", Modelo: "V16"})
	if err != nil {
		t.Fatalf("CrearVehiculo: %v", err)
	}
	if v.Marca != "Nissan" {
		t.Fatalf("expected last write to win, got %+v", v)
	}

	vehiculos, err := s.ObtenerVehiculos(ctx)
	if err != nil {
		t.Fatalf("ObtenerVehiculos: %v", err)
	}
	if len(vehiculos) != 1 {
		t.Fatalf("expected one vehicle after upsert, got %d", len(vehiculos))
	}
}

func TestObtenerOrdenesMasRecientePrimero(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	// Seeded deliberately out of order so the result reflects sorting, not
	// insertion order.
	ahora := time.Now()
	semilla := []storage.Orden{
		{ID: 1, PatenteVehiculo: "AA11BB", Estado: storage.EstadoPendiente, CreadoPor: "admin-001", FechaIngreso: ahora.Add(-48 * time.Hour)},
		{ID: 2, PatenteVehiculo: "CC22DD", Estado: storage.EstadoPendiente, CreadoPor: "admin-001", FechaIngreso: ahora},
		{ID: 3, PatenteVehiculo: "EE33FF", Estado: storage.EstadoPendiente, CreadoPor: "admin-001", FechaIngreso: ahora.Add(-time.Hour)},
	}
	if err := s.kv.Set(ctx, claveOrdenes, semilla); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ordenes, err := s.ObtenerOrdenes(ctx)
	if err != nil {
		t.Fatalf("ObtenerOrdenes: %v", err)
	}
	if len(ordenes) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(ordenes))
	}
	for i, want := range []int64{2, 3, 1} {
		if ordenes[i].ID != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, ordenes[i].ID)
		}
	}
}

func TestOrdenesHoy(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	deHoy, err := s.CrearOrden(ctx, storage.CrearOrdenInput{PatenteVehiculo: "KL78MN", CreadoPor: "admin-001"})
	if err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}

	// Slip in an order from yesterday; the day filter must leave it out.
	var ordenes []storage.Orden
	if _, err := s.kv.Get(ctx, claveOrdenes, &ordenes); err != nil {
		t.Fatalf("Get: %v", err)
	}
	ayer := time.Now().AddDate(0, 0, -1)
	ordenes = append(ordenes, storage.Orden{
		ID:              999,
		PatenteVehiculo: "ZZ99XX",
		Estado:          storage.EstadoPendiente,
		CreadoPor:       "admin-001",
		FechaIngreso:    ayer,
	})
	if err := s.kv.Set(ctx, claveOrdenes, ordenes); err != nil {
		t.Fatalf("Set: %v", err)
	}

	hoy, err := s.ObtenerOrdenesHoy(ctx)
	if err != nil {
		t.Fatalf("ObtenerOrdenesHoy: %v", err)
	}
	if len(hoy) != 1 {
		t.Fatalf("expected only today's order, got %d", len(hoy))
	}
	if hoy[0].ID != deHoy.ID {
		t.Fatalf("expected order %d, got %d", deHoy.ID, hoy[0].ID)
	}

	todas, err := s.ObtenerOrdenes(ctx)
	if err != nil {
		t.Fatalf("ObtenerOrdenes: %v", err)
	}
	if len(todas) != 2 {
		t.Fatalf("yesterday's order must still exist, got %d total", len(todas))
	}
}

func TestOrdenesPorUsuario(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	if _, err := s.CrearOrden(ctx, storage.CrearOrdenInput{
		PatenteVehiculo: "OP12QR",
		CreadoPor:       "admin-001",
		AsignadoA:       "mecanico-001",
	}); err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}

	creadas, asignadas, err := s.OrdenesPorUsuario(ctx, "admin-001")
	if err != nil {
		t.Fatalf("OrdenesPorUsuario: %v", err)
	}
	if len(creadas) != 1 || len(asignadas) != 0 {
		t.Fatalf("admin-001: creadas=%d asignadas=%d", len(creadas), len(asignadas))
	}
	creadas, asignadas, err = s.OrdenesPorUsuario(ctx, "mecanico-001")
	if err != nil {
		t.Fatalf("OrdenesPorUsuario: %v", err)
	}
	if len(creadas) != 0 || len(asignadas) != 1 {
		t.Fatalf("mecanico-001: creadas=%d asignadas=%d", len(creadas), len(asignadas))
	}
}

func TestIniciarSesion(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	sesion, err := s.IniciarSesion(ctx, "ADMIN@gmail.com", "admin123")
	if err != nil {
		t.Fatalf("IniciarSesion: %v", err)
	}
	if sesion.Usuario.ID != "admin-001" || sesion.Perfil.Rol != storage.RolAdmin {
		t.Fatalf("unexpected session: %+v", sesion)
	}

	if _, err := s.IniciarSesion(ctx, "nadie@gmail.com", "admin123"); !errors.Is(err, storage.ErrUsuarioNoEncontrado) {
		t.Fatalf("expected ErrUsuarioNoEncontrado, got %v", err)
	}
	if _, err := s.IniciarSesion(ctx, "admin@gmail.com", "incorrecta"); !errors.Is(err, storage.ErrCredencialesInvalidas) {
		t.Fatalf("expected ErrCredencialesInvalidas, got %v", err)
	}

	inactivo := false
	if _, err := s.ActualizarPerfil(ctx, "mecanico-001", storage.PerfilPatch{Activo: &inactivo}); err != nil {
		t.Fatalf("ActualizarPerfil: %v", err)
	}
	if _, err := s.IniciarSesion(ctx, "mecanico@gmail.com", "mecanico123"); !errors.Is(err, storage.ErrUsuarioDesactivado) {
		t.Fatalf("expected ErrUsuarioDesactivado, got %v", err)
	}
}

func TestSesionActualYCierre(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	sesion, err := s.SesionActual(ctx)
	if err != nil {
		t.Fatalf("SesionActual: %v", err)
	}
	if sesion != nil {
		t.Fatalf("expected no session on a fresh store")
	}

	if _, err := s.IniciarSesion(ctx, "admin@gmail.com", "admin123"); err != nil {
		t.Fatalf("IniciarSesion: %v", err)
	}
	sesion, err = s.SesionActual(ctx)
	if err != nil || sesion == nil {
		t.Fatalf("SesionActual after login: sesion=%v err=%v", sesion, err)
	}
	if sesion.Usuario.Email != "admin@gmail.com" {
		t.Fatalf("unexpected session user: %+v", sesion.Usuario)
	}

	if err := s.CerrarSesion(ctx); err != nil {
		t.Fatalf("CerrarSesion: %v", err)
	}
	sesion, err = s.SesionActual(ctx)
	if err != nil {
		t.Fatalf("SesionActual after logout: %v", err)
	}
	if sesion != nil {
		t.Fatalf("expected session cleared after logout")
	}
}

func TestCrearUsuario(t *testing.T) {
	s := abrirStoreTest(t)
	ctx := context.Background()

	perfil, err := s.CrearUsuario(ctx, "Nuevo@Taller.cl", "clave123", "Nuevo Mecánico", storage.RolMecanico)
	if err != nil {
		t.Fatalf("CrearUsuario: %v", err)
	}
	if perfil.ID == "" || !perfil.Activo {
		t.Fatalf("unexpected profile: %+v", perfil)
	}

	// The registered email is matched case-insensitively.
	if _, err := s.CrearUsuario(ctx, "nuevo@taller.cl", "otra", "Duplicado", storage.RolMecanico); !errors.Is(err, storage.ErrEmailRegistrado) {
		t.Fatalf("expected ErrEmailRegistrado, got %v", err)
	}

	sesion, err := s.IniciarSesion(ctx, "nuevo@taller.cl", "clave123")
	if err != nil {
		t.Fatalf("IniciarSesion for new user: %v", err)
	}
	if sesion.Perfil.ID != perfil.ID {
		t.Fatalf("session profile mismatch: %+v", sesion.Perfil)
	}
}

func TestPersistenciaEntreAperturas(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taller.db")
	ctx := context.Background()

	s, err := Abrir(path, nil)
	if err != nil {
		t.Fatalf("Abrir: %v", err)
	}
	orden, err := s.CrearOrden(ctx, storage.CrearOrdenInput{PatenteVehiculo: "ST34UV", CreadoPor: "admin-001"})
	if err != nil {
		t.Fatalf("CrearOrden: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reabierto, err := Abrir(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reabierto.Close()

	leida, err := reabierto.ObtenerOrdenPorId(ctx, orden.ID)
	if err != nil {
		t.Fatalf("ObtenerOrdenPorId after reopen: %v", err)
	}
	if leida.PatenteVehiculo != "ST34UV" {
		t.Fatalf("unexpected order after reopen: %+v", leida)
	}
	perfiles, err := reabierto.ObtenerPerfiles(ctx)
	if err != nil {
		t.Fatalf("ObtenerPerfiles: %v", err)
	}
	if len(perfiles) != 2 {
		t.Fatalf("reopen must not reseed, got %d profiles", len(perfiles))
	}
}
