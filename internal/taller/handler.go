// Package taller exposes the workshop API over HTTP/JSON. Handlers are thin:
// they decode, call the storage.Store and map errors to status codes; all
// business rules live behind the Store.
package taller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/TallerLink/TallerLink/internal/common/auth"
	"github.com/TallerLink/TallerLink/internal/common/config"
	"github.com/TallerLink/TallerLink/internal/common/httputil"
	"github.com/TallerLink/TallerLink/internal/common/logger"
	"github.com/TallerLink/TallerLink/internal/storage"
)

// Handler serves the workshop API against whichever backend the adapter built.
type Handler struct {
	store   storage.Store
	authCfg config.AuthConfig
	log     logger.Logger
}

func NewHandler(store storage.Store, authCfg config.AuthConfig, log logger.Logger) *Handler {
	return &Handler{store: store, authCfg: authCfg, log: log}
}

// Routes builds the API mux. Session endpoints stay open; user administration
// requires an admin token.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/vehiculos", h.listarVehiculos)
	mux.HandleFunc("POST /api/vehiculos", h.crearVehiculo)
	mux.HandleFunc("GET /api/vehiculos/{patente}", h.buscarVehiculo)

	mux.HandleFunc("GET /api/ordenes", h.listarOrdenes)
	mux.HandleFunc("GET /api/ordenes/hoy", h.ordenesHoy)
	mux.HandleFunc("POST /api/ordenes", h.crearOrden)
	mux.HandleFunc("GET /api/ordenes/{id}", h.obtenerOrden)
	mux.HandleFunc("PATCH /api/ordenes/{id}", h.actualizarOrden)
	mux.HandleFunc("DELETE /api/ordenes/{id}", h.eliminarOrden)

	mux.HandleFunc("GET /api/perfiles", h.listarPerfiles)
	mux.HandleFunc("GET /api/perfiles/{id}", h.obtenerPerfil)
	mux.HandleFunc("PATCH /api/perfiles/{id}", h.soloAdmin(h.actualizarPerfil))
	mux.HandleFunc("GET /api/perfiles/{id}/ordenes", h.ordenesPorUsuario)

	mux.HandleFunc("POST /api/usuarios", h.soloAdmin(h.crearUsuario))

	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/logout", h.logout)
	mux.HandleFunc("GET /api/sesion", h.sesionActual)

	return mux
}

// writeError maps storage sentinels onto status codes. Unknown errors are
// logged and reported as a generic 500 so internals never leak to clients.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNoExiste):
		httputil.ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrUsuarioNoEncontrado),
		errors.Is(err, storage.ErrCredencialesInvalidas):
		httputil.ErrorResponse(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, storage.ErrUsuarioDesactivado):
		httputil.ErrorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, storage.ErrEmailRegistrado):
		httputil.ErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrTransicionInvalida):
		httputil.ErrorResponse(w, http.StatusConflict, err.Error())
	default:
		if h.log != nil {
			h.log.Errorf("request failed: %v", err)
		}
		httputil.ErrorResponse(w, http.StatusInternalServerError, "error interno")
	}
}

func decode(r *http.Request, dest any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dest)
}

// soloAdmin gates a handler behind a valid access token carrying the admin
// role.
func (h *Handler) soloAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
		if token == "" {
			httputil.ErrorResponse(w, http.StatusUnauthorized, "token requerido")
			return
		}
		claims, err := auth.ParseAccessToken(h.authCfg, token)
		if err != nil {
			httputil.ErrorResponse(w, http.StatusUnauthorized, "token inválido")
			return
		}
		if claims.Rol != string(storage.RolAdmin) {
			httputil.ErrorResponse(w, http.StatusForbidden, "requiere rol admin")
			return
		}
		next(w, r)
	}
}

// --- vehicles ---

func (h *Handler) listarVehiculos(w http.ResponseWriter, r *http.Request) {
	vehiculos, err := h.store.ObtenerVehiculos(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, vehiculos)
}

func (h *Handler) crearVehiculo(w http.ResponseWriter, r *http.Request) {
	var in storage.CrearVehiculoInput
	if err := decode(r, &in); err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}
	if storage.NormalizarPatente(in.Patente) == "" {
		httputil.ErrorResponse(w, http.StatusBadRequest, "patente requerida")
		return
	}
	vehiculo, err := h.store.CrearVehiculo(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusCreated, vehiculo)
}

func (h *Handler) buscarVehiculo(w http.ResponseWriter, r *http.Request) {
	vehiculo, err := h.store.BuscarVehiculoPorPatente(r.Context(), r.PathValue("patente"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, vehiculo)
}

// --- orders ---

func (h *Handler) listarOrdenes(w http.ResponseWriter, r *http.Request) {
	ordenes, err := h.store.ObtenerOrdenes(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, ordenes)
}

func (h *Handler) ordenesHoy(w http.ResponseWriter, r *http.Request) {
	ordenes, err := h.store.ObtenerOrdenesHoy(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, ordenes)
}

func (h *Handler) crearOrden(w http.ResponseWriter, r *http.Request) {
	var in storage.CrearOrdenInput
	if err := decode(r, &in); err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}
	if in.PatenteVehiculo == "" || in.CreadoPor == "" {
		httputil.ErrorResponse(w, http.StatusBadRequest, "patente_vehiculo y creado_por son requeridos")
		return
	}
	if in.Estado != "" && !in.Estado.EsValido() {
		httputil.ErrorResponse(w, http.StatusBadRequest, "estado desconocido")
		return
	}
	orden, err := h.store.CrearOrden(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusCreated, orden)
}

func ordenID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (h *Handler) obtenerOrden(w http.ResponseWriter, r *http.Request) {
	id, err := ordenID(r)
	if err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "id inválido")
		return
	}
	orden, err := h.store.ObtenerOrdenPorId(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, orden)
}

func (h *Handler) actualizarOrden(w http.ResponseWriter, r *http.Request) {
	id, err := ordenID(r)
	if err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "id inválido")
		return
	}
	var patch storage.OrdenPatch
	if err := decode(r, &patch); err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}
	if patch.Estado != nil && !patch.Estado.EsValido() {
		httputil.ErrorResponse(w, http.StatusBadRequest, "estado desconocido")
		return
	}
	orden, err := h.store.ActualizarOrden(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, orden)
}

func (h *Handler) eliminarOrden(w http.ResponseWriter, r *http.Request) {
	id, err := ordenID(r)
	if err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "id inválido")
		return
	}
	eliminada, err := h.store.EliminarOrden(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !eliminada {
		httputil.ErrorResponse(w, http.StatusNotFound, storage.ErrNoExiste.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ordenesPorUsuario(w http.ResponseWriter, r *http.Request) {
	creadas, asignadas, err := h.store.OrdenesPorUsuario(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, map[string][]storage.Orden{
		"creadas":   creadas,
		"asignadas": asignadas,
	})
}

// --- profiles and users ---

func (h *Handler) listarPerfiles(w http.ResponseWriter, r *http.Request) {
	perfiles, err := h.store.ObtenerPerfiles(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, perfiles)
}

func (h *Handler) obtenerPerfil(w http.ResponseWriter, r *http.Request) {
	perfil, err := h.store.ObtenerPerfilPorId(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, perfil)
}

func (h *Handler) actualizarPerfil(w http.ResponseWriter, r *http.Request) {
	var patch storage.PerfilPatch
	if err := decode(r, &patch); err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}
	if patch.Rol != nil && !patch.Rol.EsValido() {
		httputil.ErrorResponse(w, http.StatusBadRequest, "rol desconocido")
		return
	}
	perfil, err := h.store.ActualizarPerfil(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusOK, perfil)
}

type crearUsuarioRequest struct {
	Email          string      `json:"email"`
	Password       string      `json:"password"`
	NombreCompleto string      `json:"nombre_completo"`
	Rol            storage.Rol `json:"rol"`
}

func (h *Handler) crearUsuario(w http.ResponseWriter, r *http.Request) {
	var req crearUsuarioRequest
	if err := decode(r, &req); err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.ErrorResponse(w, http.StatusBadRequest, "email y password son requeridos")
		return
	}
	if req.Rol == "" {
		req.Rol = storage.RolMecanico
	}
	if !req.Rol.EsValido() {
		httputil.ErrorResponse(w, http.StatusBadRequest, "rol desconocido")
		return
	}
	perfil, err := h.store.CrearUsuario(r.Context(), req.Email, req.Password, req.NombreCompleto, req.Rol)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.JSONResponse(w, http.StatusCreated, perfil)
}

// --- session ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Usuario     storage.Usuario `json:"user"`
	Perfil      storage.Perfil  `json:"perfil"`
	AccessToken string          `json:"access_token,omitempty"`
	ExpiraEn    *time.Time      `json:"expira_en,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		httputil.ErrorResponse(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}
	sesion, err := h.store.IniciarSesion(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := loginResponse{Usuario: sesion.Usuario, Perfil: sesion.Perfil}
	// The token is issued only when a secret is configured; the session record
	// in the store is the source of truth either way.
	if h.authCfg.JWTSecret != "" {
		ttl := time.Duration(h.authCfg.TTLHours) * time.Hour
		token, expira, err := auth.GenerateAccessToken(h.authCfg, sesion.Perfil.ID, string(sesion.Perfil.Rol), ttl)
		if err != nil {
			h.writeError(w, err)
			return
		}
		resp.AccessToken = token
		resp.ExpiraEn = &expira
	}
	httputil.JSONResponse(w, http.StatusOK, resp)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.store.CerrarSesion(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sesionActual(w http.ResponseWriter, r *http.Request) {
	sesion, err := h.store.SesionActual(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sesion == nil {
		httputil.JSONResponse(w, http.StatusOK, map[string]any{"user": nil, "perfil": nil})
		return
	}
	httputil.JSONResponse(w, http.StatusOK, sesion)
}
