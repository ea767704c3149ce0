package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pmpwsk/cocoding/internal/logger"
	"github.com/pmpwsk/cocoding/pkg/auth"
	"github.com/pmpwsk/cocoding/pkg/session"
	"github.com/pmpwsk/cocoding/pkg/store"
	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
	"github.com/pmpwsk/cocoding/pkg/ws"
)

// upgrader upgrades editor-hub requests. Origin checking is delegated to the
// reverse proxy in front of the server; the token requirement already gates
// the endpoint.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type handlers struct {
	hub     *session.Hub
	authSvc *auth.Service
	rel     store.Store
}

func newHandlers(hub *session.Hub, authSvc *auth.Service, rel store.Store) *handlers {
	return &handlers{hub: hub, authSvc: authSvc, rel: rel}
}

// writeJSON writes a response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("Response encoding failed", logger.KeyError, err)
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.rel.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Reason: "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
			return
		}
		logger.Error("Login failed", logger.KeyError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "login failed"})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		UserID:      user.ID,
		DisplayName: user.GetDisplayName(),
	})
}

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authSvc.Register(r.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case storeerrors.HasCode(err, storeerrors.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "username already taken"})
		default:
			logger.Error("Registration failed", logger.KeyError, err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "registration failed"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, loginResponse{
		UserID:      user.ID,
		DisplayName: user.GetDisplayName(),
	})
}

// editorHub authenticates the token, upgrades to a websocket and hands the
// connection to the relay. The optional session query parameter lets tabs of
// the same editing session share one participant identity.
func (h *handlers) editorHub(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing token"})
		return
	}

	user, err := h.authSvc.ResolveToken(r.Context(), token)
	if err != nil {
		if storeerrors.IsNotFound(err) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
			return
		}
		logger.Error("Token resolution failed", logger.KeyError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "authentication failed"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", logger.KeyError, err, logger.KeyRemote, r.RemoteAddr)
		return
	}

	c := ws.NewConnection(conn, h.hub, user, r.URL.Query().Get("session"))
	logger.Info("Editor connected",
		logger.KeyUserID, user.ID,
		logger.KeyConnID, c.ID(),
		logger.KeyRemote, r.RemoteAddr)

	// Serve blocks for the connection's lifetime; the HTTP handler goroutine
	// is the read loop.
	c.Serve(r.Context())

	logger.Info("Editor disconnected",
		logger.KeyUserID, user.ID,
		logger.KeyConnID, c.ID())
}
