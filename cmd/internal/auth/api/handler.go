package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"gatehouse/cmd/identity"
	"gatehouse/cmd/internal/auth/session"
	"gatehouse/cmd/security/password"
)

// Handler wires HTTP auth endpoints to the identity store and session service.
type Handler struct {
	log *slog.Logger
	cfg Config

	users     identity.Store
	sessions  *session.Service
	passwords password.Config
	audit     AuditSink
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithAuditSink overrides the default log-only audit sink.
func WithAuditSink(sink AuditSink) HandlerOption {
	return func(h *Handler) {
		if sink != nil {
			h.audit = sink
		}
	}
}

// WithPasswordConfig sets the hashing config used by registration.
func WithPasswordConfig(cfg password.Config) HandlerOption {
	return func(h *Handler) { h.passwords = cfg }
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || sessions == nil {
		return nil, errors.New("authapi: missing identity store or session service")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		users:     users,
		sessions:  sessions,
		passwords: password.DefaultConfig(),
		audit:     LogAudit{Log: log},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.Handle("/auth/validate", h.RequireAuth(http.HandlerFunc(h.handleValidate)))
	mux.Handle("/auth/logout", h.RequireAuth(http.HandlerFunc(h.handleLogout)))
	mux.Handle("/auth/logout_all", h.RequireAuth(http.HandlerFunc(h.handleLogoutAll)))
	mux.Handle("/auth/sessions", h.RequireAuth(http.HandlerFunc(h.handleSessions)))
	mux.Handle("/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.cfg.AllowRegistration {
		writeError(w, http.StatusForbidden, "registration_disabled", "registration is disabled")
		return
	}

	var req registerRequest
	if !readBody(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}
	dev, ok := h.deviceFor(r, req.DeviceID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid device_id")
		return
	}

	hash, err := identity.HashPassword(h.passwords, req.Password)
	if err != nil {
		h.writeIdentityError(w, "auth.register.hash.fail", err)
		return
	}

	ctx := r.Context()
	user, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		h.writeIdentityError(w, "auth.register.create.fail", err)
		return
	}

	// The account is committed before the session opens. If opening fails the
	// client is told to log in rather than retry registration (which would 409).
	issued, err := h.sessions.Open(ctx, user, dev)
	if err != nil {
		h.log.Error("auth.register.open.fail", "user_id", user.ID, "err", err)
		h.audit.Record(ctx, AuditEvent{
			Action: ActionRegister, UserID: user.ID,
			IP: dev.IP, UserAgent: dev.UserAgent,
		})
		writeError(w, http.StatusInternalServerError, "login_required", "account created; log in to start a session")
		return
	}

	h.audit.Record(ctx, AuditEvent{
		Action: ActionRegister, UserID: user.ID, SessionID: issued.SessionID,
		IP: dev.IP, UserAgent: dev.UserAgent,
	})
	writeJSON(w, http.StatusCreated, loginResponse{
		User:    toUserResponse(user),
		Session: toSessionResponse(issued),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if !readBody(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}
	dev, ok := h.deviceFor(r, req.DeviceID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid device_id")
		return
	}

	ctx := r.Context()
	res, err := h.sessions.Login(ctx, req.Username, req.Password, dev)
	if err != nil {
		if isAuthMiss(err) {
			h.audit.Record(ctx, AuditEvent{
				Action: ActionLoginFailed, IP: dev.IP, UserAgent: dev.UserAgent,
				Meta: map[string]any{"username": strings.TrimSpace(req.Username), "reason": reasonOf(err)},
			})
		}
		h.writeSessionError(w, "auth.login.fail", err)
		return
	}

	h.audit.Record(ctx, AuditEvent{
		Action: ActionLoginSuccess, UserID: res.User.ID, SessionID: res.Issued.SessionID,
		IP: dev.IP, UserAgent: dev.UserAgent,
		Meta: map[string]any{"refresh_count": res.Issued.RefreshCount},
	})
	writeJSON(w, http.StatusOK, loginResponse{
		User:    toUserResponse(res.User),
		Session: toSessionResponse(res.Issued),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if !readBody(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	dev, ok := h.deviceFor(r, req.DeviceID)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid device_id")
		return
	}

	ctx := r.Context()
	issued, err := h.sessions.Refresh(ctx, req.RefreshToken, dev.ID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			h.audit.Record(ctx, AuditEvent{Action: ActionRefreshFailed, IP: dev.IP, UserAgent: dev.UserAgent})
		}
		h.writeSessionError(w, "auth.refresh.fail", err)
		return
	}

	h.audit.Record(ctx, AuditEvent{
		Action: ActionRefresh, SessionID: issued.SessionID, IP: dev.IP, UserAgent: dev.UserAgent,
		Meta: map[string]any{"refresh_count": issued.RefreshCount},
	})
	writeJSON(w, http.StatusOK, refreshResponse{Session: toSessionResponse(issued)})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, validateResponse{
		User:      toUserResponse(p.User),
		DeviceID:  p.DeviceID,
		SessionID: p.SessionID,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	p, _ := PrincipalFrom(ctx)

	if err := h.sessions.Logout(ctx, p.UserID, p.DeviceID); err != nil {
		h.writeSessionError(w, "auth.logout.fail", err)
		return
	}
	dev, _ := h.deviceFor(r, "")
	h.audit.Record(ctx, AuditEvent{
		Action: ActionLogout, UserID: p.UserID, SessionID: p.SessionID,
		IP: dev.IP, UserAgent: dev.UserAgent,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	p, _ := PrincipalFrom(ctx)

	n, err := h.sessions.LogoutAll(ctx, p.UserID)
	if err != nil {
		h.writeSessionError(w, "auth.logout_all.fail", err)
		return
	}
	dev, _ := h.deviceFor(r, "")
	h.audit.Record(ctx, AuditEvent{
		Action: ActionLogoutAll, UserID: p.UserID, IP: dev.IP, UserAgent: dev.UserAgent,
		Meta: map[string]any{"sessions": n},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	p, _ := PrincipalFrom(ctx)

	rows, err := h.sessions.Sessions(ctx, p.UserID)
	if err != nil {
		h.writeSessionError(w, "auth.sessions.fail", err)
		return
	}
	out := sessionsResponse{Sessions: make([]sessionInfo, 0, len(rows))}
	for _, row := range rows {
		out.Sessions = append(out.Sessions, toSessionInfo(row, p.DeviceID))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(p.User)})
}

// ---- auth middleware ----

type principalKey struct{}

// RequireAuth validates the bearer token and stores the Principal in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "invalid_token", "missing bearer token")
			return
		}
		p, err := h.sessions.Validate(r.Context(), tok)
		if err != nil {
			h.writeSessionError(w, "auth.validate.fail", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// PrincipalFrom returns the Principal stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (session.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(session.Principal)
	return p, ok
}

// ---- error mapping ----

func (h *Handler) writeSessionError(w http.ResponseWriter, logMsg string, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid password")
	case errors.Is(err, session.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "user_not_found", "user not found")
	case errors.Is(err, session.ErrSessionCapReached):
		writeError(w, http.StatusConflict, "session_cap_reached", "too many active sessions; log out another device")
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
	case errors.Is(err, session.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session_expired", "session expired or invalid")
	default:
		h.log.Error(logMsg, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (h *Handler) writeIdentityError(w http.ResponseWriter, logMsg string, err error) {
	switch {
	case identity.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", "username or email already exists")
	case identity.IsInvalidInput(err):
		var op identity.OpError
		msg := "invalid input"
		if errors.As(err, &op) && op.Msg != "" {
			msg = op.Msg
		}
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
	default:
		h.log.Error(logMsg, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func isAuthMiss(err error) bool {
	return errors.Is(err, session.ErrInvalidCredentials) || errors.Is(err, session.ErrUserNotFound)
}

func reasonOf(err error) string {
	if errors.Is(err, session.ErrUserNotFound) {
		return "not_found"
	}
	return "bad_password"
}
