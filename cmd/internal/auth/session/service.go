package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gatehouse/cmd/identity"
	"gatehouse/cmd/identity/ids"
	"gatehouse/cmd/security/token"
)

// Device identifies the client a session is bound to.
type Device struct {
	ID        string
	UserAgent string
	IP        string
}

// Principal is the authenticated identity attached to a validated request.
type Principal struct {
	UserID    string
	Username  string
	DeviceID  string
	SessionID string
	User      identity.User
}

// Issued is the result of opening or rotating a session. The plaintext tokens
// are only ever returned here.
type Issued struct {
	SessionID    string
	DeviceID     string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
	RefreshCount int
}

// LoginResult pairs the authenticated user with the issued session.
type LoginResult struct {
	User   identity.User
	Issued Issued
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Store       Store
	Users       identity.Store
	Credentials *CredentialVerifier
	Tokens      AccessTokenManager
	Hasher      *token.Hasher
}

// Service implements login, refresh, validate and revocation.
type Service struct {
	cfg     Config
	store   Store
	users   identity.Store
	creds   *CredentialVerifier
	tokens  AccessTokenManager
	hasher  *token.Hasher
	log     *slog.Logger
	metrics *Metrics
	now     func() time.Time

	bgMu   sync.Mutex
	bg     sync.WaitGroup
	closed bool
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now; tests use it to move across expiry boundaries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service. A nil Hasher means plain SHA-256.
func NewService(cfg Config, deps Deps, opts ...Option) (*Service, error) {
	if deps.Store == nil || deps.Users == nil || deps.Credentials == nil || deps.Tokens == nil {
		return nil, errors.New("session: missing dependency")
	}
	if cfg.MaxSessionsPerUser < 1 || cfg.StoreTimeout <= 0 {
		return nil, ErrConfig
	}
	s := &Service{
		cfg:    cfg,
		store:  deps.Store,
		users:  deps.Users,
		creds:  deps.Credentials,
		tokens: deps.Tokens,
		hasher: deps.Hasher,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if s.hasher == nil {
		s.hasher = token.NewHasher(nil)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Wait stops new background last-check updates and blocks until running ones finish.
// Validate keeps working afterwards; it just skips the touch.
func (s *Service) Wait() {
	s.bgMu.Lock()
	s.closed = true
	s.bgMu.Unlock()
	s.bg.Wait()
}

// storeCall runs fn under the store timeout and records its latency.
func (s *Service) storeCall(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	s.metrics.observeStore(op, start)
	return err
}

// Login verifies credentials and opens (or replaces) the session for dev.
func (s *Service) Login(ctx context.Context, username, plain string, dev Device) (res LoginResult, err error) {
	defer func() { s.metrics.login(err) }()

	if !validDeviceID(dev.ID) {
		return LoginResult{}, ErrInvalidInput
	}
	user, err := s.creds.Verify(ctx, username, plain)
	if err != nil {
		return LoginResult{}, err
	}
	issued, err := s.Open(ctx, user, dev)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user, Issued: issued}, nil
}

// Open refuses the login once the user holds MaxSessionsPerUser live sessions, otherwise it
// upserts the (user, device) row with fresh tokens. The cap is soft under concurrent logins.
func (s *Service) Open(ctx context.Context, user identity.User, dev Device) (Issued, error) {
	if user.ID == "" || !validDeviceID(dev.ID) {
		return Issued{}, ErrInvalidInput
	}
	now := s.now()

	if err := s.checkCap(ctx, user.ID, now); err != nil {
		return Issued{}, err
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Issued{}, err
	}
	pair, err := s.mint(user, dev.ID, now)
	if err != nil {
		return Issued{}, err
	}

	var row Row
	err = s.storeCall(ctx, "upsert", func(ctx context.Context) error {
		var err error
		row, err = s.store.Upsert(ctx, UpsertInput{
			ID:               id,
			UserID:           user.ID,
			DeviceID:         dev.ID,
			AccessTokenHash:  s.hasher.Hash(pair.AccessToken),
			RefreshTokenHash: s.hasher.Hash(pair.RefreshToken),
			AccessExpiresAt:  pair.AccessExp,
			RefreshExpiresAt: pair.RefreshExp,
			Now:              now,
			UserAgent:        dev.UserAgent,
			IP:               dev.IP,
		})
		return err
	})
	if err != nil {
		return Issued{}, fmt.Errorf("upsert session: %w", err)
	}

	pair.SessionID = row.ID
	pair.RefreshCount = row.RefreshCount
	return pair, nil
}

func validDeviceID(id string) bool {
	return strings.TrimSpace(id) != "" && len(id) <= MaxDeviceIDLen
}

// checkCap refuses a login once MaxSessionsPerUser sessions are live, including
// re-logins from a device that already holds one. It is not atomic with the upsert;
// concurrent logins may overshoot the cap by the number of racers.
func (s *Service) checkCap(ctx context.Context, userID string, now time.Time) error {
	var active int
	err := s.storeCall(ctx, "count_active", func(ctx context.Context) error {
		var err error
		active, err = s.store.CountActive(ctx, userID, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	if active >= s.cfg.MaxSessionsPerUser {
		return CapError{Limit: s.cfg.MaxSessionsPerUser, Active: active}
	}
	return nil
}

// mint issues a fresh access/refresh pair for user on deviceID.
func (s *Service) mint(user identity.User, deviceID string, now time.Time) (Issued, error) {
	access, accessExp, err := s.tokens.Issue(Subject{
		UserID:   user.ID,
		Username: user.Username,
		DeviceID: deviceID,
	}, now)
	if err != nil {
		return Issued{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return Issued{
		DeviceID:     deviceID,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   now.Add(s.cfg.RefreshTokenTTL),
	}, nil
}

// Refresh exchanges a live refresh token bound to deviceID for a new pair.
// Every miss (unknown, wrong device, expired, already rotated, lost race) is ErrSessionNotFound.
func (s *Service) Refresh(ctx context.Context, refreshToken, deviceID string) (issued Issued, err error) {
	defer func() { s.metrics.refresh(err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	deviceID = strings.TrimSpace(deviceID)
	if refreshToken == "" || !validDeviceID(deviceID) {
		return Issued{}, ErrInvalidInput
	}
	if len(refreshToken) > maxRefreshTokenLen {
		return Issued{}, ErrSessionNotFound
	}

	now := s.now()
	oldHash := s.hasher.Hash(refreshToken)

	var row Row
	err = s.storeCall(ctx, "find_by_refresh", func(ctx context.Context) error {
		var err error
		row, err = s.store.FindByRefresh(ctx, oldHash, deviceID, now)
		return err
	})
	if err != nil {
		return Issued{}, s.wrapStoreErr("find session", err)
	}

	user, err := s.loadUser(ctx, row.UserID)
	if err != nil {
		return Issued{}, err
	}

	pair, err := s.mint(user, deviceID, now)
	if err != nil {
		return Issued{}, err
	}

	err = s.storeCall(ctx, "rotate", func(ctx context.Context) error {
		var err error
		row, err = s.store.Rotate(ctx, RotateInput{
			OldRefreshHash:   oldHash,
			DeviceID:         deviceID,
			AccessTokenHash:  s.hasher.Hash(pair.AccessToken),
			RefreshTokenHash: s.hasher.Hash(pair.RefreshToken),
			AccessExpiresAt:  pair.AccessExp,
			RefreshExpiresAt: pair.RefreshExp,
			Now:              now,
		})
		return err
	})
	if err != nil {
		return Issued{}, s.wrapStoreErr("rotate session", err)
	}

	pair.SessionID = row.ID
	pair.RefreshCount = row.RefreshCount
	return pair, nil
}

// Validate authenticates an access token: signature, then a live row for its
// hash and device, then the owning user. The last-check stamp is written in
// the background and never fails the call.
func (s *Service) Validate(ctx context.Context, accessToken string) (p Principal, err error) {
	defer func() { s.metrics.validation(err) }()

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Principal{}, ErrInvalidToken
	}
	now := s.now()

	claims, err := s.tokens.Verify(accessToken, now)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	var row Row
	err = s.storeCall(ctx, "find_by_access", func(ctx context.Context) error {
		var err error
		row, err = s.store.FindByAccess(ctx, s.hasher.Hash(accessToken), claims.DeviceID, now)
		return err
	})
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return Principal{}, ErrSessionExpired
	case err != nil:
		return Principal{}, fmt.Errorf("find session: %w", err)
	case row.UserID != claims.UserID:
		return Principal{}, ErrSessionExpired
	}

	s.touchAsync(row.ID, now)

	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return Principal{}, err
	}

	return Principal{
		UserID:    user.ID,
		Username:  user.Username,
		DeviceID:  row.DeviceID,
		SessionID: row.ID,
		User:      user,
	}, nil
}

func (s *Service) touchAsync(sessionID string, now time.Time) {
	s.bgMu.Lock()
	if s.closed {
		s.bgMu.Unlock()
		return
	}
	s.bg.Add(1)
	s.bgMu.Unlock()

	go func() {
		defer s.bg.Done()
		err := s.storeCall(context.Background(), "touch_last_check", func(ctx context.Context) error {
			return s.store.TouchLastCheck(ctx, sessionID, now)
		})
		if err != nil {
			s.log.Warn("session.touch_last_check.fail", "session_id", sessionID, "err", err)
		}
	}()
}

// loadUser maps a missing user to ErrUserMissing; lookups never fail open.
func (s *Service) loadUser(ctx context.Context, userID string) (identity.User, error) {
	var user identity.User
	err := s.storeCall(ctx, "get_user", func(ctx context.Context) error {
		var err error
		user, err = s.users.GetUserByID(ctx, userID)
		return err
	})
	switch {
	case identity.IsNotFound(err):
		s.log.Error("session.user_missing", "user_id", userID)
		return identity.User{}, fmt.Errorf("%w: %s", ErrUserMissing, userID)
	case err != nil:
		return identity.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Logout deletes the session for (userID, deviceID). Deleting nothing is not an error.
func (s *Service) Logout(ctx context.Context, userID, deviceID string) error {
	if userID == "" || deviceID == "" {
		return ErrInvalidInput
	}
	err := s.storeCall(ctx, "delete_by_device", func(ctx context.Context) error {
		_, err := s.store.DeleteByDevice(ctx, userID, deviceID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.metrics.logout("device")
	return nil
}

// LogoutAll deletes every session of userID.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidInput
	}
	var n int64
	err := s.storeCall(ctx, "delete_all", func(ctx context.Context) error {
		var err error
		n, err = s.store.DeleteAll(ctx, userID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	s.metrics.logout("all")
	return n, nil
}

// Sessions lists userID's live sessions ordered by creation.
func (s *Service) Sessions(ctx context.Context, userID string) ([]Row, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	var rows []Row
	err := s.storeCall(ctx, "list_by_user", func(ctx context.Context) error {
		var err error
		rows, err = s.store.ListByUser(ctx, userID, s.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rows, nil
}

// wrapStoreErr keeps ErrSessionNotFound bare and wraps everything else.
func (s *Service) wrapStoreErr(what string, err error) error {
	if errors.Is(err, ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}
