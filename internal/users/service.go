package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

const errBadCredentials = "invalid email or password"

// Service manages accounts, credentials and login sessions.
type Service struct {
	store      repository.Store
	logger     *zap.Logger
	now        func() time.Time
	sessionTTL time.Duration
	bcryptCost int
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func NewService(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		logger:     zap.NewNop(),
		now:        time.Now,
		sessionTTL: 12 * time.Hour,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashToken is the form a session token is stored in.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// LoginResult carries the bearer token for later requests.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Profile   domain.Profile `json:"profile"`
}

// Login checks a password and opens a session. Inactive accounts cannot log in.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "users.login"
	identity, err := s.store.Identities().GetByEmail(ctx, email)
	if err != nil {
		if domain.KindOf(err) == domain.ErrNotFound {
			return LoginResult{}, domain.PermissionError(op, errBadCredentials)
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, domain.PermissionError(op, errBadCredentials)
	}
	profile, err := s.store.Profiles().GetByID(ctx, identity.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if !profile.IsActive {
		return LoginResult{}, domain.PermissionError(op, "account is disabled")
	}

	token, err := newToken()
	if err != nil {
		return LoginResult{}, err
	}
	expires := s.now().Add(s.sessionTTL)
	if err := s.store.Identities().CreateSession(ctx, domain.SessionRecord{
		TokenHash: HashToken(token),
		UserID:    identity.ID,
		ExpiresAt: expires,
	}); err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("user logged in", zap.String("user_id", profile.ID.String()))
	return LoginResult{Token: token, ExpiresAt: expires, Profile: profile}, nil
}

// Authenticate resolves a bearer token to a session.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.Session, error) {
	const op = "users.authenticate"
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Session{}, domain.PermissionError(op, "authentication required")
	}
	hash := HashToken(token)
	record, err := s.store.Identities().GetSession(ctx, hash)
	if err != nil {
		if domain.KindOf(err) == domain.ErrNotFound {
			return auth.Session{}, domain.PermissionError(op, "session is invalid")
		}
		return auth.Session{}, err
	}
	if record.Expired(s.now()) {
		_ = s.store.Identities().DeleteSession(ctx, hash)
		return auth.Session{}, domain.PermissionError(op, "session has expired")
	}
	profile, err := s.store.Profiles().GetByID(ctx, record.UserID)
	if err != nil {
		return auth.Session{}, err
	}
	if !profile.IsActive {
		return auth.Session{}, domain.PermissionError(op, "account is disabled")
	}
	return auth.Session{
		UserID:   profile.ID,
		Email:    profile.Email,
		FullName: profile.FullName,
		Role:     profile.Role,
		Token:    token,
	}, nil
}

// SessionFor builds a session for an existing active account without a password.
// Only operator tooling that already holds database access calls it.
func (s *Service) SessionFor(ctx context.Context, email string) (auth.Session, error) {
	const op = "users.session_for"
	identity, err := s.store.Identities().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return auth.Session{}, err
	}
	profile, err := s.store.Profiles().GetByID(ctx, identity.ID)
	if err != nil {
		return auth.Session{}, err
	}
	if !profile.IsActive {
		return auth.Session{}, domain.PermissionError(op, "account is disabled")
	}
	return auth.Session{
		UserID:   profile.ID,
		Email:    profile.Email,
		FullName: profile.FullName,
		Role:     profile.Role,
	}, nil
}

// Logout revokes the session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.Identities().DeleteSession(ctx, HashToken(strings.TrimSpace(token)))
}

// PurgeExpiredSessions deletes lapsed sessions.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.Identities().DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired sessions purged", zap.Int64("count", n))
	}
	return n, nil
}

// NewUser is the input for account creation.
type NewUser struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
}

func (u NewUser) validate(op string) (NewUser, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.FullName = strings.TrimSpace(u.FullName)
	if u.Email == "" || u.Password == "" {
		return u, domain.ValidationError(op, "Email and password are required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return u, domain.ValidationError(op, "%q is not a valid email address", u.Email)
	}
	if len(u.Password) < minPasswordLength {
		return u, domain.ValidationError(op, "password must be at least %d characters", minPasswordLength)
	}
	role, ok := domain.ParseRole(string(u.Role))
	if !ok {
		return u, domain.ValidationError(op, "unknown role %q", u.Role)
	}
	u.Role = role
	return u, nil
}

// CreateUser adds an identity and its active profile. Admins may only create auditors.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (domain.Profile, error) {
	const op = "users.create"
	session, err := auth.Require(ctx, op, auth.CanManageUsers)
	if err != nil {
		return domain.Profile{}, err
	}
	in, err = in.validate(op)
	if err != nil {
		return domain.Profile{}, err
	}
	if !auth.CanAssignRole(session.Role, in.Role) {
		return domain.Profile{}, domain.PermissionError(op, "Admins can only create auditor accounts")
	}
	profile, err := s.createAccount(ctx, op, in)
	if err != nil {
		return domain.Profile{}, err
	}
	s.logger.Info("user created",
		zap.String("user_id", profile.ID.String()),
		zap.String("role", string(profile.Role)),
		zap.String("actor", session.UserID.String()),
	)
	return profile, nil
}

// createAccount inserts the identity, then the profile. A failed profile insert
// removes the identity again.
func (s *Service) createAccount(ctx context.Context, op string, in NewUser) (domain.Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return domain.Profile{}, domain.ValidationError(op, "password is too long")
		}
		return domain.Profile{}, fmt.Errorf("hash password: %w", err)
	}
	identity, err := s.store.Identities().Create(ctx, domain.Identity{Email: in.Email, PasswordHash: string(hash)})
	if err != nil {
		if domain.KindOf(err) == domain.ErrConflict {
			return domain.Profile{}, domain.ConflictError(op, "a user with email %s already exists", in.Email)
		}
		return domain.Profile{}, err
	}
	profile, err := s.store.Profiles().Create(ctx, domain.Profile{
		ID:       identity.ID,
		Email:    in.Email,
		FullName: in.FullName,
		Role:     in.Role,
		IsActive: true,
	})
	if err != nil {
		if delErr := s.store.Identities().Delete(ctx, identity.ID); delErr != nil {
			s.logger.Error("identity cleanup failed", zap.String("identity_id", identity.ID.String()), zap.Error(delErr))
		}
		return domain.Profile{}, err
	}
	return profile, nil
}

// Bootstrap creates the first super admin. It refuses once any profile exists.
func (s *Service) Bootstrap(ctx context.Context, in NewUser) (domain.Profile, error) {
	const op = "users.bootstrap"
	existing, err := s.store.Profiles().List(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	if len(existing) > 0 {
		return domain.Profile{}, domain.InvalidStateError(op, "users already exist")
	}
	in.Role = domain.RoleSuperAdmin
	in, err = in.validate(op)
	if err != nil {
		return domain.Profile{}, err
	}
	return s.createAccount(ctx, op, in)
}

// List returns every profile.
func (s *Service) List(ctx context.Context) ([]domain.Profile, error) {
	if _, err := auth.Require(ctx, "users.list", auth.CanManageUsers); err != nil {
		return nil, err
	}
	return s.store.Profiles().List(ctx)
}

// UserUpdate holds the editable profile fields; nil leaves a field unchanged.
type UserUpdate struct {
	FullName *string      `json:"full_name"`
	Role     *domain.Role `json:"role"`
	IsActive *bool        `json:"is_active"`
}

// manageTarget loads id and checks actor may manage it. Admins only manage auditors.
func (s *Service) manageTarget(ctx context.Context, op string, session auth.Session, id uuid.UUID) (domain.Profile, error) {
	target, err := s.store.Profiles().GetByID(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if !auth.CanManageAllUsers(session.Role) && target.Role != domain.RoleAuditor {
		return domain.Profile{}, domain.PermissionError(op, "Admins can only manage auditor accounts")
	}
	return target, nil
}

// Update edits name, role or active flag.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UserUpdate) (domain.Profile, error) {
	const op = "users.update"
	session, err := auth.Require(ctx, op, auth.CanManageUsers)
	if err != nil {
		return domain.Profile{}, err
	}
	target, err := s.manageTarget(ctx, op, session, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if in.FullName != nil {
		target.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Role != nil {
		role, ok := domain.ParseRole(string(*in.Role))
		if !ok {
			return domain.Profile{}, domain.ValidationError(op, "unknown role %q", *in.Role)
		}
		if !auth.CanAssignRole(session.Role, role) {
			return domain.Profile{}, domain.PermissionError(op, "Admins can only assign the auditor role")
		}
		if id == session.UserID && role != target.Role {
			return domain.Profile{}, domain.ValidationError(op, "you cannot change your own role")
		}
		target.Role = role
	}
	if in.IsActive != nil {
		if id == session.UserID && !*in.IsActive {
			return domain.Profile{}, domain.ValidationError(op, "you cannot deactivate your own account")
		}
		target.IsActive = *in.IsActive
	}
	updated, err := s.store.Profiles().Update(ctx, target)
	if err != nil {
		return domain.Profile{}, err
	}
	s.logger.Info("user updated", zap.String("user_id", id.String()), zap.String("actor", session.UserID.String()))
	return updated, nil
}

// Delete removes the account with its profile and sessions.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "users.delete"
	session, err := auth.Require(ctx, op, auth.CanManageUsers)
	if err != nil {
		return err
	}
	if id == session.UserID {
		return domain.ValidationError(op, "you cannot delete your own account")
	}
	if _, err := s.manageTarget(ctx, op, session, id); err != nil {
		return err
	}
	if err := s.store.Identities().Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id.String()), zap.String("actor", session.UserID.String()))
	return nil
}
