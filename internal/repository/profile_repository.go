package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/domain"
)

type profileRepository struct {
	db db.DBTX
}

// NewProfileRepository creates a profile repository over exec
func NewProfileRepository(exec db.DBTX) ProfileRepository {
	return &profileRepository{db: exec}
}

const profileColumns = `id, email, COALESCE(full_name, ''), role, is_active, created_at, updated_at`

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	var role string
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	p.Role = domain.Role(role)
	return p, err
}

func (r *profileRepository) Create(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	created, err := scanProfile(r.db.QueryRow(ctx, `
		INSERT INTO profiles (id, email, full_name, role, is_active)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING `+profileColumns,
		p.ID, strings.ToLower(p.Email), p.FullName, string(p.Role), p.IsActive))
	if err != nil {
		return domain.Profile{}, mapError("create profile", err)
	}
	return created, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return domain.Profile{}, mapError("get profile", err)
	}
	return p, nil
}

func (r *profileRepository) List(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, mapError("list profiles", err)
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, mapError("scan profile", err)
		}
		out = append(out, p)
	}
	return out, mapError("list profiles", rows.Err())
}

func (r *profileRepository) Update(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	updated, err := scanProfile(r.db.QueryRow(ctx, `
		UPDATE profiles SET full_name = NULLIF($2, ''), role = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+profileColumns,
		p.ID, p.FullName, string(p.Role), p.IsActive))
	if err != nil {
		return domain.Profile{}, mapError("update profile", err)
	}
	return updated, nil
}

type identityRepository struct {
	db db.DBTX
}

// NewIdentityRepository creates an identity repository over exec
func NewIdentityRepository(exec db.DBTX) IdentityRepository {
	return &identityRepository{db: exec}
}

func (r *identityRepository) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	var out domain.Identity
	err := r.db.QueryRow(ctx, `
		INSERT INTO auth_identities (id, email, password_hash) VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, created_at`,
		identity.ID, strings.ToLower(identity.Email), identity.PasswordHash,
	).Scan(&out.ID, &out.Email, &out.PasswordHash, &out.CreatedAt)
	if err != nil {
		return domain.Identity{}, mapError("create identity", err)
	}
	return out, nil
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	var out domain.Identity
	err := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM auth_identities WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&out.ID, &out.Email, &out.PasswordHash, &out.CreatedAt)
	if err != nil {
		return domain.Identity{}, mapError("get identity", err)
	}
	return out, nil
}

func (r *identityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_identities WHERE id = $1`, id)
	if err != nil {
		return mapError("delete identity", err)
	}
	return requireAffected("delete identity", tag)
}

func (r *identityRepository) CreateSession(ctx context.Context, s domain.SessionRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO auth_sessions (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		s.TokenHash, s.UserID, s.ExpiresAt)
	return mapError("create session", err)
}

func (r *identityRepository) GetSession(ctx context.Context, tokenHash string) (domain.SessionRecord, error) {
	var s domain.SessionRecord
	err := r.db.QueryRow(ctx, `
		SELECT token_hash, user_id, expires_at, created_at FROM auth_sessions WHERE token_hash = $1`, tokenHash,
	).Scan(&s.TokenHash, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return domain.SessionRecord{}, mapError("get session", err)
	}
	return s, nil
}

func (r *identityRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM auth_sessions WHERE token_hash = $1`, tokenHash)
	return mapError("delete session", err)
}

func (r *identityRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, mapError("delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
