package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

// FacilityRepository defines the interface for facility operations
type FacilityRepository interface {
	Create(ctx context.Context, facility domain.Facility) (domain.Facility, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Facility, error)
	List(ctx context.Context) ([]domain.Facility, error)
	// Update writes facility when the stored revision equals expectedRevision and bumps it.
	Update(ctx context.Context, facility domain.Facility, expectedRevision int64) (domain.Facility, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// QuestionnaireRepository defines the interface for questionnaire versions, sections and questions
type QuestionnaireRepository interface {
	CreateVersion(ctx context.Context, version domain.QuestionnaireVersion) (domain.QuestionnaireVersion, error)
	GetVersion(ctx context.Context, id uuid.UUID) (domain.QuestionnaireVersion, error)
	ListVersions(ctx context.Context) ([]domain.QuestionnaireVersion, error)
	GetPublished(ctx context.Context) (domain.QuestionnaireVersion, error)
	// ArchivePublished archives whatever is currently published and returns the affected count.
	ArchivePublished(ctx context.Context, at time.Time) (int64, error)
	// MarkPublished publishes id only if it is still a draft.
	MarkPublished(ctx context.Context, id uuid.UUID, actor uuid.UUID, at time.Time) (domain.QuestionnaireVersion, error)

	ListSections(ctx context.Context, versionID uuid.UUID) ([]domain.Section, error)
	GetSection(ctx context.Context, id uuid.UUID) (domain.Section, error)
	CreateSection(ctx context.Context, section domain.Section) (domain.Section, error)
	UpdateSection(ctx context.Context, section domain.Section) (domain.Section, error)
	DeleteSection(ctx context.Context, id uuid.UUID) error
	SwapSectionOrder(ctx context.Context, a, b domain.Section) error

	ListQuestions(ctx context.Context, versionID uuid.UUID) ([]domain.Question, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (domain.Question, error)
	CreateQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	UpdateQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	// RetireQuestion marks the question retired unless it already is and returns the stored row.
	RetireQuestion(ctx context.Context, id uuid.UUID, at time.Time) (domain.Question, error)
	QuestionKeyExists(ctx context.Context, versionID uuid.UUID, key string) (bool, error)
}

// AuditRepository defines the interface for audits and their answers
type AuditRepository interface {
	Create(ctx context.Context, audit domain.Audit) (domain.Audit, error)
	// LatestForFacility returns the newest audit, limited to versionID when non-nil.
	LatestForFacility(ctx context.Context, facilityID uuid.UUID, versionID *uuid.UUID) (domain.Audit, error)
	ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]domain.Audit, error)
	ListAnswers(ctx context.Context, auditID uuid.UUID) ([]domain.AuditAnswer, error)
	UpsertAnswer(ctx context.Context, answer domain.AuditAnswer) (domain.AuditAnswer, error)
	// LatestAnswersByFacility resolves each facility's latest audit and returns its
	// answers keyed by question key.
	LatestAnswersByFacility(ctx context.Context, facilityIDs []uuid.UUID, versionID *uuid.UUID) (map[uuid.UUID]map[string]string, error)
}

// ChangeLogRepository is append only.
type ChangeLogRepository interface {
	Append(ctx context.Context, entries []domain.ChangeLog) error
	ListByFacility(ctx context.Context, facilityID uuid.UUID, limit int) ([]domain.ChangeLog, error)
}

// ProfileRepository defines the interface for user profile operations
type ProfileRepository interface {
	Create(ctx context.Context, profile domain.Profile) (domain.Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Profile, error)
	List(ctx context.Context) ([]domain.Profile, error)
	Update(ctx context.Context, profile domain.Profile) (domain.Profile, error)
}

// IdentityRepository stores credentials and login sessions.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) (domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)
	// Delete removes the identity; its profile and sessions cascade.
	Delete(ctx context.Context, id uuid.UUID) error

	CreateSession(ctx context.Context, session domain.SessionRecord) error
	GetSession(ctx context.Context, tokenHash string) (domain.SessionRecord, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// DisplayConfigRepository stores map tooltip and filter configuration.
type DisplayConfigRepository interface {
	ListTooltips(ctx context.Context, activeOnly bool) ([]domain.TooltipConfig, error)
	GetTooltip(ctx context.Context, id uuid.UUID) (domain.TooltipConfig, error)
	CreateTooltip(ctx context.Context, cfg domain.TooltipConfig) (domain.TooltipConfig, error)
	UpdateTooltip(ctx context.Context, cfg domain.TooltipConfig) (domain.TooltipConfig, error)
	DeleteTooltip(ctx context.Context, id uuid.UUID) error

	ListFilters(ctx context.Context, activeOnly bool) ([]domain.FilterConfig, error)
	GetFilter(ctx context.Context, id uuid.UUID) (domain.FilterConfig, error)
	CreateFilter(ctx context.Context, cfg domain.FilterConfig) (domain.FilterConfig, error)
	UpdateFilter(ctx context.Context, cfg domain.FilterConfig) (domain.FilterConfig, error)
	DeleteFilter(ctx context.Context, id uuid.UUID) error
}

// Store groups the repositories. WithinTx runs fn against a Store bound to one transaction;
// the transaction commits when fn returns nil.
type Store interface {
	Facilities() FacilityRepository
	Questionnaires() QuestionnaireRepository
	Audits() AuditRepository
	ChangeLogs() ChangeLogRepository
	Profiles() ProfileRepository
	Identities() IdentityRepository
	DisplayConfig() DisplayConfigRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}
