package auditing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/metrics"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository"
	"go.uber.org/zap"
)

const defaultChangeLogLimit = 100

// Service saves facility edits and audit answers with a change log trail.
type Service struct {
	store   repository.Store
	engine  *Engine
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store repository.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = NewEngine(s.metrics)
	return s
}

// Engine exposes the shared write engine.
func (s *Service) Engine() *Engine { return s.engine }

// SaveRequest is one submission of the facility page.
type SaveRequest struct {
	FacilityID uuid.UUID
	// ExpectedRevision is the revision the editor loaded; nil means the current one.
	ExpectedRevision *int64
	// Facility holds facility field edits; nil leaves the facility untouched.
	Facility domain.FacilityForm
	// VersionID selects the questionnaire; nil means the published version.
	VersionID *uuid.UUID
	// Answers maps question id to the new value.
	Answers map[uuid.UUID]string
}

// SaveResult summarises what a save persisted.
type SaveResult struct {
	Facility        domain.Facility `json:"facility"`
	Audit           *domain.Audit   `json:"audit,omitempty"`
	AuditCreated    bool            `json:"audit_created"`
	FacilityChanges int             `json:"facility_changes"`
	AnswerChanges   int             `json:"answer_changes"`
}

// Save applies facility edits, then answer edits. Each step is its own transaction;
// the first failure is returned and later steps do not run.
func (s *Service) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	const op = "auditing.save"
	session, err := auth.RequireSession(ctx, op)
	if err != nil {
		return SaveResult{}, err
	}
	logger := s.logger.With(zap.String("facility_id", req.FacilityID.String()), zap.String("actor", session.UserID.String()))

	facility, err := s.store.Facilities().GetByID(ctx, req.FacilityID)
	if err != nil {
		return SaveResult{}, err
	}
	if facility.IsDeleted {
		return SaveResult{}, domain.NotFoundError(op, "facility has been deleted")
	}

	var tree domain.QuestionnaireTree
	if len(req.Answers) > 0 {
		tree, err = questionnaire.ResolveVersion(ctx, s.store, req.VersionID)
		if err != nil {
			return SaveResult{}, err
		}
		if err := s.engine.ValidateAnswers(op, tree, req.Answers); err != nil {
			return SaveResult{}, err
		}
	}

	result := SaveResult{Facility: facility}

	if req.Facility != nil {
		expected := facility.Revision
		if req.ExpectedRevision != nil {
			expected = *req.ExpectedRevision
		}
		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			res, err := s.engine.ApplyFacility(ctx, tx, session.UserID, facility, req.Facility, expected)
			if err != nil {
				return err
			}
			result.Facility = res.Facility
			result.FacilityChanges = len(res.Changes)
			return nil
		})
		if err != nil {
			logger.Error("facility save failed", zap.Error(err))
			return result, err
		}
	}

	if len(req.Answers) > 0 {
		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			res, err := s.engine.ApplyAnswers(ctx, tx, session.UserID, facility.ID, tree, LatestAuditFor(facility.ID, tree), req.Answers)
			if err != nil {
				return err
			}
			if res.Audit.ID != uuid.Nil {
				audit := res.Audit
				result.Audit = &audit
			}
			result.AuditCreated = res.Created
			result.AnswerChanges = len(res.Changes)
			return nil
		})
		if err != nil {
			logger.Error("answer save failed", zap.Error(err))
			return result, err
		}
	}

	logger.Info("facility saved",
		zap.Int("facility_changes", result.FacilityChanges),
		zap.Int("answer_changes", result.AnswerChanges),
		zap.Bool("audit_created", result.AuditCreated),
	)
	return result, nil
}

// CreateFacility validates and inserts a facility, logging its creation.
func (s *Service) CreateFacility(ctx context.Context, form domain.FacilityForm) (domain.Facility, error) {
	session, err := auth.RequireSession(ctx, "auditing.create_facility")
	if err != nil {
		return domain.Facility{}, err
	}
	var created domain.Facility
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		created, err = s.engine.CreateFacility(ctx, tx, session.UserID, form, uuid.Nil)
		return err
	})
	if err != nil {
		return domain.Facility{}, err
	}
	s.logger.Info("facility created", zap.String("facility_id", created.ID.String()), zap.String("actor", session.UserID.String()))
	return created, nil
}

// SoftDeleteFacility hides a facility. Super admins only.
func (s *Service) SoftDeleteFacility(ctx context.Context, facilityID uuid.UUID) error {
	const op = "auditing.delete_facility"
	session, err := auth.Require(ctx, op, auth.CanDeleteFacilities)
	if err != nil {
		return err
	}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		facility, err := tx.Facilities().GetByID(ctx, facilityID)
		if err != nil {
			return err
		}
		if err := tx.Facilities().SoftDelete(ctx, facilityID); err != nil {
			return err
		}
		fid := facility.ID
		return tx.ChangeLogs().Append(ctx, []domain.ChangeLog{{
			FacilityID: &fid,
			EntityType: domain.ChangeEntityFacility,
			FieldName:  domain.ChangeFieldDeleted,
			OldValue:   domain.NullableString(facility.VenueName),
			ChangedBy:  session.UserID,
		}})
	})
	if err != nil {
		return err
	}
	s.logger.Info("facility deleted", zap.String("facility_id", facilityID.String()), zap.String("actor", session.UserID.String()))
	return nil
}

// FacilityDetail is everything the facility page shows.
type FacilityDetail struct {
	Facility      domain.Facility           `json:"facility"`
	Audits        []domain.AuditWithAnswers `json:"audits"`
	Questionnaire *domain.QuestionnaireTree `json:"questionnaire,omitempty"`
	ChangeLogs    []domain.ChangeLog        `json:"change_logs,omitempty"`
	LatestAnswers map[uuid.UUID]string      `json:"latest_answers"`
}

// GetFacilityDetail loads a facility with its audits (newest first), the published
// questionnaire and, for roles allowed to see them, recent change logs.
func (s *Service) GetFacilityDetail(ctx context.Context, facilityID uuid.UUID) (FacilityDetail, error) {
	const op = "auditing.facility_detail"
	session, err := auth.RequireSession(ctx, op)
	if err != nil {
		return FacilityDetail{}, err
	}

	facility, err := s.store.Facilities().GetByID(ctx, facilityID)
	if err != nil {
		return FacilityDetail{}, err
	}
	if facility.IsDeleted {
		return FacilityDetail{}, domain.NotFoundError(op, "facility has been deleted")
	}
	detail := FacilityDetail{Facility: facility, LatestAnswers: map[uuid.UUID]string{}}

	audits, err := s.store.Audits().ListByFacility(ctx, facilityID)
	if err != nil {
		return FacilityDetail{}, err
	}
	versions := map[uuid.UUID]domain.QuestionnaireVersion{}
	for _, a := range audits {
		version, ok := versions[a.QuestionnaireVersionID]
		if !ok {
			version, err = s.store.Questionnaires().GetVersion(ctx, a.QuestionnaireVersionID)
			if err != nil {
				return FacilityDetail{}, err
			}
			versions[version.ID] = version
		}
		answers, err := s.store.Audits().ListAnswers(ctx, a.ID)
		if err != nil {
			return FacilityDetail{}, err
		}
		detail.Audits = append(detail.Audits, domain.AuditWithAnswers{Audit: a, Answers: answers, QuestionnaireVersion: version})
	}
	domain.SortAuditsNewestFirst(detail.Audits)

	tree, err := questionnaire.LoadPublishedTree(ctx, s.store)
	switch {
	case err == nil:
		detail.Questionnaire = &tree
		for _, a := range detail.Audits {
			if a.QuestionnaireVersionID == tree.ID {
				detail.LatestAnswers = a.AnswerMap()
				break
			}
		}
	case domain.KindOf(err) == domain.ErrNotFound:
	default:
		return FacilityDetail{}, err
	}

	if auth.CanViewChangeLogs(session.Role) {
		logs, err := s.store.ChangeLogs().ListByFacility(ctx, facilityID, defaultChangeLogLimit)
		if err != nil {
			return FacilityDetail{}, err
		}
		detail.ChangeLogs = logs
	}
	return detail, nil
}

// ListChangeLogs returns the newest change logs of a facility.
func (s *Service) ListChangeLogs(ctx context.Context, facilityID uuid.UUID, limit int) ([]domain.ChangeLog, error) {
	if _, err := auth.Require(ctx, "auditing.change_logs", auth.CanViewChangeLogs); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = defaultChangeLogLimit
	}
	return s.store.ChangeLogs().ListByFacility(ctx, facilityID, limit)
}
