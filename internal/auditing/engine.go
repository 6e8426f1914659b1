package auditing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/metrics"
	"github.com/rpattn/auditdesk/internal/repository"
	"github.com/rpattn/auditdesk/pkg/validator"
)

// Engine writes facility and answer deltas with their change logs. Each Apply call
// expects a Store already bound to a transaction.
type Engine struct {
	validator *validator.AnswerValidator
	metrics   *metrics.Metrics
}

func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{validator: validator.NewAnswerValidator(), metrics: m}
}

// FacilityResult reports a facility write.
type FacilityResult struct {
	Facility domain.Facility
	Changes  []FieldChange
}

// ApplyFacility diffs form against current, updates the row when anything changed
// and appends one change log per changed field. A no-op edit writes nothing.
func (e *Engine) ApplyFacility(ctx context.Context, tx repository.Store, actor uuid.UUID, current domain.Facility, form domain.FacilityForm, expectedRevision int64) (FacilityResult, error) {
	next, err := current.Apply(form)
	if err != nil {
		return FacilityResult{}, err
	}
	changes := DiffFacility(current, next)
	if len(changes) == 0 {
		return FacilityResult{Facility: current}, nil
	}

	updated, err := tx.Facilities().Update(ctx, next, expectedRevision)
	if err != nil {
		return FacilityResult{}, err
	}
	if err := tx.ChangeLogs().Append(ctx, FacilityLogs(current.ID, actor, changes)); err != nil {
		return FacilityResult{}, err
	}
	e.metrics.ChangeLogsWritten(string(domain.ChangeEntityFacility), len(changes))
	return FacilityResult{Facility: updated, Changes: changes}, nil
}

// CreateFacility inserts a facility and logs its creation.
func (e *Engine) CreateFacility(ctx context.Context, tx repository.Store, actor uuid.UUID, form domain.FacilityForm, id uuid.UUID) (domain.Facility, error) {
	facility, err := domain.Facility{ID: id}.Apply(form)
	if err != nil {
		return domain.Facility{}, err
	}
	facility.CreatedBy = &actor
	created, err := tx.Facilities().Create(ctx, facility)
	if err != nil {
		return domain.Facility{}, err
	}
	fid := created.ID
	if err := tx.ChangeLogs().Append(ctx, []domain.ChangeLog{{
		FacilityID: &fid,
		EntityType: domain.ChangeEntityFacility,
		FieldName:  domain.ChangeFieldCreated,
		NewValue:   domain.NullableString(created.VenueName),
		ChangedBy:  actor,
	}}); err != nil {
		return domain.Facility{}, err
	}
	e.metrics.ChangeLogsWritten(string(domain.ChangeEntityFacility), 1)
	return created, nil
}

// AnswerResult reports an answer write.
type AnswerResult struct {
	Audit   domain.Audit
	Created bool
	Changes []AnswerChange
}

// AuditResolver picks the audit answers are written to.
type AuditResolver func(ctx context.Context, tx repository.Store) (domain.Audit, bool, error)

// LatestAuditFor resolves the newest audit of facility for the tree's version. found is
// false when none exists.
func LatestAuditFor(facilityID uuid.UUID, tree domain.QuestionnaireTree) AuditResolver {
	return func(ctx context.Context, tx repository.Store) (domain.Audit, bool, error) {
		versionID := tree.ID
		audit, err := tx.Audits().LatestForFacility(ctx, facilityID, &versionID)
		if err != nil {
			if domain.KindOf(err) == domain.ErrNotFound {
				return domain.Audit{}, false, nil
			}
			return domain.Audit{}, false, err
		}
		return audit, true, nil
	}
}

// Existing resolves to a known audit.
func Existing(audit domain.Audit) AuditResolver {
	return func(context.Context, repository.Store) (domain.Audit, bool, error) {
		return audit, true, nil
	}
}

// EnsureAudit returns the newest audit of facility for the tree's version, creating an
// empty one when none exists.
func (e *Engine) EnsureAudit(ctx context.Context, tx repository.Store, actor uuid.UUID, facilityID uuid.UUID, tree domain.QuestionnaireTree) (domain.Audit, error) {
	audit, found, err := LatestAuditFor(facilityID, tree)(ctx, tx)
	if err != nil || found {
		return audit, err
	}
	return tx.Audits().Create(ctx, domain.Audit{
		FacilityID:             facilityID,
		QuestionnaireVersionID: tree.ID,
		CreatedBy:              &actor,
	})
}

// ValidateAnswers checks edits against the tree. Unknown question ids and values that
// do not fit the question type are validation errors.
func (e *Engine) ValidateAnswers(op string, tree domain.QuestionnaireTree, edits map[uuid.UUID]string) error {
	var questions []domain.Question
	for id := range edits {
		q, ok := tree.FindQuestion(id)
		if !ok {
			return domain.ValidationError(op, "question %s is not part of questionnaire version %d", id, tree.VersionNumber)
		}
		questions = append(questions, q)
	}
	result := e.validator.ValidateAnswers(edits, questions)
	if !result.IsValid {
		return domain.ValidationError(op, "%s", strings.Join(result.Messages(), "; "))
	}
	return nil
}

// ApplyAnswers diffs edits against the resolved audit's answers, upserts every changed
// value and logs it. The audit is created on demand, and only when something changed.
func (e *Engine) ApplyAnswers(ctx context.Context, tx repository.Store, actor uuid.UUID, facilityID uuid.UUID, tree domain.QuestionnaireTree, resolve AuditResolver, edits map[uuid.UUID]string) (AnswerResult, error) {
	audit, found, err := resolve(ctx, tx)
	if err != nil {
		return AnswerResult{}, err
	}

	existing := map[uuid.UUID]string{}
	if found {
		answers, err := tx.Audits().ListAnswers(ctx, audit.ID)
		if err != nil {
			return AnswerResult{}, err
		}
		for _, a := range answers {
			existing[a.QuestionID] = a.Value
		}
	}

	changes := DiffAnswers(existing, edits, questionOrder(tree))
	if len(changes) == 0 {
		return AnswerResult{Audit: audit}, nil
	}

	result := AnswerResult{Changes: changes}
	if !found {
		audit, err = tx.Audits().Create(ctx, domain.Audit{
			FacilityID:             facilityID,
			QuestionnaireVersionID: tree.ID,
			CreatedBy:              &actor,
		})
		if err != nil {
			return AnswerResult{}, err
		}
		result.Created = true
	}
	result.Audit = audit

	for _, c := range changes {
		if _, err := tx.Audits().UpsertAnswer(ctx, domain.AuditAnswer{
			AuditID:    audit.ID,
			QuestionID: c.QuestionID,
			Value:      domain.StringOrEmpty(c.NewValue),
		}); err != nil {
			return AnswerResult{}, err
		}
	}
	if err := tx.ChangeLogs().Append(ctx, AnswerLogs(facilityID, audit.ID, actor, tree, changes)); err != nil {
		return AnswerResult{}, err
	}
	e.metrics.ChangeLogsWritten(string(domain.ChangeEntityAuditAnswer), len(changes))
	return result, nil
}
