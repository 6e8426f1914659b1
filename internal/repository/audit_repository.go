package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/domain"
)

type auditRepository struct {
	db db.DBTX
}

// NewAuditRepository creates an audit repository over exec
func NewAuditRepository(exec db.DBTX) AuditRepository {
	return &auditRepository{db: exec}
}

const auditColumns = `id, facility_id, questionnaire_version_id, audit_date, COALESCE(notes, ''), created_by, created_at, updated_at`

func scanAudit(row pgx.Row) (domain.Audit, error) {
	var a domain.Audit
	err := row.Scan(&a.ID, &a.FacilityID, &a.QuestionnaireVersionID, &a.AuditDate, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *auditRepository) Create(ctx context.Context, a domain.Audit) (domain.Audit, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	var auditDate any
	if !a.AuditDate.IsZero() {
		auditDate = a.AuditDate
	}
	created, err := scanAudit(r.db.QueryRow(ctx, `
		INSERT INTO audits (id, facility_id, questionnaire_version_id, audit_date, notes, created_by)
		VALUES ($1, $2, $3, COALESCE($4::date, CURRENT_DATE), NULLIF($5, ''), $6)
		RETURNING `+auditColumns,
		a.ID, a.FacilityID, a.QuestionnaireVersionID, auditDate, a.Notes, a.CreatedBy))
	if err != nil {
		return domain.Audit{}, mapError("create audit", err)
	}
	return created, nil
}

func (r *auditRepository) LatestForFacility(ctx context.Context, facilityID uuid.UUID, versionID *uuid.UUID) (domain.Audit, error) {
	a, err := scanAudit(r.db.QueryRow(ctx, `
		SELECT `+auditColumns+` FROM audits
		WHERE facility_id = $1 AND ($2::uuid IS NULL OR questionnaire_version_id = $2)
		ORDER BY created_at DESC, id
		LIMIT 1`, facilityID, versionID))
	if err != nil {
		return domain.Audit{}, mapError("get latest audit", err)
	}
	return a, nil
}

func (r *auditRepository) ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]domain.Audit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+auditColumns+` FROM audits WHERE facility_id = $1 ORDER BY created_at DESC, id`, facilityID)
	if err != nil {
		return nil, mapError("list audits", err)
	}
	defer rows.Close()

	var out []domain.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, mapError("scan audit", err)
		}
		out = append(out, a)
	}
	return out, mapError("list audits", rows.Err())
}

const answerColumns = `id, audit_id, question_id, COALESCE(value, ''), created_at, updated_at`

func scanAnswer(row pgx.Row) (domain.AuditAnswer, error) {
	var a domain.AuditAnswer
	err := row.Scan(&a.ID, &a.AuditID, &a.QuestionID, &a.Value, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *auditRepository) ListAnswers(ctx context.Context, auditID uuid.UUID) ([]domain.AuditAnswer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+answerColumns+` FROM audit_answers WHERE audit_id = $1`, auditID)
	if err != nil {
		return nil, mapError("list answers", err)
	}
	defer rows.Close()

	var out []domain.AuditAnswer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, mapError("scan answer", err)
		}
		out = append(out, a)
	}
	return out, mapError("list answers", rows.Err())
}

func (r *auditRepository) UpsertAnswer(ctx context.Context, a domain.AuditAnswer) (domain.AuditAnswer, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	saved, err := scanAnswer(r.db.QueryRow(ctx, `
		INSERT INTO audit_answers (id, audit_id, question_id, value)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (audit_id, question_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING `+answerColumns,
		a.ID, a.AuditID, a.QuestionID, a.Value))
	if err != nil {
		return domain.AuditAnswer{}, mapError("upsert answer", err)
	}
	return saved, nil
}

func (r *auditRepository) LatestAnswersByFacility(ctx context.Context, facilityIDs []uuid.UUID, versionID *uuid.UUID) (map[uuid.UUID]map[string]string, error) {
	rows, err := r.db.Query(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (facility_id) id, facility_id
			FROM audits
			WHERE ($1::uuid[] IS NULL OR facility_id = ANY($1))
			  AND ($2::uuid IS NULL OR questionnaire_version_id = $2)
			ORDER BY facility_id, created_at DESC, id
		)
		SELECT l.facility_id, q.question_key, COALESCE(ans.value, '')
		FROM latest l
		JOIN audit_answers ans ON ans.audit_id = l.id
		JOIN questions q ON q.id = ans.question_id`, facilityIDs, versionID)
	if err != nil {
		return nil, mapError("load latest answers", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]map[string]string)
	for rows.Next() {
		var facilityID uuid.UUID
		var key, value string
		if err := rows.Scan(&facilityID, &key, &value); err != nil {
			return nil, mapError("scan latest answer", err)
		}
		if out[facilityID] == nil {
			out[facilityID] = make(map[string]string)
		}
		out[facilityID][key] = value
	}
	return out, mapError("load latest answers", rows.Err())
}
