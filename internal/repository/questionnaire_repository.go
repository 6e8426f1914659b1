package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/domain"
)

type questionnaireRepository struct {
	db db.DBTX
}

// NewQuestionnaireRepository creates a questionnaire repository over exec
func NewQuestionnaireRepository(exec db.DBTX) QuestionnaireRepository {
	return &questionnaireRepository{db: exec}
}

const versionColumns = `id, version_number, name, COALESCE(description, ''), status, published_at, published_by,
	created_by, created_at, updated_at`

func scanVersion(row pgx.Row) (domain.QuestionnaireVersion, error) {
	var v domain.QuestionnaireVersion
	var status string
	err := row.Scan(&v.ID, &v.VersionNumber, &v.Name, &v.Description, &status, &v.PublishedAt, &v.PublishedBy,
		&v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	v.Status = domain.QuestionnaireStatus(status)
	return v, err
}

func (r *questionnaireRepository) CreateVersion(ctx context.Context, v domain.QuestionnaireVersion) (domain.QuestionnaireVersion, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	// version_number is allocated in the same statement so concurrent creators cannot collide silently;
	// a lost race surfaces as a unique violation.
	row := r.db.QueryRow(ctx, `
		INSERT INTO questionnaire_versions (id, version_number, name, description, status, created_by)
		SELECT $1, COALESCE(MAX(version_number), 0) + 1, $2, NULLIF($3, ''), 'draft', $4 FROM questionnaire_versions
		RETURNING `+versionColumns,
		v.ID, v.Name, v.Description, v.CreatedBy,
	)
	created, err := scanVersion(row)
	if err != nil {
		return domain.QuestionnaireVersion{}, mapError("create questionnaire version", err)
	}
	return created, nil
}

func (r *questionnaireRepository) GetVersion(ctx context.Context, id uuid.UUID) (domain.QuestionnaireVersion, error) {
	v, err := scanVersion(r.db.QueryRow(ctx, `SELECT `+versionColumns+` FROM questionnaire_versions WHERE id = $1`, id))
	if err != nil {
		return domain.QuestionnaireVersion{}, mapError("get questionnaire version", err)
	}
	return v, nil
}

func (r *questionnaireRepository) ListVersions(ctx context.Context) ([]domain.QuestionnaireVersion, error) {
	rows, err := r.db.Query(ctx, `SELECT `+versionColumns+` FROM questionnaire_versions ORDER BY version_number DESC`)
	if err != nil {
		return nil, mapError("list questionnaire versions", err)
	}
	defer rows.Close()

	var out []domain.QuestionnaireVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, mapError("scan questionnaire version", err)
		}
		out = append(out, v)
	}
	return out, mapError("list questionnaire versions", rows.Err())
}

func (r *questionnaireRepository) GetPublished(ctx context.Context) (domain.QuestionnaireVersion, error) {
	v, err := scanVersion(r.db.QueryRow(ctx, `SELECT `+versionColumns+` FROM questionnaire_versions WHERE status = 'published'`))
	if err != nil {
		return domain.QuestionnaireVersion{}, mapError("get published questionnaire", err)
	}
	return v, nil
}

func (r *questionnaireRepository) ArchivePublished(ctx context.Context, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE questionnaire_versions SET status = 'archived', updated_at = $1
		WHERE status = 'published'`, at)
	if err != nil {
		return 0, mapError("archive published questionnaire", err)
	}
	return tag.RowsAffected(), nil
}

func (r *questionnaireRepository) MarkPublished(ctx context.Context, id uuid.UUID, actor uuid.UUID, at time.Time) (domain.QuestionnaireVersion, error) {
	v, err := scanVersion(r.db.QueryRow(ctx, `
		UPDATE questionnaire_versions
		SET status = 'published', published_at = $2, published_by = $3, updated_at = $2
		WHERE id = $1 AND status = 'draft'
		RETURNING `+versionColumns, id, at, actor))
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionnaireVersion{}, mapError("publish questionnaire", err)
	}
	current, getErr := r.GetVersion(ctx, id)
	if getErr != nil {
		return domain.QuestionnaireVersion{}, getErr
	}
	return domain.QuestionnaireVersion{}, domain.InvalidStateError("publish questionnaire",
		"questionnaire version %d is %s; only drafts can be published", current.VersionNumber, current.Status)
}

const sectionColumns = `id, questionnaire_version_id, name, COALESCE(description, ''), sort_order, created_at, updated_at`

func scanSection(row pgx.Row) (domain.Section, error) {
	var s domain.Section
	err := row.Scan(&s.ID, &s.QuestionnaireVersionID, &s.Name, &s.Description, &s.SortOrder, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *questionnaireRepository) ListSections(ctx context.Context, versionID uuid.UUID) ([]domain.Section, error) {
	rows, err := r.db.Query(ctx, `SELECT `+sectionColumns+` FROM sections WHERE questionnaire_version_id = $1 ORDER BY sort_order`, versionID)
	if err != nil {
		return nil, mapError("list sections", err)
	}
	defer rows.Close()

	var out []domain.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, mapError("scan section", err)
		}
		out = append(out, s)
	}
	return out, mapError("list sections", rows.Err())
}

func (r *questionnaireRepository) GetSection(ctx context.Context, id uuid.UUID) (domain.Section, error) {
	s, err := scanSection(r.db.QueryRow(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id = $1`, id))
	if err != nil {
		return domain.Section{}, mapError("get section", err)
	}
	return s, nil
}

func (r *questionnaireRepository) CreateSection(ctx context.Context, s domain.Section) (domain.Section, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	created, err := scanSection(r.db.QueryRow(ctx, `
		INSERT INTO sections (id, questionnaire_version_id, name, description, sort_order)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING `+sectionColumns,
		s.ID, s.QuestionnaireVersionID, s.Name, s.Description, s.SortOrder))
	if err != nil {
		return domain.Section{}, mapError("create section", err)
	}
	return created, nil
}

func (r *questionnaireRepository) UpdateSection(ctx context.Context, s domain.Section) (domain.Section, error) {
	updated, err := scanSection(r.db.QueryRow(ctx, `
		UPDATE sections SET name = $2, description = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING `+sectionColumns,
		s.ID, s.Name, s.Description))
	if err != nil {
		return domain.Section{}, mapError("update section", err)
	}
	return updated, nil
}

func (r *questionnaireRepository) DeleteSection(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return mapError("delete section", err)
	}
	return requireAffected("delete section", tag)
}

func (r *questionnaireRepository) SwapSectionOrder(ctx context.Context, a, b domain.Section) error {
	// The unique (version, sort_order) constraint is deferred, so both rows can be
	// rewritten in one statement.
	tag, err := r.db.Exec(ctx, `
		UPDATE sections SET sort_order = CASE id WHEN $1 THEN $2::int ELSE $3::int END, updated_at = NOW()
		WHERE id IN ($1, $4)`,
		a.ID, b.SortOrder, a.SortOrder, b.ID)
	if err != nil {
		return mapError("reorder sections", err)
	}
	if tag.RowsAffected() != 2 {
		return domain.NotFoundError("reorder sections", "section not found")
	}
	return nil
}

const questionColumns = `id, section_id, questionnaire_version_id, question_key, label, COALESCE(description, ''),
	question_type, options, is_required, sort_order, is_retired, retired_at, created_at, updated_at`

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	var qt string
	var options []byte
	err := row.Scan(&q.ID, &q.SectionID, &q.QuestionnaireVersionID, &q.QuestionKey, &q.Label, &q.Description,
		&qt, &options, &q.IsRequired, &q.SortOrder, &q.IsRetired, &q.RetiredAt, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return q, err
	}
	q.Type = domain.QuestionType(qt)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return q, fmt.Errorf("decode options for question %s: %w", q.ID, err)
		}
	}
	return q, nil
}

func encodeOptions(options []string) ([]byte, error) {
	if len(options) == 0 {
		return nil, nil
	}
	return json.Marshal(options)
}

func (r *questionnaireRepository) ListQuestions(ctx context.Context, versionID uuid.UUID) ([]domain.Question, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+questionColumns+` FROM questions
		WHERE questionnaire_version_id = $1
		ORDER BY section_id, sort_order`, versionID)
	if err != nil {
		return nil, mapError("list questions", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, mapError("scan question", err)
		}
		out = append(out, q)
	}
	return out, mapError("list questions", rows.Err())
}

func (r *questionnaireRepository) GetQuestion(ctx context.Context, id uuid.UUID) (domain.Question, error) {
	q, err := scanQuestion(r.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return domain.Question{}, mapError("get question", err)
	}
	return q, nil
}

func (r *questionnaireRepository) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	options, err := encodeOptions(q.Options)
	if err != nil {
		return domain.Question{}, fmt.Errorf("encode options: %w", err)
	}
	created, err := scanQuestion(r.db.QueryRow(ctx, `
		INSERT INTO questions (id, section_id, questionnaire_version_id, question_key, label, description,
			question_type, options, is_required, sort_order)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
		RETURNING `+questionColumns,
		q.ID, q.SectionID, q.QuestionnaireVersionID, q.QuestionKey, q.Label, q.Description,
		string(q.Type), options, q.IsRequired, q.SortOrder))
	if err != nil {
		return domain.Question{}, mapError("create question", err)
	}
	return created, nil
}

// UpdateQuestion never touches question_key or retirement.
func (r *questionnaireRepository) UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	options, err := encodeOptions(q.Options)
	if err != nil {
		return domain.Question{}, fmt.Errorf("encode options: %w", err)
	}
	updated, err := scanQuestion(r.db.QueryRow(ctx, `
		UPDATE questions
		SET label = $2, description = NULLIF($3, ''), question_type = $4, options = $5, is_required = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+questionColumns,
		q.ID, q.Label, q.Description, string(q.Type), options, q.IsRequired))
	if err != nil {
		return domain.Question{}, mapError("update question", err)
	}
	return updated, nil
}

func (r *questionnaireRepository) RetireQuestion(ctx context.Context, id uuid.UUID, at time.Time) (domain.Question, error) {
	if _, err := r.db.Exec(ctx, `
		UPDATE questions SET is_retired = TRUE, retired_at = $2, updated_at = $2
		WHERE id = $1 AND is_retired = FALSE`, id, at); err != nil {
		return domain.Question{}, mapError("retire question", err)
	}
	return r.GetQuestion(ctx, id)
}

func (r *questionnaireRepository) QuestionKeyExists(ctx context.Context, versionID uuid.UUID, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM questions WHERE questionnaire_version_id = $1 AND question_key = $2)`,
		versionID, key).Scan(&exists)
	if err != nil {
		return false, mapError("check question key", err)
	}
	return exists, nil
}
