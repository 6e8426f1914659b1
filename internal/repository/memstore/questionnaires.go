package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

type questionnaires struct{ s *Store }

func (r questionnaires) CreateVersion(ctx context.Context, v domain.QuestionnaireVersion) (domain.QuestionnaireVersion, error) {
	unlock, err := r.s.lock("questionnaires.CreateVersion")
	if err != nil {
		return domain.QuestionnaireVersion{}, err
	}
	defer unlock()

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	existing := make([]domain.QuestionnaireVersion, 0, len(r.s.st.data.versions))
	for _, other := range r.s.st.data.versions {
		existing = append(existing, other)
	}
	now := r.s.now()
	v.VersionNumber = domain.NextVersionNumber(existing)
	v.Status = domain.QuestionnaireStatusDraft
	v.PublishedAt, v.PublishedBy = nil, nil
	v.CreatedAt, v.UpdatedAt = now, now
	r.s.st.data.versions[v.ID] = v
	return v, nil
}

func (r questionnaires) GetVersion(ctx context.Context, id uuid.UUID) (domain.QuestionnaireVersion, error) {
	unlock, err := r.s.lock("questionnaires.GetVersion")
	if err != nil {
		return domain.QuestionnaireVersion{}, err
	}
	defer unlock()

	v, ok := r.s.st.data.versions[id]
	if !ok {
		return domain.QuestionnaireVersion{}, notFound("get questionnaire version")
	}
	return v, nil
}

func (r questionnaires) ListVersions(ctx context.Context) ([]domain.QuestionnaireVersion, error) {
	unlock, err := r.s.lock("questionnaires.ListVersions")
	if err != nil {
		return nil, err
	}
	defer unlock()

	return sortedValues(r.s.st.data.versions, func(a, b domain.QuestionnaireVersion) bool {
		return a.VersionNumber > b.VersionNumber
	}), nil
}

func (r questionnaires) GetPublished(ctx context.Context) (domain.QuestionnaireVersion, error) {
	unlock, err := r.s.lock("questionnaires.GetPublished")
	if err != nil {
		return domain.QuestionnaireVersion{}, err
	}
	defer unlock()

	for _, v := range r.s.st.data.versions {
		if v.Status == domain.QuestionnaireStatusPublished {
			return v, nil
		}
	}
	return domain.QuestionnaireVersion{}, notFound("get published questionnaire")
}

func (r questionnaires) ArchivePublished(ctx context.Context, at time.Time) (int64, error) {
	unlock, err := r.s.lock("questionnaires.ArchivePublished")
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for id, v := range r.s.st.data.versions {
		if v.Status == domain.QuestionnaireStatusPublished {
			v.Status = domain.QuestionnaireStatusArchived
			v.UpdatedAt = at
			r.s.st.data.versions[id] = v
			n++
		}
	}
	return n, nil
}

func (r questionnaires) MarkPublished(ctx context.Context, id uuid.UUID, actor uuid.UUID, at time.Time) (domain.QuestionnaireVersion, error) {
	unlock, err := r.s.lock("questionnaires.MarkPublished")
	if err != nil {
		return domain.QuestionnaireVersion{}, err
	}
	defer unlock()

	v, ok := r.s.st.data.versions[id]
	if !ok {
		return domain.QuestionnaireVersion{}, notFound("publish questionnaire")
	}
	if v.Status != domain.QuestionnaireStatusDraft {
		return domain.QuestionnaireVersion{}, domain.InvalidStateError("publish questionnaire",
			"questionnaire version %d is %s; only drafts can be published", v.VersionNumber, v.Status)
	}
	// Mirrors the partial unique index on published status.
	for _, other := range r.s.st.data.versions {
		if other.Status == domain.QuestionnaireStatusPublished {
			return domain.QuestionnaireVersion{}, conflict("publish questionnaire")
		}
	}
	v.Status = domain.QuestionnaireStatusPublished
	v.PublishedAt = &at
	v.PublishedBy = &actor
	v.UpdatedAt = at
	r.s.st.data.versions[id] = v
	return v, nil
}

func (r questionnaires) ListSections(ctx context.Context, versionID uuid.UUID) ([]domain.Section, error) {
	unlock, err := r.s.lock("questionnaires.ListSections")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []domain.Section
	for _, s := range r.s.st.data.sections {
		if s.QuestionnaireVersionID == versionID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r questionnaires) GetSection(ctx context.Context, id uuid.UUID) (domain.Section, error) {
	unlock, err := r.s.lock("questionnaires.GetSection")
	if err != nil {
		return domain.Section{}, err
	}
	defer unlock()

	s, ok := r.s.st.data.sections[id]
	if !ok {
		return domain.Section{}, notFound("get section")
	}
	return s, nil
}

func (r questionnaires) CreateSection(ctx context.Context, s domain.Section) (domain.Section, error) {
	unlock, err := r.s.lock("questionnaires.CreateSection")
	if err != nil {
		return domain.Section{}, err
	}
	defer unlock()

	if _, ok := r.s.st.data.versions[s.QuestionnaireVersionID]; !ok {
		return domain.Section{}, domain.ValidationError("create section", "referenced record does not exist")
	}
	for _, other := range r.s.st.data.sections {
		if other.QuestionnaireVersionID == s.QuestionnaireVersionID && other.SortOrder == s.SortOrder {
			return domain.Section{}, conflict("create section")
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := r.s.now()
	s.CreatedAt, s.UpdatedAt = now, now
	r.s.st.data.sections[s.ID] = s
	return s, nil
}

func (r questionnaires) UpdateSection(ctx context.Context, s domain.Section) (domain.Section, error) {
	unlock, err := r.s.lock("questionnaires.UpdateSection")
	if err != nil {
		return domain.Section{}, err
	}
	defer unlock()

	current, ok := r.s.st.data.sections[s.ID]
	if !ok {
		return domain.Section{}, notFound("update section")
	}
	current.Name = s.Name
	current.Description = s.Description
	current.UpdatedAt = r.s.now()
	r.s.st.data.sections[s.ID] = current
	return current, nil
}

func (r questionnaires) DeleteSection(ctx context.Context, id uuid.UUID) error {
	unlock, err := r.s.lock("questionnaires.DeleteSection")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.st.data.sections[id]; !ok {
		return notFound("delete section")
	}
	delete(r.s.st.data.sections, id)
	for qid, q := range r.s.st.data.questions {
		if q.SectionID == id {
			delete(r.s.st.data.questions, qid)
		}
	}
	return nil
}

func (r questionnaires) SwapSectionOrder(ctx context.Context, a, b domain.Section) error {
	unlock, err := r.s.lock("questionnaires.SwapSectionOrder")
	if err != nil {
		return err
	}
	defer unlock()

	sa, okA := r.s.st.data.sections[a.ID]
	sb, okB := r.s.st.data.sections[b.ID]
	if !okA || !okB {
		return domain.NotFoundError("reorder sections", "section not found")
	}
	now := r.s.now()
	sa.SortOrder, sb.SortOrder = b.SortOrder, a.SortOrder
	sa.UpdatedAt, sb.UpdatedAt = now, now
	r.s.st.data.sections[a.ID] = sa
	r.s.st.data.sections[b.ID] = sb
	return nil
}

func (r questionnaires) ListQuestions(ctx context.Context, versionID uuid.UUID) ([]domain.Question, error) {
	unlock, err := r.s.lock("questionnaires.ListQuestions")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []domain.Question
	for _, q := range r.s.st.data.questions {
		if q.QuestionnaireVersionID == versionID {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SectionID != out[j].SectionID {
			return out[i].SectionID.String() < out[j].SectionID.String()
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (r questionnaires) GetQuestion(ctx context.Context, id uuid.UUID) (domain.Question, error) {
	unlock, err := r.s.lock("questionnaires.GetQuestion")
	if err != nil {
		return domain.Question{}, err
	}
	defer unlock()

	q, ok := r.s.st.data.questions[id]
	if !ok {
		return domain.Question{}, notFound("get question")
	}
	return q, nil
}

func (r questionnaires) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	unlock, err := r.s.lock("questionnaires.CreateQuestion")
	if err != nil {
		return domain.Question{}, err
	}
	defer unlock()

	if _, ok := r.s.st.data.sections[q.SectionID]; !ok {
		return domain.Question{}, domain.ValidationError("create question", "referenced record does not exist")
	}
	for _, other := range r.s.st.data.questions {
		if other.QuestionnaireVersionID == q.QuestionnaireVersionID && other.QuestionKey == q.QuestionKey {
			return domain.Question{}, conflict("create question")
		}
	}
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	now := r.s.now()
	q.IsRetired, q.RetiredAt = false, nil
	q.Options = append([]string(nil), q.Options...)
	q.CreatedAt, q.UpdatedAt = now, now
	r.s.st.data.questions[q.ID] = q
	return q, nil
}

func (r questionnaires) UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	unlock, err := r.s.lock("questionnaires.UpdateQuestion")
	if err != nil {
		return domain.Question{}, err
	}
	defer unlock()

	current, ok := r.s.st.data.questions[q.ID]
	if !ok {
		return domain.Question{}, notFound("update question")
	}
	current.Label = q.Label
	current.Description = q.Description
	current.Type = q.Type
	current.Options = append([]string(nil), q.Options...)
	current.IsRequired = q.IsRequired
	current.UpdatedAt = r.s.now()
	r.s.st.data.questions[q.ID] = current
	return current, nil
}

func (r questionnaires) RetireQuestion(ctx context.Context, id uuid.UUID, at time.Time) (domain.Question, error) {
	unlock, err := r.s.lock("questionnaires.RetireQuestion")
	if err != nil {
		return domain.Question{}, err
	}
	defer unlock()

	q, ok := r.s.st.data.questions[id]
	if !ok {
		return domain.Question{}, notFound("retire question")
	}
	if !q.IsRetired {
		q.IsRetired = true
		q.RetiredAt = &at
		q.UpdatedAt = at
		r.s.st.data.questions[id] = q
	}
	return q, nil
}

func (r questionnaires) QuestionKeyExists(ctx context.Context, versionID uuid.UUID, key string) (bool, error) {
	unlock, err := r.s.lock("questionnaires.QuestionKeyExists")
	if err != nil {
		return false, err
	}
	defer unlock()

	for _, q := range r.s.st.data.questions {
		if q.QuestionnaireVersionID == versionID && q.QuestionKey == key {
			return true, nil
		}
	}
	return false, nil
}
