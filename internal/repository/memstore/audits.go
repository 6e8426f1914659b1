package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

type audits struct{ s *Store }

func (r audits) Create(ctx context.Context, a domain.Audit) (domain.Audit, error) {
	unlock, err := r.s.lock("audits.Create")
	if err != nil {
		return domain.Audit{}, err
	}
	defer unlock()

	if _, ok := r.s.st.data.facilities[a.FacilityID]; !ok {
		return domain.Audit{}, domain.ValidationError("create audit", "referenced record does not exist")
	}
	if _, ok := r.s.st.data.versions[a.QuestionnaireVersionID]; !ok {
		return domain.Audit{}, domain.ValidationError("create audit", "referenced record does not exist")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := r.s.now()
	if a.AuditDate.IsZero() {
		a.AuditDate = now.Truncate(24 * time.Hour)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.st.data.audits[a.ID] = a
	return a, nil
}

// facilityAudits returns matching audits newest first. Caller holds mu.
func (r audits) facilityAudits(facilityID uuid.UUID, versionID *uuid.UUID) []domain.Audit {
	var out []domain.Audit
	for _, a := range r.s.st.data.audits {
		if a.FacilityID != facilityID {
			continue
		}
		if versionID != nil && a.QuestionnaireVersionID != *versionID {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r audits) LatestForFacility(ctx context.Context, facilityID uuid.UUID, versionID *uuid.UUID) (domain.Audit, error) {
	unlock, err := r.s.lock("audits.LatestForFacility")
	if err != nil {
		return domain.Audit{}, err
	}
	defer unlock()

	list := r.facilityAudits(facilityID, versionID)
	if len(list) == 0 {
		return domain.Audit{}, notFound("get latest audit")
	}
	return list[0], nil
}

func (r audits) ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]domain.Audit, error) {
	unlock, err := r.s.lock("audits.ListByFacility")
	if err != nil {
		return nil, err
	}
	defer unlock()

	return r.facilityAudits(facilityID, nil), nil
}

func (r audits) ListAnswers(ctx context.Context, auditID uuid.UUID) ([]domain.AuditAnswer, error) {
	unlock, err := r.s.lock("audits.ListAnswers")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []domain.AuditAnswer
	for k, a := range r.s.st.data.answers {
		if k.auditID == auditID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r audits) UpsertAnswer(ctx context.Context, a domain.AuditAnswer) (domain.AuditAnswer, error) {
	unlock, err := r.s.lock("audits.UpsertAnswer")
	if err != nil {
		return domain.AuditAnswer{}, err
	}
	defer unlock()

	if _, ok := r.s.st.data.audits[a.AuditID]; !ok {
		return domain.AuditAnswer{}, domain.ValidationError("upsert answer", "referenced record does not exist")
	}
	if _, ok := r.s.st.data.questions[a.QuestionID]; !ok {
		return domain.AuditAnswer{}, domain.ValidationError("upsert answer", "referenced record does not exist")
	}

	key := answerKey{auditID: a.AuditID, questionID: a.QuestionID}
	now := r.s.now()
	if existing, ok := r.s.st.data.answers[key]; ok {
		existing.Value = a.Value
		existing.UpdatedAt = now
		r.s.st.data.answers[key] = existing
		return existing, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.st.data.answers[key] = a
	return a, nil
}

func (r audits) LatestAnswersByFacility(ctx context.Context, facilityIDs []uuid.UUID, versionID *uuid.UUID) (map[uuid.UUID]map[string]string, error) {
	unlock, err := r.s.lock("audits.LatestAnswersByFacility")
	if err != nil {
		return nil, err
	}
	defer unlock()

	ids := facilityIDs
	if ids == nil {
		for id := range r.s.st.data.facilities {
			ids = append(ids, id)
		}
	}

	out := make(map[uuid.UUID]map[string]string)
	for _, facilityID := range ids {
		list := r.facilityAudits(facilityID, versionID)
		if len(list) == 0 {
			continue
		}
		latest := list[0]
		for k, ans := range r.s.st.data.answers {
			if k.auditID != latest.ID {
				continue
			}
			q, ok := r.s.st.data.questions[k.questionID]
			if !ok {
				continue
			}
			if out[facilityID] == nil {
				out[facilityID] = make(map[string]string)
			}
			out[facilityID][q.QuestionKey] = ans.Value
		}
	}
	return out, nil
}
