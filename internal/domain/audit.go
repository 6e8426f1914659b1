package domain

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Audit is one response of a facility against a questionnaire version.
type Audit struct {
	ID                     uuid.UUID  `json:"id"`
	FacilityID             uuid.UUID  `json:"facility_id"`
	QuestionnaireVersionID uuid.UUID  `json:"questionnaire_version_id"`
	AuditDate              time.Time  `json:"audit_date"`
	Notes                  string     `json:"notes,omitempty"`
	CreatedBy              *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// AuditAnswer is unique per (audit, question).
type AuditAnswer struct {
	ID         uuid.UUID `json:"id"`
	AuditID    uuid.UUID `json:"audit_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AuditWithAnswers is an audit joined with its answers and version header.
type AuditWithAnswers struct {
	Audit
	Answers              []AuditAnswer        `json:"audit_answers"`
	QuestionnaireVersion QuestionnaireVersion `json:"questionnaire_version"`
}

// AnswerMap indexes answers by question id.
func (a AuditWithAnswers) AnswerMap() map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(a.Answers))
	for _, ans := range a.Answers {
		out[ans.QuestionID] = ans.Value
	}
	return out
}

// LatestAudit picks the most recently created audit. Ties keep the first seen.
func LatestAudit(audits []Audit) (Audit, bool) {
	if len(audits) == 0 {
		return Audit{}, false
	}
	latest := audits[0]
	for _, a := range audits[1:] {
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest, true
}

// SortAuditsNewestFirst orders audits by created_at descending.
func SortAuditsNewestFirst(audits []AuditWithAnswers) {
	sort.SliceStable(audits, func(i, j int) bool {
		return audits[i].CreatedAt.After(audits[j].CreatedAt)
	})
}

// EncodeCheckboxValue serialises selected checkbox options as a JSON array.
func EncodeCheckboxValue(values []string) string {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// DecodeCheckboxValue parses a stored checkbox value. Malformed, empty or null
// input yields an empty slice.
func DecodeCheckboxValue(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil || values == nil {
		return []string{}
	}
	return values
}
