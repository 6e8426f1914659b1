package auditing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

// FieldChange is one facility field whose stringified value differs.
type FieldChange struct {
	Field    domain.FacilityField
	OldValue *string
	NewValue *string
}

// AnswerChange is one answer whose value differs from the stored one.
type AnswerChange struct {
	QuestionID uuid.UUID
	OldValue   *string
	NewValue   *string
}

// DiffFacility compares every tracked field of current against next. Values are
// compared in their string form; empty values are reported as nil.
func DiffFacility(current, next domain.Facility) []FieldChange {
	var changes []FieldChange
	for _, field := range domain.TrackedFacilityFields {
		oldValue := current.Get(field)
		newValue := next.Get(field)
		if oldValue == newValue {
			continue
		}
		changes = append(changes, FieldChange{
			Field:    field,
			OldValue: domain.NullableString(oldValue),
			NewValue: domain.NullableString(newValue),
		})
	}
	return changes
}

// DiffAnswers compares edits against existing answers, treating a missing answer
// as "". The result is ordered by the order slice, then by question id for
// questions order does not mention.
func DiffAnswers(existing, edits map[uuid.UUID]string, order []uuid.UUID) []AnswerChange {
	rank := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	var changes []AnswerChange
	for questionID, newValue := range edits {
		oldValue := existing[questionID]
		if oldValue == newValue {
			continue
		}
		changes = append(changes, AnswerChange{
			QuestionID: questionID,
			OldValue:   domain.NullableString(oldValue),
			NewValue:   domain.NullableString(newValue),
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		ri, iok := rank[changes[i].QuestionID]
		rj, jok := rank[changes[j].QuestionID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return changes[i].QuestionID.String() < changes[j].QuestionID.String()
		}
	})
	return changes
}

// FacilityLogs turns facility changes into change log rows.
func FacilityLogs(facilityID, actor uuid.UUID, changes []FieldChange) []domain.ChangeLog {
	logs := make([]domain.ChangeLog, 0, len(changes))
	for _, c := range changes {
		id := facilityID
		logs = append(logs, domain.ChangeLog{
			FacilityID: &id,
			EntityType: domain.ChangeEntityFacility,
			FieldName:  string(c.Field),
			OldValue:   c.OldValue,
			NewValue:   c.NewValue,
			ChangedBy:  actor,
		})
	}
	return logs
}

// AnswerLogs turns answer changes into change log rows named by question key.
// A question missing from tree falls back to its id.
func AnswerLogs(facilityID, auditID, actor uuid.UUID, tree domain.QuestionnaireTree, changes []AnswerChange) []domain.ChangeLog {
	logs := make([]domain.ChangeLog, 0, len(changes))
	for _, c := range changes {
		fieldName := c.QuestionID.String()
		if q, ok := tree.FindQuestion(c.QuestionID); ok {
			fieldName = q.QuestionKey
		}
		fid, aid := facilityID, auditID
		logs = append(logs, domain.ChangeLog{
			FacilityID: &fid,
			AuditID:    &aid,
			EntityType: domain.ChangeEntityAuditAnswer,
			FieldName:  fieldName,
			OldValue:   c.OldValue,
			NewValue:   c.NewValue,
			ChangedBy:  actor,
		})
	}
	return logs
}

func questionOrder(tree domain.QuestionnaireTree) []uuid.UUID {
	all := tree.AllQuestions()
	out := make([]uuid.UUID, 0, len(all))
	for _, q := range all {
		out = append(out, q.ID)
	}
	return out
}
