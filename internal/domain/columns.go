package domain

import "strings"

// Tabular column contract shared by templates, exports and imports.
const (
	ColumnFacilityID     = "facility_id"
	QuestionColumnPrefix = "q__"
)

// FacilityColumns is the fixed header: facility_id followed by every tracked field.
func FacilityColumns() []string {
	out := make([]string, 0, len(TrackedFacilityFields)+1)
	out = append(out, ColumnFacilityID)
	for _, f := range TrackedFacilityFields {
		out = append(out, string(f))
	}
	return out
}

// QuestionColumn names the dynamic column of a question key.
func QuestionColumn(key string) string { return QuestionColumnPrefix + key }

// ParseQuestionColumn returns the question key of a q__ column.
func ParseQuestionColumn(header string) (string, bool) {
	if !strings.HasPrefix(header, QuestionColumnPrefix) {
		return "", false
	}
	return strings.TrimPrefix(header, QuestionColumnPrefix), true
}

// AuditColumns is the fixed header followed by one q__ column per active question,
// in section then question order.
func AuditColumns(tree QuestionnaireTree) []string {
	out := FacilityColumns()
	for _, q := range tree.ActiveQuestions() {
		out = append(out, QuestionColumn(q.QuestionKey))
	}
	return out
}
