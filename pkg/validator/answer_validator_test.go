package validator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

func TestAnswerValidatorByType(t *testing.T) {
	v := NewAnswerValidator()

	number := domain.Question{ID: uuid.New(), QuestionKey: "capacity", Type: domain.QuestionTypeNumber}
	radio := domain.Question{ID: uuid.New(), QuestionKey: "surface", Type: domain.QuestionTypeRadio, Options: []string{"Grass", "Turf"}}
	boxes := domain.Question{ID: uuid.New(), QuestionKey: "amenities", Type: domain.QuestionTypeCheckbox, Options: []string{"Toilets", "Lights"}}

	cases := []struct {
		name  string
		q     domain.Question
		value string
		valid bool
	}{
		{"number ok", number, "12.5", true},
		{"number bad", number, "twelve", false},
		{"radio ok", radio, "Turf", true},
		{"radio unknown", radio, "Clay", false},
		{"checkbox ok", boxes, `["Toilets","Lights"]`, true},
		{"checkbox unknown", boxes, `["Pool"]`, false},
		{"checkbox malformed", boxes, `Toilets`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := v.ValidateAnswers(map[uuid.UUID]string{tc.q.ID: tc.value}, []domain.Question{tc.q})
			if result.IsValid != tc.valid {
				t.Fatalf("expected valid=%v, got %+v", tc.valid, result)
			}
		})
	}
}

func TestAnswerValidatorRequiredIsWarning(t *testing.T) {
	v := NewAnswerValidator()
	q := domain.Question{ID: uuid.New(), QuestionKey: "notes", Label: "Notes", Type: domain.QuestionTypeString, IsRequired: true}

	result := v.ValidateAnswers(map[uuid.UUID]string{}, []domain.Question{q})
	if !result.IsValid {
		t.Fatalf("missing required answers should not invalidate: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].QuestionKey != "notes" {
		t.Fatalf("expected one warning for notes, got %+v", result.Warnings)
	}
}
