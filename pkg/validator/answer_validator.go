package validator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

// AnswerValidator checks submitted answer values against their question definitions.
type AnswerValidator struct{}

// NewAnswerValidator creates a new answer validator
func NewAnswerValidator() *AnswerValidator {
	return &AnswerValidator{}
}

// ValidationError represents a validation error
type ValidationError struct {
	QuestionID  uuid.UUID `json:"question_id"`
	QuestionKey string    `json:"question_key"`
	Message     string    `json:"message"`
	Value       string    `json:"value,omitempty"`
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s", e.QuestionKey, e.Message)
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// Messages flattens the errors into "key: message" strings.
func (r ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.String())
	}
	return out
}

// ValidateAnswers validates answers keyed by question id. Questions absent from
// answers are only reported as warnings when required; blank values are never type checked.
func (v *AnswerValidator) ValidateAnswers(answers map[uuid.UUID]string, questions []domain.Question) ValidationResult {
	result := ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	for _, q := range questions {
		value, exists := answers[q.ID]
		if !exists || strings.TrimSpace(value) == "" || value == "[]" {
			if q.IsRequired && !q.IsRetired {
				result.Warnings = append(result.Warnings, ValidationError{
					QuestionID:  q.ID,
					QuestionKey: q.QuestionKey,
					Message:     fmt.Sprintf("required question '%s' has no answer", q.Label),
				})
			}
			continue
		}

		if err := v.ValidateValue(q, value); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				QuestionID:  q.ID,
				QuestionKey: q.QuestionKey,
				Message:     err.Error(),
				Value:       value,
			})
		}
	}

	return result
}

// ValidateValue checks a single non-blank value against the question type.
func (v *AnswerValidator) ValidateValue(q domain.Question, value string) error {
	switch q.Type {
	case domain.QuestionTypeString:
		return nil
	case domain.QuestionTypeNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return fmt.Errorf("expected a number, got %q", value)
		}
		return nil
	case domain.QuestionTypeList, domain.QuestionTypeRadio:
		if !containsOption(q.Options, value) {
			return fmt.Errorf("%q is not one of the allowed options", value)
		}
		return nil
	case domain.QuestionTypeCheckbox:
		var selected []string
		if err := json.Unmarshal([]byte(value), &selected); err != nil {
			return fmt.Errorf("expected a JSON array of options")
		}
		for _, s := range selected {
			if !containsOption(q.Options, s) {
				return fmt.Errorf("%q is not one of the allowed options", s)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported question type: %s", q.Type)
	}
}

func containsOption(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
