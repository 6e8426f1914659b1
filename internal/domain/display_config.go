package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldSource says whether a configured field reads a facility column or a question answer.
type FieldSource string

const (
	FieldSourceFacility FieldSource = "facility"
	FieldSourceQuestion FieldSource = "question"
)

// FilterType hints how the client renders a filter control.
type FilterType string

const (
	FilterTypeSelect      FilterType = "select"
	FilterTypeMultiSelect FilterType = "multi-select"
	FilterTypeRange       FilterType = "range"
	FilterTypeText        FilterType = "text"
)

func (t FilterType) Valid() bool {
	switch t {
	case FilterTypeSelect, FilterTypeMultiSelect, FilterTypeRange, FilterTypeText:
		return true
	}
	return false
}

// FieldRef points at a facility column or a question key.
type FieldRef struct {
	Source FieldSource `json:"field_source"`
	Key    string      `json:"field_key"`
}

// String renders the "source:key" form used in filter query parameters.
func (r FieldRef) String() string {
	return string(r.Source) + ":" + r.Key
}

// ParseFieldRef parses "source:key".
func ParseFieldRef(raw string) (FieldRef, bool) {
	source, key, ok := strings.Cut(raw, ":")
	if !ok || key == "" {
		return FieldRef{}, false
	}
	ref := FieldRef{Source: FieldSource(source), Key: key}
	return ref, ref.Source == FieldSourceFacility || ref.Source == FieldSourceQuestion
}

// Validate checks the reference against the facility registry. Question keys are
// checked by callers that have a questionnaire loaded.
func (r FieldRef) Validate(op string) error {
	switch r.Source {
	case FieldSourceFacility:
		if _, ok := ParseFacilityField(r.Key); !ok {
			return ValidationError(op, "unknown facility field %q", r.Key)
		}
	case FieldSourceQuestion:
		if strings.TrimSpace(r.Key) == "" {
			return ValidationError(op, "question key is required")
		}
	default:
		return ValidationError(op, "field_source must be facility or question")
	}
	return nil
}

type TooltipConfig struct {
	FieldRef
	ID           uuid.UUID `json:"id"`
	DisplayLabel string    `json:"display_label"`
	SortOrder    int       `json:"sort_order"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type FilterConfig struct {
	FieldRef
	ID           uuid.UUID  `json:"id"`
	DisplayLabel string     `json:"display_label"`
	FilterType   FilterType `json:"filter_type"`
	SortOrder    int        `json:"sort_order"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
