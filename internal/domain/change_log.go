package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeEntityType identifies what a change log row describes.
type ChangeEntityType string

const (
	ChangeEntityFacility    ChangeEntityType = "facility"
	ChangeEntityAuditAnswer ChangeEntityType = "audit_answer"
)

// Synthetic field names for lifecycle events.
const (
	ChangeFieldCreated = "_created"
	ChangeFieldDeleted = "_deleted"
)

// ChangeLog is an immutable record of a single field transition.
// A nil value means the field was absent.
type ChangeLog struct {
	ID         uuid.UUID        `json:"id"`
	FacilityID *uuid.UUID       `json:"facility_id,omitempty"`
	AuditID    *uuid.UUID       `json:"audit_id,omitempty"`
	EntityType ChangeEntityType `json:"entity_type"`
	FieldName  string           `json:"field_name"`
	OldValue   *string          `json:"old_value"`
	NewValue   *string          `json:"new_value"`
	ChangedBy  uuid.UUID        `json:"changed_by"`
	ChangedAt  time.Time        `json:"changed_at"`
}

// NullableString maps "" to nil.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringOrEmpty dereferences p, treating nil as "".
func StringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
