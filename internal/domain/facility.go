package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Facility is a venue record. Empty strings are stored as NULL.
type Facility struct {
	ID           uuid.UUID  `json:"id"`
	VenueName    string     `json:"venue_name"`
	VenueAddress string     `json:"venue_address"`
	TownSuburb   string     `json:"town_suburb"`
	Postcode     string     `json:"postcode"`
	State        string     `json:"state"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	IsDeleted    bool       `json:"is_deleted"`
	Revision     int64      `json:"revision"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FacilityField names a column in the field registry.
type FacilityField string

const (
	FieldVenueName    FacilityField = "venue_name"
	FieldVenueAddress FacilityField = "venue_address"
	FieldTownSuburb   FacilityField = "town_suburb"
	FieldPostcode     FacilityField = "postcode"
	FieldState        FacilityField = "state"
	FieldLatitude     FacilityField = "latitude"
	FieldLongitude    FacilityField = "longitude"
)

// facilityAccessor reads and writes one field as its string form.
type facilityAccessor struct {
	get func(Facility) string
	set func(*Facility, string) error
}

var facilityRegistry = map[FacilityField]facilityAccessor{
	FieldVenueName: {
		get: func(f Facility) string { return f.VenueName },
		set: func(f *Facility, v string) error { f.VenueName = v; return nil },
	},
	FieldVenueAddress: {
		get: func(f Facility) string { return f.VenueAddress },
		set: func(f *Facility, v string) error { f.VenueAddress = v; return nil },
	},
	FieldTownSuburb: {
		get: func(f Facility) string { return f.TownSuburb },
		set: func(f *Facility, v string) error { f.TownSuburb = v; return nil },
	},
	FieldPostcode: {
		get: func(f Facility) string { return f.Postcode },
		set: func(f *Facility, v string) error { f.Postcode = v; return nil },
	},
	FieldState: {
		get: func(f Facility) string { return f.State },
		set: func(f *Facility, v string) error { f.State = v; return nil },
	},
	FieldLatitude: {
		get: func(f Facility) string { return formatCoordinate(f.Latitude) },
		set: func(f *Facility, v string) error {
			c, err := parseCoordinate(v)
			if err != nil {
				return err
			}
			f.Latitude = c
			return nil
		},
	},
	FieldLongitude: {
		get: func(f Facility) string { return formatCoordinate(f.Longitude) },
		set: func(f *Facility, v string) error {
			c, err := parseCoordinate(v)
			if err != nil {
				return err
			}
			f.Longitude = c
			return nil
		},
	},
}

// TrackedFacilityFields is the ordered set diffed on save and exported as columns.
var TrackedFacilityFields = []FacilityField{
	FieldVenueName,
	FieldVenueAddress,
	FieldTownSuburb,
	FieldPostcode,
	FieldState,
	FieldLatitude,
	FieldLongitude,
}

// SearchableFacilityFields are matched by the free-text facility search.
var SearchableFacilityFields = []FacilityField{
	FieldVenueName,
	FieldVenueAddress,
	FieldTownSuburb,
	FieldState,
}

// ParseFacilityField resolves a registry key.
func ParseFacilityField(name string) (FacilityField, bool) {
	f := FacilityField(strings.TrimSpace(name))
	_, ok := facilityRegistry[f]
	return f, ok
}

// Get returns the stringified value of field, "" for NULL.
func (f Facility) Get(field FacilityField) string {
	acc, ok := facilityRegistry[field]
	if !ok {
		return ""
	}
	return acc.get(f)
}

// Set assigns a stringified value. Coordinates must parse as floats; "" clears them.
func (f *Facility) Set(field FacilityField, value string) error {
	acc, ok := facilityRegistry[field]
	if !ok {
		return ValidationError("facility.set", "unknown facility field %q", field)
	}
	if err := acc.set(f, strings.TrimSpace(value)); err != nil {
		return ValidationError("facility.set", "%s must be a number", field)
	}
	return nil
}

// FacilityForm is the set of editable fields submitted by a user or an import row.
type FacilityForm map[FacilityField]string

// Apply returns a copy of f with every form value assigned.
func (f Facility) Apply(form FacilityForm) (Facility, error) {
	next := f
	for _, field := range TrackedFacilityFields {
		value, ok := form[field]
		if !ok {
			continue
		}
		if err := next.Set(field, value); err != nil {
			return f, err
		}
	}
	if strings.TrimSpace(next.VenueName) == "" {
		return f, ValidationError("facility.apply", "venue_name is required")
	}
	return next, nil
}

// FormOf captures every tracked field of f as a form.
func FormOf(f Facility) FacilityForm {
	form := make(FacilityForm, len(TrackedFacilityFields))
	for _, field := range TrackedFacilityFields {
		form[field] = f.Get(field)
	}
	return form
}

// MatchesSearch is a case-insensitive substring match over the searchable fields.
// An empty query matches everything.
func (f Facility) MatchesSearch(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range SearchableFacilityFields {
		if strings.Contains(strings.ToLower(f.Get(field)), q) {
			return true
		}
	}
	return false
}

// HasLocation reports whether both coordinates are present.
func (f Facility) HasLocation() bool {
	return f.Latitude != nil && f.Longitude != nil
}

func formatCoordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseCoordinate(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse coordinate %q: %w", raw, err)
	}
	return &v, nil
}
