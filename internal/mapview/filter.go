package mapview

import (
	"net/url"
	"sort"
	"strings"

	"github.com/rpattn/auditdesk/internal/domain"
)

// FilterParamPrefix marks configured filter values in a query string, e.g.
// filter.facility:state=VIC or filter.question:surface_type=grass.
const FilterParamPrefix = "filter."

// Query is a facility search plus configured filter values. Blank filter values are inactive.
type Query struct {
	Search  string
	Filters map[domain.FieldRef]string
}

// ParseQuery reads q and every filter.<source>:<key> parameter. Malformed filter
// names are a validation error.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{Search: strings.TrimSpace(values.Get("q")), Filters: map[domain.FieldRef]string{}}
	for name, vals := range values {
		if !strings.HasPrefix(name, FilterParamPrefix) || len(vals) == 0 {
			continue
		}
		ref, ok := domain.ParseFieldRef(strings.TrimPrefix(name, FilterParamPrefix))
		if !ok {
			return Query{}, domain.ValidationError("mapview.query", "invalid filter %q", name)
		}
		q.Filters[ref] = strings.TrimSpace(vals[0])
	}
	return q, nil
}

// Configured keeps only filters backed by one of configs.
func (q Query) Configured(configs []domain.FilterConfig) Query {
	allowed := make(map[domain.FieldRef]bool, len(configs))
	for _, c := range configs {
		allowed[c.FieldRef] = true
	}
	out := Query{Search: q.Search, Filters: map[domain.FieldRef]string{}}
	for ref, v := range q.Filters {
		if allowed[ref] {
			out.Filters[ref] = v
		}
	}
	return out
}

// value reads a facility column or a latest answer.
func value(f domain.Facility, answers map[string]string, ref domain.FieldRef) string {
	switch ref.Source {
	case domain.FieldSourceFacility:
		field, ok := domain.ParseFacilityField(ref.Key)
		if !ok {
			return ""
		}
		return f.Get(field)
	case domain.FieldSourceQuestion:
		return answers[ref.Key]
	}
	return ""
}

// Matches applies the search then every active filter. All filters must match; a
// filter on an empty value never matches.
func (q Query) Matches(f domain.Facility, answers map[string]string) bool {
	if !f.MatchesSearch(q.Search) {
		return false
	}
	for ref, want := range q.Filters {
		if want == "" {
			continue
		}
		got := value(f, answers, ref)
		if got == "" || !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			return false
		}
	}
	return true
}

// TooltipLine is one labelled value shown on a map marker.
type TooltipLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// TooltipLines renders active configs in sort order, skipping empty values.
func TooltipLines(f domain.Facility, answers map[string]string, configs []domain.TooltipConfig) []TooltipLine {
	active := make([]domain.TooltipConfig, 0, len(configs))
	for _, c := range configs {
		if c.IsActive {
			active = append(active, c)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].SortOrder < active[j].SortOrder })

	lines := []TooltipLine{}
	for _, c := range active {
		v := value(f, answers, c.FieldRef)
		if v == "" {
			continue
		}
		lines = append(lines, TooltipLine{Label: c.DisplayLabel, Value: v})
	}
	return lines
}
