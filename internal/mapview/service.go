package mapview

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository"
	"go.uber.org/zap"
)

// Service serves the facility list and map.
type Service struct {
	store  repository.Store
	logger *zap.Logger
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// FacilityView is a facility with the answers of its latest audit.
type FacilityView struct {
	domain.Facility
	Answers map[string]string `json:"answers"`
}

// Marker is a mappable facility with its tooltip.
type Marker struct {
	FacilityID uuid.UUID     `json:"facility_id"`
	VenueName  string        `json:"venue_name"`
	Latitude   float64       `json:"latitude"`
	Longitude  float64       `json:"longitude"`
	Tooltip    []TooltipLine `json:"tooltip"`
}

func (s *Service) loader(ctx context.Context) *AnswerLoader {
	if l := AnswerLoaderFromContext(ctx); l != nil {
		return l
	}
	return NewAnswerLoader(s.store.Audits())
}

// ListFacilities returns the non-deleted facilities matching q.
func (s *Service) ListFacilities(ctx context.Context, q Query) ([]FacilityView, error) {
	if _, err := auth.RequireSession(ctx, "mapview.list"); err != nil {
		return nil, err
	}
	configs, err := s.store.DisplayConfig().ListFilters(ctx, true)
	if err != nil {
		return nil, err
	}
	if active := q.Configured(configs); len(active.Filters) != len(q.Filters) {
		s.logger.Debug("ignoring unconfigured filters", zap.Int("requested", len(q.Filters)), zap.Int("active", len(active.Filters)))
		q = active
	}
	facilities, err := s.store.Facilities().List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(facilities))
	for i, f := range facilities {
		ids[i] = f.ID
	}
	answers, err := s.loader(ctx).LoadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]FacilityView, 0, len(facilities))
	for _, f := range facilities {
		byKey := answers[f.ID]
		if byKey == nil {
			byKey = map[string]string{}
		}
		if q.Matches(f, byKey) {
			out = append(out, FacilityView{Facility: f, Answers: byKey})
		}
	}
	return out, nil
}

// Markers returns a marker for every matching facility that has coordinates.
func (s *Service) Markers(ctx context.Context, q Query) ([]Marker, error) {
	views, err := s.ListFacilities(ctx, q)
	if err != nil {
		return nil, err
	}
	tooltips, err := s.store.DisplayConfig().ListTooltips(ctx, true)
	if err != nil {
		return nil, err
	}
	markers := []Marker{}
	for _, v := range views {
		if !v.HasLocation() {
			continue
		}
		markers = append(markers, Marker{
			FacilityID: v.ID,
			VenueName:  v.VenueName,
			Latitude:   *v.Latitude,
			Longitude:  *v.Longitude,
			Tooltip:    TooltipLines(v.Facility, v.Answers, tooltips),
		})
	}
	return markers, nil
}

// validateRef checks a field reference. Question keys must exist in the published
// questionnaire when one is published.
func (s *Service) validateRef(ctx context.Context, op string, ref domain.FieldRef) error {
	if err := ref.Validate(op); err != nil {
		return err
	}
	if ref.Source != domain.FieldSourceQuestion {
		return nil
	}
	tree, err := questionnaire.LoadPublishedTree(ctx, s.store)
	if err != nil {
		if domain.KindOf(err) == domain.ErrNotFound {
			return nil
		}
		return err
	}
	if _, ok := tree.ActiveQuestionByKey(ref.Key); !ok {
		return domain.ValidationError(op, "question %q is not in the published questionnaire", ref.Key)
	}
	return nil
}

func normalizeRef(ref domain.FieldRef) domain.FieldRef {
	ref.Source = domain.FieldSource(strings.ToLower(strings.TrimSpace(string(ref.Source))))
	ref.Key = strings.TrimSpace(ref.Key)
	return ref
}

// ListTooltips returns tooltip configs by sort order.
func (s *Service) ListTooltips(ctx context.Context, activeOnly bool) ([]domain.TooltipConfig, error) {
	if _, err := auth.RequireSession(ctx, "mapview.list_tooltips"); err != nil {
		return nil, err
	}
	return s.store.DisplayConfig().ListTooltips(ctx, activeOnly)
}

// SaveTooltip creates cfg when its id is nil, otherwise updates it.
func (s *Service) SaveTooltip(ctx context.Context, cfg domain.TooltipConfig) (domain.TooltipConfig, error) {
	const op = "mapview.save_tooltip"
	if _, err := auth.Require(ctx, op, auth.CanConfigureQuestionnaire); err != nil {
		return domain.TooltipConfig{}, err
	}
	cfg.FieldRef = normalizeRef(cfg.FieldRef)
	cfg.DisplayLabel = strings.TrimSpace(cfg.DisplayLabel)
	if cfg.DisplayLabel == "" {
		return domain.TooltipConfig{}, domain.ValidationError(op, "display_label is required")
	}
	if err := s.validateRef(ctx, op, cfg.FieldRef); err != nil {
		return domain.TooltipConfig{}, err
	}
	if cfg.ID == uuid.Nil {
		return s.store.DisplayConfig().CreateTooltip(ctx, cfg)
	}
	return s.store.DisplayConfig().UpdateTooltip(ctx, cfg)
}

func (s *Service) DeleteTooltip(ctx context.Context, id uuid.UUID) error {
	if _, err := auth.Require(ctx, "mapview.delete_tooltip", auth.CanConfigureQuestionnaire); err != nil {
		return err
	}
	return s.store.DisplayConfig().DeleteTooltip(ctx, id)
}

// ListFilters returns filter configs by sort order.
func (s *Service) ListFilters(ctx context.Context, activeOnly bool) ([]domain.FilterConfig, error) {
	if _, err := auth.RequireSession(ctx, "mapview.list_filters"); err != nil {
		return nil, err
	}
	return s.store.DisplayConfig().ListFilters(ctx, activeOnly)
}

// SaveFilter creates cfg when its id is nil, otherwise updates it. filter_type
// defaults to text.
func (s *Service) SaveFilter(ctx context.Context, cfg domain.FilterConfig) (domain.FilterConfig, error) {
	const op = "mapview.save_filter"
	if _, err := auth.Require(ctx, op, auth.CanConfigureQuestionnaire); err != nil {
		return domain.FilterConfig{}, err
	}
	cfg.FieldRef = normalizeRef(cfg.FieldRef)
	cfg.DisplayLabel = strings.TrimSpace(cfg.DisplayLabel)
	if cfg.DisplayLabel == "" {
		return domain.FilterConfig{}, domain.ValidationError(op, "display_label is required")
	}
	if cfg.FilterType == "" {
		cfg.FilterType = domain.FilterTypeText
	}
	if !cfg.FilterType.Valid() {
		return domain.FilterConfig{}, domain.ValidationError(op, "unknown filter_type %q", cfg.FilterType)
	}
	if err := s.validateRef(ctx, op, cfg.FieldRef); err != nil {
		return domain.FilterConfig{}, err
	}
	if cfg.ID == uuid.Nil {
		return s.store.DisplayConfig().CreateFilter(ctx, cfg)
	}
	return s.store.DisplayConfig().UpdateFilter(ctx, cfg)
}

func (s *Service) DeleteFilter(ctx context.Context, id uuid.UUID) error {
	if _, err := auth.Require(ctx, "mapview.delete_filter", auth.CanConfigureQuestionnaire); err != nil {
		return err
	}
	return s.store.DisplayConfig().DeleteFilter(ctx, id)
}
