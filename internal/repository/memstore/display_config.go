package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

type displayConfig struct{ s *Store }

func (r displayConfig) ListTooltips(ctx context.Context, activeOnly bool) ([]domain.TooltipConfig, error) {
	unlock, err := r.s.lock("displayConfig.ListTooltips")
	if err != nil {
		return nil, err
	}
	defer unlock()

	all := sortedValues(r.s.st.data.tooltips, func(a, b domain.TooltipConfig) bool {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	out := all[:0]
	for _, c := range all {
		if !activeOnly || c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r displayConfig) GetTooltip(ctx context.Context, id uuid.UUID) (domain.TooltipConfig, error) {
	unlock, err := r.s.lock("displayConfig.GetTooltip")
	if err != nil {
		return domain.TooltipConfig{}, err
	}
	defer unlock()

	c, ok := r.s.st.data.tooltips[id]
	if !ok {
		return domain.TooltipConfig{}, notFound("get tooltip")
	}
	return c, nil
}

func (r displayConfig) CreateTooltip(ctx context.Context, c domain.TooltipConfig) (domain.TooltipConfig, error) {
	unlock, err := r.s.lock("displayConfig.CreateTooltip")
	if err != nil {
		return domain.TooltipConfig{}, err
	}
	defer unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.st.data.tooltips[c.ID] = c
	return c, nil
}

func (r displayConfig) UpdateTooltip(ctx context.Context, c domain.TooltipConfig) (domain.TooltipConfig, error) {
	unlock, err := r.s.lock("displayConfig.UpdateTooltip")
	if err != nil {
		return domain.TooltipConfig{}, err
	}
	defer unlock()

	current, ok := r.s.st.data.tooltips[c.ID]
	if !ok {
		return domain.TooltipConfig{}, notFound("update tooltip")
	}
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = r.s.now()
	r.s.st.data.tooltips[c.ID] = c
	return c, nil
}

func (r displayConfig) DeleteTooltip(ctx context.Context, id uuid.UUID) error {
	unlock, err := r.s.lock("displayConfig.DeleteTooltip")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.st.data.tooltips[id]; !ok {
		return notFound("delete tooltip")
	}
	delete(r.s.st.data.tooltips, id)
	return nil
}

func (r displayConfig) ListFilters(ctx context.Context, activeOnly bool) ([]domain.FilterConfig, error) {
	unlock, err := r.s.lock("displayConfig.ListFilters")
	if err != nil {
		return nil, err
	}
	defer unlock()

	all := sortedValues(r.s.st.data.filters, func(a, b domain.FilterConfig) bool {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	out := all[:0]
	for _, c := range all {
		if !activeOnly || c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r displayConfig) GetFilter(ctx context.Context, id uuid.UUID) (domain.FilterConfig, error) {
	unlock, err := r.s.lock("displayConfig.GetFilter")
	if err != nil {
		return domain.FilterConfig{}, err
	}
	defer unlock()

	c, ok := r.s.st.data.filters[id]
	if !ok {
		return domain.FilterConfig{}, notFound("get filter")
	}
	return c, nil
}

func (r displayConfig) CreateFilter(ctx context.Context, c domain.FilterConfig) (domain.FilterConfig, error) {
	unlock, err := r.s.lock("displayConfig.CreateFilter")
	if err != nil {
		return domain.FilterConfig{}, err
	}
	defer unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.st.data.filters[c.ID] = c
	return c, nil
}

func (r displayConfig) UpdateFilter(ctx context.Context, c domain.FilterConfig) (domain.FilterConfig, error) {
	unlock, err := r.s.lock("displayConfig.UpdateFilter")
	if err != nil {
		return domain.FilterConfig{}, err
	}
	defer unlock()

	current, ok := r.s.st.data.filters[c.ID]
	if !ok {
		return domain.FilterConfig{}, notFound("update filter")
	}
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = r.s.now()
	r.s.st.data.filters[c.ID] = c
	return c, nil
}

func (r displayConfig) DeleteFilter(ctx context.Context, id uuid.UUID) error {
	unlock, err := r.s.lock("displayConfig.DeleteFilter")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.st.data.filters[id]; !ok {
		return notFound("delete filter")
	}
	delete(r.s.st.data.filters, id)
	return nil
}
