package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/domain"
)

type displayConfigRepository struct {
	db db.DBTX
}

// NewDisplayConfigRepository creates a tooltip/filter config repository over exec
func NewDisplayConfigRepository(exec db.DBTX) DisplayConfigRepository {
	return &displayConfigRepository{db: exec}
}

const tooltipColumns = `id, field_source, field_key, display_label, sort_order, is_active, created_at, updated_at`

func scanTooltip(row pgx.Row) (domain.TooltipConfig, error) {
	var c domain.TooltipConfig
	var source string
	err := row.Scan(&c.ID, &source, &c.Key, &c.DisplayLabel, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	c.Source = domain.FieldSource(source)
	return c, err
}

func (r *displayConfigRepository) ListTooltips(ctx context.Context, activeOnly bool) ([]domain.TooltipConfig, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+tooltipColumns+` FROM tooltip_config
		WHERE ($1 = FALSE OR is_active)
		ORDER BY sort_order, id`, activeOnly)
	if err != nil {
		return nil, mapError("list tooltips", err)
	}
	defer rows.Close()

	var out []domain.TooltipConfig
	for rows.Next() {
		c, err := scanTooltip(rows)
		if err != nil {
			return nil, mapError("scan tooltip", err)
		}
		out = append(out, c)
	}
	return out, mapError("list tooltips", rows.Err())
}

func (r *displayConfigRepository) GetTooltip(ctx context.Context, id uuid.UUID) (domain.TooltipConfig, error) {
	c, err := scanTooltip(r.db.QueryRow(ctx, `SELECT `+tooltipColumns+` FROM tooltip_config WHERE id = $1`, id))
	if err != nil {
		return domain.TooltipConfig{}, mapError("get tooltip", err)
	}
	return c, nil
}

func (r *displayConfigRepository) CreateTooltip(ctx context.Context, c domain.TooltipConfig) (domain.TooltipConfig, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	created, err := scanTooltip(r.db.QueryRow(ctx, `
		INSERT INTO tooltip_config (id, field_source, field_key, display_label, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+tooltipColumns,
		c.ID, string(c.Source), c.Key, c.DisplayLabel, c.SortOrder, c.IsActive))
	if err != nil {
		return domain.TooltipConfig{}, mapError("create tooltip", err)
	}
	return created, nil
}

func (r *displayConfigRepository) UpdateTooltip(ctx context.Context, c domain.TooltipConfig) (domain.TooltipConfig, error) {
	updated, err := scanTooltip(r.db.QueryRow(ctx, `
		UPDATE tooltip_config
		SET field_source = $2, field_key = $3, display_label = $4, sort_order = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+tooltipColumns,
		c.ID, string(c.Source), c.Key, c.DisplayLabel, c.SortOrder, c.IsActive))
	if err != nil {
		return domain.TooltipConfig{}, mapError("update tooltip", err)
	}
	return updated, nil
}

func (r *displayConfigRepository) DeleteTooltip(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tooltip_config WHERE id = $1`, id)
	if err != nil {
		return mapError("delete tooltip", err)
	}
	return requireAffected("delete tooltip", tag)
}

const filterColumns = `id, field_source, field_key, display_label, filter_type, sort_order, is_active, created_at, updated_at`

func scanFilter(row pgx.Row) (domain.FilterConfig, error) {
	var c domain.FilterConfig
	var source, filterType string
	err := row.Scan(&c.ID, &source, &c.Key, &c.DisplayLabel, &filterType, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	c.Source = domain.FieldSource(source)
	c.FilterType = domain.FilterType(filterType)
	return c, err
}

func (r *displayConfigRepository) ListFilters(ctx context.Context, activeOnly bool) ([]domain.FilterConfig, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+filterColumns+` FROM filter_config
		WHERE ($1 = FALSE OR is_active)
		ORDER BY sort_order, id`, activeOnly)
	if err != nil {
		return nil, mapError("list filters", err)
	}
	defer rows.Close()

	var out []domain.FilterConfig
	for rows.Next() {
		c, err := scanFilter(rows)
		if err != nil {
			return nil, mapError("scan filter", err)
		}
		out = append(out, c)
	}
	return out, mapError("list filters", rows.Err())
}

func (r *displayConfigRepository) GetFilter(ctx context.Context, id uuid.UUID) (domain.FilterConfig, error) {
	c, err := scanFilter(r.db.QueryRow(ctx, `SELECT `+filterColumns+` FROM filter_config WHERE id = $1`, id))
	if err != nil {
		return domain.FilterConfig{}, mapError("get filter", err)
	}
	return c, nil
}

func (r *displayConfigRepository) CreateFilter(ctx context.Context, c domain.FilterConfig) (domain.FilterConfig, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	created, err := scanFilter(r.db.QueryRow(ctx, `
		INSERT INTO filter_config (id, field_source, field_key, display_label, filter_type, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+filterColumns,
		c.ID, string(c.Source), c.Key, c.DisplayLabel, string(c.FilterType), c.SortOrder, c.IsActive))
	if err != nil {
		return domain.FilterConfig{}, mapError("create filter", err)
	}
	return created, nil
}

func (r *displayConfigRepository) UpdateFilter(ctx context.Context, c domain.FilterConfig) (domain.FilterConfig, error) {
	updated, err := scanFilter(r.db.QueryRow(ctx, `
		UPDATE filter_config
		SET field_source = $2, field_key = $3, display_label = $4, filter_type = $5, sort_order = $6,
		    is_active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING `+filterColumns,
		c.ID, string(c.Source), c.Key, c.DisplayLabel, string(c.FilterType), c.SortOrder, c.IsActive))
	if err != nil {
		return domain.FilterConfig{}, mapError("update filter", err)
	}
	return updated, nil
}

func (r *displayConfigRepository) DeleteFilter(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM filter_config WHERE id = $1`, id)
	if err != nil {
		return mapError("delete filter", err)
	}
	return requireAffected("delete filter", tag)
}
