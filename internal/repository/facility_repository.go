package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/domain"
)

type facilityRepository struct {
	db db.DBTX
}

// NewFacilityRepository creates a facility repository over exec
func NewFacilityRepository(exec db.DBTX) FacilityRepository {
	return &facilityRepository{db: exec}
}

const facilityColumns = `id, venue_name, COALESCE(venue_address, ''), COALESCE(town_suburb, ''),
	COALESCE(postcode, ''), COALESCE(state, ''), latitude, longitude, is_deleted, revision,
	created_by, created_at, updated_at`

func scanFacility(row pgx.Row) (domain.Facility, error) {
	var f domain.Facility
	err := row.Scan(
		&f.ID, &f.VenueName, &f.VenueAddress, &f.TownSuburb,
		&f.Postcode, &f.State, &f.Latitude, &f.Longitude, &f.IsDeleted, &f.Revision,
		&f.CreatedBy, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

func (r *facilityRepository) Create(ctx context.Context, f domain.Facility) (domain.Facility, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO facilities (id, venue_name, venue_address, town_suburb, postcode, state, latitude, longitude, created_by)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
		RETURNING `+facilityColumns,
		f.ID, f.VenueName, f.VenueAddress, f.TownSuburb, f.Postcode, f.State, f.Latitude, f.Longitude, f.CreatedBy,
	)
	created, err := scanFacility(row)
	if err != nil {
		return domain.Facility{}, mapError("create facility", err)
	}
	return created, nil
}

func (r *facilityRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Facility, error) {
	row := r.db.QueryRow(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = $1`, id)
	f, err := scanFacility(row)
	if err != nil {
		return domain.Facility{}, mapError("get facility", err)
	}
	return f, nil
}

func (r *facilityRepository) List(ctx context.Context) ([]domain.Facility, error) {
	rows, err := r.db.Query(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE is_deleted = FALSE ORDER BY venue_name, id`)
	if err != nil {
		return nil, mapError("list facilities", err)
	}
	defer rows.Close()

	var out []domain.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, mapError("scan facility", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list facilities", err)
	}
	return out, nil
}

func (r *facilityRepository) Update(ctx context.Context, f domain.Facility, expectedRevision int64) (domain.Facility, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE facilities
		SET venue_name = $2, venue_address = NULLIF($3, ''), town_suburb = NULLIF($4, ''),
		    postcode = NULLIF($5, ''), state = NULLIF($6, ''), latitude = $7, longitude = $8,
		    revision = revision + 1, updated_at = NOW()
		WHERE id = $1 AND revision = $9 AND is_deleted = FALSE
		RETURNING `+facilityColumns,
		f.ID, f.VenueName, f.VenueAddress, f.TownSuburb, f.Postcode, f.State, f.Latitude, f.Longitude, expectedRevision,
	)
	updated, err := scanFacility(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Facility{}, mapError("update facility", err)
	}

	// Distinguish a stale revision from a missing row.
	current, getErr := r.GetByID(ctx, f.ID)
	if getErr != nil {
		return domain.Facility{}, getErr
	}
	if current.IsDeleted {
		return domain.Facility{}, domain.NotFoundError("update facility", "facility has been deleted")
	}
	return domain.Facility{}, domain.ConflictError("update facility",
		"facility was modified by someone else (revision %d, expected %d); reload and try again", current.Revision, expectedRevision)
}

func (r *facilityRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE facilities SET is_deleted = TRUE, revision = revision + 1, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return mapError("delete facility", err)
	}
	return requireAffected("delete facility", tag)
}
