package memstore

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

type facilities struct{ s *Store }

func (r facilities) Create(ctx context.Context, f domain.Facility) (domain.Facility, error) {
	unlock, err := r.s.lock("facilities.Create")
	if err != nil {
		return domain.Facility{}, err
	}
	defer unlock()

	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if _, exists := r.s.st.data.facilities[f.ID]; exists {
		return domain.Facility{}, conflict("create facility")
	}
	now := r.s.now()
	f.Revision = 1
	f.IsDeleted = false
	f.CreatedAt, f.UpdatedAt = now, now
	r.s.st.data.facilities[f.ID] = f
	return f, nil
}

func (r facilities) GetByID(ctx context.Context, id uuid.UUID) (domain.Facility, error) {
	unlock, err := r.s.lock("facilities.GetByID")
	if err != nil {
		return domain.Facility{}, err
	}
	defer unlock()

	f, ok := r.s.st.data.facilities[id]
	if !ok {
		return domain.Facility{}, notFound("get facility")
	}
	return f, nil
}

func (r facilities) List(ctx context.Context) ([]domain.Facility, error) {
	unlock, err := r.s.lock("facilities.List")
	if err != nil {
		return nil, err
	}
	defer unlock()

	all := sortedValues(r.s.st.data.facilities, func(a, b domain.Facility) bool {
		if a.VenueName != b.VenueName {
			return a.VenueName < b.VenueName
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	out := all[:0]
	for _, f := range all {
		if !f.IsDeleted {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r facilities) Update(ctx context.Context, f domain.Facility, expectedRevision int64) (domain.Facility, error) {
	unlock, err := r.s.lock("facilities.Update")
	if err != nil {
		return domain.Facility{}, err
	}
	defer unlock()

	current, ok := r.s.st.data.facilities[f.ID]
	if !ok {
		return domain.Facility{}, notFound("update facility")
	}
	if current.IsDeleted {
		return domain.Facility{}, domain.NotFoundError("update facility", "facility has been deleted")
	}
	if current.Revision != expectedRevision {
		return domain.Facility{}, domain.ConflictError("update facility",
			"facility was modified by someone else (revision %d, expected %d); reload and try again", current.Revision, expectedRevision)
	}
	f.Revision = current.Revision + 1
	f.IsDeleted = current.IsDeleted
	f.CreatedBy = current.CreatedBy
	f.CreatedAt = current.CreatedAt
	f.UpdatedAt = r.s.now()
	r.s.st.data.facilities[f.ID] = f
	return f, nil
}

func (r facilities) SoftDelete(ctx context.Context, id uuid.UUID) error {
	unlock, err := r.s.lock("facilities.SoftDelete")
	if err != nil {
		return err
	}
	defer unlock()

	f, ok := r.s.st.data.facilities[id]
	if !ok || f.IsDeleted {
		return notFound("delete facility")
	}
	f.IsDeleted = true
	f.Revision++
	f.UpdatedAt = r.s.now()
	r.s.st.data.facilities[id] = f
	return nil
}
