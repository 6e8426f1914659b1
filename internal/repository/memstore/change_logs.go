package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

type changeLogs struct{ s *Store }

func (r changeLogs) Append(ctx context.Context, entries []domain.ChangeLog) error {
	unlock, err := r.s.lock("changeLogs.Append")
	if err != nil {
		return err
	}
	defer unlock()

	now := r.s.now()
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.ChangedAt = now
		r.s.st.data.changeLogs = append(r.s.st.data.changeLogs, e)
	}
	return nil
}

func (r changeLogs) ListByFacility(ctx context.Context, facilityID uuid.UUID, limit int) ([]domain.ChangeLog, error) {
	unlock, err := r.s.lock("changeLogs.ListByFacility")
	if err != nil {
		return nil, err
	}
	defer unlock()

	if limit <= 0 {
		limit = 100
	}
	var out []domain.ChangeLog
	logs := r.s.st.data.changeLogs
	for i := len(logs) - 1; i >= 0 && len(out) < limit; i-- {
		if logs[i].FacilityID != nil && *logs[i].FacilityID == facilityID {
			out = append(out, logs[i])
		}
	}
	return out, nil
}
