package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/domain"
)

type changeLogRepository struct {
	db db.DBTX
}

// NewChangeLogRepository creates a change log repository over exec
func NewChangeLogRepository(exec db.DBTX) ChangeLogRepository {
	return &changeLogRepository{db: exec}
}

const insertChangeLog = `
	INSERT INTO change_logs (id, facility_id, audit_id, entity_type, field_name, old_value, new_value, changed_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// batchSender is implemented by the pool and by transactions.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (r *changeLogRepository) Append(ctx context.Context, entries []domain.ChangeLog) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		batch.Queue(insertChangeLog, e.ID, e.FacilityID, e.AuditID, string(e.EntityType), e.FieldName, e.OldValue, e.NewValue, e.ChangedBy)
	}
	return r.sendBatch(ctx, batch)
}

func (r *changeLogRepository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	sender, ok := r.db.(batchSender)
	if !ok {
		for _, q := range batch.QueuedQueries {
			if _, err := r.db.Exec(ctx, q.SQL, q.Arguments...); err != nil {
				return mapError("append change logs", err)
			}
		}
		return nil
	}
	results := sender.SendBatch(ctx, batch)
	for range batch.QueuedQueries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return mapError("append change logs", err)
		}
	}
	return mapError("append change logs", results.Close())
}

func (r *changeLogRepository) ListByFacility(ctx context.Context, facilityID uuid.UUID, limit int) ([]domain.ChangeLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, facility_id, audit_id, entity_type, field_name, old_value, new_value, changed_by, changed_at
		FROM change_logs
		WHERE facility_id = $1
		ORDER BY changed_at DESC, id
		LIMIT $2`, facilityID, limit)
	if err != nil {
		return nil, mapError("list change logs", err)
	}
	defer rows.Close()

	var out []domain.ChangeLog
	for rows.Next() {
		var c domain.ChangeLog
		var entityType string
		if err := rows.Scan(&c.ID, &c.FacilityID, &c.AuditID, &entityType, &c.FieldName, &c.OldValue, &c.NewValue, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, mapError("scan change log", err)
		}
		c.EntityType = domain.ChangeEntityType(entityType)
		out = append(out, c)
	}
	return out, mapError("list change logs", rows.Err())
}
