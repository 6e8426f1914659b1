package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/domain"
	"go.uber.org/zap"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type queryer interface {
	db.DBTX
	db.TxBeginner
}

type pgStore struct {
	q      queryer
	logger *zap.Logger
}

// NewStore creates a Store over a pool. Pass conn.Pool from db.Connection.
func NewStore(pool queryer, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &pgStore{q: pool, logger: logger}
}

func (s *pgStore) Facilities() FacilityRepository { return &facilityRepository{db: s.q} }
func (s *pgStore) Questionnaires() QuestionnaireRepository { return &questionnaireRepository{db: s.q} }
func (s *pgStore) Audits() AuditRepository { return &auditRepository{db: s.q} }
func (s *pgStore) ChangeLogs() ChangeLogRepository { return &changeLogRepository{db: s.q} }
func (s *pgStore) Profiles() ProfileRepository { return &profileRepository{db: s.q} }
func (s *pgStore) Identities() IdentityRepository { return &identityRepository{db: s.q} }
func (s *pgStore) DisplayConfig() DisplayConfigRepository { return &displayConfigRepository{db: s.q} }

func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, s.q, s.logger, func(tx pgx.Tx) error {
		return fn(&pgStore{q: tx, logger: s.logger})
	})
}

// mapError classifies driver errors into domain kinds.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFoundError(op, "record not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &domain.Error{Kind: domain.ErrConflict, Op: op, Message: "record already exists", Err: err}
		case pgForeignKeyViolation:
			return &domain.Error{Kind: domain.ErrValidation, Op: op, Message: "referenced record does not exist", Err: err}
		}
	}
	return domain.StoreError(op, err)
}

// requireAffected turns a zero-row write into NotFound.
func requireAffected(op string, tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return domain.NotFoundError(op, "record not found")
	}
	return nil
}
