package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auditing"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/metrics"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository"
	"go.uber.org/zap"
)

// ParseFailureMessage is the single row error reported when the upload cannot be read.
const ParseFailureMessage = "Failed to parse CSV"

// Service reconciles uploaded facility tables against the store.
type Service struct {
	store   repository.Store
	engine  *auditing.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new ingestion service writing through engine.
func NewService(store repository.Store, engine *auditing.Engine, opts ...Option) *Service {
	s := &Service{store: store, engine: engine, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = auditing.NewEngine(s.metrics)
	}
	return s
}

// Request describes one upload.
type Request struct {
	FileName string
	Data     io.Reader
	// VersionID selects the questionnaire q__ columns resolve against; nil means published.
	VersionID *uuid.UUID
	// DryRun processes every row inside one transaction that is rolled back.
	DryRun bool
}

var errDryRun = errors.New("dry run rollback")

// RowError is a failed row. Row 1 is the header, so data starts at row 2; row 0
// means the file itself could not be read.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result counts created and updated facilities and lists failed rows. Warnings are
// answers stored as given although they do not fit their question type.
type Result struct {
	Created  int        `json:"created"`
	Updated  int        `json:"updated"`
	Errors   []RowError `json:"errors"`
	Warnings []RowError `json:"warnings,omitempty"`
}

func (r *Result) fail(row int, err error) {
	r.Errors = append(r.Errors, RowError{Row: row, Message: rowMessage(err)})
}

func rowMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.UserMessage()
	}
	return err.Error()
}

// Import processes every data row in order. A row failure is recorded and the
// next row is processed; only parse, permission and version lookup failures
// abort the whole upload.
func (s *Service) Import(ctx context.Context, req Request) (Result, error) {
	const op = "ingestion.import"
	result := Result{Errors: []RowError{}}

	session, err := auth.Require(ctx, op, auth.CanExportData)
	if err != nil {
		return result, err
	}
	if req.Data == nil {
		return result, domain.ValidationError(op, "file is required")
	}

	started := s.now()
	logger := s.logger.With(zap.String("file", req.FileName), zap.String("actor", session.UserID.String()))

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return result, domain.ParseError(op, fmt.Errorf("failed to read upload: %w", err))
	}
	tbl, err := parseTable(req.FileName, payload)
	if err != nil {
		logger.Warn("import parse failed", zap.Error(err))
		result.Errors = append(result.Errors, RowError{Row: 0, Message: ParseFailureMessage})
		return result, domain.ParseError(op, err)
	}

	cols := tbl.index()
	questionCols := questionColumns(tbl.headers)

	var tree *domain.QuestionnaireTree
	if len(questionCols) > 0 {
		resolved, err := questionnaire.ResolveVersion(ctx, s.store, req.VersionID)
		switch {
		case err == nil:
			tree = &resolved
		case req.VersionID == nil && domain.KindOf(err) == domain.ErrNotFound:
			logger.Warn("no published questionnaire, answer columns ignored")
		default:
			return result, err
		}
	}

	processRows := func(svc *Service) {
		for i, row := range tbl.rows {
			rowNum := i + 2
			if err := svc.importRow(ctx, session.UserID, cols, questionCols, tree, rowNum, row, &result); err != nil {
				logger.Warn("import row failed", zap.Int("row", rowNum), zap.Error(err))
				result.fail(rowNum, err)
			}
		}
	}

	if req.DryRun {
		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			dry := *s
			dry.store = tx
			processRows(&dry)
			return errDryRun
		})
		if err != nil && !errors.Is(err, errDryRun) {
			return result, domain.StoreError(op, err)
		}
	} else {
		processRows(s)
	}

	elapsed := s.now().Sub(started)
	if !req.DryRun {
		s.metrics.ImportFinished(result.Created, result.Updated, len(result.Errors), elapsed)
	}
	logger.Info("import finished",
		zap.Bool("dry_run", req.DryRun),
		zap.Int("rows", len(tbl.rows)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

type questionColumn struct {
	index int
	key   string
}

func questionColumns(headers []string) []questionColumn {
	var out []questionColumn
	for i, h := range headers {
		if key, ok := domain.ParseQuestionColumn(h); ok {
			out = append(out, questionColumn{index: i, key: key})
		}
	}
	return out
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// importRow upserts one facility, then its answers. Counters move as soon as the
// facility unit commits; an answer failure afterwards is still a row error. Answer
// cells are stored trimmed but otherwise as given.
func (s *Service) importRow(ctx context.Context, actor uuid.UUID, cols map[string]int, questionCols []questionColumn, tree *domain.QuestionnaireTree, rowNum int, row []string, result *Result) error {
	const op = "ingestion.row"

	if cell(row, cols, string(domain.FieldVenueName)) == "" {
		return domain.ValidationError(op, "venue_name is required")
	}

	// Every fixed column is written; an absent column clears the field.
	form := domain.FacilityForm{}
	for _, field := range domain.TrackedFacilityFields {
		form[field] = cell(row, cols, string(field))
	}

	var facilityID uuid.UUID
	if rawID := cell(row, cols, domain.ColumnFacilityID); rawID == "" {
		facilityID = uuid.New()
		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			_, err := s.engine.CreateFacility(ctx, tx, actor, form, facilityID)
			return err
		})
		if err != nil {
			return err
		}
		result.Created++
	} else {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return domain.ValidationError(op, "facility_id %q is not a valid id", rawID)
		}
		facilityID = id
		err = s.store.WithinTx(ctx, func(tx repository.Store) error {
			current, err := tx.Facilities().GetByID(ctx, id)
			if err != nil {
				return err
			}
			if current.IsDeleted {
				return domain.NotFoundError(op, "facility %s has been deleted", id)
			}
			_, err = s.engine.ApplyFacility(ctx, tx, actor, current, form, current.Revision)
			return err
		})
		if err != nil {
			return err
		}
		result.Updated++
	}

	if tree == nil || len(questionCols) == 0 {
		return nil
	}

	edits := map[uuid.UUID]string{}
	for _, qc := range questionCols {
		value := strings.TrimSpace(row[qc.index])
		if value == "" {
			continue
		}
		q, ok := tree.ActiveQuestionByKey(qc.key)
		if !ok {
			continue
		}
		edits[q.ID] = value
	}
	if len(edits) > 0 {
		if err := s.engine.ValidateAnswers(op, *tree, edits); err != nil {
			s.logger.Warn("import answers do not fit question types", zap.Int("row", rowNum), zap.Error(err))
			result.Warnings = append(result.Warnings, RowError{Row: rowNum, Message: rowMessage(err)})
		}
	}
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		audit, err := s.engine.EnsureAudit(ctx, tx, actor, facilityID, *tree)
		if err != nil || len(edits) == 0 {
			return err
		}
		_, err = s.engine.ApplyAnswers(ctx, tx, actor, facilityID, *tree, auditing.Existing(audit), edits)
		return err
	})
}
