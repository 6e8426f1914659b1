package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/ingestion"
	"github.com/rpattn/auditdesk/internal/metrics"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository"
	"go.uber.org/zap"
)

const (
	FacilityTemplateName = "facility_template.csv"
	ErrorReportName      = "import_errors.csv"
)

// Service generates templates and exports.
type Service struct {
	store   repository.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
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

func NewService(store repository.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FacilityTemplate is the fixed header with no data rows.
func (s *Service) FacilityTemplate(ctx context.Context) (File, error) {
	if _, err := auth.Require(ctx, "export.facility_template", auth.CanExportData); err != nil {
		return File{}, err
	}
	data, err := render(FormatCSV, "facilities", [][]string{domain.FacilityColumns()})
	if err != nil {
		return File{}, err
	}
	s.metrics.Exported("facility_template", string(FormatCSV))
	return File{Name: FacilityTemplateName, ContentType: FormatCSV.contentType(), Data: data}, nil
}

// AuditTemplate is the fixed header plus one q__ column per active question of the version.
func (s *Service) AuditTemplate(ctx context.Context, versionID *uuid.UUID, format Format) (File, error) {
	if _, err := auth.Require(ctx, "export.audit_template", auth.CanExportData); err != nil {
		return File{}, err
	}
	tree, err := questionnaire.ResolveVersion(ctx, s.store, versionID)
	if err != nil {
		return File{}, err
	}
	data, err := render(format, "audit", [][]string{domain.AuditColumns(tree)})
	if err != nil {
		return File{}, err
	}
	s.metrics.Exported("audit_template", string(format))
	return File{
		Name:        fmt.Sprintf("audit_template_v%d.%s", tree.VersionNumber, format),
		ContentType: format.contentType(),
		Data:        data,
	}, nil
}

// Facilities exports every non-deleted facility with the answers of its latest audit
// for the version. Facilities without such an audit get blank answer cells.
func (s *Service) Facilities(ctx context.Context, versionID *uuid.UUID, format Format) (File, error) {
	const op = "export.facilities"
	if _, err := auth.Require(ctx, op, auth.CanExportData); err != nil {
		return File{}, err
	}
	tree, err := questionnaire.ResolveVersion(ctx, s.store, versionID)
	if err != nil {
		return File{}, err
	}
	facilities, err := s.store.Facilities().List(ctx)
	if err != nil {
		return File{}, err
	}
	ids := make([]uuid.UUID, 0, len(facilities))
	for _, f := range facilities {
		ids = append(ids, f.ID)
	}
	versionRef := tree.ID
	answers, err := s.store.Audits().LatestAnswersByFacility(ctx, ids, &versionRef)
	if err != nil {
		return File{}, err
	}

	rows := make([][]string, 0, len(facilities)+1)
	rows = append(rows, domain.AuditColumns(tree))
	questions := tree.ActiveQuestions()
	for _, f := range facilities {
		row := make([]string, 0, len(rows[0]))
		row = append(row, f.ID.String())
		for _, field := range domain.TrackedFacilityFields {
			row = append(row, f.Get(field))
		}
		byKey := answers[f.ID]
		for _, q := range questions {
			row = append(row, byKey[q.QuestionKey])
		}
		rows = append(rows, row)
	}

	data, err := render(format, "facilities", rows)
	if err != nil {
		return File{}, err
	}
	s.metrics.Exported("facilities", string(format))
	s.logger.Info("facilities exported",
		zap.Int("facilities", len(facilities)),
		zap.Int("version", tree.VersionNumber),
		zap.String("format", string(format)),
	)
	return File{
		Name:        fmt.Sprintf("facilities_export_v%d.%s", tree.VersionNumber, format),
		ContentType: format.contentType(),
		Data:        data,
	}, nil
}

// ErrorReport renders import row errors as a two column table.
func (s *Service) ErrorReport(ctx context.Context, rowErrors []ingestion.RowError) (File, error) {
	if _, err := auth.Require(ctx, "export.error_report", auth.CanExportData); err != nil {
		return File{}, err
	}
	rows := make([][]string, 0, len(rowErrors)+1)
	rows = append(rows, []string{"row", "error"})
	for _, e := range rowErrors {
		rows = append(rows, []string{strconv.Itoa(e.Row), e.Message})
	}
	data, err := render(FormatCSV, "errors", rows)
	if err != nil {
		return File{}, err
	}
	s.metrics.Exported("error_report", string(FormatCSV))
	return File{Name: ErrorReportName, ContentType: FormatCSV.contentType(), Data: data}, nil
}
