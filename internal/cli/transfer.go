package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/export"
	"github.com/rpattn/auditdesk/internal/ingestion"
	"github.com/rpattn/auditdesk/internal/repository"
	"github.com/rpattn/auditdesk/internal/repository/memstore"
	"github.com/spf13/cobra"
)

// TransferOptions are the flags shared by template, export and import.
type TransferOptions struct {
	*RootOptions
	As              string
	QuestionnaireID string
	Format          string
	Out             string
}

func (o *TransferOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.As, "as", "", "email of the account the command acts as")
	cmd.Flags().StringVar(&o.QuestionnaireID, "questionnaire", "", "questionnaire version id (default: published)")
	cmd.Flags().StringVar(&o.Format, "format", "csv", "file format (csv|xlsx)")
	cmd.Flags().StringVarP(&o.Out, "out", "o", "", "output path (default: the generated file name)")
}

func (o *TransferOptions) versionID() (*uuid.UUID, error) {
	if o.QuestionnaireID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(o.QuestionnaireID)
	if err != nil {
		return nil, fmt.Errorf("invalid --questionnaire %q: %w", o.QuestionnaireID, err)
	}
	return &id, nil
}

// writeFile stores a generated file at --out, "-" meaning stdout.
func (o *TransferOptions) writeFile(cmd *cobra.Command, file export.File) error {
	path := o.Out
	if path == "" {
		path = file.Name
	}
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(file.Data)
		return err
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", path, len(file.Data))
	return nil
}

// withExporter opens the store, resolves the actor and hands an export service to fn.
func (o *TransferOptions) withExporter(ctx context.Context, fn func(context.Context, *export.Service) (export.File, error)) (export.File, error) {
	store, closeStore, err := o.openStore(ctx)
	if err != nil {
		return export.File{}, err
	}
	defer closeStore()

	ctx, err = o.actAs(ctx, store, o.As)
	if err != nil {
		return export.File{}, err
	}
	return fn(ctx, export.NewService(store, export.WithLogger(o.Logger)))
}

// NewTemplateCommand creates the template command.
func NewTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}
	var kind string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Download a blank facility or audit import template",
		Long: `Write a header-only template.

Example:
  auditctl template --kind audit --as ops@example.com --format xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(opts.Format)
			if err != nil {
				return err
			}
			versionID, err := opts.versionID()
			if err != nil {
				return err
			}
			file, err := opts.withExporter(cmd.Context(), func(ctx context.Context, svc *export.Service) (export.File, error) {
				switch kind {
				case "facility":
					return svc.FacilityTemplate(ctx)
				case "audit":
					return svc.AuditTemplate(ctx, versionID, format)
				default:
					return export.File{}, fmt.Errorf("unknown --kind %q: must be facility or audit", kind)
				}
			})
			if err != nil {
				return err
			}
			return opts.writeFile(cmd, file)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&kind, "kind", "audit", "template kind (facility|audit)")
	return cmd
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every facility with its latest answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(opts.Format)
			if err != nil {
				return err
			}
			versionID, err := opts.versionID()
			if err != nil {
				return err
			}
			file, err := opts.withExporter(cmd.Context(), func(ctx context.Context, svc *export.Service) (export.File, error) {
				return svc.Facilities(ctx, versionID, format)
			})
			if err != nil {
				return err
			}
			return opts.writeFile(cmd, file)
		},
	}
	opts.bind(cmd)
	return cmd
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	TransferOptions
	DryRun    bool
	Check     bool
	ErrorsOut string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{TransferOptions: TransferOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk create or update facilities from a CSV or XLSX file",
		Long: `Import facilities and answers from an audit template shaped file.

--dry-run runs every row against the database and rolls everything back.
--check validates the file against an empty in-memory store without a database;
rows that reference existing facility ids are reported as not found.

Example:
  auditctl import --as ops@example.com --dry-run facilities.csv
  auditctl import --check facilities.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.As, "as", "", "email of the account the command acts as")
	cmd.Flags().StringVar(&opts.QuestionnaireID, "questionnaire", "", "questionnaire version id (default: published)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "roll back every change after reporting")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "validate offline against an empty in-memory store")
	cmd.Flags().StringVar(&opts.ErrorsOut, "errors-out", "", "write failed rows as a row,error CSV to this path")
	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions, path string) error {
	ctx := cmd.Context()
	versionID, err := opts.versionID()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var store repository.Store
	if opts.Check {
		store = memstore.New()
		ctx = auth.ContextWithSession(ctx, auth.Session{UserID: uuid.New(), Role: domain.RoleAdmin})
	} else {
		pg, closeStore, err := opts.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		store = pg
		if ctx, err = opts.actAs(ctx, store, opts.As); err != nil {
			return err
		}
	}

	svc := ingestion.NewService(store, nil, ingestion.WithLogger(opts.Logger))
	result, importErr := svc.Import(ctx, ingestion.Request{
		FileName:  filepath.Base(path),
		Data:      f,
		VersionID: versionID,
		DryRun:    opts.DryRun,
	})
	if importErr != nil && domain.KindOf(importErr) != domain.ErrParse {
		return importErr
	}

	if err := printResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if opts.ErrorsOut != "" && len(result.Errors) > 0 {
		report, err := export.NewService(store, export.WithLogger(opts.Logger)).ErrorReport(ctx, result.Errors)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.ErrorsOut, report.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.ErrorsOut, err)
		}
	}

	if importErr != nil {
		return importErr
	}
	if len(result.Errors) > 0 {
		return ErrRowsFailed
	}
	return nil
}

// ErrRowsFailed is returned after an import that completed with row errors.
var ErrRowsFailed = errors.New("import finished with row errors")

func printResult(w io.Writer, result ingestion.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
