package questionnaire

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/metrics"
	"github.com/rpattn/auditdesk/internal/repository"
	"go.uber.org/zap"
)

// Direction moves a section one slot up or down.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Service manages questionnaire versions and their section/question tree.
type Service struct {
	store   repository.Store
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

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store repository.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QuestionInput is the editable part of a question.
type QuestionInput struct {
	Label       string
	Description string
	Type        domain.QuestionType
	Options     []string
	IsRequired  bool
}

func (in QuestionInput) normalized() QuestionInput {
	in.Label = strings.TrimSpace(in.Label)
	in.Description = strings.TrimSpace(in.Description)
	if in.Type.RequiresOptions() {
		in.Options = domain.NormalizeOptions(in.Options)
	} else {
		in.Options = nil
	}
	return in
}

func (s *Service) requireConfigure(ctx context.Context, op string) (auth.Session, error) {
	return auth.Require(ctx, op, auth.CanConfigureQuestionnaire)
}

// CreateVersion allocates the next version number and creates a draft.
func (s *Service) CreateVersion(ctx context.Context, name, description string) (domain.QuestionnaireVersion, error) {
	const op = "questionnaire.create_version"
	session, err := s.requireConfigure(ctx, op)
	if err != nil {
		return domain.QuestionnaireVersion{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.QuestionnaireVersion{}, domain.ValidationError(op, "name is required")
	}

	actor := session.UserID
	version, err := s.store.Questionnaires().CreateVersion(ctx, domain.QuestionnaireVersion{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   &actor,
	})
	if err != nil {
		return domain.QuestionnaireVersion{}, err
	}
	s.logger.Info("questionnaire version created",
		zap.String("version_id", version.ID.String()),
		zap.Int("version_number", version.VersionNumber),
		zap.String("actor", actor.String()),
	)
	return version, nil
}

func (s *Service) ListVersions(ctx context.Context) ([]domain.QuestionnaireVersion, error) {
	if _, err := auth.RequireSession(ctx, "questionnaire.list_versions"); err != nil {
		return nil, err
	}
	return s.store.Questionnaires().ListVersions(ctx)
}

// Tree loads a version with its ordered sections and questions.
func (s *Service) Tree(ctx context.Context, versionID uuid.UUID) (domain.QuestionnaireTree, error) {
	if _, err := auth.RequireSession(ctx, "questionnaire.tree"); err != nil {
		return domain.QuestionnaireTree{}, err
	}
	return LoadTree(ctx, s.store, versionID)
}

// PublishedTree loads the currently published version.
func (s *Service) PublishedTree(ctx context.Context) (domain.QuestionnaireTree, error) {
	if _, err := auth.RequireSession(ctx, "questionnaire.published_tree"); err != nil {
		return domain.QuestionnaireTree{}, err
	}
	return LoadPublishedTree(ctx, s.store)
}

// LoadTree assembles a version tree without permission checks. Shared with the
// auditing, ingestion and export services.
func LoadTree(ctx context.Context, store repository.Store, versionID uuid.UUID) (domain.QuestionnaireTree, error) {
	repo := store.Questionnaires()
	version, err := repo.GetVersion(ctx, versionID)
	if err != nil {
		return domain.QuestionnaireTree{}, err
	}
	sections, err := repo.ListSections(ctx, versionID)
	if err != nil {
		return domain.QuestionnaireTree{}, err
	}
	questions, err := repo.ListQuestions(ctx, versionID)
	if err != nil {
		return domain.QuestionnaireTree{}, err
	}
	return domain.NewQuestionnaireTree(version, sections, questions), nil
}

// LoadPublishedTree loads the published version tree, NotFound when nothing is published.
func LoadPublishedTree(ctx context.Context, store repository.Store) (domain.QuestionnaireTree, error) {
	version, err := store.Questionnaires().GetPublished(ctx)
	if err != nil {
		return domain.QuestionnaireTree{}, err
	}
	return LoadTree(ctx, store, version.ID)
}

// Publish archives the current published version and publishes versionID in one transaction.
func (s *Service) Publish(ctx context.Context, versionID uuid.UUID) (domain.QuestionnaireVersion, error) {
	const op = "questionnaire.publish"
	session, err := s.requireConfigure(ctx, op)
	if err != nil {
		return domain.QuestionnaireVersion{}, err
	}

	var published domain.QuestionnaireVersion
	var archived int64
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		version, err := tx.Questionnaires().GetVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if !version.Status.CanTransitionTo(domain.QuestionnaireStatusPublished) {
			return domain.InvalidStateError(op, "questionnaire version %d is %s; only drafts can be published", version.VersionNumber, version.Status)
		}
		now := s.now()
		if archived, err = tx.Questionnaires().ArchivePublished(ctx, now); err != nil {
			return err
		}
		published, err = tx.Questionnaires().MarkPublished(ctx, versionID, session.UserID, now)
		return err
	})
	if err != nil {
		s.logger.Error("publish failed", zap.String("version_id", versionID.String()), zap.Error(err))
		return domain.QuestionnaireVersion{}, err
	}

	s.metrics.Published()
	s.logger.Info("questionnaire published",
		zap.String("version_id", published.ID.String()),
		zap.Int("version_number", published.VersionNumber),
		zap.Int64("archived", archived),
		zap.String("actor", session.UserID.String()),
	)
	return published, nil
}

// editableVersion loads a version and ensures it is a draft.
func editableVersion(ctx context.Context, repo repository.QuestionnaireRepository, op string, versionID uuid.UUID) (domain.QuestionnaireVersion, error) {
	version, err := repo.GetVersion(ctx, versionID)
	if err != nil {
		return domain.QuestionnaireVersion{}, err
	}
	if err := version.EnsureEditable(op); err != nil {
		return domain.QuestionnaireVersion{}, err
	}
	return version, nil
}

// AddSection appends a section after the last one of a draft version.
func (s *Service) AddSection(ctx context.Context, versionID uuid.UUID, name, description string) (domain.Section, error) {
	const op = "questionnaire.add_section"
	if _, err := s.requireConfigure(ctx, op); err != nil {
		return domain.Section{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Section{}, domain.ValidationError(op, "section name is required")
	}

	var created domain.Section
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		repo := tx.Questionnaires()
		if _, err := editableVersion(ctx, repo, op, versionID); err != nil {
			return err
		}
		sections, err := repo.ListSections(ctx, versionID)
		if err != nil {
			return err
		}
		orders := make([]int, 0, len(sections))
		for _, sec := range sections {
			orders = append(orders, sec.SortOrder)
		}
		created, err = repo.CreateSection(ctx, domain.Section{
			QuestionnaireVersionID: versionID,
			Name:                   name,
			Description:            strings.TrimSpace(description),
			SortOrder:              domain.NextSortOrder(orders),
		})
		return err
	})
	return created, err
}

// EditSection renames a section of a draft version.
func (s *Service) EditSection(ctx context.Context, sectionID uuid.UUID, name, description string) (domain.Section, error) {
	const op = "questionnaire.edit_section"
	if _, err := s.requireConfigure(ctx, op); err != nil {
		return domain.Section{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Section{}, domain.ValidationError(op, "section name is required")
	}

	repo := s.store.Questionnaires()
	section, err := repo.GetSection(ctx, sectionID)
	if err != nil {
		return domain.Section{}, err
	}
	if _, err := editableVersion(ctx, repo, op, section.QuestionnaireVersionID); err != nil {
		return domain.Section{}, err
	}
	section.Name = name
	section.Description = strings.TrimSpace(description)
	return repo.UpdateSection(ctx, section)
}

// DeleteSection removes a section of a draft version together with its questions.
func (s *Service) DeleteSection(ctx context.Context, sectionID uuid.UUID) error {
	const op = "questionnaire.delete_section"
	if _, err := s.requireConfigure(ctx, op); err != nil {
		return err
	}

	repo := s.store.Questionnaires()
	section, err := repo.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	if _, err := editableVersion(ctx, repo, op, section.QuestionnaireVersionID); err != nil {
		return err
	}
	return repo.DeleteSection(ctx, sectionID)
}

// MoveSection swaps a section with its neighbour. Moving past either end is a no-op.
func (s *Service) MoveSection(ctx context.Context, sectionID uuid.UUID, direction Direction) ([]domain.Section, error) {
	const op = "questionnaire.move_section"
	if _, err := s.requireConfigure(ctx, op); err != nil {
		return nil, err
	}
	if direction != DirectionUp && direction != DirectionDown {
		return nil, domain.ValidationError(op, "direction must be up or down")
	}

	var ordered []domain.Section
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		repo := tx.Questionnaires()
		section, err := repo.GetSection(ctx, sectionID)
		if err != nil {
			return err
		}
		if _, err := editableVersion(ctx, repo, op, section.QuestionnaireVersionID); err != nil {
			return err
		}
		sections, err := repo.ListSections(ctx, section.QuestionnaireVersionID)
		if err != nil {
			return err
		}

		idx := -1
		for i, sec := range sections {
			if sec.ID == sectionID {
				idx = i
				break
			}
		}
		target := idx - 1
		if direction == DirectionDown {
			target = idx + 1
		}
		if idx < 0 || target < 0 || target >= len(sections) {
			ordered = sections
			return nil
		}
		if err := repo.SwapSectionOrder(ctx, sections[idx], sections[target]); err != nil {
			return err
		}
		ordered, err = repo.ListSections(ctx, section.QuestionnaireVersionID)
		return err
	})
	return ordered, err
}

// AddQuestion appends a question to a section of a draft version. The key is derived
// from the label once and must be unique within the version.
func (s *Service) AddQuestion(ctx context.Context, sectionID uuid.UUID, in QuestionInput) (domain.Question, error) {
	const op = "questionnaire.add_question"
	if _, err := s.requireConfigure(ctx, op); err != nil {
		return domain.Question{}, err
	}
	in = in.normalized()
	if err := domain.ValidateQuestionDefinition(op, in.Label, in.Type, in.Options); err != nil {
		return domain.Question{}, err
	}
	key := domain.GenerateQuestionKey(in.Label)

	var created domain.Question
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		repo := tx.Questionnaires()
		section, err := repo.GetSection(ctx, sectionID)
		if err != nil {
			return err
		}
		if _, err := editableVersion(ctx, repo, op, section.QuestionnaireVersionID); err != nil {
			return err
		}
		exists, err := repo.QuestionKeyExists(ctx, section.QuestionnaireVersionID, key)
		if err != nil {
			return err
		}
		if exists {
			return domain.ConflictError(op, "a question with key %q already exists in this version", key)
		}

		questions, err := repo.ListQuestions(ctx, section.QuestionnaireVersionID)
		if err != nil {
			return err
		}
		var orders []int
		for _, q := range questions {
			if q.SectionID == sectionID {
				orders = append(orders, q.SortOrder)
			}
		}

		created, err = repo.CreateQuestion(ctx, domain.Question{
			SectionID:              sectionID,
			QuestionnaireVersionID: section.QuestionnaireVersionID,
			QuestionKey:            key,
			Label:                  in.Label,
			Description:            in.Description,
			Type:                   in.Type,
			Options:                in.Options,
			IsRequired:             in.IsRequired,
			SortOrder:              domain.NextSortOrder(orders),
		})
		return err
	})
	if err != nil {
		return domain.Question{}, err
	}
	s.logger.Info("question added", zap.String("question_id", created.ID.String()), zap.String("question_key", created.QuestionKey))
	return created, nil
}

// EditQuestion updates label, description, type, options and required flag. The key never changes.
func (s *Service) EditQuestion(ctx context.Context, questionID uuid.UUID, in QuestionInput) (domain.Question, error) {
	const op = "questionnaire.edit_question"
	if _, err := s.requireConfigure(ctx, op); err != nil {
		return domain.Question{}, err
	}
	in = in.normalized()
	if err := domain.ValidateQuestionDefinition(op, in.Label, in.Type, in.Options); err != nil {
		return domain.Question{}, err
	}

	repo := s.store.Questionnaires()
	question, err := repo.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	if _, err := editableVersion(ctx, repo, op, question.QuestionnaireVersionID); err != nil {
		return domain.Question{}, err
	}
	if question.IsRetired {
		return domain.Question{}, domain.InvalidStateError(op, "question %q is retired", question.QuestionKey)
	}

	question.Label = in.Label
	question.Description = in.Description
	question.Type = in.Type
	question.Options = in.Options
	question.IsRequired = in.IsRequired
	return repo.UpdateQuestion(ctx, question)
}

// RetireQuestion hides a question from new answers. Allowed on any version status
// and irreversible; retiring twice keeps the first retired_at.
func (s *Service) RetireQuestion(ctx context.Context, questionID uuid.UUID) (domain.Question, error) {
	const op = "questionnaire.retire_question"
	session, err := s.requireConfigure(ctx, op)
	if err != nil {
		return domain.Question{}, err
	}
	question, err := s.store.Questionnaires().RetireQuestion(ctx, questionID, s.now())
	if err != nil {
		return domain.Question{}, err
	}
	s.logger.Info("question retired",
		zap.String("question_id", question.ID.String()),
		zap.String("question_key", question.QuestionKey),
		zap.String("actor", session.UserID.String()),
	)
	return question, nil
}

// ResolveVersion returns versionID when set, otherwise the published version.
func ResolveVersion(ctx context.Context, store repository.Store, versionID *uuid.UUID) (domain.QuestionnaireTree, error) {
	if versionID != nil && *versionID != uuid.Nil {
		return LoadTree(ctx, store, *versionID)
	}
	tree, err := LoadPublishedTree(ctx, store)
	if err != nil {
		if domain.KindOf(err) == domain.ErrNotFound {
			return domain.QuestionnaireTree{}, domain.NotFoundError("questionnaire.resolve", "no questionnaire version is published")
		}
		return domain.QuestionnaireTree{}, fmt.Errorf("load published questionnaire: %w", err)
	}
	return tree, nil
}
