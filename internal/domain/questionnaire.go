package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionnaireStatus is the lifecycle state of a questionnaire version.
type QuestionnaireStatus string

const (
	QuestionnaireStatusDraft     QuestionnaireStatus = "draft"
	QuestionnaireStatusPublished QuestionnaireStatus = "published"
	QuestionnaireStatusArchived  QuestionnaireStatus = "archived"
)

// Valid reports whether s is a known status.
func (s QuestionnaireStatus) Valid() bool {
	switch s {
	case QuestionnaireStatusDraft, QuestionnaireStatusPublished, QuestionnaireStatusArchived:
		return true
	}
	return false
}

// CanTransitionTo encodes draft -> published -> archived. Nothing returns to draft.
func (s QuestionnaireStatus) CanTransitionTo(next QuestionnaireStatus) bool {
	switch s {
	case QuestionnaireStatusDraft:
		return next == QuestionnaireStatusPublished
	case QuestionnaireStatusPublished:
		return next == QuestionnaireStatusArchived
	default:
		return false
	}
}

// QuestionType determines how an answer is captured and validated.
type QuestionType string

const (
	QuestionTypeString   QuestionType = "string"
	QuestionTypeNumber   QuestionType = "number"
	QuestionTypeList     QuestionType = "list"
	QuestionTypeRadio    QuestionType = "radio"
	QuestionTypeCheckbox QuestionType = "checkbox"
)

// ParseQuestionType validates a raw type name.
func ParseQuestionType(raw string) (QuestionType, bool) {
	t := QuestionType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case QuestionTypeString, QuestionTypeNumber, QuestionTypeList, QuestionTypeRadio, QuestionTypeCheckbox:
		return t, true
	}
	return "", false
}

// RequiresOptions is true for the choice types.
func (t QuestionType) RequiresOptions() bool {
	switch t {
	case QuestionTypeList, QuestionTypeRadio, QuestionTypeCheckbox:
		return true
	}
	return false
}

type QuestionnaireVersion struct {
	ID            uuid.UUID           `json:"id"`
	VersionNumber int                 `json:"version_number"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Status        QuestionnaireStatus `json:"status"`
	PublishedAt   *time.Time          `json:"published_at,omitempty"`
	PublishedBy   *uuid.UUID          `json:"published_by,omitempty"`
	CreatedBy     *uuid.UUID          `json:"created_by,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// EnsureEditable returns an InvalidStateError unless the version is a draft.
func (v QuestionnaireVersion) EnsureEditable(op string) error {
	if v.Status != QuestionnaireStatusDraft {
		return InvalidStateError(op, "questionnaire version %d is %s; only drafts can be edited", v.VersionNumber, v.Status)
	}
	return nil
}

type Section struct {
	ID                     uuid.UUID `json:"id"`
	QuestionnaireVersionID uuid.UUID `json:"questionnaire_version_id"`
	Name                   string    `json:"name"`
	Description            string    `json:"description,omitempty"`
	SortOrder              int       `json:"sort_order"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type Question struct {
	ID                     uuid.UUID    `json:"id"`
	SectionID              uuid.UUID    `json:"section_id"`
	QuestionnaireVersionID uuid.UUID    `json:"questionnaire_version_id"`
	QuestionKey            string       `json:"question_key"`
	Label                  string       `json:"label"`
	Description            string       `json:"description,omitempty"`
	Type                   QuestionType `json:"question_type"`
	Options                []string     `json:"options,omitempty"`
	IsRequired             bool         `json:"is_required"`
	SortOrder              int          `json:"sort_order"`
	IsRetired              bool         `json:"is_retired"`
	RetiredAt              *time.Time   `json:"retired_at,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// SectionWithQuestions is a section and its questions ordered by sort_order.
type SectionWithQuestions struct {
	Section
	Questions []Question `json:"questions"`
}

// QuestionnaireTree is a version with its full section/question hierarchy.
type QuestionnaireTree struct {
	QuestionnaireVersion
	Sections []SectionWithQuestions `json:"sections"`
}

// NewQuestionnaireTree assembles and orders a tree from flat rows.
func NewQuestionnaireTree(version QuestionnaireVersion, sections []Section, questions []Question) QuestionnaireTree {
	bySection := make(map[uuid.UUID][]Question, len(sections))
	for _, q := range questions {
		bySection[q.SectionID] = append(bySection[q.SectionID], q)
	}

	ordered := make([]Section, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SortOrder < ordered[j].SortOrder })

	tree := QuestionnaireTree{QuestionnaireVersion: version, Sections: make([]SectionWithQuestions, 0, len(ordered))}
	for _, s := range ordered {
		qs := bySection[s.ID]
		sort.SliceStable(qs, func(i, j int) bool { return qs[i].SortOrder < qs[j].SortOrder })
		if qs == nil {
			qs = []Question{}
		}
		tree.Sections = append(tree.Sections, SectionWithQuestions{Section: s, Questions: qs})
	}
	return tree
}

// ActiveQuestions returns non-retired questions in section then sort order.
func (t QuestionnaireTree) ActiveQuestions() []Question {
	var out []Question
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			if !q.IsRetired {
				out = append(out, q)
			}
		}
	}
	return out
}

// AllQuestions returns every question, retired included, in tree order.
func (t QuestionnaireTree) AllQuestions() []Question {
	var out []Question
	for _, s := range t.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// FindQuestion looks up a question by id anywhere in the tree.
func (t QuestionnaireTree) FindQuestion(id uuid.UUID) (Question, bool) {
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

// ActiveQuestionByKey resolves a question key against the non-retired questions.
func (t QuestionnaireTree) ActiveQuestionByKey(key string) (Question, bool) {
	for _, q := range t.ActiveQuestions() {
		if q.QuestionKey == key {
			return q, true
		}
	}
	return Question{}, false
}

// FindSection returns the section with the given id.
func (t QuestionnaireTree) FindSection(id uuid.UUID) (SectionWithQuestions, bool) {
	for _, s := range t.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return SectionWithQuestions{}, false
}

// NextVersionNumber returns max(existing)+1, or 1 when there are none.
func NextVersionNumber(versions []QuestionnaireVersion) int {
	highest := 0
	for _, v := range versions {
		if v.VersionNumber > highest {
			highest = v.VersionNumber
		}
	}
	return highest + 1
}

// NextSortOrder returns one past the highest sort order, or 0 for an empty list.
func NextSortOrder(orders []int) int {
	next := 0
	for _, o := range orders {
		if o+1 > next {
			next = o + 1
		}
	}
	return next
}

const maxQuestionKeyLength = 50

var (
	nonKeyChars = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// GenerateQuestionKey slugs a label: lowercase, strip non-alphanumerics, collapse
// whitespace to underscores, truncate to 50 characters.
func GenerateQuestionKey(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	key = nonKeyChars.ReplaceAllString(key, "")
	key = strings.TrimSpace(key)
	key = whitespace.ReplaceAllString(key, "_")
	if len(key) > maxQuestionKeyLength {
		key = key[:maxQuestionKeyLength]
	}
	return key
}

// ParseOptions splits newline separated option input, trimming and dropping blanks.
func ParseOptions(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// NormalizeOptions trims options and drops blanks.
func NormalizeOptions(options []string) []string {
	var out []string
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ValidateQuestionDefinition checks label and option requirements for a question type.
func ValidateQuestionDefinition(op, label string, qt QuestionType, options []string) error {
	if strings.TrimSpace(label) == "" {
		return ValidationError(op, "question label is required")
	}
	if _, ok := ParseQuestionType(string(qt)); !ok {
		return ValidationError(op, "unknown question type %q", qt)
	}
	if qt.RequiresOptions() && len(NormalizeOptions(options)) == 0 {
		return ValidationError(op, "%s questions require at least one option", qt)
	}
	if GenerateQuestionKey(label) == "" {
		return ValidationError(op, "question label must contain letters or digits")
	}
	return nil
}
