// Package memstore is an in-memory repository.Store with the same constraint
// behaviour as the PostgreSQL schema. Used by tests and CLI dry runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/repository"
)

type answerKey struct {
	auditID    uuid.UUID
	questionID uuid.UUID
}

type data struct {
	facilities map[uuid.UUID]domain.Facility
	versions   map[uuid.UUID]domain.QuestionnaireVersion
	sections   map[uuid.UUID]domain.Section
	questions  map[uuid.UUID]domain.Question
	audits     map[uuid.UUID]domain.Audit
	answers    map[answerKey]domain.AuditAnswer
	changeLogs []domain.ChangeLog
	profiles   map[uuid.UUID]domain.Profile
	identities map[uuid.UUID]domain.Identity
	sessions   map[string]domain.SessionRecord
	tooltips   map[uuid.UUID]domain.TooltipConfig
	filters    map[uuid.UUID]domain.FilterConfig
}

func newData() data {
	return data{
		facilities: map[uuid.UUID]domain.Facility{},
		versions:   map[uuid.UUID]domain.QuestionnaireVersion{},
		sections:   map[uuid.UUID]domain.Section{},
		questions:  map[uuid.UUID]domain.Question{},
		audits:     map[uuid.UUID]domain.Audit{},
		answers:    map[answerKey]domain.AuditAnswer{},
		profiles:   map[uuid.UUID]domain.Profile{},
		identities: map[uuid.UUID]domain.Identity{},
		sessions:   map[string]domain.SessionRecord{},
		tooltips:   map[uuid.UUID]domain.TooltipConfig{},
		filters:    map[uuid.UUID]domain.FilterConfig{},
	}
}

func (d data) clone() data {
	out := newData()
	for k, v := range d.facilities {
		out.facilities[k] = v
	}
	for k, v := range d.versions {
		out.versions[k] = v
	}
	for k, v := range d.sections {
		out.sections[k] = v
	}
	for k, v := range d.questions {
		out.questions[k] = v
	}
	for k, v := range d.audits {
		out.audits[k] = v
	}
	for k, v := range d.answers {
		out.answers[k] = v
	}
	out.changeLogs = append([]domain.ChangeLog(nil), d.changeLogs...)
	for k, v := range d.profiles {
		out.profiles[k] = v
	}
	for k, v := range d.identities {
		out.identities[k] = v
	}
	for k, v := range d.sessions {
		out.sessions[k] = v
	}
	for k, v := range d.tooltips {
		out.tooltips[k] = v
	}
	for k, v := range d.filters {
		out.filters[k] = v
	}
	return out
}

type state struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	data     data
	failures map[string]error
	clock    time.Time
}

// Store implements repository.Store in memory.
type Store struct {
	st   *state
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: &state{
		data:     newData(),
		failures: map[string]error{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
}

// Fail makes every call to op return err until cleared with a nil err.
// op is "<repo>.<Method>", e.g. "audits.UpsertAnswer".
func (s *Store) Fail(op string, err error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err == nil {
		delete(s.st.failures, op)
		return
	}
	s.st.failures[op] = err
}

// ChangeLogCount returns the number of stored change log rows.
func (s *Store) ChangeLogCount() int {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return len(s.st.data.changeLogs)
}

// AllChangeLogs returns every change log row in insertion order.
func (s *Store) AllChangeLogs() []domain.ChangeLog {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return append([]domain.ChangeLog(nil), s.st.data.changeLogs...)
}

// AnswerCount returns the number of stored answers.
func (s *Store) AnswerCount() int {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return len(s.st.data.answers)
}

// AuditCount returns the number of stored audits.
func (s *Store) AuditCount() int {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return len(s.st.data.audits)
}

// lock acquires the data mutex and checks failure injection for op.
func (s *Store) lock(op string) (func(), error) {
	s.st.mu.Lock()
	if err, ok := s.st.failures[op]; ok {
		s.st.mu.Unlock()
		return func() {}, domain.StoreError(op, err)
	}
	return s.st.mu.Unlock, nil
}

// now advances a monotonic clock so creation order is always observable. Caller holds mu.
func (s *Store) now() time.Time {
	s.st.clock = s.st.clock.Add(time.Millisecond)
	return s.st.clock
}

func (s *Store) Facilities() repository.FacilityRepository { return facilities{s} }
func (s *Store) Questionnaires() repository.QuestionnaireRepository { return questionnaires{s} }
func (s *Store) Audits() repository.AuditRepository { return audits{s} }
func (s *Store) ChangeLogs() repository.ChangeLogRepository { return changeLogs{s} }
func (s *Store) Profiles() repository.ProfileRepository { return profiles{s} }
func (s *Store) Identities() repository.IdentityRepository { return identities{s} }
func (s *Store) DisplayConfig() repository.DisplayConfigRepository { return displayConfig{s} }

// WithinTx snapshots the data and restores it when fn fails. Transactions are serialised.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	s.st.mu.Lock()
	snapshot := s.st.data.clone()
	s.st.mu.Unlock()

	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.mu.Lock()
		s.st.data = snapshot
		s.st.mu.Unlock()
		return err
	}
	return nil
}

func notFound(op string) error {
	return domain.NotFoundError(op, "record not found")
}

func conflict(op string) error {
	return domain.ConflictError(op, "record already exists")
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func sortedValues[T any](m map[uuid.UUID]T, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
