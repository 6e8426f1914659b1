package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

type profiles struct{ s *Store }

func (r profiles) Create(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	unlock, err := r.s.lock("profiles.Create")
	if err != nil {
		return domain.Profile{}, err
	}
	defer unlock()

	if _, ok := r.s.st.data.identities[p.ID]; !ok {
		return domain.Profile{}, domain.ValidationError("create profile", "referenced record does not exist")
	}
	p.Email = lower(p.Email)
	for _, other := range r.s.st.data.profiles {
		if other.ID == p.ID || other.Email == p.Email {
			return domain.Profile{}, conflict("create profile")
		}
	}
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.st.data.profiles[p.ID] = p
	return p, nil
}

func (r profiles) GetByID(ctx context.Context, id uuid.UUID) (domain.Profile, error) {
	unlock, err := r.s.lock("profiles.GetByID")
	if err != nil {
		return domain.Profile{}, err
	}
	defer unlock()

	p, ok := r.s.st.data.profiles[id]
	if !ok {
		return domain.Profile{}, notFound("get profile")
	}
	return p, nil
}

func (r profiles) List(ctx context.Context) ([]domain.Profile, error) {
	unlock, err := r.s.lock("profiles.List")
	if err != nil {
		return nil, err
	}
	defer unlock()

	return sortedValues(r.s.st.data.profiles, func(a, b domain.Profile) bool {
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

func (r profiles) Update(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	unlock, err := r.s.lock("profiles.Update")
	if err != nil {
		return domain.Profile{}, err
	}
	defer unlock()

	current, ok := r.s.st.data.profiles[p.ID]
	if !ok {
		return domain.Profile{}, notFound("update profile")
	}
	current.FullName = p.FullName
	current.Role = p.Role
	current.IsActive = p.IsActive
	current.UpdatedAt = r.s.now()
	r.s.st.data.profiles[p.ID] = current
	return current, nil
}

type identities struct{ s *Store }

func (r identities) Create(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	unlock, err := r.s.lock("identities.Create")
	if err != nil {
		return domain.Identity{}, err
	}
	defer unlock()

	identity.Email = lower(identity.Email)
	for _, other := range r.s.st.data.identities {
		if other.Email == identity.Email {
			return domain.Identity{}, conflict("create identity")
		}
	}
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	identity.CreatedAt = r.s.now()
	r.s.st.data.identities[identity.ID] = identity
	return identity, nil
}

func (r identities) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	unlock, err := r.s.lock("identities.GetByEmail")
	if err != nil {
		return domain.Identity{}, err
	}
	defer unlock()

	email = lower(email)
	for _, identity := range r.s.st.data.identities {
		if identity.Email == email {
			return identity, nil
		}
	}
	return domain.Identity{}, notFound("get identity")
}

func (r identities) Delete(ctx context.Context, id uuid.UUID) error {
	unlock, err := r.s.lock("identities.Delete")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.st.data.identities[id]; !ok {
		return notFound("delete identity")
	}
	delete(r.s.st.data.identities, id)
	delete(r.s.st.data.profiles, id)
	for hash, session := range r.s.st.data.sessions {
		if session.UserID == id {
			delete(r.s.st.data.sessions, hash)
		}
	}
	return nil
}

func (r identities) CreateSession(ctx context.Context, session domain.SessionRecord) error {
	unlock, err := r.s.lock("identities.CreateSession")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := r.s.st.data.identities[session.UserID]; !ok {
		return domain.ValidationError("create session", "referenced record does not exist")
	}
	if _, exists := r.s.st.data.sessions[session.TokenHash]; exists {
		return conflict("create session")
	}
	session.CreatedAt = r.s.now()
	r.s.st.data.sessions[session.TokenHash] = session
	return nil
}

func (r identities) GetSession(ctx context.Context, tokenHash string) (domain.SessionRecord, error) {
	unlock, err := r.s.lock("identities.GetSession")
	if err != nil {
		return domain.SessionRecord{}, err
	}
	defer unlock()

	session, ok := r.s.st.data.sessions[tokenHash]
	if !ok {
		return domain.SessionRecord{}, notFound("get session")
	}
	return session, nil
}

func (r identities) DeleteSession(ctx context.Context, tokenHash string) error {
	unlock, err := r.s.lock("identities.DeleteSession")
	if err != nil {
		return err
	}
	defer unlock()

	delete(r.s.st.data.sessions, tokenHash)
	return nil
}

func (r identities) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	unlock, err := r.s.lock("identities.DeleteExpiredSessions")
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for hash, session := range r.s.st.data.sessions {
		if session.Expired(now) {
			delete(r.s.st.data.sessions, hash)
			n++
		}
	}
	return n, nil
}
