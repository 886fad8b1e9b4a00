package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/protown/backend/internal/domain"
)

// MemoryStore is an in-memory implementation of the professional, activation,
// and instrument stores. Activation leases are per-professional mutexes, so
// two concurrent activation attempts for the same professional serialize
// exactly like the row lock in the SQL adapter; the store-wide mutex is only
// held for map access, never across the caller's callback.
type MemoryStore struct {
	mu            sync.RWMutex
	professionals map[string]*domain.Professional
	intents       map[string]*domain.ActivationIntent
	instruments   map[string][]*domain.PaymentInstrument
	leases        map[string]*sync.Mutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		professionals: make(map[string]*domain.Professional),
		intents:       make(map[string]*domain.ActivationIntent),
		instruments:   make(map[string][]*domain.PaymentInstrument),
		leases:        make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) lease(professionalID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leases[professionalID]
	if !ok {
		l = &sync.Mutex{}
		s.leases[professionalID] = l
	}
	return l
}

func copyProfessional(p *domain.Professional) *domain.Professional {
	cp := *p
	return &cp
}

// Create inserts a new professional.
func (s *MemoryStore) Create(ctx context.Context, p *domain.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.professionals {
		if existing.Email == p.Email {
			return domain.ErrConflict("email already registered")
		}
	}
	s.professionals[p.ID] = copyProfessional(p)
	return nil
}

// FindByID returns a professional by ID, or nil when absent.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*domain.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.professionals[id]
	if !ok {
		return nil, nil
	}
	return copyProfessional(p), nil
}

// FindByEmail returns a professional by email, or nil when absent.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*domain.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.professionals {
		if p.Email == email {
			return copyProfessional(p), nil
		}
	}
	return nil, nil
}

// List returns all professionals ordered by creation date, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*domain.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pros := make([]*domain.Professional, 0, len(s.professionals))
	for _, p := range s.professionals {
		pros = append(pros, copyProfessional(p))
	}
	sort.Slice(pros, func(i, j int) bool {
		if pros[i].CreatedAt.Equal(pros[j].CreatedAt) {
			return pros[i].ID < pros[j].ID
		}
		return pros[i].CreatedAt.After(pros[j].CreatedAt)
	})
	return pros, nil
}

// GetIntent returns the professional's activation intent, or nil when absent.
func (s *MemoryStore) GetIntent(ctx context.Context, professionalID string) (*domain.ActivationIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[professionalID]
	if !ok {
		return nil, nil
	}
	cp := *intent
	return &cp, nil
}

// PutIntent upserts the professional's activation intent.
func (s *MemoryStore) PutIntent(ctx context.Context, intent *domain.ActivationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *intent
	s.intents[intent.ProfessionalID] = &cp
	return nil
}

// UpdateActivation runs fn under the professional's exclusive lease and
// commits fn's mutations atomically.
func (s *MemoryStore) UpdateActivation(
	ctx context.Context,
	professionalID string,
	fn func(p *domain.Professional, intent *domain.ActivationIntent) (*domain.IntentChange, error),
) (*domain.Professional, error) {
	l := s.lease(professionalID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	stored, ok := s.professionals[professionalID]
	var p *domain.Professional
	if ok {
		p = copyProfessional(stored)
	}
	var intent *domain.ActivationIntent
	if in, ok := s.intents[professionalID]; ok {
		cp := *in
		intent = &cp
	}
	s.mu.RUnlock()

	if p == nil {
		return nil, domain.ErrNotFound("professional not found")
	}

	change, err := fn(p, intent)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.professionals[professionalID] = copyProfessional(p)
	if change != nil {
		if change.Clear {
			delete(s.intents, professionalID)
		}
		if change.Put != nil {
			cp := *change.Put
			s.intents[professionalID] = &cp
		}
	}
	s.mu.Unlock()

	return p, nil
}

func copyInstrument(ins *domain.PaymentInstrument) *domain.PaymentInstrument {
	cp := *ins
	return &cp
}

// CreateInstrument inserts a validated instrument; the first instrument for a
// professional becomes the default.
func (s *MemoryStore) CreateInstrument(ctx context.Context, ins *domain.PaymentInstrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.instruments[ins.ProfessionalID]) == 0 {
		ins.IsDefault = true
	}
	s.instruments[ins.ProfessionalID] = append(s.instruments[ins.ProfessionalID], copyInstrument(ins))
	return nil
}

// ListByProfessional returns a professional's instruments, newest first.
func (s *MemoryStore) ListByProfessional(ctx context.Context, professionalID string) ([]*domain.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.instruments[professionalID]
	out := make([]*domain.PaymentInstrument, 0, len(stored))
	for _, ins := range stored {
		out = append(out, copyInstrument(ins))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindDefault returns the default instrument, or nil when none exists.
func (s *MemoryStore) FindDefault(ctx context.Context, professionalID string) (*domain.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ins := range s.instruments[professionalID] {
		if ins.IsDefault {
			return copyInstrument(ins), nil
		}
	}
	return nil, nil
}

// SetDefault marks one instrument as default and unsets the others.
func (s *MemoryStore) SetDefault(ctx context.Context, professionalID, instrumentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, ins := range s.instruments[professionalID] {
		if ins.ID == instrumentID {
			found = true
		}
	}
	if !found {
		return domain.ErrNotFound("payment instrument not found")
	}
	for _, ins := range s.instruments[professionalID] {
		ins.IsDefault = ins.ID == instrumentID
	}
	return nil
}

// DeleteInstrument removes an instrument, promoting the most recently created
// remaining instrument when the default was removed.
func (s *MemoryStore) DeleteInstrument(ctx context.Context, professionalID, instrumentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.instruments[professionalID]
	idx := -1
	for i, ins := range stored {
		if ins.ID == instrumentID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.ErrNotFound("payment instrument not found")
	}

	wasDefault := stored[idx].IsDefault
	stored = append(stored[:idx], stored[idx+1:]...)
	s.instruments[professionalID] = stored

	if wasDefault && len(stored) > 0 {
		newest := stored[0]
		for _, ins := range stored[1:] {
			if ins.CreatedAt.After(newest.CreatedAt) ||
				(ins.CreatedAt.Equal(newest.CreatedAt) && ins.ID < newest.ID) {
				newest = ins
			}
		}
		newest.IsDefault = true
	}
	return nil
}
