package store

import (
	"context"
	"sync"
	"time"

	"energybalance/internal/models"
)

// MemoryStore is the in-process fallback used when MongoDB is unreachable
// or unconfigured. State does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	families map[string]*models.Family
}

func NewMemory() *MemoryStore {
	return &MemoryStore{families: make(map[string]*models.Family)}
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*models.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.families {
		if _, ok := f.SlotFor(email); ok {
			return cloneFamily(f), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.families[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneFamily(f), nil
}

func (s *MemoryStore) Create(_ context.Context, family *models.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[family.ID] = cloneFamily(family)
	return nil
}

func (s *MemoryStore) SaveToken(_ context.Context, id string, slot models.Slot, token *models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[id]
	if !ok {
		return ErrNotFound
	}
	if slot == models.SlotPartner {
		f.PartnerToken = cloneToken(token)
	} else {
		f.OwnerToken = cloneToken(token)
	}
	f.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetupPartner(_ context.Context, id, partnerEmail string, ownerRole models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[id]
	if !ok {
		return ErrNotFound
	}
	if f.PartnerToken != nil {
		return ErrPartnerTaken
	}
	f.PartnerEmail = partnerEmail
	f.OwnerRole = ownerRole
	f.PartnerRole = models.ComplementOf(ownerRole)
	f.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ClaimPartnerSlot(_ context.Context, id, partnerEmail string, role models.Role, token *models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[id]
	if !ok {
		return ErrNotFound
	}
	if f.PartnerEmail != "" {
		return ErrPartnerTaken
	}
	f.PartnerEmail = partnerEmail
	f.PartnerRole = role
	f.PartnerToken = cloneToken(token)
	f.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetManualEnergy(_ context.Context, id string, role models.Role, energy int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[id]
	if !ok {
		return ErrNotFound
	}
	if f.ManualEnergy == nil {
		f.ManualEnergy = make(map[models.Role]int)
	}
	f.ManualEnergy[role] = energy
	f.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ClearManualEnergy(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[id]
	if !ok {
		return ErrNotFound
	}
	f.ManualEnergy = nil
	f.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// cloneFamily copies a record so callers never share memory with the map.
func cloneFamily(f *models.Family) *models.Family {
	c := *f
	c.OwnerToken = cloneToken(f.OwnerToken)
	c.PartnerToken = cloneToken(f.PartnerToken)
	if f.ManualEnergy != nil {
		c.ManualEnergy = make(map[models.Role]int, len(f.ManualEnergy))
		for k, v := range f.ManualEnergy {
			c.ManualEnergy[k] = v
		}
	}
	return &c
}

func cloneToken(t *models.TokenRecord) *models.TokenRecord {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
