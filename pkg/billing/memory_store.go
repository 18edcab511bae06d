package billing

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store, OwnerStore and OwnerFinder. Records are copied on the way in and out.
type MemoryStore struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription // by owner id
	owners map[string]Owner         // by owner id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:   make(map[string]*Subscription),
		owners: make(map[string]Owner),
	}
}

func (m *MemoryStore) FindByOwner(_ context.Context, ownerID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[ownerID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.clone(), nil
}

func (m *MemoryStore) FindByPlanID(_ context.Context, planID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subs {
		if sub.PlanID == planID {
			return sub.clone(), nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (m *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subs[sub.OwnerID]; exists {
		return ErrSubscriptionAlreadyExists
	}
	m.subs[sub.OwnerID] = sub.clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subs[sub.OwnerID]; !exists {
		return ErrSubscriptionNotFound
	}
	m.subs[sub.OwnerID] = sub.clone()
	return nil
}

func (m *MemoryStore) SaveOwner(_ context.Context, owner *Owner) error {
	if owner == nil || owner.ID == "" {
		return ErrOwnerRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.owners[owner.ID] = *owner
	return nil
}

func (m *MemoryStore) FindOwnerByCustomerID(_ context.Context, customerID string) (*Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if customerID == "" {
		return nil, ErrOwnerNotFound
	}
	for _, o := range m.owners {
		if o.CustomerID == customerID {
			owner := o
			return &owner, nil
		}
	}
	return nil, ErrOwnerNotFound
}

func (m *MemoryStore) FindOwner(_ context.Context, ownerID string) (*Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.owners[ownerID]
	if !ok {
		return nil, ErrOwnerNotFound
	}
	return &o, nil
}
