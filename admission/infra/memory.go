package infra

import (
	"context"
	"sync"

	"aspirasi-gateway/admission/domain"
)

// MemoryStore guarda política e estado em mapas protegidos por mutex.
// O conteúdo se perde no restart.
type MemoryStore struct {
	mu       sync.Mutex
	policies map[string]domain.Policy
	states   map[string]domain.PeriodState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]domain.Policy),
		states:   make(map[string]domain.PeriodState),
	}
}

func stateKey(namespace, ipHash string) string { return namespace + "/" + ipHash }

func (m *MemoryStore) GetPolicy(ctx context.Context, namespace string) (domain.Policy, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Policy{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.policies[namespace]
	if !ok {
		return domain.Policy{}, false, nil
	}
	p.AllowedCategories = append([]domain.Category(nil), p.AllowedCategories...)
	return p, true, nil
}

func (m *MemoryStore) PutPolicy(ctx context.Context, namespace string, p domain.Policy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p.AllowedCategories = append([]domain.Category(nil), p.AllowedCategories...)
	m.policies[namespace] = p
	return nil
}

func (m *MemoryStore) GetState(ctx context.Context, namespace, ipHash string) (*domain.PeriodState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[stateKey(namespace, ipHash)]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryStore) SaveState(ctx context.Context, namespace string, next domain.PeriodState) (domain.PeriodState, error) {
	if err := ctx.Err(); err != nil {
		return domain.PeriodState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := stateKey(namespace, next.IPHash)
	cur, ok := m.states[k]
	switch {
	case !ok && next.Version != 0:
		return domain.PeriodState{}, domain.ErrConflict
	case ok && cur.Version != next.Version:
		return domain.PeriodState{}, domain.ErrConflict
	}

	next.Version++
	m.states[k] = next
	return next, nil
}

func (m *MemoryStore) SetWhitelisted(ctx context.Context, namespace, ipHash string, whitelisted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := stateKey(namespace, ipHash)
	st, ok := m.states[k]
	if !ok {
		st = domain.PeriodState{IPHash: ipHash}
	}
	st.IsWhitelisted = whitelisted
	st.Version++
	m.states[k] = st
	return nil
}

func (m *MemoryStore) ResetState(ctx context.Context, namespace, ipHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := stateKey(namespace, ipHash)
	if _, ok := m.states[k]; !ok {
		return domain.ErrNotFound
	}
	delete(m.states, k)
	return nil
}
