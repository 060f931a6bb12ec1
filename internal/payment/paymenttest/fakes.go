// Package paymenttest provides in-memory payment fakes for tests.
package paymenttest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/payment"
)

// Repository is a payment.Repository kept in a map.
type Repository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]payment.Payment
}

func NewRepository(payments ...*payment.Payment) *Repository {
	r := &Repository{payments: map[uuid.UUID]payment.Payment{}}
	for _, p := range payments {
		r.payments[p.ID] = *p
	}
	return r
}

func (r *Repository) Snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[uuid.UUID]payment.Payment, len(r.payments))
	for k, v := range r.payments {
		saved[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.payments = saved
	}
}

// Len returns the number of stored payments.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

func (r *Repository) Insert(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.SessionID == p.SessionID {
			return apperr.Conflict("resource already exists", nil)
		}
	}
	r.payments[p.ID] = *p
	return nil
}

func (r *Repository) Get(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, apperr.NotFound("Payment with ID %s not found.", id)
	}
	return &p, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return r.Get(ctx, id)
}

func (r *Repository) GetBySession(_ context.Context, sessionID string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.SessionID == sessionID {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("Payment with session %s not found.", sessionID)
}

func (r *Repository) List(_ context.Context, f payment.Filter) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*payment.Payment{}
	for _, p := range r.payments {
		if !matches(p, f) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Money.Equal(out[j].Money) {
			return out[i].Money.LessThan(out[j].Money)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func matches(p payment.Payment, f payment.Filter) bool {
	if f.UserID != nil && p.UserID != *f.UserID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, p.Status) {
		return false
	}
	if len(f.BorrowingIDs) > 0 && !contains(f.BorrowingIDs, p.BorrowingID) {
		return false
	}
	return true
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func (r *Repository) Update(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.ID]; !ok {
		return apperr.NotFound("Payment with ID %s not found.", p.ID)
	}
	r.payments[p.ID] = *p
	return nil
}

// Provider is a scripted payment.SessionProvider.
type Provider struct {
	mu       sync.Mutex
	seq      int
	states   map[string]payment.SessionState
	Requests []payment.SessionRequest

	// CreateErr and RetrieveErr, when set, are returned by the calls.
	CreateErr   error
	RetrieveErr map[string]error
}

func NewProvider() *Provider {
	return &Provider{states: map[string]payment.SessionState{}, RetrieveErr: map[string]error{}}
}

func (p *Provider) CreateSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return payment.Session{}, p.CreateErr
	}
	p.seq++
	id := fmt.Sprintf("cs_test_%d", p.seq)
	p.states[id] = payment.SessionState{ID: id, Status: payment.SessionOpen}
	p.Requests = append(p.Requests, req)
	return payment.Session{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (p *Provider) RetrieveSession(_ context.Context, id string) (payment.SessionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.RetrieveErr[id]; err != nil {
		return payment.SessionState{}, err
	}
	state, ok := p.states[id]
	if !ok {
		return payment.SessionState{}, &payment.ProviderError{Kind: payment.ErrInvalidRequest, Err: fmt.Errorf("no such session: %s", id)}
	}
	return state, nil
}

// Complete marks a session paid.
func (p *Provider) Complete(id string) {
	p.set(id, payment.SessionState{ID: id, Status: payment.SessionComplete, Paid: true})
}

// Expire marks a session expired.
func (p *Provider) Expire(id string) {
	p.set(id, payment.SessionState{ID: id, Status: payment.SessionExpired})
}

func (p *Provider) set(id string, state payment.SessionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[id] = state
}
