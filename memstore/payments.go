package memstore

import (
	"context"
	"fmt"
	"sort"

	"shop-svc/models"
)

func clonePayment(p models.Payment) models.Payment {
	p.OrderID = intPtr(p.OrderID)
	p.UserID = intPtr(p.UserID)
	if p.PaidAt != nil {
		at := *p.PaidAt
		p.PaidAt = &at
	}
	return p
}

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	if _, ok := s.payments[p.Reference]; ok {
		return nil, fmt.Errorf("payment %s: %w", p.Reference, models.ErrPaymentReferenceSet)
	}

	s.nextPaymentID++
	created := clonePayment(*p)
	created.ID = s.nextPaymentID
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt

	t.record(restore(s.payments, created.Reference))
	s.payments[created.Reference] = created

	out := clonePayment(created)
	return &out, nil
}

func (s *Store) GetPaymentByReference(ctx context.Context, ref string) (*models.Payment, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	p, ok := s.payments[ref]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	out := clonePayment(p)
	return &out, nil
}

func (s *Store) GetPaymentByID(ctx context.Context, id int) (*models.Payment, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	for _, p := range s.payments {
		if p.ID == id {
			out := clonePayment(p)
			return &out, nil
		}
	}
	return nil, models.ErrPaymentNotFound
}

func (s *Store) CompletePayment(ctx context.Context, ref string, c models.PaymentCompletion) (bool, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	p, ok := s.payments[ref]
	if !ok {
		return false, models.ErrPaymentNotFound
	}
	if p.Status != models.PaymentStatusPending {
		return false, nil
	}

	t.record(restore(s.payments, ref))
	p.Status = c.Status
	p.Channel = c.Channel
	if c.PaidAt != nil {
		at := *c.PaidAt
		p.PaidAt = &at
	}
	p.UpdatedAt = s.now()
	s.payments[ref] = p
	return true, nil
}

func (s *Store) ListPayments(ctx context.Context, f models.PaymentFilter) ([]models.Payment, int, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	payments := []models.Payment{}
	for _, p := range s.payments {
		if f.UserID != nil && (p.UserID == nil || *p.UserID != *f.UserID) {
			continue
		}
		payments = append(payments, clonePayment(p))
	}
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].CreatedAt.After(payments[j].CreatedAt)
		}
		return payments[i].ID > payments[j].ID
	})
	return paginate(payments, f.Limit, f.Offset), len(payments), nil
}
