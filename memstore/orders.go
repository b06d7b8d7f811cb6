package memstore

import (
	"context"
	"sort"

	"shop-svc/models"
)

func cloneOrder(o models.Order) models.Order {
	o.UserID = intPtr(o.UserID)
	o.Items = append([]models.OrderItem{}, o.Items...)
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		o.ShippingAddress = &addr
	}
	if o.PaymentReference != nil {
		ref := *o.PaymentReference
		o.PaymentReference = &ref
	}
	return o
}

func (s *Store) SaveOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	s.nextOrderID++
	saved := cloneOrder(*o)
	saved.ID = s.nextOrderID
	saved.CreatedAt = s.now()
	saved.UpdatedAt = saved.CreatedAt

	t.record(restore(s.orders, saved.ID))
	s.orders[saved.ID] = saved

	out := cloneOrder(saved)
	return &out, nil
}

func (s *Store) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	out := cloneOrder(o)
	return &out, nil
}

func (s *Store) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	orders := []models.Order{}
	for _, o := range s.orders {
		if f.UserID != nil && (o.UserID == nil || *o.UserID != *f.UserID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return paginate(orders, f.Limit, f.Offset), nil
}

func (s *Store) ConditionalUpdateStatus(ctx context.Context, id int, from, to models.OrderStatus) (bool, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	o, ok := s.orders[id]
	if !ok {
		return false, models.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}

	t.record(restore(s.orders, id))
	o.Status = to
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return true, nil
}

func (s *Store) SetPaymentReference(ctx context.Context, id int, ref string) error {
	t, unlock := s.lock(ctx)
	defer unlock()

	o, ok := s.orders[id]
	if !ok {
		return models.ErrOrderNotFound
	}
	if o.PaymentReference != nil {
		return models.ErrPaymentReferenceSet
	}

	t.record(restore(s.orders, id))
	o.PaymentReference = &ref
	o.PaymentStatus = models.PaymentStatusPending
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return nil
}

func (s *Store) ReplacePaymentReference(ctx context.Context, id int, old, ref string) error {
	t, unlock := s.lock(ctx)
	defer unlock()

	o, ok := s.orders[id]
	if !ok {
		return models.ErrOrderNotFound
	}
	if o.PaymentReference == nil || *o.PaymentReference != old {
		return models.ErrPaymentReferenceSet
	}

	t.record(restore(s.orders, id))
	o.PaymentReference = &ref
	o.PaymentStatus = models.PaymentStatusPending
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id int, status models.PaymentStatus) error {
	t, unlock := s.lock(ctx)
	defer unlock()

	o, ok := s.orders[id]
	if !ok {
		return models.ErrOrderNotFound
	}

	t.record(restore(s.orders, id))
	o.PaymentStatus = status
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, id int) error {
	t, unlock := s.lock(ctx)
	defer unlock()

	if _, ok := s.orders[id]; !ok {
		return models.ErrOrderNotFound
	}
	t.record(restore(s.orders, id))
	delete(s.orders, id)

	for ref, p := range s.payments {
		if p.OrderID != nil && *p.OrderID == id {
			t.record(restore(s.payments, ref))
			p.OrderID = nil
			p.UpdatedAt = s.now()
			s.payments[ref] = p
		}
	}
	return nil
}
