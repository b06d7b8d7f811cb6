// Package memstore keeps the whole shop in process memory. It offers the
// same methods as the Postgres repositories, including transactions, and
// backs STORE=memory as well as the workflow tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"shop-svc/models"
)

type txKey struct{}

type tx struct {
	undo []func()
}

type Store struct {
	mu sync.Mutex

	products map[int]models.Product
	orders   map[int]models.Order
	payments map[string]models.Payment
	users    map[int]models.User

	// subscribers is keyed by lowercased email.
	subscribers map[string]models.Subscriber

	nextProductID    int
	nextOrderID      int
	nextPaymentID    int
	nextUserID       int
	nextSubscriberID int

	now func() time.Time
}

func New() *Store {
	return &Store{
		products:    make(map[int]models.Product),
		orders:      make(map[int]models.Order),
		payments:    make(map[string]models.Payment),
		users:       make(map[int]models.User),
		subscribers: make(map[string]models.Subscriber),
		now:         time.Now,
	}
}

// WithinTx runs fn with the store locked. Store calls made with the ctx
// passed to fn join the transaction; if fn fails every change it made is
// undone before the lock is released.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// lock takes the store mutex unless ctx already holds it through a
// transaction. The returned tx is nil outside a transaction.
func (s *Store) lock(ctx context.Context) (*tx, func()) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		return t, func() {}
	}
	s.mu.Lock()
	return nil, s.mu.Unlock
}

func (t *tx) record(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

func restore[K comparable, V any](m map[K]V, key K) func() {
	prev, existed := m[key]
	return func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	}
}

func intPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
