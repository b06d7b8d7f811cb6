package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"shop-svc/models"
)

func (s *Store) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	search := strings.ToLower(f.Search)
	products := []models.Product{}
	for _, p := range s.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Subcategory != "" && p.Subcategory != f.Subcategory {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.Brand), search) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return paginate(products, f.Limit, f.Offset), nil
}

func (s *Store) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	s.nextProductID++
	created := *p
	created.ID = s.nextProductID
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt

	t.record(restore(s.products, created.ID))
	s.products[created.ID] = created
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int, u models.ProductUpdate) (*models.Product, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Brand != nil {
		p.Brand = *u.Brand
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Subcategory != nil {
		p.Subcategory = *u.Subcategory
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	p.UpdatedAt = s.now()

	t.record(restore(s.products, id))
	s.products[id] = p
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int) error {
	t, unlock := s.lock(ctx)
	defer unlock()

	if _, ok := s.products[id]; !ok {
		return models.ErrProductNotFound
	}
	t.record(restore(s.products, id))
	delete(s.products, id)
	return nil
}

func (s *Store) DeleteAllProducts(ctx context.Context) (int64, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	n := int64(len(s.products))
	for id := range s.products {
		t.record(restore(s.products, id))
		delete(s.products, id)
	}
	return n, nil
}

func (s *Store) ConditionalDecrementStock(ctx context.Context, id, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid decrement quantity %d", quantity)
	}

	t, unlock := s.lock(ctx)
	defer unlock()

	p, ok := s.products[id]
	if !ok {
		return models.ErrProductNotFound
	}
	if p.Stock < quantity {
		return models.ErrInsufficientStock
	}

	t.record(restore(s.products, id))
	p.Stock -= quantity
	p.UpdatedAt = s.now()
	s.products[id] = p
	return nil
}
