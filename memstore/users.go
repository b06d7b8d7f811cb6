package memstore

import (
	"context"
	"sort"
	"strings"

	"shop-svc/models"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, models.ErrEmailTaken
		}
	}

	s.nextUserID++
	created := *u
	created.ID = s.nextUserID
	created.CreatedAt = s.now()

	t.record(restore(s.users, created.ID))
	s.users[created.ID] = created
	return &created, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *Store) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
	return paginate(users, limit, offset), len(users), nil
}

// DeleteUser removes the account and detaches its orders.
func (s *Store) DeleteUser(ctx context.Context, id int) (*models.User, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	t.record(restore(s.users, id))
	delete(s.users, id)

	for oid, o := range s.orders {
		if o.UserID != nil && *o.UserID == id {
			t.record(restore(s.orders, oid))
			o.UserID = nil
			s.orders[oid] = o
		}
	}
	return &u, nil
}
