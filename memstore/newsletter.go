package memstore

import (
	"context"
	"sort"
	"strings"

	"shop-svc/models"
)

func cloneSubscriber(s models.Subscriber) models.Subscriber {
	if s.UnsubscribedAt != nil {
		at := *s.UnsubscribedAt
		s.UnsubscribedAt = &at
	}
	return s
}

func (s *Store) Subscribe(ctx context.Context, email string) (*models.Subscriber, bool, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	key := strings.ToLower(email)
	sub, ok := s.subscribers[key]
	switch {
	case ok && sub.IsActive:
		return nil, false, models.ErrAlreadySubscribed
	case ok:
		t.record(restore(s.subscribers, key))
		sub.IsActive = true
		sub.UnsubscribedAt = nil
		sub.UpdatedAt = s.now()
		s.subscribers[key] = sub
		out := cloneSubscriber(sub)
		return &out, true, nil
	}

	s.nextSubscriberID++
	sub = models.Subscriber{
		ID:        s.nextSubscriberID,
		Email:     email,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	sub.UpdatedAt = sub.CreatedAt

	t.record(restore(s.subscribers, key))
	s.subscribers[key] = sub
	out := cloneSubscriber(sub)
	return &out, false, nil
}

func (s *Store) Unsubscribe(ctx context.Context, email string) (*models.Subscriber, error) {
	t, unlock := s.lock(ctx)
	defer unlock()

	key := strings.ToLower(email)
	sub, ok := s.subscribers[key]
	if !ok {
		return nil, models.ErrNotSubscribed
	}
	if !sub.IsActive {
		return nil, models.ErrAlreadyUnsubscribed
	}

	t.record(restore(s.subscribers, key))
	now := s.now()
	sub.IsActive = false
	sub.UnsubscribedAt = &now
	sub.UpdatedAt = now
	s.subscribers[key] = sub
	out := cloneSubscriber(sub)
	return &out, nil
}

func (s *Store) ListSubscribers(ctx context.Context, limit, offset int) ([]models.Subscriber, int, error) {
	_, unlock := s.lock(ctx)
	defer unlock()

	subs := []models.Subscriber{}
	for _, sub := range s.subscribers {
		if sub.IsActive {
			subs = append(subs, cloneSubscriber(sub))
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.After(subs[j].CreatedAt)
		}
		return subs[i].ID > subs[j].ID
	})
	return paginate(subs, limit, offset), len(subs), nil
}
