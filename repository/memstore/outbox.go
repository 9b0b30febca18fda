package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type OutboxRepository struct {
	mu     sync.Mutex
	events map[bson.ObjectID]*models.OutboxEvent
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{events: map[bson.ObjectID]*models.OutboxEvent{}}
}

func (s *OutboxRepository) put(e *models.OutboxEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.events[e.ID] = &c
}

func (s *OutboxRepository) FindPending(_ context.Context, maxAttempts, limit int) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OutboxEvent, 0)
	for _, e := range s.events {
		if e.DeliveredAt != nil {
			continue
		}
		if maxAttempts > 0 && e.Attempts >= maxAttempts {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *OutboxRepository) MarkDelivered(_ context.Context, id bson.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.DeliveredAt = &at
	e.Attempts++
	e.LastError = ""
	return nil
}

func (s *OutboxRepository) MarkFailed(_ context.Context, id bson.ObjectID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Attempts++
	e.LastError = reason
	return nil
}

// All returns a snapshot of every stored event.
func (s *OutboxRepository) All() []models.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OutboxEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out
}
