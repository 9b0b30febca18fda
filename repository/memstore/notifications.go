package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type NotificationRepository struct {
	mu    sync.Mutex
	items map[bson.ObjectID]*models.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{items: map[bson.ObjectID]*models.Notification{}}
}

func cloneNotification(n *models.Notification) *models.Notification {
	c := *n
	c.Recipients = slices.Clone(n.Recipients)
	c.ReadBy = slices.Clone(n.ReadBy)
	c.ArchivedBy = slices.Clone(n.ArchivedBy)
	return &c
}

func (s *NotificationRepository) Insert(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[n.ID]; ok {
		return repository.ErrDuplicate
	}
	s.items[n.ID] = cloneNotification(n)
	return nil
}

func (s *NotificationRepository) FindByID(_ context.Context, id bson.ObjectID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneNotification(n), nil
}

func (s *NotificationRepository) FindForRecipient(_ context.Context, email string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0)
	for _, n := range s.items {
		if n.VisibleTo(email) {
			out = append(out, *cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID) })
	return out, nil
}

func addUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

func (s *NotificationRepository) AddReader(_ context.Context, id bson.ObjectID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.ReadBy = addUnique(n.ReadBy, email)
	return nil
}

func (s *NotificationRepository) AddReaderMany(_ context.Context, ids []bson.ObjectID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if n, ok := s.items[id]; ok {
			n.ReadBy = addUnique(n.ReadBy, email)
		}
	}
	return nil
}

func (s *NotificationRepository) ArchiveFor(_ context.Context, ids []bson.ObjectID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if n, ok := s.items[id]; ok {
			n.ArchivedBy = addUnique(n.ArchivedBy, email)
		}
	}
	return nil
}

func (s *NotificationRepository) Delete(_ context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *NotificationRepository) DeleteMany(_ context.Context, ids []bson.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many notifications exist.
func (s *NotificationRepository) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
