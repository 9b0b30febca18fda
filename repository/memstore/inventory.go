package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type AvailabilityRepository struct {
	mu    sync.Mutex
	dates map[string]models.AvailableDate
}

func NewAvailabilityRepository() *AvailabilityRepository {
	return &AvailabilityRepository{dates: map[string]models.AvailableDate{}}
}

func (s *AvailabilityRepository) List(_ context.Context) ([]models.AvailableDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AvailableDate, 0, len(s.dates))
	for _, d := range s.dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *AvailabilityRepository) Exists(_ context.Context, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dates[date]
	return ok, nil
}

func (s *AvailabilityRepository) AddMany(_ context.Context, dates []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, d := range dates {
		if _, ok := s.dates[d]; ok {
			continue
		}
		s.dates[d] = models.AvailableDate{Date: d, CreatedAt: at}
		added++
	}
	return added, nil
}

func (s *AvailabilityRepository) RemoveMany(_ context.Context, dates []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range dates {
		if _, ok := s.dates[d]; ok {
			delete(s.dates, d)
			n++
		}
	}
	return n, nil
}

func (s *AvailabilityRepository) RemoveBefore(_ context.Context, date string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	// YYYY-MM-DD compares correctly as a string
	for d := range s.dates {
		if d < date {
			delete(s.dates, d)
			n++
		}
	}
	return n, nil
}

type EquipmentRepository struct {
	mu    sync.Mutex
	items map[bson.ObjectID]*models.Equipment
}

func NewEquipmentRepository() *EquipmentRepository {
	return &EquipmentRepository{items: map[bson.ObjectID]*models.Equipment{}}
}

func (s *EquipmentRepository) Insert(_ context.Context, e *models.Equipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[e.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *e
	s.items[e.ID] = &c
	return nil
}

func (s *EquipmentRepository) FindByID(_ context.Context, id bson.ObjectID) (*models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (s *EquipmentRepository) FindByIDs(_ context.Context, ids []bson.ObjectID) ([]models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Equipment, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.items[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *EquipmentRepository) List(_ context.Context, onlyReservable bool) ([]models.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Equipment, 0, len(s.items))
	for _, e := range s.items {
		if onlyReservable && !e.IsAvailableForReservation {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *EquipmentRepository) Update(_ context.Context, id bson.ObjectID, u repository.EquipmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Type != nil {
		e.Type = *u.Type
	}
	if u.IsAvailableForReservation != nil {
		e.IsAvailableForReservation = *u.IsAvailableForReservation
	}
	e.UpdatedAt = u.At
	return nil
}

func (s *EquipmentRepository) Delete(_ context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *EquipmentRepository) DeleteMany(_ context.Context, ids []bson.ObjectID) (int64, error) {
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

type ViewedStateRepository struct {
	mu     sync.Mutex
	states map[[2]string][]string
}

func NewViewedStateRepository() *ViewedStateRepository {
	return &ViewedStateRepository{states: map[[2]string][]string{}}
}

func (s *ViewedStateRepository) Load(_ context.Context, deviceID, storageKey string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.states[[2]string{deviceID, storageKey}]), nil
}

func (s *ViewedStateRepository) AddKeys(_ context.Context, deviceID, storageKey string, keys []string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{deviceID, storageKey}
	cur := s.states[k]
	for _, key := range keys {
		cur = addUnique(cur, key)
	}
	s.states[k] = cur
	return nil
}
