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

type RequestRepository struct {
	mu     sync.Mutex
	byType map[models.RequestType]map[bson.ObjectID]*models.Request
	outbox *OutboxRepository
}

func NewRequestRepository(outbox *OutboxRepository) *RequestRepository {
	byType := make(map[models.RequestType]map[bson.ObjectID]*models.Request, len(models.RequestTypes))
	for _, t := range models.RequestTypes {
		byType[t] = map[bson.ObjectID]*models.Request{}
	}
	return &RequestRepository{byType: byType, outbox: outbox}
}

func cloneRequest(r *models.Request) *models.Request {
	c := *r
	c.Messages = slices.Clone(r.Messages)
	c.EquipmentIDs = slices.Clone(r.EquipmentIDs)
	return &c
}

func (s *RequestRepository) collection(t models.RequestType) (map[bson.ObjectID]*models.Request, error) {
	col, ok := s.byType[t]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return col, nil
}

func (s *RequestRepository) Insert(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(r.Type)
	if err != nil {
		return err
	}
	if _, exists := col[r.Id]; exists {
		return repository.ErrDuplicate
	}
	col[r.Id] = cloneRequest(r)
	return nil
}

func (s *RequestRepository) FindByID(_ context.Context, t models.RequestType, id bson.ObjectID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(t)
	if err != nil {
		return nil, err
	}
	r, ok := col[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRequest(r), nil
}

func matches(r *models.Request, f repository.RequestFilter) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if slices.Contains(f.ExcludeStatuses, r.Status) {
		return false
	}
	if f.UserEmail != "" && r.UserEmail != f.UserEmail {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if len(f.EquipmentIDs) > 0 {
		hit := false
		for _, id := range f.EquipmentIDs {
			if slices.Contains(r.EquipmentIDs, id) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func (s *RequestRepository) Find(_ context.Context, t models.RequestType, f repository.RequestFilter) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(t)
	if err != nil {
		return nil, err
	}
	out := make([]models.Request, 0)
	for _, r := range col {
		if matches(r, f) {
			out = append(out, *cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[j].CreatedAt, out[i].CreatedAt, out[j].Id, out[i].Id) })
	return out, nil
}

func (s *RequestRepository) UpdateStatus(_ context.Context, t models.RequestType, id bson.ObjectID, ch repository.StatusChange, event *models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(t)
	if err != nil {
		return err
	}
	r, ok := col[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status != ch.From {
		return repository.ErrStaleWrite
	}
	r.Status = ch.To
	r.UpdatedAt = ch.At
	if ch.RejectionReason != "" {
		r.RejectionReason = ch.RejectionReason
	}
	if ch.DeliveryDate != "" {
		r.DeliveryDate = ch.DeliveryDate
	}
	if event != nil {
		s.outbox.put(event)
	}
	return nil
}

func (s *RequestRepository) AppendMessage(_ context.Context, t models.RequestType, id bson.ObjectID, msg models.Message, event *models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(t)
	if err != nil {
		return err
	}
	r, ok := col[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Messages = append(r.Messages, msg)
	r.UpdatedAt = msg.Timestamp
	if event != nil {
		s.outbox.put(event)
	}
	return nil
}

func (s *RequestRepository) SetHidden(_ context.Context, t models.RequestType, id bson.ObjectID, hidden bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(t)
	if err != nil {
		return err
	}
	r, ok := col[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Hidden = hidden
	r.UpdatedAt = at
	return nil
}

func (s *RequestRepository) Delete(_ context.Context, t models.RequestType, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(t)
	if err != nil {
		return err
	}
	if _, ok := col[id]; !ok {
		return repository.ErrNotFound
	}
	delete(col, id)
	return nil
}
