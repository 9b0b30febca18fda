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

// NoticeRepository fans changes out to watchers the way a change stream would.
type NoticeRepository struct {
	mu       sync.Mutex
	notices  map[bson.ObjectID]*models.Notice
	watchers map[chan models.NoticeEvent]struct{}
}

func NewNoticeRepository() *NoticeRepository {
	return &NoticeRepository{
		notices:  map[bson.ObjectID]*models.Notice{},
		watchers: map[chan models.NoticeEvent]struct{}{},
	}
}

func cloneNotice(n *models.Notice) *models.Notice {
	c := *n
	c.Attachments = slices.Clone(n.Attachments)
	return &c
}

// publish must be called with s.mu held. Slow watchers drop events.
func (s *NoticeRepository) publish(ev models.NoticeEvent) {
	for ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *NoticeRepository) Insert(_ context.Context, n *models.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notices[n.ID]; ok {
		return repository.ErrDuplicate
	}
	s.notices[n.ID] = cloneNotice(n)
	s.publish(models.NoticeEvent{Op: models.NoticeCreated, ID: n.ID, Notice: cloneNotice(n)})
	return nil
}

func (s *NoticeRepository) FindByID(_ context.Context, id bson.ObjectID) (*models.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneNotice(n), nil
}

func (s *NoticeRepository) List(_ context.Context, limit int) ([]models.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notice, 0, len(s.notices))
	for _, n := range s.notices {
		out = append(out, *cloneNotice(n))
	}
	sort.Slice(out, func(i, j int) bool { return before(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NoticeRepository) Delete(_ context.Context, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notices[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.notices, id)
	s.publish(models.NoticeEvent{Op: models.NoticeDeleted, ID: id})
	return nil
}

func (s *NoticeRepository) Watch(ctx context.Context) (<-chan models.NoticeEvent, error) {
	ch := make(chan models.NoticeEvent, 16)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}
