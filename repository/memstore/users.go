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

type UserRepository struct {
	mu    sync.Mutex
	users map[bson.ObjectID]*models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: map[bson.ObjectID]*models.User{}}
}

func (s *UserRepository) emailTaken(email string) bool {
	for _, u := range s.users {
		if u.Email == email {
			return true
		}
	}
	return false
}

func (s *UserRepository) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(u.Email) {
		return repository.ErrDuplicate
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *UserRepository) InsertIfAbsent(ctx context.Context, u *models.User) (bool, error) {
	err := s.Insert(ctx, u)
	if err == repository.ErrDuplicate {
		return false, nil
	}
	return err == nil, err
}

func (s *UserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserRepository) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *UserRepository) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *UserRepository) Update(_ context.Context, id bson.ObjectID, upd repository.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	u.UpdatedAt = upd.At
	return nil
}

type RefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[bson.ObjectID]*models.RefreshToken
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: map[bson.ObjectID]*models.RefreshToken{}}
}

func (s *RefreshTokenRepository) Insert(_ context.Context, t *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = bson.NewObjectID()
	}
	c := *t
	s.tokens[t.ID] = &c
	return nil
}

func (s *RefreshTokenRepository) FindActive(_ context.Context, hash string, now time.Time) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TokenHash == hash && t.RevokedAt == nil && t.ExpiresAt.After(now) {
			c := *t
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *RefreshTokenRepository) Revoke(_ context.Context, id bson.ObjectID, at time.Time, replacedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.RevokedAt = &at
	if replacedBy != "" {
		t.ReplacedBy = &replacedBy
	}
	return nil
}

func (s *RefreshTokenRepository) RevokeByHash(_ context.Context, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TokenHash == hash && t.RevokedAt == nil {
			t.RevokedAt = &at
		}
	}
	return nil
}

func (s *RefreshTokenRepository) RevokeAllForUser(_ context.Context, userID bson.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &at
		}
	}
	return nil
}
