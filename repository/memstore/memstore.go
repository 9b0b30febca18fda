// Package memstore keeps every repository in process memory. It backs the
// tests and STORE=memory local runs.
package memstore

import (
	"bytes"
	"time"

	"github.com/princinho/escolaportal/repository"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store exposes the concrete in-memory repositories so tests can inspect them.
type Store struct {
	Requests      *RequestRepository
	Outbox        *OutboxRepository
	Notifications *NotificationRepository
	Availability  *AvailabilityRepository
	Equipment     *EquipmentRepository
	Users         *UserRepository
	Tokens        *RefreshTokenRepository
	Notices       *NoticeRepository
	ViewedStates  *ViewedStateRepository
}

func New() *Store {
	outbox := NewOutboxRepository()
	return &Store{
		Requests:      NewRequestRepository(outbox),
		Outbox:        outbox,
		Notifications: NewNotificationRepository(),
		Availability:  NewAvailabilityRepository(),
		Equipment:     NewEquipmentRepository(),
		Users:         NewUserRepository(),
		Tokens:        NewRefreshTokenRepository(),
		Notices:       NewNoticeRepository(),
		ViewedStates:  NewViewedStateRepository(),
	}
}

func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Requests:      s.Requests,
		Outbox:        s.Outbox,
		Notifications: s.Notifications,
		Availability:  s.Availability,
		Equipment:     s.Equipment,
		Users:         s.Users,
		Tokens:        s.Tokens,
		Notices:       s.Notices,
		ViewedStates:  s.ViewedStates,
	}
}

// before orders by createdAt, then by _id, the way the Mongo sorts do.
func before(at, bt time.Time, aid, bid bson.ObjectID) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return bytes.Compare(aid[:], bid[:]) < 0
}
