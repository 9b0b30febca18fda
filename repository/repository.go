// Package repository declares the persistence contracts used by the services.
// repository/mongostore backs them with MongoDB, repository/memstore keeps
// everything in process memory.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/princinho/escolaportal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	// ErrStaleWrite means a guarded update lost the race against another writer.
	ErrStaleWrite = errors.New("document changed concurrently")
)

type RequestFilter struct {
	Statuses        []models.RequestStatus
	ExcludeStatuses []models.RequestStatus
	UserEmail       string
	Date            string
	// EquipmentIDs matches requests holding any of the ids.
	EquipmentIDs []string
}

// StatusChange moves a request from From to To. The write only applies
// while the stored status still equals From.
type StatusChange struct {
	From            models.RequestStatus
	To              models.RequestStatus
	RejectionReason string
	DeliveryDate    string
	At              time.Time
}

type RequestRepository interface {
	Insert(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, t models.RequestType, id bson.ObjectID) (*models.Request, error)
	// Find returns matching requests of one type, newest first.
	Find(ctx context.Context, t models.RequestType, f RequestFilter) ([]models.Request, error)
	// UpdateStatus applies the change and stores event (when non-nil) atomically.
	UpdateStatus(ctx context.Context, t models.RequestType, id bson.ObjectID, ch StatusChange, event *models.OutboxEvent) error
	// AppendMessage pushes msg onto the thread and stores event (when non-nil) atomically.
	AppendMessage(ctx context.Context, t models.RequestType, id bson.ObjectID, msg models.Message, event *models.OutboxEvent) error
	SetHidden(ctx context.Context, t models.RequestType, id bson.ObjectID, hidden bool, at time.Time) error
	Delete(ctx context.Context, t models.RequestType, id bson.ObjectID) error
}

type OutboxRepository interface {
	// FindPending returns undelivered events with fewer than maxAttempts attempts, oldest first.
	FindPending(ctx context.Context, maxAttempts, limit int) ([]models.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id bson.ObjectID, at time.Time) error
	MarkFailed(ctx context.Context, id bson.ObjectID, reason string) error
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Notification, error)
	// FindForRecipient returns global notifications plus those addressed to
	// email, excluding ones email archived, newest first.
	FindForRecipient(ctx context.Context, email string) ([]models.Notification, error)
	AddReader(ctx context.Context, id bson.ObjectID, email string) error
	AddReaderMany(ctx context.Context, ids []bson.ObjectID, email string) error
	ArchiveFor(ctx context.Context, ids []bson.ObjectID, email string) error
	Delete(ctx context.Context, id bson.ObjectID) error
	DeleteMany(ctx context.Context, ids []bson.ObjectID) (int64, error)
}

type AvailabilityRepository interface {
	// List returns every stored date in ascending order.
	List(ctx context.Context) ([]models.AvailableDate, error)
	Exists(ctx context.Context, date string) (bool, error)
	// AddMany stores dates, skipping ones already present, and returns how many were new.
	AddMany(ctx context.Context, dates []string, at time.Time) (int, error)
	RemoveMany(ctx context.Context, dates []string) (int64, error)
	// RemoveBefore deletes every date strictly before date.
	RemoveBefore(ctx context.Context, date string) (int64, error)
}

type EquipmentUpdate struct {
	Name                      *string
	Type                      *string
	IsAvailableForReservation *bool
	At                        time.Time
}

type EquipmentRepository interface {
	Insert(ctx context.Context, e *models.Equipment) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Equipment, error)
	FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]models.Equipment, error)
	List(ctx context.Context, onlyReservable bool) ([]models.Equipment, error)
	Update(ctx context.Context, id bson.ObjectID, u EquipmentUpdate) error
	Delete(ctx context.Context, id bson.ObjectID) error
	DeleteMany(ctx context.Context, ids []bson.ObjectID) (int64, error)
}

type UserUpdate struct {
	Name         *string
	Role         *models.Role
	IsActive     *bool
	PasswordHash *string
	At           time.Time
}

type UserRepository interface {
	Insert(ctx context.Context, u *models.User) error
	// InsertIfAbsent creates u unless a user with the same email exists.
	InsertIfAbsent(ctx context.Context, u *models.User) (bool, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id bson.ObjectID, u UserUpdate) error
}

type RefreshTokenRepository interface {
	Insert(ctx context.Context, t *models.RefreshToken) error
	// FindActive returns the unrevoked, unexpired token with this hash.
	FindActive(ctx context.Context, hash string, now time.Time) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id bson.ObjectID, at time.Time, replacedBy string) error
	RevokeByHash(ctx context.Context, hash string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID bson.ObjectID, at time.Time) error
}

type NoticeRepository interface {
	Insert(ctx context.Context, n *models.Notice) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Notice, error)
	List(ctx context.Context, limit int) ([]models.Notice, error)
	Delete(ctx context.Context, id bson.ObjectID) error
	// Watch streams board changes until ctx is done.
	Watch(ctx context.Context) (<-chan models.NoticeEvent, error)
}

type ViewedStateRepository interface {
	Load(ctx context.Context, deviceID, storageKey string) ([]string, error)
	AddKeys(ctx context.Context, deviceID, storageKey string, keys []string, at time.Time) error
}

// Repositories bundles every repository the application wires together.
type Repositories struct {
	Requests      RequestRepository
	Outbox        OutboxRepository
	Notifications NotificationRepository
	Availability  AvailabilityRepository
	Equipment     EquipmentRepository
	Users         UserRepository
	Tokens        RefreshTokenRepository
	Notices       NoticeRepository
	ViewedStates  ViewedStateRepository
}
