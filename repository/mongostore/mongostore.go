// Package mongostore implements the repository contracts on MongoDB.
package mongostore

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/princinho/escolaportal/database"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/utils"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// New builds every repository over db.
func New(db *mongo.Database) repository.Repositories {
	return repository.Repositories{
		Requests:      NewRequestRepository(db),
		Outbox:        NewOutboxRepository(db),
		Notifications: NewNotificationRepository(db),
		Availability:  NewAvailabilityRepository(db),
		Equipment:     NewEquipmentRepository(db),
		Users:         NewUserRepository(db),
		Tokens:        NewRefreshTokenRepository(db),
		Notices:       NewNoticeRepository(db),
		ViewedStates:  NewViewedStateRepository(db),
	}
}

// wrap maps driver errors onto repository sentinels and adds context.
func wrap(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case utils.IsDuplicateKey(err):
		return repository.ErrDuplicate
	}
	return pkgerrors.Wrap(err, msg)
}

func requestCollection(db *mongo.Database, t models.RequestType) (*mongo.Collection, error) {
	switch t {
	case models.RequestTypeReservation:
		return db.Collection(database.ReservationsCollection), nil
	case models.RequestTypePurchase:
		return db.Collection(database.PurchasesCollection), nil
	case models.RequestTypeSupport:
		return db.Collection(database.SupportCollection), nil
	}
	return nil, pkgerrors.Errorf("unknown request type %q", t)
}
