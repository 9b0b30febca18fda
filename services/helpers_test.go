package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository/memstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var (
	saoPaulo = time.FixedZone("BRT", -3*60*60)

	adminActor = models.Actor{UserID: bson.NewObjectID().Hex(), Email: "admin@escola.com", Name: "Admin", Role: models.RoleAdmin}
	opsActor   = models.Actor{UserID: bson.NewObjectID().Hex(), Email: "ops@escola.com", Name: "Operacional", Role: models.RoleOperacional}
	finActor   = models.Actor{UserID: bson.NewObjectID().Hex(), Email: "fin@escola.com", Name: "Financeiro", Role: models.RoleFinanceiro}
	ana        = models.Actor{UserID: bson.NewObjectID().Hex(), Email: "ana@escola.com", Name: "Ana", Role: models.RoleUser}
	bruno      = models.Actor{UserID: bson.NewObjectID().Hex(), Email: "bruno@escola.com", Name: "Bruno", Role: models.RoleUser}
)

type fixture struct {
	store         *memstore.Store
	clock         *fakeClock
	availability  *AvailabilityService
	equipment     *EquipmentService
	requests      *RequestService
	notifications *NotificationService
	outbox        *OutboxWorker
}

func quietLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// newFixture wires every service over a fresh memstore with the clock set to
// 2025-05-30 12:00 in São Paulo.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	clock := &fakeClock{now: time.Date(2025, 5, 30, 12, 0, 0, 0, saoPaulo)}
	log := quietLogger()

	availability := NewAvailabilityService(store.Availability, saoPaulo, log)
	availability.Now = clock.Now

	equipment := NewEquipmentService(store.Equipment)
	equipment.Now = clock.Now

	requests := NewRequestService(store.Requests, store.Equipment, availability, map[models.RequestType]time.Duration{
		models.RequestTypeReservation: 7 * 24 * time.Hour,
		models.RequestTypePurchase:    30 * 24 * time.Hour,
		models.RequestTypeSupport:     14 * 24 * time.Hour,
	}, log)
	requests.Now = clock.Now

	notifications := NewNotificationService(store.Notifications, 5, RetentionArchive, log)
	notifications.Now = clock.Now

	outbox := NewOutboxWorker(store.Outbox, notifications, time.Millisecond, 10, 3, log)
	outbox.Now = clock.Now

	return &fixture{
		store:         store,
		clock:         clock,
		availability:  availability,
		equipment:     equipment,
		requests:      requests,
		notifications: notifications,
		outbox:        outbox,
	}
}

func (f *fixture) openDates(t *testing.T, dates ...string) {
	t.Helper()
	_, err := f.availability.AddDates(context.Background(), adminActor, dates)
	require.NoError(t, err)
}

func (f *fixture) addEquipment(t *testing.T, name, kind string, reservable bool) *models.Equipment {
	t.Helper()
	e, err := f.equipment.Create(context.Background(), adminActor, EquipmentInput{Name: name, Type: kind, IsAvailableForReservation: reservable})
	require.NoError(t, err)
	return e
}

func (f *fixture) reserve(t *testing.T, actor models.Actor, date, start, end string, equipment ...*models.Equipment) (*models.Request, error) {
	t.Helper()
	ids := make([]string, 0, len(equipment))
	for _, e := range equipment {
		ids = append(ids, e.ID.Hex())
	}
	return f.requests.Create(context.Background(), actor, &models.Request{
		Type:         models.RequestTypeReservation,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		EquipmentIDs: ids,
		Location:     "Sala 3",
		Purpose:      "Aula de ciências",
	})
}

func (f *fixture) purchase(t *testing.T, actor models.Actor) *models.Request {
	t.Helper()
	r, err := f.requests.Create(context.Background(), actor, &models.Request{
		Type:          models.RequestTypePurchase,
		ItemName:      "Papel A4",
		Quantity:      10,
		UnitPrice:     25.5,
		Urgency:       "media",
		Justification: "Provas bimestrais",
		Tipo:          "pedagogico",
	})
	require.NoError(t, err)
	return r
}
