package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/unread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestCreate_SetsServerFields(t *testing.T) {
	f := newFixture(t)
	f.openDates(t, "2025-06-01")
	e1 := f.addEquipment(t, "E1", "iPad", true)

	r, err := f.reserve(t, ana, "2025-06-01", "09:00", "10:00", e1)
	require.NoError(t, err)
	assert.False(t, r.Id.IsZero())
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, "ana@escola.com", r.UserEmail)
	assert.Equal(t, "Ana", r.UserName)
	assert.False(t, r.Hidden)
	assert.Empty(t, r.Messages)
	assert.Equal(t, f.clock.Now().UTC(), r.CreatedAt)

	stored, err := f.requests.GetByID(context.Background(), ana, models.RequestTypeReservation, r.Id)
	require.NoError(t, err)
	assert.Equal(t, r.Id, stored.Id)
}

func TestCreate_ReservationPreconditions(t *testing.T) {
	f := newFixture(t)
	f.openDates(t, "2025-06-01")
	e1 := f.addEquipment(t, "E1", "iPad", true)
	broken := f.addEquipment(t, "Quebrado", "iPad", false)

	_, err := f.reserve(t, ana, "2025-06-02", "09:00", "10:00", e1)
	assert.ErrorIs(t, err, ErrDateUnavailable)

	_, err = f.reserve(t, ana, "2025-06-01", "09:00", "10:00", broken)
	assert.ErrorIs(t, err, ErrEquipmentNotReservable)

	missing := &models.Equipment{ID: bson.NewObjectID()}
	_, err = f.reserve(t, ana, "2025-06-01", "09:00", "10:00", missing)
	assert.ErrorIs(t, err, ErrEquipmentNotReservable)

	_, err = f.reserve(t, ana, "2025-06-01", "10:00", "09:00", e1)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

// slowFind stretches every lookup so concurrent creates interleave.
type slowFind struct {
	repository.RequestRepository
	delay time.Duration
}

func (s slowFind) Find(ctx context.Context, t models.RequestType, f repository.RequestFilter) ([]models.Request, error) {
	time.Sleep(s.delay)
	return s.RequestRepository.Find(ctx, t, f)
}

func TestCreate_ConcurrentOverlapsBookOnce(t *testing.T) {
	f := newFixture(t)
	f.openDates(t, "2025-06-01", "2025-06-02")
	e1 := f.addEquipment(t, "E1", "iPad", true)

	slow := slowFind{RequestRepository: f.store.Requests, delay: 20 * time.Millisecond}
	f.requests.Requests = slow
	f.requests.Conflicts.Requests = slow

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := ana
			if i%2 == 1 {
				actor = bruno
			}
			_, errs[i] = f.reserve(t, actor, "2025-06-01", "09:00", "10:00", e1)
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrReservationConflict)
	}
	assert.Equal(t, 1, created)

	stored, err := f.store.Requests.Find(context.Background(), models.RequestTypeReservation, repository.RequestFilter{Date: "2025-06-01"})
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// other dates are not held up by the lock
	_, err = f.reserve(t, ana, "2025-06-02", "09:00", "10:00", e1)
	assert.NoError(t, err)
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock("2025-06-01")
	unlockB := k.Lock("2025-06-02")
	assert.Len(t, k.locks, 2)
	unlockA()
	unlockB()
	assert.Empty(t, k.locks)
}

func TestCreate_PastDateRejected(t *testing.T) {
	f := newFixture(t)
	f.openDates(t, "2025-05-30")
	e1 := f.addEquipment(t, "E1", "iPad", true)
	f.clock.Advance(24 * time.Hour)

	_, err := f.reserve(t, ana, "2025-05-30", "09:00", "10:00", e1)
	assert.ErrorIs(t, err, ErrDateUnavailable)
}

func TestCreate_PurchaseValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.requests.Create(context.Background(), ana, &models.Request{
		Type:     models.RequestTypePurchase,
		Quantity: 0,
		Tipo:     "Outro",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["itemName"])
	assert.True(t, fields["quantity"])
	assert.True(t, fields["justification"])
	assert.True(t, fields["tipo"])

	r := f.purchase(t, ana)
	assert.Equal(t, models.TipoPedagogico, r.Tipo)
}

func TestUpdateStatus_TransitionTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.purchase(t, ana)

	_, err := f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusDelivered})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, s := range []models.RequestStatus{models.StatusAnalyzing, models.StatusApproved, models.StatusWaitingDelivery, models.StatusDelivered, models.StatusCompleted} {
		got, err := f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: s, DeliveryDate: "2025-06-10"})
		require.NoError(t, err, s)
		assert.Equal(t, s, got.Status)
	}

	_, err = f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusCanceled})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusInProgress})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateStatus_SameStatusIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.purchase(t, ana)

	got, err := f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Empty(t, f.store.Outbox.All())
}

func TestUpdateStatus_PurchaseRejectNeedsReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.purchase(t, ana)
	_, err := f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusAnalyzing})
	require.NoError(t, err)

	_, err = f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusRejected, RejectionReason: "   "})
	require.ErrorIs(t, err, ErrRejectionReasonRequired)

	stored, err := f.store.Requests.FindByID(ctx, models.RequestTypePurchase, r.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnalyzing, stored.Status, "no write without a reason")

	got, err := f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusRejected, RejectionReason: "Sem orçamento"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "Sem orçamento", got.RejectionReason)
}

func TestUpdateStatus_QueuesNotificationAtomically(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.purchase(t, ana)

	_, err := f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusAnalyzing})
	require.NoError(t, err)

	events := f.store.Outbox.All()
	require.Len(t, events, 1)
	assert.Equal(t, models.OutboxStatusChanged, events[0].Kind)
	assert.Equal(t, "ana@escola.com", events[0].Recipient)
	assert.Equal(t, r.Id, events[0].RequestID)
	assert.Contains(t, events[0].Message, "Em análise")

	n, err := f.outbox.DeliverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := f.notifications.GetForUser(ctx, "ana@escola.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, events[0].ID, list[0].ID)

	others, err := f.notifications.GetForUser(ctx, "bruno@escola.com")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestUpdateStatus_Permissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.purchase(t, ana)

	_, err := f.requests.UpdateStatus(ctx, ana, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusAnalyzing})
	assert.ErrorIs(t, err, ErrForbidden)

	// operacional manages reservations and support, not purchases
	_, err = f.requests.UpdateStatus(ctx, opsActor, models.RequestTypePurchase, r.Id, StatusUpdate{Status: models.StatusAnalyzing})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, bson.NewObjectID(), StatusUpdate{Status: models.StatusAnalyzing})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.purchase(t, ana)

	_, err := f.requests.Cancel(ctx, bruno, models.RequestTypePurchase, r.Id)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.requests.Cancel(ctx, ana, models.RequestTypePurchase, r.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, got.Status)
	assert.Empty(t, f.store.Outbox.All(), "no notification for your own cancel")

	again, err := f.requests.Cancel(ctx, ana, models.RequestTypePurchase, r.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, again.Status)
}

func TestAppendMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r, err := f.requests.Create(ctx, ana, &models.Request{
		Type:        models.RequestTypeSupport,
		Category:    "Rede",
		Description: "Wi-Fi não conecta na sala 5",
		Location:    "Sala 5",
	})
	require.NoError(t, err)

	msg, err := f.requests.AppendMessage(ctx, ana, models.RequestTypeSupport, r.Id, "  Alguém pode ver?  ")
	require.NoError(t, err)
	assert.False(t, msg.IsAdmin)
	assert.Equal(t, "Alguém pode ver?", msg.Message)
	assert.Empty(t, f.store.Outbox.All())

	f.clock.Advance(time.Minute)
	msg, err = f.requests.AppendMessage(ctx, opsActor, models.RequestTypeSupport, r.Id, "Técnico a caminho")
	require.NoError(t, err)
	assert.True(t, msg.IsAdmin)
	assert.Equal(t, "Operacional", msg.UserName)

	events := f.store.Outbox.All()
	require.Len(t, events, 1)
	assert.Equal(t, models.OutboxAdminMessage, events[0].Kind)

	_, err = f.requests.AppendMessage(ctx, bruno, models.RequestTypeSupport, r.Id, "oi")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.requests.AppendMessage(ctx, ana, models.RequestTypeSupport, r.Id, "   ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	stored, err := f.requests.GetByID(ctx, ana, models.RequestTypeSupport, r.Id)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.True(t, stored.Messages[0].Timestamp.Before(stored.Messages[1].Timestamp))
}

func TestAppendMessage_SameMillisecondGetsDistinctKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.clock.now = f.clock.now.Add(123456 * time.Nanosecond)
	r, err := f.requests.Create(ctx, ana, &models.Request{
		Type:        models.RequestTypeSupport,
		Category:    "Impressora",
		Description: "Sem toner",
	})
	require.NoError(t, err)

	// the clock does not move between these
	first, err := f.requests.AppendMessage(ctx, opsActor, models.RequestTypeSupport, r.Id, "Vamos trocar")
	require.NoError(t, err)
	second, err := f.requests.AppendMessage(ctx, opsActor, models.RequestTypeSupport, r.Id, "Amanhã cedo")
	require.NoError(t, err)

	assert.Equal(t, time.Millisecond, second.Timestamp.Sub(first.Timestamp))
	assert.NotEqual(t,
		unread.MessageKey(r.Id.Hex(), first.Timestamp),
		unread.MessageKey(r.Id.Hex(), second.Timestamp))

	stored, err := f.requests.GetByID(ctx, ana, models.RequestTypeSupport, r.Id)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.True(t, stored.Messages[0].Timestamp.Before(stored.Messages[1].Timestamp))
}

func TestNextMessageTime(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 500_000, time.UTC)
	assert.Equal(t, base.Truncate(time.Millisecond), nextMessageTime(nil, base))

	thread := []models.Message{{Timestamp: base.Add(5 * time.Millisecond)}}
	assert.Equal(t, base.Truncate(time.Millisecond).Add(6*time.Millisecond), nextMessageTime(thread, base),
		"a clock behind the thread still moves forward")
	assert.Equal(t, base.Add(time.Second).Truncate(time.Millisecond), nextMessageTime(thread, base.Add(time.Second)))
}

func TestGetAll_ScopingAndHiddenCutoff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openDates(t, "2025-06-01")
	e1 := f.addEquipment(t, "E1", "iPad", true)

	old := f.purchase(t, ana)
	_, err := f.requests.UpdateStatus(ctx, finActor, models.RequestTypePurchase, old.Id, StatusUpdate{Status: models.StatusCanceled})
	require.NoError(t, err)

	f.clock.Advance(31 * 24 * time.Hour)
	f.openDates(t, "2025-07-01")
	res, err := f.reserve(t, bruno, "2025-07-01", "09:00", "10:00", e1)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	fresh := f.purchase(t, ana)

	all, err := f.requests.GetAll(ctx, adminActor, RequestQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, fresh.Id, all[0].Id, "newest first")
	assert.Equal(t, res.Id, all[1].Id)

	withHidden, err := f.requests.GetAll(ctx, adminActor, RequestQuery{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, withHidden, 3)

	mine, err := f.requests.GetAll(ctx, ana, RequestQuery{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, fresh.Id, mine[0].Id)

	_, err = f.requests.GetAll(ctx, ana, RequestQuery{IncludeHidden: true})
	assert.ErrorIs(t, err, ErrForbidden)

	// financeiro manages purchases only; reservations are limited to their own
	fin, err := f.requests.GetAll(ctx, finActor, RequestQuery{})
	require.NoError(t, err)
	require.Len(t, fin, 1)
	assert.Equal(t, models.RequestTypePurchase, fin[0].Type)

	require.NoError(t, f.requests.SetHidden(ctx, opsActor, models.RequestTypeReservation, res.Id, true))
	all, err = f.requests.GetAll(ctx, adminActor, RequestQuery{Type: models.RequestTypeReservation})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.purchase(t, ana)

	assert.ErrorIs(t, f.requests.Delete(ctx, ana, models.RequestTypePurchase, r.Id), ErrForbidden)
	require.NoError(t, f.requests.Delete(ctx, finActor, models.RequestTypePurchase, r.Id))
	assert.ErrorIs(t, f.requests.Delete(ctx, finActor, models.RequestTypePurchase, r.Id), ErrNotFound)

	_, err := f.requests.GetByID(ctx, adminActor, models.RequestTypePurchase, r.Id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(models.RequestTypeReservation, models.StatusPending, models.StatusApproved))
	assert.True(t, CanTransition(models.RequestTypeSupport, models.StatusInProgress, models.StatusCompleted))
	assert.False(t, CanTransition(models.RequestTypeSupport, models.StatusCompleted, models.StatusPending))
	assert.False(t, CanTransition(models.RequestTypeReservation, models.StatusPending, models.StatusAnalyzing))
	assert.True(t, CanTransition(models.RequestTypePurchase, models.StatusDelivered, models.StatusCompleted))
	assert.False(t, CanTransition(models.RequestTypePurchase, models.StatusPending, models.StatusApproved))

	for _, typ := range models.RequestTypes {
		for _, terminal := range []models.RequestStatus{models.StatusCompleted, models.StatusCanceled, models.StatusRejected} {
			assert.Empty(t, NextStatuses(typ, terminal), "%s %s", typ, terminal)
		}
	}
	assert.False(t, KnownStatus(models.RequestTypeReservation, models.StatusDelivered))
}
