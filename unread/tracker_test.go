package unread

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository/memstore"
	"github.com/princinho/escolaportal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type memoryStorage struct {
	mu   sync.Mutex
	sets map[string][]string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{sets: map[string][]string{}}
}

func (m *memoryStorage) Load(_ context.Context, storageKey string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sets[storageKey]...), nil
}

func (m *memoryStorage) Add(_ context.Context, storageKey string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[storageKey] = utils.UniqueStrings(append(m.sets[storageKey], keys...))
	return nil
}

func sampleRequest() *models.Request {
	return &models.Request{
		Id:   bson.NewObjectID(),
		Type: models.RequestTypeSupport,
		Messages: []models.Message{
			{Message: "Projetor não liga", IsAdmin: false, UserName: "Ana", Timestamp: t0},
			{Message: "Vou verificar", IsAdmin: true, UserName: "Ops", Timestamp: t0.Add(time.Minute)},
			{Message: "Obrigada", IsAdmin: false, UserName: "Ana", Timestamp: t0.Add(2 * time.Minute)},
		},
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "abc-1748768400000", MessageKey("abc", t0))
	assert.Equal(t, "abc", RequestKey("abc"))
	assert.Equal(t, "viewed:financeiro", ViewFinanceiro.StorageKey())
}

func TestViewForRole(t *testing.T) {
	assert.Equal(t, ViewOperacional, ViewForRole(models.RoleAdmin))
	assert.Equal(t, ViewOperacional, ViewForRole(models.RoleOperacional))
	assert.Equal(t, ViewFinanceiro, ViewForRole(models.RoleFinanceiro))
	assert.Equal(t, ViewPedagogico, ViewForRole(models.RolePedagogico))
	assert.Equal(t, ViewUser, ViewForRole(models.RoleUser))
	assert.Equal(t, ViewUser, ViewForRole("visitor"))
}

func TestTracker_CountsOnlyTheOtherSide(t *testing.T) {
	ctx := context.Background()
	r := sampleRequest()
	storage := newMemoryStorage()

	staff, err := NewTracker(ctx, storage, ViewOperacional)
	require.NoError(t, err)
	user, err := NewTracker(ctx, storage, ViewUser)
	require.NoError(t, err)

	assert.Equal(t, 2, staff.CountUnread(r))
	assert.Equal(t, 1, user.CountUnread(r))
	assert.True(t, staff.IsNew(r))
	assert.False(t, user.IsNew(r))

	require.NoError(t, staff.MarkViewed(ctx, MessageKey(r.Id.Hex(), t0)))
	assert.Equal(t, 1, staff.CountUnread(r))

	require.NoError(t, staff.MarkRequestViewed(ctx, r))
	assert.Equal(t, 0, staff.CountUnread(r))
	assert.False(t, staff.IsNew(r))

	// views never share state
	assert.Equal(t, 1, user.CountUnread(r))
	fin, err := NewTracker(ctx, storage, ViewFinanceiro)
	require.NoError(t, err)
	assert.Equal(t, 2, fin.CountUnread(r))
}

func TestTracker_PersistsAcrossReloads(t *testing.T) {
	ctx := context.Background()
	r := sampleRequest()
	repo := memstore.NewViewedStateRepository()

	first, err := NewTracker(ctx, NewDeviceStorage(repo, "tablet"), ViewUser)
	require.NoError(t, err)
	require.NoError(t, first.MarkRequestViewed(ctx, r))

	second, err := NewTracker(ctx, NewDeviceStorage(repo, "tablet"), ViewUser)
	require.NoError(t, err)
	assert.Equal(t, 0, second.CountUnread(r))
	assert.True(t, second.IsViewed(r.Id.Hex()))

	other, err := NewTracker(ctx, NewDeviceStorage(repo, "tablet"), ViewOperacional)
	require.NoError(t, err)
	assert.Equal(t, 2, other.CountUnread(r))
}

func TestDeviceStorage_IsPerDevice(t *testing.T) {
	ctx := context.Background()
	r := sampleRequest()
	repo := memstore.NewViewedStateRepository()

	laptop, err := NewTracker(ctx, NewDeviceStorage(repo, "laptop"), ViewOperacional)
	require.NoError(t, err)
	require.NoError(t, laptop.MarkRequestViewed(ctx, r))
	// repeated marks are no-ops
	require.NoError(t, laptop.MarkRequestViewed(ctx, r))

	reloaded, err := NewTracker(ctx, NewDeviceStorage(repo, "laptop"), ViewOperacional)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.CountUnread(r))

	phone, err := NewTracker(ctx, NewDeviceStorage(repo, "phone"), ViewOperacional)
	require.NoError(t, err)
	assert.Equal(t, 2, phone.CountUnread(r))

	keys, err := repo.Load(ctx, "laptop", ViewOperacional.StorageKey())
	require.NoError(t, err)
	assert.Len(t, keys, 4)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	read := sampleRequest()
	unreadReq := sampleRequest()
	quiet := &models.Request{Id: bson.NewObjectID(), Type: models.RequestTypePurchase}

	tr, err := NewTracker(ctx, newMemoryStorage(), ViewOperacional)
	require.NoError(t, err)
	require.NoError(t, tr.MarkRequestViewed(ctx, read))
	require.NoError(t, tr.MarkRequestViewed(ctx, quiet))

	s := tr.Summarize([]models.Request{*read, *unreadReq, *quiet})
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.New)
	require.Len(t, s.Requests, 1)
	assert.Equal(t, unreadReq.Id.Hex(), s.Requests[0].RequestID)
}

func TestViewTypes(t *testing.T) {
	assert.Equal(t, []models.RequestType{models.RequestTypeReservation, models.RequestTypeSupport}, ViewOperacional.Types())
	assert.Equal(t, []models.RequestType{models.RequestTypePurchase}, ViewPedagogico.Types())
	assert.Len(t, ViewUser.Types(), 3)
	assert.False(t, View("admin").Valid())
}
