package unread

import (
	"context"
	"time"

	"github.com/princinho/escolaportal/repository"
)

// Storage persists viewed-sets by storage key.
type Storage interface {
	Load(ctx context.Context, storageKey string) ([]string, error)
	Add(ctx context.Context, storageKey string, keys []string) error
}

// DeviceStorage keeps one device's viewed-sets in the viewedStates collection.
type DeviceStorage struct {
	Repo     repository.ViewedStateRepository
	DeviceID string
	Now      func() time.Time
}

func NewDeviceStorage(repo repository.ViewedStateRepository, deviceID string) *DeviceStorage {
	return &DeviceStorage{Repo: repo, DeviceID: deviceID, Now: time.Now}
}

func (d *DeviceStorage) Load(ctx context.Context, storageKey string) ([]string, error) {
	return d.Repo.Load(ctx, d.DeviceID, storageKey)
}

func (d *DeviceStorage) Add(ctx context.Context, storageKey string, keys []string) error {
	return d.Repo.AddKeys(ctx, d.DeviceID, storageKey, keys, d.Now().UTC())
}
