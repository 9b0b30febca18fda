package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Equipment struct {
	ID                        bson.ObjectID `bson:"_id"  json:"id"`
	Name                      string        `bson:"name" json:"name"`
	Type                      string        `bson:"type" json:"type"`
	IsAvailableForReservation bool          `bson:"isAvailableForReservation" json:"isAvailableForReservation"`
	CreatedAt                 time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt                 time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// AvailableDate marks one calendar day (YYYY-MM-DD) as open for reservations.
type AvailableDate struct {
	Date      string    `bson:"_id"       json:"date"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type NoticeAttachment struct {
	PublicURL  string    `bson:"publicUrl"  json:"publicUrl"`
	ObjectName string    `bson:"objectName" json:"objectName"`
	MimeType   string    `bson:"mimeType"   json:"mimeType"`
	SizeBytes  int64     `bson:"sizeBytes"  json:"sizeBytes"`
	FileName   string    `bson:"fileName"   json:"fileName"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

// Notice is a post on the shared notice board (aviso).
type Notice struct {
	ID          bson.ObjectID      `bson:"_id"         json:"id"`
	Title       string             `bson:"title"       json:"title"`
	Body        string             `bson:"body"        json:"body"`
	Attachments []NoticeAttachment `bson:"attachments" json:"attachments"`
	AuthorEmail string             `bson:"authorEmail" json:"authorEmail"`
	CreatedAt   time.Time          `bson:"createdAt"   json:"createdAt"`
}

type NoticeEventOp string

const (
	NoticeCreated NoticeEventOp = "created"
	NoticeDeleted NoticeEventOp = "deleted"
)

type NoticeEvent struct {
	Op     NoticeEventOp `json:"op"`
	ID     bson.ObjectID `json:"id"`
	Notice *Notice       `json:"notice,omitempty"`
}

// ViewedState is the persisted viewed-set of one device for one storage key.
type ViewedState struct {
	DeviceID   string    `bson:"deviceId"   json:"deviceId"`
	StorageKey string    `bson:"storageKey" json:"storageKey"`
	Keys       []string  `bson:"keys"       json:"keys"`
	UpdatedAt  time.Time `bson:"updatedAt"  json:"updatedAt"`
}
