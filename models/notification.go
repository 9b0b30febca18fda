package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Notification struct {
	ID         bson.ObjectID `bson:"_id"        json:"id"`
	Title      string        `bson:"title"      json:"title"`
	Message    string        `bson:"message"    json:"message"`
	Link       string        `bson:"link,omitempty" json:"link,omitempty"`
	CreatedAt  time.Time     `bson:"createdAt"  json:"createdAt"`
	Recipients []string      `bson:"recipients" json:"recipients"`
	ReadBy     []string      `bson:"readBy"     json:"readBy"`
	ArchivedBy []string      `bson:"archivedBy,omitempty" json:"-"`
	IsBatch    bool          `bson:"isBatch"    json:"isBatch"`
}

// IsGlobal reports whether the notification is a broadcast to every user.
func (n *Notification) IsGlobal() bool {
	return len(n.Recipients) == 0
}

func (n *Notification) VisibleTo(email string) bool {
	if slices.Contains(n.ArchivedBy, email) {
		return false
	}
	return n.IsGlobal() || slices.Contains(n.Recipients, email)
}

func (n *Notification) IsReadBy(email string) bool {
	return slices.Contains(n.ReadBy, email)
}

type OutboxEventKind string

const (
	OutboxStatusChanged OutboxEventKind = "status-changed"
	OutboxAdminMessage  OutboxEventKind = "admin-message"
)

// OutboxEvent is written in the same transaction as the request change it
// describes and later turned into a Notification by the outbox worker.
type OutboxEvent struct {
	ID          bson.ObjectID   `bson:"_id"         json:"id"`
	Kind        OutboxEventKind `bson:"kind"        json:"kind"`
	RequestID   bson.ObjectID   `bson:"requestId"   json:"requestId"`
	RequestType RequestType     `bson:"requestType" json:"requestType"`
	Recipient   string          `bson:"recipient"   json:"recipient"`
	Title       string          `bson:"title"       json:"title"`
	Message     string          `bson:"message"     json:"message"`
	Link        string          `bson:"link,omitempty" json:"link,omitempty"`
	CreatedAt   time.Time       `bson:"createdAt"   json:"createdAt"`
	DeliveredAt *time.Time      `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	Attempts    int             `bson:"attempts"    json:"attempts"`
	LastError   string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
}
