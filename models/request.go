package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type RequestType string

const (
	RequestTypeReservation RequestType = "reservation"
	RequestTypePurchase    RequestType = "purchase"
	RequestTypeSupport     RequestType = "support"
)

// RequestTypes lists every request type in the order lists are merged.
var RequestTypes = []RequestType{RequestTypeReservation, RequestTypePurchase, RequestTypeSupport}

func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeReservation, RequestTypePurchase, RequestTypeSupport:
		return true
	}
	return false
}

// Collection is the document collection that stores requests of this type.
func (t RequestType) Collection() string {
	switch t {
	case RequestTypeReservation:
		return "reservations"
	case RequestTypePurchase:
		return "purchases"
	case RequestTypeSupport:
		return "support"
	}
	return ""
}

// ParseRequestType accepts both the type name and its collection name.
func ParseRequestType(s string) (RequestType, bool) {
	for _, t := range RequestTypes {
		if s == string(t) || s == t.Collection() {
			return t, true
		}
	}
	return "", false
}

type RequestStatus string

const (
	StatusPending         RequestStatus = "pending"
	StatusApproved        RequestStatus = "approved"
	StatusRejected        RequestStatus = "rejected"
	StatusInProgress      RequestStatus = "in-progress"
	StatusCompleted       RequestStatus = "completed"
	StatusCanceled        RequestStatus = "canceled"
	StatusAnalyzing       RequestStatus = "analyzing"
	StatusWaitingDelivery RequestStatus = "waitingDelivery"
	StatusDelivered       RequestStatus = "delivered"
)

// IsTerminal reports whether a request in this status drops out of the
// default list once it is older than its collection's hidden cutoff.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusRejected, StatusDelivered:
		return true
	}
	return false
}

type PurchaseTipo string

const (
	TipoPedagogico     PurchaseTipo = "Pedagógico"
	TipoAdministrativo PurchaseTipo = "Administrativo"
	TipoFinanceiro     PurchaseTipo = "Financeiro"
)

var PurchaseTipos = []PurchaseTipo{TipoPedagogico, TipoAdministrativo, TipoFinanceiro}

// Message is one entry of a request's append-only thread.
type Message struct {
	Message   string    `bson:"message"   json:"message"`
	IsAdmin   bool      `bson:"isAdmin"   json:"isAdmin"`
	UserName  string    `bson:"userName"  json:"userName"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type Request struct {
	Id        bson.ObjectID `bson:"_id"       json:"id"`
	Type      RequestType   `bson:"type"      json:"type"`
	Status    RequestStatus `bson:"status"    json:"status"`
	UserID    string        `bson:"userId"    json:"userId"`
	UserName  string        `bson:"userName"  json:"userName"`
	UserEmail string        `bson:"userEmail" json:"userEmail"`
	Messages  []Message     `bson:"messages"  json:"messages"`
	Hidden    bool          `bson:"hidden"    json:"hidden"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"updatedAt"`

	// reservation
	Date         string   `bson:"date,omitempty"         json:"date,omitempty"`
	StartTime    string   `bson:"startTime,omitempty"    json:"startTime,omitempty"`
	EndTime      string   `bson:"endTime,omitempty"      json:"endTime,omitempty"`
	EquipmentIDs []string `bson:"equipmentIds,omitempty" json:"equipmentIds,omitempty"`
	Purpose      string   `bson:"purpose,omitempty"      json:"purpose,omitempty"`

	// reservation + support
	Location string `bson:"location,omitempty" json:"location,omitempty"`

	// purchase
	ItemName        string       `bson:"itemName,omitempty"        json:"itemName,omitempty"`
	Quantity        int          `bson:"quantity,omitempty"        json:"quantity,omitempty"`
	UnitPrice       float64      `bson:"unitPrice,omitempty"       json:"unitPrice,omitempty"`
	Urgency         string       `bson:"urgency,omitempty"         json:"urgency,omitempty"`
	Justification   string       `bson:"justification,omitempty"   json:"justification,omitempty"`
	Tipo            PurchaseTipo `bson:"tipo,omitempty"            json:"tipo,omitempty"`
	DeliveryDate    string       `bson:"deliveryDate,omitempty"    json:"deliveryDate,omitempty"`
	RejectionReason string       `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`

	// support
	Unit        string `bson:"unit,omitempty"        json:"unit,omitempty"`
	Category    string `bson:"category,omitempty"    json:"category,omitempty"`
	Priority    string `bson:"priority,omitempty"    json:"priority,omitempty"`
	DeviceInfo  string `bson:"deviceInfo,omitempty"  json:"deviceInfo,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
}

// Title is a short human label used in notifications.
func (r *Request) Title() string {
	switch r.Type {
	case RequestTypeReservation:
		return "Reserva de " + r.Date
	case RequestTypePurchase:
		return "Compra: " + r.ItemName
	case RequestTypeSupport:
		if r.Category != "" {
			return "Suporte: " + r.Category
		}
		return "Chamado de suporte"
	}
	return "Solicitação"
}
