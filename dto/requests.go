package dto

// CreateRequestDTO carries the fields of every request type; the service
// checks which ones the type needs.
type CreateRequestDTO struct {
	// reservation
	Date         string   `json:"date" binding:"omitempty,isodate"`
	StartTime    string   `json:"startTime" binding:"omitempty,hhmm"`
	EndTime      string   `json:"endTime" binding:"omitempty,hhmm"`
	EquipmentIDs []string `json:"equipmentIds"`
	Purpose      string   `json:"purpose" binding:"max=1000"`

	Location string `json:"location" binding:"max=200"`

	// purchase
	ItemName      string  `json:"itemName" binding:"max=200"`
	Quantity      int     `json:"quantity" binding:"gte=0"`
	UnitPrice     float64 `json:"unitPrice" binding:"gte=0"`
	Urgency       string  `json:"urgency"`
	Justification string  `json:"justification" binding:"max=2000"`
	Tipo          string  `json:"tipo"`

	// support
	Unit        string `json:"unit"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	DeviceInfo  string `json:"deviceInfo"`
	Description string `json:"description" binding:"max=5000"`
}

type UpdateStatusDTO struct {
	Status          string `json:"status" binding:"required"`
	RejectionReason string `json:"rejectionReason" binding:"max=1000"`
	DeliveryDate    string `json:"deliveryDate" binding:"omitempty,isodate"`
}

type MessageDTO struct {
	Message string `json:"message" binding:"required,notblank,max=5000"`
}

type HiddenDTO struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

type ConflictCheckDTO struct {
	Date         string   `json:"date" binding:"required,isodate"`
	StartTime    string   `json:"startTime" binding:"required,hhmm"`
	EndTime      string   `json:"endTime" binding:"required,hhmm"`
	EquipmentIDs []string `json:"equipmentIds" binding:"required,min=1"`
	ExcludeID    string   `json:"excludeId"`
}
