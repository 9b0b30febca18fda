package dto

type DatesDTO struct {
	Dates []string `json:"dates" binding:"required,min=1,max=366,dive,isodate"`
}

type CreateEquipmentDTO struct {
	Name                      string `json:"name" binding:"required,notblank,max=200"`
	Type                      string `json:"type" binding:"required,notblank,max=100"`
	IsAvailableForReservation bool   `json:"isAvailableForReservation"`
}

// UpdateEquipmentDTO - all fields are optional pointers
type UpdateEquipmentDTO struct {
	Name                      *string `json:"name" binding:"omitempty,notblank,max=200"`
	Type                      *string `json:"type" binding:"omitempty,notblank,max=100"`
	IsAvailableForReservation *bool   `json:"isAvailableForReservation"`
}

type BulkDeleteDTO struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// NoticeDTO is bound from the multipart form; files travel under "files".
type NoticeDTO struct {
	Title string `form:"title" binding:"required,notblank,max=200"`
	Body  string `form:"body" binding:"required,notblank,max=10000"`
}

// MarkViewedDTO marks a whole request (and its messages) or raw keys as viewed.
type MarkViewedDTO struct {
	RequestID string   `json:"requestId"`
	Type      string   `json:"type"`
	Keys      []string `json:"keys"`
	View      string   `json:"view" binding:"omitempty,oneof=user operacional financeiro pedagogico"`
}
