package dto

type CreateNotificationDTO struct {
	Title      string   `json:"title" binding:"required,notblank,max=200"`
	Message    string   `json:"message" binding:"required,notblank,max=2000"`
	Link       string   `json:"link" binding:"max=500"`
	Recipients []string `json:"recipients" binding:"omitempty,dive,email"`
}

type CreateNotificationBatchDTO struct {
	Notifications []CreateNotificationDTO `json:"notifications" binding:"required,min=1,max=200,dive"`
}

// MarkAllReadDTO - an empty ids list marks every visible notification.
type MarkAllReadDTO struct {
	IDs []string `json:"ids"`
}
