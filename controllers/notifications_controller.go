package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/services"
)

func toNewNotification(d dto.CreateNotificationDTO) services.NewNotification {
	return services.NewNotification{
		Title:      d.Title,
		Message:    d.Message,
		Link:       d.Link,
		Recipients: d.Recipients,
	}
}

// GET /notifications
func GetNotifications(svc *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.GetForUser(c.Request.Context(), actor(c).Email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
	}
}

// GET /notifications/unread-count
func GetUnreadNotificationCount(svc *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.UnreadCount(c.Request.Context(), actor(c).Email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

// POST /notifications
func CreateNotification(svc *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CreateNotificationDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		n, err := svc.Create(c.Request.Context(), actor(c), toNewNotification(body))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, n)
	}
}

// POST /notifications/batch
func CreateNotificationBatch(svc *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CreateNotificationBatchDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		ins := make([]services.NewNotification, 0, len(body.Notifications))
		for _, d := range body.Notifications {
			ins = append(ins, toNewNotification(d))
		}
		created, err := svc.CreateBatch(c.Request.Context(), actor(c), ins)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"items": created, "created": len(created)})
	}
}

// POST /notifications/:id/read
func MarkNotificationRead(svc *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.MarkRead(c.Request.Context(), id, actor(c).Email); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// POST /notifications/read-all
func MarkAllNotificationsRead(svc *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.MarkAllReadDTO
		// an empty body means every visible notification
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				respondBindError(c, err)
				return
			}
		}
		ids, err := parseIDs(body.IDs)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := svc.MarkAllRead(c.Request.Context(), ids, actor(c).Email); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// DELETE /notifications/:id
func DeleteNotification(svc *services.NotificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), actor(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
