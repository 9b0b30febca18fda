// Package router assembles the gin engine and every route.
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/controllers"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/middleware"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/services"
	"github.com/princinho/escolaportal/utils"
	"github.com/rs/zerolog"
)

type Deps struct {
	Log            zerolog.Logger
	AllowedOrigins map[string]bool
	Cookies        utils.CookieSettings
	Limits         controllers.Limits

	Auth          *services.AuthService
	Requests      *services.RequestService
	Notifications *services.NotificationService
	Availability  *services.AvailabilityService
	Equipment     *services.EquipmentService
	Notices       *services.NoticeService
	ViewedStates  repository.ViewedStateRepository
}

func New(d Deps) *gin.Engine {
	dto.RegisterValidators()

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			ok := d.AllowedOrigins[origin]
			if !ok {
				d.Log.Debug().Str("origin", origin).Msg("cors origin rejected")
			}
			return ok
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Device-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.POST("/auth/login", controllers.Login(d.Auth, d.Cookies))
	r.POST("/auth/refresh", controllers.Refresh(d.Auth, d.Cookies))
	r.POST("/auth/logout", controllers.Logout(d.Auth, d.Cookies))

	api := r.Group("/")
	api.Use(middleware.AuthMiddleware(d.Auth))
	{
		api.GET("/me", controllers.Me(d.Auth))
		api.POST("/me/password", controllers.ChangeMyPassword(d.Auth, d.Cookies))
		api.GET("/me/unread", controllers.GetUnread(d.Requests, d.ViewedStates))
		api.POST("/me/viewed", controllers.MarkViewed(d.Requests, d.ViewedStates))

		api.GET("/requests", controllers.GetRequests(d.Requests, d.Limits))
		api.POST("/requests/:type", controllers.CreateRequest(d.Requests))
		api.GET("/requests/:type/:id", controllers.GetRequest(d.Requests))
		api.PATCH("/requests/:type/:id/status", controllers.UpdateRequestStatus(d.Requests))
		api.POST("/requests/:type/:id/cancel", controllers.CancelRequest(d.Requests))
		api.POST("/requests/:type/:id/messages", controllers.AddRequestMessage(d.Requests))
		api.PATCH("/requests/:type/:id/hidden", controllers.SetRequestHidden(d.Requests))
		api.DELETE("/requests/:type/:id", controllers.DeleteRequest(d.Requests))
		api.POST("/reservations/conflicts", controllers.CheckConflicts(d.Requests))

		api.GET("/notifications", controllers.GetNotifications(d.Notifications))
		api.GET("/notifications/unread-count", controllers.GetUnreadNotificationCount(d.Notifications))
		api.POST("/notifications/:id/read", controllers.MarkNotificationRead(d.Notifications))
		api.POST("/notifications/read-all", controllers.MarkAllNotificationsRead(d.Notifications))

		send := api.Group("/notifications", middleware.RequirePermission(models.FeatureSendNotifications))
		send.POST("", controllers.CreateNotification(d.Notifications))
		send.POST("/batch", controllers.CreateNotificationBatch(d.Notifications))
		api.DELETE("/notifications/:id",
			middleware.RequirePermission(models.FeatureDeleteNotifications),
			controllers.DeleteNotification(d.Notifications))

		api.GET("/available-dates", controllers.GetAvailableDates(d.Availability))
		dates := api.Group("/available-dates", middleware.RequirePermission(models.FeatureManageDates))
		dates.POST("", controllers.AddAvailableDates(d.Availability))
		dates.DELETE("", controllers.RemoveAvailableDates(d.Availability))

		api.GET("/equipment", controllers.GetEquipment(d.Equipment))
		api.GET("/equipment/counts", controllers.GetEquipmentCounts(d.Equipment))
		api.GET("/equipment/:id", controllers.GetEquipmentByID(d.Equipment))
		equipment := api.Group("/equipment", middleware.RequirePermission(models.FeatureManageEquipment))
		equipment.POST("", controllers.CreateEquipment(d.Equipment))
		equipment.PATCH("/:id", controllers.UpdateEquipment(d.Equipment))
		equipment.DELETE("/:id", controllers.DeleteEquipment(d.Equipment))
		equipment.POST("/bulk-delete", controllers.BulkDeleteEquipment(d.Equipment))

		api.GET("/notices", controllers.GetNotices(d.Notices, d.Limits))
		api.GET("/notices/stream", controllers.StreamNotices(d.Notices))
		notices := api.Group("/notices", middleware.RequirePermission(models.FeatureManageNotices))
		notices.POST("", controllers.CreateNotice(d.Notices))
		notices.DELETE("/:id", controllers.DeleteNotice(d.Notices))
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Auth), middleware.RequirePermission(models.FeatureManageUsers))
	{
		admin.GET("/users", controllers.ListUsers(d.Auth))
		admin.POST("/users", controllers.CreateUser(d.Auth))
		admin.PATCH("/users/:id", controllers.UpdateUser(d.Auth))
	}
	return r
}
