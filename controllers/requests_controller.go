package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/services"
	"github.com/princinho/escolaportal/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func CreateRequest(svc *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := pathType(c)
		if !ok {
			return
		}
		var body dto.CreateRequestDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		r, err := svc.Create(c.Request.Context(), actor(c), &models.Request{
			Type:          t,
			Date:          body.Date,
			StartTime:     body.StartTime,
			EndTime:       body.EndTime,
			EquipmentIDs:  body.EquipmentIDs,
			Purpose:       strings.TrimSpace(body.Purpose),
			Location:      strings.TrimSpace(body.Location),
			ItemName:      body.ItemName,
			Quantity:      body.Quantity,
			UnitPrice:     body.UnitPrice,
			Urgency:       body.Urgency,
			Justification: strings.TrimSpace(body.Justification),
			Tipo:          models.PurchaseTipo(body.Tipo),
			Unit:          body.Unit,
			Category:      strings.TrimSpace(body.Category),
			Priority:      body.Priority,
			DeviceInfo:    body.DeviceInfo,
			Description:   strings.TrimSpace(body.Description),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func GetRequests(svc *services.RequestService, limits Limits) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := services.RequestQuery{
			Status:    models.RequestStatus(strings.TrimSpace(c.Query("status"))),
			UserEmail: strings.ToLower(strings.TrimSpace(c.Query("email"))),
			Date:      strings.TrimSpace(c.Query("date")),
		}
		if raw := strings.TrimSpace(c.Query("type")); raw != "" {
			t, ok := models.ParseRequestType(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown request type"})
				return
			}
			q.Type = t
		}
		b, err := utils.ParseBoolQuery(c.Query("includeHidden"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "includeHidden must be a boolean"})
			return
		}
		if b != nil {
			q.IncludeHidden = *b
		}

		page := utils.ParseIntDefault(c.Query("page"), 1)
		if page < 1 {
			page = 1
		}
		limit := limits.clamp(utils.ParseIntDefault(c.Query("limit"), limits.Default))

		all, err := svc.GetAll(c.Request.Context(), actor(c), q)
		if err != nil {
			respondError(c, err)
			return
		}
		start := (page - 1) * limit
		if start > len(all) {
			start = len(all)
		}
		end := min(start+limit, len(all))

		c.JSON(http.StatusOK, gin.H{
			"items": all[start:end],
			"page":  page,
			"limit": limit,
			"total": len(all),
		})
	}
}

func GetRequest(svc *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := pathType(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		r, err := svc.GetByID(c.Request.Context(), actor(c), t, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func UpdateRequestStatus(svc *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := pathType(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body dto.UpdateStatusDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		r, err := svc.UpdateStatus(c.Request.Context(), actor(c), t, id, services.StatusUpdate{
			Status:          models.RequestStatus(body.Status),
			RejectionReason: body.RejectionReason,
			DeliveryDate:    body.DeliveryDate,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func CancelRequest(svc *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := pathType(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		r, err := svc.Cancel(c.Request.Context(), actor(c), t, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func AddRequestMessage(svc *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := pathType(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body dto.MessageDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		msg, err := svc.AppendMessage(c.Request.Context(), actor(c), t, id, body.Message)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func SetRequestHidden(svc *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := pathType(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body dto.HiddenDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		if err := svc.SetHidden(c.Request.Context(), actor(c), t, id, *body.Hidden); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id.Hex(), "hidden": *body.Hidden})
	}
}

func DeleteRequest(svc *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := pathType(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), actor(c), t, id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func CheckConflicts(svc *services.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ConflictCheckDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		cand := services.ReservationCandidate{
			Date:         body.Date,
			StartTime:    body.StartTime,
			EndTime:      body.EndTime,
			EquipmentIDs: body.EquipmentIDs,
		}
		if body.ExcludeID != "" {
			id, err := bson.ObjectIDFromHex(body.ExcludeID)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid excludeId"})
				return
			}
			cand.ExcludeID = id
		}
		conflicts, err := svc.Conflicts.CheckConflicts(c.Request.Context(), cand)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conflicts": conflicts, "hasConflicts": len(conflicts) > 0})
	}
}
