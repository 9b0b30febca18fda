package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/services"
	"github.com/princinho/escolaportal/utils"
)

// GET /available-dates
func GetAvailableDates(svc *services.AvailabilityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		dates, err := svc.GetAvailableDates(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"dates": dates})
	}
}

// POST /available-dates
func AddAvailableDates(svc *services.AvailabilityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.DatesDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		added, err := svc.AddDates(c.Request.Context(), actor(c), body.Dates)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"added": added})
	}
}

// DELETE /available-dates
func RemoveAvailableDates(svc *services.AvailabilityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.DatesDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		removed, err := svc.RemoveDates(c.Request.Context(), actor(c), body.Dates)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}

// GET /equipment?reservable=true
func GetEquipment(svc *services.EquipmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := utils.ParseBoolQuery(c.Query("reservable"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reservable must be a boolean"})
			return
		}
		list, err := svc.List(c.Request.Context(), b != nil && *b)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
	}
}

// GET /equipment/counts
func GetEquipmentCounts(svc *services.EquipmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := svc.CountByKind(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, counts)
	}
}

func GetEquipmentByID(svc *services.EquipmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		e, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

func CreateEquipment(svc *services.EquipmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CreateEquipmentDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		e, err := svc.Create(c.Request.Context(), actor(c), services.EquipmentInput{
			Name:                      body.Name,
			Type:                      body.Type,
			IsAvailableForReservation: body.IsAvailableForReservation,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}

func UpdateEquipment(svc *services.EquipmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body dto.UpdateEquipmentDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		e, err := svc.Update(c.Request.Context(), actor(c), id, services.EquipmentPatch{
			Name:                      body.Name,
			Type:                      body.Type,
			IsAvailableForReservation: body.IsAvailableForReservation,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}

func DeleteEquipment(svc *services.EquipmentService) gin.HandlerFunc {
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

// POST /equipment/bulk-delete
func BulkDeleteEquipment(svc *services.EquipmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.BulkDeleteDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		ids, err := parseIDs(body.IDs)
		if err != nil {
			respondError(c, err)
			return
		}
		deleted, err := svc.DeleteMany(c.Request.Context(), actor(c), ids)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}
