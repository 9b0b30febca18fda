package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/middleware"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/services"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrReservationConflict, http.StatusConflict},
	{services.ErrStale, http.StatusConflict},
	{services.ErrEmailTaken, http.StatusConflict},
	{services.ErrInvalidTransition, http.StatusUnprocessableEntity},
	{services.ErrDateUnavailable, http.StatusUnprocessableEntity},
	{services.ErrRejectionReasonRequired, http.StatusUnprocessableEntity},
	{services.ErrEquipmentNotReservable, http.StatusUnprocessableEntity},
	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrAccountDisabled, http.StatusForbidden},
	{services.ErrBlobStoreDisabled, http.StatusServiceUnavailable},
}

// respondError writes err as {"error": ...} with the matching status.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
		return
	}
	var cerr *services.ConflictError
	if errors.As(err, &cerr) {
		c.JSON(http.StatusConflict, gin.H{"error": cerr.Error(), "conflicts": cerr.Conflicts})
		return
	}
	var berr *services.BatchError
	if errors.As(err, &berr) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch interrupted", "created": berr.Created})
		return
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// respondBindError reports body or query binding failures.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]services.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			msg := fe.Error()
			if dto.Translator != nil {
				msg = fe.Translate(dto.Translator)
			}
			fields = append(fields, services.FieldError{Field: fe.Field(), Message: msg})
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func actor(c *gin.Context) models.Actor {
	a, _ := middleware.ActorFrom(c)
	return a
}

func pathID(c *gin.Context, name string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return bson.ObjectID{}, false
	}
	return id, true
}

func pathType(c *gin.Context) (models.RequestType, bool) {
	t, ok := models.ParseRequestType(c.Param("type"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown request type"})
	}
	return t, ok
}

func parseIDs(raw []string) ([]bson.ObjectID, error) {
	ids := make([]bson.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := bson.ObjectIDFromHex(s)
		if err != nil {
			return nil, &services.ValidationError{Fields: []services.FieldError{{Field: "ids", Message: "invalid id " + s}}}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Limits bounds list endpoints.
type Limits struct {
	Default int
	Max     int
}

func (l Limits) clamp(requested int) int {
	if requested < 1 {
		return l.Default
	}
	if requested > l.Max {
		return l.Max
	}
	return requested
}
