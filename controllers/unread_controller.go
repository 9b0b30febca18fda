package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/services"
	"github.com/princinho/escolaportal/unread"
)

const deviceHeader = "X-Device-ID"

// resolveView picks the requested view, falling back to the caller's role.
// Plain users only ever get their own view.
func resolveView(a models.Actor, raw string) (unread.View, bool) {
	if a.Role == models.RoleUser || raw == "" {
		return unread.ViewForRole(a.Role), true
	}
	v := unread.View(raw)
	return v, v.Valid()
}

func openTracker(c *gin.Context, repo repository.ViewedStateRepository, rawView string) (*unread.Tracker, bool) {
	device := strings.TrimSpace(c.GetHeader(deviceHeader))
	if device == "" || len(device) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + deviceHeader + " header"})
		return nil, false
	}
	view, ok := resolveView(actor(c), rawView)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown view"})
		return nil, false
	}
	t, err := unread.NewTracker(c.Request.Context(), unread.NewDeviceStorage(repo, device), view)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return t, true
}

// requestsForView loads the requests a view counts. The user view only
// covers the caller's own requests.
func requestsForView(c *gin.Context, svc *services.RequestService, view unread.View) ([]models.Request, error) {
	a := actor(c)
	var out []models.Request
	for _, t := range view.Types() {
		q := services.RequestQuery{Type: t}
		if view == unread.ViewUser {
			q.UserEmail = a.Email
		}
		list, err := svc.GetAll(c.Request.Context(), a, q)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

// GET /me/unread?view=
func GetUnread(svc *services.RequestService, viewed repository.ViewedStateRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := openTracker(c, viewed, c.Query("view"))
		if !ok {
			return
		}
		reqs, err := requestsForView(c, svc, t.View())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t.Summarize(reqs))
	}
}

// POST /me/viewed
func MarkViewed(svc *services.RequestService, viewed repository.ViewedStateRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.MarkViewedDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		if body.RequestID == "" && len(body.Keys) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "requestId or keys required"})
			return
		}
		t, ok := openTracker(c, viewed, body.View)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if body.RequestID != "" {
			rt, ok := models.ParseRequestType(body.Type)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown request type"})
				return
			}
			id, err := parseIDs([]string{body.RequestID})
			if err != nil {
				respondError(c, err)
				return
			}
			r, err := svc.GetByID(ctx, actor(c), rt, id[0])
			if err != nil {
				respondError(c, err)
				return
			}
			if err := t.MarkRequestViewed(ctx, r); err != nil {
				respondError(c, err)
				return
			}
		}
		if len(body.Keys) > 0 {
			if err := t.MarkViewed(ctx, body.Keys...); err != nil {
				respondError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
