package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/services"
)

// GET /admin/users
func ListUsers(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := auth.ListUsers(c.Request.Context(), actor(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": users, "total": len(users)})
	}
}

// POST /admin/users
func CreateUser(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.CreateUserDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		u, err := auth.CreateUser(c.Request.Context(), actor(c), services.NewUser{
			Email:    body.Email,
			Name:     body.Name,
			Password: body.Password,
			Role:     models.Role(body.Role),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// PATCH /admin/users/:id
func UpdateUser(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body dto.UpdateUserDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		patch := services.UserPatch{Name: body.Name, IsActive: body.IsActive}
		if body.Role != nil {
			role := models.Role(*body.Role)
			patch.Role = &role
		}
		u, err := auth.UpdateUser(c.Request.Context(), actor(c), id, patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}
