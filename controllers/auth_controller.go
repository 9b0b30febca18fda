package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/escolaportal/dto"
	"github.com/princinho/escolaportal/services"
	"github.com/princinho/escolaportal/unread"
	"github.com/princinho/escolaportal/utils"
)

func setSession(c *gin.Context, auth *services.AuthService, cookies utils.CookieSettings, sess *services.Session) {
	http.SetCookie(c.Writer, utils.RefreshCookie(sess.RefreshToken, auth.RefreshTTL, cookies))
	c.JSON(http.StatusOK, gin.H{
		"accessToken": sess.AccessToken,
		"user":        sess.User,
		"permissions": sess.User.Role.Permissions(),
	})
}

func Login(auth *services.AuthService, cookies utils.CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		sess, err := auth.Login(c.Request.Context(), body.Email, body.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		setSession(c, auth, cookies, sess)
	}
}

func Refresh(auth *services.AuthService, cookies utils.CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(utils.RefreshCookieName)
		if err != nil || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
			return
		}
		sess, err := auth.Refresh(c.Request.Context(), token)
		if err != nil {
			utils.ClearRefreshCookie(c.Writer, cookies)
			respondError(c, err)
			return
		}
		setSession(c, auth, cookies, sess)
	}
}

func Logout(auth *services.AuthService, cookies utils.CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(utils.RefreshCookieName)
		utils.ClearRefreshCookie(c.Writer, cookies)

		// best effort revoke
		if err := auth.Logout(c.Request.Context(), token); err != nil {
			_ = c.Error(err)
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// GET /me
func Me(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor(c)
		u, err := auth.Me(c.Request.Context(), a)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":        u,
			"permissions": u.Role.Permissions(),
			"view":        unread.ViewForRole(u.Role),
		})
	}
}

// POST /me/password
func ChangeMyPassword(auth *services.AuthService, cookies utils.CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ChangeMyPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBindError(c, err)
			return
		}
		if err := auth.ChangePassword(c.Request.Context(), actor(c), body.CurrentPassword, body.NewPassword); err != nil {
			respondError(c, err)
			return
		}
		// every session was revoked, including this one
		utils.ClearRefreshCookie(c.Writer, cookies)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
