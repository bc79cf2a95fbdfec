package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"control-advisor/internal/apperr"
	"control-advisor/internal/middleware"
)

type loginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	if !h.bind(c, &form) {
		return
	}

	invalid := func() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password", "kind": "unauthorized"})
	}

	user, err := h.registry.FindUserByUsername(c.Request.Context(), strings.TrimSpace(form.Username))
	if err != nil {
		if errors.Is(err, apperr.ErrRecordNotFound) {
			invalid()
			return
		}
		h.fail(c, apperr.Storage(err, "failed to load user"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(form.Password)); err != nil {
		invalid()
		return
	}

	sess := sessions.Default(c)
	sess.Set(middleware.SessionUserID, user.ID)
	sess.Set(middleware.SessionRole, string(user.Role))
	if err := sess.Save(); err != nil {
		h.fail(c, apperr.Storage(err, "failed to save session"))
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, user)
}
