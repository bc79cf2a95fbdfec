package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"control-advisor/internal/apperr"
)

// fail пишет ошибку в едином формате {error, kind, fields, details}.
// Причина ошибки хранилища остаётся только в логе.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	body := gin.H{"error": "internal error", "kind": kind}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// bind разбирает JSON-тело; битое тело: ошибка валидации.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, apperr.Validation("invalid request body: "+err.Error()))
		return false
	}
	return true
}
