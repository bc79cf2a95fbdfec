package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"control-advisor/internal/apperr"
)

const (
	defaultAuditLimit = 200
	maxAuditLimit     = 1000
)

func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.fail(c, apperr.Validation("limit must be a positive integer", "limit"))
			return
		}
		limit = min(n, maxAuditLimit)
	}

	logs, err := h.registry.ListAuditLogs(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, apperr.Storage(err, "failed to load audit log"))
		return
	}
	c.JSON(http.StatusOK, logs)
}
