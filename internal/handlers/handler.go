package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"control-advisor/internal/applicability"
	"control-advisor/internal/assessments"
	"control-advisor/internal/catalog"
	"control-advisor/internal/gaps"
	"control-advisor/internal/middleware"
	"control-advisor/internal/models"
	"control-advisor/internal/section2"
)

// Registry: справочные сущности, которые обработчики читают и пишут напрямую.
type Registry interface {
	catalog.Store

	CreateOrganization(ctx context.Context, org *models.Organization) error
	FindOrganization(ctx context.Context, id string) (*models.Organization, error)
	UpdateOrganizationFlags(ctx context.Context, id string, flags applicability.Flags) error

	CreateProcess(ctx context.Context, p *models.Process) error
	FindProcess(ctx context.Context, id string) (*models.Process, error)
	CreateRisk(ctx context.Context, r *models.Risk) error
	ListRisks(ctx context.Context, processID string) ([]models.Risk, error)

	CreateAsIsControl(ctx context.Context, c *models.AsIsControl) error
	ListAsIsControls(ctx context.Context, processID string) ([]models.AsIsControl, error)
	ListStandardControls(ctx context.Context) ([]models.StandardControl, error)
	ListRiskControls(ctx context.Context, riskID string) ([]models.RiskControl, error)

	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type Handler struct {
	registry    Registry
	assessments *assessments.Service
	gaps        *gaps.Service
	section2    *section2.Service
	log         *zap.Logger
}

func New(registry Registry, a *assessments.Service, g *gaps.Service, s2 *section2.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		registry:    registry,
		assessments: a,
		gaps:        g,
		section2:    s2,
		log:         log,
	}
}

// audit: запись в журнал; сбой журнала не ломает сам запрос.
func (h *Handler) audit(c *gin.Context, entity, entityID, action, details string) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return
	}
	entry := &models.AuditLog{
		UserID:   user.ID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  details,
	}
	if err := h.registry.CreateAuditLog(c.Request.Context(), entry); err != nil {
		h.log.Warn("failed to write audit log",
			zap.String("entity", entity),
			zap.String("action", action),
			zap.Error(err))
	}
}
