package server

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"control-advisor/internal/handlers"
	"control-advisor/internal/metrics"
	"control-advisor/internal/middleware"
	"control-advisor/internal/models"
)

type Deps struct {
	SessionSecret string
	Handler       *handlers.Handler
	Users         middleware.UserFinder
	Metrics       *metrics.Metrics
	Log           *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Metrics(d.Metrics))

	store := cookie.NewStore([]byte(d.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("controls_session", store))

	r.Use(middleware.InjectUser(d.Users))

	h := d.Handler
	writers := middleware.RequireRole(models.RoleAdmin, models.RoleControlOwner, models.RoleAnalyst)

	// HEALTHCHECK И МЕТРИКИ
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	// AUTH
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)

	auth := r.Group("/")
	auth.Use(middleware.RequireAuth())

	auth.GET("/auth/me", h.Me)

	// ====== ОРГАНИЗАЦИИ И ПРОЦЕССЫ ======
	auth.POST("/organizations", writers, h.CreateOrganization)
	auth.GET("/organizations/:id", h.GetOrganization)
	auth.PUT("/organizations/:id/flags", writers, h.UpdateOrganizationFlags)

	auth.POST("/processes", writers, h.CreateProcess)
	auth.GET("/processes/:id", h.GetProcess)
	auth.POST("/processes/:id/risks", writers, h.CreateRisk)
	auth.GET("/processes/:id/risks", h.ListRisks)
	auth.POST("/processes/:id/as-is-controls", writers, h.CreateAsIsControl)
	auth.GET("/processes/:id/as-is-controls", h.ListAsIsControls)

	// ====== АНКЕТЫ ЗРЕЛОСТИ ======
	auth.POST("/maturity-assessments", writers, h.SubmitAssessment)
	auth.GET("/maturity-assessments/process/:id", h.ListAssessments)

	// ====== РАЗРЫВЫ И ЦЕЛЕВЫЕ КОНТРОЛИ ======
	auth.POST("/gaps/analyze", writers, h.AnalyzeGaps)
	auth.GET("/gaps/process/:id", h.ListGaps)

	auth.POST("/to-be-controls/generate", writers, h.GenerateToBeControls)
	auth.GET("/to-be-controls/process/:id", h.ListToBeControls)
	auth.PATCH("/to-be-controls/:id/status", writers, h.UpdateToBeStatus)

	// ====== КАТАЛОГ ======
	auth.GET("/standard-controls", h.ListStandardControls)
	auth.GET("/standard-controls/by-profile/:profile", h.ListStandardControlsByProfile)
	// импорт каталога — только админ
	auth.POST("/standard-controls/import",
		middleware.RequireRole(models.RoleAdmin),
		h.ImportCatalog,
	)

	// ====== SECTION 2: ЗРЕЛОСТЬ ПО РИСКАМ ======
	auth.POST("/section2/maturity-selection", writers, h.UpsertMaturitySelection)
	auth.GET("/section2/maturity-selection/:riskId", h.GetMaturitySelection)
	auth.POST("/section2/gap-analysis", writers, h.UpsertGapAnalysisSnapshot)
	auth.GET("/section2/gap-analysis/:riskId", h.GetGapAnalysisSnapshot)
	auth.POST("/section2/accept-control", writers, h.AcceptSuggestedControl)
	auth.GET("/section2/risk-controls/:riskId", h.ListRiskControls)

	// АУДИТ
	auth.GET("/audit",
		middleware.RequireRole(models.RoleAdmin, models.RoleViewer),
		h.ListAuditLogs,
	)

	return r
}
