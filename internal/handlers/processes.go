package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

// ====== ПРОЦЕССЫ ======

type processForm struct {
	OrganizationID string   `json:"organizationId"`
	Name           string   `json:"name"`
	Scope          string   `json:"scope"`
	Owner          string   `json:"owner"`
	Systems        []string `json:"systems"`
}

func (h *Handler) CreateProcess(c *gin.Context) {
	var form processForm
	if !h.bind(c, &form) {
		return
	}

	form.Name = strings.TrimSpace(form.Name)
	if form.Name == "" {
		h.fail(c, apperr.Validation("missing required fields", "name"))
		return
	}

	p := models.Process{
		Name:    form.Name,
		Scope:   form.Scope,
		Owner:   strings.TrimSpace(form.Owner),
		Systems: form.Systems,
	}
	if p.Systems == nil {
		p.Systems = []string{}
	}

	if orgID := strings.TrimSpace(form.OrganizationID); orgID != "" {
		if _, err := h.registry.FindOrganization(c.Request.Context(), orgID); err != nil {
			if errors.Is(err, apperr.ErrRecordNotFound) {
				h.fail(c, apperr.Validation("organization does not exist", "organizationId"))
				return
			}
			h.fail(c, apperr.Storage(err, "failed to load organization"))
			return
		}
		p.OrganizationID = &orgID
	}

	if err := h.registry.CreateProcess(c.Request.Context(), &p); err != nil {
		h.fail(c, apperr.Storage(err, "failed to create process"))
		return
	}

	h.audit(c, "process", p.ID, "create", "created process "+p.Name)
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProcess(c *gin.Context) {
	p, ok := h.loadProcess(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

// loadProcess: процесс из :id или 404.
func (h *Handler) loadProcess(c *gin.Context) (*models.Process, bool) {
	p, err := h.registry.FindProcess(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, apperr.ErrRecordNotFound) {
			h.fail(c, apperr.NotFound("process not found"))
			return nil, false
		}
		h.fail(c, apperr.Storage(err, "failed to load process"))
		return nil, false
	}
	return p, true
}

// ====== РИСКИ ПРОЦЕССА ======

type riskForm struct {
	Title string           `json:"title"`
	Level models.RiskLevel `json:"level"`
	Notes string           `json:"notes"`
}

func (h *Handler) CreateRisk(c *gin.Context) {
	p, ok := h.loadProcess(c)
	if !ok {
		return
	}

	var form riskForm
	if !h.bind(c, &form) {
		return
	}

	form.Title = strings.TrimSpace(form.Title)
	if form.Title == "" {
		h.fail(c, apperr.Validation("missing required fields", "title"))
		return
	}
	if form.Level == "" {
		form.Level = models.RiskMedium
	}
	if !form.Level.Valid() {
		h.fail(c, apperr.Validation("level must be low, medium or high", "level"))
		return
	}

	risk := models.Risk{ProcessID: p.ID, Title: form.Title, Level: form.Level, Notes: form.Notes}
	if err := h.registry.CreateRisk(c.Request.Context(), &risk); err != nil {
		h.fail(c, apperr.Storage(err, "failed to create risk"))
		return
	}

	h.audit(c, "risk", risk.ID, "create", "created risk "+risk.Title)
	c.JSON(http.StatusCreated, risk)
}

func (h *Handler) ListRisks(c *gin.Context) {
	risks, err := h.registry.ListRisks(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, apperr.Storage(err, "failed to load risks"))
		return
	}
	c.JSON(http.StatusOK, risks)
}

// ====== AS-IS КОНТРОЛИ ======

type asIsForm struct {
	Name               string                `json:"name"`
	Description        string                `json:"description"`
	Status             models.CoverageStatus `json:"status"`
	MappedStdControlID string                `json:"mappedStdControlId"`
}

func (h *Handler) CreateAsIsControl(c *gin.Context) {
	p, ok := h.loadProcess(c)
	if !ok {
		return
	}

	var form asIsForm
	if !h.bind(c, &form) {
		return
	}

	var v apperr.Fields
	v.Require("name", strings.TrimSpace(form.Name) != "")
	v.Require("status", form.Status != "")
	if err := v.Err(); err != nil {
		h.fail(c, err)
		return
	}
	if !form.Status.Valid() {
		h.fail(c, apperr.Validation("status must be exists, partial or not_exist", "status"))
		return
	}

	control := models.AsIsControl{
		ProcessID:   p.ID,
		Name:        strings.TrimSpace(form.Name),
		Description: form.Description,
		Status:      form.Status,
	}

	if mapped := strings.TrimSpace(form.MappedStdControlID); mapped != "" {
		known, err := h.standardControlExists(c, mapped)
		if err != nil {
			h.fail(c, err)
			return
		}
		if !known {
			h.fail(c, apperr.Validation("standard control does not exist", "mappedStdControlId"))
			return
		}
		control.MappedStdControlID = &mapped
	}

	if err := h.registry.CreateAsIsControl(c.Request.Context(), &control); err != nil {
		h.fail(c, apperr.Storage(err, "failed to create as-is control"))
		return
	}

	h.audit(c, "as_is_control", control.ID, "create", "created as-is control "+control.Name)
	c.JSON(http.StatusCreated, control)
}

func (h *Handler) ListAsIsControls(c *gin.Context) {
	controls, err := h.registry.ListAsIsControls(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, apperr.Storage(err, "failed to load as-is controls"))
		return
	}
	c.JSON(http.StatusOK, controls)
}

func (h *Handler) standardControlExists(c *gin.Context, id string) (bool, error) {
	catalog, err := h.registry.ListStandardControls(c.Request.Context())
	if err != nil {
		return false, apperr.Storage(err, "failed to load standard controls")
	}
	for _, entry := range catalog {
		if entry.ID == id {
			return true, nil
		}
	}
	return false, nil
}
