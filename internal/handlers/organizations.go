package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"control-advisor/internal/applicability"
	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

// ====== ОРГАНИЗАЦИИ ======

type organizationForm struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Notes    string `json:"notes"`
	applicability.Flags
}

func (h *Handler) CreateOrganization(c *gin.Context) {
	var form organizationForm
	if !h.bind(c, &form) {
		return
	}

	form.Name = strings.TrimSpace(form.Name)
	if form.Name == "" {
		h.fail(c, apperr.Validation("missing required fields", "name"))
		return
	}

	org := models.Organization{
		Name:           form.Name,
		Industry:       strings.TrimSpace(form.Industry),
		Notes:          form.Notes,
		Regulated:      form.Regulated,
		InventoryHeavy: form.InventoryHeavy,
		DataIntensive:  form.DataIntensive,
		HighRiskImpact: form.HighRiskImpact,
	}
	if err := h.registry.CreateOrganization(c.Request.Context(), &org); err != nil {
		h.fail(c, apperr.Storage(err, "failed to create organization"))
		return
	}

	h.audit(c, "organization", org.ID, "create", "created organization "+org.Name)
	c.JSON(http.StatusCreated, org)
}

func (h *Handler) GetOrganization(c *gin.Context) {
	org, err := h.registry.FindOrganization(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, apperr.ErrRecordNotFound) {
			h.fail(c, apperr.NotFound("organization not found"))
			return
		}
		h.fail(c, apperr.Storage(err, "failed to load organization"))
		return
	}
	c.JSON(http.StatusOK, org)
}

// UpdateOrganizationFlags заменяет все четыре признака разом.
func (h *Handler) UpdateOrganizationFlags(c *gin.Context) {
	var flags applicability.Flags
	if !h.bind(c, &flags) {
		return
	}

	id := c.Param("id")
	if err := h.registry.UpdateOrganizationFlags(c.Request.Context(), id, flags); err != nil {
		if errors.Is(err, apperr.ErrRecordNotFound) {
			h.fail(c, apperr.NotFound("organization not found"))
			return
		}
		h.fail(c, apperr.Storage(err, "failed to update organization flags"))
		return
	}

	org, err := h.registry.FindOrganization(c.Request.Context(), id)
	if err != nil {
		h.fail(c, apperr.Storage(err, "failed to load organization"))
		return
	}

	h.audit(c, "organization", id, "update_flags", "updated applicability flags")
	c.JSON(http.StatusOK, org)
}
