package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"control-advisor/internal/applicability"
	"control-advisor/internal/apperr"
	"control-advisor/internal/catalog"
	"control-advisor/internal/profile"
)

// ====== КАТАЛОГ СТАНДАРТНЫХ КОНТРОЛЕЙ ======

func (h *Handler) ListStandardControls(c *gin.Context) {
	controls, err := h.registry.ListStandardControls(c.Request.Context())
	if err != nil {
		h.fail(c, apperr.Storage(err, "failed to load standard controls"))
		return
	}
	c.JSON(http.StatusOK, controls)
}

// ListStandardControlsByProfile фильтрует каталог тем же правилом, что и
// анализ разрывов. Признаки организации передаются query-параметрами.
func (h *Handler) ListStandardControlsByProfile(c *gin.Context) {
	p, err := profile.ParseSet(c.Param("profile"))
	if err != nil {
		h.fail(c, apperr.Validation(err.Error(), "profile"))
		return
	}

	flags, err := flagsFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	controls, err := h.registry.ListStandardControls(c.Request.Context())
	if err != nil {
		h.fail(c, apperr.Storage(err, "failed to load standard controls"))
		return
	}
	c.JSON(http.StatusOK, h.gaps.Applicable(controls, p, flags))
}

func flagsFromQuery(c *gin.Context) (applicability.Flags, error) {
	var flags applicability.Flags
	targets := []struct {
		name string
		dst  *bool
	}{
		{"regulated", &flags.Regulated},
		{"inventoryHeavy", &flags.InventoryHeavy},
		{"dataIntensive", &flags.DataIntensive},
		{"highRiskImpact", &flags.HighRiskImpact},
	}
	for _, t := range targets {
		raw := c.Query(t.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return flags, apperr.Validation("flag must be true or false", t.name)
		}
		*t.dst = v
	}
	return flags, nil
}

// ImportCatalog принимает YAML-документ каталога и upsert-ит его по кодам.
func (h *Handler) ImportCatalog(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, apperr.Validation("cannot read request body"))
		return
	}

	controls, err := catalog.Parse(body)
	if err != nil {
		h.fail(c, err)
		return
	}

	saved, err := catalog.Import(c.Request.Context(), h.registry, controls)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit(c, "standard_control", "", "import", strconv.Itoa(len(saved))+" controls imported")
	c.JSON(http.StatusOK, gin.H{"controls": saved, "count": len(saved)})
}
