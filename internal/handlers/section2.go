package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"control-advisor/internal/apperr"
	"control-advisor/internal/section2"
)

// ====== ЗРЕЛОСТЬ ПО РИСКАМ ======

func (h *Handler) UpsertMaturitySelection(c *gin.Context) {
	var in section2.SelectionInput
	if !h.bind(c, &in) {
		return
	}

	sel, err := h.section2.UpsertMaturitySelection(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit(c, "maturity_selection", sel.RiskID, "upsert", "")
	c.JSON(http.StatusOK, sel)
}

func (h *Handler) GetMaturitySelection(c *gin.Context) {
	sel, err := h.section2.GetMaturitySelection(c.Request.Context(), c.Param("riskId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

func (h *Handler) UpsertGapAnalysisSnapshot(c *gin.Context) {
	var in section2.SnapshotInput
	if !h.bind(c, &in) {
		return
	}

	snap, err := h.section2.UpsertGapAnalysisSnapshot(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit(c, "gap_analysis_snapshot", snap.RiskID, "upsert", "")
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) GetGapAnalysisSnapshot(c *gin.Context) {
	snap, err := h.section2.GetGapAnalysisSnapshot(c.Request.Context(), c.Param("riskId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) AcceptSuggestedControl(c *gin.Context) {
	var in section2.AcceptInput
	if !h.bind(c, &in) {
		return
	}

	control, err := h.section2.AcceptSuggestedControl(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit(c, "risk_control", control.ID, "accept", "template "+control.TemplateID)
	c.JSON(http.StatusOK, control)
}

func (h *Handler) ListRiskControls(c *gin.Context) {
	controls, err := h.registry.ListRiskControls(c.Request.Context(), c.Param("riskId"))
	if err != nil {
		h.fail(c, apperr.Storage(err, "failed to load risk controls"))
		return
	}
	c.JSON(http.StatusOK, controls)
}
