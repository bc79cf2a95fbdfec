package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"control-advisor/internal/models"
)

// ====== РАЗРЫВЫ ======

type processRiskForm struct {
	ProcessID string `json:"processId"`
	RiskID    string `json:"riskId"`
}

func (h *Handler) AnalyzeGaps(c *gin.Context) {
	var form processRiskForm
	if !h.bind(c, &form) {
		return
	}

	result, err := h.gaps.DetectGaps(c.Request.Context(), form.ProcessID, form.RiskID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit(c, "gap", form.ProcessID, "analyze",
		fmt.Sprintf("risk %s: %d gaps, %d new", form.RiskID, result.Count, result.Created))
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListGaps(c *gin.Context) {
	gaps, err := h.gaps.ListGapsByProcess(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gaps)
}

// ====== ЦЕЛЕВЫЕ КОНТРОЛИ ======

func (h *Handler) GenerateToBeControls(c *gin.Context) {
	var form processRiskForm
	if !h.bind(c, &form) {
		return
	}

	result, err := h.gaps.GenerateToBeControls(c.Request.Context(), form.ProcessID, form.RiskID)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit(c, "to_be_control", form.ProcessID, "generate",
		fmt.Sprintf("risk %s: %d created, %d skipped", form.RiskID, result.Count, result.Skipped))
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListToBeControls(c *gin.Context) {
	controls, err := h.gaps.ListToBeControls(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, controls)
}

type statusForm struct {
	Status models.ImplementationStatus `json:"status"`
}

func (h *Handler) UpdateToBeStatus(c *gin.Context) {
	var form statusForm
	if !h.bind(c, &form) {
		return
	}

	control, err := h.gaps.UpdateToBeStatus(c.Request.Context(), c.Param("id"), form.Status)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit(c, "to_be_control", control.ID, "update_status", "status "+string(control.Status))
	c.JSON(http.StatusOK, control)
}
