package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"control-advisor/internal/profile"
)

type assessmentForm struct {
	ProcessID string          `json:"processId"`
	Answers   profile.Answers `json:"answers"`
}

func (h *Handler) SubmitAssessment(c *gin.Context) {
	var form assessmentForm
	if !h.bind(c, &form) {
		return
	}

	assessment, err := h.assessments.Submit(c.Request.Context(), form.ProcessID, form.Answers)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit(c, "maturity_assessment", assessment.ID, "submit", "profile "+assessment.Profile.String())
	c.JSON(http.StatusOK, assessment)
}

func (h *Handler) ListAssessments(c *gin.Context) {
	list, err := h.assessments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
