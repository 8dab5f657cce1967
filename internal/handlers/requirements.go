package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kravdesk/kravdesk-backend/internal/data/repos"
)

type RequirementHandler struct {
	requirements repos.RequirementRepo
}

func NewRequirementHandler(requirements repos.RequirementRepo) *RequirementHandler {
	return &RequirementHandler{requirements: requirements}
}

func (h *RequirementHandler) List(c *gin.Context) {
	rows, err := h.requirements.GetAll(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requirements": rows})
}

type userFieldsRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (h *RequirementHandler) UpdateUserFields(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid requirement id"})
		return
	}
	var req userFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.requirements.GetByID(c.Request.Context(), nil, id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if err := h.requirements.UpdateUserFields(c.Request.Context(), nil, id, req.Status, req.Comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}
