package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kravdesk/kravdesk-backend/internal/services"
)

type GroupingHandler struct {
	groupingService services.GroupingService
}

func NewGroupingHandler(groupingService services.GroupingService) *GroupingHandler {
	return &GroupingHandler{groupingService: groupingService}
}

func (h *GroupingHandler) Run(c *gin.Context) {
	result, err := h.groupingService.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"groups":                result.Groups,
		"ungroupedRequirements": result.Ungrouped,
	})
}
