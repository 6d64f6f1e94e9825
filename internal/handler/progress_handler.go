package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"timetrack/backend/internal/middleware"
	"timetrack/backend/internal/service"
)

type ProgressHandler struct {
	rewardService *service.RewardService
}

func NewProgressHandler(rewardService *service.RewardService) *ProgressHandler {
	return &ProgressHandler{rewardService: rewardService}
}

func (h *ProgressHandler) Get(c *gin.Context) {
	progress, apiErr := h.rewardService.Progress(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}
