package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "timetrack/backend/internal/errors"
	"timetrack/backend/internal/middleware"
	"timetrack/backend/internal/service"
)

type TimerHandler struct {
	timerService *service.TimerService
}

type startTimerRequest struct {
	ProjectID *string `json:"projectId"`
	TaskID    *string `json:"taskId"`
	Note      string  `json:"note"`
	Billable  bool    `json:"billable"`
}

type completeTimerRequest struct {
	Note *string `json:"note"`
}

func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{timerService: timerService}
}

func (h *TimerHandler) Start(c *gin.Context) {
	var req startTimerRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	userID := middleware.UserID(c)
	timer, apiErr := h.timerService.Start(c.Request.Context(), userID, service.StartTimerInput{
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		Note:      req.Note,
		Billable:  req.Billable,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"timer": timer})
}

func (h *TimerHandler) Pause(c *gin.Context) {
	timer, apiErr := h.timerService.Pause(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) Resume(c *gin.Context) {
	timer, apiErr := h.timerService.Resume(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) Complete(c *gin.Context) {
	var req completeTimerRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	timer, apiErr := h.timerService.Complete(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Note)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) Cancel(c *gin.Context) {
	timer, apiErr := h.timerService.Cancel(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

// Active responds with {"timer": null} when the user has no active timer.
func (h *TimerHandler) Active(c *gin.Context) {
	timer, apiErr := h.timerService.Active(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) Get(c *gin.Context) {
	timer, apiErr := h.timerService.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": timer})
}

func (h *TimerHandler) List(c *gin.Context) {
	from, apiErr := queryTime(c, "from")
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	to, apiErr := queryTime(c, "to")
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			writeError(c, apperrors.BadRequest("invalid_filter", "limit must be an integer"))
			return
		}
		limit = parsed
	}

	timers, apiErr := h.timerService.List(c.Request.Context(), middleware.UserID(c), service.ListTimersInput{
		Status:    c.Query("status"),
		ProjectID: c.Query("projectId"),
		From:      from,
		To:        to,
		Limit:     limit,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timers": timers})
}

func (h *TimerHandler) Timesheet(c *gin.Context) {
	from, apiErr := queryTime(c, "from")
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	to, apiErr := queryTime(c, "to")
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	entries, apiErr := h.timerService.Timesheet(c.Request.Context(), middleware.UserID(c), from, to)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
